// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/credentials"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/llm"
)

// Environment variables consulted when neither the config file nor a flag sets a value
const (
	EnvAPIKeys     = "GOOGLE_API_KEYS"
	EnvDatabaseURL = "DATABASE_URL"
)

// Store backends
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
)

// Config represents the CLI configuration that can be loaded from a JSON file.
// All fields are optional; missing values use defaults or must be provided via CLI flags.
type Config struct {
	// Credentials
	APIKeys []string `json:"api_keys,omitempty" validate:"dive,required"` // Gemini API keys, one per rotation slot

	// Paths
	DataDir string `json:"data_dir,omitempty" validate:"required"` // Directory holding batches/, prompts/ and the persona corpus
	RunsDir string `json:"runs_dir,omitempty" validate:"required"` // Run logs and checkpoints

	// Model
	Model           string  `json:"model,omitempty" validate:"required"`
	Temperature     float32 `json:"temperature,omitempty" validate:"gte=0,lte=2"`
	MaxOutputTokens int32   `json:"max_output_tokens,omitempty" validate:"gt=0"`
	TimeoutSeconds  float64 `json:"timeout_seconds,omitempty" validate:"gte=0"` // Bound on one upstream call; 0 means none

	// Pacing and retries
	DelaySeconds  *float64 `json:"delay_seconds,omitempty" validate:"omitempty,gte=0"` // Wait after each logged item; nil means unset, 0 is kept
	MaxRetries    int      `json:"max_retries,omitempty" validate:"gt=0"`              // Attempts per item
	BackoffBase   float64  `json:"backoff_base,omitempty" validate:"gt=0"`             // Attempt n waits BackoffBase^n seconds
	PromptsPerKey int      `json:"prompts_per_key,omitempty" validate:"gt=0"`          // Rotation block size

	// Per-key request rate; 0 leaves keys unthrottled beyond the fixed delay
	RequestsPerMinute float64 `json:"requests_per_minute,omitempty" validate:"gte=0"`
	RequestBurst      int     `json:"request_burst,omitempty" validate:"gte=0"`

	// Behavior
	DryRun      bool   `json:"dry_run,omitempty"`
	DryRunLimit int    `json:"dry_run_limit,omitempty" validate:"gte=0"` // Variants processed in a dry run
	Store       string `json:"store,omitempty" validate:"omitempty,oneof=file postgres"`
	DatabaseURL string `json:"database_url,omitempty" validate:"required_if=Store postgres"` // PostgreSQL connection URL
	Verbose     bool   `json:"verbose,omitempty"`
}

// ConfigError is an invalid configuration value. It is always fatal before the run starts.
type ConfigError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error: '%s' %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Defaults returns the settings used for the published audit runs
func Defaults() Config {
	return Config{
		DataDir:         "outputs",
		RunsDir:         filepath.Join("outputs", "runs"),
		Model:           llm.DefaultModel,
		Temperature:     llm.DefaultTemperature,
		MaxOutputTokens: llm.DefaultMaxOutputTokens,
		DelaySeconds:    Seconds(2.1),
		MaxRetries:      llm.DefaultMaxRetries,
		BackoffBase:     llm.DefaultBackoffBase,
		PromptsPerKey:   450,
		Store:           StoreFile,
	}
}

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// CheckFile rejects values in a loaded config file that can never be valid.
// Required fields are not checked here since flags and defaults may still fill them.
func (c *Config) CheckFile() error {
	if c.DelaySeconds != nil && *c.DelaySeconds < 0 {
		return &ConfigError{Field: "delay_seconds", Message: "must be non-negative"}
	}
	if c.TimeoutSeconds < 0 {
		return &ConfigError{Field: "timeout_seconds", Message: "must be non-negative"}
	}
	if c.MaxRetries < 0 {
		return &ConfigError{Field: "max_retries", Message: "must be non-negative"}
	}
	if c.PromptsPerKey < 0 {
		return &ConfigError{Field: "prompts_per_key", Message: "must be non-negative"}
	}
	if c.RequestsPerMinute < 0 {
		return &ConfigError{Field: "requests_per_minute", Message: "must be non-negative"}
	}
	if c.DryRunLimit < 0 {
		return &ConfigError{Field: "dry_run_limit", Message: "must be non-negative"}
	}
	if c.Store != "" && c.Store != StoreFile && c.Store != StorePostgres {
		return &ConfigError{Field: "store", Message: fmt.Sprintf("must be %q or %q", StoreFile, StorePostgres)}
	}
	return nil
}

// Validate checks the fully merged configuration. Fewer than two API keys
// fails with credentials.ErrInsufficientCredentials.
func (c *Config) Validate() error {
	if len(c.APIKeys) < credentials.MinCredentials {
		return &ConfigError{
			Field:   "api_keys",
			Message: fmt.Sprintf("needs at least %d keys, got %d (set %s)", credentials.MinCredentials, len(c.APIKeys), EnvAPIKeys),
			Cause:   credentials.ErrInsufficientCredentials,
		}
	}

	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ConfigError{
				Field:   fe.Field(),
				Message: fmt.Sprintf("failed '%s' check", fe.Tag()),
				Cause:   err,
			}
		}
		return &ConfigError{Message: "validation failed", Cause: err}
	}
	return nil
}

// MergeWithDefaults returns a new Config with zero-valued fields filled from defaults.
// Bool fields are not merged since unset cannot be told apart from false.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if len(result.APIKeys) == 0 {
		result.APIKeys = defaults.APIKeys
	}
	if result.DataDir == "" {
		result.DataDir = defaults.DataDir
	}
	if result.RunsDir == "" {
		result.RunsDir = defaults.RunsDir
	}
	if result.Model == "" {
		result.Model = defaults.Model
	}
	if result.Temperature == 0 {
		result.Temperature = defaults.Temperature
	}
	if result.MaxOutputTokens == 0 {
		result.MaxOutputTokens = defaults.MaxOutputTokens
	}
	if result.TimeoutSeconds == 0 {
		result.TimeoutSeconds = defaults.TimeoutSeconds
	}
	if result.DelaySeconds == nil {
		result.DelaySeconds = defaults.DelaySeconds
	}
	if result.MaxRetries == 0 {
		result.MaxRetries = defaults.MaxRetries
	}
	if result.BackoffBase == 0 {
		result.BackoffBase = defaults.BackoffBase
	}
	if result.PromptsPerKey == 0 {
		result.PromptsPerKey = defaults.PromptsPerKey
	}
	if result.RequestsPerMinute == 0 {
		result.RequestsPerMinute = defaults.RequestsPerMinute
	}
	if result.RequestBurst == 0 {
		result.RequestBurst = defaults.RequestBurst
	}
	if result.DryRunLimit == 0 {
		result.DryRunLimit = defaults.DryRunLimit
	}
	if result.Store == "" {
		result.Store = defaults.Store
	}
	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}

	return result
}

// ApplyEnv fills credentials and the database URL from the environment when unset
func (c *Config) ApplyEnv(getenv func(string) string) {
	if len(c.APIKeys) == 0 {
		c.APIKeys = credentials.ParseKeyList(getenv(EnvAPIKeys))
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = strings.TrimSpace(getenv(EnvDatabaseURL))
	}
}

// Seconds returns a pointer to v, for optional duration fields
func Seconds(v float64) *float64 {
	return &v
}

// Delay is the pacing interval after each logged item
func (c *Config) Delay() time.Duration {
	if c.DelaySeconds == nil {
		return 0
	}
	return time.Duration(*c.DelaySeconds * float64(time.Second))
}

// LLMConfig returns the model settings for the client pool
func (c *Config) LLMConfig() *llm.Config {
	cfg := llm.DefaultGeminiConfig()
	cfg.Model = c.Model
	cfg.Temperature = c.Temperature
	cfg.MaxOutputTokens = c.MaxOutputTokens
	cfg.Timeout = time.Duration(c.TimeoutSeconds * float64(time.Second))
	return cfg
}
