package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/config"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/credentials"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/pipeline"
	"github.com/Joe-Occhipinti/Ethical-Audit-of-LLMs-as-HR-Ranking-Tools-Biases/internal/types"
)

// dryRunLimits is the number of variants a dry run processes per role
var dryRunLimits = map[types.Role]int{
	types.RoleSWE: 1,
	types.RoleHR:  5,
}

// runFlags holds the flag values shared by the role commands
type runFlags struct {
	configPath    string
	apiKeys       string
	dataDir       string
	runsDir       string
	model         string
	delay         float64
	timeout       float64
	maxRetries    int
	backoffBase   float64
	promptsPerKey int
	rpm           float64
	burst         int
	dryRun        bool
	dryRunLimit   int
	store         string
	databaseURL   string
	verbose       bool
}

func newRoleCommand(role types.Role) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   string(role),
		Short: fmt.Sprintf("Run the %s audit", strings.ToUpper(string(role))),
		Long: fmt.Sprintf(`Runs every %s scenario past the checkpoint through the model and appends one record per
scenario to the run log.

Configuration can be loaded from a JSON file using --config. Command-line arguments override config file values.
API keys come from --api-keys, the config file, or the %s environment variable (comma separated).`,
			strings.ToUpper(string(role)), config.EnvAPIKeys),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := buildConfig(cmd.Flags(), f, role, os.Getenv)
			if err != nil {
				return err
			}
			return runRole(cmd, role, cfg)
		},
	}

	f.bind(cmd.Flags(), role)
	return cmd
}

func (f *runFlags) bind(flags *pflag.FlagSet, role types.Role) {
	// Config file flag (processed first)
	flags.StringVar(&f.configPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	flags.StringVar(&f.apiKeys, "api-keys", "", "Comma-separated Gemini API keys (defaults to "+config.EnvAPIKeys+")")
	flags.StringVar(&f.dataDir, "data-dir", "", "Directory holding batches/, prompts/ and the persona corpus")
	flags.StringVar(&f.runsDir, "runs-dir", "", "Directory for run logs and checkpoints")
	flags.StringVar(&f.model, "model", "", "Gemini model name")
	flags.Float64Var(&f.delay, "delay", 0, "Seconds to wait after each logged scenario")
	flags.Float64Var(&f.timeout, "timeout", 0, "Seconds one model call may take before it counts as a failed attempt (0 disables)")
	flags.IntVar(&f.maxRetries, "max-retries", 0, "Attempts per scenario before logging an empty response")
	flags.Float64Var(&f.backoffBase, "backoff-base", 0, "Attempt n waits backoff-base^n seconds")
	flags.IntVar(&f.promptsPerKey, "prompts-per-key", 0, "Consecutive scenarios sent through one key")
	flags.Float64Var(&f.rpm, "rpm", 0, "Requests per minute allowed through each key (0 disables)")
	flags.IntVar(&f.burst, "burst", 0, "Requests a key may send back to back under --rpm")
	flags.BoolVar(&f.dryRun, "dry-run", false, "Process only the first variants and keep the checkpoint")
	flags.IntVar(&f.dryRunLimit, "dry-run-limit", 0, fmt.Sprintf("Variants processed in a dry run (default %d)", dryRunLimits[role]))
	flags.StringVar(&f.store, "store", "", "Storage backend: file or postgres")
	flags.StringVar(&f.databaseURL, "db-url", "", "PostgreSQL connection URL (defaults to "+config.EnvDatabaseURL+")")
	flags.BoolVarP(&f.verbose, "verbose", "v", false, "Print debug logs")
}

// buildConfig resolves the effective configuration: file, then explicit flags, then
// environment, then defaults. The result is validated.
func buildConfig(flags *pflag.FlagSet, f *runFlags, role types.Role, getenv func(string) string) (config.Config, error) {
	// Step 1: Load config file if provided
	var cfg config.Config
	if f.configPath != "" {
		loaded, err := config.LoadConfig(f.configPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
		if err := loaded.CheckFile(); err != nil {
			return cfg, err
		}
		cfg = *loaded
	}

	// Step 2: Apply CLI overrides, only for flags explicitly set
	if flags.Changed("api-keys") {
		cfg.APIKeys = credentials.ParseKeyList(f.apiKeys)
	}
	if flags.Changed("data-dir") {
		cfg.DataDir = f.dataDir
	}
	if flags.Changed("runs-dir") {
		cfg.RunsDir = f.runsDir
	}
	if flags.Changed("model") {
		cfg.Model = f.model
	}
	if flags.Changed("delay") {
		cfg.DelaySeconds = config.Seconds(f.delay)
	}
	if flags.Changed("timeout") {
		cfg.TimeoutSeconds = f.timeout
	}
	if flags.Changed("max-retries") {
		cfg.MaxRetries = f.maxRetries
	}
	if flags.Changed("backoff-base") {
		cfg.BackoffBase = f.backoffBase
	}
	if flags.Changed("prompts-per-key") {
		cfg.PromptsPerKey = f.promptsPerKey
	}
	if flags.Changed("rpm") {
		cfg.RequestsPerMinute = f.rpm
	}
	if flags.Changed("burst") {
		cfg.RequestBurst = f.burst
	}
	if flags.Changed("dry-run") {
		cfg.DryRun = f.dryRun
	}
	if flags.Changed("dry-run-limit") {
		cfg.DryRunLimit = f.dryRunLimit
	}
	if flags.Changed("store") {
		cfg.Store = f.store
	}
	if flags.Changed("db-url") {
		cfg.DatabaseURL = f.databaseURL
	}
	if flags.Changed("verbose") {
		cfg.Verbose = f.verbose
	}

	// Step 3: Environment fills what is still unset
	cfg.ApplyEnv(getenv)

	// Step 4: Apply defaults for unset values
	defaults := config.Defaults()
	defaults.DryRunLimit = dryRunLimits[role]
	cfg = cfg.MergeWithDefaults(defaults)

	// Step 5: Validate
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func runRole(cmd *cobra.Command, role types.Role, cfg config.Config) error {
	logger, err := newLogger(cfg.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("configuration resolved",
		zap.String("role", string(role)),
		zap.Int("keys", len(cfg.APIKeys)),
		zap.Int("prompts_per_key", cfg.PromptsPerKey),
		zap.String("model", cfg.Model),
		zap.Duration("delay", cfg.Delay()),
		zap.String("store", cfg.Store))

	_, err = pipeline.RunAudit(ctx, pipeline.RunOptions{
		Role:   role,
		Config: cfg,
		Fs:     afero.NewOsFs(),
		Out:    cmd.OutOrStdout(),
		Logger: logger,
	})
	return err
}
