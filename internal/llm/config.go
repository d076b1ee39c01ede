// Package llm provides the model configuration, the Gemini client, and the retrying
// invoker that sends one prompt to the upstream text-generation endpoint.
package llm

import "time"

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderGemini is the Google Gemini provider
	ProviderGemini Provider = "gemini"
)

// Defaults taken from the audit runs
const (
	DefaultModel           = "gemini-2.0-flash-lite"
	DefaultTemperature     = float32(0.0)
	DefaultMaxOutputTokens = int32(8000)
	DefaultMaxRetries      = 3
	DefaultBackoffBase     = 1.5
)

// Config holds the model configuration for the audit
type Config struct {
	Provider        Provider
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	// Timeout bounds a single upstream attempt inside the Invoker. Zero means none.
	Timeout time.Duration
}

// DefaultConfig returns the default configuration (currently Gemini)
func DefaultConfig() *Config {
	return DefaultGeminiConfig()
}

// DefaultGeminiConfig returns the default Gemini configuration.
// Temperature 0 keeps answers as repeatable as the endpoint allows.
func DefaultGeminiConfig() *Config {
	return &Config{
		Provider:        ProviderGemini,
		Model:           DefaultModel,
		Temperature:     DefaultTemperature,
		MaxOutputTokens: DefaultMaxOutputTokens,
	}
}
