package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, ProviderGemini, config.Provider)
	assert.Equal(t, "gemini-2.0-flash-lite", config.Model)
	assert.Equal(t, float32(0), config.Temperature)
	assert.Equal(t, int32(8000), config.MaxOutputTokens)
	assert.Zero(t, config.Timeout)
}

func TestProviderConstants(t *testing.T) {
	assert.Equal(t, Provider("gemini"), ProviderGemini)
}
