package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultMatchesContractualDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 0.85, cfg.EntityResolutionVectorThreshold)
	assert.Equal(t, 0.75, cfg.EntityResolutionFuzzyThreshold)
	assert.Equal(t, 300, cfg.EntityCacheTTLSeconds)
	assert.Equal(t, 3600, cfg.LLMCacheTTLSeconds)
	assert.Equal(t, 30, cfg.LLMTimeoutSeconds)
	assert.Equal(t, 3, cfg.LLMMaxRetries)
	assert.Equal(t, 384, cfg.EmbeddingDimensions)
	assert.Equal(t, 256, cfg.EmbeddingMaxLength)
	assert.Equal(t, 10, cfg.TimelineDisplayLimit)
}

func TestLoadMissingEnvFileFallsBackToEnvironment(t *testing.T) {
	os.Setenv("MEETGRAPH_LLM_API_KEY", "test-key")
	defer os.Unsetenv("MEETGRAPH_LLM_API_KEY")

	cfg, err := Load("/nonexistent/path/.env")
	assert.NoError(t, err)
	assert.Equal(t, "test-key", cfg.LLMAPIKey)
}

func TestLoadParsesFallbackList(t *testing.T) {
	os.Setenv("MEETGRAPH_LLM_MODEL_FALLBACKS", "model-a, model-b,model-c")
	defer os.Unsetenv("MEETGRAPH_LLM_MODEL_FALLBACKS")

	cfg, err := Load("")
	assert.NoError(t, err)
	assert.Equal(t, []string{"model-a", "model-b", "model-c"}, cfg.LLMModelFallbacks)
}
