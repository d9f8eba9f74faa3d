// Package config loads meetgraph's runtime configuration from a .env file
// (if present) and the process environment, applying the defaults the
// external interface contract specifies.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config enumerates every recognized configuration option.
type Config struct {
	LLMAPIKey         string
	LLMBaseURL        string
	LLMModel          string
	LLMModelFallbacks []string

	VectorHost               string
	VectorPort                int
	VectorMemoriesCollection  string
	VectorEntitiesCollection  string

	RelationalStorePath string

	EmbeddingModelPath  string
	EmbeddingMaxLength  int
	EmbeddingDimensions int

	EntityResolutionVectorThreshold float64
	EntityResolutionFuzzyThreshold  float64
	EntityResolutionUseLLM          bool
	EntityCacheTTLSeconds           int

	LLMCacheTTLSeconds int
	LLMTimeoutSeconds  int
	LLMMaxRetries      int

	TimelineDisplayLimit int

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
	TLSVerify  bool
}

// Default returns the configuration with every contractual default applied
// and nothing loaded from the environment.
func Default() *Config {
	return &Config{
		LLMModel:          "openrouter/cypher-alpha:free",
		LLMModelFallbacks: []string{"openai/gpt-4-turbo-preview", "openai/gpt-3.5-turbo", "mistralai/mixtral-8x7b-instruct"},

		VectorHost:               "localhost",
		VectorPort:               6379,
		VectorMemoriesCollection: "memories",
		VectorEntitiesCollection: "entity_names",

		RelationalStorePath: "meetgraph.db",

		EmbeddingModelPath:  "",
		EmbeddingMaxLength:  256,
		EmbeddingDimensions: 384,

		EntityResolutionVectorThreshold: 0.85,
		EntityResolutionFuzzyThreshold:  0.75,
		EntityResolutionUseLLM:          true,
		EntityCacheTTLSeconds:           300,

		LLMCacheTTLSeconds: 3600,
		LLMTimeoutSeconds:  30,
		LLMMaxRetries:      3,

		TimelineDisplayLimit: 10,

		TLSVerify: true,
	}
}

// Load reads envPath (if it exists) into the process environment via
// godotenv, then builds a Config from environment variables layered over
// Default(). A missing envPath is not an error — the loader falls back
// silently to whatever is already set in the environment.
func Load(envPath string) (*Config, error) {
	if envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return nil, err
			}
		}
	}

	cfg := Default()

	str(&cfg.LLMAPIKey, "MEETGRAPH_LLM_API_KEY")
	str(&cfg.LLMBaseURL, "MEETGRAPH_LLM_BASE_URL")
	str(&cfg.LLMModel, "MEETGRAPH_LLM_MODEL")
	list(&cfg.LLMModelFallbacks, "MEETGRAPH_LLM_MODEL_FALLBACKS")

	str(&cfg.VectorHost, "MEETGRAPH_VECTOR_HOST")
	intv(&cfg.VectorPort, "MEETGRAPH_VECTOR_PORT")
	str(&cfg.VectorMemoriesCollection, "MEETGRAPH_VECTOR_MEMORIES_COLLECTION")
	str(&cfg.VectorEntitiesCollection, "MEETGRAPH_VECTOR_ENTITIES_COLLECTION")

	str(&cfg.RelationalStorePath, "MEETGRAPH_RELATIONAL_STORE_PATH")

	str(&cfg.EmbeddingModelPath, "MEETGRAPH_EMBEDDING_MODEL_PATH")
	intv(&cfg.EmbeddingMaxLength, "MEETGRAPH_EMBEDDING_MAX_LENGTH")
	intv(&cfg.EmbeddingDimensions, "MEETGRAPH_EMBEDDING_DIM")

	floatv(&cfg.EntityResolutionVectorThreshold, "MEETGRAPH_ENTITY_RESOLUTION_VECTOR_THRESHOLD")
	floatv(&cfg.EntityResolutionFuzzyThreshold, "MEETGRAPH_ENTITY_RESOLUTION_FUZZY_THRESHOLD")
	boolv(&cfg.EntityResolutionUseLLM, "MEETGRAPH_ENTITY_RESOLUTION_USE_LLM")
	intv(&cfg.EntityCacheTTLSeconds, "MEETGRAPH_ENTITY_CACHE_TTL_S")

	intv(&cfg.LLMCacheTTLSeconds, "MEETGRAPH_LLM_CACHE_TTL_S")
	intv(&cfg.LLMTimeoutSeconds, "MEETGRAPH_LLM_TIMEOUT_S")
	intv(&cfg.LLMMaxRetries, "MEETGRAPH_LLM_MAX_RETRIES")

	intv(&cfg.TimelineDisplayLimit, "MEETGRAPH_TIMELINE_DISPLAY_LIMIT")

	str(&cfg.HTTPProxy, "MEETGRAPH_HTTP_PROXY")
	str(&cfg.HTTPSProxy, "MEETGRAPH_HTTPS_PROXY")
	str(&cfg.NoProxy, "MEETGRAPH_NO_PROXY")
	boolv(&cfg.TLSVerify, "MEETGRAPH_TLS_VERIFY")

	return cfg, nil
}

func str(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func list(dst *[]string, env string) {
	if v := os.Getenv(env); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		*dst = parts
	}
}

func intv(dst *int, env string) {
	if v := os.Getenv(env); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func floatv(dst *float64, env string) {
	if v := os.Getenv(env); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func boolv(dst *bool, env string) {
	if v := os.Getenv(env); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
