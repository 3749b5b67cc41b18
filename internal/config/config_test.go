package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LEGALLENS_VECTOR_STORE", "chromem")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "llama3.2:1b", cfg.Generation.Model)
	assert.InDelta(t, 0.3, cfg.Generation.Temperature, 1e-6)
	assert.Equal(t, 20, cfg.Generation.TopK)
	assert.InDelta(t, 0.8, cfg.Generation.TopP, 1e-6)
	assert.Equal(t, 500, cfg.Generation.NumPredict)
	assert.Equal(t, 384, cfg.EmbedDimension)
	assert.Equal(t, 3, cfg.TopK)
	assert.Equal(t, 1000, cfg.TranslationCacheSize)
	assert.Equal(t, 50, cfg.ResponseCacheSize)
	assert.Equal(t, 30*time.Minute, cfg.ResponseCacheTTL)
	assert.Equal(t, 100, cfg.HistoryMax)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LEGALLENS_VECTOR_STORE", "sqlite")
	t.Setenv("LEGALLENS_LLM_TEMPERATURE", "0.7")
	t.Setenv("LEGALLENS_RESPONSE_CACHE_TTL", "5m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.VectorStore)
	assert.InDelta(t, 0.7, cfg.Generation.Temperature, 1e-6)
	assert.Equal(t, 5*time.Minute, cfg.ResponseCacheTTL)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) { c.VectorStore = "chromem" }, ""},
		{"unknown store", func(c *Config) { c.VectorStore = "milvus" }, "VECTOR_STORE"},
		{"chromem needs path", func(c *Config) { c.VectorStore = "chromem"; c.ChromemPath = " " }, "CHROMEM_PATH"},
		{"pinecone needs key", func(c *Config) { c.VectorStore = "pinecone" }, "PINECONE_API_KEY"},
		{"gemini needs key", func(c *Config) { c.VectorStore = "chromem"; c.LLMProvider = "gemini" }, "GEMINI_API_KEY"},
		{"temperature", func(c *Config) { c.VectorStore = "chromem"; c.Generation.Temperature = 3 }, "LLM_TEMPERATURE"},
		{"top p", func(c *Config) { c.VectorStore = "chromem"; c.Generation.TopP = 0 }, "LLM_TOP_P"},
		{"history", func(c *Config) { c.VectorStore = "chromem"; c.HistoryMax = 0 }, "HISTORY_MAX"},
		{"ttl", func(c *Config) { c.VectorStore = "chromem"; c.ResponseCacheTTL = 0 }, "RESPONSE_CACHE_TTL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestOrigins(t *testing.T) {
	cfg := &Config{AllowedOrigins: "http://a.test, http://b.test,,"}
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Origins())
}
