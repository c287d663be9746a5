package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, 0.75, cfg.Match.SimilarityThreshold)
	assert.Equal(t, 0.05, cfg.Match.AmbiguityWindow)
	assert.Equal(t, 5, cfg.Match.MaxCandidates)
	assert.Nil(t, cfg.Embedding, "embeddings off by default")
	assert.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("MUNIN_PORT", "9090")
	t.Setenv("MUNIN_SIMILARITY_THRESHOLD", "0.8")
	t.Setenv("MUNIN_MAX_CANDIDATES", "3")
	t.Setenv("MUNIN_LOG_LEVEL", "debug")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 0.8, cfg.Match.SimilarityThreshold)
	assert.Equal(t, 3, cfg.Match.MaxCandidates)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadEmbeddingFromEnv(t *testing.T) {
	t.Setenv("MUNIN_EMBEDDING_PROVIDER", "ollama")
	t.Setenv("MUNIN_EMBEDDING_MODEL", "nomic-embed-text")
	t.Setenv("MUNIN_EMBEDDING_DIMENSIONS", "768")
	t.Setenv("MUNIN_EMBEDDING_TIMEOUT", "10s")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg.Embedding)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.Equal(t, 768, cfg.Embedding.Dimensions)
	assert.Equal(t, 10*time.Second, cfg.Embedding.Timeout)
	assert.Equal(t, "http://localhost:11434", cfg.Embedding.APIURL, "ollama defaults kept")
}

func TestLoadEmbeddingNone(t *testing.T) {
	t.Setenv("MUNIN_EMBEDDING_PROVIDER", "none")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Nil(t, cfg.Embedding)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "munin.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 7070
match:
  similarity_threshold: 0.9
embedding:
  provider: ollama
  model: custom-model
logging:
  level: warn
  format: console
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 0.9, cfg.Match.SimilarityThreshold)
	require.NotNil(t, cfg.Embedding)
	assert.Equal(t, "custom-model", cfg.Embedding.Model)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestEnvBeatsYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "munin.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 7070\n"), 0o644))
	t.Setenv("MUNIN_PORT", "6060")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 6060, cfg.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/munin.yaml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"threshold too high", func(c *Config) { c.Match.SimilarityThreshold = 1.5 }},
		{"negative window", func(c *Config) { c.Match.AmbiguityWindow = -0.1 }},
		{"zero candidates", func(c *Config) { c.Match.MaxCandidates = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateOpenAIRequiresKey(t *testing.T) {
	t.Setenv("MUNIN_EMBEDDING_PROVIDER", "openai")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API_KEY")

	t.Setenv("MUNIN_EMBEDDING_API_KEY", "sk-test")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
}

func TestNewLogger(t *testing.T) {
	cfg := Default()
	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	logger.Sync()

	cfg.Logging.Format = "console"
	cfg.Logging.Level = "debug"
	logger, err = cfg.NewLogger()
	require.NoError(t, err)
	logger.Sync()
}
