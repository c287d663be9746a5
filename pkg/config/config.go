// Package config handles Munin configuration via environment variables, with
// an optional YAML file underneath.
//
// Precedence: environment variables override the YAML file, which overrides
// built-in defaults. All variables are prefixed MUNIN_.
//
// Example Usage:
//
//	cfg, err := config.Load(os.Getenv("MUNIN_CONFIG_FILE"))
//	if err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//	fmt.Printf("Listening on %s\n", cfg.Server.Addr())
//
// Environment Variables:
//
// Server:
//   - MUNIN_HOST=0.0.0.0
//   - MUNIN_PORT=8080
//
// Label resolution:
//   - MUNIN_SIMILARITY_THRESHOLD=0.75
//   - MUNIN_AMBIGUITY_WINDOW=0.05
//   - MUNIN_MAX_CANDIDATES=5
//
// Embeddings:
//   - MUNIN_EMBEDDING_PROVIDER="ollama", "openai", or "none"
//   - MUNIN_EMBEDDING_MODEL="mxbai-embed-large"
//   - MUNIN_EMBEDDING_API_URL=http://localhost:11434
//   - MUNIN_EMBEDDING_API_KEY=...       (openai)
//   - MUNIN_EMBEDDING_DIMENSIONS=1024
//   - MUNIN_EMBEDDING_TIMEOUT=30s
//
// Logging:
//   - MUNIN_LOG_LEVEL=info|debug|warn|error
//   - MUNIN_LOG_FORMAT=json|console
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/orneryd/munin/pkg/embed"
	"github.com/orneryd/munin/pkg/match"
)

// Config holds all Munin configuration.
type Config struct {
	Server    ServerConfig  `yaml:"server"`
	Match     match.Config  `yaml:"match"`
	Embedding *embed.Config `yaml:"embedding"`
	Logging   LoggingConfig `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// Default returns the built-in configuration: localhost:8080, standard
// resolution thresholds, no embedding provider, info-level JSON logs.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Match: match.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path (when
// path is non-empty), and finally the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays MUNIN_* environment variables.
func (c *Config) applyEnv() {
	c.Server.Host = getEnv("MUNIN_HOST", c.Server.Host)
	c.Server.Port = getEnvInt("MUNIN_PORT", c.Server.Port)

	c.Match.SimilarityThreshold = getEnvFloat("MUNIN_SIMILARITY_THRESHOLD", c.Match.SimilarityThreshold)
	c.Match.AmbiguityWindow = getEnvFloat("MUNIN_AMBIGUITY_WINDOW", c.Match.AmbiguityWindow)
	c.Match.MaxCandidates = getEnvInt("MUNIN_MAX_CANDIDATES", c.Match.MaxCandidates)

	provider := getEnv("MUNIN_EMBEDDING_PROVIDER", "")
	if provider == "" && c.Embedding != nil {
		provider = c.Embedding.Provider
	}
	switch provider {
	case "", "none":
		c.Embedding = nil
	default:
		base := c.Embedding
		if base == nil || base.Provider != provider {
			switch provider {
			case "openai":
				base = embed.DefaultOpenAIConfig("")
			default:
				base = embed.DefaultOllamaConfig()
				base.Provider = provider
			}
		}
		base.Model = getEnv("MUNIN_EMBEDDING_MODEL", base.Model)
		base.APIURL = getEnv("MUNIN_EMBEDDING_API_URL", base.APIURL)
		base.APIKey = getEnv("MUNIN_EMBEDDING_API_KEY", base.APIKey)
		base.Dimensions = getEnvInt("MUNIN_EMBEDDING_DIMENSIONS", base.Dimensions)
		base.Timeout = getEnvDuration("MUNIN_EMBEDDING_TIMEOUT", base.Timeout)
		c.Embedding = base
	}

	c.Logging.Level = getEnv("MUNIN_LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnv("MUNIN_LOG_FORMAT", c.Logging.Format)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Match.SimilarityThreshold <= 0 || c.Match.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity threshold must be in (0, 1], got %v", c.Match.SimilarityThreshold)
	}
	if c.Match.AmbiguityWindow < 0 || c.Match.AmbiguityWindow >= 1 {
		return fmt.Errorf("ambiguity window must be in [0, 1), got %v", c.Match.AmbiguityWindow)
	}
	if c.Match.MaxCandidates < 1 {
		return fmt.Errorf("max candidates must be at least 1, got %d", c.Match.MaxCandidates)
	}
	if c.Embedding != nil && c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		return fmt.Errorf("openai embedding provider requires MUNIN_EMBEDDING_API_KEY")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	return nil
}

// NewLogger builds the zap logger the configuration describes.
func (c *Config) NewLogger() (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Logging.Level, err)
	}

	var zapCfg zap.Config
	if c.Logging.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

// ============================================================================
// Environment Helpers
// ============================================================================

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		// Bare numbers are seconds.
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}
