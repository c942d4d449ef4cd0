// Package config provides application configuration management with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (FOCUSML_* runtime override, plus DATABASE_URL)
//  2. Config file (~/.focusml/config.yaml)
//  3. Default values (sensible defaults for quick start)
//
// Main configuration categories:
//   - Model serving: Ollama host, chat model, embedding model, request timeout
//   - Storage: PostgreSQL connection (see storage.go)
//   - Ingestion: upload directory, default chunking method
//   - Server: listen address, rate limiting, proxy trust
//
// Error Handling:
//   - Uses sentinel errors for Go-idiomatic error checking with errors.Is()
//   - Wrap with context using fmt.Errorf("%w: details", ErrXxx)
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrInvalidOllamaHost indicates the Ollama host is invalid.
	ErrInvalidOllamaHost = errors.New("invalid ollama host")

	// ErrInvalidModelName indicates a model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidTimeout indicates the model request timeout is out of range.
	ErrInvalidTimeout = errors.New("invalid request timeout")

	// ErrInvalidUploadDir indicates the upload directory is not usable.
	ErrInvalidUploadDir = errors.New("invalid upload directory")
)

const (
	// DefaultChatModel is the chat model used when a request names none.
	DefaultChatModel = "mistral:7b"

	// DefaultEmbeddingModel is the embedding model used when a collection
	// names none. Must produce embedstore.VectorDimension-sized vectors.
	DefaultEmbeddingModel = "nomic-embed-text"

	// DefaultRequestTimeout bounds a single model-serving call. Local
	// inference can take minutes on cold models, so this is deliberately
	// generous.
	DefaultRequestTimeout = 120 * time.Second
)

// Config stores application configuration.
type Config struct {
	// Model serving configuration
	OllamaHost     string        `mapstructure:"ollama_host"`
	ChatModel      string        `mapstructure:"chat_model"`
	EmbeddingModel string        `mapstructure:"embedding_model"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// Storage configuration (see storage.go for DSN helpers)
	PostgresHost     string `mapstructure:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password"`
	PostgresDBName   string `mapstructure:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode"`

	// Ingestion configuration
	UploadDir             string `mapstructure:"upload_dir"`
	DefaultChunkingMethod string `mapstructure:"default_chunking_method"`

	// Server configuration
	HTTPAddr   string `mapstructure:"http_addr"`
	TrustProxy bool   `mapstructure:"trust_proxy"`
	RateBurst  int    `mapstructure:"rate_burst"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
}

// Load reads configuration from defaults, an optional config file and
// environment variables, then validates the result.
//
// The config file is ~/.focusml/config.yaml; a missing file is not an
// error. Environment variables use the FOCUSML_ prefix with underscores
// (e.g. FOCUSML_OLLAMA_HOST). DATABASE_URL, when set, overrides the
// individual postgres_* values.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".focusml"))
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("FOCUSML")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers default values for all configuration keys.
func setDefaults(v *viper.Viper) {
	v.SetDefault("ollama_host", "http://localhost:11434")
	v.SetDefault("chat_model", DefaultChatModel)
	v.SetDefault("embedding_model", DefaultEmbeddingModel)
	v.SetDefault("request_timeout", DefaultRequestTimeout)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "focusml")
	v.SetDefault("postgres_password", "")
	v.SetDefault("postgres_db_name", "focusml")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("upload_dir", "uploads")
	v.SetDefault("default_chunking_method", "recursive")

	v.SetDefault("http_addr", ":8000")
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", 60)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
}
