package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// validSSLModes are the libpq sslmode values pgx accepts.
var validSSLModes = map[string]bool{
	"disable":     true,
	"allow":       true,
	"prefer":      true,
	"require":     true,
	"verify-ca":   true,
	"verify-full": true,
}

// Validate checks the configuration for obvious misconfiguration. It is
// called by Load; call it directly only when constructing a Config by hand.
func (c *Config) Validate() error {
	if err := c.validateOllama(); err != nil {
		return err
	}
	if err := c.validatePostgres(); err != nil {
		return err
	}
	if c.RequestTimeout < time.Second || c.RequestTimeout > 30*time.Minute {
		return fmt.Errorf("%w: %s (must be between 1s and 30m)", ErrInvalidTimeout, c.RequestTimeout)
	}
	if strings.TrimSpace(c.UploadDir) == "" {
		return fmt.Errorf("%w: upload_dir is empty", ErrInvalidUploadDir)
	}
	return nil
}

func (c *Config) validateOllama() error {
	if c.OllamaHost == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidOllamaHost)
	}
	u, err := url.Parse(c.OllamaHost)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%w: %q must be an http(s) URL", ErrInvalidOllamaHost, c.OllamaHost)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme %q", ErrInvalidOllamaHost, u.Scheme)
	}
	if strings.TrimSpace(c.ChatModel) == "" {
		return fmt.Errorf("%w: chat_model is empty", ErrInvalidModelName)
	}
	if strings.TrimSpace(c.EmbeddingModel) == "" {
		return fmt.Errorf("%w: embedding_model is empty", ErrInvalidModelName)
	}
	return nil
}

func (c *Config) validatePostgres() error {
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d (must be 1-65535)", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name is empty", ErrInvalidPostgresDBName)
	}
	if !validSSLModes[c.PostgresSSLMode] {
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}
	return nil
}
