// Package cmd contains the focusml CLI commands.
package cmd

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/System-AI-Assistants/FocusML/internal/config"
	"github.com/System-AI-Assistants/FocusML/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "focusml",
	Short: "FocusML - document and tabular RAG backend",
	Long: `FocusML ingests documents and tabular files into per-collection
vector tables in PostgreSQL (pgvector) and answers questions grounded
in the retrieved rows, using a local Ollama-compatible model daemon.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// buildLogger creates the process logger from the loaded configuration.
func buildLogger(cfg *config.Config) log.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return log.New(log.Config{Level: level, JSON: cfg.LogJSON})
}
