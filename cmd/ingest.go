package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/System-AI-Assistants/FocusML/internal/chunker"
	"github.com/System-AI-Assistants/FocusML/internal/collection"
	"github.com/System-AI-Assistants/FocusML/internal/config"
	"github.com/System-AI-Assistants/FocusML/internal/parser"
)

var (
	ingestName         string
	ingestMethod       string
	ingestChunkSize    int
	ingestChunkOverlap int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Ingest a document or tabular file into a new collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, args[0])
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestName, "name", "", "collection name (default: file name)")
	ingestCmd.Flags().StringVar(&ingestMethod, "method", "", "chunking method for documents")
	ingestCmd.Flags().IntVar(&ingestChunkSize, "chunk-size", 0, "chunk size override")
	ingestCmd.Flags().IntVar(&ingestChunkOverlap, "chunk-overlap", -1, "chunk overlap override")
	rootCmd.AddCommand(ingestCmd)
}

// runIngest creates a collection for the file and runs the pipeline in
// the foreground, printing the final accounting.
func runIngest(cmd *cobra.Command, path string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := buildLogger(cfg)

	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	ext := parser.FileExtension(abs)
	kind, ok := collection.KindForExtension(ext)
	if !ok {
		return fmt.Errorf("unsupported file extension %q", ext)
	}

	method := ingestMethod
	if kind == collection.SourceDocument {
		if method == "" {
			method = cfg.DefaultChunkingMethod
		}
		if _, known := chunker.ParseMethod(method); !known {
			return fmt.Errorf("unknown chunking method %q", method)
		}
	} else {
		method = ""
	}

	var configJSON []byte
	if kind == collection.SourceDocument && (ingestChunkSize > 0 || ingestChunkOverlap >= 0) {
		chunkCfg := chunker.Config{ChunkSize: ingestChunkSize}
		if ingestChunkOverlap >= 0 {
			overlap := ingestChunkOverlap
			chunkCfg.ChunkOverlap = &overlap
		}
		configJSON, err = json.Marshal(chunkCfg)
		if err != nil {
			return fmt.Errorf("encoding chunking config: %w", err)
		}
	}

	name := ingestName
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(abs), "."+ext)
	}

	ctx := context.Background()
	a, err := setupApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	col := &collection.Collection{
		Name:           name,
		FilePath:       abs,
		SourceKind:     kind,
		FileType:       ext,
		ChunkingMethod: method,
		ChunkingConfig: configJSON,
	}
	if err := a.collections.Create(ctx, col); err != nil {
		return fmt.Errorf("creating collection: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Ingesting %s into collection %d (%s)...\n", abs, col.ID, kind)
	if err := a.pipeline.Run(ctx, col.ID); err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	done, err := a.collections.Get(ctx, col.ID)
	if err != nil {
		return err
	}
	if done.EmbeddingMeta != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Done: %d/%d rows embedded into %s\n",
			done.EmbeddingMeta.ProcessedRows, done.EmbeddingMeta.TotalRows, done.EmbeddingMeta.TableName)
	}
	return nil
}
