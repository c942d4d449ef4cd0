// Package ingest turns an uploaded collection into a searchable vector
// table: it parses the source file, chunks or tabulates it, embeds the
// pieces and records the outcome on the collection, moving its status
// through processing to completed or failed.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/System-AI-Assistants/FocusML/internal/chunker"
	"github.com/System-AI-Assistants/FocusML/internal/collection"
	"github.com/System-AI-Assistants/FocusML/internal/embedstore"
	"github.com/System-AI-Assistants/FocusML/internal/log"
	"github.com/System-AI-Assistants/FocusML/internal/parser"
	"github.com/System-AI-Assistants/FocusML/internal/tabular"
)

// CollectionStore is the catalog surface the pipeline needs.
// *collection.Store satisfies this.
type CollectionStore interface {
	Get(ctx context.Context, id int64) (*collection.Collection, error)
	UpdateIngestInfo(ctx context.Context, id int64, columns []string, rowCount int, docMetadata map[string]any) error
	UpdateStatus(ctx context.Context, id int64, to collection.Status, meta *collection.EmbeddingMeta) error
}

// EmbeddingStore writes embedded rows and chunks. *embedstore.Store
// satisfies this.
type EmbeddingStore interface {
	ProcessTable(ctx context.Context, tableName string, collectionID int64, model string, columns []string, rows []map[string]string) (*embedstore.Result, error)
	ProcessChunks(ctx context.Context, tableName string, collectionID int64, model string, chunks []chunker.Chunk, doc embedstore.DocumentInfo) (*embedstore.Result, error)
}

// DocumentParser extracts text from document files. *parser.Parser
// satisfies this.
type DocumentParser interface {
	Parse(path string) (*parser.ParsedDocument, error)
}

// Pipeline runs ingestion for one collection at a time.
type Pipeline struct {
	collections CollectionStore
	embeds      EmbeddingStore
	parser      DocumentParser
	embedModel  string
	logger      log.Logger
}

// NewPipeline creates an ingestion pipeline. embedModel names the
// embedding model every run uses; it is recorded on the collection so
// retrieval embeds queries with the same model.
func NewPipeline(collections CollectionStore, embeds EmbeddingStore, docParser DocumentParser, embedModel string, logger log.Logger) *Pipeline {
	return &Pipeline{
		collections: collections,
		embeds:      embeds,
		parser:      docParser,
		embedModel:  embedModel,
		logger:      logger,
	}
}

// Run ingests the collection end to end. The collection moves to
// processing first; any failure moves it to failed with the error text
// recorded, success moves it to completed with the run's accounting.
func (p *Pipeline) Run(ctx context.Context, collectionID int64) error {
	col, err := p.collections.Get(ctx, collectionID)
	if err != nil {
		return err
	}
	if err := p.collections.UpdateStatus(ctx, collectionID, collection.StatusProcessing, nil); err != nil {
		return err
	}

	result, err := p.process(ctx, col)
	if err != nil {
		p.logger.Error("ingestion failed",
			"collection_id", collectionID, "kind", col.SourceKind, "error", err)
		failMeta := &collection.EmbeddingMeta{
			TableName:      embedstore.TableName(collectionID),
			EmbeddingModel: p.embedModel,
			Error:          err.Error(),
		}
		if updErr := p.collections.UpdateStatus(ctx, collectionID, collection.StatusFailed, failMeta); updErr != nil {
			p.logger.Error("failed to record ingestion failure",
				"collection_id", collectionID, "error", updErr)
		}
		return err
	}

	meta := &collection.EmbeddingMeta{
		TableName:      embedstore.TableName(collectionID),
		ProcessedRows:  result.ProcessedRows,
		TotalRows:      result.TotalRows,
		EmbeddingModel: p.embedModel,
		ProcessedAt:    result.Timestamp,
	}
	if err := p.collections.UpdateStatus(ctx, collectionID, collection.StatusCompleted, meta); err != nil {
		return err
	}

	p.logger.Info("ingestion completed",
		"collection_id", collectionID,
		"processed", result.ProcessedRows,
		"total", result.TotalRows)
	return nil
}

func (p *Pipeline) process(ctx context.Context, col *collection.Collection) (*embedstore.Result, error) {
	switch col.SourceKind {
	case collection.SourceTabular:
		return p.processTabular(ctx, col)
	case collection.SourceDocument:
		return p.processDocument(ctx, col)
	default:
		return nil, fmt.Errorf("unknown source kind %q", col.SourceKind)
	}
}

func (p *Pipeline) processTabular(ctx context.Context, col *collection.Collection) (*embedstore.Result, error) {
	table, err := tabular.Read(col.FilePath, col.FileType)
	if err != nil {
		return nil, err
	}

	if err := p.collections.UpdateIngestInfo(ctx, col.ID, table.Columns, len(table.Rows), nil); err != nil {
		return nil, err
	}

	return p.embeds.ProcessTable(ctx, embedstore.TableName(col.ID), col.ID, p.embedModel, table.Columns, table.Rows)
}

func (p *Pipeline) processDocument(ctx context.Context, col *collection.Collection) (*embedstore.Result, error) {
	doc, err := p.parser.Parse(col.FilePath)
	if err != nil {
		return nil, err
	}

	method, known := chunker.ParseMethod(col.ChunkingMethod)
	if col.ChunkingMethod != "" && !known {
		p.logger.Warn("unknown chunking method, using default",
			"collection_id", col.ID, "method", col.ChunkingMethod)
	}

	var cfg *chunker.Config
	if len(col.ChunkingConfig) > 0 {
		cfg = &chunker.Config{}
		if err := json.Unmarshal(col.ChunkingConfig, cfg); err != nil {
			return nil, fmt.Errorf("invalid chunking config: %w", err)
		}
	}

	chunks, err := chunker.Split(doc.Content, method, cfg)
	if err != nil {
		return nil, err
	}
	for i := range chunks {
		if chunks[i].Metadata == nil {
			chunks[i].Metadata = make(map[string]any, 1)
		}
		chunks[i].Metadata["method"] = string(method)
	}

	if err := p.collections.UpdateIngestInfo(ctx, col.ID, nil, len(chunks), doc.Metadata); err != nil {
		return nil, err
	}

	info := embedstore.DocumentInfo{
		Filename: filepath.Base(col.FilePath),
		FileType: col.FileType,
	}
	return p.embeds.ProcessChunks(ctx, embedstore.TableName(col.ID), col.ID, p.embedModel, chunks, info)
}
