// Package collection manages the catalog of ingested data collections:
// their source files, schema, chunking settings and embedding pipeline
// status.
package collection

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates no collection exists with the given id.
	ErrNotFound = errors.New("collection not found")

	// ErrInvalidTransition indicates a status update that the pipeline
	// lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Status is the embedding pipeline state of a collection.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// allowedFrom lists the states a transition into the key state may come
// from. Completed and failed collections may re-enter processing for a
// fresh ingestion attempt.
var allowedFrom = map[Status][]string{
	StatusProcessing: {string(StatusPending), string(StatusCompleted), string(StatusFailed)},
	StatusCompleted:  {string(StatusProcessing)},
	StatusFailed:     {string(StatusProcessing)},
}

// SourceKind classifies the uploaded file once, at upload time. All later
// pipeline decisions branch on it instead of re-inspecting extensions.
type SourceKind string

const (
	SourceTabular  SourceKind = "tabular"
	SourceDocument SourceKind = "document"
)

// KindForExtension maps a file extension (lowercase, no dot) to its
// source kind. The second return value is false for unsupported formats.
func KindForExtension(ext string) (SourceKind, bool) {
	switch ext {
	case "csv", "xlsx":
		return SourceTabular, true
	case "txt", "pdf", "docx":
		return SourceDocument, true
	}
	return "", false
}

// EmbeddingMeta records the outcome of the latest ingestion run. On
// success it names the vector table and the row accounting; on failure it
// carries the error text.
type EmbeddingMeta struct {
	TableName      string    `json:"table_name,omitempty"`
	ProcessedRows  int       `json:"processed_rows,omitempty"`
	TotalRows      int       `json:"total_rows,omitempty"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	ProcessedAt    time.Time `json:"processed_at,omitzero"`
	Error          string    `json:"error,omitempty"`
}

// Collection is one uploaded dataset or document.
type Collection struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	FilePath       string          `json:"file_path"`
	SourceKind     SourceKind      `json:"source_kind"`
	FileType       string          `json:"file_type"`
	Columns        []string        `json:"columns,omitempty"`
	RowCount       int             `json:"row_count"`
	ChunkingMethod string          `json:"chunking_method,omitempty"`
	ChunkingConfig json.RawMessage `json:"chunking_config,omitempty"`
	DocMetadata    map[string]any  `json:"doc_metadata,omitempty"`
	Status         Status          `json:"embeddings_status"`
	EmbeddingMeta  *EmbeddingMeta  `json:"embeddings_metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Ready reports whether the collection can serve retrieval queries.
func (c *Collection) Ready() bool {
	return c.Status == StatusCompleted && c.EmbeddingMeta != nil && c.EmbeddingMeta.TableName != ""
}
