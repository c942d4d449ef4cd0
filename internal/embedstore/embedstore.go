// Package embedstore owns the per-collection vector tables: their schema,
// schema evolution when a re-ingested source grew new columns, and the
// batched, transactional embedding inserts that fill them.
package embedstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/System-AI-Assistants/FocusML/internal/log"
)

// VectorDimension is the embedding width every vector table uses. It must
// match the output of the configured embedding model.
const VectorDimension = 768

var (
	// ErrSchemaMismatch indicates an existing table whose embedding column
	// has a different dimensionality. Auto-migrating vectors is out of
	// scope; the table must be dropped or the model changed.
	ErrSchemaMismatch = errors.New("embedding table schema mismatch")

	// ErrEmptyInput indicates there was nothing to embed.
	ErrEmptyInput = errors.New("no rows to embed")
)

// reservedColumns are managed by the store itself; source columns with
// these names are skipped rather than duplicated.
var reservedColumns = map[string]bool{
	"id":            true,
	"content":       true,
	"embedding":     true,
	"created_at":    true,
	"collection_id": true,
}

// Embedder turns text into an embedding vector using a named model.
// *ollama.Client satisfies this.
type Embedder interface {
	Embed(ctx context.Context, model, input string) ([]float32, error)
}

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store manages vector tables and their contents.
type Store struct {
	db       DB
	embedder Embedder
	logger   log.Logger
}

// NewStore creates an embedding store.
func NewStore(db DB, embedder Embedder, logger log.Logger) *Store {
	return &Store{db: db, embedder: embedder, logger: logger}
}

// TableName returns the vector table name for a collection.
func TableName(collectionID int64) string {
	return fmt.Sprintf("embeddings_collection_%d", collectionID)
}

// SanitizeIdentifier reduces an arbitrary column or table name to a safe
// SQL identifier: lowercase, [a-z0-9_] only, no leading digit, at most 63
// bytes (the PostgreSQL identifier limit). Identifiers still get quoted
// at use sites; this keeps them stable and readable.
func SanitizeIdentifier(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if s == "" {
		s = "col"
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "_" + s
	}
	if len(s) > 63 {
		s = s[:63]
	}
	return s
}

// quoteIdent wraps an already-sanitized identifier in double quotes.
func quoteIdent(name string) string {
	return `"` + name + `"`
}

// sourceColumns sanitizes the given column names and drops reserved ones,
// preserving order and removing duplicates introduced by sanitizing.
func sourceColumns(columns []string) []string {
	seen := make(map[string]bool, len(columns))
	out := make([]string, 0, len(columns))
	for _, col := range columns {
		s := SanitizeIdentifier(col)
		if reservedColumns[s] || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
