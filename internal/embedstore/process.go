package embedstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/pgvector/pgvector-go"

	"github.com/System-AI-Assistants/FocusML/internal/chunker"
)

const (
	// tabularBatchSize is the rows-per-transaction for tabular ingestion.
	tabularBatchSize = 100

	// chunkBatchSize is smaller because document chunks are longer and
	// the embedding calls dominate the batch time.
	chunkBatchSize = 50
)

// Result is the accounting of one ingestion run. ProcessedRows can be
// lower than TotalRows when individual batches failed to commit or chunks
// were empty; that partial state is recorded on the collection, never
// hidden.
type Result struct {
	ProcessedRows int       `json:"processed_rows"`
	TotalRows     int       `json:"total_rows"`
	Timestamp     time.Time `json:"timestamp"`
}

// DocumentInfo travels with every chunk row of a document collection.
type DocumentInfo struct {
	Filename string
	FileType string
}

// ProcessTable embeds and inserts tabular rows into tableName in batches
// of 100, one transaction per batch.
//
// The embedding input for a row concatenates its columns as
// "col: value | col: value" in column order. An embedding call failure
// aborts the run (already committed batches stay durable); a batch that
// fails to commit is logged and skipped, and the shortfall shows up in
// the Result.
func (s *Store) ProcessTable(ctx context.Context, tableName string, collectionID int64, model string, columns []string, rows []map[string]string) (*Result, error) {
	if len(rows) == 0 {
		return nil, ErrEmptyInput
	}

	tableName = SanitizeIdentifier(tableName)
	cols := sourceColumns(columns)
	if err := s.EnsureTable(ctx, tableName, cols); err != nil {
		return nil, err
	}

	insertSQL := buildRowInsert(tableName, cols)

	result := &Result{TotalRows: len(rows)}
	for start := 0; start < len(rows); start += tabularBatchSize {
		end := start + tabularBatchSize
		if end > len(rows) {
			end = len(rows)
		}

		committed, err := s.insertRowBatch(ctx, insertSQL, model, collectionID, columns, cols, rows[start:end])
		if err != nil {
			return nil, err
		}
		result.ProcessedRows += committed
		s.logger.Info("committed batch",
			"table", tableName,
			"processed", result.ProcessedRows,
			"total", result.TotalRows)
	}

	result.Timestamp = time.Now().UTC()
	return result, nil
}

// insertRowBatch runs one transaction. It returns the number of rows the
// batch durably committed: the full batch, or zero when the commit
// failed and the batch was skipped.
func (s *Store) insertRowBatch(ctx context.Context, insertSQL, model string, collectionID int64, rawColumns, cols []string, batch []map[string]string) (int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, row := range batch {
		input := buildEmbeddingInput(rawColumns, row)
		vec, err := s.embedder.Embed(ctx, model, input)
		if err != nil {
			return 0, fmt.Errorf("failed to embed row: %w", err)
		}

		args := make([]any, 0, len(cols)+2)
		for _, col := range cols {
			args = append(args, rowValue(rawColumns, row, col))
		}
		args = append(args, collectionID, pgvector.NewVector(vec))

		if _, err := tx.Exec(ctx, insertSQL, args...); err != nil {
			s.logger.Error("batch insert failed, skipping batch", "error", err)
			return 0, nil
		}
	}

	if err := tx.Commit(ctx); err != nil {
		s.logger.Error("batch commit failed, skipping batch", "error", err)
		return 0, nil
	}
	return len(batch), nil
}

// ProcessChunks embeds and inserts document chunks into tableName in
// batches of 50. Empty chunks are skipped but still counted in TotalRows.
func (s *Store) ProcessChunks(ctx context.Context, tableName string, collectionID int64, model string, chunks []chunker.Chunk, doc DocumentInfo) (*Result, error) {
	if len(chunks) == 0 {
		return nil, ErrEmptyInput
	}

	tableName = SanitizeIdentifier(tableName)
	if err := s.EnsureDocumentTable(ctx, tableName); err != nil {
		return nil, err
	}

	insertSQL := fmt.Sprintf(`INSERT INTO %s
		(chunk_index, content, start_char, end_char, chunking_method,
		 filename, file_type, collection_id, metadata, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, quoteIdent(tableName))

	result := &Result{TotalRows: len(chunks)}
	for start := 0; start < len(chunks); start += chunkBatchSize {
		end := start + chunkBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		committed, err := s.insertChunkBatch(ctx, insertSQL, model, collectionID, chunks[start:end], doc)
		if err != nil {
			return nil, err
		}
		result.ProcessedRows += committed
		s.logger.Info("committed chunk batch",
			"table", tableName,
			"processed", result.ProcessedRows,
			"total", result.TotalRows)
	}

	result.Timestamp = time.Now().UTC()
	return result, nil
}

func (s *Store) insertChunkBatch(ctx context.Context, insertSQL, model string, collectionID int64, batch []chunker.Chunk, doc DocumentInfo) (int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin batch transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, chunk := range batch {
		if strings.TrimSpace(chunk.Content) == "" {
			s.logger.Warn("skipping empty chunk", "index", chunk.Index)
			continue
		}

		vec, err := s.embedder.Embed(ctx, model, chunk.Content)
		if err != nil {
			return 0, fmt.Errorf("failed to embed chunk %d: %w", chunk.Index, err)
		}

		var metaJSON []byte
		if len(chunk.Metadata) > 0 {
			metaJSON, err = json.Marshal(chunk.Metadata)
			if err != nil {
				return 0, fmt.Errorf("failed to encode chunk metadata: %w", err)
			}
		}

		_, err = tx.Exec(ctx, insertSQL,
			chunk.Index, chunk.Content, chunk.StartChar, chunk.EndChar,
			stringMeta(chunk.Metadata, "method"), doc.Filename, doc.FileType,
			collectionID, metaJSON, pgvector.NewVector(vec))
		if err != nil {
			s.logger.Error("chunk batch insert failed, skipping batch", "error", err)
			return 0, nil
		}
		inserted++
	}

	if err := tx.Commit(ctx); err != nil {
		s.logger.Error("chunk batch commit failed, skipping batch", "error", err)
		return 0, nil
	}
	return inserted, nil
}

// buildRowInsert builds the parameterized insert for a tabular collection:
// data columns, then collection_id, then the embedding vector.
func buildRowInsert(tableName string, cols []string) string {
	names := make([]string, 0, len(cols)+2)
	params := make([]string, 0, len(cols)+2)
	for i, col := range cols {
		names = append(names, quoteIdent(col))
		params = append(params, fmt.Sprintf("$%d", i+1))
	}
	names = append(names, "collection_id", "embedding")
	params = append(params, fmt.Sprintf("$%d", len(cols)+1), fmt.Sprintf("$%d", len(cols)+2))

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(tableName), strings.Join(names, ", "), strings.Join(params, ", "))
}

// buildEmbeddingInput concatenates a row's fields as
// "col: value | col: value" in column order. Missing cells embed as NULL
// so the field position still carries signal.
func buildEmbeddingInput(columns []string, row map[string]string) string {
	parts := make([]string, 0, len(columns))
	for _, col := range columns {
		value, ok := row[col]
		if !ok || value == "" {
			value = "NULL"
		}
		parts = append(parts, col+": "+value)
	}
	return strings.Join(parts, " | ")
}

// rowValue resolves the cell for a sanitized column name; row maps are
// keyed with the raw header spelling.
func rowValue(rawColumns []string, row map[string]string, sanitized string) any {
	if v, ok := row[sanitized]; ok {
		return v
	}
	for _, raw := range rawColumns {
		if SanitizeIdentifier(raw) == sanitized {
			if v, ok := row[raw]; ok {
				return v
			}
		}
	}
	return nil
}

func stringMeta(meta map[string]any, key string) string {
	if meta == nil {
		return ""
	}
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}
