package collection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/System-AI-Assistants/FocusML/internal/log"
)

// DB is the subset of pgxpool.Pool the store needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store persists collections in the data_collections table.
type Store struct {
	db     DB
	logger log.Logger
}

// NewStore creates a collection store.
func NewStore(db DB, logger log.Logger) *Store {
	return &Store{db: db, logger: logger}
}

const collectionColumns = `id, name, file_path, source_kind, file_type, columns, row_count,
	chunking_method, chunking_config, doc_metadata, embeddings_status, embeddings_metadata,
	created_at, updated_at`

// Create inserts a new collection and fills in its generated fields.
func (s *Store) Create(ctx context.Context, c *Collection) error {
	columnsJSON, err := marshalNullable(c.Columns)
	if err != nil {
		return fmt.Errorf("failed to encode columns: %w", err)
	}
	docMetaJSON, err := marshalNullable(c.DocMetadata)
	if err != nil {
		return fmt.Errorf("failed to encode doc metadata: %w", err)
	}

	if c.Status == "" {
		c.Status = StatusPending
	}

	err = s.db.QueryRow(ctx, `
		INSERT INTO data_collections
			(name, file_path, source_kind, file_type, columns, row_count,
			 chunking_method, chunking_config, doc_metadata, embeddings_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`,
		c.Name, c.FilePath, c.SourceKind, c.FileType, columnsJSON, c.RowCount,
		nullableString(c.ChunkingMethod), nullableRaw(c.ChunkingConfig), docMetaJSON, c.Status,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	s.logger.Info("collection created", "id", c.ID, "name", c.Name, "kind", c.SourceKind)
	return nil
}

// Get fetches one collection by id.
func (s *Store) Get(ctx context.Context, id int64) (*Collection, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+collectionColumns+` FROM data_collections WHERE id = $1`, id)

	c, err := scanCollection(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return c, nil
}

// List returns all collections, newest first.
func (s *Store) List(ctx context.Context) ([]*Collection, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+collectionColumns+` FROM data_collections ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list collections: %w", err)
	}
	defer rows.Close()

	var out []*Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate collections: %w", err)
	}
	return out, nil
}

// UpdateIngestInfo records the parsed schema and row count discovered
// during ingestion.
func (s *Store) UpdateIngestInfo(ctx context.Context, id int64, columns []string, rowCount int, docMetadata map[string]any) error {
	columnsJSON, err := marshalNullable(columns)
	if err != nil {
		return fmt.Errorf("failed to encode columns: %w", err)
	}
	docMetaJSON, err := marshalNullable(docMetadata)
	if err != nil {
		return fmt.Errorf("failed to encode doc metadata: %w", err)
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE data_collections
		SET columns = $2, row_count = $3, doc_metadata = COALESCE($4, doc_metadata), updated_at = NOW()
		WHERE id = $1`,
		id, columnsJSON, rowCount, docMetaJSON)
	if err != nil {
		return fmt.Errorf("failed to update collection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return nil
}

// UpdateStatus moves the collection to a new pipeline state, enforcing
// the lifecycle (pending -> processing -> completed|failed, with
// completed/failed re-enterable into processing). A non-nil meta replaces
// the stored embeddings metadata.
func (s *Store) UpdateStatus(ctx context.Context, id int64, to Status, meta *EmbeddingMeta) error {
	from, ok := allowedFrom[to]
	if !ok {
		return fmt.Errorf("%w: cannot transition into %q", ErrInvalidTransition, to)
	}

	var metaJSON []byte
	if meta != nil {
		var err error
		metaJSON, err = json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("failed to encode embeddings metadata: %w", err)
		}
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE data_collections
		SET embeddings_status = $2,
		    embeddings_metadata = COALESCE($3, embeddings_metadata),
		    updated_at = NOW()
		WHERE id = $1 AND embeddings_status = ANY($4)`,
		id, to, nullableRaw(metaJSON), from)
	if err != nil {
		return fmt.Errorf("failed to update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := s.Get(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("%w: collection %d is not in %v", ErrInvalidTransition, id, from)
	}

	s.logger.Info("collection status updated", "id", id, "status", to)
	return nil
}

// Delete removes the collection record.
func (s *Store) Delete(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM data_collections WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	s.logger.Info("collection deleted", "id", id)
	return nil
}

// scanCollection reads one row in collectionColumns order.
func scanCollection(row pgx.Row) (*Collection, error) {
	var (
		c              Collection
		columnsJSON    []byte
		chunkingMethod *string
		chunkingConfig []byte
		docMetaJSON    []byte
		metaJSON       []byte
	)
	err := row.Scan(&c.ID, &c.Name, &c.FilePath, &c.SourceKind, &c.FileType,
		&columnsJSON, &c.RowCount, &chunkingMethod, &chunkingConfig, &docMetaJSON,
		&c.Status, &metaJSON, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if chunkingMethod != nil {
		c.ChunkingMethod = *chunkingMethod
	}
	c.ChunkingConfig = chunkingConfig
	if columnsJSON != nil {
		if err := json.Unmarshal(columnsJSON, &c.Columns); err != nil {
			return nil, fmt.Errorf("invalid columns json: %w", err)
		}
	}
	if docMetaJSON != nil {
		if err := json.Unmarshal(docMetaJSON, &c.DocMetadata); err != nil {
			return nil, fmt.Errorf("invalid doc metadata json: %w", err)
		}
	}
	if metaJSON != nil {
		c.EmbeddingMeta = &EmbeddingMeta{}
		if err := json.Unmarshal(metaJSON, c.EmbeddingMeta); err != nil {
			return nil, fmt.Errorf("invalid embeddings metadata json: %w", err)
		}
	}
	return &c, nil
}

// marshalNullable encodes v as JSON, passing nil through as SQL NULL.
func marshalNullable(v any) ([]byte, error) {
	switch val := v.(type) {
	case []string:
		if val == nil {
			return nil, nil
		}
	case map[string]any:
		if val == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableRaw(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return b
}
