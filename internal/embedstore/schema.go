package embedstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// EnsureTable makes sure the vector table for a tabular collection exists
// with one nullable text column per source column. An existing table is
// evolved additively: new source columns become ALTER TABLE ADD COLUMN,
// existing columns are never dropped or retyped. A conflicting embedding
// dimensionality fails with ErrSchemaMismatch.
func (s *Store) EnsureTable(ctx context.Context, tableName string, columns []string) error {
	tableName = SanitizeIdentifier(tableName)
	cols := sourceColumns(columns)

	exists, err := s.tableExists(ctx, tableName)
	if err != nil {
		return err
	}

	if !exists {
		defs := []string{"id SERIAL PRIMARY KEY", "content TEXT"}
		for _, col := range cols {
			defs = append(defs, quoteIdent(col)+" TEXT")
		}
		defs = append(defs,
			fmt.Sprintf("embedding VECTOR(%d)", VectorDimension),
			"created_at TIMESTAMPTZ DEFAULT NOW()",
			"collection_id INTEGER",
		)

		create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(tableName), strings.Join(defs, ", "))
		if _, err := s.db.Exec(ctx, create); err != nil {
			return fmt.Errorf("failed to create table %s: %w", tableName, err)
		}
		s.logger.Info("created embeddings table", "table", tableName, "columns", len(cols))
		return nil
	}

	if err := s.checkEmbeddingDimension(ctx, tableName); err != nil {
		return err
	}

	existing, err := s.tableColumns(ctx, tableName)
	if err != nil {
		return err
	}
	existingSet := make(map[string]bool, len(existing))
	for _, col := range existing {
		existingSet[col] = true
	}

	for _, col := range cols {
		if existingSet[col] {
			continue
		}
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s TEXT",
			quoteIdent(tableName), quoteIdent(col))
		if _, err := s.db.Exec(ctx, alter); err != nil {
			return fmt.Errorf("failed to add column %s to %s: %w", col, tableName, err)
		}
		s.logger.Info("added column to embeddings table", "table", tableName, "column", col)
	}
	return nil
}

// EnsureDocumentTable makes sure the vector table for a document
// collection exists. Document tables have a fixed chunk schema, so an
// existing table only gets its dimensionality verified.
func (s *Store) EnsureDocumentTable(ctx context.Context, tableName string) error {
	tableName = SanitizeIdentifier(tableName)

	exists, err := s.tableExists(ctx, tableName)
	if err != nil {
		return err
	}
	if exists {
		return s.checkEmbeddingDimension(ctx, tableName)
	}

	create := fmt.Sprintf(`CREATE TABLE %s (
		id SERIAL PRIMARY KEY,
		chunk_index INTEGER,
		content TEXT NOT NULL,
		start_char INTEGER,
		end_char INTEGER,
		chunking_method TEXT,
		filename TEXT,
		file_type TEXT,
		embedding VECTOR(%d),
		created_at TIMESTAMPTZ DEFAULT NOW(),
		collection_id INTEGER,
		metadata JSONB
	)`, quoteIdent(tableName), VectorDimension)
	if _, err := s.db.Exec(ctx, create); err != nil {
		return fmt.Errorf("failed to create document table %s: %w", tableName, err)
	}
	s.logger.Info("created document embeddings table", "table", tableName)
	return nil
}

// DropTable removes a collection's vector table if it exists.
func (s *Store) DropTable(ctx context.Context, tableName string) error {
	tableName = SanitizeIdentifier(tableName)
	if _, err := s.db.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteIdent(tableName))); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", tableName, err)
	}
	s.logger.Info("dropped embeddings table", "table", tableName)
	return nil
}

func (s *Store) tableExists(ctx context.Context, tableName string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)`, tableName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", tableName, err)
	}
	return exists, nil
}

// tableColumns returns the column names of a table in ordinal order.
func (s *Store) tableColumns(ctx context.Context, tableName string) ([]string, error) {
	rows, err := s.db.Query(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, tableName)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect table %s: %w", tableName, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, fmt.Errorf("failed to scan column name: %w", err)
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate columns of %s: %w", tableName, err)
	}
	return columns, nil
}

// checkEmbeddingDimension verifies the existing embedding column has the
// expected vector width.
func (s *Store) checkEmbeddingDimension(ctx context.Context, tableName string) error {
	var typ string
	err := s.db.QueryRow(ctx, `
		SELECT format_type(atttypid, atttypmod)
		FROM pg_attribute
		WHERE attrelid = $1::regclass AND attname = 'embedding' AND NOT attisdropped`,
		tableName).Scan(&typ)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: table %s has no embedding column", ErrSchemaMismatch, tableName)
		}
		return fmt.Errorf("failed to check embedding column of %s: %w", tableName, err)
	}

	want := fmt.Sprintf("vector(%d)", VectorDimension)
	if typ != want {
		return fmt.Errorf("%w: table %s has embedding type %s, want %s",
			ErrSchemaMismatch, tableName, typ, want)
	}
	return nil
}
