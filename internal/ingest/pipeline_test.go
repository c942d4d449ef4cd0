package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/System-AI-Assistants/FocusML/internal/chunker"
	"github.com/System-AI-Assistants/FocusML/internal/collection"
	"github.com/System-AI-Assistants/FocusML/internal/embedstore"
	"github.com/System-AI-Assistants/FocusML/internal/log"
	"github.com/System-AI-Assistants/FocusML/internal/parser"
)

type fakeCollectionStore struct {
	col *collection.Collection

	statuses []collection.Status
	lastMeta *collection.EmbeddingMeta

	ingestColumns  []string
	ingestRowCount int
	ingestDocMeta  map[string]any
}

func (f *fakeCollectionStore) Get(_ context.Context, _ int64) (*collection.Collection, error) {
	return f.col, nil
}

func (f *fakeCollectionStore) UpdateIngestInfo(_ context.Context, _ int64, columns []string, rowCount int, docMetadata map[string]any) error {
	f.ingestColumns = columns
	f.ingestRowCount = rowCount
	f.ingestDocMeta = docMetadata
	return nil
}

func (f *fakeCollectionStore) UpdateStatus(_ context.Context, _ int64, to collection.Status, meta *collection.EmbeddingMeta) error {
	f.statuses = append(f.statuses, to)
	if meta != nil {
		f.lastMeta = meta
	}
	return nil
}

type fakeEmbeddingStore struct {
	tableName string
	model     string
	columns   []string
	rows      []map[string]string
	chunks    []chunker.Chunk
	doc       embedstore.DocumentInfo

	result *embedstore.Result
	err    error
}

func (f *fakeEmbeddingStore) ProcessTable(_ context.Context, tableName string, _ int64, model string, columns []string, rows []map[string]string) (*embedstore.Result, error) {
	f.tableName, f.model, f.columns, f.rows = tableName, model, columns, rows
	return f.result, f.err
}

func (f *fakeEmbeddingStore) ProcessChunks(_ context.Context, tableName string, _ int64, model string, chunks []chunker.Chunk, doc embedstore.DocumentInfo) (*embedstore.Result, error) {
	f.tableName, f.model, f.chunks, f.doc = tableName, model, chunks, doc
	return f.result, f.err
}

type fakeParser struct {
	doc *parser.ParsedDocument
	err error
}

func (f *fakeParser) Parse(_ string) (*parser.ParsedDocument, error) {
	return f.doc, f.err
}

func wantStatuses(t *testing.T, got []collection.Status, want ...collection.Status) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("status transitions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("status transitions = %v, want %v", got, want)
		}
	}
}

func TestRunTabular(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "people.csv")
	if err := os.WriteFile(path, []byte("name,age\nalice,30\nbob,25\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cols := &fakeCollectionStore{col: &collection.Collection{
		ID:         7,
		FilePath:   path,
		SourceKind: collection.SourceTabular,
		FileType:   "csv",
		Status:     collection.StatusPending,
	}}
	embeds := &fakeEmbeddingStore{result: &embedstore.Result{
		ProcessedRows: 2, TotalRows: 2, Timestamp: time.Now().UTC(),
	}}

	p := NewPipeline(cols, embeds, &fakeParser{}, "nomic-embed-text", log.NewNop())
	if err := p.Run(context.Background(), 7); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantStatuses(t, cols.statuses, collection.StatusProcessing, collection.StatusCompleted)
	if len(cols.ingestColumns) != 2 || cols.ingestColumns[0] != "name" || cols.ingestColumns[1] != "age" {
		t.Errorf("ingest columns = %v", cols.ingestColumns)
	}
	if cols.ingestRowCount != 2 {
		t.Errorf("ingest row count = %d, want 2", cols.ingestRowCount)
	}
	if embeds.tableName != "embeddings_collection_7" {
		t.Errorf("table name = %q", embeds.tableName)
	}
	if embeds.model != "nomic-embed-text" {
		t.Errorf("model = %q", embeds.model)
	}
	if len(embeds.rows) != 2 || embeds.rows[0]["name"] != "alice" {
		t.Errorf("rows = %v", embeds.rows)
	}

	meta := cols.lastMeta
	if meta == nil {
		t.Fatal("no embeddings metadata recorded")
	}
	if meta.TableName != "embeddings_collection_7" || meta.ProcessedRows != 2 || meta.TotalRows != 2 {
		t.Errorf("meta = %+v", meta)
	}
	if meta.EmbeddingModel != "nomic-embed-text" || meta.ProcessedAt.IsZero() {
		t.Errorf("meta = %+v", meta)
	}
}

func TestRunDocument(t *testing.T) {
	content := "First paragraph with enough words to stand alone as one chunk.\n\n" +
		"Second paragraph, also long enough to remain a separate chunk of text."

	cols := &fakeCollectionStore{col: &collection.Collection{
		ID:             3,
		FilePath:       "/uploads/report.txt",
		SourceKind:     collection.SourceDocument,
		FileType:       "txt",
		ChunkingMethod: "paragraph",
		ChunkingConfig: []byte(`{"min_paragraph_length": 10, "combine_short_paragraphs": false}`),
		Status:         collection.StatusPending,
	}}
	embeds := &fakeEmbeddingStore{result: &embedstore.Result{
		ProcessedRows: 2, TotalRows: 2, Timestamp: time.Now().UTC(),
	}}
	docParser := &fakeParser{doc: &parser.ParsedDocument{
		Content:  content,
		Metadata: map[string]any{"format": "txt"},
	}}

	p := NewPipeline(cols, embeds, docParser, "nomic-embed-text", log.NewNop())
	if err := p.Run(context.Background(), 3); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	wantStatuses(t, cols.statuses, collection.StatusProcessing, collection.StatusCompleted)
	if len(embeds.chunks) != 2 {
		t.Fatalf("got %d chunks, want 2", len(embeds.chunks))
	}
	for _, c := range embeds.chunks {
		if c.Metadata["method"] != "paragraph" {
			t.Errorf("chunk metadata = %v, want method paragraph", c.Metadata)
		}
	}
	if embeds.doc.Filename != "report.txt" || embeds.doc.FileType != "txt" {
		t.Errorf("document info = %+v", embeds.doc)
	}
	if cols.ingestRowCount != 2 {
		t.Errorf("ingest row count = %d, want the chunk count", cols.ingestRowCount)
	}
	if cols.ingestDocMeta["format"] != "txt" {
		t.Errorf("doc metadata = %v", cols.ingestDocMeta)
	}
}

func TestRunParseFailureRecordsFailed(t *testing.T) {
	parseErr := errors.New("failed to parse document")
	cols := &fakeCollectionStore{col: &collection.Collection{
		ID:         5,
		FilePath:   "/uploads/broken.pdf",
		SourceKind: collection.SourceDocument,
		FileType:   "pdf",
		Status:     collection.StatusPending,
	}}

	p := NewPipeline(cols, &fakeEmbeddingStore{}, &fakeParser{err: parseErr}, "m", log.NewNop())
	err := p.Run(context.Background(), 5)
	if !errors.Is(err, parseErr) {
		t.Fatalf("Run() error = %v, want the parse error", err)
	}

	wantStatuses(t, cols.statuses, collection.StatusProcessing, collection.StatusFailed)
	if cols.lastMeta == nil || cols.lastMeta.Error == "" {
		t.Errorf("failure metadata = %+v, want the error recorded", cols.lastMeta)
	}
}

func TestRunEmbeddingFailureRecordsFailed(t *testing.T) {
	embedErr := errors.New("embedding service unavailable")
	dir := t.TempDir()
	path := filepath.Join(dir, "data.csv")
	if err := os.WriteFile(path, []byte("a,b\n1,2\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cols := &fakeCollectionStore{col: &collection.Collection{
		ID:         9,
		FilePath:   path,
		SourceKind: collection.SourceTabular,
		FileType:   "csv",
		Status:     collection.StatusPending,
	}}

	p := NewPipeline(cols, &fakeEmbeddingStore{err: embedErr}, &fakeParser{}, "m", log.NewNop())
	if err := p.Run(context.Background(), 9); !errors.Is(err, embedErr) {
		t.Fatalf("Run() error = %v, want the embedding error", err)
	}
	wantStatuses(t, cols.statuses, collection.StatusProcessing, collection.StatusFailed)
}
