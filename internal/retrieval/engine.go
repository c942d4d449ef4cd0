// Package retrieval answers questions against a completed collection:
// nearest-neighbor search over its vector table, then a grounded chat
// completion over the retrieved rows.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/System-AI-Assistants/FocusML/internal/collection"
	"github.com/System-AI-Assistants/FocusML/internal/embedstore"
	"github.com/System-AI-Assistants/FocusML/internal/log"
	"github.com/System-AI-Assistants/FocusML/internal/ollama"
)

// ErrNotReady indicates the collection's embeddings are not completed, so
// there is nothing to search.
var ErrNotReady = errors.New("collection embeddings not ready")

// DefaultTopK is the number of sources retrieved when the request names
// none.
const DefaultTopK = 3

// systemPromptFormat binds the model to the retrieved context and
// explicitly allows "I don't know" as an answer.
const systemPromptFormat = `You are a helpful assistant that answers questions based on the provided context.
If you don't know the answer, just say that you don't know, don't try to make up an answer.

Context:
%s`

// excludedColumns never appear in retrieved sources.
var excludedColumns = map[string]bool{
	"id":         true,
	"embedding":  true,
	"created_at": true,
}

// CollectionGetter looks up collection records. *collection.Store
// satisfies this.
type CollectionGetter interface {
	Get(ctx context.Context, id int64) (*collection.Collection, error)
}

// ModelClient is the model-serving surface the engine needs.
// *ollama.Client satisfies this.
type ModelClient interface {
	Embed(ctx context.Context, model, input string) ([]float32, error)
	Chat(ctx context.Context, model string, messages []ollama.Message, opts *ollama.Options) (string, error)
}

// DB is the subset of pgxpool.Pool the engine needs.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Source is one retrieved row, lowest distance first. Content is the
// row's fields rendered as "column: value" lines; Fields carries them
// individually for citation.
type Source struct {
	Content  string            `json:"content"`
	Distance float64           `json:"distance"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// Answer is a grounded chat response with its supporting sources.
type Answer struct {
	Answer  string   `json:"answer"`
	Model   string   `json:"model"`
	Sources []Source `json:"sources"`
}

// Engine runs retrieval-augmented generation against collections.
type Engine struct {
	db          DB
	collections CollectionGetter
	model       ModelClient

	defaultEmbedModel string
	defaultChatModel  string
	logger            log.Logger
}

// NewEngine creates a retrieval engine. The default models apply when a
// collection predates model tracking or a request names no chat model.
func NewEngine(db DB, collections CollectionGetter, model ModelClient, defaultEmbedModel, defaultChatModel string, logger log.Logger) *Engine {
	return &Engine{
		db:                db,
		collections:       collections,
		model:             model,
		defaultEmbedModel: defaultEmbedModel,
		defaultChatModel:  defaultChatModel,
		logger:            logger,
	}
}

// Retrieve returns the topK nearest rows of the collection's vector table
// for the query text, ordered by cosine distance.
//
// The query is embedded with the model recorded at ingestion time;
// distances across different embedding models are meaningless, so a
// request can never supply its own embedding model.
func (e *Engine) Retrieve(ctx context.Context, collectionID int64, query string, topK int) ([]Source, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	col, err := e.collections.Get(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	if !col.Ready() {
		return nil, fmt.Errorf("%w: collection %d is %s", ErrNotReady, collectionID, col.Status)
	}

	embedModel := col.EmbeddingMeta.EmbeddingModel
	if embedModel == "" {
		embedModel = e.defaultEmbedModel
	}

	vec, err := e.model.Embed(ctx, embedModel, query)
	if err != nil {
		return nil, err
	}

	table := embedstore.SanitizeIdentifier(col.EmbeddingMeta.TableName)
	columns, err := e.queryableColumns(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("no queryable columns in table %s", table)
	}

	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = fmt.Sprintf("t.%q", col)
	}
	searchSQL := fmt.Sprintf(`
		SELECT %s, t.embedding <=> $1 AS distance
		FROM %q t
		ORDER BY distance
		LIMIT $2`, strings.Join(quoted, ", "), table)

	rows, err := e.db.Query(ctx, searchSQL, pgvector.NewVector(vec), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", table, err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		sources = append(sources, src)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate search results: %w", err)
	}

	e.logger.Info("retrieved sources",
		"collection_id", collectionID, "top_k", topK, "results", len(sources))
	return sources, nil
}

// Ask retrieves topK sources and asks the chat model for an answer
// grounded in them. opts are passed through to the model unchanged.
func (e *Engine) Ask(ctx context.Context, collectionID int64, question string, topK int, chatModel string, opts *ollama.Options) (*Answer, error) {
	sources, err := e.Retrieve(ctx, collectionID, question, topK)
	if err != nil {
		return nil, err
	}

	parts := make([]string, len(sources))
	for i, src := range sources {
		parts[i] = src.Content
	}
	systemPrompt := fmt.Sprintf(systemPromptFormat, strings.Join(parts, "\n\n"))

	if chatModel == "" {
		chatModel = e.defaultChatModel
	}
	answer, err := e.model.Chat(ctx, chatModel, []ollama.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: question},
	}, opts)
	if err != nil {
		return nil, err
	}

	return &Answer{Answer: answer, Model: chatModel, Sources: sources}, nil
}

// queryableColumns introspects the vector table at query time so columns
// added after ingestion still surface.
func (e *Engine) queryableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := e.db.Query(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to introspect table %s: %w", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, fmt.Errorf("failed to scan column name: %w", err)
		}
		if !excludedColumns[col] {
			columns = append(columns, col)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate columns of %s: %w", table, err)
	}
	return columns, nil
}

// scanSource turns the current row into a Source. NULL cells are skipped
// so tabular rows (whose content column is unused) render cleanly.
func scanSource(rows pgx.Rows) (Source, error) {
	values, err := rows.Values()
	if err != nil {
		return Source{}, err
	}

	src := Source{Fields: make(map[string]string)}
	var lines []string
	for i, fd := range rows.FieldDescriptions() {
		name := string(fd.Name)
		if name == "distance" {
			src.Distance = toFloat64(values[i])
			continue
		}
		if values[i] == nil {
			continue
		}
		text := stringify(values[i])
		src.Fields[name] = text
		lines = append(lines, name+": "+text)
	}
	src.Content = strings.Join(lines, "\n")
	return src, nil
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	}
	return 0
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}
