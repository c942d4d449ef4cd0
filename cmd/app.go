package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/System-AI-Assistants/FocusML/internal/collection"
	"github.com/System-AI-Assistants/FocusML/internal/config"
	"github.com/System-AI-Assistants/FocusML/internal/database"
	"github.com/System-AI-Assistants/FocusML/internal/embedstore"
	"github.com/System-AI-Assistants/FocusML/internal/ingest"
	"github.com/System-AI-Assistants/FocusML/internal/log"
	"github.com/System-AI-Assistants/FocusML/internal/ollama"
	"github.com/System-AI-Assistants/FocusML/internal/parser"
	"github.com/System-AI-Assistants/FocusML/internal/retrieval"
)

// app holds the wired components every command needs.
type app struct {
	pool        *pgxpool.Pool
	collections *collection.Store
	embeds      *embedstore.Store
	parser      *parser.Parser
	client      *ollama.Client
	pipeline    *ingest.Pipeline
	registry    *ingest.Registry
	engine      *retrieval.Engine
}

// setupApp runs migrations, opens the pool and wires the stores, the
// ingestion pipeline and the retrieval engine.
func setupApp(ctx context.Context, cfg *config.Config, logger log.Logger) (*app, error) {
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connecting database: %w", err)
	}

	client := ollama.New(cfg.OllamaHost, cfg.RequestTimeout, logger.With("component", "ollama"))
	collections := collection.NewStore(pool, logger.With("component", "collections"))
	embeds := embedstore.NewStore(pool, client, logger.With("component", "embedstore"))
	docParser := parser.New(logger.With("component", "parser"))
	pipeline := ingest.NewPipeline(collections, embeds, docParser, cfg.EmbeddingModel,
		logger.With("component", "ingest"))
	registry := ingest.NewRegistry(pipeline, logger.With("component", "tasks"))
	engine := retrieval.NewEngine(pool, collections, client, cfg.EmbeddingModel, cfg.ChatModel,
		logger.With("component", "retrieval"))

	return &app{
		pool:        pool,
		collections: collections,
		embeds:      embeds,
		parser:      docParser,
		client:      client,
		pipeline:    pipeline,
		registry:    registry,
		engine:      engine,
	}, nil
}

// Close releases the database pool.
func (a *app) Close() {
	a.pool.Close()
}
