// Package api provides the JSON REST API for FocusML.
//
// The server uses Go 1.22+ method-pattern routing with a layered
// middleware stack:
//
//	Recovery → RequestID → Logging → RateLimit → Routes
//
// Health probes (/healthz, /readyz) bypass the middleware stack via a
// top-level mux so they stay fast.
//
// All responses use an envelope format:
//
//	Success: {"data": <payload>}
//	Error:   {"error": {"code": "...", "message": "..."}}
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/System-AI-Assistants/FocusML/internal/chunker"
)

// ServerConfig contains the dependencies of the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Collections collectionStore // Required
	Tasks       taskStarter     // Required
	Embeds      tableDropper    // Required
	Parser      documentParser  // Required
	Engine      answerer        // Required
	Pool        pinger          // Optional: nil degrades /readyz to liveness

	UploadDir             string
	DefaultChunkingMethod string // Defaults to the chunker's default
	TrustProxy            bool   // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst             int    // Rate limiter burst per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates an API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Collections == nil || cfg.Tasks == nil || cfg.Embeds == nil ||
		cfg.Parser == nil || cfg.Engine == nil {
		return nil, errors.New("collections, tasks, embeds, parser and engine are required")
	}
	if cfg.UploadDir == "" {
		return nil, errors.New("upload directory is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	defaultMethod := cfg.DefaultChunkingMethod
	if defaultMethod == "" {
		defaultMethod = string(chunker.DefaultMethod)
	}

	ch := &collectionsHandler{
		store:         cfg.Collections,
		tasks:         cfg.Tasks,
		embeds:        cfg.Embeds,
		docParser:     cfg.Parser,
		uploadDir:     cfg.UploadDir,
		defaultMethod: defaultMethod,
		logger:        logger,
	}
	rh := &ragHandler{engine: cfg.Engine, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/collections", ch.upload)
	mux.HandleFunc("GET /api/v1/collections", ch.list)
	mux.HandleFunc("GET /api/v1/collections/{id}", ch.get)
	mux.HandleFunc("GET /api/v1/collections/{id}/preview", ch.preview)
	mux.HandleFunc("DELETE /api/v1/collections/{id}", ch.remove)
	mux.HandleFunc("GET /api/v1/chunking-methods", chunkingMethods)
	mux.HandleFunc("POST /api/v1/rag", rh.ask)

	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first. RequestID runs before Logging so
	// request_id is available in log attributes.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /healthz", health)
	topMux.Handle("GET /readyz", readiness(cfg.Pool, logger))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
