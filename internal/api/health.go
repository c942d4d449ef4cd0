package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// pinger is the liveness surface of the database pool. *pgxpool.Pool
// satisfies this.
type pinger interface {
	Ping(ctx context.Context) error
}

// health handles GET /healthz for container probes.
func health(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readiness handles GET /readyz. With a pool configured it pings the
// database; without one it degrades to a plain liveness answer.
func readiness(pool pinger, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := pool.Ping(ctx); err != nil {
				logger.Warn("readiness ping failed", "error", err)
				WriteError(w, http.StatusServiceUnavailable, "db_unavailable", "database not reachable", logger)
				return
			}
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}
