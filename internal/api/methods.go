package api

import (
	"net/http"

	"github.com/System-AI-Assistants/FocusML/internal/chunker"
)

// chunkingMethods handles GET /api/v1/chunking-methods — the catalog of
// available chunking strategies and their default configurations.
func chunkingMethods(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, chunker.Methods())
}
