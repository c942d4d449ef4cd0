package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/System-AI-Assistants/FocusML/internal/collection"
	"github.com/System-AI-Assistants/FocusML/internal/ollama"
	"github.com/System-AI-Assistants/FocusML/internal/retrieval"
)

const maxRAGBodyBytes = 1 << 20

// answerer runs retrieval-augmented generation. *retrieval.Engine
// satisfies this.
type answerer interface {
	Ask(ctx context.Context, collectionID int64, question string, topK int, chatModel string, opts *ollama.Options) (*retrieval.Answer, error)
}

type ragHandler struct {
	engine answerer
	logger *slog.Logger
}

type ragRequest struct {
	CollectionID int64            `json:"collection_id"`
	Messages     []ollama.Message `json:"messages"`
	Model        string           `json:"model,omitempty"`
	TopK         int              `json:"top_k,omitempty"`
}

type ragResponse struct {
	Response string             `json:"response"`
	Model    string             `json:"model"`
	Sources  []retrieval.Source `json:"sources"`
}

// ask handles POST /api/v1/rag. The question is the latest user message;
// earlier messages are accepted for client convenience but retrieval is
// single-turn.
func (h *ragHandler) ask(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRAGBodyBytes)

	var req ragRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_json", "could not decode request body", h.logger)
		return
	}
	if req.CollectionID <= 0 {
		WriteError(w, http.StatusBadRequest, "invalid_collection_id", "collection_id is required", h.logger)
		return
	}

	question := lastUserMessage(req.Messages)
	if question == "" {
		WriteError(w, http.StatusBadRequest, "missing_question", "messages must contain a user message", h.logger)
		return
	}

	answer, err := h.engine.Ask(r.Context(), req.CollectionID, question, req.TopK, req.Model, nil)
	if err != nil {
		h.writeAskError(w, req.CollectionID, err)
		return
	}

	WriteJSON(w, http.StatusOK, ragResponse{
		Response: answer.Answer,
		Model:    answer.Model,
		Sources:  answer.Sources,
	})
}

func (h *ragHandler) writeAskError(w http.ResponseWriter, collectionID int64, err error) {
	switch {
	case errors.Is(err, collection.ErrNotFound):
		WriteError(w, http.StatusNotFound, "collection_not_found", "collection not found", h.logger)
	case errors.Is(err, retrieval.ErrNotReady):
		WriteError(w, http.StatusConflict, "not_ready", "collection embeddings are not ready", h.logger)
	case errors.Is(err, ollama.ErrUnavailable):
		WriteError(w, http.StatusServiceUnavailable, "model_unavailable", "model service unavailable", h.logger)
	case errors.Is(err, ollama.ErrGenerationFailure):
		WriteError(w, http.StatusBadGateway, "generation_failed", "model failed to generate an answer", h.logger)
	default:
		h.logger.Error("rag request failed", "collection_id", collectionID, "error", err)
		WriteError(w, http.StatusInternalServerError, "rag_failed", "failed to answer question", h.logger)
	}
}

// lastUserMessage returns the content of the latest user-role message.
func lastUserMessage(messages []ollama.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}
