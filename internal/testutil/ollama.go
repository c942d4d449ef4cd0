package testutil

import (
	"encoding/json"
	"hash/fnv"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/System-AI-Assistants/FocusML/internal/embedstore"
)

// MockOllama is a fake model daemon for tests. Embeddings are a
// deterministic normalized bag-of-words projection, so texts sharing
// words land close in cosine distance and keyword retrieval behaves
// realistically without a real model.
type MockOllama struct {
	Server *httptest.Server

	// ChatResponse is returned verbatim from /api/chat. When empty, the
	// daemon answers with the latest user message echoed back.
	ChatResponse string

	EmbedCalls atomic.Int32
	ChatCalls  atomic.Int32
}

// NewMockOllama starts the mock daemon. Cleanup is automatic.
func NewMockOllama(t *testing.T) *MockOllama {
	t.Helper()

	m := &MockOllama{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/embed", m.handleEmbed)
	mux.HandleFunc("POST /api/chat", m.handleChat)

	m.Server = httptest.NewServer(mux)
	t.Cleanup(m.Server.Close)
	return m
}

// URL returns the daemon's base URL for client configuration.
func (m *MockOllama) URL() string {
	return m.Server.URL
}

func (m *MockOllama) handleEmbed(w http.ResponseWriter, r *http.Request) {
	m.EmbedCalls.Add(1)

	var req struct {
		Model string `json:"model"`
		Input string `json:"input"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := map[string]any{"embeddings": [][]float32{Embedding(req.Input)}}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (m *MockOllama) handleChat(w http.ResponseWriter, r *http.Request) {
	m.ChatCalls.Add(1)

	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	content := m.ChatResponse
	if content == "" {
		for i := len(req.Messages) - 1; i >= 0; i-- {
			if req.Messages[i].Role == "user" {
				content = "You asked: " + req.Messages[i].Content
				break
			}
		}
	}

	resp := map[string]any{
		"model":   req.Model,
		"message": map[string]string{"role": "assistant", "content": content},
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Embedding computes the deterministic test embedding for a text: each
// lowercased word increments one hashed dimension, then the vector is
// L2-normalized.
func Embedding(text string) []float32 {
	vec := make([]float32, embedstore.VectorDimension)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		h.Write([]byte(word))
		vec[h.Sum32()%uint32(len(vec))]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec
}
