// Package ollama is a lightweight client for the Ollama HTTP API.
//
// It covers the two endpoints this service needs: /api/embed for
// embedding vectors and /api/chat for grounded answers. Model names are
// passed per call because collections can be ingested with different
// embedding models.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/System-AI-Assistants/FocusML/internal/log"
)

var (
	// ErrUnavailable indicates the Ollama daemon could not be reached or
	// kept failing after retries.
	ErrUnavailable = errors.New("embedding service unavailable")

	// ErrGenerationFailure indicates a chat completion request failed.
	ErrGenerationFailure = errors.New("failed to generate response")
)

// Client calls an Ollama daemon.
type Client struct {
	host       string
	httpClient *http.Client
	logger     log.Logger
}

// New creates a client for the daemon at host (e.g. http://localhost:11434).
// timeout bounds a single HTTP request, not the whole retry sequence.
func New(host string, timeout time.Duration, logger log.Logger) *Client {
	return &Client{
		host:       strings.TrimRight(host, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Message is one turn of a chat conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Options are raw Ollama generation options. Nil fields are omitted and
// the daemon's model defaults apply.
type Options struct {
	Temperature *float64 `json:"temperature,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
	Seed        *int     `json:"seed,omitempty"`
}

type embedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns the embedding vector for input using the named model.
// Transient failures (connection errors, 5xx) are retried with
// exponential backoff; 4xx responses fail immediately.
func (c *Client) Embed(ctx context.Context, model, input string) ([]float32, error) {
	var result []float32

	operation := func() error {
		var resp embedResponse
		if err := c.post(ctx, "/api/embed", embedRequest{Model: model, Input: input}, &resp); err != nil {
			var statusErr *statusError
			if errors.As(err, &statusErr) && statusErr.code >= 400 && statusErr.code < 500 {
				return backoff.Permanent(err)
			}
			return err
		}
		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0]) == 0 {
			return backoff.Permanent(fmt.Errorf("model %q returned no embedding", model))
		}
		result = resp.Embeddings[0]
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return result, nil
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  *Options  `json:"options,omitempty"`
}

type chatResponse struct {
	Message Message `json:"message"`
}

// Chat runs a non-streaming chat completion and returns the assistant
// message content.
func (c *Client) Chat(ctx context.Context, model string, messages []Message, opts *Options) (string, error) {
	req := chatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
		Options:  opts,
	}

	var resp chatResponse
	if err := c.post(ctx, "/api/chat", req, &resp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrGenerationFailure, err)
	}
	return resp.Message.Content, nil
}

// statusError is a non-2xx response.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("ollama returned status %d: %s", e.code, e.body)
}

func (c *Client) post(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(raw))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
