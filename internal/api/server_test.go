package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/System-AI-Assistants/FocusML/internal/collection"
	"github.com/System-AI-Assistants/FocusML/internal/log"
	"github.com/System-AI-Assistants/FocusML/internal/ollama"
	"github.com/System-AI-Assistants/FocusML/internal/parser"
	"github.com/System-AI-Assistants/FocusML/internal/retrieval"
)

type fakeStore struct {
	nextID  int64
	byID    map[int64]*collection.Collection
	created *collection.Collection
	listErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1, byID: make(map[int64]*collection.Collection)}
}

func (f *fakeStore) Create(_ context.Context, c *collection.Collection) error {
	c.ID = f.nextID
	f.nextID++
	if c.Status == "" {
		c.Status = collection.StatusPending
	}
	f.byID[c.ID] = c
	f.created = c
	return nil
}

func (f *fakeStore) Get(_ context.Context, id int64) (*collection.Collection, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", collection.ErrNotFound, id)
	}
	return c, nil
}

func (f *fakeStore) List(_ context.Context) ([]*collection.Collection, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*collection.Collection
	for _, c := range f.byID {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeStore) Delete(_ context.Context, id int64) error {
	if _, ok := f.byID[id]; !ok {
		return collection.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

type fakeTasks struct {
	started []int64
}

func (f *fakeTasks) Start(collectionID int64) string {
	f.started = append(f.started, collectionID)
	return uuid.NewString()
}

type fakeDropper struct {
	dropped []string
}

func (f *fakeDropper) DropTable(_ context.Context, tableName string) error {
	f.dropped = append(f.dropped, tableName)
	return nil
}

type fakeDocParser struct {
	doc *parser.ParsedDocument
	err error
}

func (f *fakeDocParser) Parse(_ string) (*parser.ParsedDocument, error) {
	return f.doc, f.err
}

type fakeAnswerer struct {
	answer *retrieval.Answer
	err    error

	question string
	topK     int
	model    string
}

func (f *fakeAnswerer) Ask(_ context.Context, _ int64, question string, topK int, chatModel string, _ *ollama.Options) (*retrieval.Answer, error) {
	f.question, f.topK, f.model = question, topK, chatModel
	return f.answer, f.err
}

type testServer struct {
	srv      *httptest.Server
	store    *fakeStore
	tasks    *fakeTasks
	dropper  *fakeDropper
	answerer *fakeAnswerer
	parser   *fakeDocParser
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		store:    newFakeStore(),
		tasks:    &fakeTasks{},
		dropper:  &fakeDropper{},
		answerer: &fakeAnswerer{},
		parser:   &fakeDocParser{},
	}

	server, err := NewServer(ServerConfig{
		Logger:      log.NewNop(),
		Collections: ts.store,
		Tasks:       ts.tasks,
		Embeds:      ts.dropper,
		Parser:      ts.parser,
		Engine:      ts.answerer,
		UploadDir:   t.TempDir(),
		RateBurst:   1000,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	ts.srv = httptest.NewServer(server.Handler())
	t.Cleanup(ts.srv.Close)
	return ts
}

func decodeData(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode envelope: %v", err)
	}
	if err := json.Unmarshal(envelope.Data, into); err != nil {
		t.Fatalf("failed to decode data: %v", err)
	}
}

func decodeErrorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var envelope errorBody
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	return envelope.Error.Code
}

func multipartUpload(t *testing.T, url, filename string, content []byte, fields map[string]string) *http.Response {
	t.Helper()
	body := new(bytes.Buffer)
	mw := multipart.NewWriter(body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(url+"/api/v1/collections", mw.FormDataContentType(), body)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var data map[string]string
	decodeData(t, resp, &data)
	if data["status"] != "ok" {
		t.Errorf("body = %v", data)
	}
}

type failingPinger struct{}

func (failingPinger) Ping(_ context.Context) error { return errors.New("down") }

func TestReadyzDBDown(t *testing.T) {
	rec := httptest.NewRecorder()
	readiness(failingPinger{}, log.NewNop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestUploadCSV(t *testing.T) {
	ts := newTestServer(t)

	resp := multipartUpload(t, ts.srv.URL, "sales.csv", []byte("name,amount\na,1\n"), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}

	var data struct {
		Collection collection.Collection `json:"collection"`
		TaskID     string                `json:"task_id"`
	}
	decodeData(t, resp, &data)

	if data.Collection.SourceKind != collection.SourceTabular || data.Collection.FileType != "csv" {
		t.Errorf("collection = %+v", data.Collection)
	}
	if data.Collection.Name != "sales" {
		t.Errorf("name = %q, want the filename without extension", data.Collection.Name)
	}
	if data.TaskID == "" {
		t.Error("task_id missing")
	}
	if len(ts.tasks.started) != 1 || ts.tasks.started[0] != data.Collection.ID {
		t.Errorf("tasks started = %v", ts.tasks.started)
	}

	// The stored path must exist and keep only the generated name.
	if _, err := os.Stat(ts.store.created.FilePath); err != nil {
		t.Errorf("uploaded file not stored: %v", err)
	}
	if strings.Contains(ts.store.created.FilePath, "sales") {
		t.Errorf("stored path %q leaks the client filename", ts.store.created.FilePath)
	}
}

func TestUploadDocumentWithChunkingFields(t *testing.T) {
	ts := newTestServer(t)

	resp := multipartUpload(t, ts.srv.URL, "notes.txt", []byte("hello world"), map[string]string{
		"chunking_method": "sentence",
		"chunk_size":      "256",
		"chunk_overlap":   "10",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	resp.Body.Close()

	created := ts.store.created
	if created.ChunkingMethod != "sentence" {
		t.Errorf("chunking method = %q", created.ChunkingMethod)
	}
	if !strings.Contains(string(created.ChunkingConfig), `"chunk_size":256`) {
		t.Errorf("chunking config = %s", created.ChunkingConfig)
	}
}

func TestUploadUnsupportedFormat(t *testing.T) {
	ts := newTestServer(t)

	resp := multipartUpload(t, ts.srv.URL, "image.png", []byte{1, 2, 3}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if code := decodeErrorCode(t, resp); code != "unsupported_format" {
		t.Errorf("error code = %q", code)
	}
	if len(ts.tasks.started) != 0 {
		t.Error("task started for a rejected upload")
	}
}

func TestUploadInvalidChunkingMethod(t *testing.T) {
	ts := newTestServer(t)

	resp := multipartUpload(t, ts.srv.URL, "notes.txt", []byte("x"), map[string]string{
		"chunking_method": "bogus",
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if code := decodeErrorCode(t, resp); code != "invalid_chunking_method" {
		t.Errorf("error code = %q", code)
	}
}

func TestGetCollection(t *testing.T) {
	ts := newTestServer(t)
	ts.store.byID[1] = &collection.Collection{ID: 1, Name: "docs", Status: collection.StatusPending}
	ts.store.nextID = 2

	resp, err := http.Get(ts.srv.URL + "/api/v1/collections/1")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got collection.Collection
	decodeData(t, resp, &got)
	if got.Name != "docs" {
		t.Errorf("collection = %+v", got)
	}
}

func TestGetCollectionNotFound(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.srv.URL + "/api/v1/collections/99")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestGetCollectionInvalidID(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.srv.URL + "/api/v1/collections/abc")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestPreviewDocumentTruncates(t *testing.T) {
	ts := newTestServer(t)
	ts.store.byID[1] = &collection.Collection{
		ID: 1, SourceKind: collection.SourceDocument, FileType: "txt", FilePath: "/tmp/x.txt",
	}
	long := strings.Repeat("a", 3000)
	ts.parser.doc = &parser.ParsedDocument{Content: long, WordCount: 1, CharCount: 3000}

	resp, err := http.Get(ts.srv.URL + "/api/v1/collections/1/preview")
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var data struct {
		Content   string `json:"content"`
		Truncated bool   `json:"truncated"`
	}
	decodeData(t, resp, &data)
	if len(data.Content) != previewCharLimit || !data.Truncated {
		t.Errorf("content length = %d, truncated = %v", len(data.Content), data.Truncated)
	}
}

func TestDeleteCollection(t *testing.T) {
	ts := newTestServer(t)
	dir := t.TempDir()
	path := dir + "/source.csv"
	if err := os.WriteFile(path, []byte("a,b\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	ts.store.byID[4] = &collection.Collection{
		ID: 4, SourceKind: collection.SourceTabular, FileType: "csv", FilePath: path,
	}

	req, err := http.NewRequest(http.MethodDelete, ts.srv.URL+"/api/v1/collections/4", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	if len(ts.dropper.dropped) != 1 || ts.dropper.dropped[0] != "embeddings_collection_4" {
		t.Errorf("dropped tables = %v", ts.dropper.dropped)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("source file not removed")
	}
	if _, ok := ts.store.byID[4]; ok {
		t.Error("collection row not deleted")
	}
}

func TestChunkingMethodsCatalog(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.srv.URL + "/api/v1/chunking-methods")
	if err != nil {
		t.Fatal(err)
	}
	var methods []map[string]any
	decodeData(t, resp, &methods)
	if len(methods) != 5 {
		t.Errorf("got %d methods, want 5", len(methods))
	}
	if methods[0]["id"] != "recursive" {
		t.Errorf("first method = %v, want recursive first", methods[0]["id"])
	}
}

func TestRAG(t *testing.T) {
	ts := newTestServer(t)
	ts.answerer.answer = &retrieval.Answer{
		Answer:  "Paris.",
		Model:   "mistral:7b",
		Sources: []retrieval.Source{{Content: "content: paris", Distance: 0.1}},
	}

	body := `{"collection_id": 1, "top_k": 2, "messages": [
		{"role": "assistant", "content": "hi"},
		{"role": "user", "content": "capital of france?"}]}`
	resp, err := http.Post(ts.srv.URL+"/api/v1/rag", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var data ragResponse
	decodeData(t, resp, &data)
	if data.Response != "Paris." || len(data.Sources) != 1 {
		t.Errorf("response = %+v", data)
	}
	if ts.answerer.question != "capital of france?" {
		t.Errorf("question = %q, want the latest user message", ts.answerer.question)
	}
	if ts.answerer.topK != 2 {
		t.Errorf("topK = %d", ts.answerer.topK)
	}
}

func TestRAGNotReady(t *testing.T) {
	ts := newTestServer(t)
	ts.answerer.err = retrieval.ErrNotReady

	body := `{"collection_id": 1, "messages": [{"role": "user", "content": "q"}]}`
	resp, err := http.Post(ts.srv.URL+"/api/v1/rag", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	if code := decodeErrorCode(t, resp); code != "not_ready" {
		t.Errorf("error code = %q", code)
	}
}

func TestRAGMissingUserMessage(t *testing.T) {
	ts := newTestServer(t)
	body := `{"collection_id": 1, "messages": [{"role": "assistant", "content": "hi"}]}`
	resp, err := http.Post(ts.srv.URL+"/api/v1/rag", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestRequestIDHeader(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.srv.URL + "/api/v1/collections")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	id := resp.Header.Get("X-Request-ID")
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("X-Request-ID = %q, not a UUID", id)
	}
}

func TestRateLimit(t *testing.T) {
	rl := newRateLimiter(1.0, 2)
	if !rl.allow("1.2.3.4") || !rl.allow("1.2.3.4") {
		t.Fatal("first two requests should pass")
	}
	if rl.allow("1.2.3.4") {
		t.Error("third request should be limited")
	}
	if !rl.allow("5.6.7.8") {
		t.Error("other IPs are unaffected")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "10.0.0.1:1234"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.2")

	if got := clientIP(r, false); got != "10.0.0.1" {
		t.Errorf("clientIP(untrusted) = %q", got)
	}
	if got := clientIP(r, true); got != "203.0.113.9" {
		t.Errorf("clientIP(trusted) = %q", got)
	}

	r.Header.Set("X-Real-IP", "not-an-ip")
	if got := clientIP(r, true); got != "203.0.113.9" {
		t.Errorf("clientIP with bogus X-Real-IP = %q", got)
	}
}
