package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/System-AI-Assistants/FocusML/internal/chunker"
	"github.com/System-AI-Assistants/FocusML/internal/collection"
	"github.com/System-AI-Assistants/FocusML/internal/embedstore"
	"github.com/System-AI-Assistants/FocusML/internal/parser"
	"github.com/System-AI-Assistants/FocusML/internal/tabular"
)

const (
	maxUploadBytes   = 64 << 20
	previewRows      = 50
	previewCharLimit = 2000
)

// collectionStore is the catalog surface the handlers need.
// *collection.Store satisfies this.
type collectionStore interface {
	Create(ctx context.Context, c *collection.Collection) error
	Get(ctx context.Context, id int64) (*collection.Collection, error)
	List(ctx context.Context) ([]*collection.Collection, error)
	Delete(ctx context.Context, id int64) error
}

// taskStarter launches background ingestion. *ingest.Registry satisfies
// this.
type taskStarter interface {
	Start(collectionID int64) string
}

// tableDropper removes a collection's vector table. *embedstore.Store
// satisfies this.
type tableDropper interface {
	DropTable(ctx context.Context, tableName string) error
}

// documentParser extracts document text for previews. *parser.Parser
// satisfies this.
type documentParser interface {
	Parse(path string) (*parser.ParsedDocument, error)
}

// collectionsHandler holds dependencies for the collection endpoints.
type collectionsHandler struct {
	store         collectionStore
	tasks         taskStarter
	embeds        tableDropper
	docParser     documentParser
	uploadDir     string
	defaultMethod string
	logger        *slog.Logger
}

// upload handles POST /api/v1/collections — multipart file upload. The
// collection is persisted as pending and ingestion starts in the
// background; the response carries the task id for polling.
func (h *collectionsHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_upload", "could not parse multipart form", h.logger)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing_file", "form field \"file\" is required", h.logger)
		return
	}
	defer file.Close()

	ext := parser.FileExtension(header.Filename)
	kind, ok := collection.KindForExtension(ext)
	if !ok {
		WriteError(w, http.StatusBadRequest, "unsupported_format",
			"unsupported file extension "+strconv.Quote(ext), h.logger)
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = strings.TrimSuffix(header.Filename, "."+ext)
	}

	var (
		method     string
		configJSON []byte
	)
	if kind == collection.SourceDocument {
		method = r.FormValue("chunking_method")
		if method == "" {
			method = h.defaultMethod
		}
		if _, known := chunker.ParseMethod(method); !known {
			WriteError(w, http.StatusBadRequest, "invalid_chunking_method",
				"unknown chunking method "+strconv.Quote(method), h.logger)
			return
		}

		cfg, err := chunkingConfigFromForm(r)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "invalid_chunking_config", err.Error(), h.logger)
			return
		}
		if cfg != nil {
			configJSON, err = json.Marshal(cfg)
			if err != nil {
				WriteError(w, http.StatusInternalServerError, "internal_error", "failed to encode chunking config", h.logger)
				return
			}
		}
	}

	dest, err := h.saveUpload(file, ext)
	if err != nil {
		h.logger.Error("failed to store upload", "filename", header.Filename, "error", err)
		WriteError(w, http.StatusInternalServerError, "upload_failed", "failed to store uploaded file", h.logger)
		return
	}

	col := &collection.Collection{
		Name:           name,
		FilePath:       dest,
		SourceKind:     kind,
		FileType:       ext,
		ChunkingMethod: method,
		ChunkingConfig: configJSON,
	}
	if err := h.store.Create(r.Context(), col); err != nil {
		os.Remove(dest)
		h.logger.Error("failed to create collection", "name", name, "error", err)
		WriteError(w, http.StatusInternalServerError, "create_failed", "failed to create collection", h.logger)
		return
	}

	taskID := h.tasks.Start(col.ID)

	WriteJSON(w, http.StatusCreated, map[string]any{
		"collection": col,
		"task_id":    taskID,
	})
}

// list handles GET /api/v1/collections.
func (h *collectionsHandler) list(w http.ResponseWriter, r *http.Request) {
	cols, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list collections", "error", err)
		WriteError(w, http.StatusInternalServerError, "list_failed", "failed to list collections", h.logger)
		return
	}
	if cols == nil {
		cols = []*collection.Collection{}
	}
	WriteJSON(w, http.StatusOK, cols)
}

// get handles GET /api/v1/collections/{id}.
func (h *collectionsHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	col, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, collection.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "collection not found", h.logger)
			return
		}
		h.logger.Error("failed to get collection", "id", id, "error", err)
		WriteError(w, http.StatusInternalServerError, "get_failed", "failed to get collection", h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, col)
}

// preview handles GET /api/v1/collections/{id}/preview. Tabular
// collections return the first rows of the source file; document
// collections return a truncated extract of the parsed text.
func (h *collectionsHandler) preview(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	col, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, collection.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "collection not found", h.logger)
			return
		}
		WriteError(w, http.StatusInternalServerError, "get_failed", "failed to get collection", h.logger)
		return
	}

	switch col.SourceKind {
	case collection.SourceTabular:
		table, err := tabular.Read(col.FilePath, col.FileType)
		if err != nil {
			h.logger.Error("failed to read tabular file", "id", id, "error", err)
			WriteError(w, http.StatusInternalServerError, "preview_failed", "failed to read source file", h.logger)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"columns":   table.Columns,
			"rows":      table.Preview(previewRows),
			"row_count": len(table.Rows),
		})

	case collection.SourceDocument:
		doc, err := h.docParser.Parse(col.FilePath)
		if err != nil {
			h.logger.Error("failed to parse document", "id", id, "error", err)
			WriteError(w, http.StatusInternalServerError, "preview_failed", "failed to parse source file", h.logger)
			return
		}
		content := doc.Content
		truncated := false
		if runes := []rune(content); len(runes) > previewCharLimit {
			content = string(runes[:previewCharLimit])
			truncated = true
		}
		WriteJSON(w, http.StatusOK, map[string]any{
			"content":    content,
			"truncated":  truncated,
			"word_count": doc.WordCount,
			"char_count": doc.CharCount,
		})

	default:
		WriteError(w, http.StatusInternalServerError, "preview_failed", "unknown source kind", h.logger)
	}
}

// remove handles DELETE /api/v1/collections/{id}. The vector table and
// the stored file are removed best-effort before the metadata row; a
// missing table or file does not block the delete.
func (h *collectionsHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	col, err := h.store.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, collection.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "collection not found", h.logger)
			return
		}
		WriteError(w, http.StatusInternalServerError, "get_failed", "failed to get collection", h.logger)
		return
	}

	if err := h.embeds.DropTable(r.Context(), embedstore.TableName(id)); err != nil {
		h.logger.Warn("failed to drop vector table", "id", id, "error", err)
	}
	if err := os.Remove(col.FilePath); err != nil && !os.IsNotExist(err) {
		h.logger.Warn("failed to remove source file", "id", id, "path", col.FilePath, "error", err)
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, collection.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "not_found", "collection not found", h.logger)
			return
		}
		h.logger.Error("failed to delete collection", "id", id, "error", err)
		WriteError(w, http.StatusInternalServerError, "delete_failed", "failed to delete collection", h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"id": id, "deleted": true})
}

// saveUpload streams the uploaded file into the upload directory under a
// generated name, keeping only the original extension.
func (h *collectionsHandler) saveUpload(src io.Reader, ext string) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", err
	}

	dest := filepath.Join(h.uploadDir, uuid.NewString()+"."+ext)
	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dest)
		return "", err
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return "", err
	}
	return dest, nil
}

// chunkingConfigFromForm reads the optional chunk_size and chunk_overlap
// form fields. It returns nil when neither is set.
func chunkingConfigFromForm(r *http.Request) (*chunker.Config, error) {
	var cfg chunker.Config
	set := false

	if v := r.FormValue("chunk_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, errors.New("chunk_size must be a positive integer")
		}
		cfg.ChunkSize = n
		set = true
	}
	if v := r.FormValue("chunk_overlap"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, errors.New("chunk_overlap must be a non-negative integer")
		}
		cfg.ChunkOverlap = &n
		set = true
	}

	if !set {
		return nil, nil
	}
	return &cfg, nil
}

// pathID parses the {id} path segment. On failure it writes a 400 and
// returns false.
func pathID(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, http.StatusBadRequest, "invalid_id", "invalid collection id", logger)
		return 0, false
	}
	return id, true
}
