package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"linesim/internal/auth"
	tags "linesim/internal/tags/domain"
)

const tagsPrefix = "/api/v1/tags"

// Reader exposes tree state to HTTP clients.
type Reader interface {
	Get(path string) (tags.Tag, bool)
	Snapshot() []tags.Tag
	Writable(path string) bool
}

// Handler serves /api/v1/tags and /api/v1/tags/{path}.
type Handler struct {
	reader Reader
	tree   tags.Tree
	logger *zap.Logger
}

// NewHandler constructs a tag handler.
func NewHandler(reader Reader, tree tags.Tree, logger *zap.Logger) (*Handler, error) {
	if reader == nil {
		return nil, errors.New("tags handler: nil reader")
	}
	if tree == nil {
		return nil, errors.New("tags handler: nil tree")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{reader: reader, tree: tree, logger: logger}, nil
}

type writeRequest struct {
	Value *tags.Value `json:"value"`
}

// ServeHTTP routes tag requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == tagsPrefix:
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h.handleList(w, r)
	case strings.HasPrefix(r.URL.Path, tagsPrefix+"/"):
		path := strings.TrimPrefix(r.URL.Path, tagsPrefix+"/")
		if path == "" || strings.Contains(path, "/") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		switch r.Method {
		case http.MethodGet:
			h.handleGet(w, path)
		case http.MethodPut:
			h.handlePut(w, r, path)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	snapshot := h.reader.Snapshot()
	if prefix != "" {
		filtered := snapshot[:0]
		for _, tag := range snapshot {
			if strings.HasPrefix(tag.Path, prefix) {
				filtered = append(filtered, tag)
			}
		}
		snapshot = filtered
	}
	writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleGet(w http.ResponseWriter, path string) {
	tag, ok := h.reader.Get(path)
	if !ok {
		http.Error(w, tags.ErrNotFound.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, tag)
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request, path string) {
	current, ok := h.reader.Get(path)
	if !ok {
		http.Error(w, tags.ErrNotFound.Error(), http.StatusNotFound)
		return
	}
	if !h.reader.Writable(path) {
		http.Error(w, tags.ErrReadOnly.Error(), http.StatusForbidden)
		return
	}

	var req writeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Value == nil {
		http.Error(w, "value is required", http.StatusBadRequest)
		return
	}
	value, err := req.Value.Coerce(current.Value.Kind())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.tree.Set(r.Context(), path, value); err != nil {
		var writeErr *tags.WriteError
		if !errors.As(err, &writeErr) || writeErr.Sink == "" {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		h.logger.Warn("tag write not mirrored", zap.String("path", path), zap.Error(err))
	}
	h.logger.Info("tag written by operator",
		zap.String("path", path),
		zap.Stringer("previous", current.Value),
		zap.Stringer("value", value),
		zap.String("actor", auth.SubjectFromContext(r.Context())),
	)
	updated, _ := h.reader.Get(path)
	writeJSON(w, http.StatusOK, updated)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
