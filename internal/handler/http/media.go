package http

import (
	"errors"
	"log/slog"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/utafrali/brandcatalog/internal/storage"
	apperrors "github.com/utafrali/brandcatalog/pkg/errors"
	"github.com/utafrali/brandcatalog/pkg/httputil"
)

// MediaHandler serves stored logo files.
type MediaHandler struct {
	store  storage.Storage
	logger *slog.Logger
}

// NewMediaHandler creates a new media HTTP handler.
func NewMediaHandler(store storage.Storage, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{store: store, logger: logger}
}

// Serve handles GET /media/*. Stored keys are never rewritten in place, so
// responses are cacheable for a long time.
func (h *MediaHandler) Serve(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")

	obj, err := h.store.Open(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			httputil.WriteError(w, r, apperrors.NotFound("file", key), h.logger)
			return
		}
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	defer obj.Body.Close()

	if obj.ContentType != "" {
		w.Header().Set("Content-Type", obj.ContentType)
	}
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	http.ServeContent(w, r, path.Base(key), obj.ModTime, obj.Body)
}
