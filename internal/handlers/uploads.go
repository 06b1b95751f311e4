package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/socialhub/apiserver/internal/storage"
)

type UploadHandler struct {
	base
}

func NewUploadHandler(common Common) *UploadHandler {
	return &UploadHandler{base: newBase(common)}
}

// UploadRouter serves stored media under storage.PublicPrefix.
func UploadRouter(r chi.Router, h *UploadHandler) {
	r.Get("/{key}", h.Get)
}

func (h *UploadHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.media == nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	key := chi.URLParam(r, "key")
	body, err := h.media.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			writeError(w, http.StatusNotFound, "file not found")
			return
		}
		h.fail(w, r, err, "file not found")
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", storage.ContentTypeForKey(key))
	w.Header().Set("Cache-Control", storage.MediaCacheControl)
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, body)
}
