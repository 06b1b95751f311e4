package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/socialhub/apiserver/internal/auth"
	"github.com/socialhub/apiserver/internal/services"
	"github.com/socialhub/apiserver/internal/storage"
	"github.com/socialhub/apiserver/internal/store"
)

const (
	defaultPage        = 1
	defaultLimit       = 20
	maxLimit           = 100
	maxMultipartMemory = 2 << 20
	maxRequestBytes    = storage.MaxUploadSize + 1<<20
)

// AuthFailureRecorder observes rejected credentials.
type AuthFailureRecorder interface {
	RecordAuthFailure(reason string)
}

// Common carries the collaborators every handler shares.
type Common struct {
	Logger       *slog.Logger
	AuthFailures AuthFailureRecorder
	Media        *storage.Storage
}

type base struct {
	logger       *slog.Logger
	authFailures AuthFailureRecorder
	media        *storage.Storage
}

func newBase(c Common) base {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return base{logger: logger, authFailures: c.AuthFailures, media: c.Media}
}

// ErrorResponse is a simple error payload.
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse acknowledges an operation without a resource body.
type MessageResponse struct {
	Message string `json:"message"`
}

// ListResponse is the paginated list response payload.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
}

// LikeResponse reports the state of a like toggle.
type LikeResponse struct {
	Liked bool     `json:"liked"`
	Likes []string `json:"likes"`
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NotFound answers unknown routes with the JSON error shape.
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusNotFound, "not found")
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// requireAuth rejects requests that carry no verified identity.
func (b base) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.FromContext(r.Context()); ok {
			next.ServeHTTP(w, r)
			return
		}
		reason := "missing_token"
		if errors.Is(auth.FailureFromContext(r.Context()), auth.ErrInvalidCredential) {
			reason = "invalid_token"
		}
		b.recordAuthFailure(reason)
		writeError(w, http.StatusUnauthorized, "unauthorized")
	})
}

func (b base) recordAuthFailure(reason string) {
	if b.authFailures != nil {
		b.authFailures.RecordAuthFailure(reason)
	}
}

func actorFrom(r *http.Request) auth.Identity {
	id, _ := auth.FromContext(r.Context())
	return id
}

// fail maps a service or store error onto the HTTP taxonomy. notFound is
// the message used for store.ErrNotFound.
func (b base) fail(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Message)
	case errors.Is(err, services.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrMissingCredential), errors.Is(err, auth.ErrInvalidCredential):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, notFound)
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "already exists")
	case errors.Is(err, store.ErrNotRelated):
		writeError(w, http.StatusBadRequest, "relationship does not exist")
	case errors.Is(err, storage.ErrNotImage):
		writeError(w, http.StatusBadRequest, "only image uploads are accepted")
	case errors.Is(err, storage.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "file exceeds upload limit")
	default:
		b.logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// saveUpload stores an uploaded image and returns its public path.
func (b base) saveUpload(ctx context.Context, fh *multipart.FileHeader) (string, error) {
	if b.media == nil {
		return "", errors.New("media storage is not configured")
	}
	file, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()
	return b.media.SaveImage(ctx, file, fh.Size, fh.Filename)
}

// release deletes stored media, logging instead of failing the request.
func (b base) release(ctx context.Context, path string) {
	if b.media == nil || path == "" {
		return
	}
	if err := b.media.Release(ctx, path); err != nil {
		b.logger.WarnContext(ctx, "release media failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
	}
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid request")
	}
	return nil
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

func parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return storage.ErrTooLarge
		}
		return &services.ValidationError{Message: "invalid multipart form"}
	}
	return nil
}

// formFile returns the single file uploaded under field, if any.
func formFile(r *http.Request, field string) *multipart.FileHeader {
	if r.MultipartForm == nil {
		return nil
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return nil
	}
	return files[0]
}

// formValue returns the form value and whether the field was sent at all.
func formValue(r *http.Request, field string) (string, bool) {
	if r.MultipartForm == nil {
		return "", false
	}
	values, ok := r.MultipartForm.Value[field]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func parsePagination(r *http.Request) (page, limit, offset int, err error) {
	page = defaultPage
	limit = defaultLimit

	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, 0, errors.New("invalid page")
		}
	}

	rawLimit := strings.TrimSpace(r.URL.Query().Get("limit"))
	if rawLimit == "" {
		rawLimit = strings.TrimSpace(r.URL.Query().Get("per_page"))
	}
	if rawLimit != "" {
		limit, err = strconv.Atoi(rawLimit)
		if err != nil || limit < 1 {
			return 0, 0, 0, errors.New("invalid limit")
		}
	}

	if limit > maxLimit {
		limit = maxLimit
	}

	offset = (page - 1) * limit
	return page, limit, offset, nil
}

func parseOptionalInt(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	return strconv.Atoi(value)
}

func parseTags(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		tag := strings.TrimSpace(part)
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}
