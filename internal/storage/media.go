package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	// PublicPrefix is the URL path under which stored media is served.
	PublicPrefix = "/uploads/"

	// MaxUploadSize bounds a single uploaded file.
	MaxUploadSize = 10 << 20
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidKey     = errors.New("invalid object key")
	ErrTooLarge       = errors.New("file exceeds upload limit")
	ErrNotImage       = errors.New("only image uploads are accepted")
)

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// SaveImage stores an uploaded image under a fresh key and returns the
// public path ("/uploads/<key>") to record on the owning entity. The
// content type is sniffed from the data, not trusted from the client.
func (s *Storage) SaveImage(ctx context.Context, r io.Reader, size int64, filename string) (string, error) {
	if size > MaxUploadSize {
		return "", ErrTooLarge
	}

	br := bufio.NewReaderSize(r, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", err
	}
	contentType := http.DetectContentType(head)
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", ErrNotImage
	}
	if orig := strings.ToLower(filepath.Ext(filename)); orig == ".jpeg" && ext == ".jpg" {
		ext = orig
	}

	key := uuid.NewString() + ext
	if err := s.backend.Put(ctx, key, io.LimitReader(br, MaxUploadSize), size, contentType); err != nil {
		return "", fmt.Errorf("store %s: %w", key, err)
	}
	return PublicPrefix + key, nil
}

// KeyFromPath extracts the object key from a public media path. It
// reports false for paths that do not point into storage.
func KeyFromPath(path string) (string, bool) {
	key, ok := strings.CutPrefix(path, PublicPrefix)
	if !ok || key == "" || strings.Contains(key, "/") {
		return "", false
	}
	return key, true
}

// Release deletes the object behind a public media path. Paths that do not
// point into storage and objects that are already gone are ignored.
func (s *Storage) Release(ctx context.Context, path string) error {
	key, ok := KeyFromPath(path)
	if !ok {
		return nil
	}
	if err := s.backend.Delete(ctx, key); err != nil && !errors.Is(err, ErrObjectNotFound) {
		return err
	}
	return nil
}

// ContentTypeForKey guesses a response content type from the key extension.
func ContentTypeForKey(key string) string {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
