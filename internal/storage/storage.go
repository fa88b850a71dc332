package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

// ErrNotFound is returned for keys that hold no object.
var ErrNotFound = errors.New("storage: object not found")

// ErrInvalidKey is returned for keys that are empty or escape the store root.
var ErrInvalidKey = errors.New("storage: invalid key")

// Storage stores named blobs and maps keys to public URLs.
type Storage interface {
	// Upload stores a file and returns the result with key and URL.
	Upload(ctx context.Context, input *UploadInput) (*UploadResult, error)

	// Delete removes a file by its key.
	Delete(ctx context.Context, key string) error

	// GetURL returns the public URL for the given key.
	GetURL(ctx context.Context, key string) (string, error)

	// Open returns the stored object for serving. Callers close Body.
	Open(ctx context.Context, key string) (*Object, error)
}

// UploadInput holds the parameters for uploading a file.
type UploadInput struct {
	Key         string
	ContentType string
	Size        int64
	Data        io.Reader
}

// UploadResult holds the result of a successful upload.
type UploadResult struct {
	Key string
	URL string
}

// Object is an opened blob.
type Object struct {
	Body        io.ReadSeekCloser
	ContentType string
	Size        int64
	ModTime     time.Time
}

// CleanKey normalises key to a slash-separated relative path. Keys that are
// empty or climb above the root are rejected.
func CleanKey(key string) (string, error) {
	key = strings.ReplaceAll(key, `\`, "/")
	cleaned := path.Clean("/" + key)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "" || cleaned == "." || strings.Contains(key, "..") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}

// URL joins baseURL and key.
func URL(baseURL, key string) string {
	return strings.TrimRight(baseURL, "/") + "/" + key
}
