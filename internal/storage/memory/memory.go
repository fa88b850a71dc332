// Package memory is an in-process storage backend for tests and local runs.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/utafrali/brandcatalog/internal/storage"
)

type entry struct {
	data        []byte
	contentType string
	modTime     time.Time
}

// Storage implements storage.Storage with a map.
type Storage struct {
	mu      sync.RWMutex
	files   map[string]*entry
	baseURL string
}

var _ storage.Storage = (*Storage)(nil)

// New creates an empty store whose URLs are rooted at baseURL.
func New(baseURL string) *Storage {
	return &Storage{files: make(map[string]*entry), baseURL: baseURL}
}

// Upload reads input.Data fully and stores it under input.Key.
func (s *Storage) Upload(_ context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	key, err := storage.CleanKey(input.Key)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(input.Data)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", key, err)
	}

	s.mu.Lock()
	s.files[key] = &entry{data: data, contentType: input.ContentType, modTime: time.Now().UTC()}
	s.mu.Unlock()

	return &storage.UploadResult{Key: key, URL: storage.URL(s.baseURL, key)}, nil
}

// Delete removes key.
func (s *Storage) Delete(_ context.Context, key string) error {
	key, err := storage.CleanKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[key]; !ok {
		return fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	delete(s.files, key)
	return nil
}

// GetURL returns the URL for a stored key.
func (s *Storage) GetURL(_ context.Context, key string) (string, error) {
	key, err := storage.CleanKey(key)
	if err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.files[key]; !ok {
		return "", fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return storage.URL(s.baseURL, key), nil
}

// Open returns a reader over the stored bytes.
func (s *Storage) Open(_ context.Context, key string) (*storage.Object, error) {
	key, err := storage.CleanKey(key)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	e, ok := s.files[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return &storage.Object{
		Body:        nopCloser{bytes.NewReader(e.data)},
		ContentType: e.contentType,
		Size:        int64(len(e.data)),
		ModTime:     e.modTime,
	}, nil
}

// Keys lists stored keys.
func (s *Storage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.files))
	for k := range s.files {
		keys = append(keys, k)
	}
	return keys
}

type nopCloser struct{ *bytes.Reader }

func (nopCloser) Close() error { return nil }
