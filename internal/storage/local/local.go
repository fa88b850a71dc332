// Package local stores blobs on the filesystem under a root directory.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"

	"github.com/utafrali/brandcatalog/internal/storage"
)

// Storage implements storage.Storage on a directory.
type Storage struct {
	root    string
	baseURL string
}

var _ storage.Storage = (*Storage)(nil)

// New creates the root directory if needed.
func New(root, baseURL string) (*Storage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root %s: %w", root, err)
	}
	return &Storage{root: root, baseURL: baseURL}, nil
}

func (s *Storage) path(key string) (string, string, error) {
	key, err := storage.CleanKey(key)
	if err != nil {
		return "", "", err
	}
	return key, filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Upload writes to a temp file in the target directory and renames it into
// place, so readers never see a partial object.
func (s *Storage) Upload(_ context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	key, dst, err := s.path(input.Key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return nil, fmt.Errorf("create directory for %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file for %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, input.Data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return nil, fmt.Errorf("chmod %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return nil, fmt.Errorf("rename %s: %w", key, err)
	}

	return &storage.UploadResult{Key: key, URL: storage.URL(s.baseURL, key)}, nil
}

// Delete removes the file for key.
func (s *Storage) Delete(_ context.Context, key string) error {
	key, p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		}
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// GetURL returns the URL of an existing file.
func (s *Storage) GetURL(_ context.Context, key string) (string, error) {
	key, p, err := s.path(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		}
		return "", fmt.Errorf("stat %s: %w", key, err)
	}
	return storage.URL(s.baseURL, key), nil
}

// Open opens the file for key. Content type is derived from the extension.
func (s *Storage) Open(_ context.Context, key string) (*storage.Object, error) {
	key, p, err := s.path(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
		}
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat %s: %w", key, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, key)
	}
	return &storage.Object{
		Body:        f,
		ContentType: mime.TypeByExtension(filepath.Ext(p)),
		Size:        info.Size(),
		ModTime:     info.ModTime(),
	}, nil
}
