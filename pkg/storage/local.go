package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage persists uploads on disk under a base directory and serves
// them from PublicURL.
type LocalStorage struct {
	baseDir   string
	publicURL string
}

// NewLocalStorage ensures the base directory exists and returns a handle.
func NewLocalStorage(baseDir, publicURL string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "./uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create uploads directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir, publicURL: strings.TrimRight(publicURL, "/")}, nil
}

// BaseDir returns the directory served as static content.
func (s *LocalStorage) BaseDir() string {
	return s.baseDir
}

// Upload writes the payload to a fresh key under the base dir.
func (s *LocalStorage) Upload(_ context.Context, in UploadInput) (*Object, error) {
	key := ObjectKey("", in.Folder, in.FileName)
	path := s.resolve(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("prepare upload directory: %w", err)
	}
	if err := os.WriteFile(path, in.Data, 0o644); err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}
	return &Object{
		Key:         key,
		URL:         s.publicURL + "/" + filepath.ToSlash(key),
		ContentType: in.ContentType,
		Size:        int64(len(in.Data)),
	}, nil
}

// Delete removes a stored file if present.
func (s *LocalStorage) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.resolve(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete upload: %w", err)
	}
	return nil
}

func (s *LocalStorage) resolve(key string) string {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	return filepath.Join(s.baseDir, clean)
}
