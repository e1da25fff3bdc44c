package storage

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/school-admin-api/pkg/config"
)

// Object describes a stored upload.
type Object struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// UploadInput carries a single file to persist.
type UploadInput struct {
	Folder      string
	FileName    string
	ContentType string
	Data        []byte
}

// Uploader persists and removes objects in a storage backend.
type Uploader interface {
	Upload(ctx context.Context, in UploadInput) (*Object, error)
	Delete(ctx context.Context, key string) error
}

// New selects the backend configured by STORAGE_DRIVER.
func New(cfg config.StorageConfig) (Uploader, error) {
	switch cfg.Driver {
	case "", config.StorageDriverLocal:
		return NewLocalStorage(cfg.LocalDir, cfg.PublicURL)
	case config.StorageDriverCloudinary:
		return NewCloudinary(cfg)
	case config.StorageDriverOSS:
		return NewOSS(cfg)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// ObjectKey builds a unique, date partitioned key under root/folder.
func ObjectKey(root, folder, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	name := uuid.NewString() + ext
	return path.Join(root, folder, time.Now().UTC().Format("2006/01"), name)
}
