package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/noah-isme/school-admin-api/pkg/config"
)

// OSSStorage uploads to an Aliyun OSS bucket.
type OSSStorage struct {
	bucket  *oss.Bucket
	folder  string
	baseURL string
}

// NewOSS connects to the configured bucket.
func NewOSS(cfg config.StorageConfig) (*OSSStorage, error) {
	if cfg.OSSEndpoint == "" || cfg.OSSBucket == "" {
		return nil, fmt.Errorf("oss endpoint and bucket required")
	}
	client, err := oss.New(cfg.OSSEndpoint, cfg.OSSAccessKeyID, cfg.OSSAccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("oss.New: %w", err)
	}
	bucket, err := client.Bucket(cfg.OSSBucket)
	if err != nil {
		return nil, fmt.Errorf("oss bucket %s: %w", cfg.OSSBucket, err)
	}

	baseURL := strings.TrimRight(cfg.OSSPublicBaseURL, "/")
	if baseURL == "" {
		host := strings.TrimPrefix(strings.TrimPrefix(cfg.OSSEndpoint, "https://"), "http://")
		baseURL = "https://" + cfg.OSSBucket + "." + host
	}
	return &OSSStorage{bucket: bucket, folder: cfg.Folder, baseURL: baseURL}, nil
}

// Upload puts the object and returns its public URL.
func (s *OSSStorage) Upload(ctx context.Context, in UploadInput) (*Object, error) {
	key := ObjectKey(s.folder, in.Folder, in.FileName)
	opts := []oss.Option{oss.WithContext(ctx)}
	if in.ContentType != "" {
		opts = append(opts, oss.ContentType(in.ContentType))
	}
	if err := s.bucket.PutObject(key, bytes.NewReader(in.Data), opts...); err != nil {
		return nil, fmt.Errorf("oss put %s: %w", key, err)
	}
	return &Object{
		Key:         key,
		URL:         s.baseURL + "/" + key,
		ContentType: in.ContentType,
		Size:        int64(len(in.Data)),
	}, nil
}

// Delete removes the object. Missing keys are not an error on OSS.
func (s *OSSStorage) Delete(ctx context.Context, key string) error {
	if err := s.bucket.DeleteObject(key, oss.WithContext(ctx)); err != nil {
		return fmt.Errorf("oss delete %s: %w", key, err)
	}
	return nil
}
