package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"

	"github.com/noah-isme/school-admin-api/pkg/config"
)

// CloudinaryStorage uploads to a Cloudinary account. Keys are public IDs.
type CloudinaryStorage struct {
	client *cloudinary.Cloudinary
	folder string
}

// NewCloudinary builds a Cloudinary backed uploader.
func NewCloudinary(cfg config.StorageConfig) (*CloudinaryStorage, error) {
	if cfg.CloudinaryCloudName == "" || cfg.CloudinaryAPIKey == "" || cfg.CloudinaryAPISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials missing")
	}
	client, err := cloudinary.NewFromParams(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
	if err != nil {
		return nil, fmt.Errorf("init cloudinary: %w", err)
	}
	return &CloudinaryStorage{client: client, folder: cfg.Folder}, nil
}

// Upload sends the payload with resource type auto so PDFs and images share one path.
func (s *CloudinaryStorage) Upload(ctx context.Context, in UploadInput) (*Object, error) {
	key := strings.TrimSuffix(ObjectKey(s.folder, in.Folder, in.FileName), extOf(in.FileName))
	res, err := s.client.Upload.Upload(ctx, bytes.NewReader(in.Data), uploader.UploadParams{
		PublicID:       key,
		ResourceType:   "auto",
		Overwrite:      api.Bool(false),
		UniqueFilename: api.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload: %w", err)
	}
	if res.Error.Message != "" {
		return nil, fmt.Errorf("cloudinary upload: %s", res.Error.Message)
	}
	return &Object{
		Key:         res.PublicID,
		URL:         res.SecureURL,
		ContentType: in.ContentType,
		Size:        int64(len(in.Data)),
	}, nil
}

// Delete destroys the asset, trying image then raw resource types.
func (s *CloudinaryStorage) Delete(ctx context.Context, key string) error {
	for _, rt := range []string{"image", "raw"} {
		res, err := s.client.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: key, ResourceType: rt})
		if err != nil {
			return fmt.Errorf("cloudinary destroy %s: %w", key, err)
		}
		if res.Result == "ok" {
			return nil
		}
	}
	return nil
}

func extOf(name string) string {
	if i := strings.LastIndex(name, "."); i >= 0 {
		return strings.ToLower(name[i:])
	}
	return ""
}
