package service

import (
	"context"
	"path"

	"go.uber.org/zap"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/storage"
)

// uploadBatch tracks objects stored during one operation so they can be
// removed when the surrounding transaction fails.
type uploadBatch struct {
	store  storage.Uploader
	folder string
	logger *zap.Logger
	keys   []string
}

func newUploadBatch(store storage.Uploader, folder string, logger *zap.Logger) *uploadBatch {
	return &uploadBatch{store: store, folder: folder, logger: logger}
}

func (b *uploadBatch) put(ctx context.Context, sub string, file models.UploadedFile) (*storage.Object, error) {
	if b.store == nil {
		return nil, appErrors.Clone(appErrors.ErrUploadFailed, "almacenamiento de archivos no configurado")
	}
	obj, err := b.store.Upload(ctx, storage.UploadInput{
		Folder:      path.Join(b.folder, sub),
		FileName:    file.FileName,
		ContentType: file.ContentType,
		Data:        file.Data,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUploadFailed.Code, appErrors.ErrUploadFailed.Status, appErrors.ErrUploadFailed.Message)
	}
	b.keys = append(b.keys, obj.Key)
	return obj, nil
}

// putPhoto downsizes an image before storing it as JPEG.
func (b *uploadBatch) putPhoto(ctx context.Context, sub string, file models.UploadedFile) (*storage.Object, error) {
	data, name, err := storage.ResizePhoto(file.Data, file.FileName)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpload.Code, appErrors.ErrUpload.Status, "la imagen no se pudo procesar")
	}
	file.Data, file.FileName, file.ContentType, file.Size = data, name, "image/jpeg", int64(len(data))
	return b.put(ctx, sub, file)
}

// discard deletes every object stored so far. Failures are logged only.
func (b *uploadBatch) discard(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range b.keys {
		if err := b.store.Delete(ctx, key); err != nil {
			b.logger.Warn("failed to remove orphaned upload", zap.String("key", key), zap.Error(err))
		}
	}
	b.keys = nil
}
