package storage

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
)

// MaxPhotoSide bounds the longest side of stored profile photos.
const MaxPhotoSide = 800

// ResizePhoto shrinks an image to fit MaxPhotoSide and re-encodes it as JPEG.
// Images already within bounds are re-encoded without scaling, which also
// drops EXIF metadata.
func ResizePhoto(data []byte, fileName string) ([]byte, string, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}

	b := img.Bounds()
	if b.Dx() > MaxPhotoSide || b.Dy() > MaxPhotoSide {
		img = imaging.Fit(img, MaxPhotoSide, MaxPhotoSide, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, "", fmt.Errorf("encode image: %w", err)
	}

	name := strings.TrimSuffix(fileName, filepath.Ext(fileName)) + ".jpg"
	return buf.Bytes(), name, nil
}
