package middleware

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/response"
)

const (
	mb = int64(1) << 20
	// AnyField matches every multipart file field not claimed by another rule.
	AnyField = "*"
)

// UploadRule constrains one multipart file field.
type UploadRule struct {
	Field    string
	MaxBytes int64
	Types    []string
	Required bool
	Multiple bool
}

var (
	imageTypes    = []string{"image/jpeg", "image/png", "image/webp"}
	cvTypes       = []string{"application/pdf", "application/msword", "application/vnd.openxmlformats-officedocument.wordprocessingml.document"}
	documentTypes = append([]string{"application/pdf"}, imageTypes...)
)

// ImageRule accepts a single photo up to 5MB.
func ImageRule(field string, required bool) UploadRule {
	return UploadRule{Field: field, MaxBytes: 5 * mb, Types: imageTypes, Required: required}
}

// CVRule accepts a single PDF or Word document up to 10MB.
func CVRule(field string, required bool) UploadRule {
	return UploadRule{Field: field, MaxBytes: 10 * mb, Types: cvTypes, Required: required}
}

// DocumentRule accepts any number of PDF or image documents up to 10MB each.
func DocumentRule(field string) UploadRule {
	return UploadRule{Field: field, MaxBytes: 10 * mb, Types: documentTypes, Multiple: true}
}

// Upload parses a multipart body in memory and validates every file part
// against rules. Accepted files are available through Files. Non multipart
// requests pass through untouched unless a rule is required.
func Upload(rules ...UploadRule) gin.HandlerFunc {
	var limit int64
	for _, r := range rules {
		limit += r.MaxBytes
	}
	limit += mb
	return func(c *gin.Context) {
		if !strings.HasPrefix(c.ContentType(), "multipart/form-data") {
			for _, r := range rules {
				if r.Required {
					response.AbortError(c, uploadError(fmt.Sprintf("el archivo %s es obligatorio", r.Field)))
					return
				}
			}
			c.Next()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit*4)
		if err := c.Request.ParseMultipartForm(limit); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.AbortError(c, uploadError("la solicitud excede el tamaño permitido"))
				return
			}
			response.AbortError(c, uploadError("formulario multipart inválido"))
			return
		}

		files, err := collectFiles(c.Request.MultipartForm, rules)
		if err != nil {
			response.AbortError(c, err)
			return
		}
		c.Set(contextFilesKey, files)
		c.Next()
	}
}

// Files returns the validated uploads of the request.
func Files(c *gin.Context) []models.UploadedFile {
	value, ok := c.Get(contextFilesKey)
	if !ok {
		return nil
	}
	files, _ := value.([]models.UploadedFile)
	return files
}

// FileFor returns the first upload received under field.
func FileFor(c *gin.Context, field string) (models.UploadedFile, bool) {
	for _, f := range Files(c) {
		if f.Field == field {
			return f, true
		}
	}
	return models.UploadedFile{}, false
}

func collectFiles(form *multipart.Form, rules []UploadRule) ([]models.UploadedFile, error) {
	byField := make(map[string]UploadRule, len(rules))
	var wildcard *UploadRule
	for i, r := range rules {
		if r.Field == AnyField {
			wildcard = &rules[i]
			continue
		}
		byField[r.Field] = r
	}

	var out []models.UploadedFile
	if form == nil {
		form = &multipart.Form{}
	}
	for field, headers := range form.File {
		rule, ok := byField[field]
		if !ok {
			if wildcard == nil {
				return nil, uploadError(fmt.Sprintf("campo de archivo no permitido: %s", field))
			}
			rule = *wildcard
		}
		if len(headers) > 1 && !rule.Multiple {
			return nil, uploadError(fmt.Sprintf("solo se permite un archivo en %s", field))
		}
		for _, header := range headers {
			file, err := readPart(field, header, rule)
			if err != nil {
				return nil, err
			}
			out = append(out, file)
		}
	}
	for _, r := range rules {
		if r.Required && len(form.File[r.Field]) == 0 {
			return nil, uploadError(fmt.Sprintf("el archivo %s es obligatorio", r.Field))
		}
	}
	return out, nil
}

func readPart(field string, header *multipart.FileHeader, rule UploadRule) (models.UploadedFile, error) {
	if header.Size == 0 {
		return models.UploadedFile{}, uploadError(fmt.Sprintf("el archivo %s está vacío", header.Filename))
	}
	if header.Size > rule.MaxBytes {
		return models.UploadedFile{}, uploadError(fmt.Sprintf("el archivo %s supera %dMB", header.Filename, rule.MaxBytes/mb))
	}
	src, err := header.Open()
	if err != nil {
		return models.UploadedFile{}, appErrors.Wrap(err, appErrors.ErrUploadFailed.Code, appErrors.ErrUploadFailed.Status, appErrors.ErrUploadFailed.Message)
	}
	defer src.Close()
	data, err := io.ReadAll(io.LimitReader(src, rule.MaxBytes+1))
	if err != nil {
		return models.UploadedFile{}, appErrors.Wrap(err, appErrors.ErrUploadFailed.Code, appErrors.ErrUploadFailed.Status, appErrors.ErrUploadFailed.Message)
	}
	if int64(len(data)) > rule.MaxBytes {
		return models.UploadedFile{}, uploadError(fmt.Sprintf("el archivo %s supera %dMB", header.Filename, rule.MaxBytes/mb))
	}

	contentType, ok := sniff(data, rule.Types)
	if !ok {
		return models.UploadedFile{}, uploadError(fmt.Sprintf("tipo de archivo no permitido: %s", header.Filename))
	}
	return models.UploadedFile{
		Field:       field,
		FileName:    filepath.Base(header.Filename),
		ContentType: contentType,
		Size:        int64(len(data)),
		Data:        data,
	}, nil
}

// sniff detects the content type from the bytes, ignoring the declared one.
func sniff(data []byte, allowed []string) (string, bool) {
	for m := mimetype.Detect(data); m != nil; m = m.Parent() {
		for _, t := range allowed {
			if m.Is(t) {
				return t, true
			}
		}
	}
	return "", false
}

func uploadError(message string) error {
	return appErrors.Clone(appErrors.ErrUpload, message)
}
