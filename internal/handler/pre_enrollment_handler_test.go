package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-admin-api/internal/middleware"
	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
)

type preEnrollmentServiceMock struct {
	preEnrollmentService
	convertMeta models.RequestMeta
	convertReq  models.ConvertPreEnrollmentRequest
	convertErr  error
}

func (m *preEnrollmentServiceMock) Convert(_ context.Context, meta models.RequestMeta, id string, req models.ConvertPreEnrollmentRequest) (*models.ConversionResult, error) {
	m.convertMeta = meta
	m.convertReq = req
	if m.convertErr != nil {
		return nil, m.convertErr
	}
	return &models.ConversionResult{PreEnrollmentID: id, StudentCode: "EST-2025-0001"}, nil
}

func (m *preEnrollmentServiceMock) AddDocuments(context.Context, models.RequestMeta, string, []models.UploadedFile) ([]models.PreEnrollmentDocument, error) {
	return nil, nil
}

func convertRequest(t *testing.T, h *PreEnrollmentHandler) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/pre-enrollments/p1/convert",
		bytes.NewBufferString(`{"section_id":"s1","create_student_account":true}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "panel")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "p1"}}
	c.Set(middleware.ContextPrincipalKey, &models.Principal{UserID: "admin-1"})
	h.Convert(c)
	return w
}

func TestPreEnrollmentHandlerConvert(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &preEnrollmentServiceMock{}
	w := convertRequest(t, NewPreEnrollmentHandler(svc))

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "EST-2025-0001")
	assert.True(t, svc.convertReq.CreateStudentAccount)
	assert.Equal(t, "s1", svc.convertReq.SectionID)
	require.NotNil(t, svc.convertMeta.Principal)
	assert.Equal(t, "admin-1", svc.convertMeta.Principal.UserID)
	assert.Equal(t, "panel", svc.convertMeta.UserAgent)
}

func TestPreEnrollmentHandlerConvertInvalidState(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &preEnrollmentServiceMock{convertErr: appErrors.ErrInvalidTransition}
	w := convertRequest(t, NewPreEnrollmentHandler(svc))

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrInvalidTransition.Code)
}

func TestPreEnrollmentHandlerDocumentsRequireFiles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewPreEnrollmentHandler(&preEnrollmentServiceMock{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodPost, "/pre-enrollments/p1/documents", nil)

	h.AddDocuments(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrUpload.Code)
}
