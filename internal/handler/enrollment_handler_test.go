package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-admin-api/internal/middleware"
	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/internal/service"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
)

type enrollmentServiceMock struct {
	enrollmentService
	createReq   models.CreateEnrollmentRequest
	createFiles []models.UploadedFile
	createErr   error
	statsPeriod string
}

func (m *enrollmentServiceMock) Create(_ context.Context, _ models.RequestMeta, req models.CreateEnrollmentRequest, files []models.UploadedFile) (*models.EnrollmentDetail, error) {
	m.createReq = req
	m.createFiles = files
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &models.EnrollmentDetail{}, nil
}

func (m *enrollmentServiceMock) Stats(_ context.Context, periodID string) (*models.EnrollmentStats, error) {
	m.statsPeriod = periodID
	return &models.EnrollmentStats{PeriodID: periodID}, nil
}

func (m *enrollmentServiceMock) Certificate(context.Context, string) (*service.ExportFile, error) {
	return &service.ExportFile{FileName: "constancia-MAT-2025-0001.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")}, nil
}

func enrollmentRouter(svc enrollmentService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewEnrollmentHandler(svc)
	r := gin.New()
	r.POST("/enrollments", middleware.Upload(middleware.DocumentRule(middleware.AnyField)), middleware.FormPayload(), h.Create)
	r.GET("/enrollments/stats", h.Stats)
	r.GET("/enrollments/:id/certificate", h.Certificate)
	return r
}

func TestEnrollmentHandlerCreateMultipart(t *testing.T) {
	svc := &enrollmentServiceMock{}
	r := enrollmentRouter(svc)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("student_id", "8b7f3a52-7d1e-4c39-9f0e-2a1c5b7e9d10"))
	require.NoError(t, mw.WriteField("is_scholarship", "true"))
	require.NoError(t, mw.WriteField("scholarship_pct", "25"))
	part, err := mw.CreateFormFile("certificado_nacimiento", "acta.pdf")
	require.NoError(t, err)
	_, _ = part.Write([]byte("%PDF-1.4\n%%EOF"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/enrollments", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "8b7f3a52-7d1e-4c39-9f0e-2a1c5b7e9d10", svc.createReq.StudentID)
	assert.True(t, svc.createReq.IsScholarship)
	assert.Equal(t, 25.0, svc.createReq.ScholarshipPct)
	require.Len(t, svc.createFiles, 1)
	assert.Equal(t, "certificado_nacimiento", svc.createFiles[0].Field)
	assert.Equal(t, "application/pdf", svc.createFiles[0].ContentType)
}

func TestEnrollmentHandlerCreateCapacityConflict(t *testing.T) {
	svc := &enrollmentServiceMock{createErr: appErrors.ErrCapacityExceeded}
	r := enrollmentRouter(svc)

	req := httptest.NewRequest(http.MethodPost, "/enrollments", bytes.NewBufferString(`{"student_id":"x"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), appErrors.ErrCapacityExceeded.Code)
}

func TestEnrollmentHandlerStatsRequiresPeriod(t *testing.T) {
	svc := &enrollmentServiceMock{}
	r := enrollmentRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/enrollments/stats", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/enrollments/stats?period_id=p1", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "p1", svc.statsPeriod)
}

func TestEnrollmentHandlerCertificateDisposition(t *testing.T) {
	r := enrollmentRouter(&enrollmentServiceMock{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/enrollments/e1/certificate", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="constancia-MAT-2025-0001.pdf"`, w.Header().Get("Content-Disposition"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/enrollments/e1/certificate?inline=true", nil))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "inline")
}
