package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-admin-api/internal/service"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
)

type vacationServiceMock struct {
	vacationService
	receiptIDs []string
	receiptErr error
}

func (m *vacationServiceMock) Receipt(_ context.Context, ids []string) (*service.ExportFile, error) {
	m.receiptIDs = ids
	if m.receiptErr != nil {
		return nil, m.receiptErr
	}
	return &service.ExportFile{FileName: "recibo-VAC-INV2025-0001.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")}, nil
}

func vacationRouter(svc vacationService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewVacationHandler(svc)
	r := gin.New()
	r.GET("/vacation/enrollments/:id/receipt", h.Receipt)
	r.GET("/vacation/receipts", h.CombinedReceipt)
	return r
}

func TestVacationHandlerReceiptInline(t *testing.T) {
	svc := &vacationServiceMock{}
	r := vacationRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/vacation/enrollments/v1/receipt?inline=true", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"v1"}, svc.receiptIDs)
	assert.Equal(t, `inline; filename="recibo-VAC-INV2025-0001.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestVacationHandlerCombinedReceipt(t *testing.T) {
	svc := &vacationServiceMock{}
	r := vacationRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/vacation/receipts?ids=a,+b,,c", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"a", "b", "c"}, svc.receiptIDs)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/vacation/receipts", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVacationHandlerReceiptErrorFallsBackToJSON(t *testing.T) {
	svc := &vacationServiceMock{receiptErr: appErrors.Clone(appErrors.ErrNotFound, "inscripción no encontrada")}
	r := vacationRouter(svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/vacation/enrollments/missing/receipt", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.Empty(t, w.Header().Get("Content-Disposition"))
}
