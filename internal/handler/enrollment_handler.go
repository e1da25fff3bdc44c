package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-admin-api/internal/middleware"
	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/internal/service"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/response"
)

type enrollmentService interface {
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.EnrollmentDetail, error)
	Create(ctx context.Context, meta models.RequestMeta, req models.CreateEnrollmentRequest, files []models.UploadedFile) (*models.EnrollmentDetail, error)
	AutoEnroll(ctx context.Context, meta models.RequestMeta, req models.AutoEnrollmentRequest, files []models.UploadedFile) (*models.EnrollmentDetail, error)
	Update(ctx context.Context, meta models.RequestMeta, id string, req models.UpdateEnrollmentRequest) (*models.EnrollmentDetail, error)
	Delete(ctx context.Context, meta models.RequestMeta, id string) error
	ChangeStatus(ctx context.Context, meta models.RequestMeta, id string, req models.ChangeEnrollmentStatusRequest) (*models.EnrollmentDetail, error)
	Transfer(ctx context.Context, meta models.RequestMeta, id string, req models.TransferSectionRequest) (*models.EnrollmentDetail, error)
	AddDocuments(ctx context.Context, meta models.RequestMeta, id string, files []models.UploadedFile) ([]models.EnrollmentDocument, error)
	VerifyDocument(ctx context.Context, meta models.RequestMeta, enrollmentID, documentID string, req models.VerifyDocumentRequest) (*models.EnrollmentDocument, error)
	DeleteDocument(ctx context.Context, meta models.RequestMeta, enrollmentID, documentID string) error
	Stats(ctx context.Context, periodID string) (*models.EnrollmentStats, error)
	Export(ctx context.Context, filter models.EnrollmentFilter, format string) (*service.ExportFile, error)
	Certificate(ctx context.Context, id string) (*service.ExportFile, error)
}

// EnrollmentHandler exposes the enrollment workflow.
type EnrollmentHandler struct {
	enrollments enrollmentService
}

// NewEnrollmentHandler constructs EnrollmentHandler.
func NewEnrollmentHandler(enrollments enrollmentService) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments}
}

func enrollmentFilter(c *gin.Context) models.EnrollmentFilter {
	filter := models.EnrollmentFilter{
		PeriodID:  c.Query("period_id"),
		SectionID: c.Query("section_id"),
		GradeID:   c.Query("grade_id"),
		StudentID: c.Query("student_id"),
		Status:    models.EnrollmentStatus(c.Query("status")),
		Search:    search(c),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	filter.Page, filter.PageSize = paging(c)
	return filter
}

// List godoc
// @Summary List enrollments
// @Tags Enrollments
// @Produce json
// @Param period_id query string false "Period"
// @Param section_id query string false "Section"
// @Param grade_id query string false "Grade"
// @Param status query string false "Status"
// @Param search query string false "Student name, code or enrollment number"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /enrollments [get]
func (h *EnrollmentHandler) List(c *gin.Context) {
	items, pagination, err := h.enrollments.List(c.Request.Context(), enrollmentFilter(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get enrollment with documents
// @Tags Enrollments
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [get]
func (h *EnrollmentHandler) Get(c *gin.Context) {
	item, err := h.enrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Enroll a student
// @Description Accepts JSON or multipart with the fields plus document files named by document type
// @Tags Enrollments
// @Accept json,mpfd
// @Produce json
// @Param payload body models.CreateEnrollmentRequest true "Enrollment"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments [post]
func (h *EnrollmentHandler) Create(c *gin.Context) {
	var req models.CreateEnrollmentRequest
	if !bind(c, &req) {
		return
	}
	item, err := h.enrollments.Create(c.Request.Context(), meta(c), req, middleware.Files(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// AutoEnroll godoc
// @Summary Self-service enrollment for the logged-in student
// @Tags Enrollments
// @Accept mpfd
// @Produce json
// @Param section_id formData string true "Section"
// @Param period_id formData string true "Period"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/auto [post]
func (h *EnrollmentHandler) AutoEnroll(c *gin.Context) {
	var req models.AutoEnrollmentRequest
	if !bind(c, &req) {
		return
	}
	item, err := h.enrollments.AutoEnroll(c.Request.Context(), meta(c), req, middleware.Files(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update enrollment flags and notes
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body models.UpdateEnrollmentRequest true "Changes"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id} [put]
func (h *EnrollmentHandler) Update(c *gin.Context) {
	var req models.UpdateEnrollmentRequest
	if !bind(c, &req) {
		return
	}
	item, err := h.enrollments.Update(c.Request.Context(), meta(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete enrollment
// @Tags Enrollments
// @Param id path string true "Enrollment ID"
// @Success 204
// @Router /enrollments/{id} [delete]
func (h *EnrollmentHandler) Delete(c *gin.Context) {
	if err := h.enrollments.Delete(c.Request.Context(), meta(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ChangeStatus godoc
// @Summary Change enrollment status
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body models.ChangeEnrollmentStatusRequest true "Status"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/status [patch]
func (h *EnrollmentHandler) ChangeStatus(c *gin.Context) {
	var req models.ChangeEnrollmentStatusRequest
	if !bind(c, &req) {
		return
	}
	item, err := h.enrollments.ChangeStatus(c.Request.Context(), meta(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Transfer godoc
// @Summary Move an enrollment to another section
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body models.TransferSectionRequest true "Destination"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /enrollments/{id}/transfer [post]
func (h *EnrollmentHandler) Transfer(c *gin.Context) {
	var req models.TransferSectionRequest
	if !bind(c, &req) {
		return
	}
	item, err := h.enrollments.Transfer(c.Request.Context(), meta(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// AddDocuments godoc
// @Summary Attach documents to an enrollment
// @Tags Enrollments
// @Accept mpfd
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 201 {object} response.Envelope
// @Router /enrollments/{id}/documents [post]
func (h *EnrollmentHandler) AddDocuments(c *gin.Context) {
	files := middleware.Files(c)
	if len(files) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrUpload, "debe adjuntar al menos un documento"))
		return
	}
	docs, err := h.enrollments.AddDocuments(c.Request.Context(), meta(c), c.Param("id"), files)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, docs)
}

// VerifyDocument godoc
// @Summary Mark a document as verified or not
// @Tags Enrollments
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param documentId path string true "Document ID"
// @Param payload body models.VerifyDocumentRequest true "Verification"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/documents/{documentId}/verify [patch]
func (h *EnrollmentHandler) VerifyDocument(c *gin.Context) {
	var req models.VerifyDocumentRequest
	if !bind(c, &req) {
		return
	}
	doc, err := h.enrollments.VerifyDocument(c.Request.Context(), meta(c), c.Param("id"), c.Param("documentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// DeleteDocument godoc
// @Summary Delete a document
// @Tags Enrollments
// @Param id path string true "Enrollment ID"
// @Param documentId path string true "Document ID"
// @Success 204
// @Router /enrollments/{id}/documents/{documentId} [delete]
func (h *EnrollmentHandler) DeleteDocument(c *gin.Context) {
	if err := h.enrollments.DeleteDocument(c.Request.Context(), meta(c), c.Param("id"), c.Param("documentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Stats godoc
// @Summary Enrollment statistics for a period
// @Tags Enrollments
// @Produce json
// @Param period_id query string true "Period"
// @Success 200 {object} response.Envelope
// @Router /enrollments/stats [get]
func (h *EnrollmentHandler) Stats(c *gin.Context) {
	periodID := c.Query("period_id")
	if periodID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "el parámetro period_id es obligatorio"))
		return
	}
	stats, err := h.enrollments.Stats(c.Request.Context(), periodID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}

// Export godoc
// @Summary Export enrollments
// @Tags Enrollments
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Produce text/csv
// @Param format query string false "xlsx or csv" default(xlsx)
// @Param period_id query string false "Period"
// @Success 200 {file} binary
// @Router /enrollments/export [get]
func (h *EnrollmentHandler) Export(c *gin.Context) {
	file, err := h.enrollments.Export(c.Request.Context(), enrollmentFilter(c), c.DefaultQuery("format", "xlsx"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.ContentType, file.FileName, false, file.Data)
}

// Certificate godoc
// @Summary Enrollment certificate
// @Tags Enrollments
// @Produce application/pdf
// @Param id path string true "Enrollment ID"
// @Param inline query bool false "Render inline"
// @Success 200 {file} binary
// @Router /enrollments/{id}/certificate [get]
func (h *EnrollmentHandler) Certificate(c *gin.Context) {
	file, err := h.enrollments.Certificate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.ContentType, file.FileName, c.Query("inline") == "true", file.Data)
}
