package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-admin-api/internal/middleware"
	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/response"
)

type preEnrollmentService interface {
	List(ctx context.Context, filter models.PreEnrollmentFilter) ([]models.PreEnrollment, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.PreEnrollmentDetail, error)
	Create(ctx context.Context, meta models.RequestMeta, req models.PreEnrollmentRequest) (*models.PreEnrollmentDetail, error)
	Update(ctx context.Context, meta models.RequestMeta, id string, req models.PreEnrollmentRequest) (*models.PreEnrollmentDetail, error)
	Transition(ctx context.Context, meta models.RequestMeta, id string, req models.PreEnrollmentTransitionRequest) (*models.PreEnrollmentDetail, error)
	AddDocuments(ctx context.Context, meta models.RequestMeta, id string, files []models.UploadedFile) ([]models.PreEnrollmentDocument, error)
	ReviewDocument(ctx context.Context, meta models.RequestMeta, id, documentID string, req models.ReviewDocumentRequest) (*models.PreEnrollmentDocument, error)
	Convert(ctx context.Context, meta models.RequestMeta, id string, req models.ConvertPreEnrollmentRequest) (*models.ConversionResult, error)
	ListQuotas(ctx context.Context, periodID string) ([]models.EnrollmentQuota, error)
	SetQuota(ctx context.Context, meta models.RequestMeta, req models.QuotaRequest) (*models.EnrollmentQuota, error)
}

// PreEnrollmentHandler exposes admissions and quotas.
type PreEnrollmentHandler struct {
	preEnrollments preEnrollmentService
}

// NewPreEnrollmentHandler constructs PreEnrollmentHandler.
func NewPreEnrollmentHandler(svc preEnrollmentService) *PreEnrollmentHandler {
	return &PreEnrollmentHandler{preEnrollments: svc}
}

// List godoc
// @Summary List pre-enrollments
// @Tags PreEnrollments
// @Produce json
// @Param period_id query string false "Period"
// @Param grade_id query string false "Grade"
// @Param status query string false "Status"
// @Success 200 {object} response.Envelope
// @Router /pre-enrollments [get]
func (h *PreEnrollmentHandler) List(c *gin.Context) {
	filter := models.PreEnrollmentFilter{
		PeriodID: c.Query("period_id"),
		GradeID:  c.Query("grade_id"),
		Status:   models.PreEnrollmentStatus(c.Query("status")),
		Search:   search(c),
	}
	filter.Page, filter.PageSize = paging(c)
	items, pagination, err := h.preEnrollments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get pre-enrollment with documents
// @Tags PreEnrollments
// @Produce json
// @Param id path string true "Pre-enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /pre-enrollments/{id} [get]
func (h *PreEnrollmentHandler) Get(c *gin.Context) {
	item, err := h.preEnrollments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Create godoc
// @Summary Register a pre-enrollment
// @Description Consumes one quota seat for the period, grade and shift
// @Tags PreEnrollments
// @Accept json
// @Produce json
// @Param payload body models.PreEnrollmentRequest true "Pre-enrollment"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pre-enrollments [post]
func (h *PreEnrollmentHandler) Create(c *gin.Context) {
	var req models.PreEnrollmentRequest
	if !bind(c, &req) {
		return
	}
	item, err := h.preEnrollments.Create(c.Request.Context(), meta(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// Update godoc
// @Summary Update pre-enrollment data
// @Tags PreEnrollments
// @Accept json
// @Produce json
// @Param id path string true "Pre-enrollment ID"
// @Param payload body models.PreEnrollmentRequest true "Pre-enrollment"
// @Success 200 {object} response.Envelope
// @Router /pre-enrollments/{id} [put]
func (h *PreEnrollmentHandler) Update(c *gin.Context) {
	var req models.PreEnrollmentRequest
	if !bind(c, &req) {
		return
	}
	item, err := h.preEnrollments.Update(c.Request.Context(), meta(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Transition godoc
// @Summary Move a pre-enrollment to another state
// @Tags PreEnrollments
// @Accept json
// @Produce json
// @Param id path string true "Pre-enrollment ID"
// @Param payload body models.PreEnrollmentTransitionRequest true "Transition"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pre-enrollments/{id}/status [patch]
func (h *PreEnrollmentHandler) Transition(c *gin.Context) {
	var req models.PreEnrollmentTransitionRequest
	if !bind(c, &req) {
		return
	}
	item, err := h.preEnrollments.Transition(c.Request.Context(), meta(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// AddDocuments godoc
// @Summary Stage documents for review
// @Tags PreEnrollments
// @Accept mpfd
// @Produce json
// @Param id path string true "Pre-enrollment ID"
// @Success 201 {object} response.Envelope
// @Router /pre-enrollments/{id}/documents [post]
func (h *PreEnrollmentHandler) AddDocuments(c *gin.Context) {
	files := middleware.Files(c)
	if len(files) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrUpload, "debe adjuntar al menos un documento"))
		return
	}
	docs, err := h.preEnrollments.AddDocuments(c.Request.Context(), meta(c), c.Param("id"), files)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, docs)
}

// ReviewDocument godoc
// @Summary Approve or reject a staged document
// @Tags PreEnrollments
// @Accept json
// @Produce json
// @Param id path string true "Pre-enrollment ID"
// @Param documentId path string true "Document ID"
// @Param payload body models.ReviewDocumentRequest true "Review"
// @Success 200 {object} response.Envelope
// @Router /pre-enrollments/{id}/documents/{documentId}/review [patch]
func (h *PreEnrollmentHandler) ReviewDocument(c *gin.Context) {
	var req models.ReviewDocumentRequest
	if !bind(c, &req) {
		return
	}
	doc, err := h.preEnrollments.ReviewDocument(c.Request.Context(), meta(c), c.Param("id"), c.Param("documentId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Convert godoc
// @Summary Convert an approved pre-enrollment into student, guardian and enrollment
// @Tags PreEnrollments
// @Accept json
// @Produce json
// @Param id path string true "Pre-enrollment ID"
// @Param payload body models.ConvertPreEnrollmentRequest true "Conversion"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /pre-enrollments/{id}/convert [post]
func (h *PreEnrollmentHandler) Convert(c *gin.Context) {
	var req models.ConvertPreEnrollmentRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.preEnrollments.Convert(c.Request.Context(), meta(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// ListQuotas godoc
// @Summary List quotas of a period
// @Tags PreEnrollments
// @Produce json
// @Param period_id query string true "Period"
// @Success 200 {object} response.Envelope
// @Router /quotas [get]
func (h *PreEnrollmentHandler) ListQuotas(c *gin.Context) {
	periodID := c.Query("period_id")
	if periodID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "el parámetro period_id es obligatorio"))
		return
	}
	items, err := h.preEnrollments.ListQuotas(c.Request.Context(), periodID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// SetQuota godoc
// @Summary Create or resize a quota
// @Tags PreEnrollments
// @Accept json
// @Produce json
// @Param payload body models.QuotaRequest true "Quota"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /quotas [put]
func (h *PreEnrollmentHandler) SetQuota(c *gin.Context) {
	var req models.QuotaRequest
	if !bind(c, &req) {
		return
	}
	quota, err := h.preEnrollments.SetQuota(c.Request.Context(), meta(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quota, nil)
}
