package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/internal/service"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/response"
)

type vacationService interface {
	ListPeriods(ctx context.Context) ([]models.VacationPeriod, error)
	GetPeriod(ctx context.Context, id string) (*models.VacationPeriod, error)
	CreatePeriod(ctx context.Context, meta models.RequestMeta, req models.VacationPeriodRequest) (*models.VacationPeriod, error)
	UpdatePeriod(ctx context.Context, meta models.RequestMeta, id string, req models.VacationPeriodRequest) (*models.VacationPeriod, error)
	DeletePeriod(ctx context.Context, meta models.RequestMeta, id string) error
	ListCourses(ctx context.Context, filter models.VacationCourseFilter) ([]models.VacationCourse, error)
	GetCourse(ctx context.Context, id string) (*models.VacationCourse, error)
	CreateCourse(ctx context.Context, meta models.RequestMeta, req models.VacationCourseRequest) (*models.VacationCourse, error)
	UpdateCourse(ctx context.Context, meta models.RequestMeta, id string, req models.VacationCourseRequest) (*models.VacationCourse, error)
	DeleteCourse(ctx context.Context, meta models.RequestMeta, id string) error
	ListEnrollments(ctx context.Context, filter models.VacationEnrollmentFilter) ([]models.VacationEnrollmentDetail, *models.Pagination, error)
	GetEnrollment(ctx context.Context, id string) (*models.VacationEnrollmentDetail, error)
	Enroll(ctx context.Context, meta models.RequestMeta, req models.VacationEnrollmentRequest) (*models.VacationEnrollmentDetail, error)
	VerifyPayment(ctx context.Context, meta models.RequestMeta, id string, req models.VerifyPaymentRequest) (*models.VacationEnrollmentDetail, error)
	DeleteEnrollment(ctx context.Context, meta models.RequestMeta, id string) error
	Receipt(ctx context.Context, ids []string) (*service.ExportFile, error)
}

// VacationHandler exposes vacation periods, courses and enrollments.
type VacationHandler struct {
	vacation vacationService
}

// NewVacationHandler constructs VacationHandler.
func NewVacationHandler(vacation vacationService) *VacationHandler {
	return &VacationHandler{vacation: vacation}
}

// ListPeriods godoc
// @Summary List vacation periods
// @Tags Vacation
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /vacation/periods [get]
func (h *VacationHandler) ListPeriods(c *gin.Context) {
	items, err := h.vacation.ListPeriods(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// GetPeriod godoc
// @Summary Get vacation period
// @Tags Vacation
// @Produce json
// @Param id path string true "Vacation period ID"
// @Success 200 {object} response.Envelope
// @Router /vacation/periods/{id} [get]
func (h *VacationHandler) GetPeriod(c *gin.Context) {
	item, err := h.vacation.GetPeriod(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// CreatePeriod godoc
// @Summary Create vacation period
// @Tags Vacation
// @Accept json
// @Produce json
// @Param payload body models.VacationPeriodRequest true "Period"
// @Success 201 {object} response.Envelope
// @Router /vacation/periods [post]
func (h *VacationHandler) CreatePeriod(c *gin.Context) {
	var req models.VacationPeriodRequest
	if !bind(c, &req) {
		return
	}
	item, err := h.vacation.CreatePeriod(c.Request.Context(), meta(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// UpdatePeriod godoc
// @Summary Update vacation period
// @Tags Vacation
// @Accept json
// @Produce json
// @Param id path string true "Vacation period ID"
// @Param payload body models.VacationPeriodRequest true "Period"
// @Success 200 {object} response.Envelope
// @Router /vacation/periods/{id} [put]
func (h *VacationHandler) UpdatePeriod(c *gin.Context) {
	var req models.VacationPeriodRequest
	if !bind(c, &req) {
		return
	}
	item, err := h.vacation.UpdatePeriod(c.Request.Context(), meta(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// DeletePeriod godoc
// @Summary Delete vacation period
// @Tags Vacation
// @Param id path string true "Vacation period ID"
// @Success 204
// @Router /vacation/periods/{id} [delete]
func (h *VacationHandler) DeletePeriod(c *gin.Context) {
	if err := h.vacation.DeletePeriod(c.Request.Context(), meta(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListCourses godoc
// @Summary List vacation courses
// @Tags Vacation
// @Produce json
// @Param vacation_period_id query string false "Vacation period"
// @Param area query string false "Area"
// @Param active query bool false "Active flag"
// @Success 200 {object} response.Envelope
// @Router /vacation/courses [get]
func (h *VacationHandler) ListCourses(c *gin.Context) {
	filter := models.VacationCourseFilter{
		VacationPeriodID: c.Query("vacation_period_id"),
		Area:             c.Query("area"),
		Active:           optionalBool(c, "active"),
		Search:           search(c),
	}
	items, err := h.vacation.ListCourses(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// GetCourse godoc
// @Summary Get vacation course
// @Tags Vacation
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /vacation/courses/{id} [get]
func (h *VacationHandler) GetCourse(c *gin.Context) {
	item, err := h.vacation.GetCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// CreateCourse godoc
// @Summary Create vacation course
// @Tags Vacation
// @Accept json
// @Produce json
// @Param payload body models.VacationCourseRequest true "Course"
// @Success 201 {object} response.Envelope
// @Router /vacation/courses [post]
func (h *VacationHandler) CreateCourse(c *gin.Context) {
	var req models.VacationCourseRequest
	if !bind(c, &req) {
		return
	}
	item, err := h.vacation.CreateCourse(c.Request.Context(), meta(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// UpdateCourse godoc
// @Summary Update vacation course
// @Tags Vacation
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body models.VacationCourseRequest true "Course"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /vacation/courses/{id} [put]
func (h *VacationHandler) UpdateCourse(c *gin.Context) {
	var req models.VacationCourseRequest
	if !bind(c, &req) {
		return
	}
	item, err := h.vacation.UpdateCourse(c.Request.Context(), meta(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// DeleteCourse godoc
// @Summary Delete vacation course
// @Tags Vacation
// @Param id path string true "Course ID"
// @Success 204
// @Router /vacation/courses/{id} [delete]
func (h *VacationHandler) DeleteCourse(c *gin.Context) {
	if err := h.vacation.DeleteCourse(c.Request.Context(), meta(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func (h *VacationHandler) listEnrollments(c *gin.Context, filter models.VacationEnrollmentFilter) {
	filter.PaymentVerified = optionalBool(c, "payment_verified")
	filter.Status = c.Query("status")
	filter.Search = search(c)
	filter.Page, filter.PageSize = paging(c)
	items, pagination, err := h.vacation.ListEnrollments(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// ListEnrollments godoc
// @Summary List vacation enrollments
// @Tags Vacation
// @Produce json
// @Param vacation_course_id query string false "Course"
// @Param vacation_period_id query string false "Vacation period"
// @Param payment_verified query bool false "Payment verified"
// @Success 200 {object} response.Envelope
// @Router /vacation/enrollments [get]
func (h *VacationHandler) ListEnrollments(c *gin.Context) {
	h.listEnrollments(c, models.VacationEnrollmentFilter{
		VacationCourseID: c.Query("vacation_course_id"),
		VacationPeriodID: c.Query("vacation_period_id"),
	})
}

// CourseRoster godoc
// @Summary Enrollments of one course
// @Tags Vacation
// @Produce json
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /vacation/courses/{id}/enrollments [get]
func (h *VacationHandler) CourseRoster(c *gin.Context) {
	h.listEnrollments(c, models.VacationEnrollmentFilter{VacationCourseID: c.Param("id")})
}

// GetEnrollment godoc
// @Summary Get vacation enrollment
// @Tags Vacation
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /vacation/enrollments/{id} [get]
func (h *VacationHandler) GetEnrollment(c *gin.Context) {
	item, err := h.vacation.GetEnrollment(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Enroll godoc
// @Summary Enroll a participant in a vacation course
// @Tags Vacation
// @Accept json
// @Produce json
// @Param payload body models.VacationEnrollmentRequest true "Enrollment"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /vacation/enrollments [post]
func (h *VacationHandler) Enroll(c *gin.Context) {
	var req models.VacationEnrollmentRequest
	if !bind(c, &req) {
		return
	}
	item, err := h.vacation.Enroll(c.Request.Context(), meta(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// VerifyPayment godoc
// @Summary Mark the payment of an enrollment as verified
// @Tags Vacation
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body models.VerifyPaymentRequest true "Payment"
// @Success 200 {object} response.Envelope
// @Router /vacation/enrollments/{id}/verify-payment [post]
func (h *VacationHandler) VerifyPayment(c *gin.Context) {
	var req models.VerifyPaymentRequest
	if c.Request.ContentLength != 0 && !bind(c, &req) {
		return
	}
	item, err := h.vacation.VerifyPayment(c.Request.Context(), meta(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// DeleteEnrollment godoc
// @Summary Delete a vacation enrollment and free its seat
// @Tags Vacation
// @Param id path string true "Enrollment ID"
// @Success 204
// @Router /vacation/enrollments/{id} [delete]
func (h *VacationHandler) DeleteEnrollment(c *gin.Context) {
	if err := h.vacation.DeleteEnrollment(c.Request.Context(), meta(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Receipt godoc
// @Summary Payment receipt of one enrollment
// @Tags Vacation
// @Produce application/pdf
// @Param id path string true "Enrollment ID"
// @Param inline query bool false "Render inline"
// @Success 200 {file} binary
// @Router /vacation/enrollments/{id}/receipt [get]
func (h *VacationHandler) Receipt(c *gin.Context) {
	h.receipt(c, []string{c.Param("id")})
}

// CombinedReceipt godoc
// @Summary One receipt for several enrollments of the same payer
// @Tags Vacation
// @Produce application/pdf
// @Param ids query string true "Comma separated enrollment IDs"
// @Param inline query bool false "Render inline"
// @Success 200 {file} binary
// @Router /vacation/receipts [get]
func (h *VacationHandler) CombinedReceipt(c *gin.Context) {
	var ids []string
	for _, id := range strings.Split(c.Query("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "el parámetro ids es obligatorio"))
		return
	}
	h.receipt(c, ids)
}

func (h *VacationHandler) receipt(c *gin.Context, ids []string) {
	file, err := h.vacation.Receipt(c.Request.Context(), ids)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.ContentType, file.FileName, c.Query("inline") == "true", file.Data)
}
