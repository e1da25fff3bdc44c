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

type studentService interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.StudentDetail, error)
	Create(ctx context.Context, meta models.RequestMeta, req models.StudentRequest) (*service.StudentResult, error)
	Update(ctx context.Context, meta models.RequestMeta, id string, req models.StudentRequest) (*service.StudentResult, error)
	Delete(ctx context.Context, meta models.RequestMeta, id string) error
	UploadPhoto(ctx context.Context, meta models.RequestMeta, id string, file models.UploadedFile) (*models.Student, error)
	LinkGuardian(ctx context.Context, meta models.RequestMeta, studentID string, req models.LinkGuardianRequest) (*models.StudentDetail, error)
	UnlinkGuardian(ctx context.Context, meta models.RequestMeta, studentID, guardianID string) error
	Enrollments(ctx context.Context, studentID string, page, size int) ([]models.EnrollmentDetail, *models.Pagination, error)
}

// StudentHandler exposes student endpoints.
type StudentHandler struct {
	students studentService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students studentService) *StudentHandler {
	return &StudentHandler{students: students}
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Param search query string false "Search by name, code or CI"
// @Param status query string false "Status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	filter := models.StudentFilter{
		Search:    search(c),
		Status:    c.Query("status"),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	filter.Page, filter.PageSize = paging(c)

	students, pagination, err := h.students.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, pagination)
}

// Get godoc
// @Summary Get student detail with guardians
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	student, err := h.students.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Create godoc
// @Summary Create student
// @Description Generates the student code and optionally a user account
// @Tags Students
// @Accept json
// @Produce json
// @Param payload body models.StudentRequest true "Student payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /students [post]
func (h *StudentHandler) Create(c *gin.Context) {
	var req models.StudentRequest
	if !bind(c, &req) {
		return
	}
	student, err := h.students.Create(c.Request.Context(), meta(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// Update godoc
// @Summary Update student
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body models.StudentRequest true "Student payload"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [put]
func (h *StudentHandler) Update(c *gin.Context) {
	var req models.StudentRequest
	if !bind(c, &req) {
		return
	}
	student, err := h.students.Update(c.Request.Context(), meta(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// Delete godoc
// @Summary Delete student
// @Tags Students
// @Param id path string true "Student ID"
// @Success 204
// @Router /students/{id} [delete]
func (h *StudentHandler) Delete(c *gin.Context) {
	if err := h.students.Delete(c.Request.Context(), meta(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UploadPhoto godoc
// @Summary Upload student photo
// @Tags Students
// @Accept mpfd
// @Produce json
// @Param id path string true "Student ID"
// @Param photo formData file true "JPEG, PNG or WebP up to 5MB"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /students/{id}/photo [post]
func (h *StudentHandler) UploadPhoto(c *gin.Context) {
	file, ok := middleware.FileFor(c, "photo")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUpload, "el archivo photo es obligatorio"))
		return
	}
	student, err := h.students.UploadPhoto(c.Request.Context(), meta(c), c.Param("id"), file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// LinkGuardian godoc
// @Summary Link a guardian to a student
// @Tags Students
// @Accept json
// @Produce json
// @Param id path string true "Student ID"
// @Param payload body models.LinkGuardianRequest true "Link"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/guardians [post]
func (h *StudentHandler) LinkGuardian(c *gin.Context) {
	var req models.LinkGuardianRequest
	if !bind(c, &req) {
		return
	}
	student, err := h.students.LinkGuardian(c.Request.Context(), meta(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// UnlinkGuardian godoc
// @Summary Remove a guardian link
// @Tags Students
// @Param id path string true "Student ID"
// @Param guardianId path string true "Guardian ID"
// @Success 204
// @Router /students/{id}/guardians/{guardianId} [delete]
func (h *StudentHandler) UnlinkGuardian(c *gin.Context) {
	if err := h.students.UnlinkGuardian(c.Request.Context(), meta(c), c.Param("id"), c.Param("guardianId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Enrollments godoc
// @Summary List the enrollments of a student
// @Tags Students
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/enrollments [get]
func (h *StudentHandler) Enrollments(c *gin.Context) {
	page, size := paging(c)
	items, pagination, err := h.students.Enrollments(c.Request.Context(), c.Param("id"), page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}
