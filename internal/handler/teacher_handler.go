package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-admin-api/internal/middleware"
	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/internal/service"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/response"
)

// TeacherHandler exposes teacher and assignment endpoints.
type TeacherHandler struct {
	teachers *service.TeacherService
}

// NewTeacherHandler constructs TeacherHandler.
func NewTeacherHandler(teachers *service.TeacherService) *TeacherHandler {
	return &TeacherHandler{teachers: teachers}
}

// List godoc
// @Summary List teachers
// @Tags Teachers
// @Produce json
// @Param search query string false "Name, code or CI"
// @Param status query string false "Status"
// @Param specialty query string false "Specialty"
// @Success 200 {object} response.Envelope
// @Router /teachers [get]
func (h *TeacherHandler) List(c *gin.Context) {
	filter := models.TeacherFilter{
		Search:    search(c),
		Status:    c.Query("status"),
		Specialty: c.Query("specialty"),
		SortBy:    c.Query("sort"),
		SortOrder: c.Query("order"),
	}
	filter.Page, filter.PageSize = paging(c)
	teachers, pagination, err := h.teachers.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teachers, pagination)
}

// Get godoc
// @Summary Get teacher
// @Tags Teachers
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id} [get]
func (h *TeacherHandler) Get(c *gin.Context) {
	teacher, err := h.teachers.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil)
}

// Create godoc
// @Summary Create teacher
// @Tags Teachers
// @Accept json
// @Produce json
// @Param payload body models.TeacherRequest true "Teacher"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /teachers [post]
func (h *TeacherHandler) Create(c *gin.Context) {
	var req models.TeacherRequest
	if !bind(c, &req) {
		return
	}
	teacher, err := h.teachers.Create(c.Request.Context(), meta(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, teacher)
}

// Update godoc
// @Summary Update teacher
// @Tags Teachers
// @Accept json
// @Produce json
// @Param id path string true "Teacher ID"
// @Param payload body models.TeacherRequest true "Teacher"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id} [put]
func (h *TeacherHandler) Update(c *gin.Context) {
	var req models.TeacherRequest
	if !bind(c, &req) {
		return
	}
	teacher, err := h.teachers.Update(c.Request.Context(), meta(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil)
}

// Delete godoc
// @Summary Delete teacher
// @Tags Teachers
// @Param id path string true "Teacher ID"
// @Success 204
// @Router /teachers/{id} [delete]
func (h *TeacherHandler) Delete(c *gin.Context) {
	if err := h.teachers.Delete(c.Request.Context(), meta(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UploadPhoto godoc
// @Summary Upload teacher photo
// @Tags Teachers
// @Accept mpfd
// @Produce json
// @Param id path string true "Teacher ID"
// @Param photo formData file true "JPEG, PNG or WebP up to 5MB"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/photo [post]
func (h *TeacherHandler) UploadPhoto(c *gin.Context) {
	file, ok := middleware.FileFor(c, "photo")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUpload, "el archivo photo es obligatorio"))
		return
	}
	teacher, err := h.teachers.UploadPhoto(c.Request.Context(), meta(c), c.Param("id"), file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil)
}

// UploadCV godoc
// @Summary Upload teacher CV
// @Tags Teachers
// @Accept mpfd
// @Produce json
// @Param id path string true "Teacher ID"
// @Param cv formData file true "PDF or Word up to 10MB"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/cv [post]
func (h *TeacherHandler) UploadCV(c *gin.Context) {
	file, ok := middleware.FileFor(c, "cv")
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrUpload, "el archivo cv es obligatorio"))
		return
	}
	teacher, err := h.teachers.UploadCV(c.Request.Context(), meta(c), c.Param("id"), file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, teacher, nil)
}

// ListAssignments godoc
// @Summary List teaching assignments
// @Tags Teachers
// @Produce json
// @Param teacher_id query string false "Teacher"
// @Param section_id query string false "Section"
// @Param period_id query string false "Period"
// @Param subject_id query string false "Subject"
// @Success 200 {object} response.Envelope
// @Router /teacher-assignments [get]
func (h *TeacherHandler) ListAssignments(c *gin.Context) {
	filter := models.TeacherAssignmentFilter{
		TeacherID: c.Query("teacher_id"),
		SectionID: c.Query("section_id"),
		PeriodID:  c.Query("period_id"),
		SubjectID: c.Query("subject_id"),
	}
	items, err := h.teachers.ListAssignments(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// CreateAssignment godoc
// @Summary Assign a subject to a teacher
// @Tags Teachers
// @Accept json
// @Produce json
// @Param payload body models.TeacherAssignmentRequest true "Assignment"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /teacher-assignments [post]
func (h *TeacherHandler) CreateAssignment(c *gin.Context) {
	var req models.TeacherAssignmentRequest
	if !bind(c, &req) {
		return
	}
	item, err := h.teachers.CreateAssignment(c.Request.Context(), meta(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, item)
}

// UpdateAssignment godoc
// @Summary Update a teaching assignment
// @Tags Teachers
// @Accept json
// @Produce json
// @Param id path string true "Assignment ID"
// @Param payload body models.TeacherAssignmentRequest true "Assignment"
// @Success 200 {object} response.Envelope
// @Router /teacher-assignments/{id} [put]
func (h *TeacherHandler) UpdateAssignment(c *gin.Context) {
	var req models.TeacherAssignmentRequest
	if !bind(c, &req) {
		return
	}
	item, err := h.teachers.UpdateAssignment(c.Request.Context(), meta(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// DeleteAssignment godoc
// @Summary Delete a teaching assignment
// @Tags Teachers
// @Param id path string true "Assignment ID"
// @Success 204
// @Router /teacher-assignments/{id} [delete]
func (h *TeacherHandler) DeleteAssignment(c *gin.Context) {
	if err := h.teachers.DeleteAssignment(c.Request.Context(), meta(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
