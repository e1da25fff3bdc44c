package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/internal/service"
	"github.com/noah-isme/school-admin-api/pkg/response"
)

// StructureHandler exposes levels, grades, shifts, sections and subjects.
type StructureHandler struct {
	structure *service.StructureService
}

// NewStructureHandler constructs StructureHandler.
func NewStructureHandler(structure *service.StructureService) *StructureHandler {
	return &StructureHandler{structure: structure}
}

func (h *StructureHandler) respond(c *gin.Context, status int, data interface{}, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, status, data, nil)
}

func (h *StructureHandler) deleted(c *gin.Context, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListLevels godoc
// @Summary List levels
// @Tags Structure
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /levels [get]
func (h *StructureHandler) ListLevels(c *gin.Context) {
	levels, err := h.structure.ListLevels(c.Request.Context())
	h.respond(c, http.StatusOK, levels, err)
}

// CreateLevel godoc
// @Summary Create level
// @Tags Structure
// @Accept json
// @Produce json
// @Param payload body models.LevelRequest true "Level"
// @Success 201 {object} response.Envelope
// @Router /levels [post]
func (h *StructureHandler) CreateLevel(c *gin.Context) {
	var req models.LevelRequest
	if !bind(c, &req) {
		return
	}
	level, err := h.structure.CreateLevel(c.Request.Context(), meta(c), req)
	h.respond(c, http.StatusCreated, level, err)
}

// UpdateLevel godoc
// @Summary Update level
// @Tags Structure
// @Accept json
// @Produce json
// @Param id path string true "Level ID"
// @Param payload body models.LevelRequest true "Level"
// @Success 200 {object} response.Envelope
// @Router /levels/{id} [put]
func (h *StructureHandler) UpdateLevel(c *gin.Context) {
	var req models.LevelRequest
	if !bind(c, &req) {
		return
	}
	level, err := h.structure.UpdateLevel(c.Request.Context(), meta(c), c.Param("id"), req)
	h.respond(c, http.StatusOK, level, err)
}

// DeleteLevel godoc
// @Summary Delete level
// @Tags Structure
// @Param id path string true "Level ID"
// @Success 204
// @Router /levels/{id} [delete]
func (h *StructureHandler) DeleteLevel(c *gin.Context) {
	h.deleted(c, h.structure.DeleteLevel(c.Request.Context(), meta(c), c.Param("id")))
}

// ListGrades godoc
// @Summary List grades
// @Tags Structure
// @Produce json
// @Param level_id query string false "Level"
// @Success 200 {object} response.Envelope
// @Router /grades [get]
func (h *StructureHandler) ListGrades(c *gin.Context) {
	grades, err := h.structure.ListGrades(c.Request.Context(), c.Query("level_id"))
	h.respond(c, http.StatusOK, grades, err)
}

// CreateGrade godoc
// @Summary Create grade
// @Tags Structure
// @Accept json
// @Produce json
// @Param payload body models.GradeRequest true "Grade"
// @Success 201 {object} response.Envelope
// @Router /grades [post]
func (h *StructureHandler) CreateGrade(c *gin.Context) {
	var req models.GradeRequest
	if !bind(c, &req) {
		return
	}
	grade, err := h.structure.CreateGrade(c.Request.Context(), meta(c), req)
	h.respond(c, http.StatusCreated, grade, err)
}

// UpdateGrade godoc
// @Summary Update grade
// @Tags Structure
// @Accept json
// @Produce json
// @Param id path string true "Grade ID"
// @Param payload body models.GradeRequest true "Grade"
// @Success 200 {object} response.Envelope
// @Router /grades/{id} [put]
func (h *StructureHandler) UpdateGrade(c *gin.Context) {
	var req models.GradeRequest
	if !bind(c, &req) {
		return
	}
	grade, err := h.structure.UpdateGrade(c.Request.Context(), meta(c), c.Param("id"), req)
	h.respond(c, http.StatusOK, grade, err)
}

// DeleteGrade godoc
// @Summary Delete grade
// @Tags Structure
// @Param id path string true "Grade ID"
// @Success 204
// @Router /grades/{id} [delete]
func (h *StructureHandler) DeleteGrade(c *gin.Context) {
	h.deleted(c, h.structure.DeleteGrade(c.Request.Context(), meta(c), c.Param("id")))
}

// ListShifts godoc
// @Summary List shifts
// @Tags Structure
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /shifts [get]
func (h *StructureHandler) ListShifts(c *gin.Context) {
	shifts, err := h.structure.ListShifts(c.Request.Context())
	h.respond(c, http.StatusOK, shifts, err)
}

// CreateShift godoc
// @Summary Create shift
// @Tags Structure
// @Accept json
// @Produce json
// @Param payload body models.ShiftRequest true "Shift"
// @Success 201 {object} response.Envelope
// @Router /shifts [post]
func (h *StructureHandler) CreateShift(c *gin.Context) {
	var req models.ShiftRequest
	if !bind(c, &req) {
		return
	}
	shift, err := h.structure.CreateShift(c.Request.Context(), meta(c), req)
	h.respond(c, http.StatusCreated, shift, err)
}

// UpdateShift godoc
// @Summary Update shift
// @Tags Structure
// @Accept json
// @Produce json
// @Param id path string true "Shift ID"
// @Param payload body models.ShiftRequest true "Shift"
// @Success 200 {object} response.Envelope
// @Router /shifts/{id} [put]
func (h *StructureHandler) UpdateShift(c *gin.Context) {
	var req models.ShiftRequest
	if !bind(c, &req) {
		return
	}
	shift, err := h.structure.UpdateShift(c.Request.Context(), meta(c), c.Param("id"), req)
	h.respond(c, http.StatusOK, shift, err)
}

// DeleteShift godoc
// @Summary Delete shift
// @Tags Structure
// @Param id path string true "Shift ID"
// @Success 204
// @Router /shifts/{id} [delete]
func (h *StructureHandler) DeleteShift(c *gin.Context) {
	h.deleted(c, h.structure.DeleteShift(c.Request.Context(), meta(c), c.Param("id")))
}

// ListSections godoc
// @Summary List sections with occupancy
// @Tags Structure
// @Produce json
// @Param grade_id query string false "Grade"
// @Param shift_id query string false "Shift"
// @Param period_id query string false "Period used to count active enrollments"
// @Success 200 {object} response.Envelope
// @Router /sections [get]
func (h *StructureHandler) ListSections(c *gin.Context) {
	filter := models.SectionFilter{
		GradeID:  c.Query("grade_id"),
		ShiftID:  c.Query("shift_id"),
		PeriodID: c.Query("period_id"),
	}
	sections, err := h.structure.ListSections(c.Request.Context(), filter)
	h.respond(c, http.StatusOK, sections, err)
}

// GetSection godoc
// @Summary Get section
// @Tags Structure
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /sections/{id} [get]
func (h *StructureHandler) GetSection(c *gin.Context) {
	section, err := h.structure.GetSection(c.Request.Context(), c.Param("id"))
	h.respond(c, http.StatusOK, section, err)
}

// CreateSection godoc
// @Summary Create section
// @Tags Structure
// @Accept json
// @Produce json
// @Param payload body models.SectionRequest true "Section"
// @Success 201 {object} response.Envelope
// @Router /sections [post]
func (h *StructureHandler) CreateSection(c *gin.Context) {
	var req models.SectionRequest
	if !bind(c, &req) {
		return
	}
	section, err := h.structure.CreateSection(c.Request.Context(), meta(c), req)
	h.respond(c, http.StatusCreated, section, err)
}

// UpdateSection godoc
// @Summary Update section
// @Description Capacity cannot drop below the active enrollments
// @Tags Structure
// @Accept json
// @Produce json
// @Param id path string true "Section ID"
// @Param payload body models.SectionRequest true "Section"
// @Success 200 {object} response.Envelope
// @Router /sections/{id} [put]
func (h *StructureHandler) UpdateSection(c *gin.Context) {
	var req models.SectionRequest
	if !bind(c, &req) {
		return
	}
	section, err := h.structure.UpdateSection(c.Request.Context(), meta(c), c.Param("id"), req)
	h.respond(c, http.StatusOK, section, err)
}

// DeleteSection godoc
// @Summary Delete section
// @Tags Structure
// @Param id path string true "Section ID"
// @Success 204
// @Router /sections/{id} [delete]
func (h *StructureHandler) DeleteSection(c *gin.Context) {
	h.deleted(c, h.structure.DeleteSection(c.Request.Context(), meta(c), c.Param("id")))
}

// ListSubjects godoc
// @Summary List subjects
// @Tags Structure
// @Produce json
// @Param level_id query string false "Level"
// @Success 200 {object} response.Envelope
// @Router /subjects [get]
func (h *StructureHandler) ListSubjects(c *gin.Context) {
	subjects, err := h.structure.ListSubjects(c.Request.Context(), c.Query("level_id"))
	h.respond(c, http.StatusOK, subjects, err)
}

// CreateSubject godoc
// @Summary Create subject
// @Tags Structure
// @Accept json
// @Produce json
// @Param payload body models.SubjectRequest true "Subject"
// @Success 201 {object} response.Envelope
// @Router /subjects [post]
func (h *StructureHandler) CreateSubject(c *gin.Context) {
	var req models.SubjectRequest
	if !bind(c, &req) {
		return
	}
	subject, err := h.structure.CreateSubject(c.Request.Context(), meta(c), req)
	h.respond(c, http.StatusCreated, subject, err)
}

// UpdateSubject godoc
// @Summary Update subject
// @Tags Structure
// @Accept json
// @Produce json
// @Param id path string true "Subject ID"
// @Param payload body models.SubjectRequest true "Subject"
// @Success 200 {object} response.Envelope
// @Router /subjects/{id} [put]
func (h *StructureHandler) UpdateSubject(c *gin.Context) {
	var req models.SubjectRequest
	if !bind(c, &req) {
		return
	}
	subject, err := h.structure.UpdateSubject(c.Request.Context(), meta(c), c.Param("id"), req)
	h.respond(c, http.StatusOK, subject, err)
}

// DeleteSubject godoc
// @Summary Delete subject
// @Tags Structure
// @Param id path string true "Subject ID"
// @Success 204
// @Router /subjects/{id} [delete]
func (h *StructureHandler) DeleteSubject(c *gin.Context) {
	h.deleted(c, h.structure.DeleteSubject(c.Request.Context(), meta(c), c.Param("id")))
}
