package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/internal/service"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/response"
)

// GuardianHandler exposes parents and tutors.
type GuardianHandler struct {
	guardians *service.GuardianService
}

// NewGuardianHandler constructs GuardianHandler.
func NewGuardianHandler(guardians *service.GuardianService) *GuardianHandler {
	return &GuardianHandler{guardians: guardians}
}

// List godoc
// @Summary List guardians
// @Tags Guardians
// @Produce json
// @Param search query string false "Name or CI"
// @Success 200 {object} response.Envelope
// @Router /guardians [get]
func (h *GuardianHandler) List(c *gin.Context) {
	filter := models.GuardianFilter{Search: search(c)}
	filter.Page, filter.PageSize = paging(c)
	items, pagination, err := h.guardians.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Lookup godoc
// @Summary Find a parent by CI
// @Description Returns the guardian and the linked students so forms can be prefilled
// @Tags Guardians
// @Produce json
// @Param ci query string true "Identity card"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /guardians/lookup [get]
func (h *GuardianHandler) Lookup(c *gin.Context) {
	ci := strings.TrimSpace(c.Query("ci"))
	if ci == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "el parámetro ci es obligatorio"))
		return
	}
	res, err := h.guardians.LookupByCI(c.Request.Context(), ci)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// Get godoc
// @Summary Get guardian
// @Tags Guardians
// @Produce json
// @Param id path string true "Guardian ID"
// @Success 200 {object} response.Envelope
// @Router /guardians/{id} [get]
func (h *GuardianHandler) Get(c *gin.Context) {
	guardian, err := h.guardians.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, guardian, nil)
}

// Create godoc
// @Summary Create guardian
// @Tags Guardians
// @Accept json
// @Produce json
// @Param payload body models.GuardianRequest true "Guardian"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /guardians [post]
func (h *GuardianHandler) Create(c *gin.Context) {
	var req models.GuardianRequest
	if !bind(c, &req) {
		return
	}
	guardian, err := h.guardians.Create(c.Request.Context(), meta(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, guardian)
}

// Update godoc
// @Summary Update guardian
// @Tags Guardians
// @Accept json
// @Produce json
// @Param id path string true "Guardian ID"
// @Param payload body models.GuardianRequest true "Guardian"
// @Success 200 {object} response.Envelope
// @Router /guardians/{id} [put]
func (h *GuardianHandler) Update(c *gin.Context) {
	var req models.GuardianRequest
	if !bind(c, &req) {
		return
	}
	guardian, err := h.guardians.Update(c.Request.Context(), meta(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, guardian, nil)
}

// Delete godoc
// @Summary Delete guardian
// @Tags Guardians
// @Param id path string true "Guardian ID"
// @Success 204
// @Router /guardians/{id} [delete]
func (h *GuardianHandler) Delete(c *gin.Context) {
	if err := h.guardians.Delete(c.Request.Context(), meta(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
