package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/internal/service"
	"github.com/noah-isme/school-admin-api/pkg/response"
)

// PeriodHandler exposes academic periods.
type PeriodHandler struct {
	periods *service.PeriodService
}

// NewPeriodHandler constructs PeriodHandler.
func NewPeriodHandler(periods *service.PeriodService) *PeriodHandler {
	return &PeriodHandler{periods: periods}
}

// List godoc
// @Summary List academic periods
// @Tags Periods
// @Produce json
// @Param search query string false "Name or code"
// @Param active query bool false "Active flag"
// @Success 200 {object} response.Envelope
// @Router /periods [get]
func (h *PeriodHandler) List(c *gin.Context) {
	filter := models.PeriodFilter{Search: search(c), Active: optionalBool(c, "active")}
	filter.Page, filter.PageSize = paging(c)
	periods, pagination, err := h.periods.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, periods, pagination)
}

// Active godoc
// @Summary Get the active period
// @Tags Periods
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /periods/active [get]
func (h *PeriodHandler) Active(c *gin.Context) {
	period, err := h.periods.Active(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// Get godoc
// @Summary Get academic period
// @Tags Periods
// @Produce json
// @Param id path string true "Period ID"
// @Success 200 {object} response.Envelope
// @Router /periods/{id} [get]
func (h *PeriodHandler) Get(c *gin.Context) {
	period, err := h.periods.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// Create godoc
// @Summary Create academic period
// @Tags Periods
// @Accept json
// @Produce json
// @Param payload body models.PeriodRequest true "Period"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /periods [post]
func (h *PeriodHandler) Create(c *gin.Context) {
	var req models.PeriodRequest
	if !bind(c, &req) {
		return
	}
	period, err := h.periods.Create(c.Request.Context(), meta(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, period)
}

// Update godoc
// @Summary Update academic period
// @Tags Periods
// @Accept json
// @Produce json
// @Param id path string true "Period ID"
// @Param payload body models.PeriodRequest true "Period"
// @Success 200 {object} response.Envelope
// @Router /periods/{id} [put]
func (h *PeriodHandler) Update(c *gin.Context) {
	var req models.PeriodRequest
	if !bind(c, &req) {
		return
	}
	period, err := h.periods.Update(c.Request.Context(), meta(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// Activate godoc
// @Summary Make a period the only active one
// @Tags Periods
// @Produce json
// @Param id path string true "Period ID"
// @Success 200 {object} response.Envelope
// @Router /periods/{id}/activate [post]
func (h *PeriodHandler) Activate(c *gin.Context) {
	period, err := h.periods.Activate(c.Request.Context(), meta(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// Close godoc
// @Summary Close a period
// @Tags Periods
// @Produce json
// @Param id path string true "Period ID"
// @Success 200 {object} response.Envelope
// @Router /periods/{id}/close [post]
func (h *PeriodHandler) Close(c *gin.Context) {
	period, err := h.periods.Close(c.Request.Context(), meta(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, period, nil)
}

// Delete godoc
// @Summary Delete academic period
// @Tags Periods
// @Param id path string true "Period ID"
// @Success 204
// @Router /periods/{id} [delete]
func (h *PeriodHandler) Delete(c *gin.Context) {
	if err := h.periods.Delete(c.Request.Context(), meta(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
