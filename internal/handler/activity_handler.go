package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/internal/service"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/response"
)

// ActivityHandler exposes the audit trail.
type ActivityHandler struct {
	activity *service.ActivityService
}

// NewActivityHandler constructs ActivityHandler.
func NewActivityHandler(activity *service.ActivityService) *ActivityHandler {
	return &ActivityHandler{activity: activity}
}

// List godoc
// @Summary List activity log entries
// @Tags Audit
// @Produce json
// @Param user_id query string false "Actor"
// @Param module query string false "Module"
// @Param action query string false "Action"
// @Param outcome query string false "exitoso or fallido"
// @Param from query string false "From date (YYYY-MM-DD)"
// @Param to query string false "To date (YYYY-MM-DD), inclusive"
// @Success 200 {object} response.Envelope
// @Router /activity-logs [get]
func (h *ActivityHandler) List(c *gin.Context) {
	filter := models.ActivityLogFilter{
		UserID:  c.Query("user_id"),
		Module:  c.Query("module"),
		Action:  c.Query("action"),
		Outcome: c.Query("outcome"),
	}
	filter.Page, filter.PageSize = paging(c)
	var err error
	if filter.From, err = queryDate(c, "from"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.To, err = queryDate(c, "to"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.To != nil {
		end := filter.To.Add(24*time.Hour - time.Nanosecond)
		filter.To = &end
	}

	items, pagination, err := h.activity.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get an activity log entry
// @Tags Audit
// @Produce json
// @Param id path string true "Entry ID"
// @Success 200 {object} response.Envelope
// @Router /activity-logs/{id} [get]
func (h *ActivityHandler) Get(c *gin.Context) {
	entry, err := h.activity.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry, nil)
}

func queryDate(c *gin.Context, key string) (*time.Time, error) {
	value := c.Query(key)
	if value == "" {
		return nil, nil
	}
	t, err := models.ParseDate(value)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "fecha inválida en "+key)
	}
	return &t, nil
}
