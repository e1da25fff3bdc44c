package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-admin-api/internal/models"
)

// AuditRecorder persists activity log entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry models.AuditEntry)
}

// recordDenied writes a failed access_denied entry for the current request.
func recordDenied(c *gin.Context, recorder AuditRecorder, required []string) {
	if recorder == nil {
		return
	}
	meta := Meta(c)
	entityID := ""
	if meta.Principal != nil {
		entityID = meta.Principal.UserID
	}
	recorder.Record(c.Request.Context(), models.AuditEntry{
		Actor:        meta.Principal,
		Action:       models.ActionAccessDenied,
		Module:       models.ModuleAuth,
		EntityID:     entityID,
		Description:  c.Request.Method + " " + c.FullPath(),
		IP:           meta.IP,
		UserAgent:    meta.UserAgent,
		Outcome:      models.OutcomeFailure,
		ErrorMessage: "requiere: " + strings.Join(required, ", "),
	})
}
