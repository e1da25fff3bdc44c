package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-admin-api/internal/models"
	appErrors "github.com/noah-isme/school-admin-api/pkg/errors"
	"github.com/noah-isme/school-admin-api/pkg/response"
)

// RequirePermission lets the request through when the principal holds any of
// the module.action permissions. Super admins always pass. Denials are
// written to the activity log.
func RequirePermission(recorder AuditRecorder, permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := PrincipalFrom(c)
		if principal == nil {
			response.AbortError(c, appErrors.ErrUnauthorized)
			return
		}
		if principal.Can(permissions...) {
			c.Next()
			return
		}
		recordDenied(c, recorder, permissions)
		response.AbortError(c, appErrors.ErrForbidden)
	}
}

// RequireRole lets the request through when the principal holds any of roles.
func RequireRole(recorder AuditRecorder, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal := PrincipalFrom(c)
		if principal == nil {
			response.AbortError(c, appErrors.ErrUnauthorized)
			return
		}
		if principal.IsSuperAdmin() || principal.HasRole(roles...) {
			c.Next()
			return
		}
		recordDenied(c, recorder, roles)
		response.AbortError(c, appErrors.ErrForbidden)
	}
}

// Perm is shorthand for models.PermissionName.
func Perm(module, action string) string {
	return models.PermissionName(module, action)
}
