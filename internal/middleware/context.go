package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-admin-api/internal/models"
)

const (
	// ContextPrincipalKey stores the authenticated *models.Principal.
	ContextPrincipalKey = "principal"
	contextFilesKey     = "uploaded_files"
	contextPayloadKey   = "form_payload"
)

// PrincipalFrom returns the caller resolved by Auth, or nil.
func PrincipalFrom(c *gin.Context) *models.Principal {
	value, exists := c.Get(ContextPrincipalKey)
	if !exists {
		return nil
	}
	principal, _ := value.(*models.Principal)
	return principal
}

// Meta collects the caller details services need for auditing.
func Meta(c *gin.Context) models.RequestMeta {
	return models.RequestMeta{
		Principal: PrincipalFrom(c),
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}
}
