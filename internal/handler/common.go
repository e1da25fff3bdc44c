package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/school-admin-api/internal/middleware"
	"github.com/noah-isme/school-admin-api/internal/models"
	"github.com/noah-isme/school-admin-api/pkg/response"
)

func paging(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || size < 1 {
		size = 20
	}
	return page, size
}

func optionalBool(c *gin.Context, key string) *bool {
	switch strings.ToLower(c.Query(key)) {
	case "true", "1":
		v := true
		return &v
	case "false", "0":
		v := false
		return &v
	}
	return nil
}

func search(c *gin.Context) string {
	return strings.TrimSpace(c.Query("search"))
}

// bind decodes the body and writes the error response when it fails.
func bind(c *gin.Context, dst interface{}) bool {
	if err := middleware.Bind(c, dst); err != nil {
		response.Error(c, err)
		return false
	}
	return true
}

func meta(c *gin.Context) models.RequestMeta {
	return middleware.Meta(c)
}
