package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/health-registry-api/internal/service"
	appErrors "github.com/noah-isme/health-registry-api/pkg/errors"
	"github.com/noah-isme/health-registry-api/pkg/response"
)

// bindJSON decodes the request body into dest, rendering a validation error on failure.
func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Validation("invalid payload", service.FieldErrors(err)...))
		return false
	}
	return true
}

func pageParams(c *gin.Context) (int, int) {
	var page, size int
	if v, err := strconv.Atoi(c.Query("page")); err == nil {
		page = v
	}
	if v, err := strconv.Atoi(c.Query("limit")); err == nil {
		size = v
	}
	return page, size
}

func searchParam(c *gin.Context) string {
	return strings.TrimSpace(c.Query("search"))
}
