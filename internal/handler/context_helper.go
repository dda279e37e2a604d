package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/campuskit/institute-api/internal/middleware"
	"github.com/campuskit/institute-api/internal/models"
)

// adminClaims pulls validated admin claims from the request context. The auth
// middleware guarantees presence on protected routes.
func adminClaims(c *gin.Context) (*models.AdminClaims, bool) {
	value, ok := c.Get(middleware.ContextAdminKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*models.AdminClaims)
	return claims, ok
}

func studentClaims(c *gin.Context) (*models.StudentClaims, bool) {
	value, ok := c.Get(middleware.ContextStudentKey)
	if !ok {
		return nil, false
	}
	claims, ok := value.(*models.StudentClaims)
	return claims, ok
}
