package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/institute-api/internal/service"
	appErrors "github.com/campuskit/institute-api/pkg/errors"
	"github.com/campuskit/institute-api/pkg/response"
)

// Context keys storing validated claims.
const (
	ContextAdminKey   = "currentAdmin"
	ContextStudentKey = "currentStudent"
)

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

// AdminAuth protects institute admin routes. Beyond token validity it
// requires the institute to still be Active, so deactivating a tenant cuts
// off all of its sessions at once.
func AdminAuth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthenticated)
			c.Abort()
			return
		}

		claims, err := authService.ValidateAdminToken(c.Request.Context(), token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextAdminKey, claims)
		c.Next()
	}
}

// StudentAuth protects student routes.
func StudentAuth(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthenticated)
			c.Abort()
			return
		}

		claims, err := authService.ValidateStudentToken(c.Request.Context(), token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextStudentKey, claims)
		c.Next()
	}
}
