package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/institute-api/internal/service"
	appErrors "github.com/campuskit/institute-api/pkg/errors"
	"github.com/campuskit/institute-api/pkg/response"
)

// DashboardHandler exposes institute summary endpoints.
type DashboardHandler struct {
	students *service.StudentService
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(students *service.StudentService) *DashboardHandler {
	return &DashboardHandler{students: students}
}

// Stats godoc
// @Summary Institute dashboard statistics
// @Tags Dashboard
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /dashboard/stats [get]
func (h *DashboardHandler) Stats(c *gin.Context) {
	claims, ok := adminClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	stats, err := h.students.Dashboard(c.Request.Context(), claims.InstituteID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "", stats)
}
