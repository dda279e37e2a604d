package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/institute-api/internal/service"
	appErrors "github.com/campuskit/institute-api/pkg/errors"
	"github.com/campuskit/institute-api/pkg/response"
)

// GradeHandler exposes grade upload and retrieval endpoints.
type GradeHandler struct {
	grades *service.GradeService
}

// NewGradeHandler constructs GradeHandler.
func NewGradeHandler(grades *service.GradeService) *GradeHandler {
	return &GradeHandler{grades: grades}
}

// Upload godoc
// @Summary Upload grades for a course
// @Tags Grades
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.UploadGradesRequest true "Grades batch"
// @Success 200 {object} response.Envelope
// @Router /grades/upload [post]
func (h *GradeHandler) Upload(c *gin.Context) {
	claims, ok := adminClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	var req service.UploadGradesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	result, err := h.grades.Upload(c.Request.Context(), claims.InstituteID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "grades uploaded", result)
}

// ListForStudent godoc
// @Summary List a student's grades (admin view)
// @Tags Grades
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/grades [get]
func (h *GradeHandler) ListForStudent(c *gin.Context) {
	claims, ok := adminClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	grades, err := h.grades.ListForStudent(c.Request.Context(), claims.InstituteID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "", grades)
}

// MyGrades godoc
// @Summary List the authenticated student's grades
// @Tags Grades
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /student/grades [get]
func (h *GradeHandler) MyGrades(c *gin.Context) {
	claims, ok := studentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	grades, err := h.grades.ListForStudent(c.Request.Context(), claims.InstituteID, claims.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "", grades)
}
