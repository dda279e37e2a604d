package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/institute-api/internal/models"
	"github.com/campuskit/institute-api/internal/service"
	appErrors "github.com/campuskit/institute-api/pkg/errors"
	"github.com/campuskit/institute-api/pkg/response"
)

// StudentHandler exposes institute roster endpoints.
type StudentHandler struct {
	students *service.StudentService
}

// NewStudentHandler constructs StudentHandler.
func NewStudentHandler(students *service.StudentService) *StudentHandler {
	return &StudentHandler{students: students}
}

func studentFilterFromQuery(c *gin.Context) models.StudentFilter {
	var filter models.StudentFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Status = c.Query("status")
	filter.CourseID = c.Query("course_id")
	if semester, err := strconv.Atoi(c.Query("semester")); err == nil {
		filter.Semester = semester
	}
	if year, err := strconv.Atoi(c.Query("admission_year")); err == nil {
		filter.AdmissionYear = year
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")
	return filter
}

// List godoc
// @Summary List students
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search name, roll number, email or phone"
// @Param status query string false "verified, unverified, active or inactive"
// @Param course_id query string false "Filter by enrolled course"
// @Param semester query int false "Filter by current semester"
// @Param admission_year query int false "Filter by admission year"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /students [get]
func (h *StudentHandler) List(c *gin.Context) {
	claims, ok := adminClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	result, pagination, err := h.students.List(c.Request.Context(), claims.InstituteID, studentFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, result, pagination)
}

// Get godoc
// @Summary Get student detail
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id} [get]
func (h *StudentHandler) Get(c *gin.Context) {
	claims, ok := adminClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	student, err := h.students.Get(c.Request.Context(), claims.InstituteID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "", student)
}

// Verify godoc
// @Summary Verify a student account
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/verify [post]
func (h *StudentHandler) Verify(c *gin.Context) {
	h.setVerification(c, true, "student verified successfully")
}

// Unverify godoc
// @Summary Revoke a student verification
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/unverify [post]
func (h *StudentHandler) Unverify(c *gin.Context) {
	h.setVerification(c, false, "student verification revoked")
}

func (h *StudentHandler) setVerification(c *gin.Context, verified bool, message string) {
	claims, ok := adminClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	if err := h.students.SetVerification(c.Request.Context(), claims.InstituteID, c.Param("id"), verified); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, message, nil)
}

// BulkUpdate godoc
// @Summary Bulk update students
// @Tags Students
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.BulkStudentRequest true "Bulk action"
// @Success 200 {object} response.Envelope
// @Router /students/bulk [post]
func (h *StudentHandler) BulkUpdate(c *gin.Context) {
	claims, ok := adminClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	var req service.BulkStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	result, err := h.students.BulkUpdate(c.Request.Context(), claims.InstituteID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "bulk update applied", result)
}

// Export godoc
// @Summary Export the filtered roster
// @Tags Students
// @Produce json
// @Security BearerAuth
// @Param format query string false "csv, pdf or json (default csv)"
// @Success 200 {file} file
// @Router /students/export [get]
func (h *StudentHandler) Export(c *gin.Context) {
	claims, ok := adminClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	result, err := h.students.ExportRoster(c.Request.Context(),
		claims.InstituteID, claims.InstituteName, c.Query("format"), studentFilterFromQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

// MyProfile godoc
// @Summary Get the authenticated student's profile
// @Tags Student Portal
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /student/profile [get]
func (h *StudentHandler) MyProfile(c *gin.Context) {
	claims, ok := studentClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	student, err := h.students.Get(c.Request.Context(), claims.InstituteID, claims.StudentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "", student)
}
