package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/institute-api/internal/models"
	"github.com/campuskit/institute-api/internal/service"
	appErrors "github.com/campuskit/institute-api/pkg/errors"
	"github.com/campuskit/institute-api/pkg/response"
)

// CourseHandler exposes the tenant-scoped course catalog endpoints.
type CourseHandler struct {
	courses *service.CourseService
}

// NewCourseHandler constructs CourseHandler.
func NewCourseHandler(courses *service.CourseService) *CourseHandler {
	return &CourseHandler{courses: courses}
}

// List godoc
// @Summary List courses
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param search query string false "Search name, code or department"
// @Param status query string false "Filter by status"
// @Param department query string false "Filter by department"
// @Param degree_type query string false "Filter by degree type"
// @Param academic_year query string false "Filter by academic year"
// @Param assigned_semester query int false "Filter by assigned semester"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /courses [get]
func (h *CourseHandler) List(c *gin.Context) {
	claims, ok := adminClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	var filter models.CourseFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Status = c.Query("status")
	filter.Department = c.Query("department")
	filter.DegreeType = c.Query("degree_type")
	filter.AcademicYear = c.Query("academic_year")
	filter.AssignedDepartment = c.Query("assigned_department")
	if semester, err := strconv.Atoi(c.Query("assigned_semester")); err == nil {
		filter.AssignedSemester = semester
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	result, pagination, err := h.courses.List(c.Request.Context(), claims.InstituteID, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Paginated(c, result, pagination)
}

// Get godoc
// @Summary Get course detail
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id} [get]
func (h *CourseHandler) Get(c *gin.Context) {
	claims, ok := adminClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	view, err := h.courses.Get(c.Request.Context(), claims.InstituteID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "", view)
}

// Create godoc
// @Summary Create course
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.CreateCourseRequest true "Course payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses [post]
func (h *CourseHandler) Create(c *gin.Context) {
	claims, ok := adminClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	var req service.CreateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	course, err := h.courses.Create(c.Request.Context(), claims.InstituteID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "course created successfully", course)
}

// Update godoc
// @Summary Update course
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Param payload body service.UpdateCourseRequest true "Fields to update"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id} [put]
func (h *CourseHandler) Update(c *gin.Context) {
	claims, ok := adminClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	var req service.UpdateCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	course, err := h.courses.Update(c.Request.Context(), claims.InstituteID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "course updated successfully", course)
}

// Delete godoc
// @Summary Delete course
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Param id path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{id} [delete]
func (h *CourseHandler) Delete(c *gin.Context) {
	claims, ok := adminClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	course, err := h.courses.Delete(c.Request.Context(), claims.InstituteID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "course deleted successfully", course)
}

// BulkUpdate godoc
// @Summary Bulk update courses
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.BulkCourseRequest true "Bulk action"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/bulk [post]
func (h *CourseHandler) BulkUpdate(c *gin.Context) {
	claims, ok := adminClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	var req service.BulkCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	result, err := h.courses.BulkUpdate(c.Request.Context(), claims.InstituteID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "bulk update applied", result)
}

// ValidateAssignment godoc
// @Summary Check teaching slot availability
// @Tags Courses
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body service.ValidateAssignmentRequest true "Slot to probe"
// @Success 200 {object} response.Envelope
// @Router /courses/validate-assignment [post]
func (h *CourseHandler) ValidateAssignment(c *gin.Context) {
	claims, ok := adminClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	var req service.ValidateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	result, err := h.courses.ValidateAssignment(c.Request.Context(), claims.InstituteID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "", result)
}

// SemesterAssignments godoc
// @Summary List occupied teaching slots
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /courses/semester-assignments [get]
func (h *CourseHandler) SemesterAssignments(c *gin.Context) {
	claims, ok := adminClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	view, err := h.courses.SemesterAssignments(c.Request.Context(), claims.InstituteID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "", view)
}

// SyncEnrollments godoc
// @Summary Recompute course enrollment counters
// @Tags Courses
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /courses/sync-enrollments [post]
func (h *CourseHandler) SyncEnrollments(c *gin.Context) {
	claims, ok := adminClaims(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthenticated)
		return
	}

	updated, err := h.courses.SyncEnrollments(c.Request.Context(), claims.InstituteID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "enrollment counters synced", gin.H{"courses_updated": updated})
}
