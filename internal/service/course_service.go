package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuskit/institute-api/internal/models"
	"github.com/campuskit/institute-api/internal/repository"
	appErrors "github.com/campuskit/institute-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, instituteID string, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	FindByID(ctx context.Context, instituteID, id string) (*models.Course, error)
	FindByCode(ctx context.Context, instituteID, code, excludeID string) (*models.Course, error)
	FindByAssignment(ctx context.Context, instituteID, department string, semester int, excludeID string) (*models.Course, error)
	FindAssignmentOutsideSet(ctx context.Context, instituteID, department string, semester int, excludeIDs []string) (*models.Course, error)
	ListByIDs(ctx context.Context, instituteID string, ids []string) ([]models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, instituteID, id string) error
	BulkSetStatus(ctx context.Context, instituteID string, ids []string, status models.CourseStatus) (int64, error)
	BulkSetAcademicYear(ctx context.Context, instituteID string, ids []string, year string) (int64, error)
	BulkSetSemesterCredits(ctx context.Context, instituteID string, ids []string, credits int) (int64, error)
	BulkSetAssignedDepartment(ctx context.Context, instituteID string, ids []string, department string) (int64, error)
	Stats(ctx context.Context, instituteID string) (*models.CourseFilterStats, error)
	SemesterAssignments(ctx context.Context, instituteID string) ([]models.SemesterAssignment, error)
	CountSubjects(ctx context.Context, courseID string) (int, error)
	CountStudents(ctx context.Context, instituteID, courseID, academicYear string) (total int, active int, err error)
	SyncEnrollments(ctx context.Context, instituteID string) (int64, error)
}

type courseSubjectLister interface {
	ListByCourse(ctx context.Context, instituteID, courseID string) ([]models.Subject, error)
}

// CreateCourseRequest captures fields for creating a course.
type CreateCourseRequest struct {
	Name               string `json:"course_name" validate:"required"`
	Code               string `json:"course_code" validate:"required"`
	Description        string `json:"description"`
	Department         string `json:"department" validate:"required"`
	DegreeType         string `json:"degree_type" validate:"required,oneof=Undergraduate Postgraduate Diploma Certificate"`
	Duration           int    `json:"duration" validate:"required,min=1,max=12"`
	TotalSemesters     int    `json:"total_semesters" validate:"required,min=1,max=12"`
	AssignedDepartment string `json:"assigned_department" validate:"required"`
	AssignedSemester   int    `json:"assigned_semester" validate:"required,min=1,max=8"`
	SemesterCredits    int    `json:"semester_credits" validate:"omitempty,min=1,max=8"`
	Status             string `json:"status" validate:"omitempty,oneof=Active Inactive Draft"`
	AcademicYear       string `json:"academic_year" validate:"required"`
	MaxStudents        int    `json:"max_students" validate:"omitempty,min=0"`
}

// UpdateCourseRequest modifies course fields. Nil fields are left unchanged.
type UpdateCourseRequest struct {
	Name               *string `json:"course_name" validate:"omitempty,min=1"`
	Code               *string `json:"course_code" validate:"omitempty,min=1"`
	Description        *string `json:"description"`
	Department         *string `json:"department" validate:"omitempty,min=1"`
	DegreeType         *string `json:"degree_type" validate:"omitempty,oneof=Undergraduate Postgraduate Diploma Certificate"`
	Duration           *int    `json:"duration" validate:"omitempty,min=1,max=12"`
	TotalSemesters     *int    `json:"total_semesters" validate:"omitempty,min=1,max=12"`
	AssignedDepartment *string `json:"assigned_department" validate:"omitempty,min=1"`
	AssignedSemester   *int    `json:"assigned_semester" validate:"omitempty,min=1,max=8"`
	SemesterCredits    *int    `json:"semester_credits" validate:"omitempty,min=1,max=8"`
	Status             *string `json:"status" validate:"omitempty,oneof=Active Inactive Draft"`
	AcademicYear       *string `json:"academic_year" validate:"omitempty,min=1"`
	MaxStudents        *int    `json:"max_students" validate:"omitempty,min=0"`
}

// BulkCourseRequest applies one action to a set of course ids.
type BulkCourseRequest struct {
	CourseIDs []string    `json:"course_ids" validate:"required,min=1,dive,required"`
	Action    string      `json:"action" validate:"required"`
	Value     interface{} `json:"value"`
}

// BulkCourseResult reports what a bulk operation changed.
type BulkCourseResult struct {
	CoursesAffected int64  `json:"courses_affected"`
	Action          string `json:"action"`
	Message         string `json:"message"`
}

// ValidateAssignmentRequest probes a teaching slot for availability.
type ValidateAssignmentRequest struct {
	AssignedDepartment string `json:"assigned_department" validate:"required"`
	AssignedSemester   int    `json:"assigned_semester" validate:"required,min=1,max=8"`
	ExcludeCourseID    string `json:"exclude_course_id"`
}

// AssignmentAvailability is the probe result.
type AssignmentAvailability struct {
	Available         bool                     `json:"available"`
	Message           string                   `json:"message"`
	ConflictingCourse *models.AssignmentCourse `json:"conflicting_course,omitempty"`
}

// CourseListResult bundles the list view with filter statistics.
type CourseListResult struct {
	Courses []CourseListItem          `json:"courses"`
	Filters *models.CourseFilterStats `json:"filters"`
}

// CourseListItem augments a course with derived display fields.
type CourseListItem struct {
	models.CourseDetail
	EnrollmentStatus  string `json:"enrollment_status"`
	AssignmentDisplay string `json:"semester_assignment_display"`
}

// CourseView is the detail view of one course.
type CourseView struct {
	Course              models.Course             `json:"course"`
	EnrollmentStatus    string                    `json:"enrollment_status"`
	AssignmentDisplay   string                    `json:"semester_assignment_display"`
	SubjectsBySemester  map[int][]models.Subject  `json:"subjects_by_semester"`
	TotalSubjects       int                       `json:"total_subjects"`
	AssignmentConflicts []models.AssignmentCourse `json:"assignment_conflicts"`
}

// SemesterAssignmentsView organises occupied teaching slots for clients.
type SemesterAssignmentsView struct {
	Assignments      []models.SemesterAssignment                  `json:"assignments"`
	DepartmentView   map[string]map[int]models.SemesterAssignment `json:"department_view"`
	SemesterView     map[int]map[string]models.SemesterAssignment `json:"semester_view"`
	TotalAssignments int                                          `json:"total_assignments"`
}

// Bulk action tags for courses.
const (
	CourseActionActivate           = "activate"
	CourseActionDeactivate         = "deactivate"
	CourseActionUpdateAcademicYear = "update_academic_year"
	CourseActionUpdateCredits      = "update_semester_credits"
	CourseActionUpdateDepartment   = "update_assigned_department"
)

// CourseService owns the tenant-scoped catalog: uniqueness validation,
// conflict-aware mutation and bulk coordination.
type CourseService struct {
	repo      courseRepository
	subjects  courseSubjectLister
	stats     *StatsCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCourseService creates a new course service.
func NewCourseService(repo courseRepository, subjects courseSubjectLister, stats *StatsCache, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{repo: repo, subjects: subjects, stats: stats, metrics: metrics, validator: validate, logger: logger}
}

// List returns the filtered catalog page plus filter statistics. Statistics
// are best-effort: failures are logged and zeroed defaults returned.
func (s *CourseService) List(ctx context.Context, instituteID string, filter models.CourseFilter) (*CourseListResult, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, instituteID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}

	items := make([]CourseListItem, 0, len(courses))
	for _, course := range courses {
		items = append(items, CourseListItem{
			CourseDetail:      course,
			EnrollmentStatus:  course.EnrollmentStatus(),
			AssignmentDisplay: course.AssignmentDisplay(),
		})
	}

	result := &CourseListResult{
		Courses: items,
		Filters: s.filterStats(ctx, instituteID),
	}
	return result, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

func (s *CourseService) filterStats(ctx context.Context, instituteID string) *models.CourseFilterStats {
	if s.stats != nil {
		var cached models.CourseFilterStats
		if ok := s.stats.Get(ctx, courseStatsKey(instituteID), &cached); ok {
			return &cached
		}
	}

	stats, err := s.repo.Stats(ctx, instituteID)
	if err != nil {
		s.logger.Warn("course filter stats failed", zap.Error(err), zap.String("institute_id", instituteID))
		return &models.CourseFilterStats{
			AvailableDepartments:         []string{},
			AvailableDegreeTypes:         []string{},
			AvailableAcademicYears:       []string{},
			AvailableAssignedDepartments: []string{},
		}
	}

	if s.stats != nil {
		s.stats.Set(ctx, courseStatsKey(instituteID), stats)
	}
	return stats
}

func courseStatsKey(instituteID string) string {
	return "stats:courses:" + instituteID
}

// Get returns the course detail view: subjects grouped by semester, live
// enrollment and any slot conflicts (normally empty thanks to the backstop).
func (s *CourseService) Get(ctx context.Context, instituteID, courseID string) (*CourseView, error) {
	course, err := s.repo.FindByID(ctx, instituteID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	subjects, err := s.subjects.ListByCourse(ctx, instituteID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course subjects")
	}
	bySemester := make(map[int][]models.Subject)
	for _, subject := range subjects {
		bySemester[subject.Semester] = append(bySemester[subject.Semester], subject)
	}

	_, active, err := s.repo.CountStudents(ctx, instituteID, courseID, course.AcademicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollment")
	}
	course.CurrentEnrollment = active

	conflicts := []models.AssignmentCourse{}
	if conflict, err := s.repo.FindByAssignment(ctx, instituteID, course.AssignedDepartment, course.AssignedSemester, course.ID); err == nil {
		conflicts = append(conflicts, models.AssignmentCourse{
			CourseID: conflict.ID,
			Name:     conflict.Name,
			Code:     conflict.Code,
			Credits:  conflict.SemesterCredits,
		})
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignment conflicts")
	}

	return &CourseView{
		Course:              *course,
		EnrollmentStatus:    course.EnrollmentStatus(),
		AssignmentDisplay:   course.AssignmentDisplay(),
		SubjectsBySemester:  bySemester,
		TotalSubjects:       len(subjects),
		AssignmentConflicts: conflicts,
	}, nil
}

// checkCodeConflict enforces per-institute course code uniqueness.
func (s *CourseService) checkCodeConflict(ctx context.Context, instituteID, code, excludeID string) error {
	conflict, err := s.repo.FindByCode(ctx, instituteID, code, excludeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course code")
	}
	s.metrics.RecordConflict("course_code")
	return duplicateCodeError(conflict)
}

// checkAssignmentConflict enforces the per-institute uniqueness of the
// (assigned department, assigned semester) teaching slot.
func (s *CourseService) checkAssignmentConflict(ctx context.Context, instituteID, department string, semester int, excludeID string) error {
	conflict, err := s.repo.FindByAssignment(ctx, instituteID, department, semester, excludeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check semester assignment")
	}
	s.metrics.RecordConflict("semester_assignment")
	return duplicateAssignmentError(department, semester, conflict)
}

func duplicateCodeError(conflict *models.Course) error {
	err := appErrors.WithFields(appErrors.ErrDuplicateCode,
		"Course code already exists in your institute",
		map[string]string{"course_code": "This course code is already in use"})
	err.Details = map[string]interface{}{
		"conflicting_course": models.AssignmentCourse{
			CourseID: conflict.ID,
			Name:     conflict.Name,
			Code:     conflict.Code,
			Credits:  conflict.SemesterCredits,
		},
	}
	return err
}

func duplicateAssignmentError(department string, semester int, conflict *models.Course) error {
	message := fmt.Sprintf("Another course %q is already assigned to %s in Semester %d",
		conflict.Name, department, semester)
	err := appErrors.WithFields(appErrors.ErrDuplicateAssignment, message, map[string]string{
		"assigned_semester": fmt.Sprintf("%s - Semester %d is already taken by %q", department, semester, conflict.Name),
	})
	err.Details = map[string]interface{}{
		"conflicting_course": models.AssignmentCourse{
			CourseID: conflict.ID,
			Name:     conflict.Name,
			Code:     conflict.Code,
			Credits:  conflict.SemesterCredits,
		},
		"assigned_department": department,
		"assigned_semester":   semester,
	}
	return err
}

// Create adds a course after both uniqueness checks pass. The store-level
// unique indexes remain the authoritative guard against concurrent creates;
// their violations are mapped back to the same conflict errors.
func (s *CourseService) Create(ctx context.Context, instituteID string, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.AssignedDepartment = strings.TrimSpace(req.AssignedDepartment)

	if err := s.checkCodeConflict(ctx, instituteID, req.Code, ""); err != nil {
		return nil, err
	}
	if err := s.checkAssignmentConflict(ctx, instituteID, req.AssignedDepartment, req.AssignedSemester, ""); err != nil {
		return nil, err
	}

	credits := req.SemesterCredits
	if credits == 0 {
		credits = 3
	}
	status := models.CourseStatus(req.Status)
	if status == "" {
		status = models.CourseStatusActive
	}

	course := &models.Course{
		InstituteID:        instituteID,
		Name:               strings.TrimSpace(req.Name),
		Code:               req.Code,
		Description:        req.Description,
		Department:         strings.TrimSpace(req.Department),
		DegreeType:         models.DegreeType(req.DegreeType),
		Duration:           req.Duration,
		TotalSemesters:     req.TotalSemesters,
		AssignedDepartment: req.AssignedDepartment,
		AssignedSemester:   req.AssignedSemester,
		SemesterCredits:    credits,
		Status:             status,
		AcademicYear:       req.AcademicYear,
		MaxStudents:        req.MaxStudents,
	}

	if err := s.repo.Create(ctx, course); err != nil {
		return nil, s.mapWriteError(ctx, instituteID, course, err, "failed to create course")
	}

	s.invalidateStats(ctx, instituteID)
	s.logger.Info("course created",
		zap.String("institute_id", instituteID),
		zap.String("course_id", course.ID),
		zap.String("code", course.Code),
		zap.String("assignment", course.AssignmentDisplay()))
	return course, nil
}

// Update applies a partial update, re-running the uniqueness checks only for
// touched constraint fields. The effective assignment pair is the new value
// when present, else the persisted one, so an untouched pair never conflicts
// with itself.
func (s *CourseService) Update(ctx context.Context, instituteID, courseID string, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course, err := s.repo.FindByID(ctx, instituteID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	if req.Code != nil {
		code := strings.ToUpper(strings.TrimSpace(*req.Code))
		if err := s.checkCodeConflict(ctx, instituteID, code, courseID); err != nil {
			return nil, err
		}
		course.Code = code
	}

	if req.AssignedDepartment != nil || req.AssignedSemester != nil {
		department := course.AssignedDepartment
		semester := course.AssignedSemester
		if req.AssignedDepartment != nil {
			department = strings.TrimSpace(*req.AssignedDepartment)
		}
		if req.AssignedSemester != nil {
			semester = *req.AssignedSemester
		}
		if err := s.checkAssignmentConflict(ctx, instituteID, department, semester, courseID); err != nil {
			return nil, err
		}
		course.AssignedDepartment = department
		course.AssignedSemester = semester
	}

	if req.Name != nil {
		course.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.Department != nil {
		course.Department = strings.TrimSpace(*req.Department)
	}
	if req.DegreeType != nil {
		course.DegreeType = models.DegreeType(*req.DegreeType)
	}
	if req.Duration != nil {
		course.Duration = *req.Duration
	}
	if req.TotalSemesters != nil {
		course.TotalSemesters = *req.TotalSemesters
	}
	if req.SemesterCredits != nil {
		course.SemesterCredits = *req.SemesterCredits
	}
	if req.Status != nil {
		course.Status = models.CourseStatus(*req.Status)
	}
	if req.AcademicYear != nil {
		course.AcademicYear = *req.AcademicYear
	}
	if req.MaxStudents != nil {
		course.MaxStudents = *req.MaxStudents
	}

	if err := s.repo.Update(ctx, course); err != nil {
		return nil, s.mapWriteError(ctx, instituteID, course, err, "failed to update course")
	}

	s.invalidateStats(ctx, instituteID)
	return course, nil
}

// mapWriteError converts backstop unique violations into the conflict errors
// the pre-checks would have produced, so racing writers see the same contract.
func (s *CourseService) mapWriteError(ctx context.Context, instituteID string, course *models.Course, err error, fallback string) error {
	if repository.IsUniqueViolation(err, "courses_institute_code_key") {
		s.metrics.RecordConflict("course_code")
		if conflict, findErr := s.repo.FindByCode(ctx, instituteID, course.Code, course.ID); findErr == nil {
			return duplicateCodeError(conflict)
		}
		return appErrors.Clone(appErrors.ErrDuplicateCode, "")
	}
	if repository.IsUniqueViolation(err, "courses_institute_assignment_key") {
		s.metrics.RecordConflict("semester_assignment")
		if conflict, findErr := s.repo.FindByAssignment(ctx, instituteID, course.AssignedDepartment, course.AssignedSemester, course.ID); findErr == nil {
			return duplicateAssignmentError(course.AssignedDepartment, course.AssignedSemester, conflict)
		}
		return appErrors.Clone(appErrors.ErrDuplicateAssignment, "")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fallback)
}

// Delete removes a course when no subject or student references remain. Any
// reference, active or historical, blocks; archival is the suggested
// alternative for historical-only references.
func (s *CourseService) Delete(ctx context.Context, instituteID, courseID string) (*models.Course, error) {
	course, err := s.repo.FindByID(ctx, instituteID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	subjectCount, err := s.repo.CountSubjects(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count subjects")
	}
	total, active, err := s.repo.CountStudents(ctx, instituteID, courseID, course.AcademicYear)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}

	blockers := models.DeletionBlockers{
		Subjects:       subjectCount,
		ActiveStudents: active,
		TotalStudents:  total,
	}
	if blockers.Blocking() {
		return nil, deletionBlockedError(course, blockers)
	}

	if err := s.repo.Delete(ctx, instituteID, courseID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}

	s.invalidateStats(ctx, instituteID)
	s.logger.Info("course deleted",
		zap.String("institute_id", instituteID),
		zap.String("course_id", courseID),
		zap.String("code", course.Code))
	return course, nil
}

func deletionBlockedError(course *models.Course, blockers models.DeletionBlockers) error {
	var reasons []string
	var suggestions []string
	if blockers.Subjects > 0 {
		reasons = append(reasons, fmt.Sprintf("%d subjects are associated with this course", blockers.Subjects))
		suggestions = append(suggestions, "Delete all associated subjects first")
	}
	if blockers.ActiveStudents > 0 {
		reasons = append(reasons, fmt.Sprintf("%d students are currently enrolled", blockers.ActiveStudents))
		suggestions = append(suggestions, "Transfer or graduate enrolled students")
	}
	if blockers.TotalStudents > 0 && blockers.ActiveStudents == 0 {
		reasons = append(reasons, fmt.Sprintf("%d students have historical enrollment records", blockers.TotalStudents))
		suggestions = append(suggestions, "Consider archiving instead of deleting")
	}

	message := fmt.Sprintf("Cannot delete course %q. %s.", course.Name, strings.Join(reasons, " and "))
	return appErrors.WithDetails(appErrors.ErrDeletionBlocked, message, map[string]interface{}{
		"course_info": map[string]interface{}{
			"course_name":         course.Name,
			"course_code":         course.Code,
			"assigned_department": course.AssignedDepartment,
			"assigned_semester":   course.AssignedSemester,
		},
		"blocking_factors": blockers,
		"suggestions":      suggestions,
	})
}

// BulkUpdate applies one action across many courses. Reassignment actions are
// pre-flighted per affected course against records outside the id set; the
// first conflict aborts the batch before any write.
func (s *CourseService) BulkUpdate(ctx context.Context, instituteID string, req BulkCourseRequest) (*BulkCourseResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "please provide valid course ids and an action")
	}

	var affected int64
	var message string

	switch req.Action {
	case CourseActionActivate:
		n, err := s.repo.BulkSetStatus(ctx, instituteID, req.CourseIDs, models.CourseStatusActive)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "bulk activate failed")
		}
		affected, message = n, "activated"

	case CourseActionDeactivate:
		n, err := s.repo.BulkSetStatus(ctx, instituteID, req.CourseIDs, models.CourseStatusInactive)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "bulk deactivate failed")
		}
		affected, message = n, "deactivated"

	case CourseActionUpdateAcademicYear:
		year, ok := stringValue(req.Value)
		if !ok || year == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "academic year value is required")
		}
		n, err := s.repo.BulkSetAcademicYear(ctx, instituteID, req.CourseIDs, year)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "bulk academic year update failed")
		}
		affected, message = n, fmt.Sprintf("academic year updated to %s", year)

	case CourseActionUpdateCredits:
		credits, ok := intValue(req.Value)
		if !ok || credits < 1 || credits > 8 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "semester credits must be between 1 and 8")
		}
		n, err := s.repo.BulkSetSemesterCredits(ctx, instituteID, req.CourseIDs, credits)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "bulk credits update failed")
		}
		affected, message = n, fmt.Sprintf("semester credits updated to %d", credits)

	case CourseActionUpdateDepartment:
		department, ok := stringValue(req.Value)
		if !ok || strings.TrimSpace(department) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "assigned department value is required")
		}
		department = strings.TrimSpace(department)

		if err := s.preflightDepartmentMove(ctx, instituteID, req.CourseIDs, department); err != nil {
			return nil, err
		}

		n, err := s.repo.BulkSetAssignedDepartment(ctx, instituteID, req.CourseIDs, department)
		if err != nil {
			return nil, s.mapBulkAssignmentError(err, department)
		}
		affected, message = n, fmt.Sprintf("assigned department updated to %s", department)

	default:
		return nil, appErrors.Clone(appErrors.ErrInvalidAction,
			"invalid action, supported actions: activate, deactivate, update_academic_year, update_semester_credits, update_assigned_department")
	}

	s.invalidateStats(ctx, instituteID)
	s.metrics.RecordBulkOperation("courses", req.Action)
	s.logger.Info("bulk course update",
		zap.String("institute_id", instituteID),
		zap.String("action", req.Action),
		zap.Int64("affected", affected))
	return &BulkCourseResult{CoursesAffected: affected, Action: req.Action, Message: message}, nil
}

// preflightDepartmentMove validates every affected course's target slot
// (new department, unchanged semester) against courses outside the batch.
// Validate all, then write all: no partial application.
func (s *CourseService) preflightDepartmentMove(ctx context.Context, instituteID string, ids []string, department string) error {
	courses, err := s.repo.ListByIDs(ctx, instituteID, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses for bulk update")
	}

	for _, course := range courses {
		conflict, err := s.repo.FindAssignmentOutsideSet(ctx, instituteID, department, course.AssignedSemester, ids)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				continue
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignment conflicts")
		}
		s.metrics.RecordConflict("semester_assignment")
		return duplicateAssignmentError(department, course.AssignedSemester, conflict)
	}
	return nil
}

func (s *CourseService) mapBulkAssignmentError(err error, department string) error {
	if repository.IsUniqueViolation(err, "courses_institute_assignment_key") {
		return appErrors.Clone(appErrors.ErrDuplicateAssignment,
			fmt.Sprintf("conflict: another course already occupies a %s semester slot", department))
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "bulk department update failed")
}

// ValidateAssignment probes a teaching slot for availability.
func (s *CourseService) ValidateAssignment(ctx context.Context, instituteID string, req ValidateAssignmentRequest) (*AssignmentAvailability, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	conflict, err := s.repo.FindByAssignment(ctx, instituteID, req.AssignedDepartment, req.AssignedSemester, req.ExcludeCourseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &AssignmentAvailability{
				Available: true,
				Message:   fmt.Sprintf("%s - Semester %d is available", req.AssignedDepartment, req.AssignedSemester),
			}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check semester assignment")
	}

	return &AssignmentAvailability{
		Available: false,
		Message:   fmt.Sprintf("%s - Semester %d is already assigned to %q", req.AssignedDepartment, req.AssignedSemester, conflict.Name),
		ConflictingCourse: &models.AssignmentCourse{
			CourseID: conflict.ID,
			Name:     conflict.Name,
			Code:     conflict.Code,
			Credits:  conflict.SemesterCredits,
		},
	}, nil
}

// SemesterAssignments returns the occupied-slot overview in both department
// and semester orientations.
func (s *CourseService) SemesterAssignments(ctx context.Context, instituteID string) (*SemesterAssignmentsView, error) {
	assignments, err := s.repo.SemesterAssignments(ctx, instituteID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load semester assignments")
	}

	view := &SemesterAssignmentsView{
		Assignments:      assignments,
		DepartmentView:   make(map[string]map[int]models.SemesterAssignment),
		SemesterView:     make(map[int]map[string]models.SemesterAssignment),
		TotalAssignments: len(assignments),
	}
	for _, a := range assignments {
		if view.DepartmentView[a.Department] == nil {
			view.DepartmentView[a.Department] = make(map[int]models.SemesterAssignment)
		}
		view.DepartmentView[a.Department][a.Semester] = a

		if view.SemesterView[a.Semester] == nil {
			view.SemesterView[a.Semester] = make(map[string]models.SemesterAssignment)
		}
		view.SemesterView[a.Semester][a.Department] = a
	}

	return view, nil
}

// SyncEnrollments recomputes enrollment counters from active students.
func (s *CourseService) SyncEnrollments(ctx context.Context, instituteID string) (int64, error) {
	updated, err := s.repo.SyncEnrollments(ctx, instituteID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sync enrollments")
	}
	return updated, nil
}

func (s *CourseService) invalidateStats(ctx context.Context, instituteID string) {
	if s.stats != nil {
		s.stats.Delete(ctx, courseStatsKey(instituteID))
	}
}

func stringValue(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func intValue(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case string:
		parsed, err := strconv.Atoi(n)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
