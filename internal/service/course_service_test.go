package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuskit/institute-api/internal/models"
	appErrors "github.com/campuskit/institute-api/pkg/errors"
)

type mockCourseRepo struct {
	courses             map[string]models.Course
	createErr           error
	updateErr           error
	bulkCalls           []string
	bulkAffected        int64
	deleted             []string
	subjectCount        map[string]int
	studentTotal        map[string]int
	studentActive       map[string]int
	studentActiveByYear map[string]int
	countYears          []string
}

func newMockCourseRepo() *mockCourseRepo {
	return &mockCourseRepo{
		courses:             map[string]models.Course{},
		subjectCount:        map[string]int{},
		studentTotal:        map[string]int{},
		studentActive:       map[string]int{},
		studentActiveByYear: map[string]int{},
		bulkAffected:        1,
	}
}

func (m *mockCourseRepo) List(ctx context.Context, instituteID string, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	var details []models.CourseDetail
	for _, c := range m.courses {
		if c.InstituteID == instituteID {
			details = append(details, models.CourseDetail{Course: c})
		}
	}
	return details, len(details), nil
}

func (m *mockCourseRepo) FindByID(ctx context.Context, instituteID, id string) (*models.Course, error) {
	if c, ok := m.courses[id]; ok && c.InstituteID == instituteID {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) FindByCode(ctx context.Context, instituteID, code, excludeID string) (*models.Course, error) {
	for _, c := range m.courses {
		if c.InstituteID == instituteID && strings.EqualFold(c.Code, code) && c.ID != excludeID {
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) FindByAssignment(ctx context.Context, instituteID, department string, semester int, excludeID string) (*models.Course, error) {
	for _, c := range m.courses {
		if c.InstituteID == instituteID && c.AssignedDepartment == department && c.AssignedSemester == semester && c.ID != excludeID {
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) FindAssignmentOutsideSet(ctx context.Context, instituteID, department string, semester int, excludeIDs []string) (*models.Course, error) {
	excluded := map[string]bool{}
	for _, id := range excludeIDs {
		excluded[id] = true
	}
	for _, c := range m.courses {
		if c.InstituteID == instituteID && c.AssignedDepartment == department && c.AssignedSemester == semester && !excluded[c.ID] {
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockCourseRepo) ListByIDs(ctx context.Context, instituteID string, ids []string) ([]models.Course, error) {
	var out []models.Course
	for _, id := range ids {
		if c, ok := m.courses[id]; ok && c.InstituteID == instituteID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockCourseRepo) Create(ctx context.Context, course *models.Course) error {
	if m.createErr != nil {
		return m.createErr
	}
	if course.ID == "" {
		course.ID = "generated"
	}
	m.courses[course.ID] = *course
	return nil
}

func (m *mockCourseRepo) Update(ctx context.Context, course *models.Course) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	m.courses[course.ID] = *course
	return nil
}

func (m *mockCourseRepo) Delete(ctx context.Context, instituteID, id string) error {
	m.deleted = append(m.deleted, id)
	delete(m.courses, id)
	return nil
}

func (m *mockCourseRepo) BulkSetStatus(ctx context.Context, instituteID string, ids []string, status models.CourseStatus) (int64, error) {
	m.bulkCalls = append(m.bulkCalls, "status:"+string(status))
	return m.bulkAffected, nil
}

func (m *mockCourseRepo) BulkSetAcademicYear(ctx context.Context, instituteID string, ids []string, year string) (int64, error) {
	m.bulkCalls = append(m.bulkCalls, "year:"+year)
	return m.bulkAffected, nil
}

func (m *mockCourseRepo) BulkSetSemesterCredits(ctx context.Context, instituteID string, ids []string, credits int) (int64, error) {
	m.bulkCalls = append(m.bulkCalls, "credits")
	return m.bulkAffected, nil
}

func (m *mockCourseRepo) BulkSetAssignedDepartment(ctx context.Context, instituteID string, ids []string, department string) (int64, error) {
	m.bulkCalls = append(m.bulkCalls, "department:"+department)
	return m.bulkAffected, nil
}

func (m *mockCourseRepo) Stats(ctx context.Context, instituteID string) (*models.CourseFilterStats, error) {
	return &models.CourseFilterStats{
		AvailableDepartments:         []string{},
		AvailableDegreeTypes:         []string{},
		AvailableAcademicYears:       []string{},
		AvailableAssignedDepartments: []string{},
	}, nil
}

func (m *mockCourseRepo) SemesterAssignments(ctx context.Context, instituteID string) ([]models.SemesterAssignment, error) {
	return nil, nil
}

func (m *mockCourseRepo) CountSubjects(ctx context.Context, courseID string) (int, error) {
	return m.subjectCount[courseID], nil
}

func (m *mockCourseRepo) CountStudents(ctx context.Context, instituteID, courseID, academicYear string) (int, int, error) {
	m.countYears = append(m.countYears, academicYear)
	if active, ok := m.studentActiveByYear[courseID+"|"+academicYear]; ok {
		return m.studentTotal[courseID], active, nil
	}
	return m.studentTotal[courseID], m.studentActive[courseID], nil
}

func (m *mockCourseRepo) SyncEnrollments(ctx context.Context, instituteID string) (int64, error) {
	return int64(len(m.courses)), nil
}

type mockSubjectLister struct {
	subjects []models.Subject
}

func (m *mockSubjectLister) ListByCourse(ctx context.Context, instituteID, courseID string) ([]models.Subject, error) {
	return m.subjects, nil
}

func newCourseService(repo *mockCourseRepo) *CourseService {
	return NewCourseService(repo, &mockSubjectLister{}, nil, nil, validator.New(), zap.NewNop())
}

func validCreateRequest() CreateCourseRequest {
	return CreateCourseRequest{
		Name:               "Computer Science",
		Code:               "cs101",
		Department:         "Engineering",
		DegreeType:         "Undergraduate",
		Duration:           4,
		TotalSemesters:     8,
		AssignedDepartment: "Computer Science",
		AssignedSemester:   3,
		AcademicYear:       "2026-27",
	}
}

func TestCourseCreateNormalisesCodeAndDefaults(t *testing.T) {
	repo := newMockCourseRepo()
	svc := newCourseService(repo)

	course, err := svc.Create(context.Background(), "inst-1", validCreateRequest())
	require.NoError(t, err)

	assert.Equal(t, "CS101", course.Code)
	assert.Equal(t, models.CourseStatusActive, course.Status)
	assert.Equal(t, 3, course.SemesterCredits)
	assert.Equal(t, "inst-1", course.InstituteID)
}

func TestCourseCreateDuplicateCodeCaseInsensitive(t *testing.T) {
	repo := newMockCourseRepo()
	repo.courses["c1"] = models.Course{ID: "c1", InstituteID: "inst-1", Name: "Existing", Code: "CS101",
		AssignedDepartment: "Mathematics", AssignedSemester: 1}
	svc := newCourseService(repo)

	_, err := svc.Create(context.Background(), "inst-1", validCreateRequest())
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDuplicateCode.Code, appErr.Code)
	assert.Equal(t, 409, appErr.Status)
	assert.Contains(t, appErr.Fields, "course_code")
	assert.Contains(t, appErr.Details, "conflicting_course")
}

func TestCourseCreateDuplicateCodeOtherInstituteAllowed(t *testing.T) {
	repo := newMockCourseRepo()
	repo.courses["c1"] = models.Course{ID: "c1", InstituteID: "inst-2", Code: "CS101",
		AssignedDepartment: "Computer Science", AssignedSemester: 3}
	svc := newCourseService(repo)

	_, err := svc.Create(context.Background(), "inst-1", validCreateRequest())
	require.NoError(t, err)
}

func TestCourseCreateDuplicateAssignment(t *testing.T) {
	repo := newMockCourseRepo()
	repo.courses["c1"] = models.Course{ID: "c1", InstituteID: "inst-1", Name: "Data Structures", Code: "DS200",
		AssignedDepartment: "Computer Science", AssignedSemester: 3, SemesterCredits: 4}
	svc := newCourseService(repo)

	_, err := svc.Create(context.Background(), "inst-1", validCreateRequest())
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDuplicateAssignment.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "Data Structures")
	assert.Contains(t, appErr.Message, "Semester 3")
	assert.Contains(t, appErr.Fields, "assigned_semester")
}

func TestCourseCreateMapsBackstopViolation(t *testing.T) {
	repo := newMockCourseRepo()
	repo.createErr = &pq.Error{Code: "23505", Constraint: "courses_institute_code_key"}
	svc := newCourseService(repo)

	_, err := svc.Create(context.Background(), "inst-1", validCreateRequest())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateCode.Code, appErrors.FromError(err).Code)
}

func TestCourseUpdateUnchangedAssignmentNotSelfConflict(t *testing.T) {
	repo := newMockCourseRepo()
	repo.courses["c1"] = models.Course{ID: "c1", InstituteID: "inst-1", Name: "CS", Code: "CS101",
		AssignedDepartment: "Computer Science", AssignedSemester: 3, Status: models.CourseStatusActive}
	svc := newCourseService(repo)

	dept := "Computer Science"
	sem := 3
	course, err := svc.Update(context.Background(), "inst-1", "c1", UpdateCourseRequest{
		AssignedDepartment: &dept,
		AssignedSemester:   &sem,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, course.AssignedSemester)
}

func TestCourseUpdateAssignmentConflict(t *testing.T) {
	repo := newMockCourseRepo()
	repo.courses["c1"] = models.Course{ID: "c1", InstituteID: "inst-1", Name: "CS", Code: "CS101",
		AssignedDepartment: "Computer Science", AssignedSemester: 3}
	repo.courses["c2"] = models.Course{ID: "c2", InstituteID: "inst-1", Name: "Maths", Code: "MA100",
		AssignedDepartment: "Mathematics", AssignedSemester: 1}
	svc := newCourseService(repo)

	dept := "Mathematics"
	sem := 1
	_, err := svc.Update(context.Background(), "inst-1", "c1", UpdateCourseRequest{
		AssignedDepartment: &dept,
		AssignedSemester:   &sem,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateAssignment.Code, appErrors.FromError(err).Code)
}

func TestCourseUpdateNotFound(t *testing.T) {
	svc := newCourseService(newMockCourseRepo())

	name := "Renamed"
	_, err := svc.Update(context.Background(), "inst-1", "missing", UpdateCourseRequest{Name: &name})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCourseDeleteBlockedBySubjects(t *testing.T) {
	repo := newMockCourseRepo()
	repo.courses["c1"] = models.Course{ID: "c1", InstituteID: "inst-1", Name: "CS", Code: "CS101"}
	repo.subjectCount["c1"] = 4
	svc := newCourseService(repo)

	_, err := svc.Delete(context.Background(), "inst-1", "c1")
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrDeletionBlocked.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "4 subjects")
	assert.Contains(t, appErr.Details, "blocking_factors")
	assert.Contains(t, appErr.Details, "suggestions")
	assert.Empty(t, repo.deleted)
}

func TestCourseDeleteBlockedByHistoricalStudents(t *testing.T) {
	repo := newMockCourseRepo()
	repo.courses["c1"] = models.Course{ID: "c1", InstituteID: "inst-1", Name: "CS", Code: "CS101"}
	repo.studentTotal["c1"] = 10
	svc := newCourseService(repo)

	_, err := svc.Delete(context.Background(), "inst-1", "c1")
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "historical enrollment")
	assert.Empty(t, repo.deleted)
}

func TestCourseDeleteActiveCountScopedToAcademicYear(t *testing.T) {
	repo := newMockCourseRepo()
	repo.courses["c1"] = models.Course{ID: "c1", InstituteID: "inst-1", Name: "CS", Code: "CS101", AcademicYear: "2026-27"}
	repo.studentTotal["c1"] = 6
	repo.studentActiveByYear["c1|2026-27"] = 0
	repo.studentActive["c1"] = 6
	svc := newCourseService(repo)

	_, err := svc.Delete(context.Background(), "inst-1", "c1")
	require.Error(t, err)

	// The active count is scoped to the course's own academic year, so a
	// prior-year cohort still marked Active shows up as historical.
	assert.Equal(t, []string{"2026-27"}, repo.countYears)
	appErr := appErrors.FromError(err)
	assert.Contains(t, appErr.Message, "historical enrollment")
	blockers, ok := appErr.Details["blocking_factors"].(models.DeletionBlockers)
	require.True(t, ok)
	assert.Zero(t, blockers.ActiveStudents)
	assert.Equal(t, 6, blockers.TotalStudents)
	assert.Empty(t, repo.deleted)
}

func TestCourseDeleteSucceedsWithoutReferences(t *testing.T) {
	repo := newMockCourseRepo()
	repo.courses["c1"] = models.Course{ID: "c1", InstituteID: "inst-1", Name: "CS", Code: "CS101"}
	svc := newCourseService(repo)

	course, err := svc.Delete(context.Background(), "inst-1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "CS101", course.Code)
	assert.Equal(t, []string{"c1"}, repo.deleted)
}

func TestCourseBulkInvalidAction(t *testing.T) {
	svc := newCourseService(newMockCourseRepo())

	_, err := svc.BulkUpdate(context.Background(), "inst-1", BulkCourseRequest{
		CourseIDs: []string{"c1"},
		Action:    "explode",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidAction.Code, appErrors.FromError(err).Code)
}

func TestCourseBulkActivate(t *testing.T) {
	repo := newMockCourseRepo()
	repo.bulkAffected = 3
	svc := newCourseService(repo)

	result, err := svc.BulkUpdate(context.Background(), "inst-1", BulkCourseRequest{
		CourseIDs: []string{"a", "b", "c"},
		Action:    CourseActionActivate,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.CoursesAffected)
	assert.Equal(t, []string{"status:Active"}, repo.bulkCalls)
}

func TestCourseBulkDepartmentMoveConflictAbortsBeforeWrite(t *testing.T) {
	repo := newMockCourseRepo()
	repo.courses["c1"] = models.Course{ID: "c1", InstituteID: "inst-1", Name: "CS", Code: "CS101",
		AssignedDepartment: "Computer Science", AssignedSemester: 3}
	// Outside the batch, already occupying Physics semester 3.
	repo.courses["c9"] = models.Course{ID: "c9", InstituteID: "inst-1", Name: "Quantum Mechanics", Code: "PH300",
		AssignedDepartment: "Physics", AssignedSemester: 3}
	svc := newCourseService(repo)

	_, err := svc.BulkUpdate(context.Background(), "inst-1", BulkCourseRequest{
		CourseIDs: []string{"c1"},
		Action:    CourseActionUpdateDepartment,
		Value:     "Physics",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateAssignment.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.bulkCalls)
}

func TestCourseBulkDepartmentMoveInsideSetAllowed(t *testing.T) {
	repo := newMockCourseRepo()
	// Both courses move together, so their old slots cannot conflict.
	repo.courses["c1"] = models.Course{ID: "c1", InstituteID: "inst-1", Name: "CS", Code: "CS101",
		AssignedDepartment: "Computer Science", AssignedSemester: 3}
	repo.courses["c2"] = models.Course{ID: "c2", InstituteID: "inst-1", Name: "Algo", Code: "CS201",
		AssignedDepartment: "Computer Science", AssignedSemester: 5}
	svc := newCourseService(repo)

	result, err := svc.BulkUpdate(context.Background(), "inst-1", BulkCourseRequest{
		CourseIDs: []string{"c1", "c2"},
		Action:    CourseActionUpdateDepartment,
		Value:     "Software Engineering",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"department:Software Engineering"}, repo.bulkCalls)
	assert.Equal(t, int64(1), result.CoursesAffected)
}

func TestCourseBulkCreditsAcceptsJSONNumber(t *testing.T) {
	repo := newMockCourseRepo()
	svc := newCourseService(repo)

	// JSON decodes numbers into float64.
	_, err := svc.BulkUpdate(context.Background(), "inst-1", BulkCourseRequest{
		CourseIDs: []string{"c1"},
		Action:    CourseActionUpdateCredits,
		Value:     float64(5),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"credits"}, repo.bulkCalls)
}

func TestCourseBulkCreditsOutOfRange(t *testing.T) {
	svc := newCourseService(newMockCourseRepo())

	_, err := svc.BulkUpdate(context.Background(), "inst-1", BulkCourseRequest{
		CourseIDs: []string{"c1"},
		Action:    CourseActionUpdateCredits,
		Value:     float64(9),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestValidateAssignmentAvailable(t *testing.T) {
	svc := newCourseService(newMockCourseRepo())

	result, err := svc.ValidateAssignment(context.Background(), "inst-1", ValidateAssignmentRequest{
		AssignedDepartment: "Computer Science",
		AssignedSemester:   3,
	})
	require.NoError(t, err)
	assert.True(t, result.Available)
	assert.Nil(t, result.ConflictingCourse)
}

func TestValidateAssignmentTaken(t *testing.T) {
	repo := newMockCourseRepo()
	repo.courses["c1"] = models.Course{ID: "c1", InstituteID: "inst-1", Name: "CS", Code: "CS101",
		AssignedDepartment: "Computer Science", AssignedSemester: 3}
	svc := newCourseService(repo)

	result, err := svc.ValidateAssignment(context.Background(), "inst-1", ValidateAssignmentRequest{
		AssignedDepartment: "Computer Science",
		AssignedSemester:   3,
	})
	require.NoError(t, err)
	assert.False(t, result.Available)
	require.NotNil(t, result.ConflictingCourse)
	assert.Equal(t, "c1", result.ConflictingCourse.CourseID)
}

func TestValidateAssignmentExcludesSelf(t *testing.T) {
	repo := newMockCourseRepo()
	repo.courses["c1"] = models.Course{ID: "c1", InstituteID: "inst-1", Name: "CS", Code: "CS101",
		AssignedDepartment: "Computer Science", AssignedSemester: 3}
	svc := newCourseService(repo)

	result, err := svc.ValidateAssignment(context.Background(), "inst-1", ValidateAssignmentRequest{
		AssignedDepartment: "Computer Science",
		AssignedSemester:   3,
		ExcludeCourseID:    "c1",
	})
	require.NoError(t, err)
	assert.True(t, result.Available)
}

func TestCourseGetGroupsSubjectsBySemester(t *testing.T) {
	repo := newMockCourseRepo()
	repo.courses["c1"] = models.Course{ID: "c1", InstituteID: "inst-1", Name: "CS", Code: "CS101",
		AssignedDepartment: "Computer Science", AssignedSemester: 3, MaxStudents: 60}
	repo.studentActive["c1"] = 12
	subjects := &mockSubjectLister{subjects: []models.Subject{
		{ID: "s1", CourseID: "c1", Semester: 1},
		{ID: "s2", CourseID: "c1", Semester: 1},
		{ID: "s3", CourseID: "c1", Semester: 2},
	}}
	svc := NewCourseService(repo, subjects, nil, nil, validator.New(), zap.NewNop())

	view, err := svc.Get(context.Background(), "inst-1", "c1")
	require.NoError(t, err)
	assert.Equal(t, 3, view.TotalSubjects)
	assert.Len(t, view.SubjectsBySemester[1], 2)
	assert.Len(t, view.SubjectsBySemester[2], 1)
	assert.Equal(t, 12, view.Course.CurrentEnrollment)
}
