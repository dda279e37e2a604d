package repository

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/institute-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var courseRowColumns = []string{
	"id", "institute_id", "name", "code", "description", "department", "degree_type",
	"duration", "total_semesters", "assigned_department", "assigned_semester", "semester_credits",
	"status", "academic_year", "max_students", "current_enrollment", "created_at", "updated_at",
}

func courseRow(id, instituteID, code string) []driver.Value {
	now := time.Now()
	return []driver.Value{
		id, instituteID, "Computer Science", code, "", "Engineering", "Undergraduate",
		4, 8, "Computer Science", 3, 3,
		"Active", "2026-27", 60, 0, now, now,
	}
}

func TestCourseRepositoryFindByCodeScopesInstitute(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	rows := sqlmock.NewRows(courseRowColumns).AddRow(courseRow("c1", "inst-1", "CS101")...)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE institute_id = $1 AND UPPER(code) = UPPER($2)")).
		WithArgs("inst-1", "CS101").
		WillReturnRows(rows)

	course, err := repo.FindByCode(context.Background(), "inst-1", "CS101", "")
	require.NoError(t, err)
	require.Equal(t, "c1", course.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryFindByCodeExcludesSelf(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("AND id <> $3")).
		WithArgs("inst-1", "CS101", "c1").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByCode(context.Background(), "inst-1", "CS101", "c1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryFindByAssignment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	rows := sqlmock.NewRows(courseRowColumns).AddRow(courseRow("c1", "inst-1", "CS101")...)
	mock.ExpectQuery(regexp.QuoteMeta("assigned_department = $2 AND assigned_semester = $3")).
		WithArgs("inst-1", "Computer Science", 3).
		WillReturnRows(rows)

	course, err := repo.FindByAssignment(context.Background(), "inst-1", "Computer Science", 3, "")
	require.NoError(t, err)
	require.Equal(t, "CS101", course.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryFindAssignmentOutsideSet(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("NOT (id = ANY($4))")).
		WithArgs("inst-1", "Physics", 3, pq.Array([]string{"c1", "c2"})).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindAssignmentOutsideSet(context.Background(), "inst-1", "Physics", 3, []string{"c1", "c2"})
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryCreateGeneratesID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO courses")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	course := &models.Course{
		InstituteID:        "inst-1",
		Name:               "Computer Science",
		Code:               "CS101",
		Department:         "Engineering",
		DegreeType:         models.DegreeUndergraduate,
		Duration:           4,
		TotalSemesters:     8,
		AssignedDepartment: "Computer Science",
		AssignedSemester:   3,
		SemesterCredits:    3,
		Status:             models.CourseStatusActive,
		AcademicYear:       "2026-27",
	}
	require.NoError(t, repo.Create(context.Background(), course))
	require.NotEmpty(t, course.ID)
	require.False(t, course.UpdatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryBulkSetStatusReportsAffected(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET status = $3")).
		WithArgs("inst-1", pq.Array([]string{"c1", "c2", "ghost"}), "Inactive").
		WillReturnResult(sqlmock.NewResult(0, 2))

	affected, err := repo.BulkSetStatus(context.Background(), "inst-1", []string{"c1", "c2", "ghost"}, models.CourseStatusInactive)
	require.NoError(t, err)
	require.Equal(t, int64(2), affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryListAppliesFilters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	listRows := sqlmock.NewRows(append(courseRowColumns, "subject_count")).
		AddRow(append(courseRow("c1", "inst-1", "CS101"), 5)...)
	mock.ExpectQuery(regexp.QuoteMeta("AND status = $3")).
		WithArgs("inst-1", "%Engineering%", "Active").
		WillReturnRows(listRows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("inst-1", "%Engineering%", "Active").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	courses, total, err := repo.List(context.Background(), "inst-1", models.CourseFilter{
		Department: "Engineering",
		Status:     "Active",
		Page:       1,
		PageSize:   20,
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, courses, 1)
	require.Equal(t, 5, courses[0].SubjectCount)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositorySemesterAssignmentsGroupsSlots(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	rows := sqlmock.NewRows([]string{"id", "name", "code", "semester_credits", "assigned_department", "assigned_semester"}).
		AddRow("c1", "CS", "CS101", 3, "Computer Science", 3).
		AddRow("c2", "Maths", "MA100", 4, "Mathematics", 1)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY assigned_department, assigned_semester, code")).
		WithArgs("inst-1").
		WillReturnRows(rows)

	assignments, err := repo.SemesterAssignments(context.Background(), "inst-1")
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	require.Equal(t, "Computer Science", assignments[0].Department)
	require.Equal(t, 3, assignments[0].TotalCredits)
	require.Equal(t, "Mathematics", assignments[1].Department)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseRepositoryCountStudents(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewCourseRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("academic_status = 'Active' AND academic_year = $3")).
		WithArgs("inst-1", "c1", "2026-27").
		WillReturnRows(sqlmock.NewRows([]string{"total", "active"}).AddRow(10, 4))

	total, active, err := repo.CountStudents(context.Background(), "inst-1", "c1", "2026-27")
	require.NoError(t, err)
	require.Equal(t, 10, total)
	require.Equal(t, 4, active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	violation := &pq.Error{Code: "23505", Constraint: "courses_institute_code_key"}

	require.True(t, IsUniqueViolation(violation, "courses_institute_code_key"))
	require.True(t, IsUniqueViolation(violation, ""))
	require.False(t, IsUniqueViolation(violation, "courses_institute_assignment_key"))
	require.True(t, IsUniqueViolation(fmt.Errorf("create course: %w", violation), "courses_institute_code_key"))
	require.False(t, IsUniqueViolation(errors.New("plain"), ""))
	require.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}, ""))
}
