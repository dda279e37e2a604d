package repository

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/institute-api/internal/models"
)

var studentRowColumns = []string{
	"id", "institute_id", "roll_number", "name", "email", "phone", "course_id",
	"current_semester", "admission_year", "academic_year", "academic_status", "is_verified",
	"password_hash", "created_at", "updated_at",
}

func studentRow(id, instituteID, roll string) []driver.Value {
	now := time.Now()
	return []driver.Value{
		id, instituteID, roll, "Asha Rao", "asha@example.com", "", "c1",
		3, 2024, "2026-27", "Active", true, "hash",
		now, now,
	}
}

func TestStudentRepositoryListJoinsCourseName(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	rows := sqlmock.NewRows(append(studentRowColumns, "course_name")).
		AddRow(append(studentRow("s1", "inst-1", "R-001"), "Computer Science")...)
	mock.ExpectQuery(regexp.QuoteMeta("LEFT JOIN courses c ON c.id = s.course_id")).
		WithArgs("inst-1", "c1", 3).
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students s")).
		WithArgs("inst-1", "c1", 3).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), "inst-1", models.StudentFilter{
		CourseID: "c1",
		Semester: 3,
		Page:     1,
		PageSize: 20,
	})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, students, 1)
	require.NotNil(t, students[0].CourseName)
	require.Equal(t, "Computer Science", *students[0].CourseName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryExportOrdersByRollNumber(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	rows := sqlmock.NewRows(append(studentRowColumns, "course_name")).
		AddRow(append(studentRow("s1", "inst-1", "R-001"), "Computer Science")...).
		AddRow(append(studentRow("s2", "inst-1", "R-002"), "Computer Science")...)
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY s.roll_number LIMIT 500")).
		WithArgs("inst-1").
		WillReturnRows(rows)

	students, err := repo.Export(context.Background(), "inst-1", models.StudentFilter{}, 500)
	require.NoError(t, err)
	require.Len(t, students, 2)
	require.Equal(t, "R-001", students[0].RollNumber)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryExistsByRollOrEmail(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("roll_number = $2 OR LOWER(email) = LOWER($3)")).
		WithArgs("inst-1", "R-001", "asha@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.ExistsByRollOrEmail(context.Background(), "inst-1", "R-001", "asha@example.com")
	require.NoError(t, err)
	require.True(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateGeneratesID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	courseID := "c1"
	student := &models.Student{
		InstituteID:    "inst-1",
		RollNumber:     "R-001",
		Name:           "Asha Rao",
		Email:          "asha@example.com",
		CourseID:       &courseID,
		AcademicStatus: models.AcademicStatusActive,
		AdmissionYear:  2024,
		AcademicYear:   "2026-27",
	}
	require.NoError(t, repo.Create(context.Background(), student))
	require.NotEmpty(t, student.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositorySetVerificationReportsMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET is_verified = $3")).
		WithArgs("inst-1", "ghost", true).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SetVerification(context.Background(), "inst-1", "ghost", true)
	require.ErrorIs(t, err, ErrNoRowsAffected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCountByIDs(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE institute_id = $1 AND id = ANY($2)")).
		WithArgs("inst-1", pq.Array([]string{"s1", "s2", "foreign"})).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	count, err := repo.CountByIDs(context.Background(), "inst-1", []string{"s1", "s2", "foreign"})
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryBulkSetSemester(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET current_semester = $3")).
		WithArgs("inst-1", pq.Array([]string{"s1", "s2"}), 4).
		WillReturnResult(sqlmock.NewResult(0, 2))

	affected, err := repo.BulkSetSemester(context.Background(), "inst-1", []string{"s1", "s2"}, 4)
	require.NoError(t, err)
	require.Equal(t, int64(2), affected)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryDashboardStats(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()

	repo := NewStudentRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("INTERVAL '7 days'")).
		WithArgs("inst-1").
		WillReturnRows(sqlmock.NewRows([]string{"total", "verified", "unverified", "recent"}).AddRow(40, 30, 10, 3))
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY c.id, c.name ORDER BY count DESC LIMIT 5")).
		WithArgs("inst-1").
		WillReturnRows(sqlmock.NewRows([]string{"course_id", "course_name", "count"}).AddRow("c1", "Computer Science", 25))

	stats, err := repo.DashboardStats(context.Background(), "inst-1")
	require.NoError(t, err)
	require.Equal(t, 40, stats.TotalStudents)
	require.Equal(t, 75, stats.VerificationRate)
	require.Len(t, stats.TopCourses, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}
