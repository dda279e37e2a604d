package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuskit/institute-api/internal/models"
	"github.com/campuskit/institute-api/internal/repository"
	appErrors "github.com/campuskit/institute-api/pkg/errors"
)

type mockStudentRepo struct {
	students  map[string]models.Student
	bulkCalls []string
	statsErr  error
}

func newMockStudentRepo() *mockStudentRepo {
	return &mockStudentRepo{students: map[string]models.Student{}}
}

func (m *mockStudentRepo) List(ctx context.Context, instituteID string, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	var details []models.StudentDetail
	for _, s := range m.students {
		if s.InstituteID == instituteID {
			details = append(details, models.StudentDetail{Student: s})
		}
	}
	return details, len(details), nil
}

func (m *mockStudentRepo) Export(ctx context.Context, instituteID string, filter models.StudentFilter, maxRows int) ([]models.StudentDetail, error) {
	details, _, _ := m.List(ctx, instituteID, filter)
	if maxRows > 0 && len(details) > maxRows {
		details = details[:maxRows]
	}
	return details, nil
}

func (m *mockStudentRepo) FindByID(ctx context.Context, instituteID, id string) (*models.Student, error) {
	if s, ok := m.students[id]; ok && s.InstituteID == instituteID {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) SetVerification(ctx context.Context, instituteID, id string, verified bool) error {
	s, ok := m.students[id]
	if !ok || s.InstituteID != instituteID {
		return repository.ErrNoRowsAffected
	}
	s.IsVerified = verified
	m.students[id] = s
	return nil
}

func (m *mockStudentRepo) CountByIDs(ctx context.Context, instituteID string, ids []string) (int, error) {
	count := 0
	for _, id := range ids {
		if s, ok := m.students[id]; ok && s.InstituteID == instituteID {
			count++
		}
	}
	return count, nil
}

func (m *mockStudentRepo) BulkSetVerification(ctx context.Context, instituteID string, ids []string, verified bool) (int64, error) {
	m.bulkCalls = append(m.bulkCalls, "verification")
	return int64(len(ids)), nil
}

func (m *mockStudentRepo) BulkSetAcademicStatus(ctx context.Context, instituteID string, ids []string, status models.AcademicStatus) (int64, error) {
	m.bulkCalls = append(m.bulkCalls, "status:"+string(status))
	return int64(len(ids)), nil
}

func (m *mockStudentRepo) BulkSetSemester(ctx context.Context, instituteID string, ids []string, semester int) (int64, error) {
	m.bulkCalls = append(m.bulkCalls, "semester")
	return int64(len(ids)), nil
}

func (m *mockStudentRepo) Stats(ctx context.Context, instituteID string) (*models.StudentFilterStats, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return &models.StudentFilterStats{
		AvailableCourses:   []models.CourseOption{},
		AvailableSemesters: []int{1, 3},
		AvailableYears:     []int{2025},
		StatusCounts:       models.StudentStatusCounts{Total: len(m.students)},
	}, nil
}

func (m *mockStudentRepo) DashboardStats(ctx context.Context, instituteID string) (*models.DashboardStats, error) {
	return &models.DashboardStats{TotalStudents: len(m.students)}, nil
}

func newStudentService(repo *mockStudentRepo) *StudentService {
	return NewStudentService(repo, nil, nil, 10000, validator.New(), zap.NewNop())
}

func seedStudent(repo *mockStudentRepo, id, instituteID string) {
	repo.students[id] = models.Student{
		ID:              id,
		InstituteID:     instituteID,
		RollNumber:      "R-" + id,
		Name:            "Student " + id,
		Email:           id + "@example.edu",
		CurrentSemester: 1,
		AdmissionYear:   2025,
		AcademicStatus:  models.AcademicStatusActive,
	}
}

func TestStudentListIncludesFilterStats(t *testing.T) {
	repo := newMockStudentRepo()
	seedStudent(repo, "s1", "inst-1")
	seedStudent(repo, "s2", "inst-2")
	svc := newStudentService(repo)

	result, pagination, err := svc.List(context.Background(), "inst-1", models.StudentFilter{Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.Len(t, result.Students, 1)
	assert.Equal(t, 1, pagination.TotalCount)
	require.NotNil(t, result.Filters)
	assert.Equal(t, []int{1, 3}, result.Filters.AvailableSemesters)
}

func TestStudentListStatsFailureDegrades(t *testing.T) {
	repo := newMockStudentRepo()
	seedStudent(repo, "s1", "inst-1")
	repo.statsErr = assert.AnError
	svc := newStudentService(repo)

	result, _, err := svc.List(context.Background(), "inst-1", models.StudentFilter{})
	require.NoError(t, err)
	require.NotNil(t, result.Filters)
	assert.Empty(t, result.Filters.AvailableSemesters)
	assert.Zero(t, result.Filters.StatusCounts.Total)
}

func TestStudentSetVerification(t *testing.T) {
	repo := newMockStudentRepo()
	seedStudent(repo, "s1", "inst-1")
	svc := newStudentService(repo)

	require.NoError(t, svc.SetVerification(context.Background(), "inst-1", "s1", true))
	assert.True(t, repo.students["s1"].IsVerified)
}

func TestStudentSetVerificationWrongInstitute(t *testing.T) {
	repo := newMockStudentRepo()
	seedStudent(repo, "s1", "inst-2")
	svc := newStudentService(repo)

	err := svc.SetVerification(context.Background(), "inst-1", "s1", true)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestStudentBulkRejectsForeignIDs(t *testing.T) {
	repo := newMockStudentRepo()
	seedStudent(repo, "s1", "inst-1")
	seedStudent(repo, "s2", "inst-2")
	svc := newStudentService(repo)

	_, err := svc.BulkUpdate(context.Background(), "inst-1", BulkStudentRequest{
		StudentIDs: []string{"s1", "s2"},
		Action:     StudentActionVerify,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.bulkCalls)
}

func TestStudentBulkVerify(t *testing.T) {
	repo := newMockStudentRepo()
	seedStudent(repo, "s1", "inst-1")
	seedStudent(repo, "s2", "inst-1")
	svc := newStudentService(repo)

	result, err := svc.BulkUpdate(context.Background(), "inst-1", BulkStudentRequest{
		StudentIDs: []string{"s1", "s2"},
		Action:     StudentActionVerify,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.StudentsAffected)
	assert.Equal(t, []string{"verification"}, repo.bulkCalls)
}

func TestStudentBulkUpdateSemesterValidatesRange(t *testing.T) {
	repo := newMockStudentRepo()
	seedStudent(repo, "s1", "inst-1")
	svc := newStudentService(repo)

	_, err := svc.BulkUpdate(context.Background(), "inst-1", BulkStudentRequest{
		StudentIDs: []string{"s1"},
		Action:     StudentActionUpdateSemester,
		Value:      float64(11),
	})
	require.Error(t, err)
	assert.Empty(t, repo.bulkCalls)
}

func TestStudentBulkInvalidAction(t *testing.T) {
	repo := newMockStudentRepo()
	seedStudent(repo, "s1", "inst-1")
	svc := newStudentService(repo)

	_, err := svc.BulkUpdate(context.Background(), "inst-1", BulkStudentRequest{
		StudentIDs: []string{"s1"},
		Action:     "graduate_everyone",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidAction.Code, appErrors.FromError(err).Code)
}

func TestStudentExportCSV(t *testing.T) {
	repo := newMockStudentRepo()
	seedStudent(repo, "s1", "inst-1")
	svc := newStudentService(repo)

	result, err := svc.ExportRoster(context.Background(), "inst-1", "Test Institute", "csv", models.StudentFilter{})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", result.ContentType)
	assert.Equal(t, "students.csv", result.Filename)

	lines := strings.Split(strings.TrimSpace(string(result.Data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Roll Number")
	assert.Contains(t, lines[1], "R-s1")
}

func TestStudentExportJSON(t *testing.T) {
	repo := newMockStudentRepo()
	seedStudent(repo, "s1", "inst-1")
	svc := newStudentService(repo)

	result, err := svc.ExportRoster(context.Background(), "inst-1", "Test Institute", "json", models.StudentFilter{})
	require.NoError(t, err)
	assert.Equal(t, "application/json", result.ContentType)

	var students []models.StudentDetail
	require.NoError(t, json.Unmarshal(result.Data, &students))
	require.Len(t, students, 1)
	assert.Equal(t, "R-s1", students[0].RollNumber)
}

func TestStudentExportPDF(t *testing.T) {
	repo := newMockStudentRepo()
	seedStudent(repo, "s1", "inst-1")
	svc := newStudentService(repo)

	result, err := svc.ExportRoster(context.Background(), "inst-1", "Test Institute", "pdf", models.StudentFilter{})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.True(t, strings.HasPrefix(string(result.Data), "%PDF"))
}

func TestStudentExportUnsupportedFormat(t *testing.T) {
	svc := newStudentService(newMockStudentRepo())

	_, err := svc.ExportRoster(context.Background(), "inst-1", "Test Institute", "xlsx", models.StudentFilter{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestStudentDashboard(t *testing.T) {
	repo := newMockStudentRepo()
	seedStudent(repo, "s1", "inst-1")
	svc := newStudentService(repo)

	stats, err := svc.Dashboard(context.Background(), "inst-1")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalStudents)
}
