package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuskit/institute-api/internal/models"
	"github.com/campuskit/institute-api/internal/repository"
	appErrors "github.com/campuskit/institute-api/pkg/errors"
	"github.com/campuskit/institute-api/pkg/export"
)

type studentRepository interface {
	List(ctx context.Context, instituteID string, filter models.StudentFilter) ([]models.StudentDetail, int, error)
	Export(ctx context.Context, instituteID string, filter models.StudentFilter, maxRows int) ([]models.StudentDetail, error)
	FindByID(ctx context.Context, instituteID, id string) (*models.Student, error)
	SetVerification(ctx context.Context, instituteID, id string, verified bool) error
	CountByIDs(ctx context.Context, instituteID string, ids []string) (int, error)
	BulkSetVerification(ctx context.Context, instituteID string, ids []string, verified bool) (int64, error)
	BulkSetAcademicStatus(ctx context.Context, instituteID string, ids []string, status models.AcademicStatus) (int64, error)
	BulkSetSemester(ctx context.Context, instituteID string, ids []string, semester int) (int64, error)
	Stats(ctx context.Context, instituteID string) (*models.StudentFilterStats, error)
	DashboardStats(ctx context.Context, instituteID string) (*models.DashboardStats, error)
}

// BulkStudentRequest applies one action to a set of student ids.
type BulkStudentRequest struct {
	StudentIDs []string    `json:"student_ids" validate:"required,min=1,dive,required"`
	Action     string      `json:"action" validate:"required"`
	Value      interface{} `json:"value"`
}

// BulkStudentResult reports what a bulk operation changed.
type BulkStudentResult struct {
	StudentsAffected int64  `json:"students_affected"`
	Action           string `json:"action"`
	Message          string `json:"message"`
}

// StudentListResult bundles the roster page with filter statistics.
type StudentListResult struct {
	Students []models.StudentDetail     `json:"students"`
	Filters  *models.StudentFilterStats `json:"filters"`
}

// ExportResult carries rendered export bytes plus response metadata.
type ExportResult struct {
	ContentType string
	Filename    string
	Data        []byte
}

// Bulk action tags for students.
const (
	StudentActionVerify         = "verify"
	StudentActionUnverify       = "unverify"
	StudentActionActivate       = "activate"
	StudentActionDeactivate     = "deactivate"
	StudentActionUpdateSemester = "update_semester"
)

// StudentService manages institute rosters: listing, verification, bulk
// updates, exports and dashboard projections.
type StudentService struct {
	repo      studentRepository
	stats     *StatsCache
	metrics   *MetricsService
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	maxExport int
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService creates a new student service.
func NewStudentService(repo studentRepository, stats *StatsCache, metrics *MetricsService, maxExport int, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{
		repo:      repo,
		stats:     stats,
		metrics:   metrics,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		maxExport: maxExport,
		validator: validate,
		logger:    logger,
	}
}

// List returns the filtered roster page plus filter statistics. Statistics
// are best-effort and degrade to zeroed defaults on failure.
func (s *StudentService) List(ctx context.Context, instituteID string, filter models.StudentFilter) (*StudentListResult, *models.Pagination, error) {
	students, total, err := s.repo.List(ctx, instituteID, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}

	result := &StudentListResult{
		Students: students,
		Filters:  s.filterStats(ctx, instituteID),
	}
	return result, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

func (s *StudentService) filterStats(ctx context.Context, instituteID string) *models.StudentFilterStats {
	if s.stats != nil {
		var cached models.StudentFilterStats
		if ok := s.stats.Get(ctx, studentStatsKey(instituteID), &cached); ok {
			return &cached
		}
	}

	stats, err := s.repo.Stats(ctx, instituteID)
	if err != nil {
		s.logger.Warn("student filter stats failed", zap.Error(err), zap.String("institute_id", instituteID))
		return &models.StudentFilterStats{
			AvailableCourses:   []models.CourseOption{},
			AvailableSemesters: []int{},
			AvailableYears:     []int{},
		}
	}

	if s.stats != nil {
		s.stats.Set(ctx, studentStatsKey(instituteID), stats)
	}
	return stats
}

func studentStatsKey(instituteID string) string {
	return "stats:students:" + instituteID
}

// Get returns one student within the institute scope.
func (s *StudentService) Get(ctx context.Context, instituteID, studentID string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, instituteID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	return student, nil
}

// SetVerification toggles the admin verification gate for one student.
func (s *StudentService) SetVerification(ctx context.Context, instituteID, studentID string, verified bool) error {
	if err := s.repo.SetVerification(ctx, instituteID, studentID, verified); err != nil {
		if errors.Is(err, repository.ErrNoRowsAffected) {
			return appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update verification")
	}
	s.invalidateStats(ctx, instituteID)
	s.logger.Info("student verification updated",
		zap.String("institute_id", instituteID),
		zap.String("student_id", studentID),
		zap.Bool("verified", verified))
	return nil
}

// BulkUpdate applies one action across many students. Unlike course bulk
// updates, the id set is strictly validated first: if any id does not belong
// to the institute the whole batch is rejected before writing.
func (s *StudentService) BulkUpdate(ctx context.Context, instituteID string, req BulkStudentRequest) (*BulkStudentResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "please provide valid student ids and an action")
	}

	owned, err := s.repo.CountByIDs(ctx, instituteID, req.StudentIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify student ownership")
	}
	if owned != len(req.StudentIDs) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "some students were not found in your institute")
	}

	var affected int64
	var message string

	switch req.Action {
	case StudentActionVerify:
		affected, err = s.repo.BulkSetVerification(ctx, instituteID, req.StudentIDs, true)
		message = "verified"
	case StudentActionUnverify:
		affected, err = s.repo.BulkSetVerification(ctx, instituteID, req.StudentIDs, false)
		message = "unverified"
	case StudentActionActivate:
		affected, err = s.repo.BulkSetAcademicStatus(ctx, instituteID, req.StudentIDs, models.AcademicStatusActive)
		message = "activated"
	case StudentActionDeactivate:
		affected, err = s.repo.BulkSetAcademicStatus(ctx, instituteID, req.StudentIDs, models.AcademicStatusInactive)
		message = "deactivated"
	case StudentActionUpdateSemester:
		semester, ok := intValue(req.Value)
		if !ok || semester < 1 || semester > 8 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "semester must be between 1 and 8")
		}
		affected, err = s.repo.BulkSetSemester(ctx, instituteID, req.StudentIDs, semester)
		message = fmt.Sprintf("moved to semester %d", semester)
	default:
		return nil, appErrors.Clone(appErrors.ErrInvalidAction,
			"invalid action, supported actions: verify, unverify, activate, deactivate, update_semester")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "bulk student update failed")
	}

	s.invalidateStats(ctx, instituteID)
	s.metrics.RecordBulkOperation("students", req.Action)
	s.logger.Info("bulk student update",
		zap.String("institute_id", instituteID),
		zap.String("action", req.Action),
		zap.Int64("affected", affected))
	return &BulkStudentResult{StudentsAffected: affected, Action: req.Action, Message: message}, nil
}

var studentExportHeaders = []string{
	"Roll Number", "Name", "Email", "Phone", "Course", "Semester",
	"Admission Year", "Academic Status", "Verification Status", "Registration Date",
}

// ExportRoster renders the filtered roster as CSV, PDF or JSON.
func (s *StudentService) ExportRoster(ctx context.Context, instituteID, instituteName, format string, filter models.StudentFilter) (*ExportResult, error) {
	students, err := s.repo.Export(ctx, instituteID, filter, s.maxExport)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to export students")
	}

	switch strings.ToLower(format) {
	case "csv", "":
		data, err := s.csv.Render(export.Dataset{Headers: studentExportHeaders, Rows: studentRows(students)})
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		s.metrics.RecordExport("csv")
		return &ExportResult{ContentType: "text/csv", Filename: "students.csv", Data: data}, nil

	case "pdf":
		subtitle := fmt.Sprintf("%d students", len(students))
		data, err := s.pdf.Render(export.Dataset{Headers: studentExportHeaders, Rows: studentRows(students)},
			instituteName+" Student Roster", subtitle)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		s.metrics.RecordExport("pdf")
		return &ExportResult{ContentType: "application/pdf", Filename: "students.pdf", Data: data}, nil

	case "json":
		data, err := json.Marshal(students)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render json")
		}
		s.metrics.RecordExport("json")
		return &ExportResult{ContentType: "application/json", Filename: "students.json", Data: data}, nil

	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format, use csv, pdf or json")
	}
}

func studentRows(students []models.StudentDetail) [][]string {
	rows := make([][]string, 0, len(students))
	for _, st := range students {
		courseName := ""
		if st.CourseName != nil {
			courseName = *st.CourseName
		}
		verified := "Pending"
		if st.IsVerified {
			verified = "Verified"
		}
		rows = append(rows, []string{
			st.RollNumber,
			st.Name,
			st.Email,
			st.Phone,
			courseName,
			strconv.Itoa(st.CurrentSemester),
			strconv.Itoa(st.AdmissionYear),
			string(st.AcademicStatus),
			verified,
			st.CreatedAt.Format("2006-01-02"),
		})
	}
	return rows
}

// Dashboard returns roster summary statistics for the admin dashboard.
func (s *StudentService) Dashboard(ctx context.Context, instituteID string) (*models.DashboardStats, error) {
	stats, err := s.repo.DashboardStats(ctx, instituteID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dashboard stats")
	}
	return stats, nil
}

func (s *StudentService) invalidateStats(ctx context.Context, instituteID string) {
	if s.stats != nil {
		s.stats.Delete(ctx, studentStatsKey(instituteID))
	}
}
