package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuskit/institute-api/internal/models"
	appErrors "github.com/campuskit/institute-api/pkg/errors"
)

type gradeRepository interface {
	Upsert(ctx context.Context, grade *models.Grade) error
	ListByStudent(ctx context.Context, instituteID, studentID string) ([]models.GradeDetail, error)
}

type gradeStudentFinder interface {
	FindByID(ctx context.Context, instituteID, id string) (*models.Student, error)
}

type gradeCourseFinder interface {
	FindByID(ctx context.Context, instituteID, id string) (*models.Course, error)
}

// GradeEntry is one row of an upload batch.
type GradeEntry struct {
	StudentID string  `json:"student_id" validate:"required"`
	Marks     float64 `json:"marks" validate:"min=0,max=100"`
	Comments  string  `json:"comments"`
}

// UploadGradesRequest upserts grades for many students of one course.
type UploadGradesRequest struct {
	CourseID  string       `json:"course_id" validate:"required"`
	GradeType string       `json:"grade_type" validate:"required,oneof=Assignment Quiz Midterm Final Project"`
	Grades    []GradeEntry `json:"grades" validate:"required,min=1,dive"`
}

// UploadGradesResult summarises an upload batch.
type UploadGradesResult struct {
	Uploaded int      `json:"uploaded"`
	Skipped  []string `json:"skipped,omitempty"`
}

// GradeService records assessment marks. Uploads are idempotent per
// (student, course, grade type): repeats overwrite the previous mark.
type GradeService struct {
	repo      gradeRepository
	students  gradeStudentFinder
	courses   gradeCourseFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService creates a new grade service.
func NewGradeService(repo gradeRepository, students gradeStudentFinder, courses gradeCourseFinder, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{repo: repo, students: students, courses: courses, validator: validate, logger: logger}
}

// Upload upserts a batch of grades. Student ids outside the institute are
// skipped and reported back rather than failing the batch; a grading pass
// should land for every student it can.
func (s *GradeService) Upload(ctx context.Context, instituteID string, req UploadGradesRequest) (*UploadGradesResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grades payload")
	}

	if _, err := s.courses.FindByID(ctx, instituteID, req.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	result := &UploadGradesResult{}
	for _, entry := range req.Grades {
		if _, err := s.students.FindByID(ctx, instituteID, entry.StudentID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				result.Skipped = append(result.Skipped, entry.StudentID)
				continue
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}

		grade := &models.Grade{
			InstituteID: instituteID,
			StudentID:   entry.StudentID,
			CourseID:    req.CourseID,
			GradeType:   models.GradeType(req.GradeType),
			Marks:       entry.Marks,
			Comments:    entry.Comments,
		}
		if err := s.repo.Upsert(ctx, grade); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grade")
		}
		result.Uploaded++
	}

	s.logger.Info("grades uploaded",
		zap.String("institute_id", instituteID),
		zap.String("course_id", req.CourseID),
		zap.String("grade_type", req.GradeType),
		zap.Int("uploaded", result.Uploaded),
		zap.Int("skipped", len(result.Skipped)))
	return result, nil
}

// ListForStudent returns a student's grades with course identity attached.
func (s *GradeService) ListForStudent(ctx context.Context, instituteID, studentID string) ([]models.GradeDetail, error) {
	grades, err := s.repo.ListByStudent(ctx, instituteID, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, nil
}
