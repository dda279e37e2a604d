package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuskit/institute-api/internal/models"
	"github.com/campuskit/institute-api/internal/repository"
	appErrors "github.com/campuskit/institute-api/pkg/errors"
)

type subjectRepository interface {
	ListByCourse(ctx context.Context, instituteID, courseID string) ([]models.Subject, error)
	FindByID(ctx context.Context, instituteID, id string) (*models.Subject, error)
	ExistsByCode(ctx context.Context, courseID, code, excludeID string) (bool, error)
	Create(ctx context.Context, subject *models.Subject) error
	Update(ctx context.Context, subject *models.Subject) error
	Delete(ctx context.Context, instituteID, id string) error
}

type subjectCourseFinder interface {
	FindByID(ctx context.Context, instituteID, id string) (*models.Course, error)
}

// CreateSubjectRequest adds a subject to a course.
type CreateSubjectRequest struct {
	Code          string   `json:"subject_code" validate:"required"`
	Name          string   `json:"subject_name" validate:"required"`
	Semester      int      `json:"semester" validate:"required,min=1,max=8"`
	Credits       int      `json:"credits" validate:"required,min=1,max=8"`
	Prerequisites []string `json:"prerequisites" validate:"omitempty,dive,required"`
}

// UpdateSubjectRequest modifies subject fields. Nil fields stay unchanged;
// a non-nil Prerequisites replaces the whole set.
type UpdateSubjectRequest struct {
	Code          *string   `json:"subject_code" validate:"omitempty,min=1"`
	Name          *string   `json:"subject_name" validate:"omitempty,min=1"`
	Semester      *int      `json:"semester" validate:"omitempty,min=1,max=8"`
	Credits       *int      `json:"credits" validate:"omitempty,min=1,max=8"`
	Prerequisites *[]string `json:"prerequisites"`
}

// SubjectService manages course curricula. Subject codes are unique per
// course, not per institute.
type SubjectService struct {
	repo      subjectRepository
	courses   subjectCourseFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSubjectService creates a new subject service.
func NewSubjectService(repo subjectRepository, courses subjectCourseFinder, validate *validator.Validate, logger *zap.Logger) *SubjectService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubjectService{repo: repo, courses: courses, validator: validate, logger: logger}
}

// List returns a course's subjects with their prerequisites.
func (s *SubjectService) List(ctx context.Context, instituteID, courseID string) ([]models.Subject, error) {
	if _, err := s.courses.FindByID(ctx, instituteID, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	subjects, err := s.repo.ListByCourse(ctx, instituteID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subjects")
	}
	return subjects, nil
}

// Create adds a subject after checking the per-course code uniqueness and
// that every prerequisite exists in the same course.
func (s *SubjectService) Create(ctx context.Context, instituteID, courseID string, req CreateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	course, err := s.courses.FindByID(ctx, instituteID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	if req.Semester > course.TotalSemesters {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("semester %d exceeds the course's %d semesters", req.Semester, course.TotalSemesters))
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	exists, err := s.repo.ExistsByCode(ctx, courseID, code, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject code")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "subject code already exists in this course")
	}

	if err := s.checkPrerequisites(ctx, instituteID, courseID, req.Prerequisites, ""); err != nil {
		return nil, err
	}

	subject := &models.Subject{
		InstituteID:   instituteID,
		CourseID:      course.ID,
		Code:          code,
		Name:          strings.TrimSpace(req.Name),
		Semester:      req.Semester,
		Credits:       req.Credits,
		Prerequisites: req.Prerequisites,
	}
	if err := s.repo.Create(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create subject")
	}
	return subject, nil
}

// Update applies a partial subject update.
func (s *SubjectService) Update(ctx context.Context, instituteID, subjectID string, req UpdateSubjectRequest) (*models.Subject, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid subject payload")
	}

	subject, err := s.repo.FindByID(ctx, instituteID, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject")
	}

	if req.Code != nil {
		code := strings.ToUpper(strings.TrimSpace(*req.Code))
		exists, err := s.repo.ExistsByCode(ctx, subject.CourseID, code, subjectID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check subject code")
		}
		if exists {
			return nil, appErrors.Clone(appErrors.ErrConflict, "subject code already exists in this course")
		}
		subject.Code = code
	}
	if req.Name != nil {
		subject.Name = strings.TrimSpace(*req.Name)
	}
	if req.Semester != nil {
		course, err := s.courses.FindByID(ctx, instituteID, subject.CourseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
		if *req.Semester > course.TotalSemesters {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("semester %d exceeds the course's %d semesters", *req.Semester, course.TotalSemesters))
		}
		subject.Semester = *req.Semester
	}
	if req.Credits != nil {
		subject.Credits = *req.Credits
	}
	if req.Prerequisites != nil {
		if err := s.checkPrerequisites(ctx, instituteID, subject.CourseID, *req.Prerequisites, subjectID); err != nil {
			return nil, err
		}
		subject.Prerequisites = *req.Prerequisites
	}

	if err := s.repo.Update(ctx, subject); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update subject")
	}
	return subject, nil
}

// checkPrerequisites verifies every id refers to a different subject within
// the same course.
func (s *SubjectService) checkPrerequisites(ctx context.Context, instituteID, courseID string, prerequisites []string, selfID string) error {
	for _, prereqID := range prerequisites {
		if prereqID == selfID {
			return appErrors.Clone(appErrors.ErrValidation, "a subject cannot be its own prerequisite")
		}
		prereq, err := s.repo.FindByID(ctx, instituteID, prereqID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrValidation, "prerequisite subject not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check prerequisites")
		}
		if prereq.CourseID != courseID {
			return appErrors.Clone(appErrors.ErrValidation, "prerequisites must belong to the same course")
		}
	}
	return nil
}

// Delete removes a subject.
func (s *SubjectService) Delete(ctx context.Context, instituteID, subjectID string) error {
	if err := s.repo.Delete(ctx, instituteID, subjectID); err != nil {
		if errors.Is(err, repository.ErrNoRowsAffected) {
			return appErrors.Clone(appErrors.ErrNotFound, "subject not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete subject")
	}
	return nil
}
