package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuskit/institute-api/internal/models"
)

// GradeRepository handles persistence for grade records.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new repository instance.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// Upsert writes a grade keyed on (student, course, grade type).
func (r *GradeRepository) Upsert(ctx context.Context, grade *models.Grade) error {
	if grade.ID == "" {
		grade.ID = uuid.NewString()
	}
	grade.UploadedAt = time.Now().UTC()

	const query = `INSERT INTO grades (id, institute_id, student_id, course_id, grade_type, marks, comments, uploaded_at)
		VALUES (:id, :institute_id, :student_id, :course_id, :grade_type, :marks, :comments, :uploaded_at)
		ON CONFLICT (student_id, course_id, grade_type)
		DO UPDATE SET marks = EXCLUDED.marks, comments = EXCLUDED.comments, uploaded_at = EXCLUDED.uploaded_at`
	if _, err := r.db.NamedExecContext(ctx, query, grade); err != nil {
		return fmt.Errorf("upsert grade: %w", err)
	}
	return nil
}

// ListByStudent returns a student's grades with course identity joined.
func (r *GradeRepository) ListByStudent(ctx context.Context, instituteID, studentID string) ([]models.GradeDetail, error) {
	const query = `SELECT g.id, g.institute_id, g.student_id, g.course_id, g.grade_type, g.marks,
		g.comments, g.uploaded_at, c.name AS course_name, c.code AS course_code
		FROM grades g JOIN courses c ON c.id = g.course_id
		WHERE g.institute_id = $1 AND g.student_id = $2
		ORDER BY g.uploaded_at DESC`
	var grades []models.GradeDetail
	if err := r.db.SelectContext(ctx, &grades, query, instituteID, studentID); err != nil {
		return nil, fmt.Errorf("list student grades: %w", err)
	}
	return grades, nil
}
