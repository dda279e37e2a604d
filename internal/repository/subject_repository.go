package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campuskit/institute-api/internal/models"
)

const subjectColumns = `id, institute_id, course_id, code, name, semester, credits, created_at, updated_at`

// SubjectRepository handles persistence for course subjects.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new repository instance.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// ListByCourse returns a course's subjects ordered by semester then code,
// with prerequisite links attached.
func (r *SubjectRepository) ListByCourse(ctx context.Context, instituteID, courseID string) ([]models.Subject, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM subjects WHERE institute_id = $1 AND course_id = $2 ORDER BY semester, code",
		subjectColumns)
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, instituteID, courseID); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}

	if len(subjects) == 0 {
		return subjects, nil
	}

	ids := make([]string, len(subjects))
	index := make(map[string]int, len(subjects))
	for i, s := range subjects {
		ids[i] = s.ID
		index[s.ID] = i
	}

	type link struct {
		SubjectID      string `db:"subject_id"`
		PrerequisiteID string `db:"prerequisite_id"`
	}
	var links []link
	if err := r.db.SelectContext(ctx, &links,
		`SELECT subject_id, prerequisite_id FROM subject_prerequisites WHERE subject_id = ANY($1)`,
		pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list subject prerequisites: %w", err)
	}
	for _, l := range links {
		if i, ok := index[l.SubjectID]; ok {
			subjects[i].Prerequisites = append(subjects[i].Prerequisites, l.PrerequisiteID)
		}
	}

	return subjects, nil
}

// FindByID returns a subject within the institute scope.
func (r *SubjectRepository) FindByID(ctx context.Context, instituteID, id string) (*models.Subject, error) {
	query := fmt.Sprintf("SELECT %s FROM subjects WHERE institute_id = $1 AND id = $2", subjectColumns)
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, instituteID, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// ExistsByCode checks subject code uniqueness within a course.
func (r *SubjectRepository) ExistsByCode(ctx context.Context, courseID, code, excludeID string) (bool, error) {
	query := `SELECT 1 FROM subjects WHERE course_id = $1 AND UPPER(code) = UPPER($2)`
	args := []interface{}{courseID, code}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}

	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check subject code: %w", err)
	}
	return true, nil
}

// Create persists a new subject and its prerequisite links in one
// transaction, so a failed link write never leaves a half-created subject.
func (r *SubjectRepository) Create(ctx context.Context, subject *models.Subject) error {
	if subject.ID == "" {
		subject.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if subject.CreatedAt.IsZero() {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create subject: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `INSERT INTO subjects (id, institute_id, course_id, code, name, semester, credits, created_at, updated_at)
		VALUES (:id, :institute_id, :course_id, :code, :name, :semester, :credits, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("create subject: %w", err)
	}
	if err := replacePrerequisites(ctx, tx, subject.ID, subject.Prerequisites); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create subject: %w", err)
	}
	return nil
}

// Update modifies a subject and replaces its prerequisite links in one
// transaction.
func (r *SubjectRepository) Update(ctx context.Context, subject *models.Subject) error {
	subject.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update subject: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const query = `UPDATE subjects SET code = :code, name = :name, semester = :semester,
		credits = :credits, updated_at = :updated_at
		WHERE id = :id AND institute_id = :institute_id`
	if _, err := tx.NamedExecContext(ctx, query, subject); err != nil {
		return fmt.Errorf("update subject: %w", err)
	}
	if err := replacePrerequisites(ctx, tx, subject.ID, subject.Prerequisites); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit update subject: %w", err)
	}
	return nil
}

// Delete removes a subject; prerequisite links cascade.
func (r *SubjectRepository) Delete(ctx context.Context, instituteID, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM subjects WHERE institute_id = $1 AND id = $2`, instituteID, id)
	if err != nil {
		return fmt.Errorf("delete subject: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete subject rows: %w", err)
	}
	if affected == 0 {
		return ErrNoRowsAffected
	}
	return nil
}

func replacePrerequisites(ctx context.Context, tx *sqlx.Tx, subjectID string, prerequisites []string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM subject_prerequisites WHERE subject_id = $1`, subjectID); err != nil {
		return fmt.Errorf("clear subject prerequisites: %w", err)
	}
	for _, prereq := range prerequisites {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO subject_prerequisites (subject_id, prerequisite_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			subjectID, prereq); err != nil {
			return fmt.Errorf("link subject prerequisite: %w", err)
		}
	}
	return nil
}
