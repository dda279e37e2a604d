package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campuskit/institute-api/internal/models"
)

const studentColumns = `s.id, s.institute_id, s.roll_number, s.name, s.email, s.phone, s.course_id,
	s.current_semester, s.admission_year, s.academic_year, s.academic_status, s.is_verified,
	s.password_hash, s.created_at, s.updated_at`

// StudentRepository handles persistence for institute student rosters.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository creates a new repository instance.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

func buildStudentFilter(instituteID string, filter models.StudentFilter) (string, []interface{}) {
	base := "FROM students s WHERE s.institute_id = $1"
	args := []interface{}{instituteID}

	if filter.Search != "" {
		base += fmt.Sprintf(
			" AND (s.name ILIKE $%d OR s.roll_number ILIKE $%d OR s.email ILIKE $%d OR s.phone ILIKE $%d)",
			len(args)+1, len(args)+1, len(args)+1, len(args)+1)
		args = append(args, "%"+filter.Search+"%")
	}

	switch filter.Status {
	case "verified":
		base += " AND s.is_verified = TRUE"
	case "unverified":
		base += " AND s.is_verified = FALSE"
	case "active":
		base += " AND s.academic_status = 'Active'"
	case "inactive":
		base += " AND s.academic_status = 'Inactive'"
	}

	if filter.CourseID != "" {
		base += fmt.Sprintf(" AND s.course_id = $%d", len(args)+1)
		args = append(args, filter.CourseID)
	}
	if filter.Semester > 0 {
		base += fmt.Sprintf(" AND s.current_semester = $%d", len(args)+1)
		args = append(args, filter.Semester)
	}
	if filter.AdmissionYear > 0 {
		base += fmt.Sprintf(" AND s.admission_year = $%d", len(args)+1)
		args = append(args, filter.AdmissionYear)
	}

	return base, args
}

// List returns students matching filters with pagination totals. Rows join
// the enrolled course name for display.
func (r *StudentRepository) List(ctx context.Context, instituteID string, filter models.StudentFilter) ([]models.StudentDetail, int, error) {
	base, args := buildStudentFilter(instituteID, filter)

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"name":             "s.name",
		"roll_number":      "s.roll_number",
		"email":            "s.email",
		"current_semester": "s.current_semester",
		"admission_year":   "s.admission_year",
		"academic_status":  "s.academic_status",
		"created_at":       "s.created_at",
		"updated_at":       "s.updated_at",
	}
	sortColumn, ok := allowedSorts[sortBy]
	if !ok {
		sortColumn = "s.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(
		"SELECT %s, c.name AS course_name FROM students s LEFT JOIN courses c ON c.id = s.course_id WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d",
		studentColumns,
		strings.TrimPrefix(base, "FROM students s WHERE "),
		sortColumn, order, size, offset)

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}

	return students, total, nil
}

// Export returns the full filtered roster ordered by roll number, capped at
// maxRows when positive.
func (r *StudentRepository) Export(ctx context.Context, instituteID string, filter models.StudentFilter, maxRows int) ([]models.StudentDetail, error) {
	base, args := buildStudentFilter(instituteID, filter)

	query := fmt.Sprintf(
		"SELECT %s, c.name AS course_name FROM students s LEFT JOIN courses c ON c.id = s.course_id WHERE %s ORDER BY s.roll_number",
		studentColumns,
		strings.TrimPrefix(base, "FROM students s WHERE "))
	if maxRows > 0 {
		query += fmt.Sprintf(" LIMIT %d", maxRows)
	}

	var students []models.StudentDetail
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, fmt.Errorf("export students: %w", err)
	}
	return students, nil
}

// FindByID returns a student within the institute scope.
func (r *StudentRepository) FindByID(ctx context.Context, instituteID, id string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students s WHERE s.institute_id = $1 AND s.id = $2", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, instituteID, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByRollNumber returns a student by roll number within the institute.
func (r *StudentRepository) FindByRollNumber(ctx context.Context, instituteID, rollNumber string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students s WHERE s.institute_id = $1 AND s.roll_number = $2", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, instituteID, rollNumber); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByRollOrEmail checks the per-institute uniqueness of roll number and
// email in one round trip.
func (r *StudentRepository) ExistsByRollOrEmail(ctx context.Context, instituteID, rollNumber, email string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM students
		WHERE institute_id = $1 AND (roll_number = $2 OR LOWER(email) = LOWER($3)))`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, instituteID, rollNumber, email); err != nil {
		return false, fmt.Errorf("check student uniqueness: %w", err)
	}
	return exists, nil
}

// Create persists a new student.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now

	const query = `INSERT INTO students (id, institute_id, roll_number, name, email, phone, course_id,
		current_semester, admission_year, academic_year, academic_status, is_verified, password_hash, created_at, updated_at)
		VALUES (:id, :institute_id, :roll_number, :name, :email, :phone, :course_id,
		:current_semester, :admission_year, :academic_year, :academic_status, :is_verified, :password_hash, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// SetVerification flips the verification gate for a student.
func (r *StudentRepository) SetVerification(ctx context.Context, instituteID, id string, verified bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE students SET is_verified = $3, updated_at = now() WHERE institute_id = $1 AND id = $2`,
		instituteID, id, verified)
	if err != nil {
		return fmt.Errorf("set student verification: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set student verification rows: %w", err)
	}
	if affected == 0 {
		return ErrNoRowsAffected
	}
	return nil
}

// CountByIDs returns how many of ids exist within the institute. Bulk
// operations use this for the strict ownership pre-count.
func (r *StudentRepository) CountByIDs(ctx context.Context, instituteID string, ids []string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM students WHERE institute_id = $1 AND id = ANY($2)`,
		instituteID, pq.Array(ids)); err != nil {
		return 0, fmt.Errorf("count students by ids: %w", err)
	}
	return count, nil
}

// BulkSetVerification updates is_verified for the given ids.
func (r *StudentRepository) BulkSetVerification(ctx context.Context, instituteID string, ids []string, verified bool) (int64, error) {
	return r.bulkExec(ctx,
		`UPDATE students SET is_verified = $3, updated_at = now() WHERE institute_id = $1 AND id = ANY($2)`,
		instituteID, ids, verified)
}

// BulkSetAcademicStatus updates academic_status for the given ids.
func (r *StudentRepository) BulkSetAcademicStatus(ctx context.Context, instituteID string, ids []string, status models.AcademicStatus) (int64, error) {
	return r.bulkExec(ctx,
		`UPDATE students SET academic_status = $3, updated_at = now() WHERE institute_id = $1 AND id = ANY($2)`,
		instituteID, ids, string(status))
}

// BulkSetSemester updates current_semester for the given ids.
func (r *StudentRepository) BulkSetSemester(ctx context.Context, instituteID string, ids []string, semester int) (int64, error) {
	return r.bulkExec(ctx,
		`UPDATE students SET current_semester = $3, updated_at = now() WHERE institute_id = $1 AND id = ANY($2)`,
		instituteID, ids, semester)
}

func (r *StudentRepository) bulkExec(ctx context.Context, query, instituteID string, ids []string, value interface{}) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, instituteID, pq.Array(ids), value)
	if err != nil {
		return 0, fmt.Errorf("bulk update students: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bulk update students rows: %w", err)
	}
	return affected, nil
}

// Stats gathers distinct filter values and status counts for the roster.
func (r *StudentRepository) Stats(ctx context.Context, instituteID string) (*models.StudentFilterStats, error) {
	stats := &models.StudentFilterStats{
		AvailableCourses:   []models.CourseOption{},
		AvailableSemesters: []int{},
		AvailableYears:     []int{},
	}

	if err := r.db.SelectContext(ctx, &stats.AvailableCourses,
		`SELECT DISTINCT c.id, c.name FROM students s
		JOIN courses c ON c.id = s.course_id
		WHERE s.institute_id = $1 ORDER BY c.name`, instituteID); err != nil {
		return nil, fmt.Errorf("distinct student courses: %w", err)
	}
	if err := r.db.SelectContext(ctx, &stats.AvailableSemesters,
		`SELECT DISTINCT current_semester FROM students WHERE institute_id = $1 ORDER BY current_semester`,
		instituteID); err != nil {
		return nil, fmt.Errorf("distinct semesters: %w", err)
	}
	if err := r.db.SelectContext(ctx, &stats.AvailableYears,
		`SELECT DISTINCT admission_year FROM students WHERE institute_id = $1 ORDER BY admission_year DESC`,
		instituteID); err != nil {
		return nil, fmt.Errorf("distinct admission years: %w", err)
	}

	const countQuery = `SELECT COUNT(*) AS total,
		COUNT(*) FILTER (WHERE is_verified) AS verified,
		COUNT(*) FILTER (WHERE NOT is_verified) AS unverified,
		COUNT(*) FILTER (WHERE academic_status = 'Active') AS active,
		COUNT(*) FILTER (WHERE academic_status = 'Inactive') AS inactive
		FROM students WHERE institute_id = $1`
	if err := r.db.GetContext(ctx, &stats.StatusCounts, countQuery, instituteID); err != nil {
		return nil, fmt.Errorf("student status counts: %w", err)
	}

	return stats, nil
}

// DashboardStats summarises the roster for the admin dashboard.
func (r *StudentRepository) DashboardStats(ctx context.Context, instituteID string) (*models.DashboardStats, error) {
	const countQuery = `SELECT COUNT(*) AS total,
		COUNT(*) FILTER (WHERE is_verified) AS verified,
		COUNT(*) FILTER (WHERE NOT is_verified) AS unverified,
		COUNT(*) FILTER (WHERE created_at >= now() - INTERVAL '7 days') AS recent
		FROM students WHERE institute_id = $1`
	var counts struct {
		Total      int `db:"total"`
		Verified   int `db:"verified"`
		Unverified int `db:"unverified"`
		Recent     int `db:"recent"`
	}
	if err := r.db.GetContext(ctx, &counts, countQuery, instituteID); err != nil {
		return nil, fmt.Errorf("dashboard counts: %w", err)
	}

	var top []models.CourseCount
	const topQuery = `SELECT c.id AS course_id, c.name AS course_name, COUNT(*) AS count
		FROM students s JOIN courses c ON c.id = s.course_id
		WHERE s.institute_id = $1
		GROUP BY c.id, c.name ORDER BY count DESC LIMIT 5`
	if err := r.db.SelectContext(ctx, &top, topQuery, instituteID); err != nil {
		return nil, fmt.Errorf("dashboard top courses: %w", err)
	}

	stats := &models.DashboardStats{
		TotalStudents:       counts.Total,
		VerifiedStudents:    counts.Verified,
		UnverifiedStudents:  counts.Unverified,
		RecentRegistrations: counts.Recent,
		TopCourses:          top,
		LastUpdated:         time.Now().UTC(),
	}
	if counts.Total > 0 {
		stats.VerificationRate = counts.Verified * 100 / counts.Total
	}
	return stats, nil
}
