package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campuskit/institute-api/internal/models"
)

const courseColumns = `id, institute_id, name, code, description, department, degree_type,
	duration, total_semesters, assigned_department, assigned_semester, semester_credits,
	status, academic_year, max_students, current_enrollment, created_at, updated_at`

// CourseRepository handles persistence for the tenant-scoped course catalog.
// Every query carries the institute id filter.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository creates a new repository instance.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses matching filters with a total count for pagination.
// Each row carries its subject count for the list view.
func (r *CourseRepository) List(ctx context.Context, instituteID string, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	base := "FROM courses WHERE institute_id = $1"
	args := []interface{}{instituteID}

	if filter.Search != "" {
		base += fmt.Sprintf(
			" AND (name ILIKE $%d OR code ILIKE $%d OR description ILIKE $%d OR department ILIKE $%d OR assigned_department ILIKE $%d)",
			len(args)+1, len(args)+1, len(args)+1, len(args)+1, len(args)+1)
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Department != "" {
		base += fmt.Sprintf(" AND department ILIKE $%d", len(args)+1)
		args = append(args, "%"+filter.Department+"%")
	}
	if filter.DegreeType != "" {
		base += fmt.Sprintf(" AND degree_type = $%d", len(args)+1)
		args = append(args, filter.DegreeType)
	}
	if filter.Status != "" {
		base += fmt.Sprintf(" AND status = $%d", len(args)+1)
		args = append(args, filter.Status)
	}
	if filter.AcademicYear != "" {
		base += fmt.Sprintf(" AND academic_year = $%d", len(args)+1)
		args = append(args, filter.AcademicYear)
	}
	if filter.AssignedDepartment != "" {
		base += fmt.Sprintf(" AND assigned_department ILIKE $%d", len(args)+1)
		args = append(args, "%"+filter.AssignedDepartment+"%")
	}
	if filter.AssignedSemester > 0 {
		base += fmt.Sprintf(" AND assigned_semester = $%d", len(args)+1)
		args = append(args, filter.AssignedSemester)
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{
		"name":                true,
		"code":                true,
		"department":          true,
		"assigned_department": true,
		"assigned_semester":   true,
		"academic_year":       true,
		"status":              true,
		"created_at":          true,
		"updated_at":          true,
	}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
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
		"SELECT %s, (SELECT COUNT(*) FROM subjects WHERE subjects.course_id = courses.id) AS subject_count %s ORDER BY %s %s LIMIT %d OFFSET %d",
		courseColumns, base, sortBy, order, size, offset)
	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := "SELECT COUNT(*) " + base
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}

	return courses, total, nil
}

// FindByID returns a course within the institute scope.
func (r *CourseRepository) FindByID(ctx context.Context, instituteID, id string) (*models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses WHERE institute_id = $1 AND id = $2", courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, instituteID, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindByCode returns the course holding the given code within the institute,
// case-insensitively, excluding excludeID when provided. sql.ErrNoRows means
// the code is free.
func (r *CourseRepository) FindByCode(ctx context.Context, instituteID, code, excludeID string) (*models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses WHERE institute_id = $1 AND UPPER(code) = UPPER($2)", courseColumns)
	args := []interface{}{instituteID, code}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}

	var course models.Course
	if err := r.db.GetContext(ctx, &course, query+" LIMIT 1", args...); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindByAssignment returns the course occupying the (department, semester)
// teaching slot within the institute, excluding excludeID when provided.
func (r *CourseRepository) FindByAssignment(ctx context.Context, instituteID, department string, semester int, excludeID string) (*models.Course, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM courses WHERE institute_id = $1 AND assigned_department = $2 AND assigned_semester = $3",
		courseColumns)
	args := []interface{}{instituteID, department, semester}
	if excludeID != "" {
		query += " AND id <> $4"
		args = append(args, excludeID)
	}

	var course models.Course
	if err := r.db.GetContext(ctx, &course, query+" LIMIT 1", args...); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindAssignmentOutsideSet returns a course occupying the slot whose id is not
// in excludeIDs. Bulk reassignment pre-flight uses this to detect collisions
// with courses outside the batch.
func (r *CourseRepository) FindAssignmentOutsideSet(ctx context.Context, instituteID, department string, semester int, excludeIDs []string) (*models.Course, error) {
	query := fmt.Sprintf(
		"SELECT %s FROM courses WHERE institute_id = $1 AND assigned_department = $2 AND assigned_semester = $3 AND NOT (id = ANY($4)) LIMIT 1",
		courseColumns)
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, instituteID, department, semester, pq.Array(excludeIDs)); err != nil {
		return nil, err
	}
	return &course, nil
}

// ListByIDs returns the courses from ids that exist within the institute.
func (r *CourseRepository) ListByIDs(ctx context.Context, instituteID string, ids []string) ([]models.Course, error) {
	query := fmt.Sprintf("SELECT %s FROM courses WHERE institute_id = $1 AND id = ANY($2)", courseColumns)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, instituteID, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list courses by ids: %w", err)
	}
	return courses, nil
}

// Create persists a new course. The composite unique indexes on
// (institute_id, code) and (institute_id, assigned_department,
// assigned_semester) backstop the service-level conflict checks.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now

	const query = `INSERT INTO courses (id, institute_id, name, code, description, department, degree_type,
		duration, total_semesters, assigned_department, assigned_semester, semester_credits,
		status, academic_year, max_students, current_enrollment, created_at, updated_at)
		VALUES (:id, :institute_id, :name, :code, :description, :department, :degree_type,
		:duration, :total_semesters, :assigned_department, :assigned_semester, :semester_credits,
		:status, :academic_year, :max_students, :current_enrollment, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update persists course field changes within the institute scope.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET name = :name, code = :code, description = :description,
		department = :department, degree_type = :degree_type, duration = :duration,
		total_semesters = :total_semesters, assigned_department = :assigned_department,
		assigned_semester = :assigned_semester, semester_credits = :semester_credits,
		status = :status, academic_year = :academic_year, max_students = :max_students,
		updated_at = :updated_at
		WHERE id = :id AND institute_id = :institute_id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// Delete removes a course record within the institute scope.
func (r *CourseRepository) Delete(ctx context.Context, instituteID, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE institute_id = $1 AND id = $2`, instituteID, id); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}

// BulkSetStatus updates status for the given ids, institute scoped. Unknown
// ids fall out of the filter and do not count.
func (r *CourseRepository) BulkSetStatus(ctx context.Context, instituteID string, ids []string, status models.CourseStatus) (int64, error) {
	return r.bulkExec(ctx,
		`UPDATE courses SET status = $3, updated_at = now() WHERE institute_id = $1 AND id = ANY($2)`,
		instituteID, ids, string(status))
}

// BulkSetAcademicYear updates academic_year for the given ids.
func (r *CourseRepository) BulkSetAcademicYear(ctx context.Context, instituteID string, ids []string, year string) (int64, error) {
	return r.bulkExec(ctx,
		`UPDATE courses SET academic_year = $3, updated_at = now() WHERE institute_id = $1 AND id = ANY($2)`,
		instituteID, ids, year)
}

// BulkSetSemesterCredits updates semester_credits for the given ids.
func (r *CourseRepository) BulkSetSemesterCredits(ctx context.Context, instituteID string, ids []string, credits int) (int64, error) {
	return r.bulkExec(ctx,
		`UPDATE courses SET semester_credits = $3, updated_at = now() WHERE institute_id = $1 AND id = ANY($2)`,
		instituteID, ids, credits)
}

// BulkSetAssignedDepartment moves the given ids into a new teaching
// department. Callers must pre-flight assignment conflicts first.
func (r *CourseRepository) BulkSetAssignedDepartment(ctx context.Context, instituteID string, ids []string, department string) (int64, error) {
	return r.bulkExec(ctx,
		`UPDATE courses SET assigned_department = $3, updated_at = now() WHERE institute_id = $1 AND id = ANY($2)`,
		instituteID, ids, department)
}

func (r *CourseRepository) bulkExec(ctx context.Context, query, instituteID string, ids []string, value interface{}) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, instituteID, pq.Array(ids), value)
	if err != nil {
		return 0, fmt.Errorf("bulk update courses: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bulk update courses rows: %w", err)
	}
	return affected, nil
}

// Stats gathers the distinct filter values and status counts for the catalog.
func (r *CourseRepository) Stats(ctx context.Context, instituteID string) (*models.CourseFilterStats, error) {
	stats := &models.CourseFilterStats{
		AvailableDepartments:         []string{},
		AvailableDegreeTypes:         []string{},
		AvailableAcademicYears:       []string{},
		AvailableAssignedDepartments: []string{},
	}

	if err := r.db.SelectContext(ctx, &stats.AvailableDepartments,
		`SELECT DISTINCT department FROM courses WHERE institute_id = $1 AND department <> '' ORDER BY department`,
		instituteID); err != nil {
		return nil, fmt.Errorf("distinct departments: %w", err)
	}
	if err := r.db.SelectContext(ctx, &stats.AvailableDegreeTypes,
		`SELECT DISTINCT degree_type FROM courses WHERE institute_id = $1 ORDER BY degree_type`,
		instituteID); err != nil {
		return nil, fmt.Errorf("distinct degree types: %w", err)
	}
	if err := r.db.SelectContext(ctx, &stats.AvailableAcademicYears,
		`SELECT DISTINCT academic_year FROM courses WHERE institute_id = $1 AND academic_year <> '' ORDER BY academic_year DESC`,
		instituteID); err != nil {
		return nil, fmt.Errorf("distinct academic years: %w", err)
	}
	if err := r.db.SelectContext(ctx, &stats.AvailableAssignedDepartments,
		`SELECT DISTINCT assigned_department FROM courses WHERE institute_id = $1 AND assigned_department <> '' ORDER BY assigned_department`,
		instituteID); err != nil {
		return nil, fmt.Errorf("distinct assigned departments: %w", err)
	}

	const countQuery = `SELECT COUNT(*) AS total,
		COUNT(*) FILTER (WHERE status = 'Active') AS active,
		COUNT(*) FILTER (WHERE status = 'Inactive') AS inactive,
		COUNT(*) FILTER (WHERE status = 'Draft') AS draft
		FROM courses WHERE institute_id = $1`
	if err := r.db.GetContext(ctx, &stats.StatusCounts, countQuery, instituteID); err != nil {
		return nil, fmt.Errorf("course status counts: %w", err)
	}

	return stats, nil
}

// SemesterAssignments returns every occupied teaching slot ordered by
// department then semester.
func (r *CourseRepository) SemesterAssignments(ctx context.Context, instituteID string) ([]models.SemesterAssignment, error) {
	type row struct {
		models.AssignmentCourse
		AssignedDepartment string `db:"assigned_department"`
		AssignedSemester   int    `db:"assigned_semester"`
	}

	const query = `SELECT id, name, code, semester_credits, assigned_department, assigned_semester
		FROM courses WHERE institute_id = $1
		ORDER BY assigned_department, assigned_semester, code`
	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, instituteID); err != nil {
		return nil, fmt.Errorf("list semester assignments: %w", err)
	}

	var assignments []models.SemesterAssignment
	for _, rec := range rows {
		n := len(assignments)
		if n == 0 || assignments[n-1].Department != rec.AssignedDepartment || assignments[n-1].Semester != rec.AssignedSemester {
			assignments = append(assignments, models.SemesterAssignment{
				Department: rec.AssignedDepartment,
				Semester:   rec.AssignedSemester,
			})
			n++
		}
		assignments[n-1].Courses = append(assignments[n-1].Courses, rec.AssignmentCourse)
		assignments[n-1].TotalCredits += rec.Credits
	}

	return assignments, nil
}

// CountSubjects returns how many subjects reference the course.
func (r *CourseRepository) CountSubjects(ctx context.Context, courseID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM subjects WHERE course_id = $1`, courseID); err != nil {
		return 0, fmt.Errorf("count subjects: %w", err)
	}
	return count, nil
}

// CountStudents returns total and active student references for the course.
// Active counts only the course's current academic year; earlier years count
// as historical. Both block deletion; the caller distinguishes them for
// messaging.
func (r *CourseRepository) CountStudents(ctx context.Context, instituteID, courseID, academicYear string) (total int, active int, err error) {
	const query = `SELECT COUNT(*) AS total,
		COUNT(*) FILTER (WHERE academic_status = 'Active' AND academic_year = $3) AS active
		FROM students WHERE institute_id = $1 AND course_id = $2`
	var counts struct {
		Total  int `db:"total"`
		Active int `db:"active"`
	}
	if err := r.db.GetContext(ctx, &counts, query, instituteID, courseID, academicYear); err != nil {
		return 0, 0, fmt.Errorf("count course students: %w", err)
	}
	return counts.Total, counts.Active, nil
}

// SyncEnrollments recomputes current_enrollment for every course in the
// institute from active student counts. Returns the number of rows touched.
func (r *CourseRepository) SyncEnrollments(ctx context.Context, instituteID string) (int64, error) {
	const query = `UPDATE courses SET current_enrollment = sub.cnt, updated_at = now()
		FROM (SELECT c.id, COUNT(s.id) AS cnt
			FROM courses c
			LEFT JOIN students s ON s.course_id = c.id AND s.academic_status = 'Active'
			WHERE c.institute_id = $1
			GROUP BY c.id) AS sub
		WHERE courses.id = sub.id AND courses.current_enrollment <> sub.cnt`
	result, err := r.db.ExecContext(ctx, query, instituteID)
	if err != nil {
		return 0, fmt.Errorf("sync enrollments: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sync enrollments rows: %w", err)
	}
	return affected, nil
}

// IsUniqueViolation reports whether err is the Postgres unique-constraint
// violation raised by the backstop indexes, optionally matching a specific
// constraint name.
func IsUniqueViolation(err error, constraint string) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	if pqErr.Code != "23505" {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}
