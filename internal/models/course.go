package models

import (
	"fmt"
	"time"
)

// CourseStatus tracks the course lifecycle: Draft -> Active <-> Inactive.
type CourseStatus string

const (
	CourseStatusActive   CourseStatus = "Active"
	CourseStatusInactive CourseStatus = "Inactive"
	CourseStatusDraft    CourseStatus = "Draft"
)

// DegreeType enumerates supported degree programmes.
type DegreeType string

const (
	DegreeUndergraduate DegreeType = "Undergraduate"
	DegreePostgraduate  DegreeType = "Postgraduate"
	DegreeDiploma       DegreeType = "Diploma"
	DegreeCertificate   DegreeType = "Certificate"
)

// Course belongs to exactly one institute. The (AssignedDepartment,
// AssignedSemester) pair is the teaching-slot assignment and is unique per
// institute; Code is unique per institute case-insensitively (stored upper).
type Course struct {
	ID                 string       `db:"id" json:"id"`
	InstituteID        string       `db:"institute_id" json:"institute_id"`
	Name               string       `db:"name" json:"course_name"`
	Code               string       `db:"code" json:"course_code"`
	Description        string       `db:"description" json:"description"`
	Department         string       `db:"department" json:"department"`
	DegreeType         DegreeType   `db:"degree_type" json:"degree_type"`
	Duration           int          `db:"duration" json:"duration"`
	TotalSemesters     int          `db:"total_semesters" json:"total_semesters"`
	AssignedDepartment string       `db:"assigned_department" json:"assigned_department"`
	AssignedSemester   int          `db:"assigned_semester" json:"assigned_semester"`
	SemesterCredits    int          `db:"semester_credits" json:"semester_credits"`
	Status             CourseStatus `db:"status" json:"status"`
	AcademicYear       string       `db:"academic_year" json:"academic_year"`
	MaxStudents        int          `db:"max_students" json:"max_students"`
	CurrentEnrollment  int          `db:"current_enrollment" json:"current_enrollment"`
	CreatedAt          time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time    `db:"updated_at" json:"updated_at"`
}

// AssignmentDisplay renders the teaching-slot label shown in clients.
func (c Course) AssignmentDisplay() string {
	return fmt.Sprintf("%s - Semester %d", c.AssignedDepartment, c.AssignedSemester)
}

// EnrollmentStatus derives the seat availability label. MaxStudents 0 means
// unlimited.
func (c Course) EnrollmentStatus() string {
	if c.MaxStudents == 0 {
		return "Open"
	}
	if c.CurrentEnrollment >= c.MaxStudents {
		return "Full"
	}
	return "Available"
}

// CourseDetail augments a course row with list-view derived fields.
type CourseDetail struct {
	Course
	SubjectCount int `db:"subject_count" json:"subject_count"`
}

// CourseFilter captures supported filters for listing courses.
type CourseFilter struct {
	Search             string
	Department         string
	DegreeType         string
	Status             string
	AcademicYear       string
	AssignedDepartment string
	AssignedSemester   int
	Page               int
	PageSize           int
	SortBy             string
	SortOrder          string
}

// CourseStatusCounts groups catalog totals by status for filter UIs.
type CourseStatusCounts struct {
	Total    int `db:"total" json:"total"`
	Active   int `db:"active" json:"active"`
	Inactive int `db:"inactive" json:"inactive"`
	Draft    int `db:"draft" json:"draft"`
}

// CourseFilterStats backs the filter dropdowns; best-effort, zeroed on error.
type CourseFilterStats struct {
	AvailableDepartments         []string           `json:"available_departments"`
	AvailableDegreeTypes         []string           `json:"available_degree_types"`
	AvailableAcademicYears       []string           `json:"available_academic_years"`
	AvailableAssignedDepartments []string           `json:"available_assigned_departments"`
	StatusCounts                 CourseStatusCounts `json:"status_counts"`
}

// SemesterAssignment is one occupied (department, semester) teaching slot.
type SemesterAssignment struct {
	Department   string             `json:"department"`
	Semester     int                `json:"semester"`
	Courses      []AssignmentCourse `json:"courses"`
	TotalCredits int                `json:"total_credits"`
}

// AssignmentCourse is the course summary inside an assignment slot.
type AssignmentCourse struct {
	CourseID string `db:"id" json:"course_id"`
	Name     string `db:"name" json:"course_name"`
	Code     string `db:"code" json:"course_code"`
	Credits  int    `db:"semester_credits" json:"credits"`
}

// DeletionBlockers itemises the references preventing a course delete.
type DeletionBlockers struct {
	Subjects       int `json:"subjects"`
	ActiveStudents int `json:"active_students"`
	TotalStudents  int `json:"total_students"`
}

// Blocking reports whether any reference blocks hard deletion. Historical
// enrollment records block as well; archival is the suggested alternative.
func (b DeletionBlockers) Blocking() bool {
	return b.Subjects > 0 || b.ActiveStudents > 0 || b.TotalStudents > 0
}
