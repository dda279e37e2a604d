package models

import "time"

// AcademicStatus tracks a student's standing within the institute.
type AcademicStatus string

const (
	AcademicStatusActive    AcademicStatus = "Active"
	AcademicStatusInactive  AcademicStatus = "Inactive"
	AcademicStatusGraduated AcademicStatus = "Graduated"
	AcademicStatusDropped   AcademicStatus = "Dropped"
	AcademicStatusSuspended AcademicStatus = "Suspended"
)

// Student belongs to exactly one institute. (InstituteID, RollNumber) and
// (InstituteID, Email) are unique. CourseID is an explicit reference to the
// enrolled course.
type Student struct {
	ID              string         `db:"id" json:"id"`
	InstituteID     string         `db:"institute_id" json:"institute_id"`
	RollNumber      string         `db:"roll_number" json:"roll_number"`
	Name            string         `db:"name" json:"name"`
	Email           string         `db:"email" json:"email"`
	Phone           string         `db:"phone" json:"phone"`
	CourseID        *string        `db:"course_id" json:"course_id,omitempty"`
	CurrentSemester int            `db:"current_semester" json:"current_semester"`
	AdmissionYear   int            `db:"admission_year" json:"admission_year"`
	AcademicYear    string         `db:"academic_year" json:"academic_year"`
	AcademicStatus  AcademicStatus `db:"academic_status" json:"academic_status"`
	IsVerified      bool           `db:"is_verified" json:"is_verified"`
	PasswordHash    string         `db:"password_hash" json:"-"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// StudentDetail augments a student row with the joined course name.
type StudentDetail struct {
	Student
	CourseName *string `db:"course_name" json:"course_name,omitempty"`
}

// StudentFilter captures supported filters for listing students. Status takes
// verified/unverified/active/inactive as in the admin UI.
type StudentFilter struct {
	Search        string
	Status        string
	CourseID      string
	Semester      int
	AdmissionYear int
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}

// StudentStatusCounts groups roster totals for filter UIs.
type StudentStatusCounts struct {
	Total      int `db:"total" json:"total"`
	Verified   int `db:"verified" json:"verified"`
	Unverified int `db:"unverified" json:"unverified"`
	Active     int `db:"active" json:"active"`
	Inactive   int `db:"inactive" json:"inactive"`
}

// StudentFilterStats backs the student filter dropdowns.
type StudentFilterStats struct {
	AvailableCourses   []CourseOption      `json:"available_courses"`
	AvailableSemesters []int               `json:"available_semesters"`
	AvailableYears     []int               `json:"available_years"`
	StatusCounts       StudentStatusCounts `json:"status_counts"`
}

// CourseOption is a course reference for filter dropdowns.
type CourseOption struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// DashboardStats summarises an institute's roster.
type DashboardStats struct {
	TotalStudents       int           `json:"total_students"`
	VerifiedStudents    int           `json:"verified_students"`
	UnverifiedStudents  int           `json:"unverified_students"`
	RecentRegistrations int           `json:"recent_registrations"`
	VerificationRate    int           `json:"verification_rate"`
	TopCourses          []CourseCount `json:"top_courses"`
	LastUpdated         time.Time     `json:"last_updated"`
}

// CourseCount pairs a course with its enrolled-student count.
type CourseCount struct {
	CourseID   string `db:"course_id" json:"course_id"`
	CourseName string `db:"course_name" json:"course_name"`
	Count      int    `db:"count" json:"count"`
}
