package models

import "time"

// InstituteStatus gates tenant access: only Active institutes may log in or
// serve admin operations.
type InstituteStatus string

const (
	InstituteStatusActive    InstituteStatus = "Active"
	InstituteStatusInactive  InstituteStatus = "Inactive"
	InstituteStatusSuspended InstituteStatus = "Suspended"
)

// InstituteType enumerates supported organisation kinds.
type InstituteType string

const (
	InstituteTypeSchool     InstituteType = "School"
	InstituteTypeCollege    InstituteType = "College"
	InstituteTypeUniversity InstituteType = "University"
	InstituteTypeCoaching   InstituteType = "Coaching Institute"
	InstituteTypeTechnical  InstituteType = "Technical Institute"
)

// Institute is the tenant root owning a private set of students and courses.
type Institute struct {
	ID            string          `db:"id" json:"id"`
	Name          string          `db:"name" json:"name"`
	Code          string          `db:"code" json:"code"`
	Email         string          `db:"email" json:"email"`
	Phone         string          `db:"phone" json:"phone"`
	InstituteType InstituteType   `db:"institute_type" json:"institute_type"`
	Status        InstituteStatus `db:"status" json:"status"`
	AdminName     string          `db:"admin_name" json:"admin_name"`
	AdminEmail    string          `db:"admin_email" json:"admin_email"`
	AdminPhone    string          `db:"admin_phone" json:"admin_phone"`
	PasswordHash  string          `db:"password_hash" json:"-"`
	MaxSemesters  int             `db:"max_semesters" json:"max_semesters"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}
