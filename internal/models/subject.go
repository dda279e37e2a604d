package models

import "time"

// Subject belongs to one course within one institute. (CourseID, Code) is
// unique. Prerequisites are weak links to sibling subjects by id.
type Subject struct {
	ID            string    `db:"id" json:"id"`
	InstituteID   string    `db:"institute_id" json:"institute_id"`
	CourseID      string    `db:"course_id" json:"course_id"`
	Code          string    `db:"code" json:"subject_code"`
	Name          string    `db:"name" json:"subject_name"`
	Semester      int       `db:"semester" json:"semester"`
	Credits       int       `db:"credits" json:"credits"`
	Prerequisites []string  `json:"prerequisites,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}
