package models

import "time"

// GradeType enumerates the assessment kinds a grade can be recorded against.
type GradeType string

const (
	GradeTypeAssignment GradeType = "Assignment"
	GradeTypeQuiz       GradeType = "Quiz"
	GradeTypeMidterm    GradeType = "Midterm"
	GradeTypeFinal      GradeType = "Final"
	GradeTypeProject    GradeType = "Project"
)

// Grade is upserted per (student, course, grade type).
type Grade struct {
	ID          string    `db:"id" json:"id"`
	InstituteID string    `db:"institute_id" json:"institute_id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	CourseID    string    `db:"course_id" json:"course_id"`
	GradeType   GradeType `db:"grade_type" json:"grade_type"`
	Marks       float64   `db:"marks" json:"marks"`
	Comments    string    `db:"comments" json:"comments"`
	UploadedAt  time.Time `db:"uploaded_at" json:"uploaded_at"`
}

// GradeDetail joins course identity for student-facing grade views.
type GradeDetail struct {
	Grade
	CourseName string `db:"course_name" json:"course_name"`
	CourseCode string `db:"course_code" json:"course_code"`
}
