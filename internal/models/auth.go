package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role discriminates token audiences.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleStudent Role = "student"
)

// AdminClaims is the JWT payload for institute admin sessions. InstituteID is
// the tenant scope every downstream operation requires.
type AdminClaims struct {
	InstituteID   string `json:"institute_id"`
	AdminID       string `json:"admin_id"`
	InstituteName string `json:"institute_name"`
	InstituteCode string `json:"institute_code"`
	Role          Role   `json:"role"`
	jwt.RegisteredClaims
}

// StudentClaims is the JWT payload for student sessions.
type StudentClaims struct {
	StudentID   string `json:"student_id"`
	InstituteID string `json:"institute_id"`
	RollNumber  string `json:"roll_number"`
	Role        Role   `json:"role"`
	jwt.RegisteredClaims
}

// InstituteSession is issued on institute register/login.
type InstituteSession struct {
	Institute *Institute `json:"institute"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
}

// StudentSession is issued on student register/login.
type StudentSession struct {
	Student       *Student      `json:"student"`
	InstituteName string        `json:"institute_name"`
	InstituteCode string        `json:"institute_code"`
	InstituteType InstituteType `json:"institute_type"`
	Token         string        `json:"token"`
	ExpiresAt     time.Time     `json:"expires_at"`
}
