package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campuskit/institute-api/internal/models"
	appErrors "github.com/campuskit/institute-api/pkg/errors"
)

type instituteRepository interface {
	FindByID(ctx context.Context, id string) (*models.Institute, error)
	FindByCode(ctx context.Context, code string) (*models.Institute, error)
	FindByCodeAndAdminEmail(ctx context.Context, code, adminEmail string) (*models.Institute, error)
	ExistsByCodeOrEmail(ctx context.Context, code, email string) (bool, error)
	Create(ctx context.Context, institute *models.Institute) error
}

type studentAuthRepository interface {
	FindByRollNumber(ctx context.Context, instituteID, rollNumber string) (*models.Student, error)
	ExistsByRollOrEmail(ctx context.Context, instituteID, rollNumber, email string) (bool, error)
	Create(ctx context.Context, student *models.Student) error
}

// RegisterInstituteRequest onboards a new tenant.
type RegisterInstituteRequest struct {
	Name          string `json:"institute_name" validate:"required,min=3"`
	Code          string `json:"institute_code" validate:"required,alphanum,min=3,max=10"`
	Email         string `json:"email" validate:"required,email"`
	Phone         string `json:"phone" validate:"required"`
	InstituteType string `json:"institute_type" validate:"required,oneof=School College University 'Coaching Institute' 'Technical Institute'"`
	AdminName     string `json:"admin_name" validate:"required"`
	AdminEmail    string `json:"admin_email" validate:"required,email"`
	AdminPhone    string `json:"admin_phone"`
	Password      string `json:"password" validate:"required,min=8"`
}

// LoginInstituteRequest authenticates an institute admin by institute code
// and the admin account email, not the institute contact email.
type LoginInstituteRequest struct {
	InstituteCode string `json:"institute_code" validate:"required"`
	AdminEmail    string `json:"admin_email" validate:"required,email"`
	Password      string `json:"password" validate:"required"`
}

// RegisterStudentRequest self-registers a student under an institute code.
type RegisterStudentRequest struct {
	InstituteCode   string `json:"institute_code" validate:"required"`
	RollNumber      string `json:"roll_number" validate:"required"`
	Name            string `json:"name" validate:"required,min=2"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone"`
	CourseID        string `json:"course_id"`
	CurrentSemester int    `json:"current_semester" validate:"omitempty,min=1,max=8"`
	AdmissionYear   int    `json:"admission_year" validate:"required,min=1990"`
	AcademicYear    string `json:"academic_year"`
	Password        string `json:"password" validate:"required,min=8"`
}

// LoginStudentRequest authenticates a student by institute code and roll.
type LoginStudentRequest struct {
	InstituteCode string `json:"institute_code" validate:"required"`
	RollNumber    string `json:"roll_number" validate:"required"`
	Password      string `json:"password" validate:"required"`
}

// JWTConfig carries token signing settings.
type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

// / AuthService issues and validates sessions for the two token audiences:
// institute admins and students.
type AuthService struct {
	institutes instituteRepository
	students   studentAuthRepository
	jwt        JWTConfig
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(institutes instituteRepository, students studentAuthRepository, jwtCfg JWTConfig, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{institutes: institutes, students: students, jwt: jwtCfg, validator: validate, logger: logger}
}

// RegisterInstitute onboards a tenant and returns a ready admin session.
func (s *AuthService) RegisterInstitute(ctx context.Context, req RegisterInstituteRequest) (*models.InstituteSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	exists, err := s.institutes.ExistsByCodeOrEmail(ctx, code, req.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check institute uniqueness")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an institute with this code or email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	institute := &models.Institute{
		Name:          strings.TrimSpace(req.Name),
		Code:          code,
		Email:         strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:         req.Phone,
		InstituteType: models.InstituteType(req.InstituteType),
		Status:        models.InstituteStatusActive,
		AdminName:     req.AdminName,
		AdminEmail:    strings.ToLower(strings.TrimSpace(req.AdminEmail)),
		AdminPhone:    req.AdminPhone,
		PasswordHash:  string(hash),
		MaxSemesters:  8,
	}
	if err := s.institutes.Create(ctx, institute); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create institute")
	}

	session, err := s.adminSession(institute)
	if err != nil {
		return nil, err
	}
	s.logger.Info("institute registered", zap.String("institute_id", institute.ID), zap.String("code", institute.Code))
	return session, nil
}

// LoginInstitute authenticates an admin. Only Active institutes may log in.
func (s *AuthService) LoginInstitute(ctx context.Context, req LoginInstituteRequest) (*models.InstituteSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	institute, err := s.institutes.FindByCodeAndAdminEmail(ctx,
		strings.TrimSpace(req.InstituteCode), strings.TrimSpace(req.AdminEmail))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institute")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(institute.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}
	if institute.Status != models.InstituteStatusActive {
		return nil, appErrors.Clone(appErrors.ErrTenantInactive, "your institute account is not active, contact support")
	}

	return s.adminSession(institute)
}

func (s *AuthService) adminSession(institute *models.Institute) (*models.InstituteSession, error) {
	expiresAt := time.Now().Add(s.jwt.Expiration)
	claims := models.AdminClaims{
		InstituteID:   institute.ID,
		AdminID:       institute.ID,
		InstituteName: institute.Name,
		InstituteCode: institute.Code,
		Role:          models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.jwt.Issuer,
			Subject:   institute.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwt.Secret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}
	return &models.InstituteSession{Institute: institute, Token: token, ExpiresAt: expiresAt}, nil
}

// RegisterStudent self-registers a student under an active institute. The
// account stays unverified until an admin approves it.
func (s *AuthService) RegisterStudent(ctx context.Context, req RegisterStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}

	institute, err := s.institutes.FindByCode(ctx, req.InstituteCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "institute not found, check the institute code")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institute")
	}
	if institute.Status != models.InstituteStatusActive {
		return nil, appErrors.Clone(appErrors.ErrTenantInactive, "this institute is not accepting registrations")
	}

	rollNumber := strings.TrimSpace(req.RollNumber)
	exists, err := s.students.ExistsByRollOrEmail(ctx, institute.ID, rollNumber, req.Email)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check student uniqueness")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a student with this roll number or email already exists in the institute")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	semester := req.CurrentSemester
	if semester == 0 {
		semester = 1
	}
	var courseID *string
	if req.CourseID != "" {
		courseID = &req.CourseID
	}

	student := &models.Student{
		InstituteID:     institute.ID,
		RollNumber:      rollNumber,
		Name:            strings.TrimSpace(req.Name),
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:           req.Phone,
		CourseID:        courseID,
		CurrentSemester: semester,
		AdmissionYear:   req.AdmissionYear,
		AcademicYear:    strings.TrimSpace(req.AcademicYear),
		AcademicStatus:  models.AcademicStatusActive,
		IsVerified:      false,
		PasswordHash:    string(hash),
	}
	if err := s.students.Create(ctx, student); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}

	s.logger.Info("student registered",
		zap.String("institute_id", institute.ID),
		zap.String("student_id", student.ID),
		zap.String("roll_number", student.RollNumber))
	return student, nil
}

// LoginStudent authenticates a student. Unverified accounts are rejected
// until an institute admin approves them.
func (s *AuthService) LoginStudent(ctx context.Context, req LoginStudentRequest) (*models.StudentSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}

	institute, err := s.institutes.FindByCode(ctx, req.InstituteCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institute")
	}

	student, err := s.students.FindByRollNumber(ctx, institute.ID, strings.TrimSpace(req.RollNumber))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(student.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidCredentials, "")
	}
	if !student.IsVerified {
		return nil, appErrors.Clone(appErrors.ErrUnverified, "your account is pending verification by your institute")
	}

	expiresAt := time.Now().Add(s.jwt.Expiration)
	claims := models.StudentClaims{
		StudentID:   student.ID,
		InstituteID: student.InstituteID,
		RollNumber:  student.RollNumber,
		Role:        models.RoleStudent,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.jwt.Issuer,
			Subject:   student.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.jwt.Secret))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}

	return &models.StudentSession{
		Student:       student,
		InstituteName: institute.Name,
		InstituteCode: institute.Code,
		InstituteType: institute.InstituteType,
		Token:         token,
		ExpiresAt:     expiresAt,
	}, nil
}

// ValidateAdminToken parses and verifies an admin bearer token, then checks
// that the institute is still Active. A deactivated tenant invalidates all
// outstanding sessions immediately.
func (s *AuthService) ValidateAdminToken(ctx context.Context, tokenString string) (*models.AdminClaims, error) {
	claims := &models.AdminClaims{}
	if err := s.parseToken(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrUnauthenticated, "admin token required")
	}

	institute, err := s.institutes.FindByID(ctx, claims.InstituteID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthenticated, "institute no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institute")
	}
	if institute.Status != models.InstituteStatusActive {
		return nil, appErrors.Clone(appErrors.ErrTenantInactive, "your institute account is not active")
	}
	return claims, nil
}

// ValidateStudentToken parses and verifies a student bearer token.
func (s *AuthService) ValidateStudentToken(ctx context.Context, tokenString string) (*models.StudentClaims, error) {
	claims := &models.StudentClaims{}
	if err := s.parseToken(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrUnauthenticated, "student token required")
	}
	return claims, nil
}

func (s *AuthService) parseToken(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.jwt.Secret), nil
	}, jwt.WithIssuer(s.jwt.Issuer))
	if err != nil || !token.Valid {
		return appErrors.Clone(appErrors.ErrUnauthenticated, "invalid or expired token")
	}
	return nil
}
