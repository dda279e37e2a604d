package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campuskit/institute-api/internal/models"
	appErrors "github.com/campuskit/institute-api/pkg/errors"
)

type mockInstituteRepo struct {
	institutes map[string]models.Institute
}

func newMockInstituteRepo() *mockInstituteRepo {
	return &mockInstituteRepo{institutes: map[string]models.Institute{}}
}

func (m *mockInstituteRepo) FindByID(ctx context.Context, id string) (*models.Institute, error) {
	if inst, ok := m.institutes[id]; ok {
		return &inst, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockInstituteRepo) FindByCode(ctx context.Context, code string) (*models.Institute, error) {
	for _, inst := range m.institutes {
		if inst.Code == strings.ToUpper(code) {
			return &inst, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockInstituteRepo) FindByCodeAndAdminEmail(ctx context.Context, code, adminEmail string) (*models.Institute, error) {
	for _, inst := range m.institutes {
		if inst.Code == strings.ToUpper(code) && strings.EqualFold(inst.AdminEmail, adminEmail) {
			return &inst, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockInstituteRepo) ExistsByCodeOrEmail(ctx context.Context, code, email string) (bool, error) {
	for _, inst := range m.institutes {
		if inst.Code == strings.ToUpper(code) || strings.EqualFold(inst.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockInstituteRepo) Create(ctx context.Context, institute *models.Institute) error {
	if institute.ID == "" {
		institute.ID = "inst-generated"
	}
	m.institutes[institute.ID] = *institute
	return nil
}

type mockStudentAuthRepo struct {
	students map[string]models.Student
}

func newMockStudentAuthRepo() *mockStudentAuthRepo {
	return &mockStudentAuthRepo{students: map[string]models.Student{}}
}

func (m *mockStudentAuthRepo) FindByRollNumber(ctx context.Context, instituteID, rollNumber string) (*models.Student, error) {
	for _, s := range m.students {
		if s.InstituteID == instituteID && s.RollNumber == rollNumber {
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentAuthRepo) ExistsByRollOrEmail(ctx context.Context, instituteID, rollNumber, email string) (bool, error) {
	for _, s := range m.students {
		if s.InstituteID == instituteID && (s.RollNumber == rollNumber || strings.EqualFold(s.Email, email)) {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStudentAuthRepo) Create(ctx context.Context, student *models.Student) error {
	if student.ID == "" {
		student.ID = "stu-generated"
	}
	m.students[student.ID] = *student
	return nil
}

func testJWTConfig() JWTConfig {
	return JWTConfig{Secret: "test-secret", Issuer: "institute-api-test", Expiration: time.Hour}
}

func newAuthService(institutes *mockInstituteRepo, students *mockStudentAuthRepo) *AuthService {
	return NewAuthService(institutes, students, testJWTConfig(), validator.New(), zap.NewNop())
}

func validInstituteRegistration() RegisterInstituteRequest {
	return RegisterInstituteRequest{
		Name:          "Springfield Technical College",
		Code:          "stc01",
		Email:         "admin@stc.edu",
		Phone:         "+1-555-0100",
		InstituteType: "College",
		AdminName:     "Head Admin",
		AdminEmail:    "head@stc.edu",
		Password:      "supersecret1",
	}
}

func TestRegisterInstituteIssuesAdminSession(t *testing.T) {
	institutes := newMockInstituteRepo()
	svc := newAuthService(institutes, newMockStudentAuthRepo())

	session, err := svc.RegisterInstitute(context.Background(), validInstituteRegistration())
	require.NoError(t, err)

	assert.Equal(t, "STC01", session.Institute.Code)
	assert.Equal(t, models.InstituteStatusActive, session.Institute.Status)
	assert.NotEmpty(t, session.Token)

	claims, err := svc.ValidateAdminToken(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.Institute.ID, claims.InstituteID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestRegisterInstituteDuplicate(t *testing.T) {
	institutes := newMockInstituteRepo()
	svc := newAuthService(institutes, newMockStudentAuthRepo())

	_, err := svc.RegisterInstitute(context.Background(), validInstituteRegistration())
	require.NoError(t, err)

	_, err = svc.RegisterInstitute(context.Background(), validInstituteRegistration())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestLoginInstituteWrongPassword(t *testing.T) {
	institutes := newMockInstituteRepo()
	svc := newAuthService(institutes, newMockStudentAuthRepo())

	_, err := svc.RegisterInstitute(context.Background(), validInstituteRegistration())
	require.NoError(t, err)

	_, err = svc.LoginInstitute(context.Background(), LoginInstituteRequest{
		InstituteCode: "STC01",
		AdminEmail:    "head@stc.edu",
		Password:      "wrong-password",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginInstituteUsesAdminEmailNotContactEmail(t *testing.T) {
	institutes := newMockInstituteRepo()
	svc := newAuthService(institutes, newMockStudentAuthRepo())

	_, err := svc.RegisterInstitute(context.Background(), validInstituteRegistration())
	require.NoError(t, err)

	session, err := svc.LoginInstitute(context.Background(), LoginInstituteRequest{
		InstituteCode: "STC01",
		AdminEmail:    "head@stc.edu",
		Password:      "supersecret1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, session.Token)

	// The contact email never authenticates, only the admin email does.
	_, err = svc.LoginInstitute(context.Background(), LoginInstituteRequest{
		InstituteCode: "STC01",
		AdminEmail:    "admin@stc.edu",
		Password:      "supersecret1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginInstituteInactiveTenant(t *testing.T) {
	institutes := newMockInstituteRepo()
	hash, _ := bcrypt.GenerateFromPassword([]byte("supersecret1"), bcrypt.MinCost)
	institutes.institutes["inst-1"] = models.Institute{
		ID: "inst-1", Code: "STC01", Email: "admin@stc.edu", AdminEmail: "head@stc.edu",
		Status: models.InstituteStatusSuspended, PasswordHash: string(hash),
	}
	svc := newAuthService(institutes, newMockStudentAuthRepo())

	_, err := svc.LoginInstitute(context.Background(), LoginInstituteRequest{
		InstituteCode: "STC01",
		AdminEmail:    "head@stc.edu",
		Password:      "supersecret1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTenantInactive.Code, appErrors.FromError(err).Code)
}

func TestAdminTokenRejectedAfterTenantSuspension(t *testing.T) {
	institutes := newMockInstituteRepo()
	svc := newAuthService(institutes, newMockStudentAuthRepo())

	session, err := svc.RegisterInstitute(context.Background(), validInstituteRegistration())
	require.NoError(t, err)

	inst := institutes.institutes[session.Institute.ID]
	inst.Status = models.InstituteStatusSuspended
	institutes.institutes[inst.ID] = inst

	_, err = svc.ValidateAdminToken(context.Background(), session.Token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTenantInactive.Code, appErrors.FromError(err).Code)
}

func seedActiveInstitute(institutes *mockInstituteRepo) {
	institutes.institutes["inst-1"] = models.Institute{
		ID: "inst-1", Name: "Springfield", Code: "STC01", Email: "admin@stc.edu",
		InstituteType: models.InstituteTypeCollege, Status: models.InstituteStatusActive,
	}
}

func validStudentRegistration() RegisterStudentRequest {
	return RegisterStudentRequest{
		InstituteCode: "STC01",
		RollNumber:    "2025-001",
		Name:          "Jordan Lee",
		Email:         "jordan@example.edu",
		AdmissionYear: 2025,
		Password:      "studentpass1",
	}
}

func TestRegisterStudentStartsUnverified(t *testing.T) {
	institutes := newMockInstituteRepo()
	seedActiveInstitute(institutes)
	students := newMockStudentAuthRepo()
	svc := newAuthService(institutes, students)

	student, err := svc.RegisterStudent(context.Background(), validStudentRegistration())
	require.NoError(t, err)
	assert.False(t, student.IsVerified)
	assert.Equal(t, "inst-1", student.InstituteID)
	assert.Equal(t, 1, student.CurrentSemester)
}

func TestRegisterStudentUnknownInstitute(t *testing.T) {
	svc := newAuthService(newMockInstituteRepo(), newMockStudentAuthRepo())

	_, err := svc.RegisterStudent(context.Background(), validStudentRegistration())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestLoginStudentBlockedUntilVerified(t *testing.T) {
	institutes := newMockInstituteRepo()
	seedActiveInstitute(institutes)
	students := newMockStudentAuthRepo()
	svc := newAuthService(institutes, students)

	_, err := svc.RegisterStudent(context.Background(), validStudentRegistration())
	require.NoError(t, err)

	_, err = svc.LoginStudent(context.Background(), LoginStudentRequest{
		InstituteCode: "STC01",
		RollNumber:    "2025-001",
		Password:      "studentpass1",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnverified.Code, appErrors.FromError(err).Code)
}

func TestLoginStudentAfterVerification(t *testing.T) {
	institutes := newMockInstituteRepo()
	seedActiveInstitute(institutes)
	students := newMockStudentAuthRepo()
	svc := newAuthService(institutes, students)

	created, err := svc.RegisterStudent(context.Background(), validStudentRegistration())
	require.NoError(t, err)

	s := students.students[created.ID]
	s.IsVerified = true
	students.students[s.ID] = s

	session, err := svc.LoginStudent(context.Background(), LoginStudentRequest{
		InstituteCode: "STC01",
		RollNumber:    "2025-001",
		Password:      "studentpass1",
	})
	require.NoError(t, err)
	assert.Equal(t, "Springfield", session.InstituteName)
	assert.NotEmpty(t, session.Token)

	claims, err := svc.ValidateStudentToken(context.Background(), session.Token)
	require.NoError(t, err)
	assert.Equal(t, created.ID, claims.StudentID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestStudentTokenRejectedOnAdminRoutes(t *testing.T) {
	institutes := newMockInstituteRepo()
	seedActiveInstitute(institutes)
	students := newMockStudentAuthRepo()
	svc := newAuthService(institutes, students)

	created, err := svc.RegisterStudent(context.Background(), validStudentRegistration())
	require.NoError(t, err)

	s := students.students[created.ID]
	s.IsVerified = true
	students.students[s.ID] = s

	session, err := svc.LoginStudent(context.Background(), LoginStudentRequest{
		InstituteCode: "STC01",
		RollNumber:    "2025-001",
		Password:      "studentpass1",
	})
	require.NoError(t, err)

	_, err = svc.ValidateAdminToken(context.Background(), session.Token)
	require.Error(t, err)
}

func TestValidateAdminTokenGarbage(t *testing.T) {
	svc := newAuthService(newMockInstituteRepo(), newMockStudentAuthRepo())

	_, err := svc.ValidateAdminToken(context.Background(), "not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthenticated.Code, appErrors.FromError(err).Code)
}
