package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/institute-api/internal/service"
	appErrors "github.com/campuskit/institute-api/pkg/errors"
	"github.com/campuskit/institute-api/pkg/response"
)

// AuthHandler exposes registration and login for both token audiences.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// RegisterInstitute godoc
// @Summary Register a new institute
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body service.RegisterInstituteRequest true "Institute registration"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/institute/register [post]
func (h *AuthHandler) RegisterInstitute(c *gin.Context) {
	var req service.RegisterInstituteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	session, err := h.auth.RegisterInstitute(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "institute registered successfully", session)
}

// LoginInstitute godoc
// @Summary Institute admin login
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body service.LoginInstituteRequest true "Admin credentials"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/institute/login [post]
func (h *AuthHandler) LoginInstitute(c *gin.Context) {
	var req service.LoginInstituteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	session, err := h.auth.LoginInstitute(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "login successful", session)
}

// RegisterStudent godoc
// @Summary Student self-registration
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body service.RegisterStudentRequest true "Student registration"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /auth/student/register [post]
func (h *AuthHandler) RegisterStudent(c *gin.Context) {
	var req service.RegisterStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	student, err := h.auth.RegisterStudent(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "registration submitted, awaiting institute verification", student)
}

// LoginStudent godoc
// @Summary Student login
// @Tags Auth
// @Accept json
// @Produce json
// @Param payload body service.LoginStudentRequest true "Student credentials"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /auth/student/login [post]
func (h *AuthHandler) LoginStudent(c *gin.Context) {
	var req service.LoginStudentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid request body"))
		return
	}

	session, err := h.auth.LoginStudent(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, "login successful", session)
}
