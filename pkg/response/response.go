package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/institute-api/internal/models"
	appErrors "github.com/campuskit/institute-api/pkg/errors"
)

// Envelope is the common response contract: success flag, human-readable
// message and the payload, plus optional pagination and error detail.
type Envelope struct {
	Success    bool                   `json:"success"`
	Message    string                 `json:"message,omitempty"`
	Data       interface{}            `json:"data,omitempty"`
	Errors     map[string]string      `json:"errors,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Pagination *models.Pagination     `json:"pagination,omitempty"`
}

// JSON sends a success response with an optional message.
func JSON(c *gin.Context, status int, message string, data interface{}) {
	c.Header("Cache-Control", "no-store")
	c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

// Paginated sends a success response including pagination metadata.
func Paginated(c *gin.Context, data interface{}, pagination *models.Pagination) {
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, Envelope{Success: true, Data: data, Pagination: pagination})
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, message string, data interface{}) {
	JSON(c, http.StatusCreated, message, data)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.JSON(appErr.Status, Envelope{
		Success: false,
		Message: appErr.Message,
		Errors:  appErr.Fields,
		Details: appErr.Details,
	})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
