package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/health-registry-api/internal/models"
	appErrors "github.com/noah-isme/health-registry-api/pkg/errors"
)

// Envelope represents the common response contract.
type Envelope struct {
	Data       interface{}        `json:"data,omitempty"`
	Error      *appErrors.Error   `json:"error,omitempty"`
	Pagination *models.Pagination `json:"pagination,omitempty"`
}

// ActionResult is the flat payload returned by workflow actions such as enroll.
type ActionResult struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}

// JSON sends a success response with optional pagination metadata.
func JSON(c *gin.Context, status int, data interface{}, pagination *models.Pagination) {
	noStore(c)
	c.JSON(status, Envelope{Data: data, Pagination: pagination})
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data, nil)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	noStore(c)
	c.JSON(appErr.Status, Envelope{Error: appErr})
}

// Message writes a flat {"message": ...} body.
func Message(c *gin.Context, status int, message string) {
	noStore(c)
	c.JSON(status, ActionResult{Message: message})
}

// ActionError writes a flat {"error": ...} body using the status of the typed error.
func ActionError(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	message := appErr.Message
	if appErr.Code == appErrors.ErrInternal.Code {
		message = appErrors.ErrInternal.Message
	}
	noStore(c)
	c.JSON(appErr.Status, ActionResult{Error: message})
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
	c.Writer.WriteHeaderNow()
}
