package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/spherelink/backend/internal/apperr"
)

// Body is the standard API response envelope.
type Body struct {
	Success bool              `json:"success"`
	Data    interface{}       `json:"data,omitempty"`
	Error   string            `json:"error,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// BadRequest sends 400 with error message.
func BadRequest(c *gin.Context, err string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err})
}

// Invalid sends 400 with field-level messages.
func Invalid(c *gin.Context, err string, fields map[string]string) {
	c.JSON(http.StatusBadRequest, Body{Success: false, Error: err, Fields: fields})
}

// Unauthorized sends 401.
func Unauthorized(c *gin.Context, err string) {
	c.JSON(http.StatusUnauthorized, Body{Success: false, Error: err})
}

// Forbidden sends 403.
func Forbidden(c *gin.Context, err string) {
	c.JSON(http.StatusForbidden, Body{Success: false, Error: err})
}

// NotFound sends 404.
func NotFound(c *gin.Context, err string) {
	c.JSON(http.StatusNotFound, Body{Success: false, Error: err})
}

// Conflict sends 409.
func Conflict(c *gin.Context, err string) {
	c.JSON(http.StatusConflict, Body{Success: false, Error: err})
}

// ServiceUnavailable sends 503.
func ServiceUnavailable(c *gin.Context, err string) {
	c.JSON(http.StatusServiceUnavailable, Body{Success: false, Error: err})
}

// Internal sends 500.
func Internal(c *gin.Context, err string) {
	c.JSON(http.StatusInternalServerError, Body{Success: false, Error: err})
}

// Error maps a service error to its HTTP status. Unknown errors become a 500
// carrying fallback, so storage details never reach the client. It returns
// the status written.
func Error(c *gin.Context, err error, fallback string) int {
	var ve *apperr.ValidationError
	switch {
	case errors.As(err, &ve):
		Invalid(c, apperr.ErrValidation.Error(), ve.Fields)
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrValidation):
		BadRequest(c, err.Error())
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrInvalidCredentials):
		Unauthorized(c, err.Error())
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrPermission), errors.Is(err, apperr.ErrNoActiveOrg):
		Forbidden(c, rootMessage(err))
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		NotFound(c, rootMessage(err))
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrCapacity),
		errors.Is(err, apperr.ErrEventExpired),
		errors.Is(err, apperr.ErrInvitationExpired),
		errors.Is(err, apperr.ErrInvitationProcessed),
		errors.Is(err, apperr.ErrAlreadyRegistered),
		errors.Is(err, apperr.ErrNotRegistered),
		errors.Is(err, apperr.ErrConflict):
		Conflict(c, rootMessage(err))
		return http.StatusConflict
	}
	Internal(c, fallback)
	return http.StatusInternalServerError
}

var known = []error{
	apperr.ErrPermission, apperr.ErrNoActiveOrg, apperr.ErrNotFound, apperr.ErrCapacity,
	apperr.ErrEventExpired, apperr.ErrInvitationExpired, apperr.ErrInvitationProcessed,
	apperr.ErrAlreadyRegistered, apperr.ErrNotRegistered, apperr.ErrConflict,
}

// rootMessage returns the sentinel's message rather than the wrapped chain.
func rootMessage(err error) string {
	for _, k := range known {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	return err.Error()
}
