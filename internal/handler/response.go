package handler

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"carpool/internal/middleware"
	"carpool/internal/service"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Field string `json:"field,omitempty"`
}

// respondError sends an error response with the appropriate HTTP status code.
// Unclassified errors are logged and hidden behind a generic message.
func respondError(c *gin.Context, err error) {
	code, kind := mapErrorToHTTPStatus(err)

	resp := ErrorResponse{Error: err.Error(), Kind: kind}
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		resp.Field = ve.Field
	}

	if code == http.StatusInternalServerError {
		_ = c.Error(err)
		log.Printf("[HTTP] %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		resp.Error = "internal server error"
	}

	c.JSON(code, resp)
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// badRequest reports a body or query that could not be bound.
func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Kind: "validation"})
}

// mapErrorToHTTPStatus maps service errors to an HTTP status code and error kind.
func mapErrorToHTTPStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "authentication"
	case errors.Is(err, service.ErrAuthorization):
		return http.StatusForbidden, "authorization"
	case errors.Is(err, service.ErrState):
		return http.StatusConflict, "state"
	case errors.Is(err, service.ErrCapacity):
		return http.StatusConflict, "capacity"
	case errors.Is(err, service.ErrEmailTaken):
		return http.StatusConflict, "conflict"
	case errors.Is(err, service.ErrRideBusy):
		return http.StatusServiceUnavailable, "busy"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// currentUser returns the authenticated caller's ID. Routes using it are always
// behind middleware.Authenticate.
func currentUser(c *gin.Context) string {
	identity, _ := middleware.CurrentIdentity(c)
	return identity.UserID
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
