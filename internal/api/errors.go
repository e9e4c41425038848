package api

import (
	"errors"
	"net/http"

	"food-marketplace/internal/service"
	"food-marketplace/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIResponse is the body of every non-listing response
type APIResponse struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	var stockErr *service.InsufficientStockError
	switch {
	case errors.Is(err, service.ErrNotAuthenticated),
		errors.Is(err, service.ErrNotAuthorized),
		errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUsernameTaken),
		errors.Is(err, service.ErrDuplicateRequest):
		return http.StatusConflict
	case errors.As(err, &stockErr),
		errors.Is(err, service.ErrAlreadyPlaced),
		errors.Is(err, service.ErrInvalidRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its mapped status. Internal failures are
// logged and hidden behind a generic message.
func respondError(c *gin.Context, prefix string, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		util.GetLogger().Error(prefix,
			zap.String("path", c.FullPath()),
			zap.Error(err))
		msg = "internal error"
	}
	if prefix != "" {
		msg = prefix + ": " + msg
	}
	c.AbortWithStatusJSON(status, APIResponse{Error: msg})
}
