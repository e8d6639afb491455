package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/river-voucher/internal/domain/entity"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

// statusFor maps the error taxonomy onto HTTP status codes
func statusFor(err error) int {
	var te *entity.TransportError
	switch {
	case errors.As(err, &te):
		return http.StatusBadGateway
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, entity.ErrAlreadyRedeemed), errors.Is(err, entity.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, entity.ErrOwnershipMismatch),
		errors.Is(err, entity.ErrNoActiveVessel),
		errors.Is(err, entity.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, entity.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, entity.ErrInvalidInput):
		return http.StatusBadRequest
	case entity.Kind(err) == "canceled":
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func errorResponse(err error) ErrorResponse {
	return ErrorResponse{
		Success:   false,
		Error:     entity.UserMessage(err),
		Code:      entity.Kind(err),
		Retryable: entity.IsRetryable(err),
	}
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), errorResponse(err))
}
