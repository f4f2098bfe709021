package api

import (
	"errors"
	"net/http"

	"github.com/planforge/planforge-api/internal/service"
	"github.com/planforge/planforge-api/internal/service/auth"
	"github.com/planforge/planforge-api/internal/store"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status
// codes based on the error type. This prevents leaking internal error types
// or messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid):
		return http.StatusUnauthorized

	// Not found errors
	case errors.Is(err, service.ErrJobNotFound),
		errors.Is(err, store.ErrJobNotFound),
		errors.Is(err, store.ErrPlanNotFound):
		return http.StatusNotFound

	// Bad request errors
	case errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Queue saturation
	case errors.Is(err, service.ErrSubmissionRejected):
		return http.StatusServiceUnavailable

	// Default: internal server error
	default:
		if _, ok := service.IsQuotaExceeded(err); ok {
			return http.StatusTooManyRequests
		}
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid):
		return "Invalid token"

	case errors.Is(err, service.ErrJobNotFound),
		errors.Is(err, store.ErrJobNotFound):
		return "Job not found"

	case errors.Is(err, store.ErrPlanNotFound):
		return "Plan not found"

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	case errors.Is(err, service.ErrSubmissionRejected):
		return "Service is busy, try again shortly"

	default:
		if qe, ok := service.IsQuotaExceeded(err); ok {
			return qe.Decision.Reason()
		}
		return "An unexpected error occurred"
	}
}
