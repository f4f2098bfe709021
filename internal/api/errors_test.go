package api_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/planforge/planforge-api/internal/api"
	"github.com/planforge/planforge-api/internal/quota"
	"github.com/planforge/planforge-api/internal/service"
	"github.com/planforge/planforge-api/internal/service/auth"
	"github.com/planforge/planforge-api/internal/store"
)

func TestMapErrorToStatusCode(t *testing.T) {
	t.Parallel()

	quotaErr := &service.QuotaExceededError{
		Decision: quota.Decision{Allowed: false, Reasons: []string{"Token budget exhausted (50000 of 50000 used)."}},
	}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid token", auth.ErrInvalidToken, http.StatusUnauthorized},
		{"expired token", auth.ErrExpiredToken, http.StatusUnauthorized},
		{"service job not found", service.ErrJobNotFound, http.StatusNotFound},
		{"store job not found", store.ErrJobNotFound, http.StatusNotFound},
		{"plan not found", store.ErrPlanNotFound, http.StatusNotFound},
		{"invalid entity", store.ErrInvalidEntity, http.StatusBadRequest},
		{"submission rejected", service.ErrSubmissionRejected, http.StatusServiceUnavailable},
		{"wrapped submission rejected", fmt.Errorf("%w: queue is full", service.ErrSubmissionRejected), http.StatusServiceUnavailable},
		{"quota exceeded", quotaErr, http.StatusTooManyRequests},
		{"unknown error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, api.MapErrorToStatusCode(tc.err))
		})
	}
}

func TestGetSafeErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Job not found", api.GetSafeErrorMessage(service.ErrJobNotFound))
	assert.Equal(t, "Invalid token", api.GetSafeErrorMessage(auth.ErrExpiredToken))
	assert.Equal(t, "Service is busy, try again shortly", api.GetSafeErrorMessage(service.ErrSubmissionRejected))

	// Unknown errors must not leak internals.
	assert.Equal(t, "An unexpected error occurred",
		api.GetSafeErrorMessage(errors.New("pq: password authentication failed for user \"admin\"")))

	quotaErr := &service.QuotaExceededError{
		Decision: quota.Decision{Reasons: []string{"Day-plan regeneration limit reached (5 of 5 used)."}},
	}
	assert.Equal(t, "Day-plan regeneration limit reached (5 of 5 used).", api.GetSafeErrorMessage(quotaErr))
}
