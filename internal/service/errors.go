package service

import (
	"errors"
	"fmt"

	"github.com/planforge/planforge-api/internal/quota"
)

// Common sentinel errors for the service layer.
var (
	// ErrJobNotFound indicates that the job does not exist or is not
	// visible to the requesting user.
	ErrJobNotFound = errors.New("job not found")

	// ErrSubmissionRejected indicates the job could not be accepted into
	// the queue.
	ErrSubmissionRejected = errors.New("job submission rejected")
)

// ServiceError wraps errors from the service layer with context.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "submit_job", "get_job")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// QuotaExceededError is returned when the usage gate denies a submission.
// It carries the full decision so the API layer can report every breached
// limit to the user.
type QuotaExceededError struct {
	Decision quota.Decision
}

// Error implements the error interface for QuotaExceededError.
func (e *QuotaExceededError) Error() string {
	return "usage limit exceeded: " + e.Decision.Reason()
}

// IsQuotaExceeded reports whether err is a quota denial and returns the
// decision when it is.
func IsQuotaExceeded(err error) (*QuotaExceededError, bool) {
	var qe *QuotaExceededError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}
