package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/planforge/planforge-api/internal/domain"
)

// Common request/response structures

// GenerateWeeklyPlanRequest defines the payload for submitting a fresh
// weekly plan generation job.
type GenerateWeeklyPlanRequest struct {
	Profile string `json:"profile" validate:"required,min=1,max=8000"`
}

// RegenerateWeeklyPlanRequest defines the payload for submitting a
// full-plan regeneration job.
type RegenerateWeeklyPlanRequest struct {
	PreviousPlanID uuid.UUID `json:"previous_plan_id" validate:"required"`
	Feedback       string    `json:"feedback"         validate:"required,min=1,max=8000"`
}

// RegenerateDayRequest defines the payload for submitting a single-day
// regeneration job.
type RegenerateDayRequest struct {
	DayID  uuid.UUID `json:"day_id" validate:"required"`
	Reason string    `json:"reason" validate:"required,min=1,max=2000"`
	Styles []string  `json:"styles" validate:"max=10,dive,min=1,max=64"`
}

// JobResponse represents the externally visible state of a generation job.
type JobResponse struct {
	ID          uuid.UUID       `json:"id"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	Progress    int             `json:"progress"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	PlanID      *uuid.UUID      `json:"plan_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// QuotaDeniedResponse is returned when the usage gate rejects a submission.
type QuotaDeniedResponse struct {
	Error   string   `json:"error"`
	Reasons []string `json:"reasons"`
	TraceID string   `json:"trace_id,omitempty"`
}

// BillingWebhookRequest defines the payload delivered by the billing
// provider.
type BillingWebhookRequest struct {
	EventID   string          `json:"event_id"   validate:"required"`
	EventType string          `json:"event_type" validate:"required"`
	UserID    uuid.UUID       `json:"user_id"    validate:"required"`
	Status    string          `json:"status"     validate:"required,oneof=active past_due canceled"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// jobToResponse converts a domain.GenerationJob to a JobResponse.
// The raw payload is internal and never echoed back.
func jobToResponse(job *domain.GenerationJob) JobResponse {
	return JobResponse{
		ID:          job.ID,
		Type:        string(job.Type),
		Status:      string(job.Status),
		Progress:    job.Progress,
		Result:      job.Result,
		Error:       job.Error,
		PlanID:      job.PlanID,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		CompletedAt: job.CompletedAt,
	}
}
