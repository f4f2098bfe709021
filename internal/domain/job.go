package domain

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// JobType identifies which generation operation a job performs.
// The set is closed: each type has exactly one processor paired with it
// at startup, and unknown types are rejected at validation time.
type JobType string

// Possible job types.
const (
	JobTypeWeeklyGeneration   JobType = "weekly_generation"
	JobTypeWeeklyRegeneration JobType = "weekly_regeneration"
	JobTypeDailyRegeneration  JobType = "daily_regeneration"
)

// JobStatus represents the lifecycle state of a generation job.
type JobStatus string

// Possible job status values.
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status permits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// Common validation errors for GenerationJob.
var (
	ErrEmptyJobID        = errors.New("job ID cannot be empty")
	ErrEmptyJobUserID    = errors.New("job user ID cannot be empty")
	ErrInvalidJobType    = errors.New("invalid job type")
	ErrInvalidJobStatus  = errors.New("invalid job status")
	ErrInvalidProgress   = errors.New("job progress must be between 0 and 100")
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// GenerationJob is the durable record of one logical generation request.
// It is the source of truth for status queries, independent of the task
// queue's internal bookkeeping: clients poll this record, never the queue.
type GenerationJob struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	Type        JobType         `json:"type"`
	Status      JobStatus       `json:"status"`
	Progress    int             `json:"progress"`
	Payload     json.RawMessage `json:"payload"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	PlanID      *uuid.UUID      `json:"plan_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// NewGenerationJob creates a new job in pending state with zero progress.
// Returns an error if validation fails.
func NewGenerationJob(userID uuid.UUID, jobType JobType, payload json.RawMessage) (*GenerationJob, error) {
	now := time.Now().UTC()
	job := &GenerationJob{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      jobType,
		Status:    JobStatusPending,
		Progress:  0,
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := job.Validate(); err != nil {
		return nil, err
	}

	return job, nil
}

// Validate checks if the GenerationJob has valid data.
func (j *GenerationJob) Validate() error {
	if j.ID == uuid.Nil {
		return ErrEmptyJobID
	}
	if j.UserID == uuid.Nil {
		return ErrEmptyJobUserID
	}
	if !isValidJobType(j.Type) {
		return ErrInvalidJobType
	}
	if !isValidJobStatus(j.Status) {
		return ErrInvalidJobStatus
	}
	if j.Progress < 0 || j.Progress > 100 {
		return ErrInvalidProgress
	}
	return nil
}

// CanTransition reports whether a job may move from one status to another.
// Transitions are monotone: pending -> processing -> {completed, failed}.
// Terminal states admit no further transitions. Processing -> processing is
// allowed so redelivered attempts can refresh progress on the same record,
// and pending -> failed closes out a record whose task was never enqueued.
func CanTransition(from, to JobStatus) bool {
	switch from {
	case JobStatusPending:
		return to == JobStatusProcessing || to == JobStatusFailed
	case JobStatusProcessing:
		return to == JobStatusProcessing || to == JobStatusCompleted || to == JobStatusFailed
	default:
		return false
	}
}

func isValidJobType(t JobType) bool {
	switch t {
	case JobTypeWeeklyGeneration, JobTypeWeeklyRegeneration, JobTypeDailyRegeneration:
		return true
	default:
		return false
	}
}

func isValidJobStatus(s JobStatus) bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	default:
		return false
	}
}
