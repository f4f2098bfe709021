package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/planforge/planforge-api/internal/domain"
)

// JobStatusUpdate carries the fields a worker writes when it moves a job
// through its lifecycle. Result, PlanID, and Error are optional; Progress
// always overwrites the stored value.
type JobStatusUpdate struct {
	Status   domain.JobStatus
	Progress int
	Result   json.RawMessage
	PlanID   *uuid.UUID
	Error    string
}

// JobStore defines the interface for generation job persistence.
// The job record is the externally visible source of truth for a job's
// lifecycle; exactly one worker owns a job at a time, so implementations
// need no optimistic concurrency control.
type JobStore interface {
	// Create saves a new job to the store. It handles domain validation
	// internally and returns validation errors if the data is invalid.
	Create(ctx context.Context, job *domain.GenerationJob) error

	// GetByID retrieves a job by its unique ID.
	// Returns ErrJobNotFound if the job does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.GenerationJob, error)

	// UpdateStatus applies a status update to an existing job. Progress and
	// updated_at are overwritten unconditionally; completed_at is set exactly
	// when the incoming status is terminal. Returns ErrJobNotFound if the job
	// does not exist — callers treat that as non-fatal, since terminal
	// records may have been pruned by retention cleanup.
	UpdateStatus(ctx context.Context, id uuid.UUID, update JobStatusUpdate) (*domain.GenerationJob, error)

	// DeleteTerminalBefore removes completed and failed jobs whose
	// completed_at is older than the cutoff. Non-terminal jobs are never
	// touched. Returns the number of records removed.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// WithTx returns a new JobStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) JobStore
}
