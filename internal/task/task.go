package task

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/planforge/planforge-api/internal/domain"
)

// TaskStatus represents the queue-internal bookkeeping state of a task.
// This is distinct from the job record's lifecycle: the task row tracks
// delivery, the job record tracks the user-visible outcome.
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task is the queue's unit of work. It carries the same logical payload as
// the job record plus delivery metadata. A task may be redelivered; the job
// record is the durable, externally visible proxy for its outcome.
type Task struct {
	ID           uuid.UUID
	JobID        uuid.UUID
	UserID       uuid.UUID
	Type         domain.JobType
	Payload      json.RawMessage
	AttemptsMade int
	MaxAttempts  int
	CreatedAt    time.Time
}

// NewTask builds a task for the given job with zero attempts made.
func NewTask(job *domain.GenerationJob, maxAttempts int) *Task {
	return &Task{
		ID:          uuid.New(),
		JobID:       job.ID,
		UserID:      job.UserID,
		Type:        job.Type,
		Payload:     job.Payload,
		MaxAttempts: maxAttempts,
		CreatedAt:   time.Now().UTC(),
	}
}

// Attempt describes one delivery of a task to a processor.
type Attempt struct {
	// Number is the 1-based attempt counter.
	Number int

	// Max is the delivery attempt cap for this task.
	Max int
}

// Final reports whether this is the last delivery the queue will make.
// Processors use this to decide between retry-and-rethrow and
// record-terminal-failure-and-swallow.
func (a Attempt) Final() bool {
	return a.Number >= a.Max
}

// Processor executes one delivery of a task. Returning an error before the
// final attempt schedules a backoff-delayed redelivery, so processors must
// be idempotent with respect to side effects not gated behind the final
// attempt. Returning nil acknowledges the task.
type Processor interface {
	Process(ctx context.Context, t *Task, attempt Attempt) error
}

// TaskStore persists queue bookkeeping rows so in-flight work survives
// process restarts.
type TaskStore interface {
	// SaveTask persists a new task row in pending state.
	SaveTask(ctx context.Context, t *Task) error

	// UpdateTaskStatus updates the bookkeeping status of a task.
	UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status TaskStatus, errorMsg string) error

	// UpdateTaskAttempts records the attempt counter and last error after a
	// failed delivery.
	UpdateTaskAttempts(ctx context.Context, taskID uuid.UUID, attempts int, lastError string) error

	// GetPendingTasks retrieves all tasks with "pending" status.
	GetPendingTasks(ctx context.Context) ([]*Task, error)

	// GetProcessingTasks retrieves tasks with "processing" status.
	// If olderThan is non-zero, only returns tasks that have been in this
	// state longer than the specified duration.
	GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]*Task, error)

	// PruneFinished removes old terminal bookkeeping rows, keeping the most
	// recent keepCompleted completed and keepFailed failed rows. This is
	// queue housekeeping, distinct from job record retention.
	PruneFinished(ctx context.Context, keepCompleted, keepFailed int) (int64, error)

	// WithTx returns a new TaskStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) TaskStore
}
