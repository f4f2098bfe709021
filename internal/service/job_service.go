package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/quota"
	"github.com/planforge/planforge-api/internal/store"
	"github.com/planforge/planforge-api/internal/task"
)

// Estimated token costs per operation, charged against the user's token
// budget when a submission is accepted. These are conservative estimates of
// one full prompt/response round trip; actual model usage is not metered
// back into the counters.
const (
	estTokensWeeklyGeneration   = 8000
	estTokensWeeklyRegeneration = 8000
	estTokensDailyRegeneration  = 2500
)

// TaskSubmitter defines the interface for handing accepted jobs to the
// durable queue.
type TaskSubmitter interface {
	// Submit persists the task and enqueues it for delivery.
	Submit(ctx context.Context, t *task.Task) error
}

// UsageGate defines the quota operations the job service depends on.
type UsageGate interface {
	CheckLimit(ctx context.Context, userID uuid.UUID, action quota.Action, estimatedTokens int) (quota.Decision, error)
	Commit(ctx context.Context, userID uuid.UUID, action quota.Action, tokens int) (*domain.UsageCounter, error)
}

// JobService provides generation job submission and retrieval.
type JobService interface {
	// SubmitWeeklyGeneration accepts a fresh weekly plan generation job.
	SubmitWeeklyGeneration(ctx context.Context, userID uuid.UUID, profile string) (*domain.GenerationJob, error)

	// SubmitWeeklyRegeneration accepts a full-plan regeneration job.
	SubmitWeeklyRegeneration(ctx context.Context, userID uuid.UUID, previousPlanID uuid.UUID, feedback string) (*domain.GenerationJob, error)

	// SubmitDailyRegeneration accepts a single-day regeneration job.
	SubmitDailyRegeneration(ctx context.Context, userID uuid.UUID, dayID uuid.UUID, reason string, styles []string) (*domain.GenerationJob, error)

	// GetJob retrieves a job by ID, scoped to its owner. Jobs belonging to
	// other users are reported as not found.
	GetJob(ctx context.Context, jobID, userID uuid.UUID) (*domain.GenerationJob, error)
}

// jobServiceImpl implements the JobService interface.
type jobServiceImpl struct {
	db          *sql.DB
	jobs        store.JobStore
	runner      TaskSubmitter
	gate        UsageGate
	maxAttempts int
	logger      *slog.Logger
}

// NewJobService creates a new JobService.
// It returns an error if any of the required dependencies are nil.
func NewJobService(
	db *sql.DB,
	jobs store.JobStore,
	runner TaskSubmitter,
	gate UsageGate,
	maxAttempts int,
	logger *slog.Logger,
) (JobService, error) {
	if db == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "db cannot be nil"}
	}
	if jobs == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "jobs cannot be nil"}
	}
	if runner == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "runner cannot be nil"}
	}
	if gate == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "gate cannot be nil"}
	}
	if maxAttempts <= 0 {
		return nil, &ServiceError{Operation: "create_service", Message: "maxAttempts must be positive"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &jobServiceImpl{
		db:          db,
		jobs:        jobs,
		runner:      runner,
		gate:        gate,
		maxAttempts: maxAttempts,
		logger:      logger.With("component", "job_service"),
	}, nil
}

// SubmitWeeklyGeneration implements JobService.SubmitWeeklyGeneration.
func (s *jobServiceImpl) SubmitWeeklyGeneration(
	ctx context.Context,
	userID uuid.UUID,
	profile string,
) (*domain.GenerationJob, error) {
	payload, err := json.Marshal(task.WeeklyGenerationPayload{Profile: profile})
	if err != nil {
		return nil, &ServiceError{Operation: "submit_job", Message: "failed to encode payload", Err: err}
	}
	return s.submit(ctx, userID, domain.JobTypeWeeklyGeneration, payload, estTokensWeeklyGeneration)
}

// SubmitWeeklyRegeneration implements JobService.SubmitWeeklyRegeneration.
func (s *jobServiceImpl) SubmitWeeklyRegeneration(
	ctx context.Context,
	userID uuid.UUID,
	previousPlanID uuid.UUID,
	feedback string,
) (*domain.GenerationJob, error) {
	payload, err := json.Marshal(task.WeeklyRegenerationPayload{
		PreviousPlanID: previousPlanID,
		Feedback:       feedback,
	})
	if err != nil {
		return nil, &ServiceError{Operation: "submit_job", Message: "failed to encode payload", Err: err}
	}
	return s.submit(ctx, userID, domain.JobTypeWeeklyRegeneration, payload, estTokensWeeklyRegeneration)
}

// SubmitDailyRegeneration implements JobService.SubmitDailyRegeneration.
func (s *jobServiceImpl) SubmitDailyRegeneration(
	ctx context.Context,
	userID uuid.UUID,
	dayID uuid.UUID,
	reason string,
	styles []string,
) (*domain.GenerationJob, error) {
	payload, err := json.Marshal(task.DailyRegenerationPayload{
		DayID:  dayID,
		Reason: reason,
		Styles: styles,
	})
	if err != nil {
		return nil, &ServiceError{Operation: "submit_job", Message: "failed to encode payload", Err: err}
	}
	return s.submit(ctx, userID, domain.JobTypeDailyRegeneration, payload, estTokensDailyRegeneration)
}

// submit runs the shared acceptance flow: check the usage gate, create the
// durable job record, hand the task to the queue, then commit consumption.
// The commit happens after the enqueue so a rejected submission never
// consumes quota; the small window where a crash between enqueue and commit
// under-counts usage is accepted in the user's favor.
func (s *jobServiceImpl) submit(
	ctx context.Context,
	userID uuid.UUID,
	jobType domain.JobType,
	payload json.RawMessage,
	estimatedTokens int,
) (*domain.GenerationJob, error) {
	action, err := quota.ActionForJobType(jobType)
	if err != nil {
		return nil, &ServiceError{Operation: "submit_job", Message: "unsupported job type", Err: err}
	}

	decision, err := s.gate.CheckLimit(ctx, userID, action, estimatedTokens)
	if err != nil {
		return nil, &ServiceError{Operation: "submit_job", Message: "failed to check usage limits", Err: err}
	}
	if !decision.Allowed {
		return nil, &QuotaExceededError{Decision: decision}
	}

	job, err := domain.NewGenerationJob(userID, jobType, payload)
	if err != nil {
		return nil, &ServiceError{Operation: "submit_job", Message: "failed to create job", Err: err}
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return s.jobs.WithTx(tx).Create(ctx, job)
	})
	if err != nil {
		return nil, &ServiceError{Operation: "submit_job", Message: "failed to save job record", Err: err}
	}

	if err := s.runner.Submit(ctx, task.NewTask(job, s.maxAttempts)); err != nil {
		// The job record exists but nothing will ever work on it; mark it
		// failed so status polls are not left hanging forever.
		if _, updateErr := s.jobs.UpdateStatus(ctx, job.ID, store.JobStatusUpdate{
			Status: domain.JobStatusFailed,
			Error:  "submission rejected: " + err.Error(),
		}); updateErr != nil {
			s.logger.Error("failed to mark rejected job as failed",
				"job_id", job.ID,
				"error", updateErr)
		}
		if errors.Is(err, task.ErrQueueFull) {
			return nil, fmt.Errorf("%w: queue is full", ErrSubmissionRejected)
		}
		return nil, &ServiceError{Operation: "submit_job", Message: "failed to enqueue task", Err: err}
	}

	if _, err := s.gate.Commit(ctx, userID, action, estimatedTokens); err != nil {
		// The job is already accepted and running; losing the commit only
		// under-counts usage. Log and carry on.
		s.logger.Error("failed to commit usage for accepted job",
			"job_id", job.ID,
			"user_id", userID,
			"error", err)
	}

	s.logger.Info("generation job accepted",
		"job_id", job.ID,
		"user_id", userID,
		"job_type", jobType)
	return job, nil
}

// GetJob implements JobService.GetJob.
func (s *jobServiceImpl) GetJob(ctx context.Context, jobID, userID uuid.UUID) (*domain.GenerationJob, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, &ServiceError{Operation: "get_job", Message: "failed to retrieve job", Err: err}
	}

	// Ownership is enforced here, not in the handler; a foreign job looks
	// identical to a missing one so IDs cannot be probed.
	if job.UserID != userID {
		return nil, ErrJobNotFound
	}

	return job, nil
}
