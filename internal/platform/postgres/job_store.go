package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/platform/logger"
	"github.com/planforge/planforge-api/internal/store"
)

// PostgresJobStore implements the store.JobStore interface
// using a PostgreSQL database as the storage backend.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresJobStore creates a new PostgreSQL implementation of the
// JobStore interface. It accepts a database connection or transaction that
// should be initialized and managed by the caller. If logger is nil, a
// default logger will be used.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

// Ensure PostgresJobStore implements store.JobStore interface
var _ store.JobStore = (*PostgresJobStore)(nil)

// WithTx implements store.JobStore.WithTx
func (s *PostgresJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return &PostgresJobStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.JobStore.Create
// It saves a new job to the database, handling domain validation.
// Returns store.ErrInvalidEntity if the user ID doesn't exist (foreign key
// violation).
func (s *PostgresJobStore) Create(ctx context.Context, job *domain.GenerationJob) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := job.Validate(); err != nil {
		log.Warn("job validation failed during create",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return err
	}

	query := `
		INSERT INTO generation_jobs
			(id, user_id, job_type, status, progress, payload, result,
			 error_message, plan_id, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.UserID,
		job.Type,
		job.Status,
		job.Progress,
		[]byte(job.Payload),
		nullableJSON(job.Result),
		job.Error,
		job.PlanID,
		job.CreatedAt,
		job.UpdatedAt,
		job.CompletedAt,
	)

	if err != nil {
		if isForeignKeyViolation(err) {
			log.Warn("foreign key violation during job creation",
				slog.String("error", err.Error()),
				slog.String("job_id", job.ID.String()),
				slog.String("user_id", job.UserID.String()))
			return fmt.Errorf("%w: user with ID %s not found",
				store.ErrInvalidEntity, job.UserID)
		}

		log.Error("failed to create job",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()),
			slog.String("user_id", job.UserID.String()))
		return err
	}

	log.Info("job created successfully",
		slog.String("job_id", job.ID.String()),
		slog.String("user_id", job.UserID.String()),
		slog.String("job_type", string(job.Type)))
	return nil
}

// GetByID implements store.JobStore.GetByID
// Returns store.ErrJobNotFound if the job does not exist.
func (s *PostgresJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.GenerationJob, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, user_id, job_type, status, progress, payload, result,
		       error_message, plan_id, created_at, updated_at, completed_at
		FROM generation_jobs
		WHERE id = $1
	`

	job, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("job not found", slog.String("job_id", id.String()))
			return nil, store.ErrJobNotFound
		}
		log.Error("failed to get job by ID",
			slog.String("error", err.Error()),
			slog.String("job_id", id.String()))
		return nil, err
	}

	return job, nil
}

// UpdateStatus implements store.JobStore.UpdateStatus
// Progress and updated_at are overwritten unconditionally; completed_at is
// set exactly when the incoming status is terminal. Result, plan_id, and
// error_message are only overwritten when the update carries them, so a
// progress refresh never clears an earlier write.
// Completed and failed records are immutable: the UPDATE matches no row
// once a job is terminal, so a redelivered attempt racing a finished one
// can never rewind the record. Returns store.ErrJobNotFound if the job
// does not exist or has already reached a terminal status.
func (s *PostgresJobStore) UpdateStatus(ctx context.Context, id uuid.UUID, update store.JobStatusUpdate) (*domain.GenerationJob, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	now := time.Now().UTC()
	var completedAt *time.Time
	if update.Status.Terminal() {
		completedAt = &now
	}

	query := `
		UPDATE generation_jobs
		SET status = $1,
		    progress = $2,
		    result = COALESCE($3, result),
		    plan_id = COALESCE($4, plan_id),
		    error_message = CASE WHEN $5 = '' THEN error_message ELSE $5 END,
		    updated_at = $6,
		    completed_at = COALESCE($7, completed_at)
		WHERE id = $8
		  AND status NOT IN ($9, $10)
		RETURNING id, user_id, job_type, status, progress, payload, result,
		          error_message, plan_id, created_at, updated_at, completed_at
	`

	job, err := scanJob(s.db.QueryRowContext(
		ctx,
		query,
		update.Status,
		update.Progress,
		nullableJSON(update.Result),
		update.PlanID,
		update.Error,
		now,
		completedAt,
		id,
		domain.JobStatusCompleted,
		domain.JobStatusFailed,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("job not found for status update",
				slog.String("job_id", id.String()),
				slog.String("status", string(update.Status)))
			return nil, store.ErrJobNotFound
		}
		log.Error("failed to update job status",
			slog.String("error", err.Error()),
			slog.String("job_id", id.String()),
			slog.String("status", string(update.Status)))
		return nil, err
	}

	log.Debug("job status updated",
		slog.String("job_id", id.String()),
		slog.String("status", string(job.Status)),
		slog.Int("progress", job.Progress))
	return job, nil
}

// DeleteTerminalBefore implements store.JobStore.DeleteTerminalBefore
func (s *PostgresJobStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		DELETE FROM generation_jobs
		WHERE status IN ($1, $2)
		  AND completed_at IS NOT NULL
		  AND completed_at < $3
	`

	result, err := s.db.ExecContext(ctx, query,
		domain.JobStatusCompleted,
		domain.JobStatusFailed,
		cutoff,
	)
	if err != nil {
		log.Error("failed to delete terminal jobs",
			slog.String("error", err.Error()),
			slog.Time("cutoff", cutoff))
		return 0, err
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected",
			slog.String("error", err.Error()))
		return 0, err
	}

	if deleted > 0 {
		log.Info("deleted terminal jobs past retention",
			slog.Int64("count", deleted),
			slog.Time("cutoff", cutoff))
	}
	return deleted, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*domain.GenerationJob, error) {
	var job domain.GenerationJob
	var jobType, status string
	var payload, result []byte

	err := row.Scan(
		&job.ID,
		&job.UserID,
		&jobType,
		&status,
		&job.Progress,
		&payload,
		&result,
		&job.Error,
		&job.PlanID,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	job.Type = domain.JobType(jobType)
	job.Status = domain.JobStatus(status)
	job.Payload = payload
	job.Result = result
	return &job, nil
}

// nullableJSON maps an empty raw message to SQL NULL so COALESCE in update
// statements can tell "no value" apart from an explicit write.
func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
