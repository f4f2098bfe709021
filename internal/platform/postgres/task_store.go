package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/platform/logger"
	"github.com/planforge/planforge-api/internal/store"
	"github.com/planforge/planforge-api/internal/task"
)

// PostgresTaskStore implements the task.TaskStore interface using
// PostgreSQL. Task rows are queue bookkeeping: they let in-flight work
// survive restarts and drive recovery, but the job record remains the
// externally visible source of truth.
type PostgresTaskStore struct {
	db store.DBTX
}

// NewPostgresTaskStore creates a new PostgresTaskStore
func NewPostgresTaskStore(db store.DBTX) *PostgresTaskStore {
	return &PostgresTaskStore{
		db: db,
	}
}

// Ensure PostgresTaskStore implements task.TaskStore interface
var _ task.TaskStore = (*PostgresTaskStore)(nil)

// WithTx implements task.TaskStore.WithTx
func (s *PostgresTaskStore) WithTx(tx *sql.Tx) task.TaskStore {
	return &PostgresTaskStore{
		db: tx,
	}
}

// SaveTask persists a task to the database in pending state
func (s *PostgresTaskStore) SaveTask(ctx context.Context, t *task.Task) error {
	log := logger.FromContext(ctx)

	query := `
		INSERT INTO tasks
			(id, job_id, user_id, task_type, payload, status,
			 attempts_made, max_attempts, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, '', $9, $10)
	`

	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx, query,
		t.ID,
		t.JobID,
		t.UserID,
		t.Type,
		[]byte(t.Payload),
		task.TaskStatusPending,
		t.AttemptsMade,
		t.MaxAttempts,
		t.CreatedAt,
		now,
	)

	if err != nil {
		log.Error("failed to save task",
			"task_id", t.ID,
			"task_type", t.Type,
			"error", err)
		return fmt.Errorf("failed to save task to database: %w", err)
	}

	return nil
}

// UpdateTaskStatus updates the status of a task in the database.
// A missing row is treated as a no-op: pruning may remove bookkeeping for
// work that is still draining.
func (s *PostgresTaskStore) UpdateTaskStatus(ctx context.Context, taskID uuid.UUID, status task.TaskStatus, errorMsg string) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE tasks
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := s.db.ExecContext(ctx, query,
		status,
		errorMsg,
		time.Now().UTC(),
		taskID,
	)

	if err != nil {
		log.Error("failed to update task status",
			"task_id", taskID,
			"status", status,
			"error", err)
		return fmt.Errorf("failed to update task status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected",
			"task_id", taskID,
			"error", err)
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		log.Warn("no task found with ID to update status",
			"task_id", taskID)
		return nil
	}

	return nil
}

// UpdateTaskAttempts records the attempt counter and last error after a
// failed delivery.
func (s *PostgresTaskStore) UpdateTaskAttempts(ctx context.Context, taskID uuid.UUID, attempts int, lastError string) error {
	log := logger.FromContext(ctx)

	query := `
		UPDATE tasks
		SET attempts_made = $1, error_message = $2, updated_at = $3
		WHERE id = $4
	`

	result, err := s.db.ExecContext(ctx, query,
		attempts,
		lastError,
		time.Now().UTC(),
		taskID,
	)

	if err != nil {
		log.Error("failed to update task attempts",
			"task_id", taskID,
			"attempts", attempts,
			"error", err)
		return fmt.Errorf("failed to update task attempts: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected",
			"task_id", taskID,
			"error", err)
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		log.Warn("no task found with ID to update attempts",
			"task_id", taskID)
		return nil
	}

	return nil
}

// GetPendingTasks retrieves all tasks with "pending" status
func (s *PostgresTaskStore) GetPendingTasks(ctx context.Context) ([]*task.Task, error) {
	return s.getTasksByStatus(ctx, task.TaskStatusPending, 0)
}

// GetProcessingTasks retrieves tasks with "processing" status
func (s *PostgresTaskStore) GetProcessingTasks(ctx context.Context, olderThan time.Duration) ([]*task.Task, error) {
	return s.getTasksByStatus(ctx, task.TaskStatusProcessing, olderThan)
}

// getTasksByStatus is a helper method to get tasks by status with optional age filter
func (s *PostgresTaskStore) getTasksByStatus(ctx context.Context, status task.TaskStatus, olderThan time.Duration) ([]*task.Task, error) {
	log := logger.FromContext(ctx)

	var query string
	var args []interface{}

	if olderThan > 0 {
		query = `
			SELECT id, job_id, user_id, task_type, payload, attempts_made,
			       max_attempts, created_at
			FROM tasks
			WHERE status = $1 AND updated_at < $2
			ORDER BY created_at ASC
		`
		args = []interface{}{status, time.Now().UTC().Add(-olderThan)}
	} else {
		query = `
			SELECT id, job_id, user_id, task_type, payload, attempts_made,
			       max_attempts, created_at
			FROM tasks
			WHERE status = $1
			ORDER BY created_at ASC
		`
		args = []interface{}{status}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to query tasks by status",
			"status", status,
			"error", err)
		return nil, fmt.Errorf("failed to query tasks by status: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", "error", err)
		}
	}()

	var tasks []*task.Task

	for rows.Next() {
		var t task.Task
		var taskType string
		var payload []byte

		if err := rows.Scan(
			&t.ID,
			&t.JobID,
			&t.UserID,
			&taskType,
			&payload,
			&t.AttemptsMade,
			&t.MaxAttempts,
			&t.CreatedAt,
		); err != nil {
			log.Error("failed to scan task row",
				"status", status,
				"error", err)
			return nil, fmt.Errorf("failed to scan task row: %w", err)
		}

		t.Type = domain.JobType(taskType)
		t.Payload = payload
		tasks = append(tasks, &t)
	}

	if err := rows.Err(); err != nil {
		log.Error("error iterating task rows",
			"status", status,
			"error", err)
		return nil, fmt.Errorf("error iterating task rows: %w", err)
	}

	return tasks, nil
}

// PruneFinished removes old terminal bookkeeping rows, keeping the most
// recent keepCompleted completed and keepFailed failed rows.
func (s *PostgresTaskStore) PruneFinished(ctx context.Context, keepCompleted, keepFailed int) (int64, error) {
	log := logger.FromContext(ctx)

	query := `
		DELETE FROM tasks
		WHERE id IN (
			SELECT id FROM (
				SELECT id,
				       ROW_NUMBER() OVER (PARTITION BY status ORDER BY updated_at DESC) AS rank,
				       status
				FROM tasks
				WHERE status IN ($1, $2)
			) ranked
			WHERE (status = $1 AND rank > $3)
			   OR (status = $2 AND rank > $4)
		)
	`

	result, err := s.db.ExecContext(ctx, query,
		task.TaskStatusCompleted,
		task.TaskStatusFailed,
		keepCompleted,
		keepFailed,
	)
	if err != nil {
		log.Error("failed to prune finished tasks", "error", err)
		return 0, fmt.Errorf("failed to prune finished tasks: %w", err)
	}

	pruned, err := result.RowsAffected()
	if err != nil {
		log.Error("failed to get rows affected", "error", err)
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return pruned, nil
}
