package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/telemetry"
)

// Common errors returned by the Runner.
var (
	ErrQueueFull      = errors.New("task queue is full")
	ErrUnknownJobType = errors.New("no processor registered for job type")
)

// RunnerConfig holds configuration for the task runner.
type RunnerConfig struct {
	// QueueSize is the buffer size of each per-type task channel.
	QueueSize int

	// DefaultMaxAttempts applies to tasks submitted without an explicit cap.
	DefaultMaxAttempts int

	// Concurrency is the worker count started for each job type. Tasks of
	// the same type compete for this shared budget.
	Concurrency int

	// BackoffBase and BackoffMax bound the exponential redelivery delay.
	BackoffBase time.Duration
	BackoffMax  time.Duration

	// StuckTaskAge defines how long a task can sit in processing before the
	// monitor treats its worker as dead and requeues it.
	StuckTaskAge time.Duration

	// StuckTaskCheckInterval defines how often to check for stuck tasks.
	// If zero, defaults to 5 minutes.
	StuckTaskCheckInterval time.Duration

	// PruneInterval defines how often terminal bookkeeping rows are pruned.
	// If zero, defaults to 10 minutes.
	PruneInterval time.Duration

	// KeepCompleted and KeepFailed bound how many terminal bookkeeping rows
	// survive each prune pass.
	KeepCompleted int
	KeepFailed    int
}

// DefaultRunnerConfig returns a RunnerConfig with reasonable defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		QueueSize:              100,
		DefaultMaxAttempts:     3,
		Concurrency:            10,
		BackoffBase:            5 * time.Second,
		BackoffMax:             2 * time.Minute,
		StuckTaskAge:           30 * time.Minute,
		StuckTaskCheckInterval: 5 * time.Minute,
		PruneInterval:          10 * time.Minute,
		KeepCompleted:          50,
		KeepFailed:             20,
	}
}

// Runner manages background task processing: it persists submitted tasks,
// delivers them to registered processors through per-type worker pools,
// schedules backoff-delayed redeliveries, and recovers unfinished work
// after a restart. The queue guarantees at-least-once delivery; each task
// is owned by exactly one worker at a time.
type Runner struct {
	store    TaskStore
	registry *Registry
	queues   map[domain.JobType]chan *Task
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	config   RunnerConfig
	logger   *slog.Logger
}

// NewRunner creates a Runner for the given registry. The registry must be
// fully populated before Start is called; the job type set is closed.
func NewRunner(store TaskStore, registry *Registry, config RunnerConfig, logger *slog.Logger) *Runner {
	if config.StuckTaskCheckInterval == 0 {
		config.StuckTaskCheckInterval = 5 * time.Minute
	}
	if config.PruneInterval == 0 {
		config.PruneInterval = 10 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	queues := make(map[domain.JobType]chan *Task, len(registry.Types()))
	for _, jobType := range registry.Types() {
		queues[jobType] = make(chan *Task, config.QueueSize)
	}

	return &Runner{
		store:    store,
		registry: registry,
		queues:   queues,
		ctx:      ctx,
		cancel:   cancel,
		config:   config,
		logger:   logger.With("component", "task_runner"),
	}
}

// Submit persists a new task and hands it to the in-memory queue. The
// bookkeeping row is written first so a crash between save and enqueue is
// repaired by recovery. Returns ErrQueueFull when the type's channel is
// saturated; the saved row stays pending and is picked up on restart.
func (r *Runner) Submit(ctx context.Context, t *Task) error {
	if _, ok := r.registry.Lookup(t.Type); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJobType, t.Type)
	}
	if t.MaxAttempts <= 0 {
		t.MaxAttempts = r.config.DefaultMaxAttempts
	}

	if err := r.store.SaveTask(ctx, t); err != nil {
		return fmt.Errorf("failed to save task: %w", err)
	}

	if err := r.enqueue(t); err != nil {
		return err
	}
	telemetry.TasksEnqueued.Inc()
	return nil
}

// Start begins processing: recovers unfinished tasks, then launches the
// per-type worker pools and the housekeeping monitors.
func (r *Runner) Start() error {
	if err := r.recover(); err != nil {
		return fmt.Errorf("failed to recover tasks: %w", err)
	}

	for jobType := range r.queues {
		concurrency := r.registry.concurrency(jobType)
		if concurrency <= 0 {
			concurrency = r.config.Concurrency
		}
		for i := 0; i < concurrency; i++ {
			r.wg.Add(1)
			go r.worker(jobType, i)
		}
	}

	r.wg.Add(1)
	go r.stuckTaskMonitor()

	r.wg.Add(1)
	go r.pruneLoop()

	return nil
}

// Stop gracefully shuts down the runner, waiting for in-flight deliveries
// and pending redelivery timers to wind down.
func (r *Runner) Stop() {
	r.cancel()
	r.wg.Wait()
}

func (r *Runner) enqueue(t *Task) error {
	queue, ok := r.queues[t.Type]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJobType, t.Type)
	}
	select {
	case queue <- t:
		return nil
	default:
		return fmt.Errorf("%w: capacity %d reached for %s", ErrQueueFull, cap(queue), t.Type)
	}
}

// recover loads unfinished tasks from the bookkeeping store: pending rows
// are requeued as-is, processing rows (interrupted by a crash) are reset to
// pending and requeued. Redelivered tasks restart from the beginning of
// their handler; there is no mid-job resumption.
func (r *Runner) recover() error {
	ctx := context.Background()

	pending, err := r.store.GetPendingTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to get pending tasks: %w", err)
	}

	processing, err := r.store.GetProcessingTasks(ctx, 0)
	if err != nil {
		return fmt.Errorf("failed to get processing tasks: %w", err)
	}

	r.logger.Info("recovering unfinished tasks",
		"pending_count", len(pending),
		"processing_count", len(processing))

	for _, t := range pending {
		if err := r.enqueue(t); err != nil {
			r.logger.Error("failed to requeue pending task",
				"task_id", t.ID,
				"job_type", t.Type,
				"error", err)
		}
	}

	for _, t := range processing {
		if err := r.store.UpdateTaskStatus(ctx, t.ID, TaskStatusPending, "reset after recovery"); err != nil {
			r.logger.Error("failed to reset processing task status",
				"task_id", t.ID,
				"job_type", t.Type,
				"error", err)
			continue
		}
		if err := r.enqueue(t); err != nil {
			r.logger.Error("failed to requeue processing task",
				"task_id", t.ID,
				"job_type", t.Type,
				"error", err)
		}
	}

	return nil
}

// worker consumes tasks of one job type until shutdown.
func (r *Runner) worker(jobType domain.JobType, id int) {
	defer r.wg.Done()

	queue := r.queues[jobType]
	r.logger.Debug("starting worker", "job_type", jobType, "worker_id", id)

	for {
		select {
		case <-r.ctx.Done():
			r.logger.Debug("stopping worker", "job_type", jobType, "worker_id", id)
			return
		case t := <-queue:
			r.deliver(t, id)
		}
	}
}

// deliver executes one delivery attempt and handles its outcome. Store
// write failures are logged and swallowed so the attempt bookkeeping never
// derails the delivery itself.
func (r *Runner) deliver(t *Task, workerID int) {
	ctx := context.Background()
	attempt := Attempt{Number: t.AttemptsMade + 1, Max: t.MaxAttempts}
	logger := r.logger.With(
		"task_id", t.ID,
		"job_id", t.JobID,
		"job_type", t.Type,
		"worker_id", workerID,
		"attempt", attempt.Number,
		"max_attempts", attempt.Max,
	)

	processor, ok := r.registry.Lookup(t.Type)
	if !ok {
		// Cannot happen once Start has run: Submit rejects unknown types.
		logger.Error("no processor for task type, dropping task")
		return
	}

	if err := r.store.UpdateTaskStatus(ctx, t.ID, TaskStatusProcessing, ""); err != nil {
		logger.Error("failed to update task status to processing", "error", err)
	}

	logger.Info("processing task")
	telemetry.TaskAttempts.Inc()
	telemetry.TasksInFlight.Inc()
	err := processor.Process(r.ctx, t, attempt)
	telemetry.TasksInFlight.Dec()

	t.AttemptsMade = attempt.Number

	if err == nil {
		logger.Info("task acknowledged")
		if updateErr := r.store.UpdateTaskStatus(ctx, t.ID, TaskStatusCompleted, ""); updateErr != nil {
			logger.Error("failed to update task status to completed", "error", updateErr)
		}
		telemetry.TasksCompleted.Inc()
		return
	}

	if updateErr := r.store.UpdateTaskAttempts(ctx, t.ID, t.AttemptsMade, err.Error()); updateErr != nil {
		logger.Error("failed to record task attempt", "error", updateErr)
	}

	if attempt.Final() {
		// Processors record terminal job failure themselves and return nil
		// on the final attempt; an error here means the processor bailed
		// out before its outcome handling. The bookkeeping row is marked
		// failed and the task dropped — the job record stays authoritative.
		logger.Error("task failed on final attempt", "error", err)
		if updateErr := r.store.UpdateTaskStatus(ctx, t.ID, TaskStatusFailed, err.Error()); updateErr != nil {
			logger.Error("failed to update task status to failed", "error", updateErr)
		}
		telemetry.TasksFailed.Inc()
		return
	}

	delay := backoffWithJitter(r.config.BackoffBase, r.config.BackoffMax, attempt.Number)
	logger.Warn("task attempt failed, scheduling redelivery", "error", err, "delay", delay)
	telemetry.TaskRetries.Inc()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		select {
		case <-r.ctx.Done():
			return
		case <-time.After(delay):
		}
		if updateErr := r.store.UpdateTaskStatus(context.Background(), t.ID, TaskStatusPending, err.Error()); updateErr != nil {
			r.logger.Error("failed to reset task for redelivery",
				"task_id", t.ID, "error", updateErr)
		}
		if enqErr := r.enqueue(t); enqErr != nil {
			// The row is pending again; recovery picks it up if the queue
			// stays saturated.
			r.logger.Error("failed to requeue task for redelivery",
				"task_id", t.ID, "error", enqErr)
		}
	}()
}

// stuckTaskMonitor periodically resets tasks that have been in processing
// longer than the configured visibility window. This reclaims work whose
// owning process died without resetting its bookkeeping row.
func (r *Runner) stuckTaskMonitor() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.StuckTaskCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			ctx := context.Background()

			stuck, err := r.store.GetProcessingTasks(ctx, r.config.StuckTaskAge)
			if err != nil {
				r.logger.Error("failed to check for stuck tasks", "error", err)
				continue
			}
			if len(stuck) == 0 {
				continue
			}

			r.logger.Info("found stuck tasks", "count", len(stuck))
			for _, t := range stuck {
				if err := r.store.UpdateTaskStatus(ctx, t.ID, TaskStatusPending, "reset after exceeding processing window"); err != nil {
					r.logger.Error("failed to reset stuck task status",
						"task_id", t.ID,
						"job_type", t.Type,
						"error", err)
					continue
				}
				if err := r.enqueue(t); err != nil {
					r.logger.Error("failed to requeue stuck task",
						"task_id", t.ID,
						"job_type", t.Type,
						"error", err)
				}
			}
		}
	}
}

// pruneLoop trims old terminal bookkeeping rows on an interval.
func (r *Runner) pruneLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			pruned, err := r.store.PruneFinished(context.Background(), r.config.KeepCompleted, r.config.KeepFailed)
			if err != nil {
				r.logger.Error("failed to prune finished tasks", "error", err)
				continue
			}
			if pruned > 0 {
				r.logger.Debug("pruned finished tasks", "count", pruned)
			}
		}
	}
}
