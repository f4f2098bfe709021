package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/generation"
	"github.com/planforge/planforge-api/internal/notification"
	"github.com/planforge/planforge-api/internal/progress"
	"github.com/planforge/planforge-api/internal/store"
)

// Progress values written by the attempt state machine. Announced marks the
// start of every delivery attempt; delegate milestones land between
// announced and the terminal write; retrying keeps polling clients on a
// small non-terminal value while the queue waits to redeliver.
const (
	progressAnnounced = 5
	progressRetrying  = 5
	progressCeiling   = 95
)

// Common construction errors for processors.
var (
	ErrNilJobStore    = errors.New("job store cannot be nil")
	ErrNilPlanStore   = errors.New("plan store cannot be nil")
	ErrNilGenerator   = errors.New("generator cannot be nil")
	ErrNilBroadcaster = errors.New("broadcaster cannot be nil")
	ErrNilNotifier    = errors.New("notifier cannot be nil")
	ErrNilLogger      = errors.New("logger cannot be nil")
)

// JobRecorder is the narrow view of the job store the processors need.
type JobRecorder interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, update store.JobStatusUpdate) (*domain.GenerationJob, error)
}

// PlanSaver is the narrow view of the plan store the processors need.
type PlanSaver interface {
	Create(ctx context.Context, plan *domain.Plan) error
}

// Typed payloads for the closed set of job kinds. Each processor decodes
// only its own payload shape; the pairing is fixed at registry construction.

// WeeklyGenerationPayload is the input to a fresh weekly plan generation.
type WeeklyGenerationPayload struct {
	Profile string `json:"profile"`
}

// WeeklyRegenerationPayload is the input to a full-plan regeneration.
type WeeklyRegenerationPayload struct {
	PreviousPlanID uuid.UUID `json:"previous_plan_id"`
	Feedback       string    `json:"feedback"`
}

// DailyRegenerationPayload is the input to a single-day regeneration.
type DailyRegenerationPayload struct {
	DayID  uuid.UUID `json:"day_id"`
	Reason string    `json:"reason"`
	Styles []string  `json:"styles,omitempty"`
}

// pipeline is the attempt state machine shared by all generation
// processors: announce the attempt on the job record, delegate to the
// generator while mirroring its milestones, then handle the outcome
// attempt-aware. Job record writes that fail are logged and swallowed —
// losing a status write is preferable to losing track of the attempt.
type pipeline struct {
	jobs        JobRecorder
	plans       PlanSaver
	broadcaster progress.Broadcaster
	notifier    notification.Notifier
	logger      *slog.Logger
}

func newPipeline(
	jobs JobRecorder,
	plans PlanSaver,
	broadcaster progress.Broadcaster,
	notifier notification.Notifier,
	logger *slog.Logger,
) (pipeline, error) {
	if jobs == nil {
		return pipeline{}, ErrNilJobStore
	}
	if plans == nil {
		return pipeline{}, ErrNilPlanStore
	}
	if broadcaster == nil {
		return pipeline{}, ErrNilBroadcaster
	}
	if notifier == nil {
		return pipeline{}, ErrNilNotifier
	}
	if logger == nil {
		return pipeline{}, ErrNilLogger
	}
	return pipeline{
		jobs:        jobs,
		plans:       plans,
		broadcaster: broadcaster,
		notifier:    notifier,
		logger:      logger,
	}, nil
}

// run drives one delivery attempt through the state machine. generate
// produces the artifact; summarize renders the result blob stored on the
// completed job record.
func (p *pipeline) run(
	ctx context.Context,
	t *Task,
	attempt Attempt,
	generate func(ctx context.Context, onProgress generation.ProgressFunc) (*domain.Plan, error),
	summarize func(plan *domain.Plan) json.RawMessage,
) error {
	logger := p.logger.With(
		"job_id", t.JobID,
		"job_type", t.Type,
		"user_id", t.UserID,
		"attempt", attempt.Number,
	)

	// Announce: each attempt resets progress to a small positive value so
	// polling clients see the job is live again after a backoff gap.
	p.recordProgress(ctx, t, progressAnnounced, logger)
	p.broadcaster.Publish(ctx, t.UserID, progress.Event{JobID: t.JobID, Progress: progressAnnounced})

	// Delegate: the generator reports milestones through the callback;
	// each one is mirrored to the job record and the broadcaster. Progress
	// never decreases within an attempt.
	last := progressAnnounced
	onProgress := func(percent int, milestone string) {
		if percent <= last {
			return
		}
		if percent > progressCeiling {
			percent = progressCeiling
		}
		last = percent
		logger.Debug("generation milestone", "progress", percent, "milestone", milestone)
		p.recordProgress(ctx, t, percent, logger)
		p.broadcaster.Publish(ctx, t.UserID, progress.Event{JobID: t.JobID, Progress: percent})
	}

	plan, err := generate(ctx, onProgress)
	if err != nil {
		return p.fail(ctx, t, attempt, err, logger)
	}

	if err := p.plans.Create(ctx, plan); err != nil {
		return p.fail(ctx, t, attempt, fmt.Errorf("failed to save generated plan: %w", err), logger)
	}

	// Outcome, success: the job record gets the result summary and the
	// artifact reference, the user gets a success notification, and the
	// final progress event closes the stream.
	result := summarize(plan)
	planID := plan.ID
	if _, err := p.jobs.UpdateStatus(ctx, t.JobID, store.JobStatusUpdate{
		Status:   domain.JobStatusCompleted,
		Progress: 100,
		Result:   result,
		PlanID:   &planID,
	}); err != nil {
		p.logStatusWriteFailure(err, logger.With("target_status", domain.JobStatusCompleted))
	}

	if err := p.notifier.NotifySuccess(ctx, t.UserID, plan.Name, plan.ID); err != nil {
		logger.Warn("failed to send success notification", "error", err)
	}

	p.broadcaster.Publish(ctx, t.UserID, progress.Event{JobID: t.JobID, Progress: 100, Complete: true})
	logger.Info("generation job completed", "plan_id", plan.ID)
	return nil
}

// fail handles a failed attempt. Before the final attempt the job record
// stays at processing with a small non-terminal progress value and the
// error is re-raised so the queue schedules a redelivery; no notification
// is sent yet. On the final attempt the failure is recorded, notified, and
// broadcast — and the error is deliberately swallowed: re-raising would let
// the queue's own failure bookkeeping race with, and potentially overwrite,
// the just-written failed status. The job record is authoritative; the
// queue's retry bookkeeping is not a second source of truth.
func (p *pipeline) fail(ctx context.Context, t *Task, attempt Attempt, cause error, logger *slog.Logger) error {
	if !attempt.Final() {
		logger.Warn("generation attempt failed, awaiting redelivery", "error", cause)
		p.recordProgress(ctx, t, progressRetrying, logger)
		p.broadcaster.Publish(ctx, t.UserID, progress.Event{JobID: t.JobID, Progress: progressRetrying})
		return cause
	}

	logger.Error("generation failed on final attempt", "error", cause)
	if _, err := p.jobs.UpdateStatus(ctx, t.JobID, store.JobStatusUpdate{
		Status:   domain.JobStatusFailed,
		Progress: 0,
		Error:    cause.Error(),
	}); err != nil {
		p.logStatusWriteFailure(err, logger.With("target_status", domain.JobStatusFailed))
	}

	if err := p.notifier.NotifyFailure(ctx, t.UserID, cause.Error()); err != nil {
		logger.Warn("failed to send failure notification", "error", err)
	}

	p.broadcaster.Publish(ctx, t.UserID, progress.Event{
		JobID:    t.JobID,
		Progress: 0,
		Complete: true,
		Error:    cause.Error(),
	})
	return nil
}

// recordProgress writes a non-terminal progress value to the job record.
func (p *pipeline) recordProgress(ctx context.Context, t *Task, percent int, logger *slog.Logger) {
	if _, err := p.jobs.UpdateStatus(ctx, t.JobID, store.JobStatusUpdate{
		Status:   domain.JobStatusProcessing,
		Progress: percent,
	}); err != nil {
		p.logStatusWriteFailure(err, logger.With("progress", percent))
	}
}

// logStatusWriteFailure distinguishes a pruned job record (expected,
// non-fatal) from a real store failure. Neither aborts the attempt.
func (p *pipeline) logStatusWriteFailure(err error, logger *slog.Logger) {
	if errors.Is(err, store.ErrJobNotFound) {
		logger.Warn("job record missing during status write, likely pruned")
		return
	}
	logger.Error("failed to write job status", "error", err)
}

// WeeklyGenerationProcessor produces a fresh weekly plan.
type WeeklyGenerationProcessor struct {
	pipeline
	generator generation.PlanGenerator
}

// NewWeeklyGenerationProcessor creates the processor for weekly generation
// jobs.
func NewWeeklyGenerationProcessor(
	jobs JobRecorder,
	plans PlanSaver,
	generator generation.PlanGenerator,
	broadcaster progress.Broadcaster,
	notifier notification.Notifier,
	logger *slog.Logger,
) (*WeeklyGenerationProcessor, error) {
	if generator == nil {
		return nil, ErrNilGenerator
	}
	pl, err := newPipeline(jobs, plans, broadcaster, notifier, logger)
	if err != nil {
		return nil, err
	}
	pl.logger = pl.logger.With("processor", string(domain.JobTypeWeeklyGeneration))
	return &WeeklyGenerationProcessor{pipeline: pl, generator: generator}, nil
}

// Process implements Processor.
func (p *WeeklyGenerationProcessor) Process(ctx context.Context, t *Task, attempt Attempt) error {
	return p.run(ctx, t, attempt,
		func(ctx context.Context, onProgress generation.ProgressFunc) (*domain.Plan, error) {
			var payload WeeklyGenerationPayload
			if err := json.Unmarshal(t.Payload, &payload); err != nil {
				return nil, fmt.Errorf("invalid weekly generation payload: %w", err)
			}
			return p.generator.GenerateWeeklyPlan(ctx, t.UserID, payload.Profile, onProgress)
		},
		func(plan *domain.Plan) json.RawMessage {
			return marshalSummary(weeklySummary{
				PlanID:    plan.ID,
				PlanName:  plan.Name,
				Days:      len(plan.Days),
				Exercises: plan.ExerciseCount(),
			})
		},
	)
}

// WeeklyRegenerationProcessor replaces a full plan based on user feedback.
type WeeklyRegenerationProcessor struct {
	pipeline
	generator generation.PlanGenerator
}

// NewWeeklyRegenerationProcessor creates the processor for weekly
// regeneration jobs.
func NewWeeklyRegenerationProcessor(
	jobs JobRecorder,
	plans PlanSaver,
	generator generation.PlanGenerator,
	broadcaster progress.Broadcaster,
	notifier notification.Notifier,
	logger *slog.Logger,
) (*WeeklyRegenerationProcessor, error) {
	if generator == nil {
		return nil, ErrNilGenerator
	}
	pl, err := newPipeline(jobs, plans, broadcaster, notifier, logger)
	if err != nil {
		return nil, err
	}
	pl.logger = pl.logger.With("processor", string(domain.JobTypeWeeklyRegeneration))
	return &WeeklyRegenerationProcessor{pipeline: pl, generator: generator}, nil
}

// Process implements Processor.
func (p *WeeklyRegenerationProcessor) Process(ctx context.Context, t *Task, attempt Attempt) error {
	var payload WeeklyRegenerationPayload
	return p.run(ctx, t, attempt,
		func(ctx context.Context, onProgress generation.ProgressFunc) (*domain.Plan, error) {
			if err := json.Unmarshal(t.Payload, &payload); err != nil {
				return nil, fmt.Errorf("invalid weekly regeneration payload: %w", err)
			}
			return p.generator.RegenerateWeeklyPlan(ctx, t.UserID, payload.PreviousPlanID, payload.Feedback, onProgress)
		},
		func(plan *domain.Plan) json.RawMessage {
			return marshalSummary(weeklyRegenSummary{
				PlanID:         plan.ID,
				PlanName:       plan.Name,
				Days:           len(plan.Days),
				Exercises:      plan.ExerciseCount(),
				PreviousPlanID: payload.PreviousPlanID,
			})
		},
	)
}

// DailyRegenerationProcessor rebuilds a single day of an existing plan.
type DailyRegenerationProcessor struct {
	pipeline
	generator generation.PlanGenerator
}

// NewDailyRegenerationProcessor creates the processor for daily
// regeneration jobs.
func NewDailyRegenerationProcessor(
	jobs JobRecorder,
	plans PlanSaver,
	generator generation.PlanGenerator,
	broadcaster progress.Broadcaster,
	notifier notification.Notifier,
	logger *slog.Logger,
) (*DailyRegenerationProcessor, error) {
	if generator == nil {
		return nil, ErrNilGenerator
	}
	pl, err := newPipeline(jobs, plans, broadcaster, notifier, logger)
	if err != nil {
		return nil, err
	}
	pl.logger = pl.logger.With("processor", string(domain.JobTypeDailyRegeneration))
	return &DailyRegenerationProcessor{pipeline: pl, generator: generator}, nil
}

// Process implements Processor.
func (p *DailyRegenerationProcessor) Process(ctx context.Context, t *Task, attempt Attempt) error {
	var payload DailyRegenerationPayload
	return p.run(ctx, t, attempt,
		func(ctx context.Context, onProgress generation.ProgressFunc) (*domain.Plan, error) {
			if err := json.Unmarshal(t.Payload, &payload); err != nil {
				return nil, fmt.Errorf("invalid daily regeneration payload: %w", err)
			}
			return p.generator.RegenerateDay(ctx, t.UserID, payload.DayID, payload.Reason, payload.Styles, onProgress)
		},
		func(plan *domain.Plan) json.RawMessage {
			return marshalSummary(dailyRegenSummary{
				PlanID:       plan.ID,
				SourcePlanID: plan.SourceID,
				DayID:        payload.DayID,
				Exercises:    plan.ExerciseCount(),
			})
		},
	)
}

type weeklySummary struct {
	PlanID    uuid.UUID `json:"plan_id"`
	PlanName  string    `json:"plan_name"`
	Days      int       `json:"days"`
	Exercises int       `json:"exercises"`
}

type weeklyRegenSummary struct {
	PlanID         uuid.UUID `json:"plan_id"`
	PlanName       string    `json:"plan_name"`
	Days           int       `json:"days"`
	Exercises      int       `json:"exercises"`
	PreviousPlanID uuid.UUID `json:"previous_plan_id"`
}

type dailyRegenSummary struct {
	PlanID       uuid.UUID  `json:"plan_id"`
	SourcePlanID *uuid.UUID `json:"source_plan_id,omitempty"`
	DayID        uuid.UUID  `json:"day_id"`
	Exercises    int        `json:"exercises"`
}

func marshalSummary(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// Summaries are plain structs; marshal cannot realistically fail.
		return json.RawMessage(`{}`)
	}
	return data
}
