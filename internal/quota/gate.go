// Package quota enforces lifetime usage limits on plan generation. The gate
// checks lifetime counters against configured caps before a job is
// accepted, and commits consumption once the job has been durably enqueued.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/planforge/planforge-api/internal/config"
	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/store"
	"github.com/planforge/planforge-api/internal/telemetry"
)

// Action identifies what a submission is: a fresh generation or one of the
// regeneration kinds. The action decides both which thresholds admission
// checks and which bucket a commit consumes from.
type Action string

const (
	// ActionWeeklyGeneration is a fresh weekly plan generation. Admission
	// is limited by the token budget alone.
	ActionWeeklyGeneration Action = "weekly_generation"

	// ActionWeeklyRegeneration is a full-plan regeneration. It consumes
	// from the weekly bucket, but like every regeneration it is admitted
	// only when no cap at all is breached.
	ActionWeeklyRegeneration Action = "weekly_regeneration"

	// ActionDailyRegeneration is a single-day regeneration, consuming from
	// the daily bucket.
	ActionDailyRegeneration Action = "daily_regeneration"
)

// ActionForJobType maps a job kind to its quota action.
func ActionForJobType(jobType domain.JobType) (Action, error) {
	switch jobType {
	case domain.JobTypeWeeklyGeneration:
		return ActionWeeklyGeneration, nil
	case domain.JobTypeWeeklyRegeneration:
		return ActionWeeklyRegeneration, nil
	case domain.JobTypeDailyRegeneration:
		return ActionDailyRegeneration, nil
	default:
		return "", fmt.Errorf("no quota action for job type %q", jobType)
	}
}

// Limits is the configured cap set, echoed in decisions so callers can
// render them to the user.
type Limits struct {
	WeeklyGenerations  int `json:"weekly_generations"`
	DailyRegenerations int `json:"daily_regenerations"`
	Tokens             int `json:"tokens"`
}

// Decision is the outcome of a limit check. When Allowed is false, Reasons
// holds one human-readable sentence per breached limit.
type Decision struct {
	Allowed bool
	Reasons []string
	Limits  Limits
	Usage   domain.UsageCounter
}

// Reason joins the per-limit reasons into a single message.
func (d Decision) Reason() string {
	if len(d.Reasons) == 0 {
		return ""
	}
	msg := d.Reasons[0]
	for _, r := range d.Reasons[1:] {
		msg += " " + r
	}
	return msg
}

// UsageReader is the read side of the usage store the gate needs for
// checks.
type UsageReader interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*domain.UsageCounter, error)
}

// UsageWriter is the write side of the usage store the gate needs for
// commits.
type UsageWriter interface {
	Increment(ctx context.Context, userID uuid.UUID, delta store.UsageDelta) (*domain.UsageCounter, error)
}

// UsageAccess combines the store capabilities the gate depends on.
type UsageAccess interface {
	UsageReader
	UsageWriter
}

// Gate checks and commits usage against lifetime caps. A zero or negative
// cap disables that limit.
type Gate struct {
	usage  UsageAccess
	limits Limits
	logger *slog.Logger
}

// NewGate creates a Gate from the configured caps.
func NewGate(usage UsageAccess, cfg config.QuotaConfig, logger *slog.Logger) (*Gate, error) {
	if usage == nil {
		return nil, errors.New("usage store cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Gate{
		usage: usage,
		limits: Limits{
			WeeklyGenerations:  cfg.WeeklyGenerationCap,
			DailyRegenerations: cfg.DailyRegenerationCap,
			Tokens:             cfg.TokenCap,
		},
		logger: logger.With("component", "usage_gate"),
	}, nil
}

// CheckLimit reports whether the user may perform the action, given their
// lifetime counters and the estimated token cost of the operation. A fresh
// generation is checked against the token budget alone; a regeneration of
// either scope is checked against the weekly count, the daily count, and
// the token budget together, so a denial names every breached cap, not
// just the bucket the action consumes from.
func (g *Gate) CheckLimit(ctx context.Context, userID uuid.UUID, action Action, estimatedTokens int) (Decision, error) {
	usage, err := g.usage.GetOrCreate(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to load usage counters: %w", err)
	}

	decision := Decision{Allowed: true, Limits: g.limits, Usage: *usage}

	switch action {
	case ActionWeeklyGeneration:
		// Token budget only, checked below.
	case ActionWeeklyRegeneration, ActionDailyRegeneration:
		if g.limits.WeeklyGenerations > 0 && usage.LifetimeWeeklyGenerations >= g.limits.WeeklyGenerations {
			decision.Reasons = append(decision.Reasons,
				fmt.Sprintf("Weekly plan generation limit reached (%d of %d used).",
					usage.LifetimeWeeklyGenerations, g.limits.WeeklyGenerations))
		}
		if g.limits.DailyRegenerations > 0 && usage.LifetimeDailyRegenerations >= g.limits.DailyRegenerations {
			decision.Reasons = append(decision.Reasons,
				fmt.Sprintf("Day-plan regeneration limit reached (%d of %d used).",
					usage.LifetimeDailyRegenerations, g.limits.DailyRegenerations))
		}
	default:
		return Decision{}, fmt.Errorf("unknown quota action %q", action)
	}

	if g.limits.Tokens > 0 && usage.TokensUsed+estimatedTokens > g.limits.Tokens {
		decision.Reasons = append(decision.Reasons,
			fmt.Sprintf("Token budget exhausted (%d of %d used).",
				usage.TokensUsed, g.limits.Tokens))
	}

	if len(decision.Reasons) > 0 {
		decision.Allowed = false
		telemetry.QuotaDenials.Inc()
		g.logger.InfoContext(ctx, "submission denied by usage gate",
			"user_id", userID,
			"action", action,
			"reasons", decision.Reasons)
	}

	return decision, nil
}

// Commit records consumption for an accepted submission: the action's
// bucket advances by one and the token counter advances by the estimated
// cost. The increment is a single atomic store write, so concurrent
// commits for the same user never lose updates.
func (g *Gate) Commit(ctx context.Context, userID uuid.UUID, action Action, tokens int) (*domain.UsageCounter, error) {
	delta := store.UsageDelta{Tokens: tokens}
	switch action {
	case ActionWeeklyGeneration, ActionWeeklyRegeneration:
		// Fresh generation and full regeneration draw from the same bucket.
		delta.WeeklyGenerations = 1
	case ActionDailyRegeneration:
		delta.DailyRegenerations = 1
	default:
		return nil, fmt.Errorf("unknown quota action %q", action)
	}

	usage, err := g.usage.Increment(ctx, userID, delta)
	if err != nil {
		return nil, fmt.Errorf("failed to commit usage: %w", err)
	}
	return usage, nil
}
