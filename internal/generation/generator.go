package generation

import (
	"context"

	"github.com/google/uuid"
	"github.com/planforge/planforge-api/internal/domain"
)

// ProgressFunc reports a generation milestone as a percentage (0-100) with
// a short human-readable label. Implementations of PlanGenerator call it as
// they pass noteworthy points; callers mirror the values to the job record
// and the progress broadcaster. It must never block.
type ProgressFunc func(percent int, milestone string)

// PlanGenerator defines the interface for producing workout plans.
// This interface serves as a boundary between the application core and
// external AI/LLM services, following the hexagonal architecture pattern.
// All methods return the complete resulting plan or an error; the pipeline
// propagates error messages without interpreting their content.
type PlanGenerator interface {
	// GenerateWeeklyPlan creates a fresh multi-day plan from the user's
	// profile text.
	GenerateWeeklyPlan(ctx context.Context, userID uuid.UUID, profile string, onProgress ProgressFunc) (*domain.Plan, error)

	// RegenerateWeeklyPlan produces a replacement plan informed by user
	// feedback on a previous plan.
	RegenerateWeeklyPlan(ctx context.Context, userID uuid.UUID, previousPlanID uuid.UUID, feedback string, onProgress ProgressFunc) (*domain.Plan, error)

	// RegenerateDay rebuilds a single day of an existing plan, honoring the
	// stated reason and preferred training styles. The returned plan carries
	// the rebuilt day and links back to the source plan.
	RegenerateDay(ctx context.Context, userID uuid.UUID, dayID uuid.UUID, reason string, styles []string, onProgress ProgressFunc) (*domain.Plan, error)
}
