package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/planforge/planforge-api/internal/domain"
)

// PlanStore persists generated plan artifacts.
type PlanStore interface {
	// Create saves a new plan. Day and exercise content is stored as a
	// single JSON document; the pipeline only needs the artifact back in
	// one piece.
	Create(ctx context.Context, plan *domain.Plan) error

	// GetByID retrieves a plan by its unique ID.
	// Returns ErrPlanNotFound if the plan does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error)

	// FindByUserID retrieves up to limit of the user's plans, newest first.
	FindByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Plan, error)

	// WithTx returns a new PlanStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) PlanStore
}
