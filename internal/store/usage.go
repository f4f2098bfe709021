package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/planforge/planforge-api/internal/domain"
)

// UsageDelta is one atomic addition to a user's lifetime counters.
type UsageDelta struct {
	WeeklyGenerations  int
	DailyRegenerations int
	Tokens             int
}

// UsageStore defines the interface for lifetime usage counter persistence.
type UsageStore interface {
	// GetOrCreate retrieves the usage counter for the given user, creating
	// a zeroed row first if none exists. The create is idempotent under
	// concurrent callers.
	GetOrCreate(ctx context.Context, userID uuid.UUID) (*domain.UsageCounter, error)

	// Increment applies the delta to the user's counters as a single
	// UPDATE statement so concurrent commits cannot lose increments, and
	// returns the updated counter.
	Increment(ctx context.Context, userID uuid.UUID, delta UsageDelta) (*domain.UsageCounter, error)

	// WithTx returns a new UsageStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) UsageStore
}
