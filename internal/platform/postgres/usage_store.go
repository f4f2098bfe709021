package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/platform/logger"
	"github.com/planforge/planforge-api/internal/store"
)

// PostgresUsageStore implements the store.UsageStore interface
// using a PostgreSQL database as the storage backend.
type PostgresUsageStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresUsageStore creates a new PostgreSQL implementation of the
// UsageStore interface. If logger is nil, a default logger will be used.
func NewPostgresUsageStore(db store.DBTX, logger *slog.Logger) *PostgresUsageStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresUsageStore{
		db:     db,
		logger: logger.With(slog.String("component", "usage_store")),
	}
}

// Ensure PostgresUsageStore implements store.UsageStore interface
var _ store.UsageStore = (*PostgresUsageStore)(nil)

// WithTx implements store.UsageStore.WithTx
func (s *PostgresUsageStore) WithTx(tx *sql.Tx) store.UsageStore {
	return &PostgresUsageStore{
		db:     tx,
		logger: s.logger,
	}
}

// GetOrCreate implements store.UsageStore.GetOrCreate
// The insert uses ON CONFLICT DO NOTHING so concurrent first calls for the
// same user are race-free; whichever insert loses simply reads the row the
// winner created.
func (s *PostgresUsageStore) GetOrCreate(ctx context.Context, userID uuid.UUID) (*domain.UsageCounter, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	insert := `
		INSERT INTO usage_counters
			(user_id, lifetime_weekly_generations, lifetime_daily_regenerations,
			 tokens_used, updated_at)
		VALUES ($1, 0, 0, 0, $2)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := s.db.ExecContext(ctx, insert, userID, time.Now().UTC()); err != nil {
		log.Error("failed to ensure usage counter row",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, err
	}

	query := `
		SELECT user_id, lifetime_weekly_generations, lifetime_daily_regenerations,
		       tokens_used, updated_at
		FROM usage_counters
		WHERE user_id = $1
	`

	var usage domain.UsageCounter
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&usage.UserID,
		&usage.LifetimeWeeklyGenerations,
		&usage.LifetimeDailyRegenerations,
		&usage.TokensUsed,
		&usage.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to get usage counter",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, err
	}

	return &usage, nil
}

// Increment implements store.UsageStore.Increment
// The delta is applied in a single UPDATE so concurrent commits for the
// same user serialize on the row instead of losing increments.
func (s *PostgresUsageStore) Increment(ctx context.Context, userID uuid.UUID, delta store.UsageDelta) (*domain.UsageCounter, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	// Make sure the row exists before incrementing it. First-ever commit
	// for a user otherwise updates zero rows.
	if _, err := s.GetOrCreate(ctx, userID); err != nil {
		return nil, err
	}

	query := `
		UPDATE usage_counters
		SET lifetime_weekly_generations = lifetime_weekly_generations + $1,
		    lifetime_daily_regenerations = lifetime_daily_regenerations + $2,
		    tokens_used = tokens_used + $3,
		    updated_at = $4
		WHERE user_id = $5
		RETURNING user_id, lifetime_weekly_generations,
		          lifetime_daily_regenerations, tokens_used, updated_at
	`

	var usage domain.UsageCounter
	err := s.db.QueryRowContext(
		ctx,
		query,
		delta.WeeklyGenerations,
		delta.DailyRegenerations,
		delta.Tokens,
		time.Now().UTC(),
		userID,
	).Scan(
		&usage.UserID,
		&usage.LifetimeWeeklyGenerations,
		&usage.LifetimeDailyRegenerations,
		&usage.TokensUsed,
		&usage.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to increment usage counters",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, err
	}

	log.Debug("usage counters incremented",
		slog.String("user_id", userID.String()),
		slog.Int("lifetime_weekly_generations", usage.LifetimeWeeklyGenerations),
		slog.Int("lifetime_daily_regenerations", usage.LifetimeDailyRegenerations),
		slog.Int("tokens_used", usage.TokensUsed))
	return &usage, nil
}
