package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/platform/logger"
	"github.com/planforge/planforge-api/internal/store"
)

// PostgresPlanStore implements the store.PlanStore interface
// using a PostgreSQL database as the storage backend. Day and exercise
// content is stored as one JSON document per plan; the pipeline reads and
// writes plans whole, so there is nothing to gain from relational day rows.
type PostgresPlanStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresPlanStore creates a new PostgreSQL implementation of the
// PlanStore interface. If logger is nil, a default logger will be used.
func NewPostgresPlanStore(db store.DBTX, logger *slog.Logger) *PostgresPlanStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresPlanStore{
		db:     db,
		logger: logger.With(slog.String("component", "plan_store")),
	}
}

// Ensure PostgresPlanStore implements store.PlanStore interface
var _ store.PlanStore = (*PostgresPlanStore)(nil)

// WithTx implements store.PlanStore.WithTx
func (s *PostgresPlanStore) WithTx(tx *sql.Tx) store.PlanStore {
	return &PostgresPlanStore{
		db:     tx,
		logger: s.logger,
	}
}

// Create implements store.PlanStore.Create
// It saves a new plan to the database, handling domain validation.
func (s *PostgresPlanStore) Create(ctx context.Context, plan *domain.Plan) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := plan.Validate(); err != nil {
		log.Warn("plan validation failed during create",
			slog.String("error", err.Error()),
			slog.String("plan_id", plan.ID.String()))
		return err
	}

	days, err := json.Marshal(plan.Days)
	if err != nil {
		log.Error("failed to marshal plan days",
			slog.String("error", err.Error()),
			slog.String("plan_id", plan.ID.String()))
		return fmt.Errorf("failed to marshal plan days: %w", err)
	}

	query := `
		INSERT INTO plans (id, user_id, name, days, source_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		plan.ID,
		plan.UserID,
		plan.Name,
		days,
		plan.SourceID,
		plan.CreatedAt,
	)

	if err != nil {
		if isForeignKeyViolation(err) {
			log.Warn("foreign key violation during plan creation",
				slog.String("error", err.Error()),
				slog.String("plan_id", plan.ID.String()),
				slog.String("user_id", plan.UserID.String()))
			return fmt.Errorf("%w: user with ID %s not found",
				store.ErrInvalidEntity, plan.UserID)
		}

		log.Error("failed to create plan",
			slog.String("error", err.Error()),
			slog.String("plan_id", plan.ID.String()),
			slog.String("user_id", plan.UserID.String()))
		return err
	}

	log.Info("plan created successfully",
		slog.String("plan_id", plan.ID.String()),
		slog.String("user_id", plan.UserID.String()),
		slog.Int("days", len(plan.Days)))
	return nil
}

// GetByID implements store.PlanStore.GetByID
// Returns store.ErrPlanNotFound if the plan does not exist.
func (s *PostgresPlanStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, user_id, name, days, source_id, created_at
		FROM plans
		WHERE id = $1
	`

	var plan domain.Plan
	var days []byte

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&plan.ID,
		&plan.UserID,
		&plan.Name,
		&days,
		&plan.SourceID,
		&plan.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("plan not found", slog.String("plan_id", id.String()))
			return nil, store.ErrPlanNotFound
		}
		log.Error("failed to get plan by ID",
			slog.String("error", err.Error()),
			slog.String("plan_id", id.String()))
		return nil, err
	}

	if err := json.Unmarshal(days, &plan.Days); err != nil {
		log.Error("failed to unmarshal plan days",
			slog.String("error", err.Error()),
			slog.String("plan_id", id.String()))
		return nil, fmt.Errorf("failed to unmarshal plan days: %w", err)
	}

	return &plan, nil
}

// FindByUserID retrieves a user's plans, newest first. Used by the day
// regeneration flow to resolve which plan a day belongs to.
func (s *PostgresPlanStore) FindByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Plan, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, user_id, name, days, source_id, created_at
		FROM plans
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		log.Error("failed to query plans by user",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()))
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			log.Error("failed to close rows", slog.String("error", err.Error()))
		}
	}()

	plans := []*domain.Plan{}
	for rows.Next() {
		var plan domain.Plan
		var days []byte

		err := rows.Scan(
			&plan.ID,
			&plan.UserID,
			&plan.Name,
			&days,
			&plan.SourceID,
			&plan.CreatedAt,
		)
		if err != nil {
			log.Error("failed to scan plan row",
				slog.String("error", err.Error()))
			return nil, err
		}

		if err := json.Unmarshal(days, &plan.Days); err != nil {
			log.Error("failed to unmarshal plan days",
				slog.String("error", err.Error()),
				slog.String("plan_id", plan.ID.String()))
			return nil, fmt.Errorf("failed to unmarshal plan days: %w", err)
		}

		plans = append(plans, &plan)
	}

	if err := rows.Err(); err != nil {
		log.Error("error after scanning rows",
			slog.String("error", err.Error()))
		return nil, err
	}

	return plans, nil
}
