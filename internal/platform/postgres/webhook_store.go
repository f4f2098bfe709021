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

// PostgresWebhookStore implements the store.WebhookStore interface
// using a PostgreSQL database as the storage backend. The event_id primary
// key is the idempotency guarantee: a second insert for the same event
// fails with a unique violation regardless of interleaving.
type PostgresWebhookStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresWebhookStore creates a new PostgreSQL implementation of the
// WebhookStore interface. If logger is nil, a default logger will be used.
func NewPostgresWebhookStore(db store.DBTX, logger *slog.Logger) *PostgresWebhookStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresWebhookStore{
		db:     db,
		logger: logger.With(slog.String("component", "webhook_store")),
	}
}

// Ensure PostgresWebhookStore implements store.WebhookStore interface
var _ store.WebhookStore = (*PostgresWebhookStore)(nil)

// WithTx implements store.WebhookStore.WithTx
func (s *PostgresWebhookStore) WithTx(tx *sql.Tx) store.WebhookStore {
	return &PostgresWebhookStore{
		db:     tx,
		logger: s.logger,
	}
}

// IsProcessed implements store.WebhookStore.IsProcessed
func (s *PostgresWebhookStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT EXISTS (SELECT 1 FROM webhook_events WHERE event_id = $1)`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, eventID).Scan(&exists); err != nil {
		log.Error("failed to check webhook event ledger",
			slog.String("error", err.Error()),
			slog.String("event_id", eventID))
		return false, err
	}

	return exists, nil
}

// MarkProcessed implements store.WebhookStore.MarkProcessed
// Returns store.ErrWebhookEventExists if a row for the event ID already
// exists.
func (s *PostgresWebhookStore) MarkProcessed(ctx context.Context, event *domain.WebhookEvent) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO webhook_events (event_id, event_type, payload, processed_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		event.EventID,
		event.EventType,
		nullableJSON(event.Payload),
		event.ProcessedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			log.Debug("webhook event already recorded",
				slog.String("event_id", event.EventID))
			return store.ErrWebhookEventExists
		}

		log.Error("failed to record webhook event",
			slog.String("error", err.Error()),
			slog.String("event_id", event.EventID))
		return err
	}

	log.Debug("webhook event recorded",
		slog.String("event_id", event.EventID),
		slog.String("event_type", event.EventType))
	return nil
}

// PostgresSubscriptionStore implements the store.SubscriptionStore
// interface using a PostgreSQL database as the storage backend.
type PostgresSubscriptionStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresSubscriptionStore creates a new PostgreSQL implementation of
// the SubscriptionStore interface. If logger is nil, a default logger will
// be used.
func NewPostgresSubscriptionStore(db store.DBTX, logger *slog.Logger) *PostgresSubscriptionStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresSubscriptionStore{
		db:     db,
		logger: logger.With(slog.String("component", "subscription_store")),
	}
}

// Ensure PostgresSubscriptionStore implements store.SubscriptionStore
var _ store.SubscriptionStore = (*PostgresSubscriptionStore)(nil)

// WithTx implements store.SubscriptionStore.WithTx
func (s *PostgresSubscriptionStore) WithTx(tx *sql.Tx) store.SubscriptionStore {
	return &PostgresSubscriptionStore{
		db:     tx,
		logger: s.logger,
	}
}

// Upsert implements store.SubscriptionStore.Upsert
func (s *PostgresSubscriptionStore) Upsert(ctx context.Context, userID uuid.UUID, status domain.SubscriptionStatus) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if !domain.IsValidSubscriptionStatus(status) {
		log.Warn("invalid subscription status for upsert",
			slog.String("user_id", userID.String()),
			slog.String("status", string(status)))
		return domain.ErrInvalidSubscriptionStatus
	}

	query := `
		INSERT INTO subscriptions (user_id, status, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, userID, status, time.Now().UTC())
	if err != nil {
		log.Error("failed to upsert subscription",
			slog.String("error", err.Error()),
			slog.String("user_id", userID.String()),
			slog.String("status", string(status)))
		return err
	}

	log.Info("subscription status updated",
		slog.String("user_id", userID.String()),
		slog.String("status", string(status)))
	return nil
}
