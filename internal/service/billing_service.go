package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/store"
	"github.com/planforge/planforge-api/internal/telemetry"
)

// BillingEvent is one parsed webhook delivery from the billing provider.
type BillingEvent struct {
	EventID   string
	EventType string
	UserID    uuid.UUID
	Status    domain.SubscriptionStatus
	Payload   json.RawMessage
}

// BillingService applies externally delivered billing events exactly once.
type BillingService interface {
	// ProcessEvent applies the event unless the idempotency ledger has seen
	// its ID before. It reports whether the event was applied; a duplicate
	// returns (false, nil) so the caller can acknowledge the delivery.
	ProcessEvent(ctx context.Context, event BillingEvent) (bool, error)
}

// billingServiceImpl implements the BillingService interface.
type billingServiceImpl struct {
	db            *sql.DB
	webhooks      store.WebhookStore
	subscriptions store.SubscriptionStore
	logger        *slog.Logger
}

// NewBillingService creates a new BillingService.
// It returns an error if any of the required dependencies are nil.
func NewBillingService(
	db *sql.DB,
	webhooks store.WebhookStore,
	subscriptions store.SubscriptionStore,
	logger *slog.Logger,
) (BillingService, error) {
	if db == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "db cannot be nil"}
	}
	if webhooks == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "webhooks cannot be nil"}
	}
	if subscriptions == nil {
		return nil, &ServiceError{Operation: "create_service", Message: "subscriptions cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &billingServiceImpl{
		db:            db,
		webhooks:      webhooks,
		subscriptions: subscriptions,
		logger:        logger.With("component", "billing_service"),
	}, nil
}

// ProcessEvent implements BillingService.ProcessEvent.
//
// The check-then-apply sequence is not atomic: two concurrent deliveries of
// the same event can both pass IsProcessed. The ledger insert inside the
// transaction is the real guard — whichever delivery loses the unique
// constraint rolls back its mutation, so the event still applies exactly
// once. The upfront check just short-circuits the common retry case.
func (s *billingServiceImpl) ProcessEvent(ctx context.Context, event BillingEvent) (bool, error) {
	processed, err := s.webhooks.IsProcessed(ctx, event.EventID)
	if err != nil {
		return false, &ServiceError{Operation: "process_event", Message: "failed to check event ledger", Err: err}
	}
	if processed {
		telemetry.WebhookDuplicates.Inc()
		s.logger.Info("skipping duplicate billing event",
			"event_id", event.EventID,
			"event_type", event.EventType)
		return false, nil
	}

	record, err := domain.NewWebhookEvent(event.EventID, event.EventType, event.Payload)
	if err != nil {
		return false, &ServiceError{Operation: "process_event", Message: "invalid event", Err: err}
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := s.subscriptions.WithTx(tx).Upsert(ctx, event.UserID, event.Status); err != nil {
			return err
		}
		return s.webhooks.WithTx(tx).MarkProcessed(ctx, record)
	})
	if err != nil {
		if errors.Is(err, store.ErrWebhookEventExists) {
			// Lost the race with a concurrent delivery of the same event.
			telemetry.WebhookDuplicates.Inc()
			s.logger.Info("billing event applied by concurrent delivery",
				"event_id", event.EventID)
			return false, nil
		}
		return false, &ServiceError{Operation: "process_event", Message: "failed to apply event", Err: err}
	}

	s.logger.Info("billing event applied",
		"event_id", event.EventID,
		"event_type", event.EventType,
		"user_id", event.UserID,
		"status", event.Status)
	return true, nil
}
