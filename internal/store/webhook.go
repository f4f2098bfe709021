package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/planforge/planforge-api/internal/domain"
)

// WebhookStore is the idempotency ledger for externally delivered billing
// events. Records are write-once; the existence of a row for an event ID is
// the sole idempotency check.
type WebhookStore interface {
	// IsProcessed reports whether the event has already been recorded.
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	// MarkProcessed records the event in the ledger. Returns
	// ErrWebhookEventExists if a row for the event ID already exists.
	MarkProcessed(ctx context.Context, event *domain.WebhookEvent) error

	// WithTx returns a new WebhookStore instance that uses the provided
	// transaction.
	WithTx(tx *sql.Tx) WebhookStore
}

// SubscriptionStore persists the billing standing that webhook events
// mutate.
type SubscriptionStore interface {
	// Upsert sets the user's subscription status, creating the row if it
	// does not exist.
	Upsert(ctx context.Context, userID uuid.UUID, status domain.SubscriptionStatus) error

	// WithTx returns a new SubscriptionStore instance that uses the
	// provided transaction.
	WithTx(tx *sql.Tx) SubscriptionStore
}
