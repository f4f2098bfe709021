package domain

import (
	"encoding/json"
	"errors"
	"time"
)

// Common validation errors for WebhookEvent.
var (
	ErrEmptyWebhookEventID       = errors.New("webhook event ID cannot be empty")
	ErrEmptyWebhookEventType     = errors.New("webhook event type cannot be empty")
	ErrInvalidSubscriptionStatus = errors.New("invalid subscription status")
)

// WebhookEvent records one externally delivered billing event. A row's
// existence for an event ID is the sole idempotency check: records are
// write-once and never updated.
type WebhookEvent struct {
	EventID     string          `json:"event_id"`
	EventType   string          `json:"event_type"`
	Payload     json.RawMessage `json:"payload"`
	ProcessedAt time.Time       `json:"processed_at"`
}

// NewWebhookEvent creates a processed-event record for the ledger.
func NewWebhookEvent(eventID, eventType string, payload json.RawMessage) (*WebhookEvent, error) {
	if eventID == "" {
		return nil, ErrEmptyWebhookEventID
	}
	if eventType == "" {
		return nil, ErrEmptyWebhookEventType
	}
	return &WebhookEvent{
		EventID:     eventID,
		EventType:   eventType,
		Payload:     payload,
		ProcessedAt: time.Now().UTC(),
	}, nil
}

// SubscriptionStatus is the billing standing of a user's subscription,
// mutated only by billing webhook events.
type SubscriptionStatus string

// Possible subscription status values.
const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// IsValidSubscriptionStatus checks if the given status is a known value.
func IsValidSubscriptionStatus(s SubscriptionStatus) bool {
	switch s {
	case SubscriptionStatusActive, SubscriptionStatusPastDue, SubscriptionStatusCanceled:
		return true
	default:
		return false
	}
}
