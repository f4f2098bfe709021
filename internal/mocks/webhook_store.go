package mocks

import (
	"context"
	"database/sql"
	"sync"

	"github.com/google/uuid"
	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/store"
)

// MockWebhookStore implements store.WebhookStore for testing
type MockWebhookStore struct {
	// Function fields for customizable behavior
	IsProcessedFn   func(ctx context.Context, eventID string) (bool, error)
	MarkProcessedFn func(ctx context.Context, event *domain.WebhookEvent) error

	mu sync.Mutex

	// Data for default implementation
	Events map[string]*domain.WebhookEvent

	IsProcessedError   error
	MarkProcessedError error
}

// NewMockWebhookStore creates a new mock store with initialized defaults
func NewMockWebhookStore() *MockWebhookStore {
	return &MockWebhookStore{
		Events: make(map[string]*domain.WebhookEvent),
	}
}

// Ensure MockWebhookStore implements store.WebhookStore
var _ store.WebhookStore = (*MockWebhookStore)(nil)

// IsProcessed implements the WebhookStore interface
func (m *MockWebhookStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	if m.IsProcessedFn != nil {
		return m.IsProcessedFn(ctx, eventID)
	}
	if m.IsProcessedError != nil {
		return false, m.IsProcessedError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Events[eventID]
	return ok, nil
}

// MarkProcessed implements the WebhookStore interface
func (m *MockWebhookStore) MarkProcessed(ctx context.Context, event *domain.WebhookEvent) error {
	if m.MarkProcessedFn != nil {
		return m.MarkProcessedFn(ctx, event)
	}
	if m.MarkProcessedError != nil {
		return m.MarkProcessedError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Events[event.EventID]; ok {
		return store.ErrWebhookEventExists
	}
	m.Events[event.EventID] = event
	return nil
}

// WithTx implements the WebhookStore interface; the mock ignores
// transactions.
func (m *MockWebhookStore) WithTx(tx *sql.Tx) store.WebhookStore {
	return m
}

// MockSubscriptionStore implements store.SubscriptionStore for testing
type MockSubscriptionStore struct {
	// Function fields for customizable behavior
	UpsertFn func(ctx context.Context, userID uuid.UUID, status domain.SubscriptionStatus) error

	mu sync.Mutex

	// Data for default implementation
	Statuses map[uuid.UUID]domain.SubscriptionStatus

	UpsertError error
}

// NewMockSubscriptionStore creates a new mock store with initialized defaults
func NewMockSubscriptionStore() *MockSubscriptionStore {
	return &MockSubscriptionStore{
		Statuses: make(map[uuid.UUID]domain.SubscriptionStatus),
	}
}

// Ensure MockSubscriptionStore implements store.SubscriptionStore
var _ store.SubscriptionStore = (*MockSubscriptionStore)(nil)

// Upsert implements the SubscriptionStore interface
func (m *MockSubscriptionStore) Upsert(ctx context.Context, userID uuid.UUID, status domain.SubscriptionStatus) error {
	if m.UpsertFn != nil {
		return m.UpsertFn(ctx, userID, status)
	}
	if m.UpsertError != nil {
		return m.UpsertError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Statuses[userID] = status
	return nil
}

// StatusFor returns the stored status for a user.
func (m *MockSubscriptionStore) StatusFor(userID uuid.UUID) (domain.SubscriptionStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	status, ok := m.Statuses[userID]
	return status, ok
}

// WithTx implements the SubscriptionStore interface; the mock ignores
// transactions.
func (m *MockSubscriptionStore) WithTx(tx *sql.Tx) store.SubscriptionStore {
	return m
}
