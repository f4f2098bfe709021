package mocks

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/store"
)

// MockUsageStore implements store.UsageStore for testing
type MockUsageStore struct {
	// Function fields for customizable behavior
	GetOrCreateFn func(ctx context.Context, userID uuid.UUID) (*domain.UsageCounter, error)
	IncrementFn   func(ctx context.Context, userID uuid.UUID, delta store.UsageDelta) (*domain.UsageCounter, error)

	mu sync.Mutex

	// Data for default implementation
	Counters map[uuid.UUID]*domain.UsageCounter

	// Deltas records every increment applied through the default
	// implementation, in order.
	Deltas []store.UsageDelta

	GetError       error
	IncrementError error
}

// NewMockUsageStore creates a new mock store with initialized defaults
func NewMockUsageStore() *MockUsageStore {
	return &MockUsageStore{
		Counters: make(map[uuid.UUID]*domain.UsageCounter),
	}
}

// Ensure MockUsageStore implements store.UsageStore
var _ store.UsageStore = (*MockUsageStore)(nil)

// SetUsage seeds the counter for a user.
func (m *MockUsageStore) SetUsage(counter domain.UsageCounter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Counters[counter.UserID] = &counter
}

// GetOrCreate implements the UsageStore interface
func (m *MockUsageStore) GetOrCreate(ctx context.Context, userID uuid.UUID) (*domain.UsageCounter, error) {
	if m.GetOrCreateFn != nil {
		return m.GetOrCreateFn(ctx, userID)
	}
	if m.GetError != nil {
		return nil, m.GetError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	counter, ok := m.Counters[userID]
	if !ok {
		counter = &domain.UsageCounter{UserID: userID, UpdatedAt: time.Now().UTC()}
		m.Counters[userID] = counter
	}
	copied := *counter
	return &copied, nil
}

// Increment implements the UsageStore interface
func (m *MockUsageStore) Increment(ctx context.Context, userID uuid.UUID, delta store.UsageDelta) (*domain.UsageCounter, error) {
	if m.IncrementFn != nil {
		return m.IncrementFn(ctx, userID, delta)
	}
	if m.IncrementError != nil {
		return nil, m.IncrementError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	counter, ok := m.Counters[userID]
	if !ok {
		counter = &domain.UsageCounter{UserID: userID}
		m.Counters[userID] = counter
	}
	counter.LifetimeWeeklyGenerations += delta.WeeklyGenerations
	counter.LifetimeDailyRegenerations += delta.DailyRegenerations
	counter.TokensUsed += delta.Tokens
	counter.UpdatedAt = time.Now().UTC()
	m.Deltas = append(m.Deltas, delta)

	copied := *counter
	return &copied, nil
}

// WithTx implements the UsageStore interface; the mock ignores transactions.
func (m *MockUsageStore) WithTx(tx *sql.Tx) store.UsageStore {
	return m
}
