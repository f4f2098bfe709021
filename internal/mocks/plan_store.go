package mocks

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/store"
)

// MockPlanStore implements store.PlanStore for testing
type MockPlanStore struct {
	// Function fields for customizable behavior
	CreateFn       func(ctx context.Context, plan *domain.Plan) error
	GetByIDFn      func(ctx context.Context, id uuid.UUID) (*domain.Plan, error)
	FindByUserIDFn func(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Plan, error)

	mu sync.Mutex

	// Data for default implementation
	Plans map[uuid.UUID]*domain.Plan

	CreateError error
}

// NewMockPlanStore creates a new mock store with initialized defaults
func NewMockPlanStore() *MockPlanStore {
	return &MockPlanStore{
		Plans: make(map[uuid.UUID]*domain.Plan),
	}
}

// Ensure MockPlanStore implements store.PlanStore
var _ store.PlanStore = (*MockPlanStore)(nil)

// Create implements the PlanStore interface
func (m *MockPlanStore) Create(ctx context.Context, plan *domain.Plan) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, plan)
	}
	if m.CreateError != nil {
		return m.CreateError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Plans[plan.ID] = plan
	return nil
}

// GetByID implements the PlanStore interface
func (m *MockPlanStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.Plans[id]
	if !ok {
		return nil, store.ErrPlanNotFound
	}
	return plan, nil
}

// FindByUserID implements the PlanStore interface
func (m *MockPlanStore) FindByUserID(ctx context.Context, userID uuid.UUID, limit int) ([]*domain.Plan, error) {
	if m.FindByUserIDFn != nil {
		return m.FindByUserIDFn(ctx, userID, limit)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var plans []*domain.Plan
	for _, plan := range m.Plans {
		if plan.UserID == userID {
			plans = append(plans, plan)
		}
	}
	sort.Slice(plans, func(i, j int) bool {
		return plans[i].CreatedAt.After(plans[j].CreatedAt)
	})
	if limit > 0 && len(plans) > limit {
		plans = plans[:limit]
	}
	return plans, nil
}

// WithTx implements the PlanStore interface; the mock ignores transactions.
func (m *MockPlanStore) WithTx(tx *sql.Tx) store.PlanStore {
	return m
}
