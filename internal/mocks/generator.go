package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/planforge/planforge-api/internal/domain"
	"github.com/planforge/planforge-api/internal/generation"
)

// MockPlanGenerator implements generation.PlanGenerator for testing
type MockPlanGenerator struct {
	// Function fields for customizable behavior
	GenerateWeeklyPlanFn   func(ctx context.Context, userID uuid.UUID, profile string, onProgress generation.ProgressFunc) (*domain.Plan, error)
	RegenerateWeeklyPlanFn func(ctx context.Context, userID uuid.UUID, previousPlanID uuid.UUID, feedback string, onProgress generation.ProgressFunc) (*domain.Plan, error)
	RegenerateDayFn        func(ctx context.Context, userID uuid.UUID, dayID uuid.UUID, reason string, styles []string, onProgress generation.ProgressFunc) (*domain.Plan, error)

	mu sync.Mutex

	// Calls counts total invocations across all methods.
	Calls int
}

// NewMockPlanGenerator creates a new mock generator
func NewMockPlanGenerator() *MockPlanGenerator {
	return &MockPlanGenerator{}
}

// Ensure MockPlanGenerator implements generation.PlanGenerator
var _ generation.PlanGenerator = (*MockPlanGenerator)(nil)

func (m *MockPlanGenerator) called() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
}

// CallCount returns the number of generator invocations so far.
func (m *MockPlanGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// GenerateWeeklyPlan implements the PlanGenerator interface
func (m *MockPlanGenerator) GenerateWeeklyPlan(ctx context.Context, userID uuid.UUID, profile string, onProgress generation.ProgressFunc) (*domain.Plan, error) {
	m.called()
	if m.GenerateWeeklyPlanFn != nil {
		return m.GenerateWeeklyPlanFn(ctx, userID, profile, onProgress)
	}
	return nil, errors.New("GenerateWeeklyPlanFn not set")
}

// RegenerateWeeklyPlan implements the PlanGenerator interface
func (m *MockPlanGenerator) RegenerateWeeklyPlan(ctx context.Context, userID uuid.UUID, previousPlanID uuid.UUID, feedback string, onProgress generation.ProgressFunc) (*domain.Plan, error) {
	m.called()
	if m.RegenerateWeeklyPlanFn != nil {
		return m.RegenerateWeeklyPlanFn(ctx, userID, previousPlanID, feedback, onProgress)
	}
	return nil, errors.New("RegenerateWeeklyPlanFn not set")
}

// RegenerateDay implements the PlanGenerator interface
func (m *MockPlanGenerator) RegenerateDay(ctx context.Context, userID uuid.UUID, dayID uuid.UUID, reason string, styles []string, onProgress generation.ProgressFunc) (*domain.Plan, error) {
	m.called()
	if m.RegenerateDayFn != nil {
		return m.RegenerateDayFn(ctx, userID, dayID, reason, styles, onProgress)
	}
	return nil, errors.New("RegenerateDayFn not set")
}
