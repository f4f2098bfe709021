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

// MockJobStore implements store.JobStore for testing
type MockJobStore struct {
	// Function fields for customizable behavior
	CreateFn               func(ctx context.Context, job *domain.GenerationJob) error
	GetByIDFn              func(ctx context.Context, id uuid.UUID) (*domain.GenerationJob, error)
	UpdateStatusFn         func(ctx context.Context, id uuid.UUID, update store.JobStatusUpdate) (*domain.GenerationJob, error)
	DeleteTerminalBeforeFn func(ctx context.Context, cutoff time.Time) (int64, error)

	mu sync.Mutex

	// Data for default implementation
	Jobs map[uuid.UUID]*domain.GenerationJob

	// Updates records every status update attempted through the default
	// implementation, in order, including ones rejected because the record
	// was missing or terminal.
	Updates []store.JobStatusUpdate

	CreateError error
	UpdateError error
}

// NewMockJobStore creates a new mock store with initialized defaults
func NewMockJobStore() *MockJobStore {
	return &MockJobStore{
		Jobs: make(map[uuid.UUID]*domain.GenerationJob),
	}
}

// Ensure MockJobStore implements store.JobStore
var _ store.JobStore = (*MockJobStore)(nil)

// Create implements the JobStore interface
func (m *MockJobStore) Create(ctx context.Context, job *domain.GenerationJob) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, job)
	}
	if m.CreateError != nil {
		return m.CreateError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Jobs[job.ID] = job
	return nil
}

// GetByID implements the JobStore interface
func (m *MockJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.GenerationJob, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.Jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return job, nil
}

// UpdateStatus implements the JobStore interface
func (m *MockJobStore) UpdateStatus(ctx context.Context, id uuid.UUID, update store.JobStatusUpdate) (*domain.GenerationJob, error) {
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(ctx, id, update)
	}
	if m.UpdateError != nil {
		return nil, m.UpdateError
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Updates = append(m.Updates, update)

	job, ok := m.Jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	if job.Status.Terminal() {
		// Terminal records are immutable; the real store's guarded UPDATE
		// matches no row.
		return nil, store.ErrJobNotFound
	}
	job.Status = update.Status
	job.Progress = update.Progress
	if update.Result != nil {
		job.Result = update.Result
	}
	if update.PlanID != nil {
		job.PlanID = update.PlanID
	}
	if update.Error != "" {
		job.Error = update.Error
	}
	job.UpdatedAt = time.Now().UTC()
	if update.Status.Terminal() && job.CompletedAt == nil {
		now := time.Now().UTC()
		job.CompletedAt = &now
	}
	return job, nil
}

// DeleteTerminalBefore implements the JobStore interface
func (m *MockJobStore) DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if m.DeleteTerminalBeforeFn != nil {
		return m.DeleteTerminalBeforeFn(ctx, cutoff)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, job := range m.Jobs {
		if job.Status.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(m.Jobs, id)
			deleted++
		}
	}
	return deleted, nil
}

// WithTx implements the JobStore interface; the mock ignores transactions.
func (m *MockJobStore) WithTx(tx *sql.Tx) store.JobStore {
	return m
}

// RecordedUpdates returns a copy of the updates applied so far.
func (m *MockJobStore) RecordedUpdates() []store.JobStatusUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.JobStatusUpdate, len(m.Updates))
	copy(out, m.Updates)
	return out
}
