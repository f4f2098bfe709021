package task

import (
	"fmt"

	"github.com/planforge/planforge-api/internal/domain"
)

// Registry maps each job type to its processor and worker concurrency.
// It is constructed explicitly at process start and handed to the runner by
// reference; there is no process-wide mutable registry. The job type set is
// closed, so a fully built registry covers every type the API can submit.
type Registry struct {
	entries map[domain.JobType]registration
}

type registration struct {
	processor   Processor
	concurrency int
}

// NewRegistry creates an empty processor registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[domain.JobType]registration),
	}
}

// Register binds a processor and concurrency to a job type.
// Registering the same type twice is a wiring bug and returns an error.
func (r *Registry) Register(jobType domain.JobType, concurrency int, p Processor) error {
	if p == nil {
		return fmt.Errorf("processor for %q cannot be nil", jobType)
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if _, exists := r.entries[jobType]; exists {
		return fmt.Errorf("processor already registered for job type %q", jobType)
	}
	r.entries[jobType] = registration{processor: p, concurrency: concurrency}
	return nil
}

// Lookup returns the registration for a job type.
func (r *Registry) Lookup(jobType domain.JobType) (Processor, bool) {
	reg, ok := r.entries[jobType]
	if !ok {
		return nil, false
	}
	return reg.processor, true
}

// Types returns all registered job types.
func (r *Registry) Types() []domain.JobType {
	types := make([]domain.JobType, 0, len(r.entries))
	for t := range r.entries {
		types = append(types, t)
	}
	return types
}

func (r *Registry) concurrency(jobType domain.JobType) int {
	return r.entries[jobType].concurrency
}
