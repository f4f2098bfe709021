package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for Plan.
var (
	ErrEmptyPlanID     = errors.New("plan ID cannot be empty")
	ErrEmptyPlanUserID = errors.New("plan user ID cannot be empty")
	ErrEmptyPlanName   = errors.New("plan name cannot be empty")
	ErrEmptyPlanDays   = errors.New("plan must contain at least one day")
)

// Plan is the artifact produced by a generation job: a multi-day workout
// plan. Jobs reference the plan they produced through their PlanID field.
type Plan struct {
	ID        uuid.UUID  `json:"id"`
	UserID    uuid.UUID  `json:"user_id"`
	Name      string     `json:"name"`
	Days      []PlanDay  `json:"days"`
	SourceID  *uuid.UUID `json:"source_id,omitempty"` // plan this one regenerated from
	CreatedAt time.Time  `json:"created_at"`
}

// PlanDay is one day of a plan.
type PlanDay struct {
	ID        uuid.UUID  `json:"id"`
	DayIndex  int        `json:"day_index"`
	Focus     string     `json:"focus"`
	Exercises []Exercise `json:"exercises"`
}

// Exercise is one prescribed exercise within a day.
type Exercise struct {
	Name  string `json:"name"`
	Sets  int    `json:"sets"`
	Reps  string `json:"reps"`
	Style string `json:"style,omitempty"`
}

// NewPlan creates a plan owned by the given user.
// Returns an error if validation fails.
func NewPlan(userID uuid.UUID, name string, days []PlanDay) (*Plan, error) {
	plan := &Plan{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      name,
		Days:      days,
		CreatedAt: time.Now().UTC(),
	}

	if err := plan.Validate(); err != nil {
		return nil, err
	}

	return plan, nil
}

// Validate checks if the Plan has valid data.
func (p *Plan) Validate() error {
	if p.ID == uuid.Nil {
		return ErrEmptyPlanID
	}
	if p.UserID == uuid.Nil {
		return ErrEmptyPlanUserID
	}
	if p.Name == "" {
		return ErrEmptyPlanName
	}
	if len(p.Days) == 0 {
		return ErrEmptyPlanDays
	}
	return nil
}

// ExerciseCount returns the total number of exercises across all days.
func (p *Plan) ExerciseCount() int {
	count := 0
	for _, day := range p.Days {
		count += len(day.Exercises)
	}
	return count
}
