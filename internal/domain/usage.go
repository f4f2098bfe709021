package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyUsageUserID indicates a usage counter without an owner.
var ErrEmptyUsageUserID = errors.New("usage counter user ID cannot be empty")

// UsageCounter tracks one user's lifetime consumption of paid generation
// operations. The counters are cumulative and never reset: "weekly" and
// "daily" name the operation being counted, not a rolling window. The
// lifetime_ prefix in the field names makes that explicit.
type UsageCounter struct {
	UserID                     uuid.UUID `json:"user_id"`
	LifetimeWeeklyGenerations  int       `json:"lifetime_weekly_generations"`
	LifetimeDailyRegenerations int       `json:"lifetime_daily_regenerations"`
	TokensUsed                 int       `json:"tokens_used"`
	UpdatedAt                  time.Time `json:"updated_at"`
}

// NewUsageCounter creates a zeroed counter for the given user.
func NewUsageCounter(userID uuid.UUID) (*UsageCounter, error) {
	if userID == uuid.Nil {
		return nil, ErrEmptyUsageUserID
	}
	return &UsageCounter{
		UserID:    userID,
		UpdatedAt: time.Now().UTC(),
	}, nil
}
