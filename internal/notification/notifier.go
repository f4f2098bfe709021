// Package notification defines the boundary to the external notification
// dispatcher that alerts users when a generation job reaches a terminal
// state. Delivery is fire-and-forget: failures are logged, never escalated,
// and never affect the job outcome.
package notification

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Notifier dispatches terminal-state notifications to a user.
type Notifier interface {
	// NotifySuccess alerts the user that their plan is ready.
	NotifySuccess(ctx context.Context, userID uuid.UUID, planName string, planID uuid.UUID) error

	// NotifyFailure alerts the user that generation failed for good.
	NotifyFailure(ctx context.Context, userID uuid.UUID, message string) error
}

// LogNotifier is a Notifier that records notifications in the log. It
// stands in for the real push/email dispatcher, which is owned by another
// service; swapping it out is a wiring change in main.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{
		logger: logger.With("component", "notifier"),
	}
}

// Ensure LogNotifier implements Notifier.
var _ Notifier = (*LogNotifier)(nil)

// NotifySuccess implements Notifier.NotifySuccess.
func (n *LogNotifier) NotifySuccess(ctx context.Context, userID uuid.UUID, planName string, planID uuid.UUID) error {
	n.logger.InfoContext(ctx, "plan ready notification",
		"user_id", userID,
		"plan_id", planID,
		"plan_name", planName)
	return nil
}

// NotifyFailure implements Notifier.NotifyFailure.
func (n *LogNotifier) NotifyFailure(ctx context.Context, userID uuid.UUID, message string) error {
	n.logger.InfoContext(ctx, "plan generation failed notification",
		"user_id", userID,
		"message", message)
	return nil
}
