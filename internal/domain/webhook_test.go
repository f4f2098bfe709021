package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planforge/planforge-api/internal/domain"
)

func TestNewWebhookEvent(t *testing.T) {
	t.Parallel()

	t.Run("creates event record", func(t *testing.T) {
		t.Parallel()

		event, err := domain.NewWebhookEvent("evt_123", "subscription.updated", json.RawMessage(`{"plan":"pro"}`))
		require.NoError(t, err)

		assert.Equal(t, "evt_123", event.EventID)
		assert.Equal(t, "subscription.updated", event.EventType)
		assert.False(t, event.ProcessedAt.IsZero())
	})

	t.Run("rejects empty event ID", func(t *testing.T) {
		t.Parallel()

		_, err := domain.NewWebhookEvent("", "subscription.updated", nil)
		assert.ErrorIs(t, err, domain.ErrEmptyWebhookEventID)
	})

	t.Run("rejects empty event type", func(t *testing.T) {
		t.Parallel()

		_, err := domain.NewWebhookEvent("evt_123", "", nil)
		assert.ErrorIs(t, err, domain.ErrEmptyWebhookEventType)
	})
}

func TestIsValidSubscriptionStatus(t *testing.T) {
	t.Parallel()

	assert.True(t, domain.IsValidSubscriptionStatus(domain.SubscriptionStatusActive))
	assert.True(t, domain.IsValidSubscriptionStatus(domain.SubscriptionStatusPastDue))
	assert.True(t, domain.IsValidSubscriptionStatus(domain.SubscriptionStatusCanceled))
	assert.False(t, domain.IsValidSubscriptionStatus(domain.SubscriptionStatus("trialing")))
}
