package task

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffWithJitter_Bounds(t *testing.T) {
	t.Parallel()

	base := 100 * time.Millisecond
	max := 2 * time.Second

	for attempt := 1; attempt <= 8; attempt++ {
		t.Run(fmt.Sprintf("attempt_%d", attempt), func(t *testing.T) {
			t.Parallel()

			expected := base * (1 << (attempt - 1))
			if expected > max {
				expected = max
			}

			// Jitter spreads the delay over [wait/2, wait).
			for i := 0; i < 50; i++ {
				delay := backoffWithJitter(base, max, attempt)
				assert.GreaterOrEqual(t, delay, expected/2)
				assert.Less(t, delay, expected)
			}
		})
	}
}

func TestBackoffWithJitter_NonPositiveAttempt(t *testing.T) {
	t.Parallel()

	base := 50 * time.Millisecond
	assert.Equal(t, base, backoffWithJitter(base, time.Second, 0))
	assert.Equal(t, base, backoffWithJitter(base, time.Second, -3))
}

func TestBackoffWithJitter_TinyBaseLeavesNoJitterRoom(t *testing.T) {
	t.Parallel()

	// A 1ns base halves to zero; the delay must come back without jitter
	// instead of panicking on an empty draw.
	assert.NotPanics(t, func() {
		assert.Equal(t, time.Nanosecond, backoffWithJitter(time.Nanosecond, time.Second, 1))
	})
}

func TestBackoffWithJitter_CapsAtMax(t *testing.T) {
	t.Parallel()

	base := 1 * time.Second
	max := 4 * time.Second

	delay := backoffWithJitter(base, max, 10)
	assert.GreaterOrEqual(t, delay, max/2)
	assert.Less(t, delay, max)
}
