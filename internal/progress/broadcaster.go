// Package progress provides best-effort fan-out of generation progress
// events to subscribers grouped by user. Events are a cache-coherency hint
// only: there is no delivery guarantee, no buffering of missed events, and
// no persistence. The job record remains the single source of truth, and a
// client that reconnects reconstructs state by polling it.
package progress

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/planforge/planforge-api/internal/telemetry"
)

// Event is one progress update for a job, published to the owning user's
// channel.
type Event struct {
	JobID    uuid.UUID `json:"job_id"`
	Progress int       `json:"progress"`
	Complete bool      `json:"complete"`
	Error    string    `json:"error,omitempty"`
}

// Broadcaster fans progress events out to per-user channels.
type Broadcaster interface {
	// Publish sends the event to all current subscribers of the user's
	// channel. It is best-effort: failures are logged, not returned, and a
	// slow broker holds the caller for at most a short timeout. Events
	// published from one goroutine reach subscribers in publish order.
	Publish(ctx context.Context, userID uuid.UUID, event Event)

	// Subscribe joins the user's channel and returns a stream of events
	// published after this call. The returned cancel function leaves the
	// channel and closes the stream.
	Subscribe(ctx context.Context, userID uuid.UUID) (<-chan Event, func(), error)
}

// publishTimeout bounds how long a fire-and-forget publish may hold a
// broker connection.
const publishTimeout = 2 * time.Second

// RedisBroadcaster implements Broadcaster on Redis pub/sub. Each user has
// one channel; Redis itself provides the no-persistence, current-
// subscribers-only semantics the pipeline wants.
type RedisBroadcaster struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRedisBroadcaster creates a broadcaster on the given Redis client.
func NewRedisBroadcaster(client *redis.Client, logger *slog.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{
		client: client,
		logger: logger.With("component", "progress_broadcaster"),
	}
}

// Ensure RedisBroadcaster implements Broadcaster.
var _ Broadcaster = (*RedisBroadcaster)(nil)

func channelFor(userID uuid.UUID) string {
	return "progress:user:" + userID.String()
}

// Publish implements Broadcaster.Publish. The PUBLISH is synchronous so
// back-to-back events for one job reach the broker in emission order — a
// subscriber must never see a milestone after the terminal event. The
// timeout caps how long a slow broker can hold the worker; the context is
// detached from the caller's cancellation so the terminal event still goes
// out while the worker is shutting down.
func (b *RedisBroadcaster) Publish(ctx context.Context, userID uuid.UUID, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("failed to marshal progress event",
			"job_id", event.JobID,
			"user_id", userID,
			"error", err)
		return
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := b.client.Publish(pubCtx, channelFor(userID), payload).Err(); err != nil {
		b.logger.Warn("failed to publish progress event",
			"job_id", event.JobID,
			"user_id", userID,
			"error", err)
		return
	}
	telemetry.ProgressPublishes.Inc()
}

// Subscribe implements Broadcaster.Subscribe.
func (b *RedisBroadcaster) Subscribe(ctx context.Context, userID uuid.UUID) (<-chan Event, func(), error) {
	sub := b.client.Subscribe(ctx, channelFor(userID))

	// Force the subscription onto the wire before returning so callers do
	// not miss events published immediately after Subscribe.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	events := make(chan Event)
	done := make(chan struct{})

	go func() {
		defer close(events)
		msgs := sub.Channel()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event Event
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					b.logger.Warn("discarding malformed progress event",
						"user_id", userID,
						"error", err)
					continue
				}
				select {
				case events <- event:
				case <-done:
					return
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	cancel := func() {
		close(done)
		if err := sub.Close(); err != nil {
			b.logger.Debug("failed to close progress subscription", "error", err)
		}
	}

	return events, cancel, nil
}
