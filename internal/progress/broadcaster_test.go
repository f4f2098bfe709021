package progress_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planforge/planforge-api/internal/progress"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBroadcaster(t *testing.T) *progress.RedisBroadcaster {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return progress.NewRedisBroadcaster(client, testLogger())
}

func waitForEvent(t *testing.T, events <-chan progress.Event) progress.Event {
	t.Helper()

	select {
	case event, ok := <-events:
		require.True(t, ok, "event stream closed unexpectedly")
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for progress event")
		return progress.Event{}
	}
}

func TestRedisBroadcaster_PublishReachesSubscriber(t *testing.T) {
	t.Parallel()

	b := newTestBroadcaster(t)
	userID := uuid.New()
	jobID := uuid.New()

	events, cancel, err := b.Subscribe(context.Background(), userID)
	require.NoError(t, err)
	defer cancel()

	b.Publish(context.Background(), userID, progress.Event{JobID: jobID, Progress: 30})

	got := waitForEvent(t, events)
	assert.Equal(t, jobID, got.JobID)
	assert.Equal(t, 30, got.Progress)
	assert.False(t, got.Complete)
}

func TestRedisBroadcaster_TerminalEventCarriesError(t *testing.T) {
	t.Parallel()

	b := newTestBroadcaster(t)
	userID := uuid.New()
	jobID := uuid.New()

	events, cancel, err := b.Subscribe(context.Background(), userID)
	require.NoError(t, err)
	defer cancel()

	b.Publish(context.Background(), userID, progress.Event{
		JobID:    jobID,
		Progress: 0,
		Complete: true,
		Error:    "generation failed",
	})

	got := waitForEvent(t, events)
	assert.True(t, got.Complete)
	assert.Equal(t, "generation failed", got.Error)
}

func TestRedisBroadcaster_EventsArriveInPublishOrder(t *testing.T) {
	t.Parallel()

	b := newTestBroadcaster(t)
	userID := uuid.New()
	jobID := uuid.New()

	events, cancel, err := b.Subscribe(context.Background(), userID)
	require.NoError(t, err)
	defer cancel()

	// One job's events must never be reordered: a subscriber seeing 70
	// before 30, or a milestone after the terminal event, would cache a
	// stale view of a finished job.
	milestones := []int{5, 30, 70, 95}
	for _, p := range milestones {
		b.Publish(context.Background(), userID, progress.Event{JobID: jobID, Progress: p})
	}
	b.Publish(context.Background(), userID, progress.Event{JobID: jobID, Progress: 100, Complete: true})

	for _, want := range milestones {
		got := waitForEvent(t, events)
		assert.Equal(t, want, got.Progress)
		assert.False(t, got.Complete)
	}

	last := waitForEvent(t, events)
	assert.Equal(t, 100, last.Progress)
	assert.True(t, last.Complete)
}

func TestRedisBroadcaster_PublishSurvivesCancelledCaller(t *testing.T) {
	t.Parallel()

	b := newTestBroadcaster(t)
	userID := uuid.New()
	jobID := uuid.New()

	events, cancel, err := b.Subscribe(context.Background(), userID)
	require.NoError(t, err)
	defer cancel()

	// A worker shutting down publishes its terminal event with an already
	// cancelled context; the event must still go out.
	callerCtx, cancelCaller := context.WithCancel(context.Background())
	cancelCaller()
	b.Publish(callerCtx, userID, progress.Event{JobID: jobID, Progress: 100, Complete: true})

	got := waitForEvent(t, events)
	assert.Equal(t, jobID, got.JobID)
	assert.True(t, got.Complete)
}

func TestRedisBroadcaster_ChannelsAreScopedPerUser(t *testing.T) {
	t.Parallel()

	b := newTestBroadcaster(t)
	subscriber := uuid.New()
	otherUser := uuid.New()

	events, cancel, err := b.Subscribe(context.Background(), subscriber)
	require.NoError(t, err)
	defer cancel()

	// An event for a different user must never reach this subscriber.
	b.Publish(context.Background(), otherUser, progress.Event{JobID: uuid.New(), Progress: 50})
	b.Publish(context.Background(), subscriber, progress.Event{JobID: uuid.New(), Progress: 75})

	got := waitForEvent(t, events)
	assert.Equal(t, 75, got.Progress)

	select {
	case extra := <-events:
		t.Fatalf("received unexpected event: %+v", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRedisBroadcaster_CancelClosesStream(t *testing.T) {
	t.Parallel()

	b := newTestBroadcaster(t)
	userID := uuid.New()

	events, cancel, err := b.Subscribe(context.Background(), userID)
	require.NoError(t, err)

	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok, "stream should be closed after cancel")
	case <-time.After(2 * time.Second):
		t.Fatal("stream was not closed after cancel")
	}
}

func TestRedisBroadcaster_MalformedPayloadIsSkipped(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	b := progress.NewRedisBroadcaster(client, testLogger())
	userID := uuid.New()
	jobID := uuid.New()

	events, cancel, err := b.Subscribe(context.Background(), userID)
	require.NoError(t, err)
	defer cancel()

	// Inject garbage directly onto the channel, then a valid event. The
	// subscriber must skip the garbage and deliver the valid one.
	channel := "progress:user:" + userID.String()
	require.NoError(t, client.Publish(context.Background(), channel, "not json").Err())

	b.Publish(context.Background(), userID, progress.Event{JobID: jobID, Progress: 15})

	got := waitForEvent(t, events)
	assert.Equal(t, jobID, got.JobID)
	assert.Equal(t, 15, got.Progress)
}
