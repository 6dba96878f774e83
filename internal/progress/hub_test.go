package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
	closed bool
}

func (s *captureSink) Consume(_ context.Context, batch []Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, batch...)
	return nil
}

func (s *captureSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *captureSink) snapshot() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func (s *captureSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func TestHubDeliversToAllSinks(t *testing.T) {
	t.Parallel()

	first := &captureSink{}
	second := &captureSink{}
	hub := NewHub(Config{FlushInterval: 10 * time.Millisecond}, first, second)

	runID := uuid.New()
	for range 5 {
		hub.Emit(Event{RunID: runID, TS: time.Now(), Stage: StageThrottleWait, URL: "https://x"})
	}
	require.NoError(t, hub.Close(context.Background()))

	assert.Len(t, first.snapshot(), 5)
	assert.Len(t, second.snapshot(), 5)
	assert.True(t, first.isClosed())
	assert.True(t, second.isClosed())
	assert.Zero(t, hub.Dropped())
}

func TestHubDiscardsInvalidEvents(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)

	hub.Emit(Event{}) // no run id, no stage
	hub.Emit(Event{RunID: uuid.New(), TS: time.Now(), Stage: "BOGUS"})
	require.NoError(t, hub.Close(context.Background()))

	assert.Empty(t, sink.snapshot())
}

func TestHubDropsUnderBackpressure(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	sink := &blockingSink{release: block}
	hub := NewHub(Config{BufferSize: 1, FlushInterval: time.Millisecond}, sink)

	runID := uuid.New()
	for range 50 {
		hub.Emit(Event{RunID: runID, TS: time.Now(), Stage: StageThrottleWait, URL: "https://x"})
	}
	close(block)
	require.NoError(t, hub.Close(context.Background()))

	assert.Positive(t, hub.Dropped(), "a full buffer must drop, not block")
}

type blockingSink struct {
	release <-chan struct{}
}

func (s *blockingSink) Consume(ctx context.Context, _ []Event) error {
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	return nil
}

func (s *blockingSink) Close(context.Context) error { return nil }

func TestHubEmitAfterCloseIsNoop(t *testing.T) {
	t.Parallel()

	sink := &captureSink{}
	hub := NewHub(Config{}, sink)
	require.NoError(t, hub.Close(context.Background()))

	hub.Emit(Event{RunID: uuid.New(), TS: time.Now(), Stage: StageThrottleWait, URL: "https://x"})
	assert.Empty(t, sink.snapshot())
}

func TestHubCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	hub := NewHub(Config{}, &captureSink{})
	require.NoError(t, hub.Close(context.Background()))
	require.NoError(t, hub.Close(context.Background()))
}

func TestNilHubIsSafe(t *testing.T) {
	t.Parallel()

	var hub *Hub
	hub.Emit(Event{})
	assert.NoError(t, hub.Close(context.Background()))
}
