package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/storyvoice/backend/internal/domain/shared"
	"github.com/storyvoice/backend/internal/domain/voice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recordingHandler struct {
	mu     sync.Mutex
	types  []string
	seen   []shared.DomainEvent
	err    error
	panics bool
}

func (h *recordingHandler) Handle(_ context.Context, ev shared.DomainEvent) error {
	if h.panics {
		panic("boom")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seen = append(h.seen, ev)
	return h.err
}

func (h *recordingHandler) EventTypes() []string { return h.types }

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.seen)
}

func usageEvent(t *testing.T) *voice.UsageTrackedEvent {
	t.Helper()
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	record, err := voice.NewUsageRecord(uuid.New(), now)
	require.NoError(t, err)
	require.NoError(t, record.Increment(voice.ResourceSynthesis, now))
	return voice.NewUsageTrackedEvent(record, voice.ResourceSynthesis, 1)
}

func TestInMemoryEventBus_Publish(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers by type and to wildcard handlers", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		typed := &recordingHandler{types: []string{voice.EventTypeUsageTracked}}
		other := &recordingHandler{types: []string{"story.generated"}}
		all := &recordingHandler{}
		bus.Subscribe(typed)
		bus.Subscribe(other)
		bus.Subscribe(all)

		require.NoError(t, bus.Publish(ctx, usageEvent(t)))

		assert.Equal(t, 1, typed.count())
		assert.Equal(t, 0, other.count())
		assert.Equal(t, 1, all.count())
	})

	t.Run("handler failure and panic are isolated", func(t *testing.T) {
		core, logs := observer.New(zapcore.ErrorLevel)
		bus := NewInMemoryEventBus(zap.New(core))
		failing := &recordingHandler{err: errors.New("analytics down")}
		panicking := &recordingHandler{panics: true}
		healthy := &recordingHandler{}
		bus.Subscribe(failing)
		bus.Subscribe(panicking)
		bus.Subscribe(healthy)

		err := bus.Publish(ctx, usageEvent(t), usageEvent(t))

		require.NoError(t, err)
		assert.Equal(t, 2, healthy.count())
		assert.Equal(t, 4, logs.FilterMessage("Event handler failed").Len())
	})

	t.Run("unsubscribe stops delivery", func(t *testing.T) {
		bus := NewInMemoryEventBus(zap.NewNop())
		h := &recordingHandler{types: []string{voice.EventTypeUsageTracked}}
		bus.Subscribe(h)
		bus.Unsubscribe(h)

		require.NoError(t, bus.Publish(ctx, usageEvent(t)))
		assert.Equal(t, 0, h.count())
	})
}

func TestSerializer_RoundTrip(t *testing.T) {
	s := NewSerializer()
	s.Register(voice.EventTypeUsageTracked, &voice.UsageTrackedEvent{})
	ev := usageEvent(t)

	data, err := s.Encode(ev)
	require.NoError(t, err)

	decoded, err := s.Decode(voice.EventTypeUsageTracked, data)
	require.NoError(t, err)
	got, ok := decoded.(*voice.UsageTrackedEvent)
	require.True(t, ok)
	assert.Equal(t, ev.EventID(), got.EventID())
	assert.Equal(t, ev.AccountID(), got.AccountID())
	assert.Equal(t, voice.ResourceSynthesis, got.Resource)
	assert.Equal(t, int64(1), got.Count)

	_, err = s.Decode("unknown.type", data)
	assert.Error(t, err)
}

type stubPublisher struct {
	calls int
	err   error
}

func (p *stubPublisher) Publish(context.Context, ...shared.DomainEvent) error {
	p.calls++
	return p.err
}

func TestFanOutPublisher(t *testing.T) {
	first := &stubPublisher{err: errors.New("nats unavailable")}
	second := &stubPublisher{}
	f := NewFanOutPublisher(first, nil, second)

	err := f.Publish(context.Background(), usageEvent(t))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats unavailable")
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, second.calls)
}
