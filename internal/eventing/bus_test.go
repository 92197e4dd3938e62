package eventing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lineStopped struct {
	RunID      string
	OccurredAt time.Time
}

type heartbeat struct{}

func TestBuildEnvelope_TakesMetadataFromEvent(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.FixedZone("CET", 3600))
	env, err := BuildEnvelope(lineStopped{RunID: "run-9", OccurredAt: at}, Meta{})
	require.NoError(t, err)

	assert.Equal(t, "eventing.lineStopped", env.EventType)
	assert.Equal(t, "run-9", env.CorrelationID)
	assert.True(t, env.OccurredAt.Equal(at))
	assert.Equal(t, time.UTC, env.OccurredAt.Location())
	assert.NotEmpty(t, env.EventID)

	env, err = BuildEnvelope(&heartbeat{}, Meta{EventID: "evt-1"})
	require.NoError(t, err)
	assert.Equal(t, "eventing.heartbeat", env.EventType)
	assert.Equal(t, "evt-1", env.CorrelationID, "falls back to the event id")

	_, err = BuildEnvelope(nil, Meta{})
	assert.ErrorIs(t, err, ErrNilEvent)
}

func TestInMemoryBus_DispatchOrder(t *testing.T) {
	bus := NewInMemoryBus()
	var calls []string
	Subscribe(bus, func(_ context.Context, event lineStopped, env Envelope) error {
		calls = append(calls, "typed:"+event.RunID)
		return nil
	})
	bus.SubscribeAll(func(_ context.Context, env Envelope) error {
		calls = append(calls, "all:"+env.EventType)
		return nil
	})

	require.NoError(t, bus.Publish(context.Background(), lineStopped{RunID: "r1"}, Meta{}))
	require.NoError(t, bus.Publish(context.Background(), &lineStopped{RunID: "r2"}, Meta{}))
	require.NoError(t, bus.Publish(context.Background(), heartbeat{}, Meta{}))

	assert.Equal(t, []string{
		"typed:r1", "all:eventing.lineStopped",
		"typed:r2", "all:eventing.lineStopped",
		"all:eventing.heartbeat",
	}, calls)
}

func TestInMemoryBus_ReturnsFirstErrorAfterAllHandlers(t *testing.T) {
	bus := NewInMemoryBus()
	first := errors.New("first")
	ran := 0
	bus.Subscribe(EventTypeOf[heartbeat](), func(context.Context, Envelope) error { ran++; return first })
	bus.Subscribe(EventTypeOf[heartbeat](), func(context.Context, Envelope) error { ran++; return errors.New("second") })

	err := bus.Publish(context.Background(), heartbeat{}, Meta{})
	assert.ErrorIs(t, err, first)
	assert.Equal(t, 2, ran)
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), heartbeat{}, Meta{}))
}
