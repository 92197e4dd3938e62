package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSupervise_RecoversPanicsAndErrors(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	clock := newStepClock()
	store, _ := newRecordedStore(t)
	engine, err := NewEngine(DefaultConfig(), store, nil, WithClock(clock), WithLogger(zap.New(core)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	calls := 0
	engine.supervise(ctx, process{
		name:    "flaky",
		backoff: 3 * time.Second,
		run: func(ctx context.Context) error {
			calls++
			switch calls {
			case 1:
				panic("sensor table corrupt")
			case 2:
				return errors.New("tree unavailable")
			case 3:
				return nil
			default:
				cancel()
				return ctx.Err()
			}
		},
	})

	assert.Equal(t, 4, calls)
	entries := logs.FilterMessage("loop failed, backing off").All()
	require.Len(t, entries, 3)
	assert.Equal(t, "flaky", entries[0].LoggerName)
	assert.Contains(t, entries[0].ContextMap()["error"], "panic: sensor table corrupt")
	assert.Equal(t, "tree unavailable", entries[1].ContextMap()["error"])
	assert.Equal(t, "flaky loop exited", entries[2].ContextMap()["error"])
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second, 3 * time.Second}, clock.Sleeps())
}

func TestEvery_StopsOnTickError(t *testing.T) {
	clock := newStepClock()
	store, _ := newRecordedStore(t)
	engine, err := NewEngine(DefaultConfig(), store, nil, WithClock(clock))
	require.NoError(t, err)

	ticks := 0
	boom := errors.New("boom")
	err = engine.every(time.Second, func(context.Context) error {
		ticks++
		if ticks == 3 {
			return boom
		}
		return nil
	})(context.Background())

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []time.Duration{time.Second, time.Second}, clock.Sleeps())
}
