package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	simulation "linesim/internal/simulation/domain"
	"linesim/internal/tags/catalog"
	tags "linesim/internal/tags/domain"
)

func TestRunner_AlarmFloodScript(t *testing.T) {
	clock := newStepClock()
	events, bus := newEventLog()
	runner, gate, store, sink := newTestRunner(t, clock, bus)

	result, err := runner.Run(context.Background(), simulation.ScenarioAlarmFlood)
	require.NoError(t, err)
	assert.True(t, result.Completed)
	assert.Equal(t, simulation.ScenarioAlarmFlood, result.Scenario)
	assert.Equal(t, 10*time.Second+25*time.Millisecond, result.FinishedAt.Sub(result.StartedAt))

	batches := sink.Batches()
	require.Len(t, batches, 9)
	assert.Equal(t, []tags.Write{tags.W(catalog.ProcessLineState, tags.String(catalog.StateStopped))}, batches[0])
	for i, step := range simulation.AlarmFlood().Steps {
		assert.Equal(t, []tags.Write{tags.W(step, tags.Bool(true))}, batches[i+1], "step %d", i)
	}
	assert.Equal(t, simulation.AlarmFlood().Resets(), batches[7])
	assert.Equal(t, []tags.Write{tags.W(catalog.ProcessLineState, tags.String(catalog.StateRunning))}, batches[8])

	assert.Equal(t, []time.Duration{
		5 * time.Millisecond, 5 * time.Millisecond, 5 * time.Millisecond, 5 * time.Millisecond, 5 * time.Millisecond,
		10 * time.Second,
	}, clock.Sleeps())

	assert.Equal(t, []simulation.Phase{
		simulation.PhaseAsserting, simulation.PhaseDwelling, simulation.PhaseResetting, simulation.PhaseIdle,
	}, events.Phases())

	_, held := gate.Holder()
	assert.False(t, held)
	tag, _ := store.Get(catalog.MMAESTOPTriggered)
	assert.Equal(t, tags.Bool(false), tag.Value)

	status := runner.Status()
	assert.Equal(t, simulation.PhaseIdle, status.Phase)
	require.NotNil(t, status.LastRun)
	assert.Equal(t, result.RunID, status.LastRun.RunID)
}

func TestRunner_FaultMaskingUsesConfiguredTiming(t *testing.T) {
	clock := newStepClock()
	runner, _, _, sink := newTestRunner(t, clock, nil, WithStepDelay(time.Millisecond), WithDwell(2*time.Second))

	_, err := runner.Run(context.Background(), simulation.ScenarioFaultMasking)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond, 2 * time.Second}, clock.Sleeps())
	assert.Equal(t, []tags.Value{tags.Bool(true), tags.Bool(false)}, sink.Writes(catalog.MMAGuardDoorReset))
}

func TestRunner_BusyWhileGateHeld(t *testing.T) {
	runner, gate, _, sink := newTestRunner(t, newStepClock(), nil)
	ctx := context.Background()
	require.NoError(t, gate.Acquire(ctx, "manual"))

	_, err := runner.Run(ctx, simulation.ScenarioFaultMasking)
	assert.ErrorIs(t, err, ErrScenarioBusy)
	assert.Len(t, sink.Batches(), 1, "only the holder's STOPPED write")
	assert.Equal(t, simulation.PhaseIdle, runner.Status().Phase)
	assert.Nil(t, runner.Status().LastRun)
}

func TestRunner_ShutdownDuringDwellAbandonsGate(t *testing.T) {
	clock := newStepClock()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	clock.onSleep = func(d time.Duration) {
		if d == simulation.DefaultDwell {
			cancel()
		}
	}
	events, bus := newEventLog()
	runner, gate, store, _ := newTestRunner(t, clock, bus)

	result, err := runner.Run(ctx, simulation.ScenarioAlarmFlood)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, result.Completed)

	_, held := gate.Holder()
	assert.False(t, held)
	tag, _ := store.Get(catalog.BASProfibusFault)
	assert.Equal(t, tags.Bool(true), tag.Value, "asserted tags are left as they were")
	tag, _ = store.Get(catalog.ProcessLineState)
	assert.Equal(t, tags.String(catalog.StateStopped), tag.Value)

	assert.Equal(t, []simulation.Phase{
		simulation.PhaseAsserting, simulation.PhaseDwelling, simulation.PhaseIdle,
	}, events.Phases())
	require.NotNil(t, runner.Status().LastRun)
	assert.False(t, runner.Status().LastRun.Completed)
}

func TestRunner_StartRequiresBoundEngine(t *testing.T) {
	runner, _, _, _ := newTestRunner(t, newStepClock(), nil)

	_, err := runner.Start(simulation.ScenarioAlarmFlood)
	assert.ErrorIs(t, err, ErrEngineStopped)

	_, err = runner.Start("X")
	assert.ErrorIs(t, err, simulation.ErrUnknownScenario)
}

func TestRunner_StartRunsInBackground(t *testing.T) {
	runner, gate, _, _ := newTestRunner(t, newStepClock(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner.bind(ctx)

	runID, err := runner.Start(simulation.ScenarioFaultMasking)
	require.NoError(t, err)
	require.NotEmpty(t, runID)
	runner.wait()

	status := runner.Status()
	require.NotNil(t, status.LastRun)
	assert.Equal(t, runID, status.LastRun.RunID)
	assert.True(t, status.LastRun.Completed)
	_, held := gate.Holder()
	assert.False(t, held)

	_, err = runner.Start(simulation.ScenarioFaultMasking)
	assert.ErrorIs(t, err, ErrEngineStopped, "wait unbinds the runner")
}

func TestRunner_StartRejectedWhileBusy(t *testing.T) {
	runner, gate, _, _ := newTestRunner(t, newStepClock(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runner.bind(ctx)
	require.NoError(t, gate.Acquire(ctx, "manual"))

	_, err := runner.Start(simulation.ScenarioAlarmFlood)
	assert.ErrorIs(t, err, ErrScenarioBusy)
	runner.wait()
}

func TestNewRunner_RequiresDeps(t *testing.T) {
	store, _ := newRecordedStore(t)
	gate, err := NewLineGate(store)
	require.NoError(t, err)

	_, err = NewRunner(nil, gate, nil, nil, nil)
	assert.Error(t, err)
	_, err = NewRunner(store, nil, nil, nil, nil)
	assert.Error(t, err)
	_, err = NewLineGate(nil)
	assert.Error(t, err)
}
