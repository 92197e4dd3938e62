package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"linesim/internal/eventing"
	simulation "linesim/internal/simulation/domain"
	tags "linesim/internal/tags/domain"
	"linesim/internal/tags/infrastructure/memory"
)

// stepClock returns from Sleep immediately, advancing its own time.
// onSleep may cancel the caller's context to end a loop.
type stepClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	onSleep func(d time.Duration)
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	if d > 0 {
		c.now = c.now.Add(d)
	}
	hook := c.onSleep
	c.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return ctx.Err()
}

func (c *stepClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

type recordingSink struct {
	mu      sync.Mutex
	batches [][]tags.Write
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Apply(_ context.Context, writes []tags.Write, _ time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]tags.Write(nil), writes...))
	return nil
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) Batches() [][]tags.Write {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]tags.Write(nil), s.batches...)
}

// Writes returns every write to path in application order.
func (s *recordingSink) Writes(path string) []tags.Value {
	var out []tags.Value
	for _, batch := range s.Batches() {
		for _, w := range batch {
			if w.Path == path {
				out = append(out, w.Value)
			}
		}
	}
	return out
}

type eventLog struct {
	mu     sync.Mutex
	phases []simulation.ScenarioPhaseChanged
	raised []simulation.AlarmActivated
	clears []simulation.AlarmCleared
}

func newEventLog() (*eventLog, *eventing.InMemoryBus) {
	log := &eventLog{}
	bus := eventing.NewInMemoryBus()
	eventing.Subscribe(bus, func(_ context.Context, event simulation.ScenarioPhaseChanged, _ eventing.Envelope) error {
		log.mu.Lock()
		log.phases = append(log.phases, event)
		log.mu.Unlock()
		return nil
	})
	eventing.Subscribe(bus, func(_ context.Context, event simulation.AlarmActivated, _ eventing.Envelope) error {
		log.mu.Lock()
		log.raised = append(log.raised, event)
		log.mu.Unlock()
		return nil
	})
	eventing.Subscribe(bus, func(_ context.Context, event simulation.AlarmCleared, _ eventing.Envelope) error {
		log.mu.Lock()
		log.clears = append(log.clears, event)
		log.mu.Unlock()
		return nil
	})
	return log, bus
}

func (l *eventLog) Phases() []simulation.Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]simulation.Phase, 0, len(l.phases))
	for _, event := range l.phases {
		out = append(out, event.Phase)
	}
	return out
}

// Started returns the scenario of every Asserting transition.
func (l *eventLog) Started() []simulation.ScenarioID {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []simulation.ScenarioID
	for _, event := range l.phases {
		if event.Phase == simulation.PhaseAsserting {
			out = append(out, event.Scenario)
		}
	}
	return out
}

func newRecordedStore(t *testing.T) (*memory.Store, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	return memory.NewStore(memory.WithSink(sink)), sink
}

func newTestRunner(t *testing.T, clock Clock, events eventing.Publisher, opts ...RunnerOption) (*Runner, *LineGate, *memory.Store, *recordingSink) {
	t.Helper()
	store, sink := newRecordedStore(t)
	gate, err := NewLineGate(store)
	require.NoError(t, err)
	runner, err := NewRunner(store, gate, clock, events, nil, opts...)
	require.NoError(t, err)
	return runner, gate, store, sink
}
