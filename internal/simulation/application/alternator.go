package application

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	simulation "linesim/internal/simulation/domain"
)

// DefaultAlternateInterval is the time between scenario triggers.
const DefaultAlternateInterval = 30 * time.Second

// Alternator triggers scenarios in turn, each run to completion before the
// next trigger is considered.
type Alternator struct {
	runner   *Runner
	clock    Clock
	interval time.Duration
	order    []simulation.ScenarioID
	next     int
	logger   *zap.Logger
}

// NewAlternator constructs an Alternator cycling A, B, A, ...
func NewAlternator(runner *Runner, clock Clock, interval time.Duration, logger *zap.Logger) *Alternator {
	if interval <= 0 {
		interval = DefaultAlternateInterval
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Alternator{
		runner:   runner,
		clock:    clock,
		interval: interval,
		order:    []simulation.ScenarioID{simulation.ScenarioAlarmFlood, simulation.ScenarioFaultMasking},
		logger:   logger,
	}
}

// Run triggers a scenario every interval, measured from the previous trigger,
// until ctx is done.
func (a *Alternator) Run(ctx context.Context) error {
	if a == nil || a.runner == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	wait := a.interval
	for {
		if err := a.clock.Sleep(ctx, wait); err != nil {
			return err
		}
		started := a.clock.Now()
		if err := a.runOnce(ctx); err != nil {
			return err
		}
		wait = a.interval - a.clock.Now().Sub(started)
		if wait < 0 {
			wait = 0
		}
	}
}

func (a *Alternator) runOnce(ctx context.Context) error {
	id := a.order[a.next]
	a.logger.Info("triggering scenario", zap.String("scenario", string(id)))
	_, err := a.runner.Run(ctx, id)
	switch {
	case err == nil:
		a.next = (a.next + 1) % len(a.order)
		return nil
	case errors.Is(err, ErrScenarioBusy):
		a.logger.Info("scenario trigger skipped, line busy", zap.String("scenario", string(id)))
		return nil
	default:
		return err
	}
}
