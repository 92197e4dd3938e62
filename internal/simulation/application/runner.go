package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"linesim/internal/eventing"
	"linesim/internal/observability/metrics"
	simulation "linesim/internal/simulation/domain"
	tags "linesim/internal/tags/domain"
)

// RunResult describes a finished scenario run.
type RunResult struct {
	RunID      string                `json:"run_id"`
	Scenario   simulation.ScenarioID `json:"scenario"`
	StartedAt  time.Time             `json:"started_at"`
	FinishedAt time.Time             `json:"finished_at"`
	Completed  bool                  `json:"completed"`
}

// ScenarioStatus is the runner state exposed to clients.
type ScenarioStatus struct {
	RunID     string                `json:"run_id,omitempty"`
	Scenario  simulation.ScenarioID `json:"scenario,omitempty"`
	Phase     simulation.Phase      `json:"phase"`
	Step      int                   `json:"step"`
	StartedAt *time.Time            `json:"started_at,omitempty"`
	LastRun   *RunResult            `json:"last_run,omitempty"`
}

// Runner executes scenario scripts one at a time.
type Runner struct {
	tree      tags.Tree
	gate      *LineGate
	clock     Clock
	events    eventing.Publisher
	logger    *zap.Logger
	stepDelay time.Duration
	dwell     time.Duration

	mu     sync.Mutex
	status ScenarioStatus
	base   context.Context
	wg     sync.WaitGroup
}

// RunnerOption configures a runner.
type RunnerOption func(*Runner)

// WithStepDelay overrides the delay between asserted tags.
func WithStepDelay(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d >= 0 {
			r.stepDelay = d
		}
	}
}

// WithDwell overrides the hold time.
func WithDwell(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d >= 0 {
			r.dwell = d
		}
	}
}

// NewRunner constructs a runner.
func NewRunner(tree tags.Tree, gate *LineGate, clock Clock, events eventing.Publisher, logger *zap.Logger, opts ...RunnerOption) (*Runner, error) {
	if tree == nil {
		return nil, errors.New("scenario runner: nil tree")
	}
	if gate == nil {
		return nil, errors.New("scenario runner: nil gate")
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if events == nil {
		events = eventing.NopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{
		tree:      tree,
		gate:      gate,
		clock:     clock,
		events:    events,
		logger:    logger,
		stepDelay: simulation.DefaultStepDelay,
		dwell:     simulation.DefaultDwell,
		status:    ScenarioStatus{Phase: simulation.PhaseIdle},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Status returns the current runner state.
func (r *Runner) Status() ScenarioStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	status := r.status
	if status.LastRun != nil {
		last := *status.LastRun
		status.LastRun = &last
	}
	return status
}

// Run executes scenario id to completion on the caller's goroutine.
// It returns ErrScenarioBusy when another scenario holds the line.
func (r *Runner) Run(ctx context.Context, id simulation.ScenarioID) (RunResult, error) {
	scenario, err := simulation.Lookup(id)
	if err != nil {
		return RunResult{}, err
	}
	runID, err := r.begin(ctx, scenario)
	if err != nil {
		return RunResult{}, err
	}
	return r.execute(ctx, scenario, runID)
}

// Start claims the line for scenario id and runs the script in the
// background on the context bound by the engine. Rejection is synchronous.
func (r *Runner) Start(id simulation.ScenarioID) (string, error) {
	scenario, err := simulation.Lookup(id)
	if err != nil {
		return "", err
	}
	r.mu.Lock()
	base := r.base
	if base == nil || base.Err() != nil {
		r.mu.Unlock()
		return "", ErrEngineStopped
	}
	r.wg.Add(1)
	r.mu.Unlock()

	runID, err := r.begin(base, scenario)
	if err != nil {
		r.wg.Done()
		return "", err
	}
	go func() {
		defer r.wg.Done()
		_, _ = r.execute(base, scenario, runID)
	}()
	return runID, nil
}

// bind sets the context background runs use.
func (r *Runner) bind(ctx context.Context) {
	r.mu.Lock()
	r.base = ctx
	r.mu.Unlock()
}

// wait blocks until background runs have returned.
func (r *Runner) wait() {
	r.mu.Lock()
	r.base = nil
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Runner) begin(ctx context.Context, scenario simulation.Scenario) (string, error) {
	runID := uuid.NewString()
	if err := r.gate.Acquire(ctx, runID); err != nil {
		if errors.Is(err, ErrScenarioBusy) {
			metrics.ObserveScenario(string(scenario.ID), "busy", 0)
			return "", err
		}
		r.logWrite("line state", err)
	}
	started := r.clock.Now()
	r.mu.Lock()
	r.status.RunID = runID
	r.status.Scenario = scenario.ID
	r.status.StartedAt = &started
	r.status.Step = 0
	r.mu.Unlock()
	r.logger.Info("scenario started",
		zap.String("scenario", string(scenario.ID)),
		zap.String("name", scenario.Name),
		zap.String("run_id", runID),
	)
	return runID, nil
}

func (r *Runner) execute(ctx context.Context, scenario simulation.Scenario, runID string) (RunResult, error) {
	result := RunResult{RunID: runID, Scenario: scenario.ID, StartedAt: r.clock.Now()}

	r.setPhase(ctx, runID, scenario.ID, simulation.PhaseAsserting)
	assertions := scenario.Assertions()
	for i, w := range assertions {
		if err := r.tree.Set(ctx, w.Path, w.Value); err != nil {
			r.logWrite(w.Path, err)
		}
		r.setStep(i + 1)
		if i < len(assertions)-1 {
			if err := r.clock.Sleep(ctx, r.stepDelay); err != nil {
				return r.abandon(ctx, scenario, result, err)
			}
		}
	}

	r.setPhase(ctx, runID, scenario.ID, simulation.PhaseDwelling)
	if err := r.clock.Sleep(ctx, r.dwell); err != nil {
		return r.abandon(ctx, scenario, result, err)
	}

	r.setPhase(ctx, runID, scenario.ID, simulation.PhaseResetting)
	if err := r.tree.SetMany(ctx, scenario.Resets()); err != nil {
		r.logWrite("scenario reset", err)
	}
	if err := r.gate.Release(ctx, runID); err != nil {
		r.logWrite("line state", err)
	}

	result.FinishedAt = r.clock.Now()
	result.Completed = true
	r.finish(ctx, result)
	metrics.ObserveScenario(string(scenario.ID), metrics.ResultSuccess, result.FinishedAt.Sub(result.StartedAt))
	r.logger.Info("scenario finished",
		zap.String("scenario", string(scenario.ID)),
		zap.String("run_id", runID),
		zap.Duration("elapsed", result.FinishedAt.Sub(result.StartedAt)),
	)
	return result, nil
}

// abandon ends a run interrupted by shutdown. Asserted tags keep their values.
func (r *Runner) abandon(ctx context.Context, scenario simulation.Scenario, result RunResult, cause error) (RunResult, error) {
	r.gate.Abandon(result.RunID)
	result.FinishedAt = r.clock.Now()
	r.finish(context.WithoutCancel(ctx), result)
	metrics.ObserveScenario(string(scenario.ID), "interrupted", result.FinishedAt.Sub(result.StartedAt))
	r.logger.Info("scenario interrupted",
		zap.String("scenario", string(scenario.ID)),
		zap.String("run_id", result.RunID),
		zap.Error(cause),
	)
	return result, cause
}

func (r *Runner) finish(ctx context.Context, result RunResult) {
	r.mu.Lock()
	r.status = ScenarioStatus{Phase: simulation.PhaseIdle, LastRun: &result}
	r.mu.Unlock()
	r.publishPhase(ctx, result.RunID, result.Scenario, simulation.PhaseIdle)
}

func (r *Runner) setPhase(ctx context.Context, runID string, id simulation.ScenarioID, phase simulation.Phase) {
	r.mu.Lock()
	r.status.Phase = phase
	r.mu.Unlock()
	r.logger.Info("scenario phase", zap.String("scenario", string(id)), zap.String("phase", string(phase)))
	r.publishPhase(ctx, runID, id, phase)
}

func (r *Runner) setStep(step int) {
	r.mu.Lock()
	r.status.Step = step
	r.mu.Unlock()
}

func (r *Runner) publishPhase(ctx context.Context, runID string, id simulation.ScenarioID, phase simulation.Phase) {
	event := simulation.ScenarioPhaseChanged{RunID: runID, Scenario: id, Phase: phase, OccurredAt: r.clock.Now()}
	if err := r.events.Publish(ctx, event, eventing.Meta{CorrelationID: runID}); err != nil {
		r.logger.Warn("event publish failed", zap.String("run_id", runID), zap.Error(err))
	}
}

func (r *Runner) logWrite(target string, err error) {
	r.logger.Warn("scenario write failed", zap.String("target", target), zap.Error(err))
}
