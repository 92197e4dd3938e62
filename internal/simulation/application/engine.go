package application

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	alarms "linesim/internal/alarms/domain"
	"linesim/internal/eventing"
	simulation "linesim/internal/simulation/domain"
	tags "linesim/internal/tags/domain"
)

// Config holds engine timing and tuning.
type Config struct {
	ProductionInterval  time.Duration
	ReplayInterval      time.Duration
	MetricsInterval     time.Duration
	NoiseInterval       time.Duration
	AlternateInterval   time.Duration
	BaseRate            int
	SequenceProbability float64
	SequenceMembers     int
	SequenceMemberDelay time.Duration
	MaxActiveAlarms     int
	ScenarioStepDelay   time.Duration
	ScenarioDwell       time.Duration
	AlternatorEnabled   bool
}

// DefaultConfig returns the line defaults.
func DefaultConfig() Config {
	return Config{
		ProductionInterval:  time.Second,
		ReplayInterval:      50 * time.Millisecond,
		MetricsInterval:     5 * time.Second,
		NoiseInterval:       time.Second,
		AlternateInterval:   DefaultAlternateInterval,
		BaseRate:            simulation.BaseRate,
		SequenceProbability: 0.02,
		SequenceMembers:     5,
		SequenceMemberDelay: 10 * time.Millisecond,
		MaxActiveAlarms:     64,
		ScenarioStepDelay:   simulation.DefaultStepDelay,
		ScenarioDwell:       simulation.DefaultDwell,
		AlternatorEnabled:   true,
	}
}

// Backoffs applied after a loop failure.
const (
	productionBackoff = 5 * time.Second
	replayBackoff     = 2 * time.Second
	metricsBackoff    = 10 * time.Second
	alternatorBackoff = 5 * time.Second
	noiseBackoff      = time.Second
)

// History is the alarm material the replay draws from.
type History interface {
	Alarms() []alarms.Alarm
	Sequences() [][]alarms.Alarm
}

// Engine runs the production, replay, metrics, noise and scenario loops
// against one tree.
type Engine struct {
	cfg    Config
	tree   tags.Tree
	gate   *LineGate
	runner *Runner
	active *activeSet
	clock  Clock
	events eventing.Publisher
	logger *zap.Logger

	pool      []alarms.Alarm
	sequences [][]alarms.Alarm
	noiseTags []tags.Definition
	rules     simulation.Rules
	seed      int64

	mu              sync.Mutex
	productionRate  int
	totalProduction float64

	runMu   sync.Mutex
	running bool
}

// Option configures the engine.
type Option func(*Engine)

// WithClock overrides the clock.
func WithClock(clock Clock) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithSeed makes random draws reproducible.
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		e.seed = seed
	}
}

// WithEvents sets the lifecycle event publisher.
func WithEvents(events eventing.Publisher) Option {
	return func(e *Engine) {
		if events != nil {
			e.events = events
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRules replaces the symptom table.
func WithRules(rules simulation.Rules) Option {
	return func(e *Engine) {
		e.rules = rules
	}
}

// WithNoiseTags enables random values for catalog tags the simulation does not own.
func WithNoiseTags(defs []tags.Definition) Option {
	return func(e *Engine) {
		e.noiseTags = defs
	}
}

// NewEngine constructs an engine. history may be nil for a data-free run.
func NewEngine(cfg Config, tree tags.Tree, history History, opts ...Option) (*Engine, error) {
	if tree == nil {
		return nil, errors.New("simulation engine: nil tree")
	}
	if cfg.BaseRate <= 0 {
		return nil, errors.New("simulation engine: base rate must be positive")
	}
	e := &Engine{
		cfg:    cfg,
		tree:   tree,
		clock:  SystemClock{},
		events: eventing.NopPublisher{},
		logger: zap.NewNop(),
		rules:  simulation.DefaultRules(),
		seed:   time.Now().UnixNano(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if history != nil {
		e.pool = history.Alarms()
		e.sequences = history.Sequences()
	}

	gate, err := NewLineGate(tree)
	if err != nil {
		return nil, err
	}
	e.gate = gate
	e.runner, err = NewRunner(tree, gate, e.clock, e.events, e.logger.Named("scenario"),
		WithStepDelay(cfg.ScenarioStepDelay), WithDwell(cfg.ScenarioDwell))
	if err != nil {
		return nil, err
	}
	e.active = newActiveSet(tree, e.rules, e.newRand(1), e.clock, e.events, e.logger.Named("active"), cfg.MaxActiveAlarms)
	return e, nil
}

// Runner returns the scenario runner for manual triggers.
func (e *Engine) Runner() *Runner { return e.runner }

// Gate returns the line gate.
func (e *Engine) Gate() *LineGate { return e.gate }

// Active returns the current active set.
func (e *Engine) Active() ActiveSnapshot { return e.active.Snapshot() }

// Degraded reports whether the engine runs without alarm history.
func (e *Engine) Degraded() bool { return len(e.pool) == 0 }

// Production returns the current rate and accumulated total.
func (e *Engine) Production() (int, float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.productionRate, e.totalProduction
}

// Run starts every loop and blocks until ctx is done and all loops have exited.
// An engine runs once.
func (e *Engine) Run(ctx context.Context) error {
	e.runMu.Lock()
	if e.running {
		e.runMu.Unlock()
		return errors.New("simulation engine: already running")
	}
	e.running = true
	e.runMu.Unlock()

	if e.Degraded() {
		e.logger.Warn("no alarm history, running production and metrics only")
	}
	e.logger.Info("simulation started",
		zap.Int("alarms", len(e.pool)),
		zap.Int("sequences", len(e.sequences)),
		zap.Int("noise_tags", len(e.noiseTags)),
	)

	var wg sync.WaitGroup
	actorCtx, stopActor := context.WithCancel(context.WithoutCancel(ctx))
	wg.Add(1)
	go func() {
		defer wg.Done()
		e.active.run(actorCtx)
	}()

	e.runner.bind(ctx)
	loops := e.processes()
	var loopsWG sync.WaitGroup
	for _, p := range loops {
		loopsWG.Add(1)
		go func(p process) {
			defer loopsWG.Done()
			e.supervise(ctx, p)
		}(p)
	}

	<-ctx.Done()
	loopsWG.Wait()
	e.runner.wait()
	stopActor()
	wg.Wait()
	e.logger.Info("simulation stopped")
	return nil
}

func (e *Engine) processes() []process {
	procs := []process{
		{name: "production", backoff: productionBackoff, run: e.every(e.cfg.ProductionInterval, e.productionTick)},
		{name: "replay", backoff: replayBackoff, run: e.every(e.cfg.ReplayInterval, e.replayTick(e.newRand(2)))},
		{name: "metrics", backoff: metricsBackoff, run: e.every(e.cfg.MetricsInterval, e.metricsTick(e.newRand(3)))},
	}
	if e.cfg.AlternatorEnabled {
		alternator := NewAlternator(e.runner, e.clock, e.cfg.AlternateInterval, e.logger.Named("alternator"))
		procs = append(procs, process{name: "alternator", backoff: alternatorBackoff, run: alternator.Run})
	}
	if len(e.noiseTags) > 0 {
		procs = append(procs, process{name: "noise", backoff: noiseBackoff, run: e.every(e.cfg.NoiseInterval, e.noiseTick(e.newRand(4)))})
	}
	return procs
}

func (e *Engine) newRand(stream int64) *rand.Rand {
	return rand.New(rand.NewSource(e.seed + stream))
}

// logWrite records a tree failure. Failed writes never stop a tick.
func (e *Engine) logWrite(process string, err error) {
	if err == nil {
		return
	}
	e.logger.Warn("tag write failed", zap.String("process", process), zap.Error(err))
}
