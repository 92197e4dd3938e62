package application

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	alarms "linesim/internal/alarms/domain"
	"linesim/internal/eventing"
	"linesim/internal/observability/metrics"
	simulation "linesim/internal/simulation/domain"
	tags "linesim/internal/tags/domain"
)

// ErrEngineStopped is returned when the active set is no longer running.
var ErrEngineStopped = errors.New("simulation: engine stopped")

// ActiveAlarm is one activation instance.
type ActiveAlarm struct {
	InstanceID  uint64       `json:"instance_id"`
	Alarm       alarms.Alarm `json:"alarm"`
	Rule        string       `json:"rule,omitempty"`
	ActivatedAt time.Time    `json:"activated_at"`
}

// ActiveSnapshot is an immutable view of the active set.
type ActiveSnapshot struct {
	Count    int           `json:"count"`
	Warnings int           `json:"warnings"`
	Faults   int           `json:"faults"`
	Alarms   []ActiveAlarm `json:"alarms"`
}

type instance struct {
	ActiveAlarm
	rule    simulation.EffectRule
	matched bool
}

type activateCmd struct {
	alarm alarms.Alarm
	reply chan activateResult
}

type activateResult struct {
	instanceID uint64
	dropped    bool
	err        error
}

type clearCmd struct {
	reply chan clearResult
}

type clearResult struct {
	instanceID uint64
	cleared    bool
	err        error
}

// activeSet owns the active alarms. Only its run goroutine mutates the set
// and applies the symptom writes of activations and clears.
type activeSet struct {
	tree     tags.Tree
	rules    simulation.Rules
	rnd      simulation.Rand
	clock    Clock
	events   eventing.Publisher
	logger   *zap.Logger
	maxCount int

	cmds     chan any
	done     chan struct{}
	snapshot atomic.Pointer[ActiveSnapshot]

	// owned by run
	items  []*instance
	nextID uint64
}

func newActiveSet(tree tags.Tree, rules simulation.Rules, rnd simulation.Rand, clock Clock, events eventing.Publisher, logger *zap.Logger, maxCount int) *activeSet {
	a := &activeSet{
		tree:     tree,
		rules:    rules,
		rnd:      rnd,
		clock:    clock,
		events:   events,
		logger:   logger,
		maxCount: maxCount,
		cmds:     make(chan any),
		done:     make(chan struct{}),
	}
	a.snapshot.Store(&ActiveSnapshot{Alarms: []ActiveAlarm{}})
	return a
}

// run serves commands until ctx is done.
func (a *activeSet) run(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-a.cmds:
			switch c := cmd.(type) {
			case activateCmd:
				c.reply <- a.activate(ctx, c.alarm)
			case clearCmd:
				c.reply <- a.clearRandom(ctx)
			}
		}
	}
}

// Activate asks the owner to activate alarm.
func (a *activeSet) Activate(ctx context.Context, alarm alarms.Alarm) (uint64, bool, error) {
	reply := make(chan activateResult, 1)
	if err := a.send(ctx, activateCmd{alarm: alarm, reply: reply}); err != nil {
		return 0, false, err
	}
	res := <-reply
	return res.instanceID, res.dropped, res.err
}

// ClearRandom asks the owner to clear one uniformly chosen instance.
func (a *activeSet) ClearRandom(ctx context.Context) (uint64, bool, error) {
	reply := make(chan clearResult, 1)
	if err := a.send(ctx, clearCmd{reply: reply}); err != nil {
		return 0, false, err
	}
	res := <-reply
	return res.instanceID, res.cleared, res.err
}

// Snapshot returns the last published view.
func (a *activeSet) Snapshot() ActiveSnapshot {
	return *a.snapshot.Load()
}

func (a *activeSet) send(ctx context.Context, cmd any) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-a.done:
		return ErrEngineStopped
	case a.cmds <- cmd:
		return nil
	}
}

func (a *activeSet) activate(ctx context.Context, alarm alarms.Alarm) activateResult {
	if a.maxCount > 0 && len(a.items) >= a.maxCount {
		metrics.IncAlarmEvent("dropped")
		a.logger.Debug("active set full, activation dropped",
			zap.String("module", alarm.Module), zap.Int("code", alarm.Code))
		return activateResult{dropped: true}
	}

	a.nextID++
	inst := &instance{ActiveAlarm: ActiveAlarm{
		InstanceID:  a.nextID,
		Alarm:       alarm,
		ActivatedAt: a.clock.Now(),
	}}
	inst.rule, inst.matched = a.rules.Match(alarm.Module, alarm.Message)
	a.items = append(a.items, inst)
	a.publishSnapshot()

	var writes []tags.Write
	if inst.matched {
		inst.Rule = inst.rule.Name
		deviation := 0.0
		if inst.rule.Deviation != nil {
			deviation = inst.rule.Deviation.Draw(a.rnd)
		}
		writes = inst.rule.Activation(deviation)
	}
	err := a.apply(ctx, writes)

	metrics.IncAlarmEvent("activated")
	a.logger.Debug("alarm activated",
		zap.Uint64("instance", inst.InstanceID),
		zap.String("module", alarm.Module),
		zap.String("severity", string(alarm.Severity)),
		zap.String("message", truncate(alarm.Message, 50)),
		zap.Strings("tags", paths(writes)),
	)
	a.publish(ctx, simulation.AlarmActivated{
		InstanceID: inst.InstanceID,
		Module:     alarm.Module,
		Severity:   string(alarm.Severity),
		Code:       alarm.Code,
		Message:    alarm.Message,
		Rule:       inst.Rule,
		Tags:       paths(writes),
		OccurredAt: inst.ActivatedAt,
	})
	return activateResult{instanceID: inst.InstanceID, err: err}
}

func (a *activeSet) clearRandom(ctx context.Context) clearResult {
	if len(a.items) == 0 {
		return clearResult{}
	}
	idx := a.rnd.Intn(len(a.items))
	inst := a.items[idx]
	a.items = append(a.items[:idx], a.items[idx+1:]...)
	a.publishSnapshot()

	var writes []tags.Write
	if inst.matched {
		writes = inst.rule.Clearing()
	}
	err := a.apply(ctx, writes)

	metrics.IncAlarmEvent("cleared")
	a.logger.Debug("alarm cleared",
		zap.Uint64("instance", inst.InstanceID),
		zap.String("module", inst.Alarm.Module),
		zap.String("message", truncate(inst.Alarm.Message, 50)),
		zap.Strings("tags", paths(writes)),
	)
	a.publish(ctx, simulation.AlarmCleared{
		InstanceID: inst.InstanceID,
		Module:     inst.Alarm.Module,
		Severity:   string(inst.Alarm.Severity),
		Code:       inst.Alarm.Code,
		Message:    inst.Alarm.Message,
		Rule:       inst.Rule,
		Tags:       paths(writes),
		OccurredAt: a.clock.Now(),
	})
	return clearResult{instanceID: inst.InstanceID, cleared: true, err: err}
}

func (a *activeSet) apply(ctx context.Context, writes []tags.Write) error {
	if len(writes) == 0 {
		return nil
	}
	return a.tree.SetMany(ctx, writes)
}

func (a *activeSet) publish(ctx context.Context, event any) {
	if err := a.events.Publish(ctx, event, eventing.Meta{}); err != nil {
		a.logger.Warn("event publish failed", zap.String("event", eventing.EventType(event)), zap.Error(err))
	}
}

func (a *activeSet) publishSnapshot() {
	snap := ActiveSnapshot{Count: len(a.items), Alarms: make([]ActiveAlarm, 0, len(a.items))}
	for _, inst := range a.items {
		if inst.Alarm.Severity == alarms.SeverityWarning {
			snap.Warnings++
		}
		if inst.Alarm.Severity.IsFault() {
			snap.Faults++
		}
		snap.Alarms = append(snap.Alarms, inst.ActiveAlarm)
	}
	a.snapshot.Store(&snap)
}

func paths(writes []tags.Write) []string {
	if len(writes) == 0 {
		return nil
	}
	out := make([]string, 0, len(writes))
	for _, w := range writes {
		out = append(out, w.Path)
	}
	return out
}

func truncate(value string, n int) string {
	runes := []rune(value)
	if len(runes) <= n {
		return value
	}
	return string(runes[:n])
}
