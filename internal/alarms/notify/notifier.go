package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	alarms "linesim/internal/alarms/domain"
	"linesim/internal/eventing"
	simulation "linesim/internal/simulation/domain"
)

// Notification events.
const (
	EventActivated        = "activated"
	EventCleared          = "cleared"
	EventEscalated        = "escalated"
	EventScenarioStarted  = "scenario_started"
	EventScenarioFinished = "scenario_finished"
)

const (
	defaultQueueSize   = 64
	defaultSendTimeout = 5 * time.Second
)

// Clock provides time for cooldown bookkeeping.
type Clock interface {
	Now() time.Time
}

type sendRecord struct {
	at   time.Time
	hash string
}

// Notifier turns simulator alarm and scenario events into chat messages.
// Bus handlers only enqueue; Run delivers on its own goroutine.
type Notifier struct {
	channel      Channel
	template     *Template
	logger       *zap.Logger
	clock        Clock
	severities   map[alarms.Severity]bool
	scenarios    bool
	escalation   time.Duration
	cooldown     time.Duration
	dedupeWindow time.Duration
	sendTimeout  time.Duration
	queue        chan TemplateData

	mu     sync.Mutex
	timers map[uint64]*time.Timer
	sent   map[string]sendRecord
}

// Option configures the notifier.
type Option func(*Notifier)

// WithEscalation re-notifies instances still active after the delay.
func WithEscalation(after time.Duration) Option {
	return func(n *Notifier) {
		if after > 0 {
			n.escalation = after
		}
	}
}

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithCooldown sets a minimum interval between notifications for the same alarm and event.
func WithCooldown(interval time.Duration) Option {
	return func(n *Notifier) {
		if interval > 0 {
			n.cooldown = interval
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// WithSendTimeout bounds a single channel delivery.
func WithSendTimeout(timeout time.Duration) Option {
	return func(n *Notifier) {
		if timeout > 0 {
			n.sendTimeout = timeout
		}
	}
}

// WithSeverities replaces the notified severities. Faults are notified by default.
func WithSeverities(severities ...alarms.Severity) Option {
	return func(n *Notifier) {
		if len(severities) == 0 {
			return
		}
		n.severities = make(map[alarms.Severity]bool, len(severities))
		for _, severity := range severities {
			n.severities[severity] = true
		}
	}
}

// WithScenarioNotifications toggles scenario start and finish messages.
func WithScenarioNotifications(enabled bool) Option {
	return func(n *Notifier) {
		n.scenarios = enabled
	}
}

// WithQueueSize sets the pending notification buffer.
func WithQueueSize(size int) Option {
	return func(n *Notifier) {
		if size > 0 {
			n.queue = make(chan TemplateData, size)
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewNotifier constructs a notifier. A nil template uses DefaultTemplate.
func NewNotifier(channel Channel, template *Template, opts ...Option) (*Notifier, error) {
	if channel == nil {
		return nil, errors.New("alarm notifier: nil channel")
	}
	if template == nil {
		defaultTemplate, err := NewTemplate("")
		if err != nil {
			return nil, err
		}
		template = defaultTemplate
	}
	n := &Notifier{
		channel:  channel,
		template: template,
		logger:   zap.NewNop(),
		clock:    systemClock{},
		severities: map[alarms.Severity]bool{
			alarms.SeverityFault:      true,
			alarms.SeverityFirstFault: true,
		},
		scenarios:   true,
		sendTimeout: defaultSendTimeout,
		queue:       make(chan TemplateData, defaultQueueSize),
		timers:      make(map[uint64]*time.Timer),
		sent:        make(map[string]sendRecord),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Register subscribes the notifier to simulator events on bus.
func (n *Notifier) Register(bus eventing.Bus) {
	eventing.Subscribe(bus, func(_ context.Context, event simulation.AlarmActivated, _ eventing.Envelope) error {
		n.onActivated(event)
		return nil
	})
	eventing.Subscribe(bus, func(_ context.Context, event simulation.AlarmCleared, _ eventing.Envelope) error {
		n.onCleared(event)
		return nil
	})
	eventing.Subscribe(bus, func(_ context.Context, event simulation.ScenarioPhaseChanged, _ eventing.Envelope) error {
		n.onPhase(event)
		return nil
	})
}

// Run delivers queued notifications until ctx is done.
func (n *Notifier) Run(ctx context.Context) error {
	defer n.Close()
	for {
		select {
		case <-ctx.Done():
			return nil
		case data := <-n.queue:
			n.deliver(ctx, data)
		}
	}
}

// Close stops all pending escalation timers.
func (n *Notifier) Close() {
	if n == nil {
		return
	}
	n.mu.Lock()
	timers := n.timers
	n.timers = make(map[uint64]*time.Timer)
	n.mu.Unlock()
	for _, timer := range timers {
		timer.Stop()
	}
}

func (n *Notifier) onActivated(event simulation.AlarmActivated) {
	if !n.severities[alarms.Severity(event.Severity)] {
		return
	}
	data := alarmData(EventActivated, event.Module, event.Severity, event.Code, event.Message, event.Rule, event.Tags, event.OccurredAt)
	n.enqueue(data)
	n.scheduleEscalation(event.InstanceID, data)
}

func (n *Notifier) onCleared(event simulation.AlarmCleared) {
	n.cancelEscalation(event.InstanceID)
	if !n.severities[alarms.Severity(event.Severity)] {
		return
	}
	n.enqueue(alarmData(EventCleared, event.Module, event.Severity, event.Code, event.Message, event.Rule, event.Tags, event.OccurredAt))
}

func (n *Notifier) onPhase(event simulation.ScenarioPhaseChanged) {
	if !n.scenarios {
		return
	}
	var kind string
	switch event.Phase {
	case simulation.PhaseAsserting:
		kind = EventScenarioStarted
	case simulation.PhaseIdle:
		kind = EventScenarioFinished
	default:
		return
	}
	data := TemplateData{
		Event:      kind,
		EventLabel: eventLabel(kind),
		Scenario:   string(event.Scenario),
		RunID:      event.RunID,
		Phase:      string(event.Phase),
		OccurredAt: formatTime(event.OccurredAt),
		Suggestion: suggestionFor(kind, ""),
	}
	for _, scenario := range simulation.Scenarios() {
		if scenario.ID == event.Scenario {
			data.ScenarioName = scenario.Name
		}
	}
	n.enqueue(data)
}

func (n *Notifier) enqueue(data TemplateData) {
	select {
	case n.queue <- data:
	default:
		n.logger.Warn("notification queue full, dropping",
			zap.String("event", data.Event),
			zap.String("module", data.Module),
			zap.Int("code", data.Code),
		)
	}
}

func (n *Notifier) scheduleEscalation(instance uint64, data TemplateData) {
	if n.escalation <= 0 || instance == 0 {
		return
	}
	escalated := data
	escalated.Event = EventEscalated
	escalated.EventLabel = eventLabel(EventEscalated)
	escalated.Suggestion = suggestionFor(EventEscalated, data.Severity)

	n.mu.Lock()
	defer n.mu.Unlock()
	if existing, ok := n.timers[instance]; ok {
		existing.Stop()
	}
	n.timers[instance] = time.AfterFunc(n.escalation, func() {
		n.mu.Lock()
		_, live := n.timers[instance]
		delete(n.timers, instance)
		n.mu.Unlock()
		if !live {
			return
		}
		escalated.OccurredAt = formatTime(n.clock.Now())
		n.enqueue(escalated)
	})
}

func (n *Notifier) cancelEscalation(instance uint64) {
	n.mu.Lock()
	timer, ok := n.timers[instance]
	delete(n.timers, instance)
	n.mu.Unlock()
	if ok {
		timer.Stop()
	}
}

func (n *Notifier) deliver(ctx context.Context, data TemplateData) {
	content, err := n.template.Render(data)
	if err != nil {
		n.logger.Warn("notification render failed", zap.String("event", data.Event), zap.Error(err))
		return
	}
	key := notificationKey(data)
	hash := fingerprint(data)
	if !n.shouldSend(key, hash) {
		n.logger.Debug("notification suppressed", zap.String("key", key))
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, n.sendTimeout)
	defer cancel()
	if err := n.channel.Send(sendCtx, content); err != nil {
		n.logger.Warn("notification send failed", zap.String("key", key), zap.Error(err))
		return
	}
	n.markSent(key, hash)
}

func (n *Notifier) shouldSend(key, hash string) bool {
	if n.cooldown <= 0 && n.dedupeWindow <= 0 {
		return true
	}
	now := n.clock.Now().UTC()

	n.mu.Lock()
	record, ok := n.sent[key]
	n.mu.Unlock()
	if !ok {
		return true
	}
	if n.cooldown > 0 && now.Sub(record.at) < n.cooldown {
		return false
	}
	if n.dedupeWindow > 0 && record.hash == hash && now.Sub(record.at) < n.dedupeWindow {
		return false
	}
	return true
}

func (n *Notifier) markSent(key, hash string) {
	n.mu.Lock()
	n.sent[key] = sendRecord{at: n.clock.Now().UTC(), hash: hash}
	n.mu.Unlock()
}

func alarmData(kind, module, severity string, code int, message, rule string, tagPaths []string, at time.Time) TemplateData {
	return TemplateData{
		Event:      kind,
		EventLabel: eventLabel(kind),
		Module:     module,
		Severity:   severity,
		Code:       code,
		Message:    message,
		Rule:       rule,
		Tags:       append([]string(nil), tagPaths...),
		OccurredAt: formatTime(at),
		Suggestion: suggestionFor(kind, severity),
	}
}

func eventLabel(event string) string {
	switch event {
	case EventActivated:
		return "Alarm Activated"
	case EventCleared:
		return "Alarm Cleared"
	case EventEscalated:
		return "Alarm Escalated"
	case EventScenarioStarted:
		return "Scenario Started"
	case EventScenarioFinished:
		return "Scenario Finished"
	default:
		return event
	}
}

func suggestionFor(event, severity string) string {
	switch event {
	case EventEscalated:
		return "Fault still active, call maintenance."
	case EventCleared:
		return "No action required."
	case EventScenarioStarted:
		return "Expect a burst of symptom tags on the line."
	case EventScenarioFinished:
		return "Symptoms reset, line back to RUNNING."
	}
	if alarms.Severity(severity).IsFault() {
		return "Inspect the module and clear the fault condition."
	}
	if alarms.Severity(severity) == alarms.SeverityWarning {
		return "Verify the condition before it escalates."
	}
	return "Monitor the alarm condition."
}

// notificationKey uses module and code, not the instance: repeats of one
// alarm share a cooldown.
func notificationKey(data TemplateData) string {
	if data.Scenario != "" {
		return "scenario:" + data.Scenario + "|" + data.Event
	}
	return fmt.Sprintf("%s:%d|%s", data.Module, data.Code, data.Event)
}

func fingerprint(data TemplateData) string {
	raw := fmt.Sprintf("%s|%s|%s|%d|%s|%s|%s", data.Event, data.Module, data.Severity, data.Code, data.Message, data.Rule, data.Scenario)
	sum := sha1.Sum([]byte(raw))
	return hex.EncodeToString(sum[:8])
}

func formatTime(at time.Time) string {
	if at.IsZero() {
		return ""
	}
	return at.UTC().Format(time.RFC3339)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
