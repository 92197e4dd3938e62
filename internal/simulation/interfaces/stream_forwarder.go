package interfaces

import (
	"context"
	"errors"

	"linesim/internal/eventing"
	simulation "linesim/internal/simulation/domain"
)

// Stream event names as seen by stream clients.
const (
	StreamEventAlarm    = "alarm"
	StreamEventScenario = "scenario"
)

// StreamPublisher broadcasts named payloads to stream clients.
type StreamPublisher interface {
	Publish(event string, payload any) error
}

// StreamForwarder relays simulator lifecycle events to stream clients.
type StreamForwarder struct {
	stream StreamPublisher
}

// NewStreamForwarder constructs a forwarder.
func NewStreamForwarder(stream StreamPublisher) (*StreamForwarder, error) {
	if stream == nil {
		return nil, errors.New("stream forwarder: nil stream")
	}
	return &StreamForwarder{stream: stream}, nil
}

type alarmFrame struct {
	Type  string `json:"type"`
	Event any    `json:"event"`
}

// Register subscribes the forwarder to alarm and scenario events on bus.
func (f *StreamForwarder) Register(bus eventing.Bus) {
	eventing.Subscribe(bus, func(_ context.Context, event simulation.AlarmActivated, _ eventing.Envelope) error {
		return f.stream.Publish(StreamEventAlarm, alarmFrame{Type: "activated", Event: event})
	})
	eventing.Subscribe(bus, func(_ context.Context, event simulation.AlarmCleared, _ eventing.Envelope) error {
		return f.stream.Publish(StreamEventAlarm, alarmFrame{Type: "cleared", Event: event})
	})
	eventing.Subscribe(bus, func(_ context.Context, event simulation.ScenarioPhaseChanged, _ eventing.Envelope) error {
		return f.stream.Publish(StreamEventScenario, event)
	})
}
