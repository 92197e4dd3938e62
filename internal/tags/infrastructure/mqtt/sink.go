package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	tags "linesim/internal/tags/domain"
)

// Publisher is the subset of Client used by the sink.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Close() error
}

// Message is the payload published for each applied write.
type Message struct {
	Path      string     `json:"path"`
	Value     tags.Value `json:"value"`
	Timestamp time.Time  `json:"ts"`
}

// Sink mirrors tree writes to retained MQTT topics.
type Sink struct {
	publisher Publisher
	prefix    string
	qos       byte
	retained  bool
}

// SinkOption configures the sink.
type SinkOption func(*Sink)

// WithQoS sets the publish QoS (0, 1 or 2).
func WithQoS(qos byte) SinkOption {
	return func(s *Sink) {
		if qos <= 2 {
			s.qos = qos
		}
	}
}

// WithRetained toggles the retained flag.
func WithRetained(retained bool) SinkOption {
	return func(s *Sink) {
		s.retained = retained
	}
}

// NewSink constructs an MQTT sink publishing under prefix.
func NewSink(publisher Publisher, prefix string, opts ...SinkOption) (*Sink, error) {
	if publisher == nil {
		return nil, errors.New("mqtt sink: nil publisher")
	}
	s := &Sink{
		publisher: publisher,
		prefix:    strings.Trim(prefix, "/"),
		retained:  true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Name implements tags.Sink.
func (s *Sink) Name() string { return "mqtt" }

// Topic returns the topic a tag path is published to.
func (s *Sink) Topic(path string) string {
	topic := strings.ReplaceAll(path, ".", "/")
	if s.prefix == "" {
		return topic
	}
	return s.prefix + "/" + topic
}

// Apply implements tags.Sink. Every write is attempted; failures are joined.
func (s *Sink) Apply(ctx context.Context, writes []tags.Write, at time.Time) error {
	var errs []error
	for _, w := range writes {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, err := json.Marshal(Message{Path: w.Path, Value: w.Value, Timestamp: at.UTC()})
		if err != nil {
			errs = append(errs, fmt.Errorf("mqtt sink: encode %s: %w", w.Path, err))
			continue
		}
		if err := s.publisher.Publish(s.Topic(w.Path), s.qos, s.retained, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements tags.Sink.
func (s *Sink) Close() error {
	return s.publisher.Close()
}
