package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tags "linesim/internal/tags/domain"
)

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakePublisher struct {
	messages []published
	failOn   string
	closed   bool
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if topic == p.failOn {
		return errors.New("publish refused")
	}
	p.messages = append(p.messages, published{topic: topic, qos: qos, retained: retained, payload: payload})
	return nil
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func TestSink_TopicMapping(t *testing.T) {
	sink, err := NewSink(&fakePublisher{}, "/linesim/")
	require.NoError(t, err)
	assert.Equal(t, "linesim/MMA/GuardDoor1", sink.Topic("MMA.GuardDoor1"))

	bare, err := NewSink(&fakePublisher{}, "")
	require.NoError(t, err)
	assert.Equal(t, "Line/State", bare.Topic("Line.State"))
}

func TestSink_ApplyPublishesEachWrite(t *testing.T) {
	pub := &fakePublisher{}
	sink, err := NewSink(pub, "linesim", WithQoS(1), WithRetained(false))
	require.NoError(t, err)

	at := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	err = sink.Apply(context.Background(), []tags.Write{
		tags.W("SDC.BrakeTorque", tags.Float(50)),
		tags.W("Line.State", tags.String("STOPPED")),
	}, at)
	require.NoError(t, err)

	require.Len(t, pub.messages, 2)
	first := pub.messages[0]
	assert.Equal(t, "linesim/SDC/BrakeTorque", first.topic)
	assert.Equal(t, byte(1), first.qos)
	assert.False(t, first.retained)

	var msg Message
	require.NoError(t, json.Unmarshal(first.payload, &msg))
	assert.Equal(t, "SDC.BrakeTorque", msg.Path)
	assert.Equal(t, tags.Int(50), msg.Value, "integral floats decode as ints")
	assert.True(t, at.Equal(msg.Timestamp))
}

func TestSink_ApplyContinuesPastFailures(t *testing.T) {
	pub := &fakePublisher{failOn: "linesim/A/B"}
	sink, err := NewSink(pub, "linesim")
	require.NoError(t, err)

	err = sink.Apply(context.Background(), []tags.Write{
		tags.W("A.B", tags.Bool(true)),
		tags.W("A.C", tags.Bool(true)),
	}, time.Now())
	assert.Error(t, err)
	require.Len(t, pub.messages, 1)
	assert.Equal(t, "linesim/A/C", pub.messages[0].topic)
	assert.True(t, pub.messages[0].retained)
}

func TestSink_ApplyStopsOnCancelledContext(t *testing.T) {
	pub := &fakePublisher{}
	sink, err := NewSink(pub, "linesim")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = sink.Apply(ctx, []tags.Write{tags.W("A.B", tags.Int(1))}, time.Now())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, pub.messages)
}

func TestNewSink_RejectsNilPublisher(t *testing.T) {
	_, err := NewSink(nil, "linesim")
	assert.Error(t, err)
}

func TestDial_RequiresBroker(t *testing.T) {
	_, err := Dial(Config{}, nil)
	assert.Error(t, err)
}
