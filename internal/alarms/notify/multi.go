package notify

import (
	"context"
	"errors"
)

// MultiChannel sends to every channel and joins their errors.
type MultiChannel struct {
	channels []Channel
}

// NewMultiChannel constructs a MultiChannel. Nil channels are skipped.
func NewMultiChannel(channels ...Channel) *MultiChannel {
	out := make([]Channel, 0, len(channels))
	for _, channel := range channels {
		if channel != nil {
			out = append(out, channel)
		}
	}
	return &MultiChannel{channels: out}
}

// Len reports the number of channels.
func (m *MultiChannel) Len() int {
	if m == nil {
		return 0
	}
	return len(m.channels)
}

// Send implements Channel.
func (m *MultiChannel) Send(ctx context.Context, content string) error {
	if m == nil {
		return nil
	}
	var errs []error
	for _, channel := range m.channels {
		if err := channel.Send(ctx, content); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
