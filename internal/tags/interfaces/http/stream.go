package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	tags "linesim/internal/tags/domain"
)

// Stream event names.
const (
	EventTags     = "tags"
	EventAlarm    = "alarm"
	EventScenario = "scenario"
)

type message struct {
	event string
	data  []byte
}

// SSEBroker fans out tree batches and simulator events to connected clients.
// Slow clients drop messages rather than block writers.
type SSEBroker struct {
	mu      sync.Mutex
	clients map[chan message]struct{}
	closed  bool
}

// NewSSEBroker constructs a broker.
func NewSSEBroker() *SSEBroker {
	return &SSEBroker{clients: make(map[chan message]struct{})}
}

// Name implements tags.Sink.
func (b *SSEBroker) Name() string { return "sse" }

// Apply implements tags.Sink.
func (b *SSEBroker) Apply(_ context.Context, writes []tags.Write, at time.Time) error {
	return b.Publish(EventTags, struct {
		Writes    []tags.Write `json:"writes"`
		Timestamp time.Time    `json:"ts"`
	}{Writes: writes, Timestamp: at.UTC()})
}

// Publish broadcasts payload as JSON under the given event name.
func (b *SSEBroker) Publish(event string, payload any) error {
	if b == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	b.broadcast(message{event: event, data: data})
	return nil
}

// Subscribe registers a new client channel. It returns nil once the broker is closed.
func (b *SSEBroker) Subscribe() chan message {
	if b == nil {
		return nil
	}
	ch := make(chan message, 64)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.clients[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a client channel.
func (b *SSEBroker) Unsubscribe(ch chan message) {
	if b == nil || ch == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[ch]; !ok {
		return
	}
	delete(b.clients, ch)
	close(ch)
}

// Clients returns the number of connected clients.
func (b *SSEBroker) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close implements tags.Sink and disconnects every client.
func (b *SSEBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.clients {
		delete(b.clients, ch)
		close(ch)
	}
	return nil
}

func (b *SSEBroker) broadcast(msg message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// StreamHandler serves the SSE stream.
type StreamHandler struct {
	broker *SSEBroker
}

// NewStreamHandler constructs a stream handler.
func NewStreamHandler(broker *SSEBroker) *StreamHandler {
	return &StreamHandler{broker: broker}
}

// ServeHTTP handles GET /api/v1/tags/stream.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.broker == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	ch := h.broker.Subscribe()
	if ch == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	defer h.broker.Unsubscribe(ch)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	_, _ = w.Write([]byte("event: ready\ndata: {}\n\n"))
	flusher.Flush()

	done := r.Context().Done()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write([]byte("event: " + msg.event + "\n"))
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(msg.data)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-done:
			return
		}
	}
}
