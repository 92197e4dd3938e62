package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"linesim/internal/observability/metrics"
	tags "linesim/internal/tags/domain"
)

type entry struct {
	value     tags.Value
	writable  bool
	updatedAt time.Time
}

// Store is the in-memory live state tree. Batches are applied one at a time
// and forwarded to sinks in the same order.
type Store struct {
	writeMu sync.Mutex

	mu     sync.RWMutex
	values map[string]*entry

	sinks  []tags.Sink
	logger *zap.Logger
	now    func() time.Time
}

// Option configures the store.
type Option func(*Store)

// WithSink attaches a sink. Sinks see batches after the in-memory update.
func WithSink(sink tags.Sink) Option {
	return func(s *Store) {
		if sink != nil {
			s.sinks = append(s.sinks, sink)
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore constructs an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		values: make(map[string]*entry),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddSink attaches a sink after construction.
func (s *Store) AddSink(sink tags.Sink) {
	if sink == nil {
		return
	}
	s.writeMu.Lock()
	s.sinks = append(s.sinks, sink)
	s.writeMu.Unlock()
}

// Seed registers catalog definitions. Existing values are kept; the
// writable flag follows the definition. Duplicate paths in defs are skipped.
func (s *Store) Seed(defs []tags.Definition) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	added := 0
	for _, def := range defs {
		if def.Path == "" {
			continue
		}
		if current, ok := s.values[def.Path]; ok {
			current.writable = def.Writable
			continue
		}
		s.values[def.Path] = &entry{value: def.Value, writable: def.Writable, updatedAt: now}
		added++
	}
	return added
}

// Set implements tags.Tree.
func (s *Store) Set(ctx context.Context, path string, value tags.Value) error {
	return s.SetMany(ctx, []tags.Write{{Path: path, Value: value}})
}

// SetMany implements tags.Tree. Invalid writes are reported and skipped;
// the rest of the batch still applies.
func (s *Store) SetMany(ctx context.Context, writes []tags.Write) error {
	if len(writes) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var errs []error
	applied := make([]tags.Write, 0, len(writes))
	now := s.now()

	s.mu.Lock()
	for _, w := range writes {
		if w.Path == "" {
			errs = append(errs, &tags.WriteError{Path: w.Path, Err: tags.ErrEmptyPath})
			continue
		}
		if w.Value.IsZero() {
			errs = append(errs, &tags.WriteError{Path: w.Path, Err: tags.ErrInvalidValue})
			continue
		}
		current, ok := s.values[w.Path]
		if !ok {
			current = &entry{}
			s.values[w.Path] = current
		}
		current.value = w.Value
		current.updatedAt = now
		applied = append(applied, w)
	}
	s.mu.Unlock()

	for _, w := range applied {
		s.logger.Debug("tag set", zap.String("path", w.Path), zap.Stringer("value", w.Value))
	}
	metrics.AddTagWrites(metrics.ResultSuccess, len(applied))
	metrics.AddTagWrites(metrics.ResultError, len(errs))

	if len(applied) > 0 {
		for _, sink := range s.sinks {
			if err := sink.Apply(ctx, applied, now); err != nil {
				metrics.IncSinkError(sink.Name())
				errs = append(errs, &tags.WriteError{Sink: sink.Name(), Err: err})
			}
		}
	}
	return errors.Join(errs...)
}

// Get returns the current value of path.
func (s *Store) Get(path string) (tags.Tag, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	current, ok := s.values[path]
	if !ok {
		return tags.Tag{}, false
	}
	return toTag(path, current), true
}

// Writable reports whether external clients may write path.
func (s *Store) Writable(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	current, ok := s.values[path]
	return ok && current.writable
}

// Snapshot returns all tags sorted by path.
func (s *Store) Snapshot() []tags.Tag {
	s.mu.RLock()
	result := make([]tags.Tag, 0, len(s.values))
	for path, current := range s.values {
		result = append(result, toTag(path, current))
	}
	s.mu.RUnlock()
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result
}

// Len returns the number of known tags.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

// Close closes every sink. Writes after Close still update memory.
func (s *Store) Close() error {
	s.writeMu.Lock()
	sinks := s.sinks
	s.sinks = nil
	s.writeMu.Unlock()

	var errs []error
	for _, sink := range sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, &tags.WriteError{Sink: sink.Name(), Err: err})
		}
	}
	return errors.Join(errs...)
}

func toTag(path string, current *entry) tags.Tag {
	return tags.Tag{
		Path:      path,
		Value:     current.value,
		Kind:      current.value.Kind().String(),
		Writable:  current.writable,
		UpdatedAt: current.updatedAt,
	}
}
