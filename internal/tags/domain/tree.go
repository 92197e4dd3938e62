package tags

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyPath is returned for writes without a tag path.
	ErrEmptyPath = errors.New("tags: empty path")
	// ErrInvalidValue is returned for writes carrying no value.
	ErrInvalidValue = errors.New("tags: invalid value")
	// ErrNotFound indicates an unknown tag path.
	ErrNotFound = errors.New("tags: not found")
	// ErrReadOnly indicates an external write to a tag the simulator owns.
	ErrReadOnly = errors.New("tags: read only")
)

// Write is one tag assignment.
type Write struct {
	Path  string `json:"path"`
	Value Value  `json:"value"`
}

// W is shorthand for building a Write.
func W(path string, value Value) Write {
	return Write{Path: path, Value: value}
}

// Tree is the live state tree the simulation mutates.
type Tree interface {
	// Set overwrites one tag.
	Set(ctx context.Context, path string, value Value) error
	// SetMany applies writes in the given order. Observers may see a partially applied batch.
	SetMany(ctx context.Context, writes []Write) error
}

// Sink receives every batch applied to the tree, in application order.
type Sink interface {
	Name() string
	Apply(ctx context.Context, writes []Write, at time.Time) error
	Close() error
}

// Definition describes a catalog tag.
type Definition struct {
	Path        string `json:"path"`
	Description string `json:"description,omitempty"`
	Value       Value  `json:"value"`
	Writable    bool   `json:"writable"`
}

// Tag is a point-in-time view of one tag.
type Tag struct {
	Path      string    `json:"path"`
	Value     Value     `json:"value"`
	Kind      string    `json:"kind"`
	Writable  bool      `json:"writable"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WriteError reports a failed write. Path is empty when a sink rejected a whole batch.
type WriteError struct {
	Path string
	Sink string
	Err  error
}

func (e *WriteError) Error() string {
	switch {
	case e.Sink != "" && e.Path != "":
		return fmt.Sprintf("tags: sink %s: write %s: %v", e.Sink, e.Path, e.Err)
	case e.Sink != "":
		return fmt.Sprintf("tags: sink %s: %v", e.Sink, e.Err)
	default:
		return fmt.Sprintf("tags: write %s: %v", e.Path, e.Err)
	}
}

func (e *WriteError) Unwrap() error { return e.Err }
