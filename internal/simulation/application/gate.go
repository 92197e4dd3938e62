package application

import (
	"context"
	"errors"
	"sync"

	"linesim/internal/tags/catalog"
	tags "linesim/internal/tags/domain"
)

var (
	// ErrScenarioBusy is returned when a scenario is already mid-execution.
	ErrScenarioBusy = errors.New("simulation: scenario already running")
	// ErrGateNotHeld is returned when releasing a gate held by another run.
	ErrGateNotHeld = errors.New("simulation: line gate not held by run")
	// ErrInvalidLineState rejects background labels other than RUNNING and STOPPED.
	ErrInvalidLineState = errors.New("simulation: invalid line state")
)

// LineGate owns the line-level state tag. A scenario holding the gate is the
// only writer; background writes are refused until it is released.
type LineGate struct {
	mu     sync.Mutex
	tree   tags.Tree
	holder string
}

// NewLineGate constructs a gate writing to tree.
func NewLineGate(tree tags.Tree) (*LineGate, error) {
	if tree == nil {
		return nil, errors.New("line gate: nil tree")
	}
	return &LineGate{tree: tree}, nil
}

// Acquire takes the gate for runID and writes STOPPED. The gate is held even
// when the write fails.
func (g *LineGate) Acquire(ctx context.Context, runID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.holder != "" {
		return ErrScenarioBusy
	}
	g.holder = runID
	return g.tree.Set(ctx, catalog.ProcessLineState, tags.String(catalog.StateStopped))
}

// Release writes RUNNING and frees the gate.
func (g *LineGate) Release(ctx context.Context, runID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.holder != runID {
		return ErrGateNotHeld
	}
	g.holder = ""
	return g.tree.Set(ctx, catalog.ProcessLineState, tags.String(catalog.StateRunning))
}

// Abandon frees the gate without writing.
func (g *LineGate) Abandon(runID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.holder == runID {
		g.holder = ""
	}
}

// Holder returns the run holding the gate.
func (g *LineGate) Holder() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.holder, g.holder != ""
}

// WriteBackground writes RUNNING or STOPPED unless a scenario holds the gate.
// It reports whether the write was attempted.
func (g *LineGate) WriteBackground(ctx context.Context, state string) (bool, error) {
	if state != catalog.StateRunning && state != catalog.StateStopped {
		return false, ErrInvalidLineState
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.holder != "" {
		return false, nil
	}
	return true, g.tree.Set(ctx, catalog.ProcessLineState, tags.String(state))
}
