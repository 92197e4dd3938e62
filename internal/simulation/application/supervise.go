package application

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"linesim/internal/observability/metrics"
)

type process struct {
	name    string
	backoff time.Duration
	run     func(ctx context.Context) error
}

// supervise keeps p running until ctx is done. A failure or panic is logged
// and counted, then the loop restarts after its backoff.
func (e *Engine) supervise(ctx context.Context, p process) {
	logger := e.logger.Named(p.name)
	for {
		err := protect(ctx, p.run)
		if ctx.Err() != nil {
			return
		}
		if err == nil {
			err = fmt.Errorf("%s loop exited", p.name)
		}
		metrics.IncLoopError(p.name)
		logger.Error("loop failed, backing off", zap.Error(err), zap.Duration("backoff", p.backoff))
		if e.clock.Sleep(ctx, p.backoff) != nil {
			return
		}
	}
}

func protect(ctx context.Context, run func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return run(ctx)
}

// every runs tick, then sleeps interval, until tick fails or ctx is done.
func (e *Engine) every(interval time.Duration, tick func(ctx context.Context) error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		for {
			if err := tick(ctx); err != nil {
				return err
			}
			if err := e.clock.Sleep(ctx, interval); err != nil {
				return err
			}
		}
	}
}
