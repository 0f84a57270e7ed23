package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// TaskRunner runs best-effort background tasks. Tasks are detached from the
// caller's cancellation, bounded by a timeout, and their failures are only
// logged.
type TaskRunner struct {
	logger   zerolog.Logger
	timeout  time.Duration
	wg       sync.WaitGroup
	failures atomic.Int64
}

func NewTaskRunner(logger zerolog.Logger, timeout time.Duration) *TaskRunner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &TaskRunner{
		logger:  logger.With().Str("component", "tasks").Logger(),
		timeout: timeout,
	}
}

// Go starts fn in its own goroutine.
func (r *TaskRunner) Go(ctx context.Context, name string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()

		if err := r.run(ctx, fn); err != nil {
			r.failures.Add(1)
			r.logger.Warn().Err(err).Str("task", name).Msg("background task failed")
		}
	}()
}

func (r *TaskRunner) run(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx)
}

// Wait blocks until all started tasks have returned.
func (r *TaskRunner) Wait() {
	r.wg.Wait()
}

// Failures returns the number of tasks that failed or panicked.
func (r *TaskRunner) Failures() int64 {
	return r.failures.Load()
}
