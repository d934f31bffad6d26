package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"github.com/sourcegraph/conc"
	"golang.org/x/sync/semaphore"
)

// DefaultWorkers bounds concurrent stage executions when no size is configured.
const DefaultWorkers = 4

// ErrDispatcherClosed is returned when submitting to a closed dispatcher.
var ErrDispatcherClosed = errors.New("dispatcher is closed")

// PanicHandler is told about jobs that panicked. The dispatcher has already
// recovered; the handler only records.
type PanicHandler func(job string, value any, stack []byte)

// Dispatcher runs background jobs, one goroutine each, with at most `workers`
// running at a time. Go never blocks the caller.
type Dispatcher struct {
	sem     *semaphore.Weighted
	wg      conc.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	closed  atomic.Bool
	pending atomic.Int64

	onPanic PanicHandler
	logger  *slog.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithPanicHandler registers a handler for recovered job panics.
func WithPanicHandler(h PanicHandler) DispatcherOption {
	return func(d *Dispatcher) { d.onPanic = h }
}

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates a dispatcher allowing `workers` concurrent jobs.
func NewDispatcher(workers int, opts ...DispatcherOption) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		sem:    semaphore.NewWeighted(int64(workers)),
		ctx:    ctx,
		cancel: cancel,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Go schedules job in the background. The job's context is cancelled only
// when the dispatcher is force-stopped.
func (d *Dispatcher) Go(name string, job func(ctx context.Context)) error {
	if d.closed.Load() {
		return fmt.Errorf("%w: %s", ErrDispatcherClosed, name)
	}
	d.pending.Add(1)
	d.wg.Go(func() {
		defer d.pending.Add(-1)
		if err := d.sem.Acquire(d.ctx, 1); err != nil {
			d.logger.Warn("job dropped", "job", name, "error", err)
			return
		}
		defer d.sem.Release(1)
		d.run(name, job)
	})
	return nil
}

func (d *Dispatcher) run(name string, job func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			d.logger.Error("job panicked", "job", name, "panic", fmt.Sprint(r))
			if d.onPanic != nil {
				d.onPanic(name, r, stack)
			}
		}
	}()
	job(d.ctx)
}

// Close stops accepting jobs and waits for running ones. If ctx expires
// first, running jobs are cancelled and ctx's error is returned.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.closed.Store(true)
	if n := d.pending.Load(); n > 0 {
		d.logger.Info("waiting for background jobs", "pending", n)
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.logger.Warn("cancelling background jobs", "pending", d.pending.Load())
		d.cancel()
		<-done
		return ctx.Err()
	}
}
