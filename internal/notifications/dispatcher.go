package notifications

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// Task is a unit of after-commit work. Errors are logged and dropped.
type Task func(ctx context.Context) error

type job struct {
	name string
	fn   Task
	ctx  context.Context
}

// Dispatcher runs tasks on a bounded worker pool, detached from the request
// that submitted them.
type Dispatcher struct {
	jobs    chan job
	timeout time.Duration
	logg    *logger.Logger
	metrics *metrics.SideEffectMetrics

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type DispatcherParams struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration
	Logger      *logger.Logger
	Metrics     *metrics.SideEffectMetrics
}

// NewDispatcher starts the worker pool.
func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Workers <= 0 {
		params.Workers = 1
	}
	if params.QueueSize < 0 {
		params.QueueSize = 0
	}
	if params.TaskTimeout <= 0 {
		params.TaskTimeout = 30 * time.Second
	}
	d := &Dispatcher{
		jobs:    make(chan job, params.QueueSize),
		timeout: params.TaskTimeout,
		logg:    params.Logger,
		metrics: params.Metrics,
	}
	for i := 0; i < params.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d, nil
}

// Submit enqueues fn without blocking. It returns false when the queue is
// full or the dispatcher is closed; the task is dropped in that case.
// Log fields attached to ctx are carried over, its cancellation is not.
func (d *Dispatcher) Submit(ctx context.Context, name string, fn Task) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logg.Warn(d.logg.WithField(ctx, "task", name), "side effect dropped: dispatcher closed")
		d.metrics.IncResult(name, "dropped")
		return false
	}
	select {
	case d.jobs <- job{name: name, fn: fn, ctx: context.WithoutCancel(ctx)}:
		return true
	default:
		d.logg.Warn(d.logg.WithField(ctx, "task", name), "side effect dropped: queue full")
		d.metrics.IncResult(name, "dropped")
		return false
	}
}

// Close stops accepting tasks and waits for queued ones until ctx expires.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.jobs)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.run(j)
	}
}

func (d *Dispatcher) run(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.timeout)
	defer cancel()
	logCtx := d.logg.WithField(ctx, "task", j.name)
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			d.logg.Error(logCtx, "side effect panicked", errors.New("panic in side effect task"))
			d.metrics.IncResult(j.name, "failed")
		}
	}()

	err := j.fn(ctx)
	d.metrics.ObserveDuration(j.name, time.Since(started))
	switch {
	case err == nil:
		d.metrics.IncResult(j.name, "ok")
	case errors.Is(err, context.DeadlineExceeded):
		d.logg.Warn(logCtx, "side effect timed out")
		d.metrics.IncResult(j.name, "timeout")
	default:
		d.logg.Error(logCtx, "side effect failed", err)
		d.metrics.IncResult(j.name, "failed")
	}
}
