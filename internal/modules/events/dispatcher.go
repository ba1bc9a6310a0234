package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/georgemunganga/storefront-backend/internal/pkg/logging"
	"github.com/georgemunganga/storefront-backend/internal/pkg/metrics"
	"go.uber.org/zap"
)

// ErrClosed is returned by Close when called twice.
var ErrClosed = errors.New("dispatcher closed")

type task struct {
	name string
	ctx  context.Context
	fn   func(context.Context) error
}

// Dispatcher runs best-effort side effects on a bounded worker pool. A task
// failure is logged and counted, never propagated to the caller.
type Dispatcher struct {
	queue   chan task
	timeout time.Duration
	metrics *metrics.Registry

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher starts workers goroutines draining a queue of queueSize tasks.
func NewDispatcher(workers, queueSize int, timeout time.Duration, m *metrics.Registry) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	d := &Dispatcher{queue: make(chan task, queueSize), timeout: timeout, metrics: m}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

// Go schedules fn. The task context keeps ctx's values but not its
// cancellation. When the queue is full or the dispatcher is closed the task is dropped.
func (d *Dispatcher) Go(ctx context.Context, name string, fn func(context.Context) error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	logger := logging.FromContext(ctx)
	if d.closed {
		logger.Warn("side_effect_dropped", zap.String("task", name), zap.String("reason", "closed"))
		d.metrics.SideEffect(name, ErrClosed)
		return
	}
	select {
	case d.queue <- task{name: name, ctx: context.WithoutCancel(ctx), fn: fn}:
	default:
		logger.Warn("side_effect_dropped", zap.String("task", name), zap.String("reason", "queue_full"))
		d.metrics.SideEffect(name, errors.New("queue full"))
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for t := range d.queue {
		d.run(t)
	}
}

func (d *Dispatcher) run(t task) {
	ctx, cancel := context.WithTimeout(t.ctx, d.timeout)
	defer cancel()
	logger := logging.FromContext(ctx)

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return t.fn(ctx)
	}()
	d.metrics.SideEffect(t.name, err)
	if err != nil {
		logger.Error("side_effect_failed", zap.String("task", t.name), zap.Error(err))
		return
	}
	logger.Debug("side_effect_done", zap.String("task", t.name))
}

// Close stops accepting tasks and waits for queued ones to finish or ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.closed = true
	close(d.queue)
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
