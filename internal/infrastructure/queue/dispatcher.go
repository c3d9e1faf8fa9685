package queue

import (
	"context"
	"log/slog"
	"sync"

	"SalesReportAnalyzer/internal/ports"
)

// RunFunc executes one pipeline run for a request id.
type RunFunc func(ctx context.Context, requestID int64) error

// Dispatcher triggers pipeline runs asynchronously through a bounded
// in-process queue and a fixed pool of workers. Runs for different request
// ids may execute concurrently; the pipeline itself holds no shared state
// between runs.
type Dispatcher struct {
	run     RunFunc
	queue   chan int64
	workers int
	logger  *slog.Logger

	mu   sync.Mutex
	wg   sync.WaitGroup
	stop chan struct{}
}

var _ ports.Dispatcher = (*Dispatcher)(nil)

// NewDispatcher builds a dispatcher; workers and queueSize fall back to
// sane minimums when unset.
func NewDispatcher(run RunFunc, workers, queueSize int, logger *slog.Logger) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 16
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		run:     run,
		queue:   make(chan int64, queueSize),
		workers: workers,
		logger:  logger,
	}
}

// Start launches the worker pool. Calling Start twice is a no-op.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stop != nil {
		return
	}
	d.stop = make(chan struct{})

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, d.stop)
	}
}

// Stop drains the workers and waits for in-flight runs to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stop == nil {
		d.mu.Unlock()
		return
	}
	close(d.stop)
	d.stop = nil
	d.mu.Unlock()

	d.wg.Wait()
}

// Dispatch enqueues a request id for asynchronous processing. The call is
// fire-and-forget; a full queue blocks until a worker frees a slot. When the
// dispatcher is not running the id is logged and dropped — the request row
// stays in status_created and a later redelivery picks it up.
func (d *Dispatcher) Dispatch(requestID int64) {
	d.mu.Lock()
	stop := d.stop
	d.mu.Unlock()

	if stop == nil {
		d.logger.Warn("dispatcher not running, dropping request", "request_id", requestID)
		return
	}

	select {
	case d.queue <- requestID:
	case <-stop:
		d.logger.Warn("dispatcher stopping, dropping request", "request_id", requestID)
	}
}

func (d *Dispatcher) worker(ctx context.Context, stop <-chan struct{}) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case requestID := <-d.queue:
			if err := d.run(ctx, requestID); err != nil {
				d.logger.Error("pipeline run failed", "request_id", requestID, "error", err)
			}
		}
	}
}
