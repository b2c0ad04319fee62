// Package worker runs debounced rank sweeps requested through the sweep
// queue.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/scoreboard/internal/adapters/mq/queue"
	"github.com/okian/scoreboard/internal/domain/ranking"
	"github.com/okian/scoreboard/pkg/logger"
	"github.com/okian/scoreboard/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Sweeper recomputes ranks for a course.
type Sweeper interface {
	Sweep(ctx context.Context, courseID string) (ranking.SweepResult, error)
}

// Marks releases the pending-sweep mark of a course.
type Marks interface {
	Clear(ctx context.Context, courseID string) error
}

// Queue defines how workers receive sweep requests.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.SweepRequest
}

// Worker processes sweep requests.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker. A request waiting out its debounce window
	// is swept immediately, and so is anything still queued.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue   Queue
	sweeper Sweeper
	marks   Marks
	name    string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(q Queue, sweeper Sweeper, marks Marks, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    q,
		sweeper:  sweeper,
		marks:    marks,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

// Run implements Worker.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	requests := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			w.drain(ctx, requests)
			return
		case r, ok := <-requests:
			if !ok {
				return
			}
			if !w.waitUntil(ctx, r.NotBefore) {
				return
			}
			w.handle(ctx, r)
		}
	}
}

// drain sweeps what is still queued after shutdown. A closed queue is read
// until its channel closes; otherwise only requests already delivered are
// taken.
func (w *InMemoryWorker) drain(ctx context.Context, requests <-chan queue.SweepRequest) {
	closer, canClose := w.queue.(interface{ IsClosed() bool })
	for {
		if canClose && closer.IsClosed() {
			select {
			case <-ctx.Done():
				return
			case r, ok := <-requests:
				if !ok {
					return
				}
				w.handle(ctx, r)
			}
			continue
		}
		select {
		case <-ctx.Done():
			return
		case r, ok := <-requests:
			if !ok {
				return
			}
			w.handle(ctx, r)
		default:
			return
		}
	}
}

func (w *InMemoryWorker) handle(ctx context.Context, r queue.SweepRequest) {
	if err := w.process(ctx, r); err != nil {
		w.logger.Error(ctx, "sweep failed", logger.String("course_id", r.CourseID), logger.Error(err))
	}
}

// waitUntil blocks until t. It returns false when ctx ends first.
func (w *InMemoryWorker) waitUntil(ctx context.Context, t time.Time) bool {
	d := time.Until(t)
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-w.shutdown:
		return true
	case <-ctx.Done():
		return false
	}
}

// process clears the pending mark before sweeping, so a submission that
// lands during the sweep schedules a follow-up sweep.
func (w *InMemoryWorker) process(ctx context.Context, r queue.SweepRequest) error {
	if err := w.marks.Clear(ctx, r.CourseID); err != nil {
		w.logger.Warn(ctx, "clearing sweep mark failed", logger.String("course_id", r.CourseID), logger.Error(err))
	}

	res, err := w.sweeper.Sweep(ctx, r.CourseID)
	if err != nil {
		metrics.RecordSweep("debounced", "error")
		return fmt.Errorf("sweep %s: %w", r.CourseID, err)
	}
	metrics.RecordSweep("debounced", "ok")
	w.logger.Debug(ctx, "debounced sweep done",
		logger.String("course_id", r.CourseID),
		logger.Int("entries", res.Entries),
		logger.Duration("lag", time.Since(r.RequestedAt)),
	)
	return nil
}

// Shutdown implements Worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.shutdown:
	default:
		close(w.shutdown)
	}

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers, defaulting to NumCPU.
func NewPool(workerCount int, q Queue, sweeper Sweeper, marks Marks, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Nop(),
	}
	base := &InMemoryWorker{logger: logger.Nop()}
	for _, opt := range opts {
		opt(base)
	}
	pool.logger = base.logger.Named("worker-pool")

	for i := 0; i < workerCount; i++ {
		workerOpts := append(append([]Option{}, opts...), WithName("worker-"+strconv.Itoa(i)))
		pool.workers[i] = NewInMemoryWorker(q, sweeper, marks, workerOpts...)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue and waits for the workers to stop.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	metrics.UpdateWorkerCount(0)
	return firstErr
}
