package workqueue

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/bitebase/intelligence-engine/pkg/retry"
)

var (
	// ErrQueueClosed is returned by Enqueue after Stop has been called.
	ErrQueueClosed = errors.New("work queue closed")
	// ErrQueueFull is returned by Enqueue when the buffer is at capacity.
	ErrQueueFull = errors.New("work queue full")
)

// DefaultDepth is the default buffer capacity for a serial queue.
const DefaultDepth = 256

// Job is a named unit of work applied by a serial queue.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// SerialQueue applies jobs one at a time, in submission order, on a single
// background worker. Transient failures are retried with exponential backoff;
// jobs that still fail are logged and dropped, never re-ordered or re-queued.
//
// This is the applier behind fire-and-forget updates (feedback folding into
// pattern aggregates) where per-event atomicity comes from the job itself
// running in a transaction and ordering comes from the single worker.
type SerialQueue struct {
	mu     sync.Mutex
	jobs   chan Job
	closed bool

	retryConfig *retry.Config
	logger      *zap.Logger

	// base is the worker's context; cancelled to abort an in-flight job
	// when Stop's drain deadline expires.
	base   context.Context
	cancel context.CancelFunc

	// drained is closed when the worker has exited.
	drained chan struct{}
}

// Option configures a SerialQueue.
type Option func(*SerialQueue)

// WithRetryConfig sets the retry configuration for failed jobs.
func WithRetryConfig(cfg *retry.Config) Option {
	return func(q *SerialQueue) {
		if cfg != nil {
			q.retryConfig = cfg
		}
	}
}

// WithDepth sets the buffer capacity.
func WithDepth(depth int) Option {
	return func(q *SerialQueue) {
		if depth > 0 {
			q.jobs = make(chan Job, depth)
		}
	}
}

// New creates a serial queue and starts its worker.
func New(logger *zap.Logger, opts ...Option) *SerialQueue {
	ctx, cancel := context.WithCancel(context.Background())
	q := &SerialQueue{
		jobs:        make(chan Job, DefaultDepth),
		retryConfig: retry.DefaultConfig(),
		logger:      logger.Named("workqueue"),
		base:        ctx,
		cancel:      cancel,
		drained:     make(chan struct{}),
	}

	for _, opt := range opts {
		opt(q)
	}

	go q.run()
	return q
}

// Enqueue submits a job for asynchronous application. It never blocks:
// a full buffer returns ErrQueueFull so the caller can surface backpressure
// instead of stalling its request.
func (q *SerialQueue) Enqueue(job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.jobs <- job:
		return nil
	default:
		q.logger.Warn("queue full, rejecting job",
			zap.String("job", job.Name),
			zap.Int("depth", cap(q.jobs)))
		return ErrQueueFull
	}
}

// Depth returns the number of jobs waiting to be applied.
func (q *SerialQueue) Depth() int {
	return len(q.jobs)
}

// Stop closes the intake and waits for queued jobs to drain. If ctx expires
// first, the in-flight job is cancelled and Stop returns ctx.Err(); remaining
// jobs fail fast against the cancelled worker context.
func (q *SerialQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	select {
	case <-q.drained:
		return nil
	case <-ctx.Done():
		q.cancel()
		return ctx.Err()
	}
}

func (q *SerialQueue) run() {
	defer close(q.drained)

	for job := range q.jobs {
		q.apply(job)
	}
	q.logger.Debug("worker drained")
}

func (q *SerialQueue) apply(job Job) {
	start := time.Now()

	err := retry.DoIfRetryable(q.base, q.retryConfig, func() error {
		return job.Run(q.base)
	})
	if err != nil {
		q.logger.Error("job failed",
			zap.String("job", job.Name),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return
	}

	q.logger.Debug("job applied",
		zap.String("job", job.Name),
		zap.Duration("elapsed", time.Since(start)))
}
