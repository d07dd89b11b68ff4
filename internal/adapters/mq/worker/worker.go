// Package worker runs retrain jobs off the queue.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/okian/profiler/internal/adapters/mq/queue"
	"github.com/okian/profiler/internal/domain/predictor"
	"github.com/okian/profiler/pkg/logger"
	"github.com/okian/profiler/pkg/metrics"
)

const (
	defaultWorkerCount  = 1
	poolShutdownTimeout = 30 * time.Second
)

// Job is what workers read off the queue.
type Job = queue.Job

// Retrainer rebuilds and publishes the predictor.
type Retrainer interface {
	Refresh(ctx context.Context) (*predictor.Snapshot, error)
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes retrain jobs.
type Worker interface {
	// Run processes jobs until ctx ends, Shutdown is called or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker and waits for the current job.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	retrainer Retrainer
	name      string

	shutdown chan struct{}
	done     chan struct{}

	parent logger.Logger
	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(q Queue, r Retrainer, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		retrainer: r,
		name:      "retrainer",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		parent:    logger.Nop(),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.Named(w.name)
	return w
}

func (w *InMemoryWorker) baseLogger() logger.Logger {
	return w.parent.Named("retrain-pool")
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "retrain failed", logger.String("job", job.ID), logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, job Job) error {
	start := time.Now()
	s, err := w.retrainer.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("job %s (%s): %w", job.ID, job.Reason, err)
	}
	w.logger.Debug(ctx, "retrain finished",
		logger.String("job", job.ID),
		logger.String("reason", job.Reason),
		logger.Int("rows", s.Rows),
		logger.Duration("took", time.Since(start)),
		logger.Duration("waited", start.Sub(job.RequestedAt)),
	)
	return nil
}

// Pool manages several workers sharing one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	started bool
	logger  logger.Logger
}

// NewPool creates a pool of workerCount workers.
func NewPool(workerCount int, q Queue, r Retrainer, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Nop(),
	}
	for i := range p.workers {
		wopts := append([]Option{}, opts...)
		wopts = append(wopts, WithName("retrainer-"+strconv.Itoa(i)))
		p.workers[i] = NewInMemoryWorker(q, r, wopts...)
		p.logger = p.workers[i].baseLogger()
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	p.started = true
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue, stops every worker and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	if !p.started {
		metrics.UpdateWorkerCount(0)
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var firstErr error
	for i, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	metrics.UpdateWorkerCount(0)
	return firstErr
}
