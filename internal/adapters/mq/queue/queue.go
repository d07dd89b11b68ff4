// Package queue holds pending retrain jobs between feedback writes and the
// retrain workers.
//
// Enqueue never blocks: when the queue is full the job is dropped, which is
// safe because any queued job retrains from the full feedback history.
package queue

import (
	"context"
	"sync"

	"github.com/okian/profiler/internal/domain/model"
	"github.com/okian/profiler/pkg/metrics"
)

const defaultQueueCapacity = 16

// Job is the payload flowing through the queue.
type Job = model.RetrainJob

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job. It returns false if the queue is full or closed.
	Enqueue(ctx context.Context, j Job) bool

	// Dequeue returns a channel of jobs. It is closed when the queue is
	// closed or ctx ends.
	Dequeue(ctx context.Context) <-chan Job

	// Len returns the number of pending jobs.
	Len(ctx context.Context) int

	// Close stops accepting jobs and closes dequeue channels once drained.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a job without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, j Job) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueEnqueueError("closed")
		return false
	}
	select {
	case <-ctx.Done():
		metrics.RecordQueueEnqueueError("context_cancelled")
		return false
	default:
	}
	select {
	case q.jobs <- j:
		metrics.UpdateQueueSize(len(q.jobs))
		return true
	default:
		metrics.RecordQueueEnqueueError("queue_full")
		return false
	}
}

// Schedule enqueues a fresh retrain job for reason. It lets the queue stand
// in as the predictor's retrain scheduler.
func (q *InMemoryQueue) Schedule(ctx context.Context, reason string) bool {
	return q.Enqueue(ctx, model.NewRetrainJob(reason))
}

// Dequeue returns a channel that receives jobs as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Job {
	out := make(chan Job)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case j, ok := <-q.jobs:
				if !ok {
					return
				}
				metrics.UpdateQueueSize(len(q.jobs))
				select {
				case out <- j:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Len returns the number of pending jobs.
func (q *InMemoryQueue) Len(context.Context) int {
	n := len(q.jobs)
	metrics.UpdateQueueSize(n)
	return n
}

// Close stops the queue. It is idempotent.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
