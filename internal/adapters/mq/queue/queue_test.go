package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/okian/profiler/internal/domain/model"
	"go.uber.org/goleak"
)

func TestInMemoryQueue_BasicOperations(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}

	job := model.NewRetrainJob(model.ReasonFeedback)
	if !q.Enqueue(ctx, job) {
		t.Fatal("expected enqueue to succeed")
	}
	if l := q.Len(ctx); l != 1 {
		t.Errorf("expected length 1, got %d", l)
	}

	got := <-q.Dequeue(ctx)
	if got.ID != job.ID {
		t.Errorf("expected job %s, got %s", job.ID, got.ID)
	}
	if l := q.Len(ctx); l != 0 {
		t.Errorf("expected length 0, got %d", l)
	}
}

func TestInMemoryQueue_DropsWhenFull(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(2))
	ctx := context.Background()

	if !q.Schedule(ctx, model.ReasonFeedback) || !q.Schedule(ctx, model.ReasonFeedback) {
		t.Fatal("expected the first two jobs to be accepted")
	}
	if q.Schedule(ctx, model.ReasonFeedback) {
		t.Error("expected schedule to report a dropped job when full")
	}
	if l := q.Len(ctx); l != 2 {
		t.Errorf("expected length 2, got %d", l)
	}
}

func TestInMemoryQueue_CancelledContext(t *testing.T) {
	q := NewInMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if q.Enqueue(ctx, model.NewRetrainJob(model.ReasonManual)) {
		t.Error("expected enqueue with a cancelled context to fail")
	}
}

func TestInMemoryQueue_ConcurrentAccess(t *testing.T) {
	q := NewInMemoryQueue(WithCapacity(8))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const producers, perProducer = 4, 50
	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perProducer; j++ {
				for !q.Schedule(ctx, model.ReasonFeedback) {
					time.Sleep(time.Millisecond)
				}
			}
		}()
	}

	consumed := make(chan struct{}, producers*perProducer)
	for i := 0; i < 2; i++ {
		go func() {
			for range q.Dequeue(ctx) {
				consumed <- struct{}{}
			}
		}()
	}
	wg.Wait()

	deadline := time.After(2 * time.Second)
	for n := 0; n < producers*perProducer; n++ {
		select {
		case <-consumed:
		case <-deadline:
			t.Fatalf("consumed %d of %d jobs", n, producers*perProducer)
		}
	}
}

func TestInMemoryQueue_GracefulShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	q := NewInMemoryQueue(WithCapacity(10))
	ctx := context.Background()

	if !q.Schedule(ctx, model.ReasonStartup) {
		t.Fatal("expected enqueue to succeed")
	}
	if q.IsClosed() {
		t.Error("expected queue to be open initially")
	}
	if err := q.Close(); err != nil {
		t.Fatalf("expected close to succeed, got %v", err)
	}
	if !q.IsClosed() {
		t.Error("expected queue to be closed after Close()")
	}
	if q.Schedule(ctx, model.ReasonFeedback) {
		t.Error("expected enqueue to fail after closing")
	}

	// Pending jobs drain before the channel closes.
	jobs := q.Dequeue(ctx)
	timeout := time.After(time.Second)
	drained := 0
	for {
		select {
		case _, ok := <-jobs:
			if !ok {
				if drained != 1 {
					t.Errorf("expected 1 drained job, got %d", drained)
				}
				if err := q.Close(); err != nil {
					t.Errorf("expected second close to succeed, got %v", err)
				}
				return
			}
			drained++
		case <-timeout:
			t.Fatal("expected dequeue channel to close")
		}
	}
}
