// Package dedupe tracks feedback submission ids so a retried submit is not
// appended to the sink twice.
package dedupe

import (
	"context"
	"sync"

	"github.com/golang/groupcache/lru"
)

const defaultMaxSize = 50000

// Deduper records seen submission ids.
type Deduper interface {
	// SeenAndRecord reports whether id was already recorded, recording it
	// when it was not. The check and the insert are one atomic step.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord forgets id so the same submission can be retried after its
	// write failed.
	Unrecord(ctx context.Context, id string)

	Size() int64
}

// inMemoryDeduper keeps ids in a least-recently-used cache; a resubmission
// refreshes its id. maxSize <= 0 means unbounded.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    *lru.Cache
	maxSize int
}

// NewInMemoryDeduper creates a deduper. The default bound is 50000 ids.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{maxSize: defaultMaxSize}
	for _, opt := range opts {
		opt(d)
	}
	if d.maxSize < 0 {
		d.maxSize = 0
	}
	d.seen = lru.New(d.maxSize)
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen.Get(id); ok {
		return true
	}
	d.seen.Add(id, struct{}{})
	return false
}

func (d *inMemoryDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen.Remove(id)
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.seen.Len())
}
