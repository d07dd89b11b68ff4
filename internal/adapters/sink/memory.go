package sink

import (
	"context"
	"sync"

	"github.com/okian/profiler/internal/domain/quiz"
)

// Memory keeps records in process memory. It backs tests and throwaway runs.
type Memory struct {
	mu      sync.RWMutex
	records []quiz.FeedbackRecord
	closed  bool
}

// NewMemory returns an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(_ context.Context, r quiz.FeedbackRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return unavailable("append", ErrClosed)
	}
	m.records = append(m.records, r)
	return nil
}

func (m *Memory) AppendBatch(_ context.Context, rs []quiz.FeedbackRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return unavailable("append batch", ErrClosed)
	}
	m.records = append(m.records, rs...)
	return nil
}

func (m *Memory) Records(context.Context) ([]quiz.FeedbackRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, unavailable("records", ErrClosed)
	}
	return append([]quiz.FeedbackRecord(nil), m.records...), nil
}

func (m *Memory) Tally(ctx context.Context) ([]Tally, error) {
	rs, err := m.Records(ctx)
	if err != nil {
		return nil, err
	}
	return tally(rs), nil
}

func (m *Memory) Count(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, unavailable("count", ErrClosed)
	}
	return len(m.records), nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
