// Package sink implements the append-only feedback destinations: a SQLite
// table, an Azure append blob holding CSV rows, and an in-memory slice.
package sink

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/okian/profiler/internal/domain/quiz"
)

// Kinds of sink.
const (
	KindSQLite = "sqlite"
	KindBlob   = "blob"
	KindMemory = "memory"
)

// Sentinel kinds for sink errors.
var (
	// ErrUnavailable wraps every failure talking to the backing store. It is
	// reported to the caller and never retried here.
	ErrUnavailable = errors.New("feedback sink unavailable")
	ErrClosed      = errors.New("feedback sink closed")
	ErrUnknownKind = errors.New("unknown sink kind")
)

// Tally is the number of confirmations one outcome received.
type Tally struct {
	Outcome string `json:"outcome"`
	Count   int    `json:"count"`
}

// Sink is an append-only store of feedback records. Appends are independent
// and unordered across callers.
type Sink interface {
	Append(ctx context.Context, r quiz.FeedbackRecord) error
	Records(ctx context.Context) ([]quiz.FeedbackRecord, error)
	// Tally counts match judgments per outcome, most confirmed first.
	Tally(ctx context.Context) ([]Tally, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// BatchAppender is implemented by sinks that can append many records in one
// round trip.
type BatchAppender interface {
	AppendBatch(ctx context.Context, rs []quiz.FeedbackRecord) error
}

// AppendAll appends rs, in one batch when the sink supports it.
func AppendAll(ctx context.Context, s Sink, rs []quiz.FeedbackRecord) error {
	if b, ok := s.(BatchAppender); ok {
		return b.AppendBatch(ctx, rs)
	}
	for _, r := range rs {
		if err := s.Append(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

// BlobSettings locates the append blob. ConnectionString wins over
// AccountURL; AccountURL authenticates with the default Azure credential
// chain.
type BlobSettings struct {
	ConnectionString string
	AccountURL       string
	Container        string
	Blob             string
}

// Settings selects and configures a sink.
type Settings struct {
	Kind       string
	SQLitePath string
	Blob       BlobSettings
}

// Open builds the sink named by s.Kind.
func Open(ctx context.Context, s Settings) (Sink, error) {
	switch s.Kind {
	case KindSQLite:
		return OpenSQLite(ctx, s.SQLitePath)
	case KindBlob:
		return OpenBlob(ctx, s.Blob)
	case KindMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, s.Kind)
	}
}

// tally counts match judgments from rs.
func tally(rs []quiz.FeedbackRecord) []Tally {
	counts := make(map[string]int)
	for _, r := range rs {
		if r.Judgment == quiz.JudgmentMatch {
			counts[r.Outcome]++
		}
	}
	out := make([]Tally, 0, len(counts))
	for o, n := range counts {
		out = append(out, Tally{Outcome: o, Count: n})
	}
	sortTally(out)
	return out
}

func sortTally(ts []Tally) {
	sort.Slice(ts, func(i, j int) bool {
		if ts[i].Count != ts[j].Count {
			return ts[i].Count > ts[j].Count
		}
		return ts[i].Outcome < ts[j].Outcome
	})
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
