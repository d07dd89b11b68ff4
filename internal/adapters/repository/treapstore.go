package repository

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/okian/profiler/pkg/metrics"
)

// node is a treap node keyed by (confirmations desc, outcome asc) with a
// random heap priority. size counts the nodes of the subtree.
type node struct {
	outcome     string
	count       int
	prio        uint64
	size        int
	left, right *node
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	n.size = 1 + nsize(n.left) + nsize(n.right)
}

// before reports whether (ac, aID) ranks ahead of (bc, bID).
func before(ac int, aID string, bc int, bID string) bool {
	if ac != bc {
		return ac > bc
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n, fresh *node) *node {
	if n == nil {
		return fresh
	}
	if before(fresh.count, fresh.outcome, n.count, n.outcome) {
		n.left = insert(n.left, fresh)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, fresh)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, outcome string, count int) *node {
	if n == nil {
		return nil
	}
	switch {
	case n.outcome == outcome && n.count == count:
		// Rotate the node down until it has at most one child.
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, outcome, count)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, outcome, count)
		}
	case before(count, outcome, n.count, n.outcome):
		n.left = deleteNode(n.left, outcome, count)
	default:
		n.right = deleteNode(n.right, outcome, count)
	}
	fix(n)
	return n
}

// collectTopN appends up to limit entries in rank order.
func collectTopN(n *node, limit int, out *[]Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, Entry{Rank: len(*out) + 1, Outcome: n.outcome, Confirmations: n.count})
	}
	collectTopN(n.right, limit, out)
}

// TreapStore ranks outcomes in an order-statistic treap: updates and rank
// lookups are O(log n), TopN is O(log n + n).
type TreapStore struct {
	mu     sync.RWMutex
	root   *node
	counts map[string]int
	seed   uint64
	rnd    *rand.Rand
}

var _ Store = (*TreapStore)(nil)

// NewTreapStore creates an empty ranking.
func NewTreapStore(opts ...Option) *TreapStore {
	s := &TreapStore{counts: make(map[string]int)}
	for _, opt := range opts {
		opt(s)
	}
	seed := s.seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	s.rnd = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	return s
}

func (s *TreapStore) Add(_ context.Context, outcome string, delta int) (int, error) {
	outcome = strings.TrimSpace(outcome)
	if delta <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidDelta, delta)
	}
	if outcome == "" {
		return 0, fmt.Errorf("%w: empty outcome", ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.counts[outcome]; ok {
		s.root = deleteNode(s.root, outcome, old)
	}
	total := s.counts[outcome] + delta
	s.counts[outcome] = total
	s.root = insert(s.root, &node{outcome: outcome, count: total, prio: s.rnd.Uint64(), size: 1})
	metrics.UpdateFameEntries(len(s.counts))
	return total, nil
}

// Reset rebuilds the ranking from counts. Non-positive counts are dropped.
func (s *TreapStore) Reset(_ context.Context, counts map[string]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = nil
	s.counts = make(map[string]int, len(counts))
	for outcome, c := range counts {
		outcome = strings.TrimSpace(outcome)
		if c <= 0 || outcome == "" {
			continue
		}
		s.counts[outcome] += c
	}
	for outcome, c := range s.counts {
		s.root = insert(s.root, &node{outcome: outcome, count: c, prio: s.rnd.Uint64(), size: 1})
	}
	metrics.UpdateFameEntries(len(s.counts))
}

func (s *TreapStore) Rank(_ context.Context, outcome string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.counts[outcome]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrNotFound, outcome)
	}
	// Count the nodes ranked ahead on the path down to the node.
	ahead := 0
	for n := s.root; n != nil; {
		switch {
		case n.outcome == outcome:
			ahead += nsize(n.left)
			return Entry{Rank: ahead + 1, Outcome: outcome, Confirmations: c}, nil
		case before(c, outcome, n.count, n.outcome):
			n = n.left
		default:
			ahead += nsize(n.left) + 1
			n = n.right
		}
	}
	return Entry{}, fmt.Errorf("%w: %q", ErrNotFound, outcome)
}

func (s *TreapStore) TopN(_ context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, n)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, 0, min(n, nsize(s.root)))
	collectTopN(s.root, n, &out)
	return out, nil
}

func (s *TreapStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.counts)
}
