// Package repository keeps the hall of fame ranking: confirmed outcomes
// ordered by confirmations, most confirmed first.
package repository

import "context"

// Entry is one ranked outcome.
type Entry struct {
	Rank          int
	Outcome       string
	Confirmations int
}

// Store provides read/write access to the ranking state.
type Store interface {
	// Add increases the confirmations of outcome by delta and returns the
	// new total.
	Add(ctx context.Context, outcome string, delta int) (int, error)

	// Reset replaces the whole ranking with counts.
	Reset(ctx context.Context, counts map[string]int)

	// Rank returns the position and confirmations of outcome.
	// Returns ErrNotFound if the outcome was never confirmed.
	Rank(ctx context.Context, outcome string) (Entry, error)

	// TopN returns the first n entries, most confirmed first.
	TopN(ctx context.Context, n int) ([]Entry, error)

	// Count returns the number of ranked outcomes.
	Count(ctx context.Context) int
}
