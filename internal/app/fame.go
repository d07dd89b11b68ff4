package service

import (
	"context"
	"fmt"

	"github.com/okian/profiler/pkg/logger"
	"github.com/okian/profiler/pkg/metrics"
)

// HallOfFame returns the limit most confirmed outcomes. A non-positive limit
// uses the configured size. Rankings come from an in-memory index rebuilt
// from the sink tally once it is older than the configured refresh interval;
// confirmations recorded by this process are counted in between.
func (s *Service) HallOfFame(ctx context.Context, limit int) ([]FameEntry, error) {
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	if limit <= 0 {
		limit = s.cfg.HallOfFameSize
	}
	if err := s.ensureFame(ctx); err != nil {
		return nil, err
	}

	ranked, err := s.fame.TopN(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	out := make([]FameEntry, 0, len(ranked))
	for _, r := range ranked {
		e, err := s.catalog.Lookup(r.Outcome)
		if err != nil {
			continue
		}
		out = append(out, FameEntry{Rank: len(out) + 1, Outcome: r.Outcome, Confirmations: r.Confirmations, Entry: e})
	}
	return out, nil
}

// ensureFame rebuilds the index when it is stale. A failed rebuild keeps
// serving the previous ranking unless there never was one.
func (s *Service) ensureFame(ctx context.Context) error {
	s.fameMu.Lock()
	defer s.fameMu.Unlock()

	if !s.fameAt.IsZero() && s.now().Sub(s.fameAt) < s.cfg.HallOfFameRefresh {
		return nil
	}
	err := s.rebuildFame(ctx)
	switch {
	case err == nil:
		return nil
	case s.fameAt.IsZero():
		return fmt.Errorf("%w: %w", ErrSinkUnavailable, err)
	default:
		s.logger.Warn(ctx, "serving stale hall of fame", logger.Error(err))
		return nil
	}
}

// rebuildFame replaces the index with the sink tally. Callers hold fameMu.
func (s *Service) rebuildFame(ctx context.Context) error {
	ts, err := s.sink.Tally(ctx)
	if err != nil {
		metrics.RecordSinkFailure("tally")
		metrics.RecordFameRefresh(false)
		return err
	}
	counts := make(map[string]int, len(ts))
	for _, t := range ts {
		// Feedback for entries since removed from the catalog is not ranked.
		if s.catalog.Has(t.Outcome) {
			counts[t.Outcome] = t.Count
		}
	}
	s.fame.Reset(ctx, counts)
	s.fameAt = s.now()
	metrics.RecordFameRefresh(true)
	return nil
}

// confirm counts one recorded match in the index.
func (s *Service) confirm(ctx context.Context, outcome string) {
	if _, err := s.fame.Add(ctx, outcome, 1); err != nil {
		s.logger.Warn(ctx, "hall of fame update failed", logger.String("outcome", outcome), logger.Error(err))
	}
}
