package quizsim

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/profiler/internal/domain/quiz"
	"github.com/okian/profiler/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// percentageMultiplier converts ratios for the final report.
const percentageMultiplier = 100

// decision is the part of POST /quiz the simulation reads.
type decision struct {
	SubmissionID   string `json:"submission_id"`
	Outcome        string `json:"outcome"`
	RarityOverride bool   `json:"rarity_override"`
	RareVariant    bool   `json:"rare_variant"`
}

type feedback struct {
	SubmissionID string       `json:"submission_id"`
	Answers      quiz.Answers `json:"answers"`
	Outcome      string       `json:"outcome"`
	Judgment     string       `json:"judgment"`
}

type counters struct {
	decided, notReady, failed          atomic.Int64
	recorded, duplicates, feedbackFail atomic.Int64
	overrides, variants                atomic.Int64

	mu       sync.Mutex
	outcomes map[string]int
}

// Run checks the service, plays cfg.Players quizzes with at most
// cfg.Workers in flight, and returns the counters. Per-player failures are
// counted, not returned; only cancellation or an unhealthy service fails the
// run.
func Run(ctx context.Context, cfg Config) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	stats := &Stats{StartTime: time.Now(), Players: cfg.Players}
	log := logger.Named("quizsim")
	log.Info(ctx, "starting quiz simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("players", cfg.Players),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
		logger.Float64("matchRate", cfg.MatchRate))

	client := newHTTPClient(cfg.BaseURL, cfg.Timeout)
	if err := checkServiceHealth(ctx, client); err != nil {
		return nil, err
	}

	var surface quiz.Surface
	status, err := client.get(ctx, "/quiz", &surface)
	if err != nil {
		return nil, fmt.Errorf("fetch quiz: %w", err)
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("%w: GET /quiz returned %d", ErrUnhealthy, status)
	}

	players := generatePlayers(cfg, surface)
	c := &counters{outcomes: make(map[string]int)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, p := range players {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			play(gctx, client, cfg, p, c)
			return gctx.Err()
		})
	}
	werr := g.Wait()

	stats.Decided = int(c.decided.Load())
	stats.NotReady = int(c.notReady.Load())
	stats.Failed = int(c.failed.Load())
	stats.FeedbackRecorded = int(c.recorded.Load())
	stats.Duplicates = int(c.duplicates.Load())
	stats.FeedbackFailed = int(c.feedbackFail.Load())
	stats.RarityOverrides = int(c.overrides.Load())
	stats.RareVariants = int(c.variants.Load())
	stats.Outcomes = c.outcomes
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)

	displayFinalStats(ctx, log, stats)
	if werr != nil {
		return stats, fmt.Errorf("simulation interrupted: %w", werr)
	}
	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("simulation interrupted: %w", err)
	}
	return stats, nil
}

// play runs one player's quiz and feedback round trip.
func play(ctx context.Context, client *httpClient, cfg Config, p Player, c *counters) {
	path := "/quiz"
	if cfg.Strict {
		path += "?strict=true"
	}
	var d decision
	status, err := client.post(ctx, path, p.Answers, &d)
	switch {
	case err != nil:
		c.failed.Add(1)
		return
	case status == http.StatusServiceUnavailable:
		c.notReady.Add(1)
		return
	case status != http.StatusOK:
		c.failed.Add(1)
		return
	}

	c.decided.Add(1)
	if d.RarityOverride {
		c.overrides.Add(1)
	}
	if d.RareVariant {
		c.variants.Add(1)
	}
	c.mu.Lock()
	c.outcomes[d.Outcome]++
	c.mu.Unlock()

	id := d.SubmissionID
	if id == "" {
		id = p.SubmissionID
	}
	fb := feedback{SubmissionID: id, Answers: p.Answers, Outcome: d.Outcome, Judgment: string(p.Judgment(cfg.MatchRate))}
	sends := 1
	if p.Resend {
		sends = 2
	}
	for range sends {
		status, err := client.post(ctx, "/feedback", fb, nil)
		switch {
		case err != nil:
			c.feedbackFail.Add(1)
		case status == http.StatusCreated:
			c.recorded.Add(1)
		case status == http.StatusOK:
			c.duplicates.Add(1)
		default:
			c.feedbackFail.Add(1)
		}
	}
}

// checkServiceHealth verifies the service is serving.
func checkServiceHealth(ctx context.Context, client *httpClient) error {
	status, err := client.get(ctx, "/healthz", nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: health check returned %d", ErrUnhealthy, status)
	}
	return nil
}

// displayFinalStats logs the final counters.
func displayFinalStats(ctx context.Context, log logger.Logger, s *Stats) {
	var decidedPercent, playersPerSecond float64
	if s.Players > 0 {
		decidedPercent = float64(s.Decided) / float64(s.Players) * percentageMultiplier
	}
	if s.Duration > 0 {
		playersPerSecond = float64(s.Decided+s.NotReady+s.Failed) / s.Duration.Seconds()
	}
	log.Info(ctx, "final statistics",
		logger.Int("players", s.Players),
		logger.Int("decided", s.Decided),
		logger.Int("notReady", s.NotReady),
		logger.Int("failed", s.Failed),
		logger.Int("feedbackRecorded", s.FeedbackRecorded),
		logger.Int("duplicates", s.Duplicates),
		logger.Int("feedbackFailed", s.FeedbackFailed),
		logger.Int("rarityOverrides", s.RarityOverrides),
		logger.Int("rareVariants", s.RareVariants),
		logger.Int("distinctOutcomes", len(s.Outcomes)),
		logger.Duration("duration", s.Duration),
		logger.Float64("decidedPercent", decidedPercent),
		logger.Float64("playersPerSecond", playersPerSecond))
}
