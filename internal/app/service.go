// Package service wires the profiler components together and implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/profiler/internal/adapters/mq/queue"
	"github.com/okian/profiler/internal/adapters/mq/worker"
	"github.com/okian/profiler/internal/adapters/repository"
	"github.com/okian/profiler/internal/adapters/sink"
	"github.com/okian/profiler/internal/config"
	"github.com/okian/profiler/internal/domain/catalog"
	"github.com/okian/profiler/internal/domain/decision"
	"github.com/okian/profiler/internal/domain/dedupe"
	"github.com/okian/profiler/internal/domain/encoder"
	"github.com/okian/profiler/internal/domain/model"
	"github.com/okian/profiler/internal/domain/predictor"
	"github.com/okian/profiler/internal/domain/quiz"
	"github.com/okian/profiler/pkg/logger"
	"github.com/okian/profiler/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// FeedbackRequest is one player's verdict on a shown outcome.
type FeedbackRequest struct {
	SubmissionID string       `json:"submission_id"`
	Answers      quiz.Answers `json:"answers"`
	Outcome      string       `json:"outcome"`
	Judgment     string       `json:"judgment"`
}

// FeedbackReceipt acknowledges a feedback write.
type FeedbackReceipt struct {
	SubmissionID string        `json:"submission_id"`
	Judgment     quiz.Judgment `json:"judgment"`
	Duplicate    bool          `json:"duplicate"`
}

// FameEntry is one row of the hall of fame.
type FameEntry struct {
	Rank          int           `json:"rank"`
	Outcome       string        `json:"outcome"`
	Confirmations int           `json:"confirmations"`
	Entry         catalog.Entry `json:"entry"`
}

// Learning describes how much the profiler has learned so far.
type Learning struct {
	Ready         bool         `json:"ready"`
	TrainingRows  int          `json:"training_rows"`
	MinRows       int          `json:"min_rows"`
	Remaining     int          `json:"remaining"`
	ModelVersion  uint64       `json:"model_version"`
	Strategy      string       `json:"strategy"`
	Origin        string       `json:"origin"`
	TrainedAt     *time.Time   `json:"trained_at,omitempty"`
	TotalFeedback int          `json:"total_feedback"`
	Confirmations []sink.Tally `json:"confirmations"`
}

// Service implements the API dependencies for the profiler.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	// Core components
	catalog  *catalog.Catalog
	sink     sink.Sink
	ownsSink bool
	provider *predictor.Provider
	cycle    *decision.Cycle
	deduper  dedupe.Deduper
	inflight singleflight.Group
	queue    *queue.InMemoryQueue
	pool     *worker.Pool
	watcher  *predictor.ArtifactWatcher
	rand     decision.Rand
	now      func() time.Time

	// Hall of fame index
	fame   *repository.TreapStore
	fameMu sync.Mutex
	fameAt time.Time

	started bool

	logger logger.Logger
}

// New constructs a Service from cfg. Nothing is opened until Start.
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		ownsSink: true,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the catalog, opens the sink and brings up the predictor. Any
// error is a startup fault: the service must not accept requests.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.logger.Info(ctx, "starting profiler service...")

	if s.catalog == nil {
		c, err := catalog.LoadFile(s.cfg.CatalogPath)
		if err != nil {
			return err
		}
		s.catalog = c
	}
	s.logger.Info(ctx, "catalog loaded",
		logger.String("path", s.cfg.CatalogPath),
		logger.Int("entries", s.catalog.Len()),
		logger.Int("rare", len(s.catalog.RarePool())),
	)

	if s.sink == nil {
		sk, err := sink.Open(ctx, s.cfg.SinkSettings())
		if err != nil {
			return fmt.Errorf("open feedback sink: %w", err)
		}
		s.sink = sk
	}
	if err := s.seed(ctx); err != nil {
		s.closeSink()
		return err
	}

	if err := s.startPredictor(ctx); err != nil {
		s.stopBackground(ctx)
		s.closeSink()
		return err
	}

	rnd := s.rand
	if rnd == nil {
		rnd = decision.NewRand(s.cfg.RandomSeed)
	}
	cycle, err := decision.New(s.provider, s.catalog,
		decision.WithRules(s.cfg.RarityRules()...),
		decision.WithVariant(s.cfg.Variant()),
		decision.WithRand(rnd),
		decision.WithLogger(s.logger.Named("decision")),
	)
	if err != nil {
		s.stopBackground(ctx)
		s.closeSink()
		return err
	}
	s.cycle = cycle
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.cfg.DedupeSize))
	s.fame = repository.NewTreapStore()
	s.fameMu.Lock()
	if err := s.rebuildFame(ctx); err != nil {
		s.logger.Warn(ctx, "hall of fame index not built", logger.Error(err))
	}
	s.fameMu.Unlock()

	s.started = true
	snap := s.provider.Current()
	s.logger.Info(ctx, "profiler service started",
		logger.String("sink", s.cfg.Sink.Kind),
		logger.String("strategy", s.cfg.Model.Strategy),
		logger.Bool("ready", snap.Ready()),
		logger.Int("trainingRows", snap.Rows),
	)
	return nil
}

// seed bootstraps an empty sink with the catalog's seed profiles.
func (s *Service) seed(ctx context.Context) error {
	if !s.cfg.SeedFromCatalog {
		return nil
	}
	n, err := s.sink.Count(ctx)
	if err != nil {
		return fmt.Errorf("count feedback: %w", err)
	}
	if n > 0 {
		return nil
	}
	records := s.catalog.SeedRecords()
	if len(records) == 0 {
		return nil
	}
	at := s.now()
	for i := range records {
		records[i].SubmissionID = "seed:" + records[i].Outcome
		records[i].RecordedAt = at
	}
	if err := sink.AppendAll(ctx, s.sink, records); err != nil {
		return fmt.Errorf("seed feedback: %w", err)
	}
	s.logger.Info(ctx, "seeded feedback from catalog", logger.Int("records", len(records)))
	return nil
}

func (s *Service) startPredictor(ctx context.Context) error {
	judgments, err := s.cfg.Judgments()
	if err != nil {
		return err
	}
	trainer, err := predictor.NewTrainer(s.cfg.Model.Strategy, s.cfg.Model.KNNK)
	if err != nil {
		return err
	}

	opts := []predictor.Option{
		predictor.WithTrainer(trainer),
		predictor.WithMinRows(s.cfg.Model.MinTrainingRows),
		predictor.WithJudgments(judgments...),
		predictor.WithLabels(s.catalog),
		predictor.WithLogger(s.logger.Named("predictor")),
	}

	if path := s.cfg.Model.ArtifactPath; path != "" {
		s.provider = predictor.NewProvider(encoder.MustNew(), s.sink, append(opts, predictor.WithPinned(true))...)
		if _, err := s.provider.LoadArtifact(ctx, path); err != nil {
			return fmt.Errorf("load predictor artifact: %w", err)
		}
		if s.cfg.Model.WatchArtifact {
			s.watcher = predictor.NewArtifactWatcher(s.provider, path, predictor.DefaultDebounce, s.logger.Named("watcher"))
			if err := s.watcher.Start(context.WithoutCancel(ctx)); err != nil {
				s.watcher = nil
				return fmt.Errorf("watch predictor artifact: %w", err)
			}
		}
		return nil
	}

	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.Retrain.QueueSize))
	s.provider = predictor.NewProvider(encoder.MustNew(), s.sink, append(opts, predictor.WithScheduler(s.queue))...)
	if _, err := s.provider.Refresh(ctx); err != nil {
		return fmt.Errorf("initial training: %w", err)
	}
	s.pool = worker.NewPool(s.cfg.Retrain.WorkerCount, s.queue, s.provider,
		worker.WithLogger(s.logger.Named("retrain")))
	// Workers outlive the start context.
	s.pool.Start(context.WithoutCancel(ctx))
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping profiler service...")

	err := s.stopBackground(ctx)
	if cerr := s.closeSink(); cerr != nil {
		err = errors.Join(err, cerr)
	}

	s.started = false
	s.logger.Info(ctx, "profiler service stopped")
	return err
}

func (s *Service) stopBackground(ctx context.Context) error {
	if s.watcher != nil {
		s.watcher.Stop()
		s.watcher = nil
	}
	if s.pool != nil {
		err := s.pool.Shutdown(ctx)
		s.pool = nil
		return err
	}
	if s.queue != nil {
		_ = s.queue.Close()
	}
	return nil
}

func (s *Service) closeSink() error {
	if s.sink == nil || !s.ownsSink {
		return nil
	}
	err := s.sink.Close()
	s.sink = nil
	return err
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// Surface returns the quiz prompts and choices.
func (s *Service) Surface() quiz.Surface {
	return quiz.GetSurface()
}

// Decide runs one decision cycle for answers.
func (s *Service) Decide(ctx context.Context, answers quiz.Answers) (decision.Result, error) {
	if !s.isStarted() {
		return decision.Result{}, ErrNotStarted
	}
	return s.cycle.Decide(ctx, decision.Request{Answers: answers})
}

// RecordFeedback appends one verdict to the sink. Delivery is at least once
// from the player's side: a failed write releases the submission id so the
// same request can be retried. Concurrent requests for one id wait for the
// first write and are only reported as duplicates once it has committed.
func (s *Service) RecordFeedback(ctx context.Context, req FeedbackRequest) (FeedbackReceipt, error) {
	if !s.isStarted() {
		return FeedbackReceipt{}, ErrNotStarted
	}
	j, err := quiz.ParseJudgment(req.Judgment)
	if err != nil {
		return FeedbackReceipt{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	outcome := strings.TrimSpace(req.Outcome)
	if !s.catalog.Has(outcome) {
		return FeedbackReceipt{}, fmt.Errorf("%w: %w: %q", ErrBadRequest, ErrUnknownOutcome, req.Outcome)
	}

	id := strings.TrimSpace(req.SubmissionID)
	if id == "" {
		id = uuid.NewString()
	}
	receipt := FeedbackReceipt{SubmissionID: id, Judgment: j}
	rec := quiz.FeedbackRecord{
		SubmissionID: id,
		Answers:      req.Answers.Normalize(),
		Outcome:      outcome,
		Judgment:     j,
		RecordedAt:   s.now(),
	}

	leader := false
	_, err, _ = s.inflight.Do(id, func() (any, error) {
		leader = true
		return nil, s.appendFeedback(ctx, rec)
	})
	if err == nil && !leader {
		err = ErrDuplicate
	}
	if errors.Is(err, ErrDuplicate) {
		metrics.RecordFeedbackDuplicate()
		s.logger.Debug(ctx, "duplicate feedback", logger.String("submissionID", id))
		receipt.Duplicate = true
	}
	return receipt, err
}

// appendFeedback writes rec unless its submission id has already committed.
func (s *Service) appendFeedback(ctx context.Context, rec quiz.FeedbackRecord) error {
	if s.deduper.SeenAndRecord(ctx, rec.SubmissionID) {
		return ErrDuplicate
	}
	if err := s.sink.Append(ctx, rec); err != nil {
		s.deduper.Unrecord(ctx, rec.SubmissionID)
		metrics.RecordSinkFailure("append")
		s.logger.Error(ctx, "feedback write failed",
			logger.String("submissionID", rec.SubmissionID),
			logger.Error(err),
		)
		return fmt.Errorf("%w: %w", ErrSinkUnavailable, err)
	}

	metrics.RecordFeedback(string(rec.Judgment))
	if rec.Judgment == quiz.JudgmentMatch {
		s.confirm(ctx, rec.Outcome)
	}
	s.provider.Invalidate(ctx, model.ReasonFeedback)
	return nil
}

// Lookup returns the catalog entry named name.
func (s *Service) Lookup(name string) (catalog.Entry, error) {
	if !s.isStarted() {
		return catalog.Entry{}, ErrNotStarted
	}
	return s.catalog.Lookup(name)
}

// Learning reports readiness and per-outcome confirmations.
func (s *Service) Learning(ctx context.Context) (Learning, error) {
	if !s.isStarted() {
		return Learning{}, ErrNotStarted
	}
	snap := s.provider.Current()
	l := Learning{
		Ready:        snap.Ready(),
		TrainingRows: snap.Rows,
		MinRows:      snap.MinRows,
		Remaining:    max(snap.MinRows-snap.Rows, 0),
		ModelVersion: snap.Version,
		Strategy:     s.cfg.Model.Strategy,
		Origin:       snap.Origin,
	}
	if snap.Model != nil {
		l.Strategy = snap.Model.Strategy()
	}
	if !snap.TrainedAt.IsZero() {
		at := snap.TrainedAt
		l.TrainedAt = &at
	}

	total, err := s.sink.Count(ctx)
	if err != nil {
		metrics.RecordSinkFailure("count")
		return Learning{}, fmt.Errorf("%w: %w", ErrSinkUnavailable, err)
	}
	ts, err := s.sink.Tally(ctx)
	if err != nil {
		metrics.RecordSinkFailure("tally")
		return Learning{}, fmt.Errorf("%w: %w", ErrSinkUnavailable, err)
	}
	l.TotalFeedback = total
	l.Confirmations = ts
	if l.Confirmations == nil {
		l.Confirmations = []sink.Tally{}
	}
	return l, nil
}

// ShareText returns the brag line for outcome.
func (s *Service) ShareText(outcome string) (string, error) {
	if !s.isStarted() {
		return "", ErrNotStarted
	}
	e, err := s.catalog.Lookup(outcome)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUnknownOutcome, err)
	}
	return fmt.Sprintf("My perfect partner is %s! Find yours at the Profiler: %s", e.Name, s.cfg.ShareURL), nil
}

// Ready reports whether decisions can currently be served.
func (s *Service) Ready() bool {
	return s.isStarted() && s.provider.Current().Ready()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":    s.started,
		"sink":       s.cfg.Sink.Kind,
		"strategy":   s.cfg.Model.Strategy,
		"dedupeSize": s.cfg.DedupeSize,
	}
	if !s.started {
		return stats
	}

	snap := s.provider.Current()
	stats["ready"] = snap.Ready()
	stats["trainingRows"] = snap.Rows
	stats["minRows"] = snap.MinRows
	stats["modelVersion"] = snap.Version
	stats["origin"] = snap.Origin
	stats["catalogEntries"] = s.catalog.Len()
	stats["rarePool"] = len(s.catalog.RarePool())
	stats["dedupeEntries"] = s.deduper.Size()
	stats["hallOfFameEntries"] = s.fame.Count(context.Background())

	if s.queue != nil {
		n := s.queue.Len(context.Background())
		stats["retrainQueueLength"] = n
		metrics.UpdateQueueSize(n)
	}
	if s.pool != nil {
		stats["workerCount"] = s.pool.Size()
		metrics.UpdateWorkerCount(s.pool.Size())
	}
	if s.watcher != nil {
		stats["artifactLoads"] = s.watcher.Loads()
		stats["artifactLoadFailures"] = s.watcher.Failures()
	}
	return stats
}

// Provider exposes the predictor provider for operator tooling.
func (s *Service) Provider() *predictor.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider
}
