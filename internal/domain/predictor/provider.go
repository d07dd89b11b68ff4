package predictor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/profiler/internal/domain/encoder"
	"github.com/okian/profiler/internal/domain/quiz"
	"github.com/okian/profiler/pkg/logger"
	"github.com/okian/profiler/pkg/metrics"
	"golang.org/x/sync/singleflight"
)

// DefaultMinRows is the training-row threshold below which no predictor is
// offered.
const DefaultMinRows = 20

// Snapshot origins.
const (
	OriginNone     = "none"
	OriginTraining = "training"
	OriginArtifact = "artifact"
)

// ErrSourceUnavailable wraps failures reading training records.
var ErrSourceUnavailable = errors.New("training source unavailable")

// Source supplies the accumulated feedback records.
type Source interface {
	Records(ctx context.Context) ([]quiz.FeedbackRecord, error)
}

// Scheduler queues a background retrain. It reports false when the request
// was dropped.
type Scheduler interface {
	Schedule(ctx context.Context, reason string) bool
}

// Snapshot is an immutable view of the current predictor.
type Snapshot struct {
	Predictor Predictor
	Model     Model
	Rows      int
	MinRows   int
	Version   uint64
	TrainedAt time.Time
	Origin    string
}

// Ready reports whether the snapshot may serve predictions.
func (s *Snapshot) Ready() bool {
	return s != nil && s.Predictor != nil && s.Rows >= s.MinRows
}

// Option configures a Provider.
type Option func(*Provider)

// WithTrainer selects the training strategy.
func WithTrainer(t Trainer) Option {
	return func(p *Provider) {
		if t != nil {
			p.trainer = t
		}
	}
}

// WithMinRows sets the readiness threshold.
func WithMinRows(n int) Option {
	return func(p *Provider) {
		if n > 0 {
			p.minRows = n
		}
	}
}

// WithJudgments sets which feedback judgments count as training rows.
func WithJudgments(js ...quiz.Judgment) Option {
	return func(p *Provider) {
		if len(js) == 0 {
			return
		}
		p.judgments = make(map[quiz.Judgment]struct{}, len(js))
		for _, j := range js {
			p.judgments[j] = struct{}{}
		}
	}
}

// WithLabels restricts training rows to outcomes present in labels.
func WithLabels(labels LabelSet) Option {
	return func(p *Provider) { p.labels = labels }
}

// WithScheduler makes Invalidate queue a background retrain instead of
// retraining lazily on the next Acquire.
func WithScheduler(s Scheduler) Option {
	return func(p *Provider) { p.scheduler = s }
}

// WithPinned makes feedback invalidation a no-op; the predictor only changes
// through Install or LoadArtifact.
func WithPinned(pinned bool) Option {
	return func(p *Provider) { p.pinned = pinned }
}

// WithLogger sets the provider logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		if now != nil {
			p.now = now
		}
	}
}

// Provider owns the process-wide predictor. Readers get an atomically
// published Snapshot; concurrent refreshes collapse into one training run.
type Provider struct {
	enc       *encoder.Encoder
	source    Source
	trainer   Trainer
	minRows   int
	judgments map[quiz.Judgment]struct{}
	labels    LabelSet
	scheduler Scheduler
	pinned    bool
	logger    logger.Logger
	now       func() time.Time

	current atomic.Pointer[Snapshot]
	version atomic.Uint64
	stale   atomic.Bool
	group   singleflight.Group
	mu      sync.Mutex // serializes publication
}

// NewProvider returns a provider with an empty, not-ready snapshot.
func NewProvider(enc *encoder.Encoder, source Source, opts ...Option) *Provider {
	p := &Provider{
		enc:     enc,
		source:  source,
		trainer: NaiveBayes{Alpha: 1},
		minRows: DefaultMinRows,
		judgments: map[quiz.Judgment]struct{}{
			quiz.JudgmentMatch: {},
			quiz.JudgmentClose: {},
		},
		logger: logger.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.current.Store(&Snapshot{MinRows: p.minRows, Origin: OriginNone})
	return p
}

// Encoder returns the encoder predictions must be fed with.
func (p *Provider) Encoder() *encoder.Encoder { return p.enc }

// MinRows returns the readiness threshold.
func (p *Provider) MinRows() int { return p.minRows }

// Current returns the published snapshot without side effects.
func (p *Provider) Current() *Snapshot {
	return p.current.Load()
}

// Acquire returns a snapshot for a decision. If the predictor was
// invalidated and no scheduler handles retraining, it retrains first.
func (p *Provider) Acquire(ctx context.Context) (*Snapshot, error) {
	if p.scheduler == nil && !p.pinned && p.stale.Load() {
		return p.Refresh(ctx)
	}
	return p.Current(), nil
}

// Invalidate marks the predictor stale after new feedback was recorded.
func (p *Provider) Invalidate(ctx context.Context, reason string) {
	if p.pinned {
		return
	}
	p.stale.Store(true)
	if p.scheduler != nil && !p.scheduler.Schedule(ctx, reason) {
		p.logger.Warn(ctx, "retrain request dropped", logger.String("reason", reason))
	}
}

// Refresh retrains from the source and publishes the result. Concurrent
// callers share one run.
func (p *Provider) Refresh(ctx context.Context) (*Snapshot, error) {
	v, err, _ := p.group.Do("refresh", func() (any, error) {
		// Cleared before reading so feedback landing mid-run marks it stale again.
		p.stale.Store(false)
		s, err := p.train(ctx)
		if err != nil {
			p.stale.Store(true)
			return nil, err
		}
		return s, nil
	})
	if err != nil {
		return p.Current(), err
	}
	return v.(*Snapshot), nil
}

func (p *Provider) train(ctx context.Context) (*Snapshot, error) {
	start := p.now()
	records, err := p.source.Records(ctx)
	if err != nil {
		metrics.RecordRetrain(false, msSince(p.now, start))
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	samples := p.Samples(records)
	s := &Snapshot{Rows: len(samples), MinRows: p.minRows, Origin: OriginTraining, TrainedAt: p.now()}
	if len(samples) >= p.minRows {
		m, err := p.trainer.Train(p.enc, samples)
		if err != nil {
			metrics.RecordRetrain(false, msSince(p.now, start))
			return nil, fmt.Errorf("train %s: %w", p.trainer.Name(), err)
		}
		s.Predictor, s.Model = m, m
	}
	metrics.RecordRetrain(true, msSince(p.now, start))
	p.publish(ctx, s)
	return s, nil
}

// Samples filters records to training rows and encodes them.
func (p *Provider) Samples(records []quiz.FeedbackRecord) []Sample {
	out := make([]Sample, 0, len(records))
	for _, r := range records {
		if _, ok := p.judgments[r.Judgment]; !ok {
			continue
		}
		if p.labels != nil && !p.labels.Has(r.Outcome) {
			continue
		}
		out = append(out, Sample{Vector: p.enc.Encode(r.Answers), Label: r.Outcome})
	}
	return out
}

// Install publishes a prebuilt model trained on rows records.
func (p *Provider) Install(ctx context.Context, m Model, rows int, trainedAt time.Time, origin string) *Snapshot {
	s := &Snapshot{Predictor: m, Model: m, Rows: rows, MinRows: p.minRows, TrainedAt: trainedAt, Origin: origin}
	p.publish(ctx, s)
	return s
}

// LoadArtifact restores the artifact at path and publishes it. A failed
// load leaves the current snapshot in place.
func (p *Provider) LoadArtifact(ctx context.Context, path string) (*Snapshot, error) {
	a, err := ReadArtifact(path)
	if err != nil {
		return nil, err
	}
	m, err := a.Restore(p.enc, p.labels)
	if err != nil {
		return nil, err
	}
	return p.Install(ctx, m, a.TrainingRows, a.TrainedAt, OriginArtifact), nil
}

// SaveArtifact writes the current model to path.
func (p *Provider) SaveArtifact(path string) error {
	s := p.Current()
	if s.Model == nil {
		return fmt.Errorf("%w: no trained model to save", ErrNoTrainingData)
	}
	a, err := Export(s.Model, p.enc, s.Rows, s.TrainedAt)
	if err != nil {
		return err
	}
	return WriteArtifact(path, a)
}

func (p *Provider) publish(ctx context.Context, s *Snapshot) {
	p.mu.Lock()
	s.Version = p.version.Add(1)
	p.current.Store(s)
	p.mu.Unlock()

	metrics.UpdatePredictorSnapshot(s.Rows, s.Version, s.Ready())
	p.logger.Info(ctx, "predictor published",
		logger.String("origin", s.Origin),
		logger.Int("rows", s.Rows),
		logger.Bool("ready", s.Ready()),
		logger.Any("version", s.Version),
	)
}

func msSince(now func() time.Time, start time.Time) float64 {
	return float64(now().Sub(start).Microseconds()) / 1000
}
