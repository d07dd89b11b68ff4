// Package decision implements the predict-then-override cycle that turns a
// player's quiz answers into a displayable outcome.
package decision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/okian/profiler/internal/domain/catalog"
	"github.com/okian/profiler/internal/domain/encoder"
	"github.com/okian/profiler/internal/domain/predictor"
	"github.com/okian/profiler/internal/domain/quiz"
	"github.com/okian/profiler/pkg/logger"
	"github.com/okian/profiler/pkg/metrics"
)

// Sentinel kinds for decision errors.
var (
	// ErrNotReady means too little feedback exists to trust a predictor.
	// It is a user-visible "come back later" state, not a fault.
	ErrNotReady = errors.New("predictor not ready")
	// ErrIntegrity means a produced outcome is not a catalog key: the model,
	// encoder and catalog are out of step.
	ErrIntegrity = errors.New("outcome not in catalog")
	// ErrInvalidRule reports a malformed rarity or variant rule.
	ErrInvalidRule = errors.New("invalid decision rule")
)

// Banner texts shown alongside special outcomes.
const (
	BannerRarity  = "A legendary force answers your call..."
	BannerVariant = "Whoa! A rare Shiny partner appeared!"
)

// Predictors hands out the snapshot a decision runs against.
type Predictors interface {
	Acquire(ctx context.Context) (*predictor.Snapshot, error)
	Encoder() *encoder.Encoder
}

// Request is the request-scoped input of one decision. Rand, when set,
// replaces the cycle's random source for this call only.
type Request struct {
	Answers quiz.Answers
	Rand    Rand
}

// Result is the immutable outcome of one decision.
type Result struct {
	SubmissionID   string        `json:"submission_id"`
	Outcome        string        `json:"outcome"`
	BaseOutcome    string        `json:"base_outcome"`
	Confidence     *float64      `json:"confidence,omitempty"`
	RarityOverride bool          `json:"rarity_override"`
	RarityRule     string        `json:"rarity_rule,omitempty"`
	RareVariant    bool          `json:"rare_variant"`
	ModelVersion   uint64        `json:"model_version"`
	Entry          catalog.Entry `json:"entry"`
}

// Image returns the display asset for the result.
func (r Result) Image() string {
	return r.Entry.ImageFor(r.RareVariant)
}

// Banners returns the flavor messages earned by the result.
func (r Result) Banners() []string {
	var out []string
	if r.RarityOverride {
		out = append(out, BannerRarity)
	}
	if r.RareVariant {
		out = append(out, BannerVariant)
	}
	return out
}

// Option configures a Cycle.
type Option func(*Cycle)

// WithRules replaces the rarity rule table. Rules are tried in order and the
// first matching rule is the only one that draws.
func WithRules(rules ...RarityRule) Option {
	return func(c *Cycle) { c.rules = append([]RarityRule(nil), rules...) }
}

// WithVariant replaces the rare-variant rule.
func WithVariant(v VariantRule) Option {
	return func(c *Cycle) { c.variant = v }
}

// WithRand sets the default random source.
func WithRand(r Rand) Option {
	return func(c *Cycle) {
		if r != nil {
			c.rand = r
		}
	}
}

// WithIDs overrides submission id generation.
func WithIDs(next func() string) Option {
	return func(c *Cycle) {
		if next != nil {
			c.nextID = next
		}
	}
}

// WithLogger sets the cycle logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Cycle) {
		if l != nil {
			c.logger = l
		}
	}
}

// Cycle is safe for concurrent use; it holds no per-request state.
type Cycle struct {
	predictors Predictors
	catalog    *catalog.Catalog
	rules      []RarityRule
	variant    VariantRule
	rand       Rand
	nextID     func() string
	logger     logger.Logger
}

// New builds a cycle and validates its rules.
func New(p Predictors, c *catalog.Catalog, opts ...Option) (*Cycle, error) {
	cy := &Cycle{
		predictors: p,
		catalog:    c,
		rules:      DefaultRules(),
		variant:    DefaultVariant(),
		rand:       NewRand(0),
		nextID:     uuid.NewString,
		logger:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(cy)
	}
	var errs []error
	for _, r := range cy.rules {
		errs = append(errs, r.Validate())
	}
	errs = append(errs, cy.variant.Validate())
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cy, nil
}

// Rules returns the configured rarity rules.
func (c *Cycle) Rules() []RarityRule {
	return append([]RarityRule(nil), c.rules...)
}

// Decide runs one decision. The predictor snapshot is taken once up front, so
// a concurrent retrain never changes the model mid-decision.
func (c *Cycle) Decide(ctx context.Context, req Request) (Result, error) {
	start := time.Now()
	defer func() {
		metrics.RecordDecisionLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	snap, err := c.predictors.Acquire(ctx)
	if err != nil {
		c.logger.Warn(ctx, "predictor refresh failed, using current snapshot", logger.Error(err))
	}
	if !snap.Ready() {
		metrics.RecordDecision(metrics.DecisionNotReady)
		rows := 0
		if snap != nil {
			rows = snap.Rows
		}
		return Result{}, fmt.Errorf("%w: %d training rows", ErrNotReady, rows)
	}

	rnd := req.Rand
	if rnd == nil {
		rnd = c.rand
	}
	answers := req.Answers.Normalize()
	vec := c.predictors.Encoder().Encode(answers)

	base, err := snap.Predictor.Predict(vec)
	if err != nil {
		metrics.RecordDecision(metrics.DecisionIntegrityFault)
		return Result{}, fmt.Errorf("%w: predict: %w", ErrIntegrity, err)
	}
	res := Result{
		SubmissionID: c.nextID(),
		Outcome:      base,
		BaseOutcome:  base,
		ModelVersion: snap.Version,
	}
	if dist, err := snap.Predictor.PredictProbability(vec); err == nil {
		p := dist.Of(base)
		res.Confidence = &p
	}

	c.applyRarity(answers, rnd, &res)
	res.RareVariant = draw(rnd, c.variant.Range, c.variant.Hit)

	entry, err := c.catalog.Lookup(res.Outcome)
	if err != nil {
		metrics.RecordDecision(metrics.DecisionIntegrityFault)
		c.logger.Error(ctx, "decided outcome missing from catalog",
			logger.String("outcome", res.Outcome),
			logger.Any("model_version", snap.Version),
		)
		return Result{}, fmt.Errorf("%w: %q (model version %d)", ErrIntegrity, res.Outcome, snap.Version)
	}
	res.Entry = entry

	metrics.RecordDecision(metrics.DecisionDecided)
	if res.RarityOverride {
		metrics.RecordRarityOverride(res.RarityRule)
	}
	if res.RareVariant {
		metrics.RecordRareVariant()
	}
	return res, nil
}

func (c *Cycle) applyRarity(a quiz.Answers, rnd Rand, res *Result) {
	for _, r := range c.rules {
		if !r.Matches(a) {
			continue
		}
		if !draw(rnd, r.Range, r.Hit) {
			return
		}
		pool := c.catalog.RarePool()
		if len(pool) == 0 {
			return
		}
		res.Outcome = pool[rnd.IntN(len(pool))]
		res.RarityOverride = true
		res.RarityRule = r.Name
		res.Confidence = nil
		return
	}
}
