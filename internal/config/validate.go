package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/okian/profiler/internal/adapters/sink"
	"github.com/okian/profiler/internal/domain/decision"
	"github.com/okian/profiler/internal/domain/predictor"
	"github.com/okian/profiler/internal/domain/quiz"
)

// Validate reports every problem in c at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Addr == "" {
		add("addr is required")
	}
	if c.CatalogPath == "" {
		add("catalog_path is required")
	}
	switch c.Sink.Kind {
	case sink.KindSQLite:
		if c.Sink.SQLitePath == "" {
			add("sink.sqlite_path is required for the sqlite sink")
		}
	case sink.KindBlob:
		if c.Sink.Blob.ConnectionString == "" && c.Sink.Blob.AccountURL == "" {
			add("sink.blob needs connection_string or account_url")
		}
		if c.Sink.Blob.Container == "" || c.Sink.Blob.Blob == "" {
			add("sink.blob needs container and blob")
		}
	case sink.KindMemory:
	default:
		add("sink.kind %q is not one of sqlite, blob, memory", c.Sink.Kind)
	}

	if !slices.Contains(predictor.Strategies(), c.Model.Strategy) {
		add("model.strategy %q is not one of %v", c.Model.Strategy, predictor.Strategies())
	}
	if c.Model.MinTrainingRows < 1 {
		add("model.min_training_rows must be positive")
	}
	if c.Model.KNNK < 1 {
		add("model.knn_k must be positive")
	}
	if _, err := c.Judgments(); err != nil {
		errs = append(errs, err)
	}
	if c.Retrain.QueueSize < 1 {
		add("retrain.queue_size must be positive")
	}
	if c.Retrain.WorkerCount < 1 {
		add("retrain.worker_count must be positive")
	}

	for _, r := range c.RarityRules() {
		if err := r.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.Variant().Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.HallOfFameSize < 1 || c.MaxHallOfFameLimit < c.HallOfFameSize {
		add("hall_of_fame_size must be in 1..max_hall_of_fame_limit")
	}
	if c.HallOfFameRefresh < 0 {
		add("hall_of_fame_refresh must not be negative")
	}
	if c.ShutdownTimeout <= 0 {
		add("shutdown_timeout must be positive")
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Judgments parses model.train_judgments. An empty list is rejected.
func (c *Config) Judgments() ([]quiz.Judgment, error) {
	if len(c.Model.TrainJudgments) == 0 {
		return nil, errors.New("model.train_judgments must not be empty")
	}
	out := make([]quiz.Judgment, 0, len(c.Model.TrainJudgments))
	for _, s := range c.Model.TrainJudgments {
		j, err := quiz.ParseJudgment(s)
		if err != nil {
			return nil, fmt.Errorf("model.train_judgments: %w", err)
		}
		out = append(out, j)
	}
	return out, nil
}

// RarityRules converts the configured table, preserving order.
func (c *Config) RarityRules() []decision.RarityRule {
	out := make([]decision.RarityRule, 0, len(c.Rarity.Rules))
	for _, r := range c.Rarity.Rules {
		req := make(map[quiz.Field]string, len(r.Require))
		for k, v := range r.Require {
			req[quiz.Field(k)] = v
		}
		out = append(out, decision.RarityRule{Name: r.Name, Require: req, Range: r.Range, Hit: r.Hit})
	}
	return out
}

// Variant converts the rare variant draw.
func (c *Config) Variant() decision.VariantRule {
	return decision.VariantRule{Range: c.RareVariant.Range, Hit: c.RareVariant.Hit}
}

// SinkSettings converts the sink section.
func (c *Config) SinkSettings() sink.Settings {
	return sink.Settings{
		Kind:       c.Sink.Kind,
		SQLitePath: c.Sink.SQLitePath,
		Blob: sink.BlobSettings{
			ConnectionString: c.Sink.Blob.ConnectionString,
			AccountURL:       c.Sink.Blob.AccountURL,
			Container:        c.Sink.Blob.Container,
			Blob:             c.Sink.Blob.Blob,
		},
	}
}
