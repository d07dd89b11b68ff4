// Package config defines service configuration and its layered loader.
package config

import (
	"context"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// CatalogPath is the CSV catalog loaded at startup.
	CatalogPath string `koanf:"catalog_path"`

	// SeedFromCatalog appends the catalog's seed profiles to an empty sink.
	SeedFromCatalog bool `koanf:"seed_from_catalog"`

	Sink    SinkConfig    `koanf:"sink"`
	Model   ModelConfig   `koanf:"model"`
	Retrain RetrainConfig `koanf:"retrain"`

	// DedupeSize bounds the remembered feedback submission ids.
	DedupeSize int `koanf:"dedupe_size"`

	// RandomSeed fixes the decision draws; 0 seeds from entropy.
	RandomSeed uint64 `koanf:"random_seed"`

	Rarity      RarityConfig `koanf:"rarity"`
	RareVariant DrawConfig   `koanf:"rare_variant"`

	// HallOfFameSize is the default number of entries; MaxHallOfFameLimit
	// caps GET /hall-of-fame?limit.
	HallOfFameSize     int `koanf:"hall_of_fame_size"`
	MaxHallOfFameLimit int `koanf:"max_hall_of_fame_limit"`
	// HallOfFameRefresh is how long the hall of fame index is served before
	// it is rebuilt from the sink; 0 rebuilds on every read.
	HallOfFameRefresh time.Duration `koanf:"hall_of_fame_refresh"`

	// ShareURL is linked from share texts.
	ShareURL string `koanf:"share_url"`

	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// SinkConfig selects the feedback sink.
type SinkConfig struct {
	Kind       string     `koanf:"kind"`
	SQLitePath string     `koanf:"sqlite_path"`
	Blob       BlobConfig `koanf:"blob"`
}

// BlobConfig locates the Azure append blob.
type BlobConfig struct {
	ConnectionString string `koanf:"connection_string"`
	AccountURL       string `koanf:"account_url"`
	Container        string `koanf:"container"`
	Blob             string `koanf:"blob"`
}

// ModelConfig configures training and the predictor artifact.
type ModelConfig struct {
	Strategy string `koanf:"strategy"`

	// ArtifactPath, when set, serves a pre-trained artifact instead of
	// training from feedback. A missing or incompatible artifact is fatal.
	ArtifactPath  string `koanf:"artifact_path"`
	WatchArtifact bool   `koanf:"watch_artifact"`

	MinTrainingRows int      `koanf:"min_training_rows"`
	TrainJudgments  []string `koanf:"train_judgments"`
	KNNK            int      `koanf:"knn_k"`
}

// RetrainConfig sizes the background retrain queue.
type RetrainConfig struct {
	QueueSize   int `koanf:"queue_size"`
	WorkerCount int `koanf:"worker_count"`
}

// RarityConfig is the ordered rarity override table.
type RarityConfig struct {
	Rules []RarityRuleConfig `koanf:"rules"`
}

// RarityRuleConfig is one row of the rarity table. Require maps quiz field
// names to the exact answer needed.
type RarityRuleConfig struct {
	Name    string            `koanf:"name"`
	Require map[string]string `koanf:"require"`
	Range   int               `koanf:"range"`
	Hit     int               `koanf:"hit"`
}

// DrawConfig is a 1-in-Range draw that succeeds on Hit.
type DrawConfig struct {
	Range int `koanf:"range"`
	Hit   int `koanf:"hit"`
}

// New returns a Config holding the defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:        "info",
		Addr:            ":9080",
		CatalogPath:     "data/catalog.csv",
		SeedFromCatalog: true,
		Sink: SinkConfig{
			Kind:       "sqlite",
			SQLitePath: "data/feedback.db",
			Blob:       BlobConfig{Container: "profiler", Blob: "feedback.csv"},
		},
		Model: ModelConfig{
			Strategy:        "naive_bayes",
			MinTrainingRows: 20,
			TrainJudgments:  []string{"match", "close"},
			KNNK:            5,
		},
		Retrain:    RetrainConfig{QueueSize: 16, WorkerCount: 1},
		DedupeSize: 50_000,
		Rarity: RarityConfig{Rules: []RarityRuleConfig{{
			Name: "legendary",
			Require: map[string]string{
				"personality":   "Mysterious & Cunning",
				"core_strength": "Raw Power",
			},
			Range: 20,
			Hit:   1,
		}}},
		RareVariant:        DrawConfig{Range: 100, Hit: 1},
		HallOfFameSize:     5,
		MaxHallOfFameLimit: 50,
		HallOfFameRefresh:  30 * time.Second,
		ShareURL:           "https://profiler.example.com",
		ShutdownTimeout:    10 * time.Second,
	}
}
