// Package quizsim drives a running profiler with simulated players: each one
// takes the quiz, reads its decision and sends a judgment back.
package quizsim

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors.
var (
	ErrInvalidConfig = errors.New("invalid simulation config")
	ErrUnhealthy     = errors.New("service unhealthy")
)

// Config holds the simulation settings.
type Config struct {
	BaseURL     string        // Base URL of the service
	Players     int           // Number of simulated players
	Workers     int           // Concurrent players in flight
	Timeout     time.Duration // HTTP request timeout
	Seed        uint64        // Seed for answers and judgments; 0 picks one
	MatchRate   float64       // Probability a player confirms the decision
	DestinyRate float64       // Probability a player opts into destiny
	Repeat      float64       // Probability a player resends its feedback
	Strict      bool          // Send quizzes with ?strict=true
}

// DefaultConfig returns settings for a small local run.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "http://localhost:9080",
		Players:     100,
		Workers:     8,
		Timeout:     10 * time.Second,
		MatchRate:   0.7,
		DestinyRate: 0.1,
		Repeat:      0.05,
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base url is required"))
	}
	if c.Players <= 0 {
		errs = append(errs, fmt.Errorf("players must be positive, got %d", c.Players))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	for name, p := range map[string]float64{"match rate": c.MatchRate, "destiny rate": c.DestinyRate, "repeat": c.Repeat} {
		if p < 0 || p > 1 {
			errs = append(errs, fmt.Errorf("%s must be within [0,1], got %v", name, p))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// Stats holds simulation counters.
type Stats struct {
	Players          int
	Decided          int
	NotReady         int
	Failed           int
	FeedbackRecorded int
	Duplicates       int
	FeedbackFailed   int
	RarityOverrides  int
	RareVariants     int
	Outcomes         map[string]int
	StartTime        time.Time
	EndTime          time.Time
	Duration         time.Duration
}
