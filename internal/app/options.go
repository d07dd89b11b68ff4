package service

import (
	"time"

	"github.com/okian/profiler/internal/adapters/sink"
	"github.com/okian/profiler/internal/domain/catalog"
	"github.com/okian/profiler/internal/domain/decision"
	"github.com/okian/profiler/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCatalog uses c instead of loading cfg.CatalogPath.
func WithCatalog(c *catalog.Catalog) Option {
	return func(s *Service) { s.catalog = c }
}

// WithSink uses sk instead of opening cfg.Sink. The service does not close
// a sink it was given.
func WithSink(sk sink.Sink) Option {
	return func(s *Service) {
		s.sink = sk
		s.ownsSink = false
	}
}

// WithRand overrides the decision random source.
func WithRand(r decision.Rand) Option {
	return func(s *Service) { s.rand = r }
}

// WithClock sets the time source for feedback timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}
