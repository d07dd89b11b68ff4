package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector names are built as <namespace>_<subsystem>_<name>.
const (
	DefaultNamespace = "profiler"
	DefaultSubsystem = "partner"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace replaces DefaultNamespace.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem replaces DefaultSubsystem.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithHistogramBuckets sets the buckets of the decision and HTTP latency
// histograms.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithRetrainBuckets sets the buckets of the retrain duration histogram.
// Training over a large feedback sheet runs far longer than a decision.
func WithRetrainBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.retrainBuckets = buckets
		}
	}
}

// WithPrometheusRegistry sets the registry the collectors are registered on.
func WithPrometheusRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}
