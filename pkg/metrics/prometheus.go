// Package metrics provides Prometheus metrics for the partner profiler service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Decision states recorded on the decisions counter.
const (
	DecisionDecided        = "decided"
	DecisionNotReady       = "not_ready"
	DecisionIntegrityFault = "integrity_fault"
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	retrainBuckets   []float64
	registry         prometheus.Registerer

	// Decision cycle
	decisions       *prometheus.CounterVec
	rarityOverrides *prometheus.CounterVec
	rareVariants    prometheus.Counter
	decisionLatency prometheus.Histogram

	// Feedback
	feedback           *prometheus.CounterVec
	feedbackDuplicates prometheus.Counter
	sinkFailures       *prometheus.CounterVec

	// Predictor readiness
	retrainRuns     *prometheus.CounterVec
	retrainDuration prometheus.Histogram
	trainingRows    prometheus.Gauge
	modelVersion    prometheus.Gauge
	predictorReady  prometheus.Gauge

	// Retrain queue and workers
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueErrors *prometheus.CounterVec
	workerCount        prometheus.Gauge

	// Hall of fame index
	fameRefreshes *prometheus.CounterVec
	fameEntries   prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// customRegistry keeps the default Go collectors out of /healthz.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        DefaultNamespace,
		subsystem:        DefaultSubsystem,
		histogramBuckets: prometheus.DefBuckets,
		retrainBuckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collectors
	m.decisions = m.counterVec("decisions_total",
		"Quiz decisions by resulting state (decided, not_ready, integrity_fault)", "state")
	m.rarityOverrides = m.counterVec("rarity_overrides_total",
		"Decisions whose outcome was replaced from the rare pool, by rule", "rule")
	m.rareVariants = m.counter("rare_variants_total",
		"Decisions that selected the alternate image asset")
	m.decisionLatency = m.histogram("decision_latency_milliseconds",
		"Time spent inside the decision cycle in milliseconds", m.histogramBuckets)

	m.feedback = m.counterVec("feedback_total",
		"Feedback records appended to the sink, by judgment", "judgment")
	m.feedbackDuplicates = m.counter("feedback_duplicates_total",
		"Feedback submissions ignored because the submission id was already recorded")
	m.sinkFailures = m.counterVec("sink_failures_total",
		"Feedback sink operations that failed, by operation", "operation")

	m.retrainRuns = m.counterVec("retrain_runs_total",
		"Predictor retraining runs by result", "result")
	m.retrainDuration = m.histogram("retrain_duration_milliseconds",
		"Predictor retraining duration in milliseconds", m.retrainBuckets)
	m.trainingRows = m.gauge("training_rows",
		"Number of feedback rows behind the current predictor snapshot")
	m.modelVersion = m.gauge("model_version",
		"Monotonic version of the current predictor snapshot")
	m.predictorReady = m.gauge("predictor_ready",
		"1 when the predictor has enough training rows to serve decisions")

	m.queueSize = m.gauge("retrain_queue_size", "Pending retrain jobs")
	m.queueCapacity = m.gauge("retrain_queue_capacity", "Retrain queue capacity")
	m.queueEnqueueErrors = m.counterVec("retrain_queue_enqueue_errors_total",
		"Retrain jobs that could not be enqueued, by reason", "reason")
	m.workerCount = m.gauge("retrain_worker_count", "Number of retrain workers")

	m.fameRefreshes = m.counterVec("hall_of_fame_refreshes_total",
		"Hall of fame index rebuilds from the sink by result", "result")
	m.fameEntries = m.gauge("hall_of_fame_entries", "Outcomes ranked in the hall of fame index")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total",
		"HTTP errors by endpoint, method and error type", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000})
}

// RecordDecision increments the decisions counter for state.
func RecordDecision(state string) {
	globalManager.decisions.WithLabelValues(state).Inc()
}

// RecordRarityOverride counts an outcome replaced by rule.
func RecordRarityOverride(rule string) {
	globalManager.rarityOverrides.WithLabelValues(rule).Inc()
}

// RecordRareVariant counts a decision that selected the alternate image.
func RecordRareVariant() {
	globalManager.rareVariants.Inc()
}

// RecordDecisionLatency records time spent deciding in milliseconds.
func RecordDecisionLatency(latencyMs float64) {
	globalManager.decisionLatency.Observe(latencyMs)
}

// RecordFeedback counts a feedback record appended with judgment.
func RecordFeedback(judgment string) {
	globalManager.feedback.WithLabelValues(judgment).Inc()
}

// RecordFeedbackDuplicate counts a resubmitted feedback.
func RecordFeedbackDuplicate() {
	globalManager.feedbackDuplicates.Inc()
}

// RecordSinkFailure counts a failed sink operation.
func RecordSinkFailure(operation string) {
	globalManager.sinkFailures.WithLabelValues(operation).Inc()
}

// RecordRetrain records a retraining run and its duration in milliseconds.
func RecordRetrain(ok bool, durationMs float64) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	globalManager.retrainRuns.WithLabelValues(result).Inc()
	globalManager.retrainDuration.Observe(durationMs)
}

// UpdatePredictorSnapshot publishes the state of the current predictor snapshot.
func UpdatePredictorSnapshot(rows int, version uint64, ready bool) {
	globalManager.trainingRows.Set(float64(rows))
	globalManager.modelVersion.Set(float64(version))
	if ready {
		globalManager.predictorReady.Set(1)
	} else {
		globalManager.predictorReady.Set(0)
	}
}

// UpdateQueueSize sets the number of pending retrain jobs.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the retrain queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueueError counts a rejected retrain job.
func RecordQueueEnqueueError(reason string) {
	globalManager.queueEnqueueErrors.WithLabelValues(reason).Inc()
}

// UpdateWorkerCount sets the number of retrain workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordFameRefresh counts a hall of fame index rebuild.
func RecordFameRefresh(ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	globalManager.fameRefreshes.WithLabelValues(result).Inc()
}

// UpdateFameEntries sets the number of ranked outcomes.
func UpdateFameEntries(n int) {
	globalManager.fameEntries.Set(float64(n))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an HTTP error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the registry served on /healthz.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
