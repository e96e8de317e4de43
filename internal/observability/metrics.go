package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the comparison service.
// Metrics are organized by subsystem: comparisons, source fetches, upstream
// requests and the result cache. All counters and histograms are registered via
// promauto with the default Prometheus registry.
type Metrics struct {
	// ComparisonsStarted counts accepted comparison requests.
	ComparisonsStarted prometheus.Counter

	// ComparisonsCompleted counts comparisons that produced a table.
	ComparisonsCompleted prometheus.Counter

	// ComparisonsRejected counts requests refused for invalid input.
	ComparisonsRejected prometheus.Counter

	// ComparisonDuration observes end-to-end comparison duration in seconds.
	ComparisonDuration prometheus.Histogram

	// IdentifiersPerComparison observes the number of normalized identifiers per comparison.
	IdentifiersPerComparison prometheus.Histogram

	// SourceFetches counts adapter fetches, labeled by source.
	SourceFetches *prometheus.CounterVec

	// SourceFetchesFailed counts adapter fetches that failed as a batch, labeled by source.
	SourceFetchesFailed *prometheus.CounterVec

	// SourceFetchDuration observes adapter fetch duration in seconds, labeled by source.
	SourceFetchDuration *prometheus.HistogramVec

	// Observations counts observations returned, labeled by source.
	Observations *prometheus.CounterVec

	// Diagnostics counts diagnostics surfaced to callers, labeled by kind.
	Diagnostics *prometheus.CounterVec

	// SourceRequests counts HTTP attempts against upstream APIs, labeled by source and status code.
	SourceRequests *prometheus.CounterVec

	// SourceRequestDuration observes upstream HTTP attempt duration in seconds, labeled by source.
	SourceRequestDuration *prometheus.HistogramVec

	// CacheHits counts result cache hits, labeled by source.
	CacheHits *prometheus.CounterVec

	// CacheMisses counts result cache misses, labeled by source.
	CacheMisses *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Comparisons
		ComparisonsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comparisons_started_total",
			Help:      "Total number of comparisons started",
		}),
		ComparisonsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comparisons_completed_total",
			Help:      "Total number of comparisons completed",
		}),
		ComparisonsRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "comparisons_rejected_total",
			Help:      "Total number of comparison requests rejected for invalid input",
		}),
		ComparisonDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "comparison_duration_seconds",
			Help:      "Duration of comparisons in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		IdentifiersPerComparison: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "identifiers_per_comparison",
			Help:      "Number of identifiers per comparison",
			Buckets:   []float64{1, 2, 5, 10, 15, 20},
		}),

		// Source fetches
		SourceFetches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetches_total",
			Help:      "Total number of source fetches",
		}, []string{"source"}),
		SourceFetchesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_fetches_failed_total",
			Help:      "Total number of source fetches that failed as a batch",
		}, []string{"source"}),
		SourceFetchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_fetch_duration_seconds",
			Help:      "Duration of source fetches in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"source"}),
		Observations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observations_total",
			Help:      "Total number of observations returned by sources",
		}, []string{"source"}),
		Diagnostics: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diagnostics_total",
			Help:      "Total number of diagnostics surfaced",
		}, []string{"kind"}),

		// Upstream HTTP
		SourceRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of HTTP attempts against source APIs",
		}, []string{"source", "status"}),
		SourceRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of HTTP attempts against source APIs in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"source"}),

		// Cache
		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of result cache hits",
		}, []string{"source"}),
		CacheMisses: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of result cache misses",
		}, []string{"source"}),
	}
}

// RecordComparisonStarted records an accepted comparison.
func (m *Metrics) RecordComparisonStarted(identifiers int) {
	m.ComparisonsStarted.Inc()
	m.IdentifiersPerComparison.Observe(float64(identifiers))
}

// RecordComparisonCompleted records a finished comparison.
func (m *Metrics) RecordComparisonCompleted(durationSeconds float64) {
	m.ComparisonsCompleted.Inc()
	m.ComparisonDuration.Observe(durationSeconds)
}

// RecordComparisonRejected records a request refused for invalid input.
func (m *Metrics) RecordComparisonRejected() {
	m.ComparisonsRejected.Inc()
}

// RecordSourceFetch records a successful source fetch.
func (m *Metrics) RecordSourceFetch(source string, observations int, durationSeconds float64) {
	m.SourceFetches.WithLabelValues(source).Inc()
	m.Observations.WithLabelValues(source).Add(float64(observations))
	m.SourceFetchDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordSourceFetchFailed records a source fetch that failed as a batch.
func (m *Metrics) RecordSourceFetchFailed(source string, durationSeconds float64) {
	m.SourceFetches.WithLabelValues(source).Inc()
	m.SourceFetchesFailed.WithLabelValues(source).Inc()
	m.SourceFetchDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordDiagnostic records a diagnostic of the given kind.
func (m *Metrics) RecordDiagnostic(kind string) {
	m.Diagnostics.WithLabelValues(kind).Inc()
}

// RecordSourceRequest records one upstream HTTP attempt. A zero status code
// means the attempt failed before a response arrived and is labeled "error".
func (m *Metrics) RecordSourceRequest(source string, statusCode int, durationSeconds float64) {
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	m.SourceRequests.WithLabelValues(source, status).Inc()
	m.SourceRequestDuration.WithLabelValues(source).Observe(durationSeconds)
}

// RecordCacheHit records a result cache hit.
func (m *Metrics) RecordCacheHit(source string) {
	m.CacheHits.WithLabelValues(source).Inc()
}

// RecordCacheMiss records a result cache miss.
func (m *Metrics) RecordCacheMiss(source string) {
	m.CacheMisses.WithLabelValues(source).Inc()
}
