// Package metrics provides Prometheus metrics for the kpiboard service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
	defaultSubsystem       = "kpi"
)

// latencyBuckets are in milliseconds, matching every latency recorder.
var latencyBuckets = []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500} //nolint:gochecknoglobals // default buckets

// Manager manages all Prometheus metrics for the kpiboard service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Aggregation
	aggregations       prometheus.Counter
	aggregationLatency prometheus.Histogram
	memoLookups        *prometheus.CounterVec
	memoSize           prometheus.Gauge

	// Snapshot loading
	refreshes         *prometheus.CounterVec
	refreshLatency    prometheus.Histogram
	fetchLatency      *prometheus.HistogramVec
	fetchErrors       *prometheus.CounterVec
	snapshotRecords   *prometheus.GaugeVec
	snapshotLastUnix  prometheus.Gauge
	trackerThrottled  prometheus.Counter
	currentSprintDays prometheus.Gauge

	// Refresh queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry *prometheus.Registry //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	Init()
}

// Init replaces the global manager with one built from opts on a fresh
// registry, which GetRegistry then returns. Call it at start-up before
// anything is recorded; it is not safe to run alongside recorders.
func Init(opts ...Option) {
	registry := prometheus.NewRegistry()
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(registry)}, opts...)...)
	customRegistry = registry
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "kpiboard",
		subsystem:        defaultSubsystem,
		histogramBuckets: latencyBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.aggregations = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("aggregations_total"),
		Help:        "Total number of KPI bundles computed",
		ConstLabels: labels,
	})

	m.aggregationLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("aggregation_latency_milliseconds"),
		Help:        "Histogram of KPI aggregation latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})

	m.memoLookups = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("memo_lookups_total"),
			Help:        "Snapshot memo lookups by result",
			ConstLabels: labels,
		},
		[]string{"result"},
	)

	m.memoSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("memo_size"),
		Help:        "Number of snapshots held by the memo",
		ConstLabels: labels,
	})

	m.refreshes = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("refreshes_total"),
			Help:        "Snapshot refreshes by outcome",
			ConstLabels: labels,
		},
		[]string{"outcome"},
	)

	m.refreshLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("refresh_latency_milliseconds"),
		Help:        "Histogram of full snapshot load latency in milliseconds",
		Buckets:     []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		ConstLabels: labels,
	})

	m.fetchLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("fetch_latency_milliseconds"),
			Help:        "Histogram of per-collection fetch latency in milliseconds",
			Buckets:     []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
			ConstLabels: labels,
		},
		[]string{"collection"},
	)

	m.fetchErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("fetch_errors_total"),
			Help:        "Failed collection fetches",
			ConstLabels: labels,
		},
		[]string{"collection"},
	)

	m.snapshotRecords = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("snapshot_records"),
			Help:        "Records in the current snapshot by collection",
			ConstLabels: labels,
		},
		[]string{"collection"},
	)

	m.snapshotLastUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("snapshot_last_unixtime"),
		Help:        "Unix time of the last successful snapshot load",
		ConstLabels: labels,
	})

	m.trackerThrottled = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("tracker_throttled_total"),
		Help:        "Tracker requests that waited on the client rate limiter",
		ConstLabels: labels,
	})

	m.currentSprintDays = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("current_sprint_days_left"),
		Help:        "Days until the current sprint ends, negative once expired",
		ConstLabels: labels,
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("refresh_queue_size"),
		Help:        "Pending refresh requests",
		ConstLabels: labels,
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("refresh_queue_capacity"),
		Help:        "Maximum pending refresh requests",
		ConstLabels: labels,
	})

	m.queueEnqueueRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("refresh_queue_enqueued_total"),
		Help:        "Refresh requests accepted by the queue",
		ConstLabels: labels,
	})

	m.queueDequeueRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("refresh_queue_dequeued_total"),
		Help:        "Refresh requests taken by the worker",
		ConstLabels: labels,
	})

	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("refresh_queue_rejected_total"),
		Help:        "Refresh requests rejected because the queue was full",
		ConstLabels: labels,
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_requests_total"),
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_request_duration_milliseconds"),
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("errors_by_component_total"),
			Help:        "Errors by component and type",
			ConstLabels: labels,
		},
		[]string{"component", "error_type"},
	)

	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("errors_by_endpoint_total"),
			Help:        "Errors by endpoint, method and type",
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_memory_usage_bytes"),
		Help:        "Allocated heap memory in bytes",
		ConstLabels: labels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_goroutine_count"),
		Help:        "Number of goroutines",
		ConstLabels: labels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_gc_pause_milliseconds"),
		Help:        "Average GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: labels,
	})
}

func boolLabel(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}

// RecordAggregation records one computed bundle and its latency.
func RecordAggregation(latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.aggregations.Inc()
	globalManager.aggregationLatency.Observe(latencyMs)
}

// RecordMemoLookup records a memo hit or miss.
func RecordMemoLookup(hit bool) {
	if !globalManager.enabled {
		return
	}
	globalManager.memoLookups.WithLabelValues(boolLabel(hit, "hit", "miss")).Inc()
}

// UpdateMemoSize sets the number of memoised snapshots.
func UpdateMemoSize(size int) {
	globalManager.memoSize.Set(float64(size))
}

// RecordRefresh records a snapshot refresh outcome and its latency.
func RecordRefresh(ok bool, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.refreshes.WithLabelValues(boolLabel(ok, "ok", "failed")).Inc()
	globalManager.refreshLatency.Observe(latencyMs)
}

// RecordFetch records one collection fetch.
func RecordFetch(collection string, ok bool, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.fetchLatency.WithLabelValues(collection).Observe(latencyMs)
	if !ok {
		globalManager.fetchErrors.WithLabelValues(collection).Inc()
	}
}

// UpdateSnapshotSize sets the record counts of the current snapshot.
func UpdateSnapshotSize(tasks, users, sprints int) {
	globalManager.snapshotRecords.WithLabelValues("tasks").Set(float64(tasks))
	globalManager.snapshotRecords.WithLabelValues("users").Set(float64(users))
	globalManager.snapshotRecords.WithLabelValues("sprints").Set(float64(sprints))
	globalManager.snapshotLastUnix.Set(float64(time.Now().Unix()))
}

// RecordTrackerThrottled increments the rate-limited tracker request counter.
func RecordTrackerThrottled() {
	globalManager.trackerThrottled.Inc()
}

// UpdateCurrentSprintDaysLeft sets the days left in the current sprint.
func UpdateCurrentSprintDaysLeft(days float64) {
	globalManager.currentSprintDays.Set(days)
}

// UpdateQueueSize sets the current refresh queue length.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum refresh queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the rejected enqueue counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
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

// RefreshInterval returns how often gauge updaters should run.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
