// Package metrics provides Prometheus metrics for the StyleWars scoring service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	constLabels    map[string]string
	registry       prometheus.Registerer

	// Submission pipeline
	submissionsReceived  prometheus.Counter
	submissionsDuplicate prometheus.Counter
	submissionsRejected  *prometheus.CounterVec
	submissionsScored    prometheus.Counter
	scoringLatency       prometheus.Histogram
	accuracy             prometheus.Histogram
	score                prometheus.Histogram
	scoringErrors        prometheus.Counter

	// Leaderboards
	leaderboardUpdates *prometheus.CounterVec
	leaderboardErrors  prometheus.Counter
	totalPlayers       prometheus.Gauge
	boardCount         prometheus.Gauge
	boardRecords       *prometheus.GaugeVec
	repoUpdateLatency  prometheus.Histogram
	repoQueryLatency   prometheus.Histogram

	// Catalog and stream
	challengesTotal prometheus.Gauge
	streamClients   prometheus.Gauge
	streamMessages  prometheus.Counter

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueued          prometheus.Counter
	queueDequeued          prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerMessagesPerSecond prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
	errorsByType      *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec
	errorLatency      *prometheus.HistogramVec

	// Runtime
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton used by the package-level recorders

// customRegistry keeps the default Go collectors out of /healthz.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // shared registry

func init() { //nolint:gochecknoinits // metrics must exist before any component records
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a Manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "stylewars",
		subsystem:      "scoring",
		latencyBuckets: prometheus.DefBuckets,
		registry:       prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	percentBuckets := prometheus.LinearBuckets(0, 10, 11)
	scoreBuckets := prometheus.LinearBuckets(0, 100, 15)

	m.submissionsReceived = auto.NewCounter(m.counterOpts("submissions_received_total", "Submissions accepted for asynchronous scoring"))
	m.submissionsDuplicate = auto.NewCounter(m.counterOpts("submissions_duplicate_total", "Submissions dropped because their id was already seen"))
	m.submissionsRejected = auto.NewCounterVec(m.counterOpts("submissions_rejected_total", "Submissions refused before queueing"), []string{"reason"})
	m.submissionsScored = auto.NewCounter(m.counterOpts("submissions_scored_total", "Submissions scored by the worker pool"))
	m.scoringLatency = auto.NewHistogram(m.histogramOpts("scoring_latency_milliseconds", "Time spent comparing pixels and computing the score", m.latencyBuckets))
	m.accuracy = auto.NewHistogram(m.histogramOpts("submission_accuracy_percent", "Pixel accuracy of scored submissions", percentBuckets))
	m.score = auto.NewHistogram(m.histogramOpts("submission_score", "Final score of scored submissions", scoreBuckets))
	m.scoringErrors = auto.NewCounter(m.counterOpts("scoring_errors_total", "Submissions that could not be scored"))

	m.leaderboardUpdates = auto.NewCounterVec(m.counterOpts("leaderboard_updates_total", "Best-score improvements written to a board"), []string{"board_kind"})
	m.leaderboardErrors = auto.NewCounter(m.counterOpts("leaderboard_errors_total", "Failed leaderboard writes"))
	m.totalPlayers = auto.NewGauge(m.gaugeOpts("total_players", "Players on the global board"))
	m.boardCount = auto.NewGauge(m.gaugeOpts("repository_boards", "Number of leaderboards held in memory"))
	m.boardRecords = auto.NewGaugeVec(m.gaugeOpts("repository_records", "Records per leaderboard"), []string{"board"})
	m.repoUpdateLatency = auto.NewHistogram(m.histogramOpts("repository_update_latency_milliseconds", "Leaderboard write latency", m.latencyBuckets))
	m.repoQueryLatency = auto.NewHistogram(m.histogramOpts("repository_query_latency_milliseconds", "Leaderboard read latency", m.latencyBuckets))

	m.challengesTotal = auto.NewGauge(m.gaugeOpts("challenges_total", "Challenges registered in the catalog"))
	m.streamClients = auto.NewGauge(m.gaugeOpts("stream_clients", "Connected leaderboard stream clients"))
	m.streamMessages = auto.NewCounter(m.counterOpts("stream_messages_total", "Leaderboard frames pushed to stream clients"))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Submissions waiting to be scored"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Queue size / capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Submissions enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Submissions dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Enqueue attempts that failed"))
	m.queueProcessingLatency = auto.NewHistogram(m.histogramOpts("queue_processing_latency_milliseconds", "Enqueue latency", m.latencyBuckets))

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Scoring workers running"))
	m.workerMessagesPerSecond = auto.NewGauge(m.gaugeOpts("worker_messages_per_second", "Submissions processed per second by the pool"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds", "End-to-end worker latency per submission", m.latencyBuckets))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Worker failures"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration", m.latencyBuckets), []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total", "Errors by component"), []string{"component", "error_type"})
	m.errorsByType = auto.NewCounterVec(m.counterOpts("errors_by_type_total", "Errors by type and severity"), []string{"error_type", "severity"})
	m.errorsByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total", "Errors by endpoint"), []string{"endpoint", "method", "error_type"})
	m.errorLatency = auto.NewHistogramVec(m.histogramOpts("error_latency_milliseconds", "Latency of operations that failed", m.latencyBuckets), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds", "Average GC pause",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// Submission pipeline.

// RecordSubmissionReceived counts a submission handed to the queue.
func RecordSubmissionReceived() { globalManager.submissionsReceived.Inc() }

// RecordSubmissionDuplicate counts a submission dropped by the deduper.
func RecordSubmissionDuplicate() { globalManager.submissionsDuplicate.Inc() }

// RecordSubmissionRejected counts a submission refused before queueing.
func RecordSubmissionRejected(reason string) {
	globalManager.submissionsRejected.WithLabelValues(reason).Inc()
}

// RecordSubmissionScored observes the outcome of one scored submission.
func RecordSubmissionScored(accuracy float64, score int) {
	globalManager.submissionsScored.Inc()
	globalManager.accuracy.Observe(accuracy)
	globalManager.score.Observe(float64(score))
}

// RecordScoringLatency records scoring latency in milliseconds.
func RecordScoringLatency(latencyMs float64) { globalManager.scoringLatency.Observe(latencyMs) }

// RecordScoringError increments the scoring errors counter.
func RecordScoringError() { globalManager.scoringErrors.Inc() }

// Leaderboards.

// RecordLeaderboardUpdate counts an improvement on a board kind ("challenge" or "global").
func RecordLeaderboardUpdate(boardKind string) {
	globalManager.leaderboardUpdates.WithLabelValues(boardKind).Inc()
}

// RecordLeaderboardError increments the leaderboard errors counter.
func RecordLeaderboardError() { globalManager.leaderboardErrors.Inc() }

// UpdateTotalPlayers sets the number of players on the global board.
func UpdateTotalPlayers(count int) { globalManager.totalPlayers.Set(float64(count)) }

// UpdateBoardCount sets the number of boards held in memory.
func UpdateBoardCount(count int) { globalManager.boardCount.Set(float64(count)) }

// UpdateBoardRecords sets the number of records on one board.
func UpdateBoardRecords(board string, count int) {
	globalManager.boardRecords.WithLabelValues(board).Set(float64(count))
}

// RecordRepositoryUpdateLatency records board write latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repoUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records board read latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repoQueryLatency.Observe(latencyMs)
}

// Catalog and stream.

// UpdateChallengesTotal sets the catalog size.
func UpdateChallengesTotal(count int) { globalManager.challengesTotal.Set(float64(count)) }

// UpdateStreamClients sets the number of connected stream clients.
func UpdateStreamClients(count int) { globalManager.streamClients.Set(float64(count)) }

// RecordStreamMessage counts one frame pushed to a stream client.
func RecordStreamMessage() { globalManager.streamMessages.Inc() }

// Queue.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// RecordQueueProcessingLatency records enqueue latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Workers.

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// UpdateWorkerMessagesPerSecond sets the pool throughput.
func UpdateWorkerMessagesPerSecond(rate float64) { globalManager.workerMessagesPerSecond.Set(rate) }

// RecordWorkerProcessingLatency records worker latency per submission.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that failed.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// Runtime.

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the registry backing the package-level recorders.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
