// Package metrics provides Prometheus metrics for the taskrouter service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Label values for detection outcomes.
const (
	OutcomeTask    = "task"
	OutcomeNotTask = "not_task"
)

// Manager manages all Prometheus metrics for the taskrouter service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Intake
	messagesReceived  prometheus.Counter
	messagesDuplicate prometheus.Counter
	messagesRejected  *prometheus.CounterVec

	// Detection
	detections          *prometheus.CounterVec
	detectionConfidence prometheus.Histogram
	detectionLatency    prometheus.Histogram
	detectionRuleHits   *prometheus.CounterVec

	// Ranking
	rankingLatency    prometheus.Histogram
	candidatesRanked  prometheus.Counter
	topCandidateScore prometheus.Histogram

	// Tasks
	tasksCreated  prometheus.Counter
	tasksAssigned prometheus.Counter
	totalTasks    prometheus.Gauge

	// Queue
	queueSize        prometheus.Gauge
	queueCapacity    prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueued    prometheus.Counter
	queueDequeued    prometheus.Counter
	queueEnqueueErrs prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "taskrouter",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
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

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.customLabels,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.messagesReceived = m.counter("messages_received_total", "Total number of messages accepted for processing")
	m.messagesDuplicate = m.counter("messages_duplicate_total", "Total number of duplicate messages dropped")
	m.messagesRejected = m.counterVec("messages_rejected_total", "Total number of messages rejected before detection", "reason")

	m.detections = m.counterVec("detections_total", "Total number of detections by outcome", "outcome")
	m.detectionConfidence = m.histogram("detection_confidence", "Distribution of detection confidence",
		[]float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95})
	m.detectionLatency = m.histogram("detection_latency_milliseconds", "Detection latency in milliseconds", m.histogramBuckets)
	m.detectionRuleHits = m.counterVec("detection_rule_hits_total", "Number of times each detection rule contributed points", "rule")

	m.rankingLatency = m.histogram("ranking_latency_milliseconds", "Ranking latency in milliseconds", m.histogramBuckets)
	m.candidatesRanked = m.counter("candidates_ranked_total", "Total number of candidates scored")
	m.topCandidateScore = m.histogram("top_candidate_score", "Distribution of the best total score per ranking",
		[]float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100})

	m.tasksCreated = m.counter("tasks_created_total", "Total number of tasks created from messages")
	m.tasksAssigned = m.counter("tasks_assigned_total", "Total number of tasks assigned to a candidate")
	m.totalTasks = m.gauge("tasks", "Number of tasks currently held by the task store")

	m.queueSize = m.gauge("queue_size", "Current size of the message queue (backlog indicator)")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Total number of messages enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Total number of messages dequeued")
	m.queueEnqueueErrs = m.counter("queue_enqueue_errors_total", "Total number of enqueue errors")

	m.workerCount = m.gauge("worker_count", "Current number of pipeline workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds",
		"Pipeline processing latency per message in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Total number of worker errors")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("http_request_duration_milliseconds"),
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component",
		"component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordMessageReceived increments the accepted messages counter.
func RecordMessageReceived() {
	globalManager.messagesReceived.Inc()
}

// RecordMessageDuplicate increments the duplicate messages counter.
func RecordMessageDuplicate() {
	globalManager.messagesDuplicate.Inc()
}

// RecordMessageRejected increments the rejected messages counter for reason.
func RecordMessageRejected(reason string) {
	globalManager.messagesRejected.WithLabelValues(reason).Inc()
}

// RecordDetection records one detection outcome and its confidence.
func RecordDetection(isTask bool, confidence float64) {
	outcome := OutcomeNotTask
	if isTask {
		outcome = OutcomeTask
	}
	globalManager.detections.WithLabelValues(outcome).Inc()
	globalManager.detectionConfidence.Observe(confidence)
}

// RecordDetectionLatency records detection latency in milliseconds.
func RecordDetectionLatency(latencyMs float64) {
	globalManager.detectionLatency.Observe(latencyMs)
}

// RecordDetectionRuleHit increments the hit counter of a detection rule.
func RecordDetectionRuleHit(rule string) {
	globalManager.detectionRuleHits.WithLabelValues(rule).Inc()
}

// RecordRanking records ranking latency, candidate count and the best score.
func RecordRanking(latencyMs float64, candidates int, topScore float64) {
	globalManager.rankingLatency.Observe(latencyMs)
	globalManager.candidatesRanked.Add(float64(candidates))
	if candidates > 0 {
		globalManager.topCandidateScore.Observe(topScore)
	}
}

// RecordTaskCreated increments the created tasks counter.
func RecordTaskCreated() {
	globalManager.tasksCreated.Inc()
}

// RecordTaskAssigned increments the assigned tasks counter.
func RecordTaskAssigned() {
	globalManager.tasksAssigned.Inc()
}

// UpdateTotalTasks sets the number of tasks in the store.
func UpdateTotalTasks(count int) {
	globalManager.totalTasks.Set(float64(count))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrs.Inc()
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
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
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
