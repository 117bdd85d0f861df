package prometheus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Counter metrics
var (
	WebhooksReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopdash_webhooks_received_total",
			Help: "Total number of webhooks received by topic and outcome",
		},
		[]string{"topic", "outcome"}, // outcome: accepted, duplicate, rejected, dead_lettered
	)

	SignatureFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shopdash_webhook_signature_failures_total",
			Help: "Total number of webhooks rejected for a bad signature",
		},
	)

	TasksProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopdash_ingest_tasks_total",
			Help: "Total number of ingestion tasks by final result",
		},
		[]string{"topic", "result"}, // result: success, dead_lettered
	)

	DeadLettered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopdash_ingest_dead_lettered_total",
			Help: "Total number of ingestion tasks moved to the dead letter queue",
		},
		[]string{"reason"},
	)

	Broadcasts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopdash_realtime_broadcasts_total",
			Help: "Total number of realtime broadcasts by delivery result",
		},
		[]string{"result"}, // delivered, dropped
	)

	AuthErrorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopdash_auth_errors_total",
			Help: "Total number of authentication errors",
		},
		[]string{"type"},
	)

	LoginCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shopdash_auth_login_total",
			Help: "Total number of login attempts",
		},
	)

	RegisterCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shopdash_auth_register_total",
			Help: "Total number of user registrations",
		},
	)

	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shopdash_upstream_requests_total",
			Help: "Total number of Shopify Admin API requests by status",
		},
		[]string{"status"},
	)

	EventExportFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shopdash_event_export_failures_total",
			Help: "Total number of events that could not be exported to Kafka",
		},
	)
)

// Histogram metrics
var (
	ProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopdash_ingest_processing_duration_seconds",
			Help:    "Duration of one ingestion task including retries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"topic"},
	)

	DBOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopdash_db_operation_duration_seconds",
			Help:    "Duration of database operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	TenantOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shopdash_tenant_operation_duration_seconds",
			Help:    "Duration of tenant scoped analytics operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "tenant_id"},
	)
)

// Gauge metrics
var (
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shopdash_ingest_queue_depth",
			Help: "Number of ingestion tasks waiting in the queue",
		},
	)

	WebsocketConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "shopdash_websocket_connections",
			Help: "Number of open realtime connections",
		},
	)

	InfoGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "shopdash_info",
			Help: "Information about the analytics service",
		},
		[]string{"version"},
	)
)

func init() {
	prometheus.MustRegister(WebhooksReceived)
	prometheus.MustRegister(SignatureFailures)
	prometheus.MustRegister(TasksProcessed)
	prometheus.MustRegister(DeadLettered)
	prometheus.MustRegister(Broadcasts)
	prometheus.MustRegister(AuthErrorCounter)
	prometheus.MustRegister(LoginCounter)
	prometheus.MustRegister(RegisterCounter)
	prometheus.MustRegister(UpstreamRequests)
	prometheus.MustRegister(EventExportFailures)

	prometheus.MustRegister(ProcessingDuration)
	prometheus.MustRegister(DBOperationDuration)
	prometheus.MustRegister(TenantOperationDuration)

	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(WebsocketConnections)
	prometheus.MustRegister(InfoGauge)

	InfoGauge.With(prometheus.Labels{"version": "1.0.0"}).Set(1)
}

// GetPrometheusHandler returns an HTTP handler for the Prometheus metrics
func GetPrometheusHandler() http.Handler {
	return promhttp.Handler()
}

// TrackDBOperation measures a database operation; use as defer TrackDBOperation("query")(time.Now())
func TrackDBOperation(operation string) func(time.Time) {
	return func(start time.Time) {
		DBOperationDuration.With(prometheus.Labels{
			"operation": operation,
		}).Observe(time.Since(start).Seconds())
	}
}

// TrackTenantOperation measures a tenant scoped operation
func TrackTenantOperation(operation string, tenantID uint) func(time.Time) {
	return func(start time.Time) {
		TenantOperationDuration.With(prometheus.Labels{
			"operation": operation,
			"tenant_id": strconv.FormatUint(uint64(tenantID), 10),
		}).Observe(time.Since(start).Seconds())
	}
}

// RecordAuthError records an authentication error by type
func RecordAuthError(errorType string) {
	AuthErrorCounter.With(prometheus.Labels{"type": errorType}).Inc()
}

// RecordWebhook records a received webhook
func RecordWebhook(topic, outcome string) {
	WebhooksReceived.With(prometheus.Labels{"topic": topic, "outcome": outcome}).Inc()
}

// RecordTask records one ingestion attempt and its duration
func RecordTask(topic, result string, took time.Duration) {
	TasksProcessed.With(prometheus.Labels{"topic": topic, "result": result}).Inc()
	ProcessingDuration.With(prometheus.Labels{"topic": topic}).Observe(took.Seconds())
}

// RecordDeadLetter records a task moved to the DLQ
func RecordDeadLetter(reason string) {
	DeadLettered.With(prometheus.Labels{"reason": reason}).Inc()
}

// RecordBroadcast records per-client delivery results of a broadcast
func RecordBroadcast(delivered, dropped int) {
	Broadcasts.With(prometheus.Labels{"result": "delivered"}).Add(float64(delivered))
	Broadcasts.With(prometheus.Labels{"result": "dropped"}).Add(float64(dropped))
}

// RecordUpstream records a Shopify API response status
func RecordUpstream(status int) {
	UpstreamRequests.With(prometheus.Labels{"status": strconv.Itoa(status)}).Inc()
}
