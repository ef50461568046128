package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Event routing metrics
	EventsTotal *prometheus.CounterVec

	// Handshake metrics
	HandshakesTotal *prometheus.CounterVec

	// Slack command/interaction metrics
	SlackCommandsTotal     *prometheus.CounterVec
	SlackInteractionsTotal *prometheus.CounterVec

	// Async job metrics
	JobsTotal      *prometheus.CounterVec
	JobBatchSize   prometheus.Histogram
	QueuePublishes *prometheus.CounterVec

	// Upstream API metrics
	TicketingRequestsTotal   *prometheus.CounterVec
	TicketingRequestDuration *prometheus.HistogramVec
	SecretsOpsTotal          *prometheus.CounterVec

	// Application metrics
	PanicRecoveriesTotal prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// HTTP request counter by endpoint and status code
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskbridge_http_requests_total",
				Help: "Total number of HTTP requests by endpoint and status code",
			},
			[]string{"endpoint", "method", "status"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deskbridge_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint", "method"},
		),

		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "deskbridge_http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),

		// Routed event counter by classified type
		EventsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskbridge_events_total",
				Help: "Total number of routed events by type and status",
			},
			[]string{"type", "status"},
		),

		// Installation handshake operations
		HandshakesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskbridge_handshakes_total",
				Help: "Total number of installation handshake operations",
			},
			[]string{"operation", "status"},
		),

		// Slack slash command invocations
		SlackCommandsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskbridge_slack_commands_total",
				Help: "Total number of Slack slash commands received",
			},
			[]string{"command", "status"},
		),

		// Slack interactive component submissions
		SlackInteractionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskbridge_slack_interactions_total",
				Help: "Total number of Slack interactive component events received",
			},
			[]string{"type", "status"},
		),

		// Queued ticket-creation jobs by final outcome
		JobsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskbridge_jobs_total",
				Help: "Total number of processed ticket-creation jobs",
			},
			[]string{"outcome"},
		),

		JobBatchSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "deskbridge_job_batch_size",
				Help:    "Number of records per consumed queue batch",
				Buckets: []float64{1, 2, 5, 10, 20},
			},
		),

		QueuePublishes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskbridge_queue_publishes_total",
				Help: "Total number of job publishes to the queue",
			},
			[]string{"status"},
		),

		// Ticketing API request counter
		TicketingRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskbridge_ticketing_api_requests_total",
				Help: "Total number of ticketing API requests",
			},
			[]string{"operation", "status"},
		),

		TicketingRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deskbridge_ticketing_api_request_duration_seconds",
				Help:    "Ticketing API request duration in seconds",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),

		// Secrets store operations
		SecretsOpsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deskbridge_secrets_ops_total",
				Help: "Total number of secrets store operations",
			},
			[]string{"operation", "status"},
		),

		// Panic recoveries
		PanicRecoveriesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "deskbridge_panic_recoveries_total",
				Help: "Total number of panic recoveries in HTTP handlers",
			},
		),
	}
}

var defaultMetrics *Metrics

// Init initializes the default metrics instance
func Init() *Metrics {
	if defaultMetrics == nil {
		defaultMetrics = NewMetrics()
	}
	return defaultMetrics
}

// Get returns the default metrics instance
func Get() *Metrics {
	if defaultMetrics == nil {
		return Init()
	}
	return defaultMetrics
}
