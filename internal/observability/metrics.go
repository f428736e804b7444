package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "content_reminders"

// Metrics stores Prometheus collectors used by API and worker flows. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDuration      *prometheus.HistogramVec
	notificationsSentTotal   *prometheus.CounterVec
	notificationsFailedTotal *prometheus.CounterVec
	notificationSendDuration *prometheus.HistogramVec
	recordsCreatedTotal      *prometheus.CounterVec
	recordsPurgedTotal       prometheus.Counter
	triggersArmedTotal       *prometheus.CounterVec
	triggersFiredTotal       prometheus.Counter
	workerInflight           prometheus.Gauge
	redispatchScheduledTotal *prometheus.CounterVec
	emailEventsTotal         *prometheus.CounterVec
	jobRunsTotal             *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		notificationsSentTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_sent_total",
				Help:      "Notification records finalised as sent, by kind and outcome (delivered or undeliverable).",
			},
			[]string{"kind", "outcome"},
		),
		notificationsFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_failed_total",
				Help:      "Dispatches that left the record unsent, by kind and reason.",
			},
			[]string{"kind", "reason"},
		),
		notificationSendDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "notification_send_duration_seconds",
				Help:      "Email transport call duration in seconds grouped by kind.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"kind"},
		),
		recordsCreatedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_created_total",
				Help:      "Notification records created by kind.",
			},
			[]string{"kind"},
		),
		recordsPurgedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "records_purged_total",
				Help:      "Unsent schedule records deleted because their item was rescheduled.",
			},
		),
		triggersArmedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "triggers_armed_total",
				Help:      "Deferred triggers armed by kind.",
			},
			[]string{"kind"},
		),
		triggersFiredTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "triggers_fired_total",
				Help:      "Deferred triggers handed to the dispatch queue.",
			},
		),
		workerInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "worker_inflight",
				Help:      "Current number of in-flight dispatches.",
			},
		),
		redispatchScheduledTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "redispatch_scheduled_total",
				Help:      "Records re-armed for another dispatch, by source.",
			},
			[]string{"source"},
		),
		emailEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "email_events_total",
				Help:      "Asynchronous email provider events by type.",
			},
			[]string{"type"},
		),
		jobRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "job_runs_total",
				Help:      "Periodic job runs by job and final status.",
			},
			[]string{"job", "status"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.notificationsSentTotal,
		m.notificationsFailedTotal,
		m.notificationSendDuration,
		m.recordsCreatedTotal,
		m.recordsPurgedTotal,
		m.triggersArmedTotal,
		m.triggersFiredTotal,
		m.workerInflight,
		m.redispatchScheduledTotal,
		m.emailEventsTotal,
		m.jobRunsTotal,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

func (m *Metrics) IncNotificationSent(kind string, outcome string) {
	if m == nil {
		return
	}
	m.notificationsSentTotal.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

func (m *Metrics) IncNotificationFailed(kind string, reason string) {
	if m == nil {
		return
	}
	m.notificationsFailedTotal.WithLabelValues(normalizeLabel(kind), normalizeLabel(reason)).Inc()
}

func (m *Metrics) ObserveNotificationSendDuration(kind string, duration time.Duration) {
	if m == nil {
		return
	}
	m.notificationSendDuration.WithLabelValues(normalizeLabel(kind)).Observe(max(duration.Seconds(), 0))
}

func (m *Metrics) IncRecordCreated(kind string) {
	if m == nil {
		return
	}
	m.recordsCreatedTotal.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *Metrics) AddRecordsPurged(count int64) {
	if m == nil || count <= 0 {
		return
	}
	m.recordsPurgedTotal.Add(float64(count))
}

func (m *Metrics) IncTriggerArmed(kind string) {
	if m == nil {
		return
	}
	m.triggersArmedTotal.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (m *Metrics) AddTriggersFired(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.triggersFiredTotal.Add(float64(count))
}

func (m *Metrics) IncWorkerInFlight() {
	if m == nil {
		return
	}
	m.workerInflight.Inc()
}

func (m *Metrics) DecWorkerInFlight() {
	if m == nil {
		return
	}
	m.workerInflight.Dec()
}

func (m *Metrics) IncRedispatchScheduled(source string) {
	if m == nil {
		return
	}
	m.redispatchScheduledTotal.WithLabelValues(normalizeLabel(source)).Inc()
}

func (m *Metrics) IncEmailEvent(eventType string) {
	if m == nil {
		return
	}
	m.emailEventsTotal.WithLabelValues(normalizeLabel(eventType)).Inc()
}

func (m *Metrics) IncJobRun(job string, status string) {
	if m == nil {
		return
	}
	m.jobRunsTotal.WithLabelValues(normalizeLabel(job), normalizeLabel(status)).Inc()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return "unknown"
	}
	return normalized
}
