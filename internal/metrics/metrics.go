package metrics

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ModeCreate = "create"
	ModeUpdate = "update"
)

// Metrics holds the service's Prometheus instruments on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry           *prometheus.Registry
	submissions        *prometheus.CounterVec
	rejections         *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	draftEvents        *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bizdesk_invoice_submissions_total",
			Help: "Invoices persisted, by mode.",
		}, []string{"mode"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bizdesk_invoice_submission_rejections_total",
			Help: "Valid invoice submissions the backend refused, by mode.",
		}, []string{"mode"}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bizdesk_invoice_validation_failures_total",
			Help: "Invoice field validation failures, by field.",
		}, []string{"field"}),
		draftEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bizdesk_invoice_draft_events_total",
			Help: "Events applied to invoice drafts, by type.",
		}, []string{"type"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bizdesk_http_request_duration_seconds",
			Help:    "HTTP request latency by route, method and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.submissions,
		m.rejections,
		m.validationFailures,
		m.draftEvents,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) RecordSubmission(mode string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(mode).Inc()
}

func (m *Metrics) RecordRejection(mode string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(mode).Inc()
}

// RecordValidationFailures counts each failing field once. Line indexes are
// folded out of the label, so "items[3].quantity" is counted as
// "items.quantity".
func (m *Metrics) RecordValidationFailures(fields []string) {
	if m == nil {
		return
	}
	for _, field := range fields {
		m.validationFailures.WithLabelValues(FieldLabel(field)).Inc()
	}
}

func (m *Metrics) RecordDraftEvent(eventType string) {
	if m == nil {
		return
	}
	m.draftEvents.WithLabelValues(eventType).Inc()
}

func (m *Metrics) ObserveHTTP(route string, method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

var lineIndex = regexp.MustCompile(`\[\d+\]`)

func FieldLabel(field string) string {
	return lineIndex.ReplaceAllString(field, "")
}
