package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordValidationFailuresFoldsLineIndexes(t *testing.T) {
	m := New()
	m.RecordValidationFailures([]string{"items[0].quantity", "items[12].quantity", "customer_id"})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.validationFailures.WithLabelValues("items.quantity")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.validationFailures.WithLabelValues("customer_id")))
}

func TestSubmissionCounters(t *testing.T) {
	m := New()
	m.RecordSubmission(ModeCreate)
	m.RecordSubmission(ModeCreate)
	m.RecordRejection(ModeUpdate)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.submissions.WithLabelValues(ModeCreate)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejections.WithLabelValues(ModeUpdate)))
}

func TestHandlerExposesRegisteredSeries(t *testing.T) {
	m := New()
	m.RecordDraftEvent("add_line")
	m.ObserveHTTP("/api/v1/invoices", http.MethodPost, http.StatusCreated, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `bizdesk_invoice_draft_events_total{type="add_line"} 1`))
	assert.True(t, strings.Contains(body, "bizdesk_http_request_duration_seconds_bucket"))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordSubmission(ModeCreate)
	m.RecordValidationFailures([]string{"items"})
	m.ObserveHTTP("/", http.MethodGet, http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
