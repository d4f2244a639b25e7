package status

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/proxyops/certsyncd/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishAndLatest(t *testing.T) {
	r := NewRegistry()
	assert.Nil(t, r.Latest())

	res := engine.CycleResult{
		ID:              "cycle-1",
		FinishedAt:      time.Now(),
		Changed:         []string{"cert-a", "cert-b"},
		ReloadTriggered: true,
		ReloadStrategy:  "socket",
	}
	r.Publish(res)

	latest := r.Latest()
	require.NotNil(t, latest)
	assert.Equal(t, "cycle-1", latest.ID)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.cyclesTotal.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.changesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.reloadsTotal.WithLabelValues("socket", "success")))
}

func TestPublishOutcomeLabels(t *testing.T) {
	r := NewRegistry()

	r.Publish(engine.CycleResult{WholesaleError: "listing failed"})
	r.Publish(engine.CycleResult{Failed: map[string]string{"cert-a": "not-found"}})
	r.Publish(engine.CycleResult{})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.cyclesTotal.WithLabelValues("wholesale_failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cyclesTotal.WithLabelValues("partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.cyclesTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetchFailures.WithLabelValues("not-found")))
}

func TestPublishSeparatesWriteFailures(t *testing.T) {
	r := NewRegistry()
	r.Publish(engine.CycleResult{Failed: map[string]string{
		"cert-a": "not-found",
		"cert-b": engine.ReasonWriteError,
		"cert-c": engine.ReasonCollision,
	}})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetchFailures.WithLabelValues("not-found")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.writeFailures.WithLabelValues(engine.ReasonWriteError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.writeFailures.WithLabelValues(engine.ReasonCollision)))

	// Write outcomes never leak into the fetch-failure metric.
	count, err := testutil.GatherAndCount(r.registry, "certsync_fetch_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestPublishReloadFailure(t *testing.T) {
	r := NewRegistry()
	r.Publish(engine.CycleResult{
		Changed:        []string{"cert-a"},
		ReloadStrategy: "http",
		ReloadError:    "endpoint returned 503",
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(r.reloadsTotal.WithLabelValues("http", "failure")))
}

func TestObserveCertificate(t *testing.T) {
	r := NewRegistry()

	r.ObserveCertificate("cert-a", []string{"a.example.com"}, time.Now().Add(30*24*time.Hour))
	days := testutil.ToFloat64(r.certExpiryDays.WithLabelValues("cert-a", "a.example.com"))
	assert.InDelta(t, 30.0, days, 0.1)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.certExpired.WithLabelValues("cert-a", "a.example.com")))

	r.ObserveCertificate("cert-old", nil, time.Now().Add(-24*time.Hour))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.certExpired.WithLabelValues("cert-old", "unknown")))
}

func TestObserveCertificateSkipsZeroExpiry(t *testing.T) {
	r := NewRegistry()
	r.ObserveCertificate("cert-a", []string{"a.example.com"}, time.Time{})

	count, err := testutil.GatherAndCount(r.registry, "certsync_cert_expiry_days")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestMetricsHandler(t *testing.T) {
	r := NewRegistry()
	r.SetManagedCount(3)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	r.MetricsHandler().ServeHTTP(rec, req)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "certsync_certificates_managed 3")
}
