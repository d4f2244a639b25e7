// Package status records sync outcomes for the HTTP surface: the latest
// cycle result as an immutable snapshot plus cumulative Prometheus counters.
package status

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/proxyops/certsyncd/internal/engine"
)

// Registry implements engine.Recorder. Readers get the published CycleResult
// pointer; results are never mutated after publication, so no lock is needed
// on the read path.
type Registry struct {
	latest atomic.Pointer[engine.CycleResult]

	registry *prometheus.Registry

	cyclesTotal    *prometheus.CounterVec
	changesTotal   prometheus.Counter
	fetchFailures  *prometheus.CounterVec
	writeFailures  *prometheus.CounterVec
	reloadsTotal   *prometheus.CounterVec
	managedCerts   prometheus.Gauge
	lastSyncStamp  prometheus.Gauge
	certExpiryDays *prometheus.GaugeVec
	certExpired    *prometheus.GaugeVec
}

func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		cyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certsync_cycles_total",
			Help: "Total number of sync cycles by outcome",
		}, []string{"status"}),
		changesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "certsync_changes_applied_total",
			Help: "Total number of certificates written",
		}),
		fetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certsync_fetch_failures_total",
			Help: "Total number of per-secret fetch failures by reason",
		}, []string{"reason"}),
		writeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certsync_write_failures_total",
			Help: "Total number of certificate write failures by reason",
		}, []string{"reason"}),
		reloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "certsync_reloads_total",
			Help: "Total number of proxy reload attempts by strategy and outcome",
		}, []string{"strategy", "status"}),
		managedCerts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "certsync_certificates_managed",
			Help: "Number of certificates currently tracked on disk",
		}),
		lastSyncStamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "certsync_last_sync_timestamp_seconds",
			Help: "Unix timestamp of the last completed cycle",
		}),
		certExpiryDays: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "certsync_cert_expiry_days",
			Help: "Days until certificate expiry",
		}, []string{"name", "domain"}),
		certExpired: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "certsync_cert_expired",
			Help: "Certificate is expired (1) or not (0)",
		}, []string{"name", "domain"}),
	}

	r.registry.MustRegister(
		r.cyclesTotal,
		r.changesTotal,
		r.fetchFailures,
		r.writeFailures,
		r.reloadsTotal,
		r.managedCerts,
		r.lastSyncStamp,
		r.certExpiryDays,
		r.certExpired,
	)
	return r
}

// Publish records a finished cycle: it becomes the snapshot served by the
// status endpoint and feeds the cumulative counters.
func (r *Registry) Publish(res engine.CycleResult) {
	r.latest.Store(&res)

	switch {
	case res.WholesaleError != "":
		r.cyclesTotal.WithLabelValues("wholesale_failure").Inc()
	case len(res.Failed) > 0:
		r.cyclesTotal.WithLabelValues("partial").Inc()
	default:
		r.cyclesTotal.WithLabelValues("success").Inc()
	}

	r.changesTotal.Add(float64(len(res.Changed)))
	for _, reason := range res.Failed {
		// Failed mixes fetch and write outcomes; the reason code tells them
		// apart and keeps the label sets bounded.
		switch reason {
		case engine.ReasonWriteError, engine.ReasonCollision:
			r.writeFailures.WithLabelValues(reason).Inc()
		default:
			r.fetchFailures.WithLabelValues(reason).Inc()
		}
	}

	if res.ReloadStrategy != "" {
		outcome := "success"
		if res.ReloadError != "" {
			outcome = "failure"
		}
		r.reloadsTotal.WithLabelValues(res.ReloadStrategy, outcome).Inc()
	}

	r.lastSyncStamp.Set(float64(res.FinishedAt.Unix()))
}

// ObserveCertificate updates the expiry gauges for one certificate, computed
// from the leaf certificate at write time.
func (r *Registry) ObserveCertificate(name string, domains []string, notAfter time.Time) {
	if notAfter.IsZero() {
		return
	}
	domain := "unknown"
	if len(domains) > 0 {
		domain = domains[0]
	}
	daysLeft := time.Until(notAfter).Hours() / 24
	r.certExpiryDays.WithLabelValues(name, domain).Set(daysLeft)

	expired := 0.0
	if daysLeft < 0 {
		expired = 1.0
	}
	r.certExpired.WithLabelValues(name, domain).Set(expired)
}

// SetManagedCount updates the managed-certificates gauge.
func (r *Registry) SetManagedCount(n int) {
	r.managedCerts.Set(float64(n))
}

// Latest returns the most recently published cycle result, or nil before the
// first cycle completes.
func (r *Registry) Latest() *engine.CycleResult {
	return r.latest.Load()
}

// MetricsHandler serves the Prometheus exposition endpoint.
func (r *Registry) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
