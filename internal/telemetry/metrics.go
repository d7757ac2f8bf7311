// Package telemetry provides application-level observability for the shopcn server.
//
// # Prometheus Metrics Endpoint
//
// All metrics are registered against the default Prometheus registry and are
// automatically available on the side-channel HTTP server started by main.go:
//
//	GET http(s)://<host>:<SHOPCN_TELEMETRY_METRICS_PROMETHEUS_PORT>/metrics
//
// Default port: 9090.  The endpoint returns data in the Prometheus text exposition
// format (Content-Type: text/plain; version=0.0.4) and is intended to be scraped by
// a Prometheus server every 15–60 seconds.  It is NOT served by the Gin router.
//
// # Metric Groups
//
//   - HTTP request counters and latency histograms (labelled by route template, not raw URL)
//   - Install decision counters (by outcome)
//   - Checkout session and webhook event counters
//   - Access key issuance counters
//   - Database connection pool gauge (polled every 30 s)
//
// # Label Cardinality
//
// HTTP metrics use c.FullPath() (route template such as /install/:slug) rather than
// the raw request URL to prevent unbounded label cardinality from user-supplied path
// segments such as product slugs.
//
// # Usage
//
// Import the package for side effects so metrics are registered before the HTTP server
// starts listening, or use an exported var directly:
//
//	telemetry.InstallDecisionsTotal.WithLabelValues("granted").Inc()
package telemetry

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics — labelled by method, route template, and status code.
//
// HTTPRequestsTotal is a CounterVec with labels {method, path, status}.
// The path label holds the Gin route template (e.g. /install/:slug), NOT the raw
// URL, to prevent unbounded cardinality.
//
// Example PromQL queries:
//   - Request rate (req/s, 5 m window):  rate(http_requests_total[5m])
//   - Error rate (%):                    sum(rate(http_requests_total{status=~"5.."}[5m])) / sum(rate(http_requests_total[5m])) * 100
//   - Requests by route:                 sum by (path) (rate(http_requests_total[5m]))
//
// HTTPRequestDuration is a HistogramVec with labels {method, path} and exponential-ish
// buckets from 5 ms to 30 s.  Use histogram_quantile to compute latency percentiles.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests processed, by method, route template, and status code.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, by method and route template.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "path"},
	)
)

// Entitlement metrics — recorded by the install authorization path.
//
// InstallDecisionsTotal is a CounterVec with label {outcome}.  Outcome values are
// the terminal states of the install check: "granted", "missing_key", "invalid_key",
// "not_found", "forbidden", "exhausted", "no_artifact".
//
// Example PromQL queries:
//   - Denial rate (%):       sum(rate(install_decisions_total{outcome!="granted"}[5m])) / sum(rate(install_decisions_total[5m])) * 100
//   - Decisions by outcome:  sum by (outcome) (rate(install_decisions_total[1h]))
//
// ArtifactDownloadsTotal is a CounterVec with label {slug} incremented once per
// artifact payload actually served.  Slugs are operator-controlled, so cardinality
// is bounded by the catalog size.
var (
	InstallDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "install_decisions_total",
			Help: "Total number of install authorization decisions, by outcome.",
		},
		[]string{"outcome"},
	)

	ArtifactDownloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artifact_downloads_total",
			Help: "Total number of component artifacts served, by product slug.",
		},
		[]string{"slug"},
	)
)

// Payment metrics — recorded by the checkout and webhook handlers.
//
// CheckoutSessionsTotal is a CounterVec with label {status}: "created" when a
// provider session is opened, "provider_error" when session creation fails.
//
// WebhookEventsTotal is a CounterVec with label {result}: "reconciled" for events
// that marked a ledger entry paid, "reverted" for events whose re-fetched session
// was not complete and whose entry was overwritten to unpaid, "unmatched" for
// events referencing no known checkout, "ignored" for event types the reconciler
// does not handle, "invalid_signature" for events that failed signature
// verification, and "provider_error" when the authoritative status re-fetch failed.
//
// Example PromQL queries:
//   - Alert on signature failures:  increase(webhook_events_total{result="invalid_signature"}[15m]) > 0
//   - Reconciliation rate:          rate(webhook_events_total{result="reconciled"}[1h])
var (
	CheckoutSessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_sessions_total",
			Help: "Total number of checkout session creation attempts, by status.",
		},
		[]string{"status"},
	)

	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total number of payment webhook events received, by processing result.",
		},
		[]string{"result"},
	)
)

// AccessKeysIssuedTotal is a CounterVec with label {scope} ("install" or "cli")
// incremented once per key minted.  A spike in install-key issuance without a
// matching rise in install_decisions_total{outcome="granted"} suggests clients
// are minting keys they never redeem.
var AccessKeysIssuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "access_keys_issued_total",
		Help: "Total number of access keys issued, by scope.",
	},
	[]string{"scope"},
)

// DBOpenConnections is a Gauge that tracks the number of open connections currently
// held by the sql.DB connection pool.  It is sampled every 30 seconds by
// StartDBStatsCollector rather than per-request to avoid the overhead of sql.DB.Stats().
//
// Example PromQL queries:
//   - Pool utilisation (%): db_open_connections / <SHOPCN_DATABASE_MAX_CONNECTIONS> * 100
//   - Alert on near-exhaustion: db_open_connections > 20  (for max_connections=25)
var DBOpenConnections = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "db_open_connections",
		Help: "Current number of open database connections in the pool.",
	},
)

// StartDBStatsCollector launches a background goroutine that samples sql.DB connection
// pool statistics every 30 seconds and updates the DBOpenConnections gauge.
// The goroutine exits cleanly when the database becomes unreachable (db.Ping fails),
// which happens automatically when the application shuts down and defers db.Close().
//
// Call this once, immediately after db.Connect() succeeds in main.go:
//
//	telemetry.StartDBStatsCollector(database)
func StartDBStatsCollector(db *sql.DB) {
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			if err := db.Ping(); err != nil {
				slog.Warn("db stats collector: database unreachable, stopping collector", "error", err)
				return
			}
			DBOpenConnections.Set(float64(db.Stats().OpenConnections))
		}
	}()
}
