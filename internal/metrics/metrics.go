package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks HTTP request duration in seconds by method, route, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts HTTP requests by method, route, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// TransitionsTotal counts lifecycle operations by operation and outcome
	// (ok, not_found, invalid_state, not_authorized, validation, storage).
	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "asset_transitions_total",
			Help: "Asset lifecycle operations by operation and outcome",
		},
		[]string{"op", "result"},
	)

	// AuditFailuresTotal counts audit appends that failed after a committed transition.
	AuditFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_append_failures_total",
			Help: "Audit log appends that failed and were dropped",
		},
		[]string{"action"},
	)

	// AssetsByStatus is the number of live assets per status, refreshed by the scheduler.
	AssetsByStatus = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "assets_by_status",
			Help: "Number of non-deleted assets per lifecycle status",
		},
		[]string{"status"},
	)

	// WarrantyExpiringSoon is the number of live assets whose warranty ends within the configured window.
	WarrantyExpiringSoon = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "assets_warranty_expiring_soon",
			Help: "Live assets whose warranty expires within the alert window",
		},
	)
)

var initOnce sync.Once

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestDuration, RequestTotal, TransitionsTotal,
			AuditFailuresTotal, AssetsByStatus, WarrantyExpiringSoon)
	})
}

// RecordRequest records duration and count for an HTTP request. route should be
// the router pattern (e.g. /assets/{id}) so ids do not blow up cardinality.
func RecordRequest(method, route string, statusCode int, durationSeconds float64) {
	if route == "" {
		route = "unmatched"
	}
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, route, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, route, status).Inc()
}

func RecordTransition(op, result string) {
	TransitionsTotal.WithLabelValues(op, result).Inc()
}

func IncAuditFailures(action string) {
	AuditFailuresTotal.WithLabelValues(action).Inc()
}

// SetAssetCounts replaces the per-status gauge values. Statuses missing from counts are set to zero.
func SetAssetCounts(statuses []string, counts map[string]int) {
	for _, s := range statuses {
		AssetsByStatus.WithLabelValues(s).Set(float64(counts[s]))
	}
}

func SetWarrantyExpiringSoon(n int) {
	WarrantyExpiringSoon.Set(float64(n))
}
