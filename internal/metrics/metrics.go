package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()

	// SyncRuns counts finished order sync runs by trigger and status
	SyncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "nwsi_sync_runs_total", Help: "Finished order sync runs."},
		[]string{"trigger", "status"},
	)
	// SyncDuration records order sync run durations in seconds
	SyncDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "nwsi_sync_duration_seconds", Help: "Order sync run duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"status"},
	)
	// CRMRequests counts Salesforce API calls by method and HTTP status ("error" for transport failures)
	CRMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "nwsi_crm_requests_total", Help: "Salesforce API requests."},
		[]string{"method", "status"},
	)
	// TokenRefreshes counts access token refresh attempts by outcome
	TokenRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "nwsi_token_refreshes_total", Help: "OAuth token refresh attempts."},
		[]string{"outcome"},
	)
	// QueueDepth is the number of order sync tasks waiting for a worker
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "nwsi_dispatch_queue_depth", Help: "Queued order sync tasks."},
	)
)

var regOnce sync.Once

// Register registers the collectors on Registry. Safe to call more than once.
func Register() {
	regOnce.Do(func() {
		Registry.MustRegister(SyncRuns, SyncDuration, CRMRequests, TokenRefreshes, QueueDepth)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
