// Package metrics holds the Prometheus instruments for the service on a
// private registry, exposed through Handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Load results recorded on SourceLoads.
const (
	LoadOK        = "ok"
	LoadMissing   = "missing"
	LoadMalformed = "malformed"
	LoadError     = "error"
)

// Merge origins recorded on MergedUsers.
const (
	OriginBoth           = "both"
	OriginBillingOnly    = "billing_only"
	OriginEngagementOnly = "engagement_only"
)

// Registry owns a private Prometheus registry and the collectors the
// service and HTTP middleware update.
type Registry struct {
	reg *prometheus.Registry

	SourceLoads     *prometheus.CounterVec
	SourceRecords   *prometheus.GaugeVec
	MergedUsers     *prometheus.CounterVec
	LastMergeSize   prometheus.Gauge
	FilterRejected  *prometheus.CounterVec
	HTTPRequests    *prometheus.CounterVec
	HTTPDurationSec *prometheus.HistogramVec
}

// NewRegistry creates the collectors and registers them, together with the
// Go runtime and process collectors, on a fresh registry.
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	sourceLoads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "userdata_source_loads_total",
		Help: "Export file loads by source and result.",
	}, []string{"source", "result"})
	sourceRecords := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "userdata_source_records",
		Help: "Records read from each source on the last load.",
	}, []string{"source"})
	mergedUsers := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "userdata_merged_users_total",
		Help: "Unified users produced, by which sources contributed.",
	}, []string{"origin"})
	lastMerge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "userdata_last_merge_users",
		Help: "Unique users in the most recent merge.",
	})
	filterRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "userdata_filter_ignored_total",
		Help: "Query filters ignored because their value was malformed.",
	}, []string{"filter"})
	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "userdata_http_requests_total",
		Help: "HTTP requests by method, route pattern and status.",
	}, []string{"method", "route", "status"})
	httpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "userdata_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	r.MustRegister(
		sourceLoads, sourceRecords, mergedUsers, lastMerge, filterRejected,
		httpRequests, httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Registry{
		reg:             r,
		SourceLoads:     sourceLoads,
		SourceRecords:   sourceRecords,
		MergedUsers:     mergedUsers,
		LastMergeSize:   lastMerge,
		FilterRejected:  filterRejected,
		HTTPRequests:    httpRequests,
		HTTPDurationSec: httpDuration,
	}
}

// Gatherer exposes the underlying registry, mainly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
