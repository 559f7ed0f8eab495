// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CacheLookups    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "sigdesk_cache_lookups_total", Help: "guarded cache lookups"}, []string{"result"})
	BundleBuilds    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "sigdesk_bundle_builds_total", Help: "signature bundles computed"}, []string{"status"})
	StatusChanges   = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "sigdesk_status_changes_total", Help: "signature status changes"}, []string{"status"})
	CascadeDisabled = prometheus.NewCounter(prometheus.CounterOpts{Name: "sigdesk_cascade_disabled_total", Help: "sibling signatures disabled by a status change"})
	AIRequests      = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "sigdesk_ai_requests_total", Help: "AI backend calls"}, []string{"action", "status"})
	HTTPRequests    = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "sigdesk_http_requests_total", Help: "HTTP requests served"}, []string{"code"})
)

func init() {
	prometheus.MustRegister(CacheLookups, BundleBuilds, StatusChanges, CascadeDisabled, AIRequests, HTTPRequests)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
