// Package metrics exposes Prometheus instrumentation for the query
// pipeline and the HTTP surface.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// QueriesTotal counts query executions by outcome status.
	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcity_queries_total",
		Help: "SPARQL query executions by outcome status.",
	}, []string{"status"})

	// QueryDuration observes end-to-end query latency.
	QueryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "smartcity_query_duration_seconds",
		Help:    "End-to-end SPARQL query latency.",
		Buckets: prometheus.DefBuckets,
	})

	// RewritesTotal counts applications of individual rewrite rules.
	RewritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcity_rewrites_total",
		Help: "Query rewrite rule applications.",
	}, []string{"rule"})

	// FallbacksTotal counts controller fallback attempts by kind.
	FallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcity_fallbacks_total",
		Help: "Execution controller fallback attempts.",
	}, []string{"kind"})

	// ModelCallsTotal counts generative-model calls by result.
	ModelCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcity_model_calls_total",
		Help: "Generative model calls by result.",
	}, []string{"result"})

	// GraphTriples tracks the current triple count.
	GraphTriples = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "smartcity_graph_triples",
		Help: "Number of triples currently held in the graph.",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route and code.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "smartcity_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "code"})
)

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
