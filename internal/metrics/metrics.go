// Package metrics registers the Prometheus collectors used across the service.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the service.
type Metrics struct {
	InboundUpdates    *prometheus.CounterVec
	OutboundMessages  *prometheus.CounterVec
	Verifications     *prometheus.CounterVec
	OracleRequests    *prometheus.CounterVec
	OracleLatency     *prometheus.HistogramVec
	RateLimitedDrops  *prometheus.CounterVec
	ConnectionRebuild *prometheus.CounterVec
	Errors            *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			InboundUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inbound_updates_total",
				Help:      "Total inbound Telegram updates processed.",
			}, []string{"type"}),
			OutboundMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "outbound_messages_total",
				Help:      "Total outbound Telegram messages sent.",
			}, []string{"type"}),
			Verifications: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "verifications_total",
				Help:      "Total order verification attempts by outcome.",
			}, []string{"outcome"}),
			OracleRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "oracle_requests_total",
				Help:      "Total commerce API requests by status.",
			}, []string{"status"}),
			OracleLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "oracle_request_duration_seconds",
				Help:      "Latency distribution for commerce API calls.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"status"}),
			RateLimitedDrops: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_drops_total",
				Help:      "Total requests dropped by the rate limiter.",
			}, []string{"namespace"}),
			ConnectionRebuild: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "connection_rebuilds_total",
				Help:      "Total bot connection rebuilds by result.",
			}, []string{"result"}),
			Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total errors grouped by component.",
			}, []string{"component"}),
		}

		prometheus.MustRegister(
			metricsInstance.InboundUpdates,
			metricsInstance.OutboundMessages,
			metricsInstance.Verifications,
			metricsInstance.OracleRequests,
			metricsInstance.OracleLatency,
			metricsInstance.RateLimitedDrops,
			metricsInstance.ConnectionRebuild,
			metricsInstance.Errors,
		)
	})
	return metricsInstance
}
