// Package metrics provides the prometheus collectors for the service.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Collector owns every prometheus metric the service emits.
type Collector struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	stageDuration *prometheus.HistogramVec

	llmRequestsTotal *prometheus.CounterVec
	llmFallbacks     prometheus.Counter

	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	cacheErrors *prometheus.CounterVec

	dbConnected prometheus.Gauge

	registry *prometheus.Registry
	logger   *zap.Logger
}

// NewCollector registers all metrics on a private registry so tests can
// instantiate collectors freely.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	registry := prometheus.NewRegistry()
	factory := func(name, help string, labels ...string) *prometheus.CounterVec {
		v := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: name, Help: help,
		}, labels)
		registry.MustRegister(v)
		return v
	}

	c := &Collector{
		registry: registry,
		logger:   logger.With(zap.String("component", "metrics")),
	}

	c.httpRequestsTotal = factory("http_requests_total", "HTTP requests by method, path and status.", "method", "path", "status")
	c.httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: "http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})
	registry.MustRegister(c.httpRequestDuration)

	c.stageDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: "pipeline_stage_duration_seconds",
		Help:    "Answer pipeline stage latency.",
		Buckets: []float64{.005, .01, .05, .1, .5, 1, 2.5, 5, 10, 30},
	}, []string{"stage"})
	registry.MustRegister(c.stageDuration)

	c.llmRequestsTotal = factory("llm_requests_total", "LM completions by provider and outcome.", "provider", "outcome")
	c.llmFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "llm_fallback_answers_total",
		Help: "Deterministic fallback answers served during total LM outage.",
	})
	registry.MustRegister(c.llmFallbacks)

	c.cacheHits = factory("cache_hits_total", "Cache hits by tier.", "tier")
	c.cacheMisses = factory("cache_misses_total", "Cache misses by tier.", "tier")
	c.cacheErrors = factory("cache_errors_total", "Cache errors by class.", "class")

	c.dbConnected = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "database_connected",
		Help: "1 when the relational store gateway is connected.",
	})
	registry.MustRegister(c.dbConnected)

	return c
}

// Registry exposes the private registry for the /metrics handler.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// RecordHTTPRequest counts one request and observes its latency.
func (c *Collector) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordStage observes one pipeline stage duration.
func (c *Collector) RecordStage(stage string, duration time.Duration) {
	c.stageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordLLMRequest counts one provider completion attempt.
func (c *Collector) RecordLLMRequest(provider, outcome string) {
	c.llmRequestsTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordLLMFallback counts one deterministic fallback answer.
func (c *Collector) RecordLLMFallback() { c.llmFallbacks.Inc() }

// RecordCacheHit counts a hit on tier ("l1" or "l2").
func (c *Collector) RecordCacheHit(tier string) { c.cacheHits.WithLabelValues(tier).Inc() }

// RecordCacheMiss counts a miss on tier.
func (c *Collector) RecordCacheMiss(tier string) { c.cacheMisses.WithLabelValues(tier).Inc() }

// RecordCacheError counts an error by class ("connection", "timeout", "other").
func (c *Collector) RecordCacheError(class string) { c.cacheErrors.WithLabelValues(class).Inc() }

// SetDBConnected publishes the gateway connectivity state.
func (c *Collector) SetDBConnected(connected bool) {
	if connected {
		c.dbConnected.Set(1)
		return
	}
	c.dbConnected.Set(0)
}
