// Package metrics holds the prometheus collectors of the registration front-end.
// All recording methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "club"

type Metrics struct {
	registry        *prometheus.Registry
	cacheLookups    *prometheus.CounterVec
	apiCalls        *prometheus.CounterVec
	apiLatency      *prometheus.HistogramVec
	registrations   *prometheus.CounterVec
	optionFallbacks prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Read-through cache lookups by resource and result.",
		}, []string{"resource", "result"}),
		apiCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_calls_total",
			Help:      "Calls to the external data API.",
		}, []string{"method", "target", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_call_duration_seconds",
			Help:      "Latency of calls to the external data API.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2, 5, 10},
		}, []string{"method"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Registration submissions by role and outcome.",
		}, []string{"role", "outcome"}),
		optionFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_option_fallbacks_total",
			Help:      "Times today's options fell back to the fixed set after a fetch failure.",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.cacheLookups,
		m.apiCalls,
		m.apiLatency,
		m.registrations,
		m.optionFallbacks,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) CacheLookup(resource string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(resource, result).Inc()
}

func (m *Metrics) APICall(method, target string, err error, seconds float64) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.apiCalls.WithLabelValues(method, target, status).Inc()
	m.apiLatency.WithLabelValues(method).Observe(seconds)
}

func (m *Metrics) Registration(role, outcome string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(role, outcome).Inc()
}

func (m *Metrics) OptionFallback() {
	if m == nil {
		return
	}
	m.optionFallbacks.Inc()
}
