// Package metrics exposes collector activity to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "edge_collector"

// Collectors records dispatch outcomes, identity gate activity and relay
// traffic. A nil *Collectors is valid and records nothing.
type Collectors struct {
	registry *prometheus.Registry

	dispatches        *prometheus.CounterVec
	dispatchDuration  *prometheus.HistogramVec
	serverWarnings    prometheus.Counter
	gateQueueDepth    prometheus.Gauge
	bootstrapAttempts prometheus.Counter
	cookiesSwept      prometheus.Counter
	httpRequests      *prometheus.CounterVec
}

func New() *Collectors {
	c := &Collectors{
		registry: prometheus.NewRegistry(),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatches_total",
			Help:      "Edge requests by action and outcome.",
		}, []string{"action", "outcome"}),
		dispatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent in one full request lifecycle.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"action"}),
		serverWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "server_warnings_total",
			Help:      "Warnings embedded in edge responses.",
		}),
		gateQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "identity_gate_waiting",
			Help:      "Requests waiting for the visitor identity.",
		}),
		bootstrapAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_bootstrap_attempts_total",
			Help:      "Requests sent to establish the visitor identity.",
		}),
		cookiesSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cookies_swept_total",
			Help:      "Expired cookies removed from storage.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Relay HTTP requests by route and status.",
		}, []string{"route", "status"}),
	}

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.dispatches,
		c.dispatchDuration,
		c.serverWarnings,
		c.gateQueueDepth,
		c.bootstrapAttempts,
		c.cookiesSwept,
		c.httpRequests,
	)
	return c
}

func (c *Collectors) ObserveDispatch(action, outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.dispatches.WithLabelValues(action, outcome).Inc()
	c.dispatchDuration.WithLabelValues(action).Observe(elapsed.Seconds())
}

func (c *Collectors) ServerWarning() {
	if c == nil {
		return
	}
	c.serverWarnings.Inc()
}

func (c *Collectors) GateQueueDepth(n int) {
	if c == nil {
		return
	}
	c.gateQueueDepth.Set(float64(n))
}

func (c *Collectors) BootstrapAttempt() {
	if c == nil {
		return
	}
	c.bootstrapAttempts.Inc()
}

func (c *Collectors) CookiesSwept(n int) {
	if c == nil {
		return
	}
	c.cookiesSwept.Add(float64(n))
}

func (c *Collectors) HTTPRequest(route string, status int) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collectors) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
