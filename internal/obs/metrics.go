package obs

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	GateDecisions   *prometheus.CounterVec
	FailOpenTotal   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mealforge_requests_total",
				Help: "Total HTTP requests processed",
			},
			[]string{"method", "path", "code"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mealforge_request_duration_seconds",
				Help:    "Request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		GateDecisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mealforge_gate_decisions_total",
				Help: "Rate limit gate decisions by tier and outcome",
			},
			[]string{"tier", "outcome"},
		),
		FailOpenTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mealforge_gate_fail_open_total",
				Help: "Requests admitted unmetered because a counter store was unavailable",
			},
			[]string{"tier"},
		),
	}

	reg.MustRegister(m.RequestsTotal, m.RequestDuration, m.GateDecisions, m.FailOpenTotal)

	return m
}

// Handler exposes the registry for the /metrics route.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
