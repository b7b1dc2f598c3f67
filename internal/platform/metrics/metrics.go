// Package metrics exposes the HTTP and record-lifecycle Prometheus series.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	inFlight        prometheus.Gauge
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	recordOps       *prometheus.CounterVec
	recordAccess    *prometheus.CounterVec
}

// New registers every series on reg. Passing prometheus.NewRegistry() keeps
// tests isolated from the default registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pts",
			Name:      "http_in_flight_requests",
			Help:      "In-flight HTTP requests.",
		}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pts",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pts",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latencies in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		recordOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pts",
			Name:      "record_operations_total",
			Help:      "Successful record mutations by entity and operation.",
		}, []string{"entity", "op"}),
		recordAccess: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pts",
			Name:      "record_access_total",
			Help:      "Audited record accesses by resource, action and status class.",
		}, []string{"resource", "action", "class"}),
	}
	reg.MustRegister(m.inFlight, m.requestsTotal, m.requestDuration, m.recordOps, m.recordAccess)
	return m
}

// Handler serves the series gathered from g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// Middleware records count and latency per route template, so ids in the
// path do not explode the label space.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.inFlight.Inc()
			defer m.inFlight.Dec()

			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			} else if err != nil && !c.Response().Committed {
				status = http.StatusInternalServerError
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			labels := []string{c.Request().Method, route, strconv.Itoa(status)}
			m.requestsTotal.WithLabelValues(labels...).Inc()
			m.requestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// RecordOp counts a committed create, update or delete. Safe on nil.
func (m *Metrics) RecordOp(entity, op string) {
	if m == nil {
		return
	}
	m.recordOps.WithLabelValues(entity, op).Inc()
}

// RecordAccess counts one audited access. status is folded into its class
// ("2xx", "4xx", ...). Safe on nil.
func (m *Metrics) RecordAccess(resource, action string, status int) {
	if m == nil {
		return
	}
	class := strconv.Itoa(status/100) + "xx"
	m.recordAccess.WithLabelValues(resource, action, class).Inc()
}
