package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/finom/vovk"
)

// MetricsConfig configures NewMetrics.
type MetricsConfig struct {
	// Prefix is prepended to metric names. Default: "vovk".
	Prefix string

	// Buckets are the latency histogram buckets in seconds.
	// Default: prometheus.DefBuckets.
	Buckets []float64

	// Registry receives the collectors. A fresh registry is created when nil.
	Registry *prometheus.Registry
}

// Metrics records per-route call counts and latency.
type Metrics struct {
	registry *prometheus.Registry
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if cfg.Prefix == "" {
		cfg.Prefix = "vovk"
	}
	if cfg.Buckets == nil {
		cfg.Buckets = prometheus.DefBuckets
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	labelNames := []string{"controller", "handler", "http_method", "code"}

	m := &Metrics{
		registry: reg,
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: cfg.Prefix + "_calls_total",
				Help: "Total number of routed controller calls",
			},
			labelNames,
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    cfg.Prefix + "_call_duration_seconds",
				Help:    "Routed controller call duration in seconds",
				Buckets: cfg.Buckets,
			},
			labelNames[:3],
		),
	}
	reg.MustRegister(m.calls, m.duration)
	return m
}

// Registry returns the registry the collectors live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the HTTP handler for a /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Decorator returns a decorator recording each call of the method. The code
// label is "ok" or the error's vovk.ErrorCode.
func (m *Metrics) Decorator() vovk.Decorator {
	return vovk.Use(func(ctx context.Context, req *http.Request, next vovk.Next) (any, error) {
		start := time.Now()
		res, err := next(ctx)

		controller, handler, verb := "unknown", "unknown", ""
		if r, ok := vovk.RouteFromContext(ctx); ok {
			controller = r.Controller.Name()
			handler = r.Name
			verb = string(r.Method)
		}
		code := "ok"
		if err != nil {
			code = string(vovk.DefaultErrorTransformer(err).Code)
		}

		m.calls.WithLabelValues(controller, handler, verb, code).Inc()
		m.duration.WithLabelValues(controller, handler, verb).Observe(time.Since(start).Seconds())
		return res, err
	})
}
