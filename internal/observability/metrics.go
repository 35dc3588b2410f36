package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsRecorder receives one observation per service operation.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// NoopMetricsRecorder discards observations.
type NoopMetricsRecorder struct{}

func (NoopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// PrometheusRecorder publishes operation latency and outcome counters.
type PrometheusRecorder struct {
	durations *prometheus.HistogramVec
	totals    *prometheus.CounterVec
}

// NewPrometheusRecorder registers the bizdesk operation collectors with reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	rec := &PrometheusRecorder{
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bizdesk_operation_duration_seconds",
			Help:    "Latency of service operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		totals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bizdesk_operation_total",
			Help: "Service operations by outcome.",
		}, []string{"operation", "status"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{rec.durations, rec.totals} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return rec, nil
}

// Observe records a service operation outcome.
func (r *PrometheusRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	status := "error"
	if success {
		status = "success"
	}
	r.durations.WithLabelValues(operation).Observe(duration.Seconds())
	r.totals.WithLabelValues(operation, status).Inc()
}
