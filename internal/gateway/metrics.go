package gateway

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// callDuration measures model round trips by provider and status.
	callDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lineage",
			Subsystem: "gateway",
			Name:      "call_duration_seconds",
			Help:      "Duration of model calls in seconds.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 180, 600},
		},
		[]string{"provider", "status"},
	)

	callsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lineage",
			Subsystem: "gateway",
			Name:      "calls_total",
			Help:      "Total number of model calls.",
		},
		[]string{"provider", "status"},
	)

	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lineage",
			Subsystem: "gateway",
			Name:      "errors_total",
			Help:      "Model call errors by type.",
		},
		[]string{"provider", "error_type"},
	)
)

// classifyError buckets err for the errors_total metric.
func classifyError(err error) string {
	var httpErr *HTTPError
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "timeout"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.Is(err, ErrEmptyResponse):
		return "empty"
	case errors.As(err, &httpErr):
		switch {
		case httpErr.StatusCode == 429:
			return "rate_limit"
		case httpErr.StatusCode >= 500:
			return "server"
		default:
			return "client"
		}
	default:
		var taskErr *TaskError
		if errors.As(err, &taskErr) {
			return "task"
		}
		return "unknown"
	}
}

func recordCall(provider string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		errorsTotal.WithLabelValues(provider, classifyError(err)).Inc()
	}
	callDuration.WithLabelValues(provider, status).Observe(d.Seconds())
	callsTotal.WithLabelValues(provider, status).Inc()
}
