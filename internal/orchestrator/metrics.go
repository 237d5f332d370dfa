package orchestrator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "lineage",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Duration of pipeline stages in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		},
		[]string{"stage", "status"},
	)

	analysesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "lineage",
			Subsystem: "pipeline",
			Name:      "analyses_total",
			Help:      "Completed analyses by mode and diagram outcome.",
		},
		[]string{"mode", "diagram"},
	)
)

func observeStage(stage Stage, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	stageDuration.WithLabelValues(stage.String(), status).Observe(d.Seconds())
}

func countAnalysis(r *Report) {
	mode := "model"
	if r.Offline {
		mode = "offline"
	}
	outcome := "ok"
	if r.DiagramErr != nil {
		outcome = "missing"
	}
	analysesTotal.WithLabelValues(mode, outcome).Inc()
}
