package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "video2comic_jobs_total",
		Help: "Total number of jobs finished, by terminal status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "video2comic_stage_duration_seconds",
		Help:    "Time spent in each pipeline stage",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	SegmentsSelectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "video2comic_segments_selected_total",
		Help: "Total number of scene segments selected across all jobs",
	})

	FramesSkippedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "video2comic_frames_skipped_total",
		Help: "Total number of probe frames that failed to decode",
	})

	StylizeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "video2comic_stylize_failures_total",
		Help: "Total number of segments whose stylization failed or timed out",
	})

	DegradedPanelsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "video2comic_degraded_panels_total",
		Help: "Total number of panels rendered as placeholders",
	})

	LowConfidenceBubblesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "video2comic_low_confidence_bubbles_total",
		Help: "Total number of bubbles placed over the salient region",
	})

	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "video2comic_active_jobs",
		Help: "Number of jobs currently in the pipeline",
	})
)
