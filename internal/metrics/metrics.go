package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesCapturedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "annotator_frames_captured_total",
		Help: "Total number of frames captured into the frame cache",
	})

	SeeksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "annotator_seeks_total",
		Help: "Seeks issued to the media resource, by queue",
	}, []string{"queue"})

	DuplicateLandingsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "annotator_duplicate_landings_total",
		Help: "Seeks that landed on an already cached frame",
	})

	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "annotator_extraction_queue_depth",
		Help: "Pending frame indices per extraction queue",
	}, []string{"queue"})

	CaptureDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "annotator_seek_capture_duration_seconds",
		Help:    "Duration of one seek plus capture",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
	})

	DecodeErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "annotator_decode_errors_total",
		Help: "Fatal decode errors reported by the media resource",
	})

	SessionImportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "annotator_session_imports_total",
		Help: "Session document imports, by result",
	}, []string{"result"})

	SessionSavesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "annotator_session_saves_total",
		Help: "Session document saves, by sink and result",
	}, []string{"sink", "result"})
)
