package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BatchesApplied = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emotion",
		Name:      "batches_applied_total",
		Help:      "Total number of emotion batches applied",
	}, []string{"device_id"})

	PersonUpserts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emotion",
		Name:      "person_upserts_total",
		Help:      "Per-person upserts by operation (insert, update)",
	}, []string{"op"})

	TimestampFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "emotion",
		Name:      "timestamp_fallbacks_total",
		Help:      "Batches whose timestamp could not be parsed and was replaced by the current time",
	})

	SummaryCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emotion",
		Name:      "summary_cache_lookups_total",
		Help:      "Dashboard summary cache lookups by result (hit, miss)",
	}, []string{"result"})

	FramesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emotion",
		Name:      "frames_published_total",
		Help:      "Total number of frames written to the latest-frame register",
	}, []string{"device_id"})

	FramesSuperseded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emotion",
		Name:      "frames_superseded_total",
		Help:      "Frames overwritten before any subscriber tick observed them",
	}, []string{"device_id"})

	FramesRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "emotion",
		Name:      "frames_rejected_total",
		Help:      "Frame payloads rejected because they were not valid base64",
	})

	StreamSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "emotion",
		Name:      "stream_subscribers",
		Help:      "Number of active MJPEG stream subscribers",
	})

	IngestErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "emotion",
		Name:      "ingest_errors_total",
		Help:      "MQTT ingress payloads that could not be applied",
	}, []string{"kind"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "emotion",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "emotion",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket connections",
	})
)
