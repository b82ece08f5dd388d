package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"spacetimedb.com/client/pkg/metrics"
)

// compressionMetrics is the Prometheus implementation of
// metrics.CompressionMetrics.
type compressionMetrics struct {
	framesCompressed   *prometheus.CounterVec
	framesDecompressed *prometheus.CounterVec
	framesUncompressed prometheus.Counter
	bytesPre           *prometheus.CounterVec
	bytesPost          *prometheus.CounterVec
	duration           *prometheus.HistogramVec
}

func newCompressionMetrics() metrics.CompressionMetrics {
	reg := metrics.GetRegistry()
	return &compressionMetrics{
		framesCompressed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "spacetimedb_client_frames_compressed_total",
				Help: "Total outbound frames compressed, by algorithm.",
			},
			[]string{"algorithm"},
		),
		framesDecompressed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "spacetimedb_client_frames_decompressed_total",
				Help: "Total inbound frames decompressed, by algorithm.",
			},
			[]string{"algorithm"},
		),
		framesUncompressed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "spacetimedb_client_frames_sent_uncompressed_total",
				Help: "Total outbound frames sent below the compression threshold.",
			},
		),
		bytesPre: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "spacetimedb_client_compression_bytes_pre_total",
				Help: "Cumulative bytes before compression/after decompression, by algorithm and direction.",
			},
			[]string{"algorithm", "direction"},
		),
		bytesPost: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "spacetimedb_client_compression_bytes_post_total",
				Help: "Cumulative bytes after compression/before decompression, by algorithm and direction.",
			},
			[]string{"algorithm", "direction"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spacetimedb_client_compression_duration_seconds",
				Help:    "Time spent compressing or decompressing a frame.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"algorithm", "direction"},
		),
	}
}

func (m *compressionMetrics) ObserveCompressed(algorithm string, preBytes, postBytes int, duration time.Duration) {
	m.framesCompressed.WithLabelValues(algorithm).Inc()
	m.bytesPre.WithLabelValues(algorithm, "out").Add(float64(preBytes))
	m.bytesPost.WithLabelValues(algorithm, "out").Add(float64(postBytes))
	m.duration.WithLabelValues(algorithm, "out").Observe(duration.Seconds())
}

func (m *compressionMetrics) ObserveDecompressed(algorithm string, preBytes, postBytes int, duration time.Duration) {
	m.framesDecompressed.WithLabelValues(algorithm).Inc()
	m.bytesPre.WithLabelValues(algorithm, "in").Add(float64(preBytes))
	m.bytesPost.WithLabelValues(algorithm, "in").Add(float64(postBytes))
	m.duration.WithLabelValues(algorithm, "in").Observe(duration.Seconds())
}

func (m *compressionMetrics) ObserveSentUncompressed(bytes int) {
	m.framesUncompressed.Inc()
}

func init() {
	metrics.RegisterCompressionMetricsConstructor(newCompressionMetrics)
}
