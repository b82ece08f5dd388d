package metrics

import "time"

// CompressionMetrics records the compression negotiator's traffic, kept as
// an interface so callers can pass nil for zero overhead when metrics are
// disabled.
type CompressionMetrics interface {
	ObserveCompressed(algorithm string, preBytes, postBytes int, duration time.Duration)
	ObserveDecompressed(algorithm string, preBytes, postBytes int, duration time.Duration)
	ObserveSentUncompressed(bytes int)
}

// newPrometheusCompressionMetrics is registered by
// pkg/metrics/prometheus/compression.go during its init, avoiding an
// import cycle between metrics and its prometheus-backed implementation.
var newPrometheusCompressionMetrics func() CompressionMetrics

// RegisterCompressionMetricsConstructor installs the Prometheus
// compression metrics constructor.
func RegisterCompressionMetricsConstructor(constructor func() CompressionMetrics) {
	newPrometheusCompressionMetrics = constructor
}

// NewCompressionMetrics returns a Prometheus-backed CompressionMetrics, or
// nil if InitRegistry has not been called.
func NewCompressionMetrics() CompressionMetrics {
	if !IsEnabled() || newPrometheusCompressionMetrics == nil {
		return nil
	}
	return newPrometheusCompressionMetrics()
}

// ObserveCompressed records a compressed outbound frame, tolerating a nil
// metrics sink.
func ObserveCompressed(m CompressionMetrics, algorithm string, preBytes, postBytes int, duration time.Duration) {
	if m != nil {
		m.ObserveCompressed(algorithm, preBytes, postBytes, duration)
	}
}

// ObserveDecompressed records a decompressed inbound frame.
func ObserveDecompressed(m CompressionMetrics, algorithm string, preBytes, postBytes int, duration time.Duration) {
	if m != nil {
		m.ObserveDecompressed(algorithm, preBytes, postBytes, duration)
	}
}

// ObserveSentUncompressed records a frame sent below the compression
// threshold.
func ObserveSentUncompressed(m CompressionMetrics, bytes int) {
	if m != nil {
		m.ObserveSentUncompressed(bytes)
	}
}
