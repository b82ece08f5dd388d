// Package compression negotiates and applies frame-level compression,
// grounded on the client's advertise/select handshake and threshold policy.
package compression

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"time"

	"github.com/andybalholm/brotli"

	"spacetimedb.com/client/pkg/metrics"
)

// Algorithm identifies a frame compression scheme.
type Algorithm byte

const (
	None   Algorithm = 0
	Brotli Algorithm = 1
	Gzip   Algorithm = 2
)

func (a Algorithm) String() string {
	switch a {
	case Brotli:
		return "brotli"
	case Gzip:
		return "gzip"
	default:
		return "none"
	}
}

// Level controls the compressor's speed/ratio tradeoff.
type Level string

const (
	LevelFast    Level = "fast"
	LevelDefault Level = "default"
	LevelBest    Level = "best"
)

// Codec compresses and decompresses whole frames for one algorithm.
type Codec interface {
	Algorithm() Algorithm
	Compress(level Level, data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

type brotliCodec struct{}

func (brotliCodec) Algorithm() Algorithm { return Brotli }

func (brotliCodec) Compress(level Level, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterLevel(&buf, brotliQuality(level))
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compression: brotli write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compression: brotli close: %w", err)
	}
	return buf.Bytes(), nil
}

func (brotliCodec) Decompress(data []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(data))
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("compression: brotli read: %w", err)
	}
	return out, nil
}

func brotliQuality(level Level) int {
	switch level {
	case LevelFast:
		return 2
	case LevelBest:
		return 11
	default:
		return 6
	}
}

type gzipCodec struct{}

func (gzipCodec) Algorithm() Algorithm { return Gzip }

func (gzipCodec) Compress(level Level, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, gzipLevel(level))
	if err != nil {
		return nil, fmt.Errorf("compression: gzip writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("compression: gzip write: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compression: gzip close: %w", err)
	}
	return buf.Bytes(), nil
}

func (gzipCodec) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("compression: gzip reader: %w", err)
	}
	defer r.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("compression: gzip read: %w", err)
	}
	return out, nil
}

func gzipLevel(level Level) int {
	switch level {
	case LevelFast:
		return gzip.BestSpeed
	case LevelBest:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func codecFor(a Algorithm) Codec {
	switch a {
	case Brotli:
		return brotliCodec{}
	case Gzip:
		return gzipCodec{}
	default:
		return nil
	}
}

// Negotiator applies the negotiated algorithm and threshold to outbound
// frames and reverses it on inbound frames.
type Negotiator struct {
	algorithm Algorithm
	threshold int
	level     Level
	metrics   metrics.CompressionMetrics

	MessagesCompressed   uint64
	MessagesDecompressed uint64
	BytesInPre           uint64
	BytesInPost          uint64
	BytesOutPre          uint64
	BytesOutPost         uint64
}

// New creates a Negotiator for an already-negotiated algorithm.
func New(algorithm Algorithm, thresholdBytes int, level Level) *Negotiator {
	return &Negotiator{
		algorithm: algorithm,
		threshold: thresholdBytes,
		level:     level,
		metrics:   metrics.NewCompressionMetrics(),
	}
}

// Negotiate picks the first of the client's offered algorithms, in
// preference order, that also appears in the server's supported set. It
// returns None if there is no overlap.
func Negotiate(clientOffered []Algorithm, serverSupported []Algorithm) Algorithm {
	supported := make(map[Algorithm]bool, len(serverSupported))
	for _, a := range serverSupported {
		supported[a] = true
	}
	for _, a := range clientOffered {
		if supported[a] {
			return a
		}
	}
	return None
}

// Algorithm returns the negotiated algorithm.
func (n *Negotiator) Algorithm() Algorithm { return n.algorithm }

// EncodeOutbound compresses payload iff an algorithm is negotiated and
// payload meets the threshold; otherwise it is returned unmodified and
// wasCompressed is false.
func (n *Negotiator) EncodeOutbound(payload []byte) (out []byte, wasCompressed bool, err error) {
	if n.algorithm == None || len(payload) < n.threshold {
		metrics.ObserveSentUncompressed(n.metrics, len(payload))
		return payload, false, nil
	}
	codec := codecFor(n.algorithm)
	start := time.Now()
	compressed, err := codec.Compress(n.level, payload)
	if err != nil {
		return nil, false, err
	}
	metrics.ObserveCompressed(n.metrics, n.algorithm.String(), len(payload), len(compressed), time.Since(start))
	n.MessagesCompressed++
	n.BytesOutPre += uint64(len(payload))
	n.BytesOutPost += uint64(len(compressed))
	return compressed, true, nil
}

// DecodeInbound decompresses payload using the negotiated algorithm. If no
// algorithm is negotiated, payload is returned unmodified.
func (n *Negotiator) DecodeInbound(payload []byte) ([]byte, error) {
	if n.algorithm == None {
		return payload, nil
	}
	codec := codecFor(n.algorithm)
	start := time.Now()
	decoded, err := codec.Decompress(payload)
	if err != nil {
		return nil, fmt.Errorf("compression: decompress frame: %w", err)
	}
	metrics.ObserveDecompressed(n.metrics, n.algorithm.String(), len(decoded), len(payload), time.Since(start))
	n.MessagesDecompressed++
	n.BytesInPre += uint64(len(decoded))
	n.BytesInPost += uint64(len(payload))
	return decoded, nil
}

// Ratio returns the cumulative compression ratio (post/pre) across all
// outbound frames compressed so far, or 1 if none have been compressed.
func (n *Negotiator) Ratio() float64 {
	if n.BytesOutPre == 0 {
		return 1
	}
	return float64(n.BytesOutPost) / float64(n.BytesOutPre)
}

// SavedBytes returns the cumulative bytes saved by outbound compression.
func (n *Negotiator) SavedBytes() uint64 {
	if n.BytesOutPre < n.BytesOutPost {
		return 0
	}
	return n.BytesOutPre - n.BytesOutPost
}
