package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// Bucket bounds for the collector's latency histograms.
var (
	// HandshakeBounds covers key agreement over a relay, in milliseconds.
	// ML-KEM-1024 keys and ciphertexts make the messages large, so a slow
	// relay hop dominates.
	HandshakeBounds = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

	// FrameBounds covers one frame transform, in microseconds. Audio frames
	// land in the low buckets, large video keyframes in the upper ones.
	FrameBounds = []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 5000}
)

// LatencyHistogram records durations in fixed buckets measured in a single
// unit, such as milliseconds for handshakes or microseconds for frames.
// It is safe for concurrent use.
type LatencyHistogram struct {
	unit   time.Duration
	bounds []float64

	mu     sync.Mutex
	counts []uint64 // per bucket, last entry is the +Inf bucket
	count  uint64
	sum    float64
	min    float64
	max    float64
}

// NewLatencyHistogram creates a histogram whose bucket bounds are expressed
// in unit. Bounds are sorted and deduplicated.
func NewLatencyHistogram(unit time.Duration, bounds []float64) *LatencyHistogram {
	if unit <= 0 {
		unit = time.Millisecond
	}
	b := append([]float64(nil), bounds...)
	sort.Float64s(b)
	b = compactBounds(b)

	return &LatencyHistogram{
		unit:   unit,
		bounds: b,
		counts: make([]uint64, len(b)+1),
	}
}

func compactBounds(b []float64) []float64 {
	out := b[:0]
	for i, v := range b {
		if i > 0 && v == b[i-1] {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Observe records one duration. Negative durations count as zero.
func (h *LatencyHistogram) Observe(d time.Duration) {
	if d < 0 {
		d = 0
	}
	v := float64(d) / float64(h.unit)
	// Bucket upper bounds are inclusive, matching Prometheus "le".
	idx := sort.Search(len(h.bounds), func(i int) bool { return h.bounds[i] >= v })

	h.mu.Lock()
	defer h.mu.Unlock()

	h.counts[idx]++
	if h.count == 0 || v < h.min {
		h.min = v
	}
	if h.count == 0 || v > h.max {
		h.max = v
	}
	h.count++
	h.sum += v
}

// LatencyBucket is one cumulative bucket of a LatencySummary.
type LatencyBucket struct {
	LE    float64 `json:"le"`
	Count uint64  `json:"count"`
}

// LatencySummary is a point-in-time view of a LatencyHistogram. All values
// are in Unit.
type LatencySummary struct {
	Unit    string          `json:"unit"`
	Count   uint64          `json:"count"`
	Sum     float64         `json:"sum"`
	Min     float64         `json:"min"`
	Max     float64         `json:"max"`
	Mean    float64         `json:"mean"`
	P50     float64         `json:"p50"`
	P95     float64         `json:"p95"`
	P99     float64         `json:"p99"`
	Buckets []LatencyBucket `json:"buckets"`
}

// Summary returns cumulative buckets and estimated quantiles.
func (h *LatencyHistogram) Summary() LatencySummary {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := LatencySummary{
		Unit:    unitName(h.unit),
		Count:   h.count,
		Sum:     h.sum,
		Buckets: make([]LatencyBucket, 0, len(h.counts)),
	}

	var cumulative uint64
	for i, c := range h.counts {
		cumulative += c
		le := math.Inf(1)
		if i < len(h.bounds) {
			le = h.bounds[i]
		}
		s.Buckets = append(s.Buckets, LatencyBucket{LE: le, Count: cumulative})
	}

	if h.count == 0 {
		return s
	}
	s.Min = h.min
	s.Max = h.max
	s.Mean = h.sum / float64(h.count)
	s.P50 = h.quantile(0.50)
	s.P95 = h.quantile(0.95)
	s.P99 = h.quantile(0.99)
	return s
}

// quantile interpolates linearly inside the bucket holding rank q. The
// result is clamped to the observed range so a single fast frame never
// reports a quantile above its own latency. h.mu must be held.
func (h *LatencyHistogram) quantile(q float64) float64 {
	rank := q * float64(h.count)
	var cumulative uint64
	for i, c := range h.counts {
		if c == 0 {
			continue
		}
		prev := cumulative
		cumulative += c
		if float64(cumulative) < rank {
			continue
		}

		lower := h.min
		if i > 0 {
			lower = math.Max(lower, h.bounds[i-1])
		}
		upper := h.max
		if i < len(h.bounds) {
			upper = math.Min(upper, h.bounds[i])
		}
		v := lower + (upper-lower)*(rank-float64(prev))/float64(c)
		return math.Min(math.Max(v, h.min), h.max)
	}
	return h.max
}

// Reset discards all observations.
func (h *LatencyHistogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	clear(h.counts)
	h.count = 0
	h.sum = 0
	h.min = 0
	h.max = 0
}

func unitName(unit time.Duration) string {
	switch unit {
	case time.Nanosecond:
		return "ns"
	case time.Microsecond:
		return "us"
	case time.Millisecond:
		return "ms"
	case time.Second:
		return "s"
	default:
		return unit.String()
	}
}
