package metrics

import (
	"math"
	"sync"
	"testing"
	"time"
)

func TestLatencyHistogramEmpty(t *testing.T) {
	h := NewLatencyHistogram(time.Millisecond, HandshakeBounds)
	s := h.Summary()

	if s.Count != 0 || s.Mean != 0 || s.P99 != 0 {
		t.Errorf("empty histogram should summarise to zero, got %+v", s)
	}
	if s.Unit != "ms" {
		t.Errorf("expected unit ms, got %q", s.Unit)
	}
	if len(s.Buckets) != len(HandshakeBounds)+1 {
		t.Fatalf("expected %d buckets, got %d", len(HandshakeBounds)+1, len(s.Buckets))
	}
	if !math.IsInf(s.Buckets[len(s.Buckets)-1].LE, 1) {
		t.Error("last bucket should be +Inf")
	}
}

func TestLatencyHistogramHandshakes(t *testing.T) {
	h := NewLatencyHistogram(time.Millisecond, HandshakeBounds)

	// A call over a local relay, then one over a slow link.
	h.Observe(40 * time.Millisecond)
	h.Observe(60 * time.Millisecond)
	h.Observe(3 * time.Second)

	s := h.Summary()
	if s.Count != 3 {
		t.Fatalf("expected 3 observations, got %d", s.Count)
	}
	if s.Min != 40 || s.Max != 3000 {
		t.Errorf("expected min/max 40/3000, got %v/%v", s.Min, s.Max)
	}
	if s.Sum != 3100 {
		t.Errorf("expected sum 3100, got %v", s.Sum)
	}

	cumulative := map[float64]uint64{25: 0, 50: 1, 100: 2, 2500: 2, 5000: 3}
	for _, b := range s.Buckets {
		if want, ok := cumulative[b.LE]; ok && b.Count != want {
			t.Errorf("bucket le=%v: expected %d, got %d", b.LE, want, b.Count)
		}
	}

	if s.P50 < 50 || s.P50 > 100 {
		t.Errorf("P50 should fall in the 50-100ms bucket, got %v", s.P50)
	}
	if s.P99 > s.Max || s.P99 < 2500 {
		t.Errorf("P99 should fall between 2500ms and max, got %v", s.P99)
	}
}

func TestLatencyHistogramFrameResolution(t *testing.T) {
	h := NewLatencyHistogram(time.Microsecond, FrameBounds)

	// Sub-microsecond precision survives for fast audio frames.
	h.Observe(1500 * time.Nanosecond)
	h.Observe(2500 * time.Nanosecond)

	s := h.Summary()
	if s.Unit != "us" {
		t.Errorf("expected unit us, got %q", s.Unit)
	}
	if s.Mean != 2 {
		t.Errorf("expected mean 2us, got %v", s.Mean)
	}
	if s.Min != 1.5 || s.Max != 2.5 {
		t.Errorf("expected min/max 1.5/2.5, got %v/%v", s.Min, s.Max)
	}
}

func TestLatencyHistogramQuantilesClamped(t *testing.T) {
	h := NewLatencyHistogram(time.Microsecond, FrameBounds)
	for i := 0; i < 100; i++ {
		h.Observe(30 * time.Microsecond)
	}

	// Every sample is 30us, so no quantile may leave [30, 30] even
	// though the bucket spans 20-50us.
	s := h.Summary()
	for name, v := range map[string]float64{"P50": s.P50, "P95": s.P95, "P99": s.P99} {
		if v != 30 {
			t.Errorf("%s: expected 30, got %v", name, v)
		}
	}
}

func TestLatencyHistogramOverflow(t *testing.T) {
	h := NewLatencyHistogram(time.Microsecond, FrameBounds)
	h.Observe(10 * time.Millisecond)

	s := h.Summary()
	last := s.Buckets[len(s.Buckets)-1]
	if last.Count != 1 {
		t.Errorf("expected overflow in +Inf bucket, got %d", last.Count)
	}
	if s.Buckets[len(s.Buckets)-2].Count != 0 {
		t.Error("largest finite bucket should be empty")
	}
	if s.P99 != 10000 {
		t.Errorf("expected P99 of 10000us, got %v", s.P99)
	}
}

func TestLatencyHistogramBoundInclusive(t *testing.T) {
	h := NewLatencyHistogram(time.Millisecond, []float64{100, 50, 100})
	h.Observe(100 * time.Millisecond)
	h.Observe(-time.Millisecond)

	s := h.Summary()
	if len(s.Buckets) != 3 {
		t.Fatalf("duplicate bounds should collapse, got %d buckets", len(s.Buckets))
	}
	if s.Buckets[0].LE != 50 || s.Buckets[0].Count != 1 {
		t.Errorf("negative duration should count as zero, got %+v", s.Buckets[0])
	}
	if s.Buckets[1].LE != 100 || s.Buckets[1].Count != 2 {
		t.Errorf("value equal to a bound belongs to that bucket, got %+v", s.Buckets[1])
	}
}

func TestLatencyHistogramReset(t *testing.T) {
	h := NewLatencyHistogram(time.Millisecond, HandshakeBounds)
	h.Observe(time.Second)
	h.Reset()

	s := h.Summary()
	if s.Count != 0 || s.Max != 0 {
		t.Errorf("expected empty summary after reset, got %+v", s)
	}
	for _, b := range s.Buckets {
		if b.Count != 0 {
			t.Fatalf("bucket le=%v not cleared", b.LE)
		}
	}

	h.Observe(20 * time.Millisecond)
	if s := h.Summary(); s.Min != 20 {
		t.Errorf("min after reset should track new samples, got %v", s.Min)
	}
}

func TestLatencyHistogramConcurrentFrames(t *testing.T) {
	h := NewLatencyHistogram(time.Microsecond, FrameBounds)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				h.Observe(time.Duration(i) * time.Microsecond)
			}
		}()
	}
	wg.Wait()

	if s := h.Summary(); s.Count != 4000 {
		t.Errorf("expected 4000 observations, got %d", s.Count)
	}
}
