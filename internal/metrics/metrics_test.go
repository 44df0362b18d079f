package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestLatencyHistogramSnapshot(t *testing.T) {
	h := NewLatencyHistogram("test_latency_ns", "test", prometheus.ExponentialBuckets(1000, 2, 10))

	h.Observe(10 * time.Microsecond)
	h.Observe(50 * time.Microsecond)
	h.Observe(5 * time.Microsecond)

	count, avg, min, max := h.Snapshot()
	if count != 3 {
		t.Fatalf("expected count 3, got %d", count)
	}
	if min != uint64(5*time.Microsecond) {
		t.Errorf("expected min 5us, got %dns", min)
	}
	if max != uint64(50*time.Microsecond) {
		t.Errorf("expected max 50us, got %dns", max)
	}
	if avg == 0 {
		t.Errorf("expected nonzero avg")
	}
}

func TestCounter(t *testing.T) {
	c := NewCounter("test_counter", "test")
	c.Inc()
	c.Add(4)

	if got := c.Load(); got != 5 {
		t.Errorf("expected 5, got %d", got)
	}
}

func TestRegistryRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)

	h := NewLatencyHistogram("reg_latency_ns", "test", prometheus.DefBuckets)
	c := NewCounter("reg_counter", "test")

	r.MustRegisterHistogram(h)
	r.MustRegisterCounter(c)
}
