// Package metrics provides the histogram and counter primitives named
// by spec §2 as the "Latency/metrics core" component. It wires
// prometheus's collector types directly; HTTP exposition of those
// collectors (the health/metrics endpoint) is an external collaborator
// per spec §1/§6 and is not implemented here.
package metrics

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LatencyHistogram records hot-path latency samples in nanoseconds. It
// wraps a prometheus.Histogram for distribution reporting and keeps a
// running min/max/avg in plain atomics, since reading those back out
// on every tick (book update, risk check) must not take a lock.
type LatencyHistogram struct {
	hist prometheus.Histogram

	count   uint64
	sumNs   uint64
	minNs   uint64
	maxNs   uint64
}

// NewLatencyHistogram creates a histogram named name/help with the
// given bucket boundaries (nanoseconds); it is not registered until
// passed to Registry.MustRegisterHistogram. Callers typically
// use prometheus.ExponentialBuckets(1000, 2, 20) for sub-millisecond
// to multi-second coverage.
func NewLatencyHistogram(name, help string, buckets []float64) *LatencyHistogram {
	return &LatencyHistogram{
		hist: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    name,
			Help:    help,
			Buckets: buckets,
		}),
		minNs: ^uint64(0),
	}
}

// Collector exposes the underlying prometheus.Histogram so it can be
// registered with a prometheus.Registerer by the caller that owns the
// process-wide registry.
func (h *LatencyHistogram) Collector() prometheus.Histogram {
	return h.hist
}

// Observe records one latency sample.
func (h *LatencyHistogram) Observe(d time.Duration) {
	ns := uint64(d.Nanoseconds())
	h.hist.Observe(float64(ns))

	atomic.AddUint64(&h.count, 1)
	atomic.AddUint64(&h.sumNs, ns)

	for {
		cur := atomic.LoadUint64(&h.maxNs)
		if ns <= cur || atomic.CompareAndSwapUint64(&h.maxNs, cur, ns) {
			break
		}
	}
	for {
		cur := atomic.LoadUint64(&h.minNs)
		if ns >= cur || atomic.CompareAndSwapUint64(&h.minNs, cur, ns) {
			break
		}
	}
}

// Snapshot returns the running count/avg/min/max without blocking any
// writer.
func (h *LatencyHistogram) Snapshot() (count uint64, avgNs, minNs, maxNs uint64) {
	count = atomic.LoadUint64(&h.count)
	sum := atomic.LoadUint64(&h.sumNs)
	minNs = atomic.LoadUint64(&h.minNs)
	maxNs = atomic.LoadUint64(&h.maxNs)
	if count == 0 {
		return 0, 0, 0, 0
	}
	avgNs = sum / count
	return
}

// Counter is a monotonically increasing count of events (messages
// processed, parse errors, trades executed, …), backed by a
// prometheus.Counter plus a plain atomic for lock-free hot-path reads.
type Counter struct {
	c     prometheus.Counter
	value uint64
}

// NewCounter creates a counter named name/help; it is not registered
// until passed to Registry.MustRegisterCounter.
func NewCounter(name, help string) *Counter {
	return &Counter{
		c: prometheus.NewCounter(prometheus.CounterOpts{Name: name, Help: help}),
	}
}

// Collector exposes the underlying prometheus.Counter for registration.
func (c *Counter) Collector() prometheus.Counter {
	return c.c
}

// Inc increments the counter by one.
func (c *Counter) Inc() {
	c.c.Inc()
	atomic.AddUint64(&c.value, 1)
}

// Add increments the counter by delta.
func (c *Counter) Add(delta uint64) {
	c.c.Add(float64(delta))
	atomic.AddUint64(&c.value, delta)
}

// Load returns the current count without touching the prometheus
// collector (which is not guaranteed lock-free across collectors).
func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

// Registry groups the counters/histograms a single component owns so
// they can be registered with a prometheus.Registerer in one call.
type Registry struct {
	reg prometheus.Registerer
}

// NewRegistry wraps reg (e.g. prometheus.DefaultRegisterer, or a
// dedicated prometheus.NewRegistry() for tests).
func NewRegistry(reg prometheus.Registerer) *Registry {
	return &Registry{reg: reg}
}

// MustRegisterHistogram registers h's collector, panicking on a
// duplicate registration (mirrors prometheus.MustRegister's contract).
func (r *Registry) MustRegisterHistogram(h *LatencyHistogram) {
	r.reg.MustRegister(h.Collector())
}

// MustRegisterCounter registers c's collector.
func (r *Registry) MustRegisterCounter(c *Counter) {
	r.reg.MustRegister(c.Collector())
}
