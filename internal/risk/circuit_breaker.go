package risk

import (
	"sync/atomic"
	"time"
)

// CircuitBreaker is the pre-trade engine's all-or-nothing trading
// gate: a single atomic boolean (spec §4.5 "A single atomic boolean;
// once tripped, all pre-trade decisions return
// REJECTED_CIRCUIT_BREAKER regardless of other rules"). Grounded on
// the teacher's internal/risk/circuit_breaker.go CircuitBreakerSystem
// shape, deliberately collapsed from its open/half-open/closed state
// machine to this stricter invariant — that richer state machine is
// reused instead for the feed-session transport breaker
// (internal/feed/breaker.go, via sony/gobreaker), which has no such
// invariant.
type CircuitBreaker struct {
	tripped uint32
	reason  atomic.Value // string
	since   atomic.Int64 // unix nanos
}

// NewCircuitBreaker returns an untripped breaker.
func NewCircuitBreaker() *CircuitBreaker {
	cb := &CircuitBreaker{}
	cb.reason.Store("")
	return cb
}

// Trip sets the breaker, idempotently (spec §5 "Circuit-breaker trip
// is idempotent and atomic").
func (cb *CircuitBreaker) Trip(reason string) {
	if atomic.CompareAndSwapUint32(&cb.tripped, 0, 1) {
		cb.reason.Store(reason)
		cb.since.Store(time.Now().UnixNano())
	}
}

// Reset clears the breaker. This is an explicit operation (spec
// §4.5 "Reset is an explicit operation").
func (cb *CircuitBreaker) Reset() {
	atomic.StoreUint32(&cb.tripped, 0)
	cb.reason.Store("")
}

// Tripped reports whether the breaker is currently set.
func (cb *CircuitBreaker) Tripped() bool {
	return atomic.LoadUint32(&cb.tripped) == 1
}

// Reason returns the reason passed to the most recent Trip call.
func (cb *CircuitBreaker) Reason() string {
	if s, ok := cb.reason.Load().(string); ok {
		return s
	}
	return ""
}
