package feed

import (
	"context"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// ConnectionLimiter is the connect-attempt limiter of spec §4.1/§4.2
// (default 10 attempts/minute), rejecting connect requests above
// threshold. It counts in fixed windows, not a sliding window:
// ulule/limiter's memory store starts a window at the first attempt
// and resets the count once that window expires. Grounded on
// internal/api/middleware/security.go, the one place in the teacher's
// tree that imports ulule/limiter/v3.
type ConnectionLimiter struct {
	limiter *limiter.Limiter
	key     string
}

// NewConnectionLimiter creates a limiter allowing up to maxAttempts
// connect requests per window.
func NewConnectionLimiter(maxAttempts int64, window time.Duration) *ConnectionLimiter {
	rate := limiter.Rate{Period: window, Limit: maxAttempts}
	store := memory.NewStore()
	return &ConnectionLimiter{
		limiter: limiter.New(store, rate),
		key:     "feed-connect",
	}
}

// Allow reports whether another connect attempt is permitted within
// the current window.
func (c *ConnectionLimiter) Allow() bool {
	ctx, err := c.limiter.Get(context.Background(), c.key)
	if err != nil {
		return true // fail open: a limiter-store error must not block trading
	}
	return !ctx.Reached
}
