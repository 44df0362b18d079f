package feed

import (
	"time"

	"github.com/sony/gobreaker"
)

// Breaker wraps each reconnect/send attempt in a gobreaker circuit
// breaker; one Breaker is shared by a Session's reconnect loop and Send. This is a transport-level breaker, distinct from the risk
// engine's trading circuit breaker (internal/risk/circuit_breaker.go),
// which is a single atomic bool per spec §4.5's stricter invariant.
// Grounded on internal/architecture/fx/resilience/circuit_breaker.go's
// CircuitBreakerFactory/DefaultSettings shape.
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker creates a named transport breaker with the teacher's
// default trip settings: open after >=10 requests with a >=50%
// failure ratio, half-open retry after 60s.
func NewBreaker(name string) *Breaker {
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 10 && failureRatio >= 0.5
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn through the breaker, short-circuiting with
// gobreaker.ErrOpenState while tripped.
func (b *Breaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return b.cb.Execute(fn)
}

// State returns the breaker's current state for diagnostics.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}
