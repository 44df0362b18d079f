package risk

import "testing"

func TestCircuitBreakerTripIsIdempotent(t *testing.T) {
	cb := NewCircuitBreaker()
	cb.Trip("first reason")
	cb.Trip("second reason")

	if !cb.Tripped() {
		t.Fatalf("breaker should be tripped")
	}
	if cb.Reason() != "first reason" {
		t.Fatalf("reason = %q, want the first trip's reason to stick", cb.Reason())
	}
}

func TestCircuitBreakerResetClearsReason(t *testing.T) {
	cb := NewCircuitBreaker()
	cb.Trip("daily loss")
	cb.Reset()

	if cb.Tripped() {
		t.Fatalf("breaker should not be tripped after Reset")
	}
	if cb.Reason() != "" {
		t.Fatalf("reason should be cleared after Reset, got %q", cb.Reason())
	}
}

func TestCircuitBreakerStartsUntripped(t *testing.T) {
	cb := NewCircuitBreaker()
	if cb.Tripped() {
		t.Fatalf("a fresh breaker should not be tripped")
	}
}
