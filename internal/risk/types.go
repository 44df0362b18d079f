// Package risk implements the pre-trade risk engine and post-trade
// monitor of spec §4.5: an ordered rule pipeline with a fast path, a
// circuit breaker, VaR estimation, and a violation buffer with aging.
package risk

import "time"

// Outcome is the pre-trade decision taxonomy (spec §4.5).
type Outcome string

const (
	Approved                 Outcome = "APPROVED"
	RejectedPositionLimit    Outcome = "REJECTED_POSITION_LIMIT"
	RejectedOrderSize        Outcome = "REJECTED_ORDER_SIZE"
	RejectedPriceLimit       Outcome = "REJECTED_PRICE_LIMIT"
	RejectedExposureLimit    Outcome = "REJECTED_EXPOSURE_LIMIT"
	RejectedVaRLimit         Outcome = "REJECTED_VAR_LIMIT"
	// RejectedRateLimit is not itemized in spec §4.5's outcome
	// taxonomy list (rule 6, "Rate", has no corresponding enum value
	// there), so it is added here rather than overloading
	// RejectedOrderSize — see DESIGN.md's Open Question decisions.
	RejectedRateLimit        Outcome = "REJECTED_RATE_LIMIT"
	RejectedVolatility       Outcome = "REJECTED_VOLATILITY"
	RejectedCorrelation      Outcome = "REJECTED_CORRELATION"
	RejectedCircuitBreaker   Outcome = "REJECTED_CIRCUIT_BREAKER"
	RejectedBlacklist        Outcome = "REJECTED_BLACKLIST"
	RejectedSystemError      Outcome = "REJECTED_SYSTEM_ERROR"
)

// Severity is a violation's severity level (spec §3).
type Severity string

const (
	SeverityInfo      Severity = "INFO"
	SeverityWarning   Severity = "WARNING"
	SeverityCritical  Severity = "CRITICAL"
	SeverityEmergency Severity = "EMERGENCY"
)

// Side is the candidate order's buy/sell side.
type Side int

const (
	SideBuy Side = 1
	SideSell Side = -1
)

// Order is the candidate order a strategy wants to place.
type Order struct {
	SymbolID   uint32
	StrategyID string
	Side       Side
	Price      float64
	Quantity   float64
}

// Value returns the order's notional value (price * quantity).
func (o Order) Value() float64 { return o.Price * o.Quantity }

// SignedQuantity returns the order's quantity signed by side.
func (o Order) SignedQuantity() float64 { return float64(o.Side) * o.Quantity }

// PreTradeContext bundles the portfolio/market state a full pre-trade
// decision needs (spec §4.5).
type PreTradeContext struct {
	Order Order

	CurrentPosition    float64
	MarketPrice        float64
	EstFillPrice       float64
	PortfolioExposure  float64
	StrategyExposure   float64
	CorrelatedPositions map[string]float64 // symbol -> position, for correlation checks

	FairValue float64 // reference price for price-deviation check; defaults to MarketPrice if zero
}

// Violation is a risk-rule breach record (spec §3).
type Violation struct {
	Type        Outcome
	Severity    Severity
	Description string
	StrategyID  string
	SymbolID    uint32
	CurrentValue float64
	LimitValue   float64
	Timestamp    time.Time
}

// Decision is the result of a pre-trade check.
type Decision struct {
	Outcome   Outcome
	Violation *Violation // set iff Outcome != Approved
}
