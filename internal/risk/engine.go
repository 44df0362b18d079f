package risk

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/goldearn/hft-core/internal/metrics"
)

// Engine is the pre-trade risk gate of spec §4.5: an ordered
// position/size/price/exposure/VaR/rate/blacklist/circuit-breaker
// pipeline with a p99 budget of 10us, plus a fast path for the
// position-context-unavailable case. Grounded on
// internal/risk/risk_calculator.go (ordered check...Limits calls
// returning a result struct) and internal/risk/engine/rule_engine.go,
// restructured to return the first-failing categorized outcome per
// spec §4.5's invariant rather than accumulating a violation list.
type Engine struct {
	limits atomic.Pointer[Limits]

	blacklistedSymbols   sync.Map // uint32 -> struct{}
	blacklistedStrategies sync.Map // string -> struct{}

	breaker     *CircuitBreaker
	rateLimiter *RateLimiter

	onViolation func(Violation)

	checkLatency *metrics.LatencyHistogram

	totalChecks  atomic.Uint64
	approved     atomic.Uint64
	rejected     atomic.Uint64
	lastViolation atomic.Int64 // unix nanos
}

// New creates an Engine with the given starting limits.
func New(limits Limits, onViolation func(Violation)) *Engine {
	e := &Engine{
		breaker:     NewCircuitBreaker(),
		rateLimiter: NewRateLimiter(),
		onViolation: onViolation,
		checkLatency: metrics.NewLatencyHistogram(
			"risk_check_latency_ns",
			"pre-trade decision latency",
			[]float64{250, 500, 1000, 2500, 5000, 10000, 25000, 50000},
		),
	}
	e.limits.Store(&limits)
	return e
}

// SetLimits atomically swaps the engine's active limits (e.g. after a
// config reload).
func (e *Engine) SetLimits(limits Limits) { e.limits.Store(&limits) }

// Limits returns the engine's currently active limits.
func (e *Engine) Limits() Limits { return *e.limits.Load() }

// Blacklist marks symbolID and/or strategyID as blacklisted; pass 0 /
// "" to skip either.
func (e *Engine) Blacklist(symbolID uint32, strategyID string) {
	if symbolID != 0 {
		e.blacklistedSymbols.Store(symbolID, struct{}{})
	}
	if strategyID != "" {
		e.blacklistedStrategies.Store(strategyID, struct{}{})
	}
}

func (e *Engine) symbolBlacklisted(symbolID uint32) bool {
	_, ok := e.blacklistedSymbols.Load(symbolID)
	return ok
}

func (e *Engine) strategyBlacklisted(strategyID string) bool {
	_, ok := e.blacklistedStrategies.Load(strategyID)
	return ok
}

// Breaker exposes the engine's circuit breaker for the post-trade
// monitor to trip/reset.
func (e *Engine) Breaker() *CircuitBreaker { return e.breaker }

// Stats is the spec §4.5 statistics block.
type Stats struct {
	TotalChecksPerformed uint64
	ChecksApproved       uint64
	ChecksRejected       uint64
	AvgCheckLatencyNs    uint64
	MaxCheckLatencyNs    uint64
	ViolationsToday      uint64
	CircuitBreakerTriggers uint64
	LastViolationTime    time.Time
}

// StatsSnapshot returns the engine's running statistics.
func (e *Engine) StatsSnapshot() Stats {
	_, avg, _, max := e.checkLatency.Snapshot()
	var lastViolation time.Time
	if ns := e.lastViolation.Load(); ns != 0 {
		lastViolation = time.Unix(0, ns)
	}
	return Stats{
		TotalChecksPerformed: e.totalChecks.Load(),
		ChecksApproved:       e.approved.Load(),
		ChecksRejected:       e.rejected.Load(),
		AvgCheckLatencyNs:    avg,
		MaxCheckLatencyNs:    max,
		LastViolationTime:    lastViolation,
	}
}

func (e *Engine) reject(ctx PreTradeContext, outcome Outcome, description string, current, limit float64) Decision {
	v := Violation{
		Type:        outcome,
		Severity:    SeverityWarning,
		Description: description,
		StrategyID:  ctx.Order.StrategyID,
		SymbolID:    ctx.Order.SymbolID,
		CurrentValue: current,
		LimitValue:   limit,
		Timestamp:    time.Now(),
	}
	e.rejected.Add(1)
	e.lastViolation.Store(v.Timestamp.UnixNano())
	if e.onViolation != nil {
		e.onViolation(v)
	}
	return Decision{Outcome: outcome, Violation: &v}
}

// CheckOrder runs the full ordered pipeline (spec §4.5, rules 1-8),
// stopping at the first failing rule. It is used for all externally
// originated orders.
func (e *Engine) CheckOrder(ctx PreTradeContext) Decision {
	start := time.Now()
	defer func() {
		e.totalChecks.Add(1)
		e.checkLatency.Observe(time.Since(start))
	}()

	limits := e.Limits()
	o := ctx.Order

	// 1. Position limit.
	newPosition := ctx.CurrentPosition + o.SignedQuantity()
	if abs(newPosition) > limits.MaxPositionSize {
		return e.reject(ctx, RejectedPositionLimit, "position limit exceeded", abs(newPosition), limits.MaxPositionSize)
	}

	// 2. Order size.
	value := o.Value()
	if value > limits.MaxOrderValue || o.Quantity > limits.MaxOrderSize {
		return e.reject(ctx, RejectedOrderSize, "order size/value limit exceeded", value, limits.MaxOrderValue)
	}

	// 3. Price deviation.
	fairValue := ctx.FairValue
	if fairValue == 0 {
		fairValue = ctx.MarketPrice
	}
	if fairValue > 0 {
		deviation := abs(o.Price-fairValue) / fairValue
		if deviation > limits.MaxPriceDeviation {
			return e.reject(ctx, RejectedPriceLimit, "price deviation limit exceeded", deviation, limits.MaxPriceDeviation)
		}
	}

	// 4. Exposure.
	if ctx.PortfolioExposure+value > limits.MaxPortfolioExposure {
		return e.reject(ctx, RejectedExposureLimit, "portfolio exposure limit exceeded", ctx.PortfolioExposure+value, limits.MaxPortfolioExposure)
	}
	if ctx.StrategyExposure+value > limits.MaxStrategyExposure {
		return e.reject(ctx, RejectedExposureLimit, "strategy exposure limit exceeded", ctx.StrategyExposure+value, limits.MaxStrategyExposure)
	}

	// 5. VaR: estimated 1-day VaR after this order, approximated as
	// (existing portfolio exposure + order notional) * MaxVolatility *
	// the 95% z-score, against MaxVaR1Day; the full VaR recompute
	// (var.go) is too expensive for the hot path and runs in the
	// portfolio's mark-to-market worker instead.
	estimatedVaRImpact := (ctx.PortfolioExposure + value) * limits.MaxVolatility * zScore(0.95)
	if estimatedVaRImpact > limits.MaxVaR1Day {
		return e.reject(ctx, RejectedVaRLimit, "estimated VaR impact exceeds limit", estimatedVaRImpact, limits.MaxVaR1Day)
	}

	// 6. Rate.
	if !e.rateLimiter.Allow(o.StrategyID, time.Now(), limits.MaxOrdersPerSecond, limits.MaxOrdersPerMinute) {
		return e.reject(ctx, RejectedRateLimit, "order rate limit exceeded", 0, 0)
	}

	// 7. Blacklist.
	if e.symbolBlacklisted(o.SymbolID) || e.strategyBlacklisted(o.StrategyID) {
		return e.reject(ctx, RejectedBlacklist, "symbol or strategy is blacklisted", 0, 0)
	}

	// 8. Circuit breaker.
	if e.breaker.Tripped() {
		return e.reject(ctx, RejectedCircuitBreaker, "circuit breaker tripped: "+e.breaker.Reason(), 0, 0)
	}

	e.approved.Add(1)
	return Decision{Outcome: Approved}
}

// QuickCheck is the fast path (spec §4.5 "quick_pre_trade_check"):
// only rules 2 (order size), 7 (blacklist), 8 (circuit breaker),
// using lock-free atomic limit reads. It is used when the full
// context is unavailable or the strategy opts for minimum latency.
func (e *Engine) QuickCheck(o Order) Decision {
	start := time.Now()
	defer func() {
		e.totalChecks.Add(1)
		e.checkLatency.Observe(time.Since(start))
	}()

	limits := e.Limits()
	ctx := PreTradeContext{Order: o}

	value := o.Value()
	if value > limits.MaxOrderValue || o.Quantity > limits.MaxOrderSize {
		return e.reject(ctx, RejectedOrderSize, "order size/value limit exceeded (fast path)", value, limits.MaxOrderValue)
	}
	if e.symbolBlacklisted(o.SymbolID) || e.strategyBlacklisted(o.StrategyID) {
		return e.reject(ctx, RejectedBlacklist, "symbol or strategy is blacklisted (fast path)", 0, 0)
	}
	if e.breaker.Tripped() {
		return e.reject(ctx, RejectedCircuitBreaker, "circuit breaker tripped: "+e.breaker.Reason()+" (fast path)", 0, 0)
	}

	e.approved.Add(1)
	return Decision{Outcome: Approved}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
