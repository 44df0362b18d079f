// Package position maintains per-symbol and per-strategy positions,
// marks them to market, and supplies the aggregate risk inputs the
// post-trade monitor consults (spec §4.6). Grounded on the teacher's
// internal/risk/position_manager.go (PositionManager: map-of-maps keyed
// by owner/symbol, go-cache read-through cache, average-cost update
// arithmetic), generalized from its single same-sign average-cost rule
// to the full same-sign/opposite-sign realize-on-cross semantics.
package position

import (
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Side mirrors risk.Side without importing internal/risk, keeping
// position import-independent of the risk engine.
type Side int

const (
	SideBuy  Side = 1
	SideSell Side = -1
)

// Fill is one execution the tracker folds into a position (spec §4.6
// "Update on fill").
type Fill struct {
	Symbol     string
	StrategyID string
	Side       Side
	Quantity   float64
	Price      float64
	Timestamp  time.Time
}

// Position is one (strategy, symbol) holding.
type Position struct {
	Symbol     string
	StrategyID string

	Quantity float64
	AvgCost  float64

	CurrentPrice   float64
	UnrealizedPnL  float64
	RealizedPnL    float64

	UpdatedAt time.Time
}

// key identifies a position by its owning strategy and symbol.
type key struct {
	strategyID string
	symbol     string
}

// Tracker is the spec §4.6 position tracker: fill-driven position
// updates behind a single writer per key, a read-through cache for hot
// lookups, and a mark-to-market worker (portfolio.go) that recomputes
// aggregates every 5 seconds.
type Tracker struct {
	mu        sync.RWMutex
	positions map[key]*Position

	cache *cache.Cache

	logger *zap.Logger
}

// New creates an empty Tracker.
func New(logger *zap.Logger) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		positions: make(map[key]*Position),
		cache:     cache.New(5*time.Minute, 10*time.Minute),
		logger:    logger,
	}
}

// OnFill applies a fill's signed quantity to the (strategy, symbol)
// position, following spec §4.6's three update rules: new position,
// same-sign accumulation (weighted-average cost), and opposite-sign
// reduction (partial realization, possibly crossing through zero).
func (t *Tracker) OnFill(f Fill) *Position {
	signedQty := float64(f.Side) * f.Quantity
	k := key{strategyID: f.StrategyID, symbol: f.Symbol}

	t.mu.Lock()
	defer t.mu.Unlock()

	pos, exists := t.positions[k]
	if !exists {
		pos = &Position{Symbol: f.Symbol, StrategyID: f.StrategyID}
		t.positions[k] = pos
	}

	oldQty := pos.Quantity
	newQty := oldQty + signedQty

	switch {
	case !exists || oldQty == 0:
		// New position.
		pos.Quantity = newQty
		pos.AvgCost = f.Price

	case sameSign(oldQty, signedQty):
		// Same-sign update: weighted-average cost.
		totalCost := oldQty*pos.AvgCost + signedQty*f.Price
		pos.Quantity = newQty
		pos.AvgCost = totalCost / newQty

	default:
		// Opposite-sign update: realize the crossed portion, keep
		// avg_cost for any remainder (spec §4.6).
		crossed := minAbs(oldQty, signedQty)
		realized := crossed * (f.Price - pos.AvgCost) * sign(oldQty)
		pos.RealizedPnL += realized
		pos.Quantity = newQty
		if newQty == 0 {
			pos.AvgCost = 0
		} else if sign(newQty) != sign(oldQty) {
			// Position flipped sign: the remainder is a fresh
			// position opened at the fill price.
			pos.AvgCost = f.Price
		}
	}

	pos.CurrentPrice = f.Price
	pos.UpdatedAt = f.Timestamp

	t.cache.Set(cacheKey(f.StrategyID, f.Symbol), *pos, cache.DefaultExpiration)

	t.logger.Debug("position updated",
		zap.String("strategy_id", f.StrategyID),
		zap.String("symbol", f.Symbol),
		zap.Float64("signed_qty", signedQty),
		zap.Float64("new_quantity", pos.Quantity),
		zap.Float64("avg_cost", pos.AvgCost),
		zap.Float64("realized_pnl", pos.RealizedPnL),
	)

	return snapshotOf(pos)
}

// Get returns the current snapshot of a (strategy, symbol) position,
// a cached copy when available, falling back to a zero position when
// none exists.
func (t *Tracker) Get(strategyID, symbol string) Position {
	if cached, found := t.cache.Get(cacheKey(strategyID, symbol)); found {
		if pos, ok := cached.(Position); ok {
			return pos
		}
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if pos, ok := t.positions[key{strategyID: strategyID, symbol: symbol}]; ok {
		return *snapshotOf(pos)
	}
	return Position{StrategyID: strategyID, Symbol: symbol}
}

// All returns a snapshot of every tracked position.
func (t *Tracker) All() []Position {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Position, 0, len(t.positions))
	for _, pos := range t.positions {
		out = append(out, *snapshotOf(pos))
	}
	return out
}

// UpdatePrice refreshes the current mark price for a (strategy,
// symbol) position without a fill, used by the mark-to-market worker.
func (t *Tracker) UpdatePrice(strategyID, symbol string, price float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if pos, ok := t.positions[key{strategyID: strategyID, symbol: symbol}]; ok {
		pos.CurrentPrice = price
		t.cache.Set(cacheKey(strategyID, symbol), *pos, cache.DefaultExpiration)
	}
}

func cacheKey(strategyID, symbol string) string { return strategyID + ":" + symbol }

func snapshotOf(p *Position) *Position {
	cp := *p
	return &cp
}

func sameSign(a, b float64) bool {
	return (a > 0 && b > 0) || (a < 0 && b < 0)
}

func sign(v float64) float64 {
	if v < 0 {
		return -1
	}
	return 1
}

func minAbs(a, b float64) float64 {
	aa, ab := abs(a), abs(b)
	if aa < ab {
		return aa
	}
	return ab
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
