package position

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// returnWindow bounds how many per-tick returns are retained per
// symbol for the volatility/correlation estimators (spec §4.5's
// standalone volatility and correlation rejection rules draw on this
// same history).
const returnWindow = 30

// Aggregates is the spec §4.6 portfolio aggregate block, recomputed by
// the mark-to-market worker every tick.
type Aggregates struct {
	TotalLongExposure  float64
	TotalShortExposure float64
	NetExposure        float64
	GrossExposure      float64
	TotalUnrealizedPnL float64
	TotalRealizedPnL   float64
	PortfolioVaR1Day   float64

	// Concentration is max_position_notional / gross_exposure (spec
	// §4.6 "Concentration").
	Concentration float64
}

// PriceSource supplies the current mark price for a symbol; the
// trading engine glue wires this to the live order book's mid price.
type PriceSource interface {
	Price(symbol string) (float64, bool)
}

// Portfolio runs the periodic mark-to-market worker over a Tracker and
// caches the resulting aggregates for readers (spec §5 "a
// position-tracker background thread"). Grounded on the teacher's
// internal/risk/position_manager.go polling shape, extended with the
// aggregate and VaR recompute spec §4.6 asks for.
type Portfolio struct {
	tracker     *Tracker
	priceSource PriceSource
	varFn       func([]Position) float64

	mu     sync.RWMutex
	aggs   Aggregates
	volFn  func(returns []float64) float64
	corrFn func(a, b []float64) float64

	returnsMu sync.Mutex
	lastPrice map[string]float64
	returns   map[string][]float64

	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewPortfolio creates a Portfolio over tracker. varFn computes the
// 1-day portfolio VaR from the current position snapshot (wired to
// risk.ParametricVaR by the trading engine glue, which owns the
// cross-package dependency position avoids importing directly).
func NewPortfolio(tracker *Tracker, priceSource PriceSource, varFn func([]Position) float64, logger *zap.Logger) *Portfolio {
	if logger == nil {
		logger = zap.NewNop()
	}
	if varFn == nil {
		varFn = func([]Position) float64 { return 0 }
	}
	return &Portfolio{
		tracker:     tracker,
		priceSource: priceSource,
		varFn:       varFn,
		lastPrice:   make(map[string]float64),
		returns:     make(map[string][]float64),
		logger:      logger,
	}
}

// SetReturnFuncs wires volatility/correlation estimators over this
// portfolio's return-series cache. internal/position avoids importing
// internal/risk to prevent a cycle, so the engine glue supplies
// risk.VolatilityTracker's Volatility/Correlation here, the same way
// it supplies varFn to NewPortfolio. Nil funcs (the default) make
// Volatilities/CorrelatedPairs report empty, so the corresponding
// post-trade check is a no-op until this is called.
func (p *Portfolio) SetReturnFuncs(volFn func(returns []float64) float64, corrFn func(a, b []float64) float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volFn = volFn
	p.corrFn = corrFn
}

// Run starts the mark-to-market worker, ticking every 5 seconds (spec
// §4.6 "A background worker every 5 s") until ctx is cancelled.
func (p *Portfolio) Run(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.tick()
			}
		}
	}()
}

// Wait blocks until the worker started by Run has exited.
func (p *Portfolio) Wait() { p.wg.Wait() }

func (p *Portfolio) tick() {
	positions := p.tracker.All()

	for i := range positions {
		if p.priceSource == nil {
			continue
		}
		if price, ok := p.priceSource.Price(positions[i].Symbol); ok {
			p.tracker.UpdatePrice(positions[i].StrategyID, positions[i].Symbol, price)
			positions[i].CurrentPrice = price
			p.recordReturn(positions[i].Symbol, price)
		}
	}

	aggs := computeAggregates(positions)
	aggs.PortfolioVaR1Day = p.varFn(positions)

	p.mu.Lock()
	p.aggs = aggs
	p.mu.Unlock()

	p.logger.Debug("portfolio aggregates refreshed",
		zap.Float64("net_exposure", aggs.NetExposure),
		zap.Float64("gross_exposure", aggs.GrossExposure),
		zap.Float64("portfolio_var_1d", aggs.PortfolioVaR1Day),
	)
}

// recordReturn folds price's return against the symbol's previous mark
// into the rolling return-series cache Volatilities/CorrelatedPairs
// draw on, capped at returnWindow entries.
func (p *Portfolio) recordReturn(symbol string, price float64) {
	p.returnsMu.Lock()
	defer p.returnsMu.Unlock()

	last, ok := p.lastPrice[symbol]
	p.lastPrice[symbol] = price
	if !ok || last == 0 {
		return
	}

	series := append(p.returns[symbol], (price-last)/last)
	if len(series) > returnWindow {
		series = series[len(series)-returnWindow:]
	}
	p.returns[symbol] = series
}

// Aggregates returns the most recently computed aggregate snapshot.
func (p *Portfolio) Aggregates() Aggregates {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.aggs
}

func computeAggregates(positions []Position) Aggregates {
	var aggs Aggregates
	var maxNotional float64

	for _, pos := range positions {
		notional := pos.Quantity * pos.CurrentPrice
		unrealized := pos.Quantity * (pos.CurrentPrice - pos.AvgCost)

		if notional > 0 {
			aggs.TotalLongExposure += notional
		} else {
			aggs.TotalShortExposure += -notional
		}
		aggs.NetExposure += notional
		aggs.GrossExposure += abs(notional)
		aggs.TotalUnrealizedPnL += unrealized
		aggs.TotalRealizedPnL += pos.RealizedPnL

		if abs(notional) > maxNotional {
			maxNotional = abs(notional)
		}
	}

	if aggs.GrossExposure > 0 {
		aggs.Concentration = maxNotional / aggs.GrossExposure
	}

	return aggs
}

// PortfolioExposure implements risk.PortfolioChecker.
func (p *Portfolio) PortfolioExposure() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.aggs.GrossExposure
}

// StrategyExposures implements risk.PortfolioChecker: the gross
// notional exposure of each strategy's current positions.
func (p *Portfolio) StrategyExposures() map[string]float64 {
	positions := p.tracker.All()
	out := make(map[string]float64)
	for _, pos := range positions {
		out[pos.StrategyID] += abs(pos.Quantity * pos.CurrentPrice)
	}
	return out
}

// Volatilities implements risk.PortfolioChecker: per-symbol annualized
// volatility over this portfolio's return-series cache, via the
// engine-supplied volFn (spec §4.5's standalone volatility rejection
// rule). Reports an empty map until SetReturnFuncs wires a volFn.
func (p *Portfolio) Volatilities() map[string]float64 {
	p.mu.RLock()
	volFn := p.volFn
	p.mu.RUnlock()
	if volFn == nil {
		return map[string]float64{}
	}

	p.returnsMu.Lock()
	defer p.returnsMu.Unlock()
	out := make(map[string]float64, len(p.returns))
	for symbol, series := range p.returns {
		out[symbol] = volFn(series)
	}
	return out
}

// CorrelatedPairs implements risk.PortfolioChecker: pairwise
// correlation between every two symbols with a tracked return series,
// via the engine-supplied corrFn. Reports an empty map until
// SetReturnFuncs wires a corrFn, so the post-trade monitor's
// correlation check stays a no-op until then.
func (p *Portfolio) CorrelatedPairs() map[[2]string]float64 {
	p.mu.RLock()
	corrFn := p.corrFn
	p.mu.RUnlock()
	out := map[[2]string]float64{}
	if corrFn == nil {
		return out
	}

	p.returnsMu.Lock()
	defer p.returnsMu.Unlock()
	symbols := make([]string, 0, len(p.returns))
	for symbol := range p.returns {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	for i := 0; i < len(symbols); i++ {
		for j := i + 1; j < len(symbols); j++ {
			out[[2]string{symbols[i], symbols[j]}] = corrFn(p.returns[symbols[i]], p.returns[symbols[j]])
		}
	}
	return out
}
