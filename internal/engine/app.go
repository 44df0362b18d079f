package engine

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/goldearn/hft-core/internal/book"
	"github.com/goldearn/hft-core/internal/position"
	"github.com/goldearn/hft-core/internal/risk"
	"github.com/goldearn/hft-core/internal/symbolmaster"
)

// Module wires the trading engine glue and its subsystem dependencies
// into a single fx application (SPEC_FULL.md §1A "Dependency wiring"),
// mirroring the teacher's internal/orders/module.go and
// internal/orders/matching/orders_matching_module.go fx.Options/
// fx.Provide/fx.Hook shape. It does not provide a *zap.Logger,
// config.View, or the feed/auth subsystems — those are supplied by
// whatever outer composition root assembles the full process; this
// core module only covers the four subsystems plus their glue.
var Module = fx.Options(
	fx.Provide(
		book.NewManager,
		NewSymbolTable,
		NewPositionTracker,
		NewPortfolio,
		NewRiskEngine,
		NewMonitor,
		NewRegistry,
		NewVenueSelector,
		NewFxBus,
		NewFxEngine,
	),
	fx.Invoke(registerLifecycle),
)

// NewSymbolTable creates the symbol master table and loads the
// built-in default set; a real deployment overrides this provider to
// load from the CSV view instead (spec §6).
func NewSymbolTable(logger *zap.Logger) *symbolmaster.Table {
	table := symbolmaster.NewTable(logger)
	table.LoadDefaults()
	return table
}

// NewPositionTracker creates the per-symbol/per-strategy position
// tracker.
func NewPositionTracker(logger *zap.Logger) *position.Tracker {
	return position.New(logger)
}

// bookPriceSource adapts book.Manager to position.PriceSource by
// resolving symbol names through the symbol master table.
type bookPriceSource struct {
	books   *book.Manager
	symbols *symbolmaster.Table
}

func (s *bookPriceSource) Price(symbol string) (float64, bool) {
	entry, ok := s.symbols.ByName(symbol)
	if !ok {
		return 0, false
	}
	b, ok := s.books.Get(entry.SymbolID)
	if !ok {
		return 0, false
	}
	mid := b.Mid()
	if mid == 0 {
		return 0, false
	}
	return mid, true
}

// defaultPositionVolatility is the one-day volatility assumed for
// every position's VaR contribution in varFromPositions. It is used
// for all symbols; the portfolio's per-symbol return series feed only
// the post-trade volatility/correlation checks wired in NewPortfolio,
// not the VaR recompute.
const defaultPositionVolatility = 0.02

// varFromPositions adapts a position snapshot into risk.ParametricVaR
// inputs, wired by the engine module rather than by internal/position
// itself (which avoids importing internal/risk to prevent a cycle).
func varFromPositions(positions []position.Position) float64 {
	if len(positions) == 0 {
		return 0
	}
	assets := make([]risk.AssetExposure, 0, len(positions))
	for _, p := range positions {
		assets = append(assets, risk.AssetExposure{
			Symbol:     p.Symbol,
			Notional:   p.Quantity * p.CurrentPrice,
			Volatility: defaultPositionVolatility,
		})
	}
	return risk.ParametricVaR(assets, nil, 0.95, 1)
}

// returnSeriesPeriod is the trailing window risk.VolatilityTracker
// draws on for the portfolio's volatility/correlation estimates.
const returnSeriesPeriod = 20

// NewPortfolio creates the mark-to-market aggregator over tracker,
// wiring the book manager as its price source, risk.ParametricVaR as
// its VaR recompute function, and risk.VolatilityTracker's
// Volatility/Correlation as the estimators behind the standalone
// volatility/correlation post-trade checks (spec §4.5).
func NewPortfolio(tracker *position.Tracker, books *book.Manager, symbols *symbolmaster.Table, logger *zap.Logger) *position.Portfolio {
	source := &bookPriceSource{books: books, symbols: symbols}
	pf := position.NewPortfolio(tracker, source, varFromPositions, logger)

	vt := risk.NewVolatilityTracker()
	pf.SetReturnFuncs(
		func(returns []float64) float64 { return vt.Volatility(returns, returnSeriesPeriod) },
		func(a, b []float64) float64 { return vt.Correlation(a, b, returnSeriesPeriod) },
	)
	return pf
}

// defaultRiskLimits is the fixed limit set the risk engine starts
// with. Limits are not read from a config.View here; Engine.SetLimits
// replaces them at runtime.
func defaultRiskLimits() risk.Limits {
	return risk.Limits{
		MaxPositionSize:         1_000_000,
		MaxPortfolioExposure:    50_000_000,
		MaxStrategyExposure:     10_000_000,
		MaxSectorConcentration:  0.4,
		MaxOrderSize:            100_000,
		MaxOrderValue:           5_000_000,
		MaxOrdersPerSecond:      50,
		MaxOrdersPerMinute:      1000,
		MaxPriceDeviation:       0.05,
		MinSpread:               0,
		MaxMarketImpact:         0.02,
		MaxVaR1Day:              2_000_000,
		MaxVaR10Day:             6_000_000,
		MaxVolatility:           0.6,
		MaxCorrelation:          0.9,
		MaxDailyLoss:            1_000_000,
		MaxDrawdown:             0.2,
		MaxConsecutiveLosses:    10,
		MaxPositionHoldSeconds:  0,
		MaxOrderLifetimeSeconds: 0,
	}
}

// NewRiskEngine creates the pre-trade risk engine with its violation
// callback wired to the logger.
func NewRiskEngine(logger *zap.Logger) *risk.Engine {
	return risk.New(defaultRiskLimits(), func(v risk.Violation) {
		logger.Warn("risk violation",
			zap.String("type", string(v.Type)),
			zap.String("severity", string(v.Severity)),
			zap.String("strategy_id", v.StrategyID),
			zap.Uint32("symbol_id", v.SymbolID))
	})
}

// NewMonitor creates the post-trade monitor over the risk engine.
func NewMonitor(riskEngine *risk.Engine) *risk.Monitor {
	return risk.NewMonitor(riskEngine)
}

// NewVenueSelector provides the trivial single-venue default; a real
// deployment supplies its own fx.Provide overriding this with an
// adapter to an actual execution venue.
func NewVenueSelector(logger *zap.Logger) VenueSelector {
	return NewSingleVenueSelector(NewLoggingVenue("default", logger))
}

// NewFxBus creates the internal pub/sub bus from BusConfig defaults.
// A nil return with error logged degrades the engine to in-process-
// only fan-out (no bus) rather than failing application startup,
// since the bus is an optimization for out-of-process subscribers,
// not a correctness requirement of §4.7.
func NewFxBus(logger *zap.Logger) *Bus {
	bus, err := NewBus(DefaultBusConfig(), logger)
	if err != nil {
		logger.Warn("engine bus unavailable, falling back to in-process-only fan-out", zap.Error(err))
		return nil
	}
	return bus
}

// engineParams bundles Engine's fx-resolved dependencies.
type engineParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Logger    *zap.Logger
	Registry  *Registry
	Risk      *risk.Engine
	Venues    VenueSelector
	Books     *book.Manager
	Positions *position.Tracker
	Symbols   *symbolmaster.Table
	Bus       *Bus `optional:"true"`
}

// NewFxEngine creates the Engine for the fx application, grounded on
// the teacher's internal/orders/matching/orders_matching_module.go
// NewFxEngine (fx.Lifecycle hook wrapping a plain constructor).
func NewFxEngine(p engineParams) *Engine {
	e := New(Params{
		Registry:  p.Registry,
		Risk:      p.Risk,
		Venues:    p.Venues,
		Books:     p.Books,
		Positions: p.Positions,
		Symbols:   p.Symbols,
		Bus:       p.Bus,
		Logger:    p.Logger,
	})

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			p.Logger.Info("starting trading engine")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Logger.Info("stopping trading engine")
			e.registry.Close()
			if e.bus != nil {
				return e.bus.Close()
			}
			return nil
		},
	})

	return e
}

// lifecycleParams bundles the background workers app.go starts/stops
// alongside the fx application (spec §5 "background threads observe a
// shared shutdown flag and join on teardown").
type lifecycleParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Logger    *zap.Logger
	Portfolio *position.Portfolio
	Monitor   *risk.Monitor
}

// registerLifecycle starts the position-tracker mark-to-market loop
// and the risk monitor's background loop on application start, and
// cancels both on stop.
func registerLifecycle(p lifecycleParams) {
	ctx, cancel := context.WithCancel(context.Background())

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			p.Logger.Info("starting position tracker and risk monitor background loops")
			p.Portfolio.Run(ctx)
			p.Monitor.Run(ctx, p.Portfolio)
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			p.Logger.Info("stopping position tracker and risk monitor background loops")
			cancel()
			p.Portfolio.Wait()
			p.Monitor.Wait()
			return nil
		},
	})
}
