package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/goldearn/hft-core/internal/book"
	"github.com/goldearn/hft-core/internal/position"
	"github.com/goldearn/hft-core/internal/risk"
	"github.com/goldearn/hft-core/internal/symbolmaster"
)

// defaultThrottleRPS and defaultThrottleBurst bound the engine's
// client-side pre-filter ahead of the risk gate. This throttle is
// advisory, not authoritative — see DESIGN.md on why
// golang.org/x/time/rate's internal branching is acceptable here but
// nowhere inside internal/risk.
const (
	defaultThrottleRPS   = 1000
	defaultThrottleBurst = 200
)

// ErrOrderNotFound is returned by CancelOrder/ModifyOrder for an
// order_id the engine has no open record for.
var ErrOrderNotFound = errors.New("engine: order not found")

// ErrSymbolUnknown is returned when an order names a symbol absent
// from the symbol master table.
var ErrSymbolUnknown = errors.New("engine: unknown symbol")

// RejectedError wraps a non-APPROVED pre-trade decision. It is never
// a process error (spec §4.5 "never a process error, always a normal
// control-flow outcome") — SubmitOrder returns it purely so a
// synchronous caller doesn't have to wait for the OnReject callback
// that is also queued for the strategy.
type RejectedError struct {
	Outcome   risk.Outcome
	Violation *risk.Violation
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("engine: order rejected: %s", e.Outcome)
}

// openOrder is what the engine remembers about an order it has
// dispatched to a venue, keyed by order_id, so Cancel/Modify can find
// the venue and owning strategy again.
type openOrder struct {
	strategyID string
	symbol     string
	venue      Venue
}

// Engine is the trading engine glue of SPEC_FULL.md §4.7: it registers
// strategies, fans market data and execution feedback out to them,
// runs their candidate orders through the pre-trade risk gate, and
// dispatches approved orders to a venue. Grounded on the teacher's
// internal/orders/order_lifecycle.go for the submit/cancel/ack flow
// shape, restructured around the spec's capability-handle design
// (§9) rather than the teacher's service-object model.
type Engine struct {
	registry *Registry
	risk     *risk.Engine
	venues   VenueSelector
	books    *book.Manager
	positions *position.Tracker
	symbols  *symbolmaster.Table
	bus      *Bus
	logger   *zap.Logger

	throttleMu sync.Mutex
	throttles  map[string]*rate.Limiter

	openOrders sync.Map // order_id string -> *openOrder
}

// Params bundles Engine's constructor dependencies.
type Params struct {
	Registry  *Registry
	Risk      *risk.Engine
	Venues    VenueSelector
	Books     *book.Manager
	Positions *position.Tracker
	Symbols   *symbolmaster.Table
	Bus       *Bus // optional; nil disables market-data fan-out via the pub/sub bus
	Logger    *zap.Logger
}

// New creates an Engine from its dependencies.
func New(p Params) *Engine {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		registry:  p.Registry,
		risk:      p.Risk,
		venues:    p.Venues,
		books:     p.Books,
		positions: p.Positions,
		symbols:   p.Symbols,
		bus:       p.Bus,
		logger:    logger,
		throttles: make(map[string]*rate.Limiter),
	}
}

// RegisterStrategy stores s in the registry and returns the narrow
// StrategyHandle it is allowed to hold — never a reference to the
// Engine itself (spec §9 "Cyclic graphs").
func (e *Engine) RegisterStrategy(s Strategy, poolSize int) (StrategyHandle, error) {
	if err := e.registry.Register(s, poolSize); err != nil {
		return nil, err
	}
	return &handle{engine: e, strategyID: s.ID()}, nil
}

// UnregisterStrategy removes a strategy and releases its worker pool.
func (e *Engine) UnregisterStrategy(id string) {
	e.registry.Unregister(id)
}

func (e *Engine) throttleFor(strategyID string) *rate.Limiter {
	e.throttleMu.Lock()
	defer e.throttleMu.Unlock()
	lim, ok := e.throttles[strategyID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(defaultThrottleRPS), defaultThrottleBurst)
		e.throttles[strategyID] = lim
	}
	return lim
}

// buildContext assembles the PreTradeContext a full pipeline decision
// needs from the current book/position state (spec §4.5).
func (e *Engine) buildContext(order *Order, symbolID uint32) risk.PreTradeContext {
	side := risk.SideBuy
	if order.Side < 0 {
		side = risk.SideSell
	}
	riskOrder := risk.Order{
		SymbolID:   symbolID,
		StrategyID: order.StrategyID,
		Side:       side,
		Price:      order.Price,
		Quantity:   order.Quantity,
	}

	var marketPrice float64
	if b, ok := e.books.Get(symbolID); ok {
		marketPrice = b.Mid()
	}

	pos := e.positions.Get(order.StrategyID, order.Symbol)

	return risk.PreTradeContext{
		Order:           riskOrder,
		CurrentPosition: pos.Quantity,
		MarketPrice:     marketPrice,
		EstFillPrice:    marketPrice,
		FairValue:       marketPrice,
	}
}

// SubmitOrder applies the client-side throttle, runs the full
// pre-trade pipeline, and on APPROVED assigns a ksuid order_id and
// hands the order to the venue selector (spec §4.7 "Order lifecycle").
// On any REJECTED_* outcome, the owning strategy's OnReject is queued
// on its worker pool with an empty order id, and no venue call occurs.
func (e *Engine) SubmitOrder(ctx context.Context, order *Order) (*OrderAck, error) {
	if !e.throttleFor(order.StrategyID).Allow() {
		e.registry.Notify(order.StrategyID, func(s Strategy) {
			s.OnReject("", RejectReason("CLIENT_THROTTLED"))
		})
		return nil, fmt.Errorf("engine: client-side throttle exceeded for strategy %s", order.StrategyID)
	}

	entry, ok := e.symbols.ByName(order.Symbol)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSymbolUnknown, order.Symbol)
	}

	decision := e.risk.CheckOrder(e.buildContext(order, entry.SymbolID))
	if decision.Outcome != risk.Approved {
		e.registry.Notify(order.StrategyID, func(s Strategy) {
			s.OnReject("", RejectReason(decision.Outcome))
		})
		return nil, &RejectedError{Outcome: decision.Outcome, Violation: decision.Violation}
	}

	venue, err := e.venues.SelectVenue(order)
	if err != nil {
		return nil, err
	}

	orderID := ksuid.New().String()
	ack, err := venue.Submit(ctx, order, orderID)
	if err != nil {
		return nil, err
	}

	e.openOrders.Store(orderID, &openOrder{strategyID: order.StrategyID, symbol: order.Symbol, venue: venue})
	e.registry.Notify(order.StrategyID, func(s Strategy) { s.OnAck(ack) })
	return ack, nil
}

// CancelOrder forwards to the venue the order was originally
// submitted to.
func (e *Engine) CancelOrder(ctx context.Context, orderID string) error {
	v, ok := e.openOrders.Load(orderID)
	if !ok {
		return ErrOrderNotFound
	}
	return v.(*openOrder).venue.Cancel(ctx, orderID)
}

// ModifyOrder forwards to the venue the order was originally
// submitted to.
func (e *Engine) ModifyOrder(ctx context.Context, orderID string, newQty, newPrice float64) error {
	v, ok := e.openOrders.Load(orderID)
	if !ok {
		return ErrOrderNotFound
	}
	return v.(*openOrder).venue.Modify(ctx, orderID, newQty, newPrice)
}

// OnExecutionReport folds a fill into the position tracker and
// notifies the owning strategy, closing the loop described in spec §2
// ("execution report → position tracker").
func (e *Engine) OnExecutionReport(report *ExecutionReport) {
	if report.ExecutionID == "" {
		report.ExecutionID = uuid.NewString()
	}

	side := position.SideBuy
	if report.Quantity < 0 {
		side = position.SideSell
	}
	e.positions.OnFill(position.Fill{
		Symbol:     report.Symbol,
		StrategyID: report.StrategyID,
		Side:       side,
		Quantity:   absFloat(report.Quantity),
		Price:      report.Price,
		Timestamp:  report.Timestamp,
	})
	e.registry.Notify(report.StrategyID, func(s Strategy) { s.OnExecution(report) })
	if e.bus != nil {
		if err := e.bus.PublishExecution(report); err != nil {
			e.logger.Warn("failed to publish execution report", zap.Error(err))
		}
	}
}

// BroadcastTrade fans a trade out to every registered strategy.
func (e *Engine) BroadcastTrade(t *Trade) {
	e.registry.Broadcast(func(s Strategy) { s.OnTrade(t) })
}

// BroadcastQuote fans a quote out to every registered strategy.
func (e *Engine) BroadcastQuote(q *Quote) {
	e.registry.Broadcast(func(s Strategy) { s.OnQuote(q) })
}

// BroadcastBookUpdate fans a book snapshot out to every registered
// strategy, and publishes it on the bus for out-of-process
// subscribers if one is configured.
func (e *Engine) BroadcastBookUpdate(symbol string, snapshot *BookSnapshot) {
	e.registry.Broadcast(func(s Strategy) { s.OnBookUpdate(symbol, snapshot) })
	if e.bus != nil {
		if err := e.bus.PublishBookUpdate(symbol, snapshot); err != nil {
			e.logger.Warn("failed to publish book update", zap.Error(err))
		}
	}
}

// handle is the narrow StrategyHandle bound to one strategy's ID,
// handed to it at RegisterStrategy and never exchanged for a
// reference to the Engine itself.
type handle struct {
	engine     *Engine
	strategyID string
}

func (h *handle) SubmitOrder(ctx context.Context, order *Order) (*OrderAck, error) {
	if order.StrategyID == "" {
		order.StrategyID = h.strategyID
	}
	return h.engine.SubmitOrder(ctx, order)
}

func (h *handle) CancelOrder(ctx context.Context, orderID string) error {
	return h.engine.CancelOrder(ctx, orderID)
}

func (h *handle) ModifyOrder(ctx context.Context, orderID string, newQty, newPrice float64) error {
	return h.engine.ModifyOrder(ctx, orderID, newQty, newPrice)
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
