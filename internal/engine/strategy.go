// Package engine is the trading engine glue (SPEC_FULL.md §4.7): a
// strategy registry and order-lifecycle dispatcher sitting between the
// order book / feed session and the pre-trade risk engine. Grounded on
// the teacher's internal/strategy/plugin/interface.go (capability
// interface in place of a Strategy class hierarchy) and
// internal/orders/order_lifecycle.go (submit/cancel/ack flow).
package engine

import (
	"context"
	"time"
)

// Order is a strategy's candidate order, submitted through a
// StrategyHandle.
type Order struct {
	Symbol     string
	StrategyID string
	Side       int // +1 buy, -1 sell
	Quantity   float64
	Price      float64
}

// OrderAck is the venue's acknowledgement of a submitted order.
type OrderAck struct {
	OrderID   string
	Symbol    string
	Timestamp time.Time
}

// RejectReason explains why an order never reached a venue.
type RejectReason string

// Trade, Quote and BookSnapshot are the market-data events a strategy
// observes; kept minimal here since internal/book/internal/wire own
// the full types — the engine only needs enough shape to route them.
type Trade struct {
	Symbol string
	Price  float64
	Qty    float64
}

type Quote struct {
	Symbol   string
	BidPrice float64
	AskPrice float64
}

type BookSnapshot struct {
	Symbol   string
	BidPrice float64
	AskPrice float64
	BidQty   float64
	AskQty   float64
}

// ExecutionReport is a fill notification routed back to the owning
// strategy and the position tracker (spec §3 "Execution report").
// ExecutionID is assigned by the engine (github.com/google/uuid) if
// the venue adapter producing the report left it blank.
type ExecutionReport struct {
	OrderID     string
	ExecutionID string
	Symbol      string
	StrategyID  string
	Side        int // +1 buy, -1 sell
	Quantity    float64
	Price       float64
	Commission  float64
	Venue       string
	Timestamp   time.Time
}

// StrategyHandle is the narrow capability a strategy is given at
// registration; it never holds a reference to the Engine itself
// (SPEC_FULL.md §9 "Cyclic graphs" design note).
type StrategyHandle interface {
	SubmitOrder(ctx context.Context, order *Order) (*OrderAck, error)
	CancelOrder(ctx context.Context, orderID string) error
	ModifyOrder(ctx context.Context, orderID string, newQty, newPrice float64) error
}

// Strategy is the capability interface every registered strategy
// implements, replacing the teacher's Strategy class hierarchy with
// composition over inheritance.
type Strategy interface {
	ID() string
	OnTrade(*Trade)
	OnQuote(*Quote)
	OnBookUpdate(symbol string, snapshot *BookSnapshot)
	OnAck(*OrderAck)
	OnExecution(*ExecutionReport)
	OnReject(orderID string, reason RejectReason)
}
