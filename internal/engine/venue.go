package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// Venue is an execution destination for an approved order. The spec's
// "pluggable selector interface" non-goal for smart-order-routing
// algorithms is satisfied by this interface plus a trivial default
// implementation below, never by a routing algorithm.
type Venue interface {
	Name() string
	Submit(ctx context.Context, order *Order, orderID string) (*OrderAck, error)
	Cancel(ctx context.Context, orderID string) error
	Modify(ctx context.Context, orderID string, newQty, newPrice float64) error
}

// VenueSelector picks the venue a given order should be routed to.
type VenueSelector interface {
	SelectVenue(order *Order) (Venue, error)
}

// ErrNoVenue is returned when a selector has nothing to route to.
var ErrNoVenue = errors.New("engine: no venue available")

// SingleVenueSelector always returns the same configured venue. This
// is the trivial default the spec calls for: the routing surface is
// here, the routing algorithm is not.
type SingleVenueSelector struct {
	venue Venue
}

// NewSingleVenueSelector wraps venue in a selector that always returns it.
func NewSingleVenueSelector(venue Venue) *SingleVenueSelector {
	return &SingleVenueSelector{venue: venue}
}

func (s *SingleVenueSelector) SelectVenue(order *Order) (Venue, error) {
	if s.venue == nil {
		return nil, ErrNoVenue
	}
	return s.venue, nil
}

// LoggingVenue is a default, trivial Venue implementation suitable
// for local/dev wiring before a real execution-venue adapter exists:
// it acknowledges synchronously and logs the hand-off rather than
// speaking to any external destination.
type LoggingVenue struct {
	name   string
	logger *zap.Logger
}

// NewLoggingVenue creates a LoggingVenue identified by name.
func NewLoggingVenue(name string, logger *zap.Logger) *LoggingVenue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoggingVenue{name: name, logger: logger}
}

func (v *LoggingVenue) Name() string { return v.name }

func (v *LoggingVenue) Submit(ctx context.Context, order *Order, orderID string) (*OrderAck, error) {
	v.logger.Info("venue submit",
		zap.String("venue", v.name),
		zap.String("order_id", orderID),
		zap.String("symbol", order.Symbol),
		zap.String("strategy_id", order.StrategyID))
	return &OrderAck{OrderID: orderID, Symbol: order.Symbol, Timestamp: time.Now()}, nil
}

func (v *LoggingVenue) Cancel(ctx context.Context, orderID string) error {
	v.logger.Info("venue cancel", zap.String("venue", v.name), zap.String("order_id", orderID))
	return nil
}

func (v *LoggingVenue) Modify(ctx context.Context, orderID string, newQty, newPrice float64) error {
	v.logger.Info("venue modify",
		zap.String("venue", v.name),
		zap.String("order_id", orderID),
		zap.Float64("new_qty", newQty),
		zap.Float64("new_price", newPrice))
	return nil
}
