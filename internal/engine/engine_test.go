package engine

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/goldearn/hft-core/internal/book"
	"github.com/goldearn/hft-core/internal/position"
	"github.com/goldearn/hft-core/internal/risk"
	"github.com/goldearn/hft-core/internal/symbolmaster"
)

// stubStrategy records every callback it receives on buffered
// channels so tests can assert on them without racing the ants pool
// worker the registry dispatches callbacks on.
type stubStrategy struct {
	id        string
	acks      chan *OrderAck
	rejects   chan RejectReason
	execs     chan *ExecutionReport
}

func newStubStrategy(id string) *stubStrategy {
	return &stubStrategy{
		id:      id,
		acks:    make(chan *OrderAck, 8),
		rejects: make(chan RejectReason, 8),
		execs:   make(chan *ExecutionReport, 8),
	}
}

func (s *stubStrategy) ID() string                                        { return s.id }
func (s *stubStrategy) OnTrade(*Trade)                                    {}
func (s *stubStrategy) OnQuote(*Quote)                                    {}
func (s *stubStrategy) OnBookUpdate(string, *BookSnapshot)                {}
func (s *stubStrategy) OnAck(ack *OrderAck)                               { s.acks <- ack }
func (s *stubStrategy) OnExecution(report *ExecutionReport)               { s.execs <- report }
func (s *stubStrategy) OnReject(orderID string, reason RejectReason)      { s.rejects <- reason }

// stubVenue records submitted/cancelled/modified orders without
// talking to anything external.
type stubVenue struct {
	submitted []string
	cancelled []string
	modified  []string
}

func (v *stubVenue) Name() string { return "stub" }

func (v *stubVenue) Submit(ctx context.Context, order *Order, orderID string) (*OrderAck, error) {
	v.submitted = append(v.submitted, orderID)
	return &OrderAck{OrderID: orderID, Symbol: order.Symbol, Timestamp: time.Now()}, nil
}

func (v *stubVenue) Cancel(ctx context.Context, orderID string) error {
	v.cancelled = append(v.cancelled, orderID)
	return nil
}

func (v *stubVenue) Modify(ctx context.Context, orderID string, newQty, newPrice float64) error {
	v.modified = append(v.modified, orderID)
	return nil
}

func testEngine(t *testing.T, venue Venue) (*Engine, *symbolmaster.Table) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	symbols := symbolmaster.NewTable(logger)
	symbols.LoadDefaults()

	books := book.NewManager()
	books.AddSymbol(1, 0.05) // RELIANCE

	riskEngine := risk.New(risk.DefaultLimits(), nil)
	positions := position.New(logger)
	registry := NewRegistry(logger)

	e := New(Params{
		Registry:  registry,
		Risk:      riskEngine,
		Venues:    NewSingleVenueSelector(venue),
		Books:     books,
		Positions: positions,
		Symbols:   symbols,
		Logger:    nil,
	})
	return e, symbols
}

func waitFor[T any](t *testing.T, ch chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for callback")
		var zero T
		return zero
	}
}

func TestSubmitOrderApprovedDispatchesToVenueAndAcks(t *testing.T) {
	venue := &stubVenue{}
	e, _ := testEngine(t, venue)

	strat := newStubStrategy("S1")
	handle, err := e.RegisterStrategy(strat, 2)
	if err != nil {
		t.Fatalf("RegisterStrategy: %v", err)
	}

	order := &Order{Symbol: "RELIANCE", StrategyID: "S1", Side: 1, Quantity: 10, Price: 2500}
	ack, err := handle.SubmitOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}
	if ack == nil || ack.OrderID == "" {
		t.Fatalf("expected a non-empty order id, got %+v", ack)
	}
	if len(venue.submitted) != 1 || venue.submitted[0] != ack.OrderID {
		t.Fatalf("expected venue to record the submitted order id, got %v", venue.submitted)
	}

	gotAck := waitFor(t, strat.acks)
	if gotAck.OrderID != ack.OrderID {
		t.Fatalf("OnAck order id = %s, want %s", gotAck.OrderID, ack.OrderID)
	}
}

func TestSubmitOrderRejectedNeverReachesVenue(t *testing.T) {
	venue := &stubVenue{}
	e, _ := testEngine(t, venue)
	e.risk.Blacklist(1, "")

	strat := newStubStrategy("S1")
	handle, err := e.RegisterStrategy(strat, 2)
	if err != nil {
		t.Fatalf("RegisterStrategy: %v", err)
	}

	order := &Order{Symbol: "RELIANCE", StrategyID: "S1", Side: 1, Quantity: 10, Price: 2500}
	_, err = handle.SubmitOrder(context.Background(), order)
	if err == nil {
		t.Fatal("expected a RejectedError, got nil")
	}
	rejErr, ok := err.(*RejectedError)
	if !ok {
		t.Fatalf("expected *RejectedError, got %T: %v", err, err)
	}
	if rejErr.Outcome != risk.RejectedBlacklist {
		t.Fatalf("outcome = %v, want REJECTED_BLACKLIST", rejErr.Outcome)
	}
	if len(venue.submitted) != 0 {
		t.Fatalf("venue should never have been called, got %v", venue.submitted)
	}

	reason := waitFor(t, strat.rejects)
	if reason != RejectReason(risk.RejectedBlacklist) {
		t.Fatalf("OnReject reason = %v, want %v", reason, risk.RejectedBlacklist)
	}
}

func TestSubmitOrderUnknownSymbol(t *testing.T) {
	venue := &stubVenue{}
	e, _ := testEngine(t, venue)

	strat := newStubStrategy("S1")
	handle, _ := e.RegisterStrategy(strat, 2)

	order := &Order{Symbol: "DOES-NOT-EXIST", StrategyID: "S1", Side: 1, Quantity: 1, Price: 1}
	if _, err := handle.SubmitOrder(context.Background(), order); err == nil {
		t.Fatal("expected an unknown-symbol error")
	}
}

func TestCancelOrderRoutesToOriginatingVenue(t *testing.T) {
	venue := &stubVenue{}
	e, _ := testEngine(t, venue)

	strat := newStubStrategy("S1")
	handle, _ := e.RegisterStrategy(strat, 2)

	order := &Order{Symbol: "RELIANCE", StrategyID: "S1", Side: 1, Quantity: 10, Price: 2500}
	ack, err := handle.SubmitOrder(context.Background(), order)
	if err != nil {
		t.Fatalf("SubmitOrder: %v", err)
	}

	if err := handle.CancelOrder(context.Background(), ack.OrderID); err != nil {
		t.Fatalf("CancelOrder: %v", err)
	}
	if len(venue.cancelled) != 1 || venue.cancelled[0] != ack.OrderID {
		t.Fatalf("expected venue to record the cancelled order id, got %v", venue.cancelled)
	}
}

func TestCancelUnknownOrderReturnsNotFound(t *testing.T) {
	e, _ := testEngine(t, &stubVenue{})
	if err := e.CancelOrder(context.Background(), "nonexistent"); err != ErrOrderNotFound {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}

func TestOnExecutionReportUpdatesPositionAndNotifiesStrategy(t *testing.T) {
	e, _ := testEngine(t, &stubVenue{})
	strat := newStubStrategy("S1")
	if _, err := e.RegisterStrategy(strat, 2); err != nil {
		t.Fatalf("RegisterStrategy: %v", err)
	}

	report := &ExecutionReport{
		OrderID:    "o1",
		Symbol:     "RELIANCE",
		StrategyID: "S1",
		Quantity:   10,
		Price:      2500,
		Timestamp:  time.Now(),
	}
	e.OnExecutionReport(report)

	pos := e.positions.Get("S1", "RELIANCE")
	if pos.Quantity != 10 {
		t.Fatalf("position quantity = %f, want 10", pos.Quantity)
	}

	got := waitFor(t, strat.execs)
	if got.OrderID != "o1" {
		t.Fatalf("OnExecution order id = %s, want o1", got.OrderID)
	}
	if got.ExecutionID == "" {
		t.Fatal("expected the engine to assign an execution id when the report left it blank")
	}
}

func TestRegisterStrategyDuplicateIDFails(t *testing.T) {
	e, _ := testEngine(t, &stubVenue{})
	if _, err := e.RegisterStrategy(newStubStrategy("S1"), 1); err != nil {
		t.Fatalf("first RegisterStrategy: %v", err)
	}
	if _, err := e.RegisterStrategy(newStubStrategy("S1"), 1); err != ErrStrategyExists {
		t.Fatalf("err = %v, want ErrStrategyExists", err)
	}
}
