package book

import (
	"testing"
	"time"
)

func TestEmptyBookAddOrder(t *testing.T) {
	b := New(1, 0.01)
	b.AddOrder(1, SideBid, 100.50, 100, time.Unix(1, 0))

	if got := b.BestBid(); got != 100.50 {
		t.Fatalf("best bid = %v, want 100.50", got)
	}
	if got := b.BidQuantity(); got != 100 {
		t.Fatalf("bid qty = %v, want 100", got)
	}
	if got := b.BestAsk(); got != 0 {
		t.Fatalf("best ask = %v, want 0", got)
	}
	if got := b.Spread(); got != 0 {
		t.Fatalf("spread = %v, want 0", got)
	}
	if got := b.Imbalance(); got != 1 {
		t.Fatalf("imbalance = %v, want 1", got)
	}
}

func TestTightBookMidSpreadImbalance(t *testing.T) {
	b := New(1, 0.01)
	b.AddOrder(1, SideBid, 100.00, 80, time.Unix(1, 0))
	b.AddOrder(2, SideAsk, 100.10, 120, time.Unix(1, 0))

	if got := b.Spread(); got < 0.0999 || got > 0.1001 {
		t.Fatalf("spread = %v, want ~0.10", got)
	}
	if got := b.Mid(); got < 100.049 || got > 100.051 {
		t.Fatalf("mid = %v, want ~100.05", got)
	}
	if got := b.Imbalance(); got < -0.2001 || got > -0.1999 {
		t.Fatalf("imbalance = %v, want ~-0.20", got)
	}
}

func TestModifyToZeroEqualsCancel(t *testing.T) {
	base := New(1, 0.01)
	base.AddOrder(7, SideBid, 99.90, 50, time.Unix(1, 0))
	beforeBid, beforeQty := base.BestBid(), base.BidQuantity()

	modified := New(1, 0.01)
	modified.AddOrder(7, SideBid, 99.90, 50, time.Unix(1, 0))
	modified.ModifyOrder(7, 0, time.Unix(2, 0))

	cancelled := New(1, 0.01)
	cancelled.AddOrder(7, SideBid, 99.90, 50, time.Unix(1, 0))
	cancelled.CancelOrder(7, time.Unix(2, 0))

	if modified.BestBid() != cancelled.BestBid() || modified.BidQuantity() != cancelled.BidQuantity() {
		t.Fatalf("modify-to-zero and cancel left different states")
	}
	if modified.BestBid() == beforeBid && modified.BidQuantity() == beforeQty {
		t.Fatalf("modify-to-zero left the level unchanged; it should have evacuated")
	}
	if modified.BestBid() != 0 || modified.BidQuantity() != 0 {
		t.Fatalf("book should be empty after modify-to-zero, got bid=%v qty=%v", modified.BestBid(), modified.BidQuantity())
	}
}

func TestCancelIdempotence(t *testing.T) {
	b := New(1, 0.01)
	b.CancelOrder(999, time.Unix(1, 0)) // unknown id: no-op
	if b.BestBid() != 0 {
		t.Fatalf("cancelling unknown id mutated the book")
	}

	b.AddOrder(1, SideBid, 100, 10, time.Unix(1, 0))
	b.CancelOrder(1, time.Unix(2, 0))
	afterFirst := b.BestBid()
	b.CancelOrder(1, time.Unix(3, 0))
	if b.BestBid() != afterFirst {
		t.Fatalf("double cancel changed book state")
	}
}

func TestFullRefreshIdempotence(t *testing.T) {
	b := New(1, 0.01)
	bids := []Level{{Price: 100, Quantity: 10}, {Price: 99, Quantity: 20}}
	asks := []Level{{Price: 101, Quantity: 15}}

	b.FullRefresh(bids, asks)
	first := b.bids
	b.FullRefresh(bids, asks)
	second := b.bids

	if first != second {
		t.Fatalf("two identical full refreshes produced different book state")
	}
	if b.BestBid() != 100 || b.BestAsk() != 101 {
		t.Fatalf("unexpected bests after refresh: bid=%v ask=%v", b.BestBid(), b.BestAsk())
	}
}

func TestLevelArrayFullWorstIsNoOp(t *testing.T) {
	b := New(1, 0.01)
	for i := 0; i < MaxDepth; i++ {
		b.AddOrder(uint64(i+1), SideBid, 100-float64(i), 10, time.Unix(1, 0))
	}
	// Worse than the current worst resident bid: must be a no-op.
	b.AddOrder(uint64(MaxDepth+1), SideBid, 50, 10, time.Unix(1, 0))
	if _, ok := b.orders[uint64(MaxDepth+1)]; ok {
		t.Fatalf("worse-than-worst insert should not register an order entry side effect on the array")
	}
	if b.bids[MaxDepth-1].Price != 100-float64(MaxDepth-1) {
		t.Fatalf("worst level should be unchanged")
	}
}

func TestOrderSumMatchesLevelSum(t *testing.T) {
	b := New(1, 0.01)
	b.AddOrder(1, SideBid, 100, 10, time.Unix(1, 0))
	b.AddOrder(2, SideBid, 100, 15, time.Unix(1, 0))
	b.ModifyOrder(1, 5, time.Unix(2, 0))
	b.CancelOrder(2, time.Unix(3, 0))

	var orderSum float64
	for _, e := range b.orders {
		if e.Side == SideBid {
			orderSum += e.Quantity
		}
	}
	var levelSum float64
	for _, l := range b.bids {
		levelSum += l.Quantity
	}
	if orderSum != levelSum {
		t.Fatalf("order sum %v != level sum %v", orderSum, levelSum)
	}
}
