package book

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goldearn/hft-core/internal/metrics"
	"github.com/goldearn/hft-core/internal/wire"
)

// orderEntry is the per-order-id record spec §3 requires: "a per-
// order-id map {price, quantity, side, timestamp}".
type orderEntry struct {
	Price     float64
	Quantity  float64
	Side      Side
	Timestamp time.Time
}

// Stats mirrors spec §3's order-book statistics block.
type Stats struct {
	TotalVolume     float64
	TradeCount      uint64
	LastTradePrice  float64
	LastUpdate      time.Time
}

// Book is a single symbol's L2 order book. It has a single writer
// (spec §5 "Shared-resource policy"); all add/modify/cancel/trade/
// quote/refresh calls must come from that one goroutine. Readers call
// the atomic-returning accessors (BestBid, BestAsk, …) from any
// goroutine without synchronizing with the writer.
type Book struct {
	SymbolID uint32
	TickSize float64

	mu sync.Mutex // guards bids/asks/orders; writer-side only, not needed by readers

	bids [MaxDepth]Level
	asks [MaxDepth]Level

	orders map[uint64]orderEntry

	bestBid    atomicFloat
	bestAsk    atomicFloat
	bidQty     atomicFloat
	askQty     atomicFloat

	stats Stats

	latency *metrics.LatencyHistogram
}

// New creates an empty book for symbolID with the given tick size.
func New(symbolID uint32, tickSize float64) *Book {
	return &Book{
		SymbolID: symbolID,
		TickSize: tickSize,
		orders:   make(map[uint64]orderEntry),
		latency: metrics.NewLatencyHistogram(
			"book_update_latency_ns",
			"per-update latency of the order book hot path",
			[]float64{100, 250, 500, 1000, 2500, 5000, 10000, 25000, 50000, 100000},
		),
	}
}

// atomicFloat stores a float64 behind an atomic uint64 bit pattern so
// readers never observe a torn write (spec §4.3 "Concurrency").
type atomicFloat struct{ bits uint64 }

func (a *atomicFloat) store(v float64) { atomic.StoreUint64(&a.bits, math.Float64bits(v)) }
func (a *atomicFloat) load() float64   { return math.Float64frombits(atomic.LoadUint64(&a.bits)) }

// BestBid returns the current best bid price, 0 if the bid side is
// empty. Lock-free.
func (b *Book) BestBid() float64 { return b.bestBid.load() }

// BestAsk returns the current best ask price, 0 if the ask side is
// empty. Lock-free.
func (b *Book) BestAsk() float64 { return b.bestAsk.load() }

// BidQuantity returns the best bid's aggregated quantity.
func (b *Book) BidQuantity() float64 { return b.bidQty.load() }

// AskQuantity returns the best ask's aggregated quantity.
func (b *Book) AskQuantity() float64 { return b.askQty.load() }

// Spread returns ask - bid, or 0 when either side of the book is
// empty. A caller wanting a consistent snapshot should read
// BestBid/BestAsk once each and derive from those locals, since the
// two atomics update independently (spec §5).
func (b *Book) Spread() float64 {
	bid, ask := b.BestBid(), b.BestAsk()
	if bid == 0 || ask == 0 {
		return 0
	}
	return ask - bid
}

// Mid returns (bid+ask)/2.
func (b *Book) Mid() float64 { return (b.BestBid() + b.BestAsk()) / 2 }

// Imbalance returns (bidQty-askQty)/(bidQty+askQty), saturating at ±1
// when one side is empty (spec §4.3).
func (b *Book) Imbalance() float64 {
	bq, aq := b.BidQuantity(), b.AskQuantity()
	if bq == 0 && aq == 0 {
		return 0
	}
	if aq == 0 {
		return 1
	}
	if bq == 0 {
		return -1
	}
	return (bq - aq) / (bq + aq)
}

// VWAP sums price*qty across up to depth levels on side and divides by
// the summed quantity (spec §4.3). It walks the level array directly
// rather than the published atomics, so it takes the writer mutex for
// the duration of the walk.
func (b *Book) VWAP(side Side, depth int) float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	levels := b.levelsFor(side)
	if depth > len(levels) {
		depth = len(levels)
	}
	var pq, q float64
	for i := 0; i < depth; i++ {
		if levels[i].empty() {
			break
		}
		pq += levels[i].Price * levels[i].Quantity
		q += levels[i].Quantity
	}
	if q == 0 {
		return 0
	}
	return pq / q
}

func (b *Book) levelsFor(side Side) *[MaxDepth]Level {
	if side == SideBid {
		return &b.bids
	}
	return &b.asks
}

func (b *Book) publishBest(side Side) {
	levels := b.levelsFor(side)
	price, qty := 0.0, 0.0
	if !levels[0].empty() {
		price, qty = levels[0].Price, levels[0].Quantity
	}
	if side == SideBid {
		b.bestBid.store(price)
		b.bidQty.store(qty)
	} else {
		b.bestAsk.store(price)
		b.askQty.store(qty)
	}
}

// timed wraps a writer-path mutation with the running-latency recorder
// spec §4.3 requires ("running average update latency").
func (b *Book) timed(fn func()) {
	start := time.Now()
	fn()
	b.latency.Observe(time.Since(start))
}

// AddOrder records a new order and aggregates it into its price level,
// inserting a new level in sorted position if none matches within
// tick_size/2 (spec §4.3).
func (b *Book) AddOrder(orderID uint64, side Side, price, qty float64, ts time.Time) {
	b.timed(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if qty <= 0 {
			return
		}
		if b.applyDelta(side, price, qty, ts) {
			b.orders[orderID] = orderEntry{Price: price, Quantity: qty, Side: side, Timestamp: ts}
		}
	})
}

// ModifyOrder updates an existing order's quantity, applying the delta
// to its level; new_qty == 0 is equivalent to cancel (spec §4.3,
// §8 "Modify-to-zero ≡ cancel").
func (b *Book) ModifyOrder(orderID uint64, newQty float64, ts time.Time) {
	b.timed(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		entry, ok := b.orders[orderID]
		if !ok {
			return
		}
		if newQty <= 0 {
			b.applyDelta(entry.Side, entry.Price, -entry.Quantity, ts)
			delete(b.orders, orderID)
			return
		}
		delta := newQty - entry.Quantity
		b.applyDelta(entry.Side, entry.Price, delta, ts)
		entry.Quantity = newQty
		entry.Timestamp = ts
		b.orders[orderID] = entry
	})
}

// CancelOrder removes an order, applying a negative delta to its
// level and evacuating the level if it drops to zero. Cancelling an
// unknown order-id is a no-op (spec §8 "Cancel idempotence").
func (b *Book) CancelOrder(orderID uint64, ts time.Time) {
	b.timed(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		entry, ok := b.orders[orderID]
		if !ok {
			return
		}
		b.applyDelta(entry.Side, entry.Price, -entry.Quantity, ts)
		delete(b.orders, orderID)
	})
}

// applyDelta adds delta quantity at price on side, inserting, merging
// into, or evacuating a level as needed. Caller holds b.mu. It reports
// whether the delta actually landed on a level — false means the
// level array was full and the caller's order must not be recorded,
// since it has nowhere to be accounted for (spec §4.3, §8 "Level
// array full").
func (b *Book) applyDelta(side Side, price, delta float64, ts time.Time) bool {
	levels := b.levelsFor(side)

	idx := -1
	for i := range levels {
		if !levels[i].empty() && priceMatches(levels[i].Price, price, b.TickSize) {
			idx = i
			break
		}
	}

	if idx >= 0 {
		levels[idx].Quantity += delta
		levels[idx].LastUpdate = ts
		if levels[idx].Quantity <= 0 {
			b.evacuate(levels, idx)
		} else {
			b.resortFrom(side, levels, idx)
		}
		b.publishBest(side)
		return true
	}

	if delta <= 0 {
		return false // nothing to cancel/reduce in an absent level
	}

	newLevel := Level{Price: price, Quantity: delta, OrderCount: 1, LastUpdate: ts}
	if !b.insertSorted(side, levels, newLevel) {
		return false
	}
	b.publishBest(side)
	return true
}

// evacuate removes the level at idx by shifting everything after it
// left and zeroing the vacated tail slot.
func (b *Book) evacuate(levels *[MaxDepth]Level, idx int) {
	copy(levels[idx:], levels[idx+1:])
	levels[MaxDepth-1] = Level{}
}

// resortFrom restores sort order after idx's quantity changed without
// changing its price — a no-op under current ordering rules since
// price (the only sort key) didn't move, kept for clarity/extension.
func (b *Book) resortFrom(side Side, levels *[MaxDepth]Level, idx int) {}

// insertSorted inserts newLevel into levels at its sorted position,
// shifting lower-priority entries toward higher indices and truncating
// beyond MaxDepth (spec §4.3, §8 "Level array full"). It reports
// whether the level was actually placed; false means newLevel was
// worse than every resident level and the array is effectively full.
func (b *Book) insertSorted(side Side, levels *[MaxDepth]Level, newLevel Level) bool {
	pos := len(levels)
	for i := range levels {
		if better(side, newLevel, levels[i]) {
			pos = i
			break
		}
	}
	if pos >= len(levels) {
		return false // worse than worst resident level and array is effectively full: no-op
	}
	copy(levels[pos+1:], levels[pos:len(levels)-1])
	levels[pos] = newLevel
	return true
}

// UpdateTrade folds a trade print into the book's running statistics.
// Book levels are not consumed by trades (spec §4.3): they are
// maintained solely via the order stream.
func (b *Book) UpdateTrade(price, qty float64, ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.LastTradePrice = price
	b.stats.TotalVolume += qty
	b.stats.TradeCount++
	b.stats.LastUpdate = ts
}

// UpdateQuote replaces the atomic best prices/quantities and the
// five-deep level arrays bit-for-bit from an inbound QUOTE message
// (spec §4.3).
func (b *Book) UpdateQuote(q wire.Quote) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := 0; i < wire.QuoteLevels; i++ {
		b.bids[i] = Level{Price: q.BidLevels[i].Price, Quantity: q.BidLevels[i].Quantity, OrderCount: q.BidLevels[i].NumOrders}
		b.asks[i] = Level{Price: q.AskLevels[i].Price, Quantity: q.AskLevels[i].Quantity, OrderCount: q.AskLevels[i].NumOrders}
	}
	for i := wire.QuoteLevels; i < MaxDepth; i++ {
		b.bids[i] = Level{}
		b.asks[i] = Level{}
	}

	b.bestBid.store(q.BidPrice)
	b.bidQty.store(q.BidQty)
	b.bestAsk.store(q.AskPrice)
	b.askQty.store(q.AskQty)
}

// FullRefresh clears both sides and copies up to MaxDepth levels from
// each, then republishes the atomic bests (spec §4.3). Two identical
// refreshes leave the book byte-identical after the second (spec §8
// "Full-refresh idempotence").
func (b *Book) FullRefresh(bids, asks []Level) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids = [MaxDepth]Level{}
	b.asks = [MaxDepth]Level{}
	n := len(bids)
	if n > MaxDepth {
		n = MaxDepth
	}
	copy(b.bids[:n], bids[:n])
	n = len(asks)
	if n > MaxDepth {
		n = MaxDepth
	}
	copy(b.asks[:n], asks[:n])

	b.publishBest(SideBid)
	b.publishBest(SideAsk)
}

// StatsSnapshot returns a copy of the running statistics.
func (b *Book) StatsSnapshot() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// AvgUpdateLatencyNanos returns the running average update latency
// (spec §4.3 "running average update latency").
func (b *Book) AvgUpdateLatencyNanos() uint64 {
	_, avg, _, _ := b.latency.Snapshot()
	return avg
}
