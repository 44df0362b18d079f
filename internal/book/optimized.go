package book

import (
	"sync"
	"time"
)

// OptimizedDepth is the ultra-low-latency variant's per-side level cap
// (spec §4.3 "Optimized variant").
const OptimizedDepth = 10

// poolSize is the pre-allocated order-record pool capacity.
const poolSize = 10000

// hashSlots is the open-addressed hash table width.
const hashSlots = 16384

// slotFor computes the open-addressing hash index for orderID (spec
// §4.3, §9 "Arena + index": "16K-slot hash of order_id xor
// (order_id >> 16)").
func slotFor(orderID uint64) uint32 {
	return uint32((orderID ^ (orderID >> 16)) % hashSlots)
}

// fastOrderSlot is one pre-allocated order record in the arena.
// Grounded on the teacher's internal/common/pool/trading/fast_order_pool.go
// FastOrder/FastOrderPool, generalized here from a sync.Pool-recycled
// heap object to a fixed-size pre-allocated array indexed by slot
// (spec §9 requires no dynamic allocation on this hot path; a plain
// sync.Pool can still allocate under pressure, which the optimized
// book must never do).
type fastOrderSlot struct {
	inUse    bool
	orderID  uint64
	price    float64
	quantity float64
	side     Side
	ts       time.Time
}

// OptimizedBook is the §4.3 "ultra-low-latency" variant: the same
// add/modify/cancel/trade semantics as Book, but capped at
// OptimizedDepth levels and backed by a pre-allocated order arena
// instead of a map, so the hot path never allocates. It has no
// UpdateQuote or FullRefresh: quote and full-refresh updates are not
// supported on this variant.
type OptimizedBook struct {
	SymbolID uint32
	TickSize float64

	mu sync.Mutex

	bids [OptimizedDepth]Level
	asks [OptimizedDepth]Level

	arena [poolSize]fastOrderSlot
	index [hashSlots]int32 // slot+1 into arena, 0 = empty
	free  []int32          // free arena slot indices

	bestBid atomicFloat
	bestAsk atomicFloat
	bidQty  atomicFloat
	askQty  atomicFloat

	stats Stats
}

// NewOptimized creates an empty optimized book, pre-allocating its
// full arena and free list up front.
func NewOptimized(symbolID uint32, tickSize float64) *OptimizedBook {
	b := &OptimizedBook{SymbolID: symbolID, TickSize: tickSize}
	b.free = make([]int32, poolSize)
	for i := range b.free {
		b.free[i] = int32(i)
	}
	return b
}

func (b *OptimizedBook) levelsFor(side Side) *[OptimizedDepth]Level {
	if side == SideBid {
		return &b.bids
	}
	return &b.asks
}

func (b *OptimizedBook) publishBest(side Side) {
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

func (b *OptimizedBook) BestBid() float64     { return b.bestBid.load() }
func (b *OptimizedBook) BestAsk() float64     { return b.bestAsk.load() }
func (b *OptimizedBook) BidQuantity() float64 { return b.bidQty.load() }
func (b *OptimizedBook) AskQuantity() float64 { return b.askQty.load() }

// lookup finds orderID's arena slot via the open-addressed hash
// table, linear-probing past collisions. Caller holds b.mu.
func (b *OptimizedBook) lookup(orderID uint64) (int32, bool) {
	start := slotFor(orderID)
	for probe := uint32(0); probe < hashSlots; probe++ {
		h := (start + probe) % hashSlots
		slot := b.index[h]
		if slot == 0 {
			return 0, false
		}
		arenaIdx := slot - 1
		if b.arena[arenaIdx].inUse && b.arena[arenaIdx].orderID == orderID {
			return arenaIdx, true
		}
	}
	return 0, false
}

func (b *OptimizedBook) insertIndex(orderID uint64, arenaIdx int32) {
	start := slotFor(orderID)
	for probe := uint32(0); probe < hashSlots; probe++ {
		h := (start + probe) % hashSlots
		if b.index[h] == 0 {
			b.index[h] = arenaIdx + 1
			return
		}
	}
}

func (b *OptimizedBook) removeIndex(orderID uint64) {
	start := slotFor(orderID)
	for probe := uint32(0); probe < hashSlots; probe++ {
		h := (start + probe) % hashSlots
		slot := b.index[h]
		if slot == 0 {
			return
		}
		if b.arena[slot-1].orderID == orderID {
			b.index[h] = 0
			return
		}
	}
}

// AddOrder is the optimized-book equivalent of Book.AddOrder, drawing
// its order record from the pre-allocated arena rather than the heap.
func (b *OptimizedBook) AddOrder(orderID uint64, side Side, price, qty float64, ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if qty <= 0 || len(b.free) == 0 {
		return
	}
	if !b.applyDelta(side, price, qty, ts) {
		return
	}
	n := len(b.free)
	arenaIdx := b.free[n-1]
	b.free = b.free[:n-1]

	b.arena[arenaIdx] = fastOrderSlot{inUse: true, orderID: orderID, price: price, quantity: qty, side: side, ts: ts}
	b.insertIndex(orderID, arenaIdx)
}

// ModifyOrder mirrors Book.ModifyOrder against the arena.
func (b *OptimizedBook) ModifyOrder(orderID uint64, newQty float64, ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	arenaIdx, ok := b.lookup(orderID)
	if !ok {
		return
	}
	entry := &b.arena[arenaIdx]
	if newQty <= 0 {
		b.applyDelta(entry.side, entry.price, -entry.quantity, ts)
		b.releaseSlot(orderID, arenaIdx)
		return
	}
	delta := newQty - entry.quantity
	b.applyDelta(entry.side, entry.price, delta, ts)
	entry.quantity = newQty
	entry.ts = ts
}

// CancelOrder mirrors Book.CancelOrder against the arena. Cancelling
// an unknown order-id is a no-op.
func (b *OptimizedBook) CancelOrder(orderID uint64, ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	arenaIdx, ok := b.lookup(orderID)
	if !ok {
		return
	}
	entry := b.arena[arenaIdx]
	b.applyDelta(entry.side, entry.price, -entry.quantity, ts)
	b.releaseSlot(orderID, arenaIdx)
}

func (b *OptimizedBook) releaseSlot(orderID uint64, arenaIdx int32) {
	b.removeIndex(orderID)
	b.arena[arenaIdx] = fastOrderSlot{}
	b.free = append(b.free, arenaIdx)
}

// applyDelta reports whether the delta landed on a level, as
// Book.applyDelta does.
func (b *OptimizedBook) applyDelta(side Side, price, delta float64, ts time.Time) bool {
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
			copy(levels[idx:], levels[idx+1:])
			levels[OptimizedDepth-1] = Level{}
		}
		b.publishBest(side)
		return true
	}
	if delta <= 0 {
		return false
	}

	newLevel := Level{Price: price, Quantity: delta, OrderCount: 1, LastUpdate: ts}
	pos := len(levels)
	for i := range levels {
		if better(side, newLevel, levels[i]) {
			pos = i
			break
		}
	}
	if pos >= len(levels) {
		return false
	}
	copy(levels[pos+1:], levels[pos:len(levels)-1])
	levels[pos] = newLevel
	b.publishBest(side)
	return true
}

// UpdateTrade mirrors Book.UpdateTrade.
func (b *OptimizedBook) UpdateTrade(price, qty float64, ts time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.LastTradePrice = price
	b.stats.TotalVolume += qty
	b.stats.TradeCount++
	b.stats.LastUpdate = ts
}

// FreeSlots returns the number of unused arena slots, for monitoring
// pool exhaustion.
func (b *OptimizedBook) FreeSlots() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.free)
}
