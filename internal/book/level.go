// Package book implements the per-symbol L2 limit order book (spec
// §4.3): fixed-capacity sorted price levels, atomic best-bid/ask for
// lock-free reader access, and a per-order-id map for modify/cancel.
// Grounded on the teacher's internal/orders/matching/hft_core.go and
// hft_types.go (atomic-pointer-swapped book map, PriceLevelTree shape)
// and the plain L2 level-array references in other_examples/.
package book

import "time"

// MaxDepth is the standard book's per-side level capacity (spec §3).
const MaxDepth = 20

// Level is one aggregated price level (spec §3). An empty level has
// Quantity == 0 and sorts last on its side.
type Level struct {
	Price      float64
	Quantity   float64
	OrderCount uint32
	LastUpdate time.Time
}

func (l Level) empty() bool {
	return l.Quantity == 0
}

// Side identifies which array a level belongs to, for the tie-break
// comparator used during sorted insertion.
type Side byte

const (
	SideBid Side = 'B'
	SideAsk Side = 'S'
)

// better reports whether level a should sort ahead of level b on the
// given side: descending price for bids, ascending for asks, empty
// slots always last (spec §4.3 "Ordering & tie-breaks").
func better(side Side, a, b Level) bool {
	if a.empty() != b.empty() {
		return !a.empty()
	}
	if a.empty() && b.empty() {
		return false
	}
	if side == SideBid {
		return a.Price > b.Price
	}
	return a.Price < b.Price
}

// priceMatches reports whether two prices are the same level within
// half a tick, per spec §4.3 "Numeric: price equality uses |Δ| < tick_size/2".
func priceMatches(a, b, tickSize float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d < tickSize/2
}
