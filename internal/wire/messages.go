package wire

import (
	"encoding/binary"
	"math"
)

// getFloat64/putFloat64 decode/encode the wire's fixed-point-free
// double fields. Per DESIGN.md's Open Question decision, these are
// IEEE-754 little-endian on the wire (exchange-specific, preserved
// bit-exact) while the surrounding integer fields stay big-endian.
func getFloat64(buf []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(buf))
}

func putFloat64(buf []byte, v float64) {
	binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
}

// nulTerminated forcibly NUL-terminates a fixed-width broker-id field,
// per spec §4.1 "Broker-id strings are forcibly NUL-terminated."
func nulTerminated(raw [8]byte) string {
	for i, b := range raw {
		if b == 0 {
			return string(raw[:i])
		}
	}
	return string(raw[:])
}

func putBrokerID(dst *[8]byte, id string) {
	n := copy(dst[:], id)
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
}

// Trade is the TRADE payload (spec §3).
type Trade struct {
	SymbolID     uint32
	TradeID      uint64
	Price        float64
	Quantity     float64
	BuyerBroker  string
	SellerBroker string
	TradeTimeNanos int64
}

// TradePayloadSize is the fixed encoded size of a Trade payload.
const TradePayloadSize = 4 + 8 + 8 + 8 + 8 + 8 + 8

func decodeTrade(buf []byte) (Trade, error) {
	if len(buf) < TradePayloadSize {
		return Trade{}, ErrShortBuffer
	}
	var t Trade
	t.SymbolID = binary.BigEndian.Uint32(buf[0:4])
	t.TradeID = binary.BigEndian.Uint64(buf[4:12])
	t.Price = getFloat64(buf[12:20])
	t.Quantity = getFloat64(buf[20:28])
	var buyer, seller [8]byte
	copy(buyer[:], buf[28:36])
	copy(seller[:], buf[36:44])
	t.BuyerBroker = nulTerminated(buyer)
	t.SellerBroker = nulTerminated(seller)
	t.TradeTimeNanos = int64(binary.BigEndian.Uint64(buf[44:52]))
	return t, nil
}

// EncodeTrade is the inverse of decodeTrade, used by tests and frame
// producers.
func EncodeTrade(t Trade) []byte {
	buf := make([]byte, TradePayloadSize)
	binary.BigEndian.PutUint32(buf[0:4], t.SymbolID)
	binary.BigEndian.PutUint64(buf[4:12], t.TradeID)
	putFloat64(buf[12:20], t.Price)
	putFloat64(buf[20:28], t.Quantity)
	var buyer, seller [8]byte
	putBrokerID(&buyer, t.BuyerBroker)
	putBrokerID(&seller, t.SellerBroker)
	copy(buf[28:36], buyer[:])
	copy(buf[36:44], seller[:])
	binary.BigEndian.PutUint64(buf[44:52], uint64(t.TradeTimeNanos))
	return buf
}

func validateTrade(t Trade) error {
	if t.Price <= 0 || t.Price > MaxPrice {
		return ErrBadPrice
	}
	if t.Quantity <= 0 || t.Quantity > MaxQuantity {
		return ErrBadQuantity
	}
	return nil
}

// QuoteLevel is one depth level within a Quote (spec §3).
type QuoteLevel struct {
	Price     float64
	Quantity  float64
	NumOrders uint32
}

const quoteLevelSize = 8 + 8 + 4

func decodeQuoteLevel(buf []byte) QuoteLevel {
	return QuoteLevel{
		Price:     getFloat64(buf[0:8]),
		Quantity:  getFloat64(buf[8:16]),
		NumOrders: binary.BigEndian.Uint32(buf[16:20]),
	}
}

func encodeQuoteLevel(buf []byte, l QuoteLevel) {
	putFloat64(buf[0:8], l.Price)
	putFloat64(buf[8:16], l.Quantity)
	binary.BigEndian.PutUint32(buf[16:20], l.NumOrders)
}

// Quote is the QUOTE payload (spec §3). Crossed quotes (bid >= ask,
// both > 0) are admitted but flagged by the caller; the codec itself
// does not reject them.
type Quote struct {
	SymbolID  uint32
	BidPrice  float64
	BidQty    float64
	AskPrice  float64
	AskQty    float64
	BidLevels [QuoteLevels]QuoteLevel
	AskLevels [QuoteLevels]QuoteLevel
	QuoteTimeNanos int64
}

// QuotePayloadSize is the fixed encoded size of a Quote payload.
const QuotePayloadSize = 4 + 8 + 8 + 8 + 8 + quoteLevelSize*QuoteLevels*2 + 8

func decodeQuote(buf []byte) (Quote, error) {
	if len(buf) < QuotePayloadSize {
		return Quote{}, ErrShortBuffer
	}
	var q Quote
	q.SymbolID = binary.BigEndian.Uint32(buf[0:4])
	q.BidPrice = getFloat64(buf[4:12])
	q.BidQty = getFloat64(buf[12:20])
	q.AskPrice = getFloat64(buf[20:28])
	q.AskQty = getFloat64(buf[28:36])

	off := 36
	for i := 0; i < QuoteLevels; i++ {
		q.BidLevels[i] = decodeQuoteLevel(buf[off : off+quoteLevelSize])
		off += quoteLevelSize
	}
	for i := 0; i < QuoteLevels; i++ {
		q.AskLevels[i] = decodeQuoteLevel(buf[off : off+quoteLevelSize])
		off += quoteLevelSize
	}
	q.QuoteTimeNanos = int64(binary.BigEndian.Uint64(buf[off : off+8]))
	return q, nil
}

// EncodeQuote is the inverse of decodeQuote.
func EncodeQuote(q Quote) []byte {
	buf := make([]byte, QuotePayloadSize)
	binary.BigEndian.PutUint32(buf[0:4], q.SymbolID)
	putFloat64(buf[4:12], q.BidPrice)
	putFloat64(buf[12:20], q.BidQty)
	putFloat64(buf[20:28], q.AskPrice)
	putFloat64(buf[28:36], q.AskQty)

	off := 36
	for i := 0; i < QuoteLevels; i++ {
		encodeQuoteLevel(buf[off:off+quoteLevelSize], q.BidLevels[i])
		off += quoteLevelSize
	}
	for i := 0; i < QuoteLevels; i++ {
		encodeQuoteLevel(buf[off:off+quoteLevelSize], q.AskLevels[i])
		off += quoteLevelSize
	}
	binary.BigEndian.PutUint64(buf[off:off+8], uint64(q.QuoteTimeNanos))
	return buf
}

// IsCrossed reports whether the quote is crossed (spec §4.1, §8):
// bid >= ask with both sides present.
func (q Quote) IsCrossed() bool {
	return q.BidPrice > 0 && q.AskPrice > 0 && q.BidPrice >= q.AskPrice
}

func validateQuote(q Quote) error {
	if q.BidPrice < 0 || q.BidPrice > MaxPrice {
		return ErrBadPrice
	}
	if q.AskPrice < 0 || q.AskPrice > MaxPrice {
		return ErrBadPrice
	}
	return nil
}

// OrderUpdate is the ORDER_UPDATE payload (spec §3).
type OrderUpdate struct {
	SymbolID      uint32
	OrderID       uint64
	Side          OrderSide
	Price         float64
	Quantity      float64
	DisclosedQty  float64
	Status        OrderUpdateStatus
	OrderTimeNanos int64
}

// OrderUpdatePayloadSize is the fixed encoded size of an OrderUpdate
// payload.
const OrderUpdatePayloadSize = 4 + 8 + 1 + 8 + 8 + 8 + 1 + 8

func decodeOrderUpdate(buf []byte) (OrderUpdate, error) {
	if len(buf) < OrderUpdatePayloadSize {
		return OrderUpdate{}, ErrShortBuffer
	}
	var o OrderUpdate
	o.SymbolID = binary.BigEndian.Uint32(buf[0:4])
	o.OrderID = binary.BigEndian.Uint64(buf[4:12])
	o.Side = OrderSide(buf[12])
	o.Price = getFloat64(buf[13:21])
	o.Quantity = getFloat64(buf[21:29])
	o.DisclosedQty = getFloat64(buf[29:37])
	o.Status = OrderUpdateStatus(buf[37])
	o.OrderTimeNanos = int64(binary.BigEndian.Uint64(buf[38:46]))
	return o, nil
}

// EncodeOrderUpdate is the inverse of decodeOrderUpdate.
func EncodeOrderUpdate(o OrderUpdate) []byte {
	buf := make([]byte, OrderUpdatePayloadSize)
	binary.BigEndian.PutUint32(buf[0:4], o.SymbolID)
	binary.BigEndian.PutUint64(buf[4:12], o.OrderID)
	buf[12] = byte(o.Side)
	putFloat64(buf[13:21], o.Price)
	putFloat64(buf[21:29], o.Quantity)
	putFloat64(buf[29:37], o.DisclosedQty)
	buf[37] = byte(o.Status)
	binary.BigEndian.PutUint64(buf[38:46], uint64(o.OrderTimeNanos))
	return buf
}

func validateOrderUpdate(o OrderUpdate) error {
	if o.Price <= 0 || o.Price > MaxPrice {
		return ErrBadPrice
	}
	if o.Quantity <= 0 || o.Quantity > MaxQuantity {
		return ErrBadQuantity
	}
	switch o.Status {
	case StatusNew, StatusModified, StatusCancelled:
	default:
		return ErrBadStatus
	}
	return nil
}

// MarketStatus is the MARKET_STATUS payload (SPEC_FULL.md §3 —
// named in the header enum but not detailed in spec.md).
type MarketStatus struct {
	Exchange  Exchange
	Segment   uint16
	Status    byte // 'P'=PRE_OPEN 'O'=OPEN 'C'=CLOSED 'H'=HALTED
	TimestampNanos int64
}

const MarketStatusPayloadSize = 1 + 2 + 1 + 8

func decodeMarketStatus(buf []byte) (MarketStatus, error) {
	if len(buf) < MarketStatusPayloadSize {
		return MarketStatus{}, ErrShortBuffer
	}
	return MarketStatus{
		Exchange:       Exchange(buf[0]),
		Segment:        binary.BigEndian.Uint16(buf[1:3]),
		Status:         buf[3],
		TimestampNanos: int64(binary.BigEndian.Uint64(buf[4:12])),
	}, nil
}

// IndexUpdate is the INDEX_UPDATE payload (SPEC_FULL.md §3).
type IndexUpdate struct {
	IndexID   uint32
	Value     float64
	TimestampNanos int64
}

const IndexUpdatePayloadSize = 4 + 8 + 8

func decodeIndexUpdate(buf []byte) (IndexUpdate, error) {
	if len(buf) < IndexUpdatePayloadSize {
		return IndexUpdate{}, ErrShortBuffer
	}
	return IndexUpdate{
		IndexID:        binary.BigEndian.Uint32(buf[0:4]),
		Value:          getFloat64(buf[4:12]),
		TimestampNanos: int64(binary.BigEndian.Uint64(buf[12:20])),
	}, nil
}

// Heartbeat carries no payload beyond the header.
type Heartbeat struct {
	TimestampNanos int64
}
