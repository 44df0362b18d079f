package wire

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		MsgType:        MsgQuote,
		Exchange:       ExchangeBSE,
		MsgLength:      HeaderSize + QuotePayloadSize,
		TimestampNanos: 1690000012345,
		SequenceNumber: 987654321,
	}
	decoded, err := DecodeHeader(EncodeHeader(h))
	require.NoError(t, err)
	assert.Equal(t, h, decoded)
}

func TestDecodeHeaderShortBuffer(t *testing.T) {
	_, err := DecodeHeader(make([]byte, HeaderSize-1))
	assert.ErrorIs(t, err, ErrShortBuffer)
}

func TestValidateHeaderRejectsUnknownMsgType(t *testing.T) {
	err := ValidateHeader(Header{MsgType: 200, Exchange: ExchangeNSE, MsgLength: HeaderSize})
	assert.ErrorIs(t, err, ErrBadMsgType)
}

func TestValidateHeaderRejectsUnknownExchange(t *testing.T) {
	err := ValidateHeader(Header{MsgType: MsgHeartbeat, Exchange: 250, MsgLength: HeaderSize})
	assert.ErrorIs(t, err, ErrBadExchange)
}

func TestValidateHeaderRejectsOutOfBoundsLength(t *testing.T) {
	err := ValidateHeader(Header{MsgType: MsgHeartbeat, Exchange: ExchangeNSE, MsgLength: HeaderSize - 1})
	assert.ErrorIs(t, err, ErrBadLength)

	err = ValidateHeader(Header{MsgType: MsgHeartbeat, Exchange: ExchangeNSE, MsgLength: MaxMessage + 1})
	assert.ErrorIs(t, err, ErrBadLength)
}

func TestTradeRoundTrip(t *testing.T) {
	want := Trade{
		SymbolID:       11,
		TradeID:        99999,
		Price:          3475.25,
		Quantity:       250,
		BuyerBroker:    "ABC",
		SellerBroker:   "XYZCORP", // exactly 7 chars, fits in 8-byte field
		TradeTimeNanos: 1690000000111,
	}
	got, err := decodeTrade(EncodeTrade(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTradeValidation(t *testing.T) {
	assert.Error(t, validateTrade(Trade{Price: 0, Quantity: 1}))
	assert.Error(t, validateTrade(Trade{Price: MaxPrice + 1, Quantity: 1}))
	assert.Error(t, validateTrade(Trade{Price: 1, Quantity: 0}))
	assert.Error(t, validateTrade(Trade{Price: 1, Quantity: MaxQuantity + 1}))
	assert.NoError(t, validateTrade(Trade{Price: 1, Quantity: 1}))
}

func TestQuoteRoundTrip(t *testing.T) {
	want := Quote{
		SymbolID: 55,
		BidPrice: 100, BidQty: 10,
		AskPrice: 101, AskQty: 20,
		QuoteTimeNanos: 1690000000222,
	}
	for i := 0; i < QuoteLevels; i++ {
		want.BidLevels[i] = QuoteLevel{Price: float64(100 - i), Quantity: float64(10 * (i + 1)), NumOrders: uint32(i + 1)}
		want.AskLevels[i] = QuoteLevel{Price: float64(101 + i), Quantity: float64(20 * (i + 1)), NumOrders: uint32(i + 2)}
	}
	got, err := decodeQuote(EncodeQuote(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestQuoteIsCrossed(t *testing.T) {
	assert.True(t, Quote{BidPrice: 10, AskPrice: 10}.IsCrossed())
	assert.True(t, Quote{BidPrice: 11, AskPrice: 10}.IsCrossed())
	assert.False(t, Quote{BidPrice: 9, AskPrice: 10}.IsCrossed())
	assert.False(t, Quote{BidPrice: 0, AskPrice: 10}.IsCrossed())
	assert.False(t, Quote{BidPrice: 10, AskPrice: 0}.IsCrossed())
}

func TestOrderUpdateRoundTrip(t *testing.T) {
	want := OrderUpdate{
		SymbolID: 3, OrderID: 777, Side: SideBuy,
		Price: 250.5, Quantity: 10, DisclosedQty: 5,
		Status: StatusModified, OrderTimeNanos: 1690000000333,
	}
	got, err := decodeOrderUpdate(EncodeOrderUpdate(want))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestOrderUpdateRejectsUnknownStatus(t *testing.T) {
	err := validateOrderUpdate(OrderUpdate{Price: 1, Quantity: 1, Status: 'X'})
	assert.ErrorIs(t, err, ErrBadStatus)
}

func TestFloatFieldIsLittleEndian(t *testing.T) {
	buf := make([]byte, 8)
	putFloat64(buf, 2500.50)
	// little-endian IEEE-754: low-order mantissa byte comes first. A
	// big-endian decode of the same bytes would not reproduce the value.
	assert.Equal(t, math.Float64bits(2500.50), binary.LittleEndian.Uint64(buf))
	assert.Equal(t, 2500.50, getFloat64(buf))
}
