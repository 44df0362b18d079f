package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func frame(msgType MsgType, exchange Exchange, payload []byte) []byte {
	h := Header{
		MsgType:        msgType,
		Exchange:       exchange,
		MsgLength:      uint16(HeaderSize + len(payload)),
		TimestampNanos: time.Now().UnixNano(),
		SequenceNumber: 1,
	}
	return append(EncodeHeader(h), payload...)
}

func sampleTrade() Trade {
	return Trade{
		SymbolID:       42,
		TradeID:        1001,
		Price:          2500.50,
		Quantity:       100,
		BuyerBroker:    "BRK001",
		SellerBroker:   "BRK002",
		TradeTimeNanos: 1690000000000,
	}
}

func TestCodecRoundTripTrade(t *testing.T) {
	var got Trade
	codec := NewCodec(Handlers{
		OnTrade: func(tr Trade) { got = tr },
	}, nil, zap.NewNop())

	want := sampleTrade()
	buf := frame(MsgTrade, ExchangeNSE, EncodeTrade(want))

	consumed := codec.ParseBuffer(buf)
	assert.Equal(t, len(buf), consumed)
	assert.Equal(t, want, got)

	processed, parseErrors, _, _ := codec.Stats()
	assert.Equal(t, uint64(1), processed)
	assert.Equal(t, uint64(0), parseErrors)
}

func TestCodecPartialPayloadRetainedAcrossCalls(t *testing.T) {
	var got Trade
	codec := NewCodec(Handlers{
		OnTrade: func(tr Trade) { got = tr },
	}, nil, zap.NewNop())

	want := sampleTrade()
	buf := frame(MsgTrade, ExchangeNSE, EncodeTrade(want))

	// Feed one byte at a time; the frame must still assemble correctly.
	total := 0
	for i := 0; i < len(buf); i++ {
		total += codec.ParseBuffer(buf[i : i+1])
	}
	assert.Equal(t, len(buf), total)
	assert.Equal(t, want, got)
}

func TestCodecMultipleFramesInOneBuffer(t *testing.T) {
	var trades []Trade
	codec := NewCodec(Handlers{
		OnTrade: func(tr Trade) { trades = append(trades, tr) },
	}, nil, zap.NewNop())

	t1 := sampleTrade()
	t2 := sampleTrade()
	t2.TradeID = 1002

	buf := append(frame(MsgTrade, ExchangeNSE, EncodeTrade(t1)), frame(MsgTrade, ExchangeNSE, EncodeTrade(t2))...)

	consumed := codec.ParseBuffer(buf)
	assert.Equal(t, len(buf), consumed)
	require.Len(t, trades, 2)
	assert.Equal(t, t1, trades[0])
	assert.Equal(t, t2, trades[1])
}

func TestCodecBoundaryAtMaxMessage(t *testing.T) {
	processedCount := 0
	codec := NewCodec(Handlers{
		OnMarketStatus: func(MarketStatus) { processedCount++ },
	}, nil, zap.NewNop())

	// Pad a MARKET_STATUS payload out so the full frame lands exactly
	// at MaxMessage, per spec §8's boundary law.
	payload := make([]byte, MaxMessage-HeaderSize)
	payload[3] = 'O' // Status byte within MarketStatusPayloadSize prefix
	buf := frame(MsgMarketStatus, ExchangeNSE, payload)
	require.Len(t, buf, MaxMessage)

	consumed := codec.ParseBuffer(buf)
	assert.Equal(t, len(buf), consumed)
	_, parseErrors, _, _ := codec.Stats()
	assert.Equal(t, uint64(0), parseErrors)
}

func TestCodecRejectsOversizeFrame(t *testing.T) {
	codec := NewCodec(Handlers{}, nil, zap.NewNop())

	h := Header{
		MsgType:   MsgMarketStatus,
		Exchange:  ExchangeNSE,
		MsgLength: MaxMessage + 1,
	}
	buf := EncodeHeader(h)

	codec.ParseBuffer(buf)
	_, parseErrors, _, _ := codec.Stats()
	assert.Equal(t, uint64(1), parseErrors) // header validation rejects before payload accumulation, but still counts
}

func TestCodecCrossedQuoteAdmittedAndCounted(t *testing.T) {
	var got Quote
	codec := NewCodec(Handlers{
		OnQuote: func(q Quote) { got = q },
	}, nil, zap.NewNop())

	q := Quote{
		SymbolID: 7,
		BidPrice: 100.50,
		BidQty:   10,
		AskPrice: 100.25, // crossed: bid >= ask
		AskQty:   10,
	}
	buf := frame(MsgQuote, ExchangeNSE, EncodeQuote(q))

	codec.ParseBuffer(buf)
	assert.Equal(t, q.SymbolID, got.SymbolID)
	assert.True(t, got.IsCrossed())

	processed, parseErrors, crossed, _ := codec.Stats()
	assert.Equal(t, uint64(1), processed)
	assert.Equal(t, uint64(0), parseErrors)
	assert.Equal(t, uint64(1), crossed)
}

func TestCodecMalformedPayloadIncrementsParseErrors(t *testing.T) {
	codec := NewCodec(Handlers{}, nil, zap.NewNop())

	// TRADE payload with an out-of-bounds price.
	bad := sampleTrade()
	bad.Price = -1
	buf := frame(MsgTrade, ExchangeNSE, EncodeTrade(bad))

	codec.ParseBuffer(buf)
	processed, parseErrors, _, _ := codec.Stats()
	assert.Equal(t, uint64(0), processed)
	assert.Equal(t, uint64(1), parseErrors)
}

func TestCodecUnknownMsgTypeGoesToErrorState(t *testing.T) {
	codec := NewCodec(Handlers{}, nil, zap.NewNop())

	h := Header{
		MsgType:   99,
		Exchange:  ExchangeNSE,
		MsgLength: HeaderSize,
	}
	buf := EncodeHeader(h)

	consumed := codec.ParseBuffer(buf)
	assert.Equal(t, len(buf), consumed)
	assert.Equal(t, WaitingHeader, codec.state)

	_, parseErrors, _, _ := codec.Stats()
	assert.Equal(t, uint64(1), parseErrors)
}

func TestCodecRateLimiterDropsOverBudget(t *testing.T) {
	var onTradeCalls int
	limiter := NewTokenBucket(1, 1) // 1 msg/s, burst 1: second message this instant is dropped
	codec := NewCodec(Handlers{
		OnTrade: func(Trade) { onTradeCalls++ },
	}, limiter, zap.NewNop())

	buf := frame(MsgTrade, ExchangeNSE, EncodeTrade(sampleTrade()))
	codec.ParseBuffer(buf)
	codec.ParseBuffer(buf)

	assert.Equal(t, 1, onTradeCalls)
	_, _, _, rateLimited := codec.Stats()
	assert.Equal(t, uint64(HeaderSize+TradePayloadSize), rateLimited) // the dropped frame's bytes
}
