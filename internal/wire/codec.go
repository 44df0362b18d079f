package wire

import (
	"sync"

	"github.com/goldearn/hft-core/internal/metrics"
	"go.uber.org/zap"
)

// State is one of the four codec states of spec §4.1.
type State int

const (
	WaitingHeader State = iota
	ReadingPayload
	MessageComplete
	Error
)

// Codec is the per-connection byte-stream state machine of spec §4.1.
// It is not safe for concurrent ParseBuffer calls from multiple
// goroutines — one feed receiver drives one Codec, matching §5's
// single-writer-per-connection ordering guarantee.
type Codec struct {
	mu sync.Mutex // guards the buffer/state fields only; dispatch runs outside the lock

	state  State
	buf    []byte // accumulated bytes for the in-flight frame
	header Header

	limiter *TokenBucket

	handlers Handlers
	logger   *zap.Logger

	messagesProcessed *metrics.Counter
	parseErrors       *metrics.Counter
	crossedQuotes     *metrics.Counter
	rateLimited       *metrics.Counter
}

// NewCodec creates a Codec dispatching through handlers, rate-limited
// by limiter (pass nil to disable rate limiting, e.g. in tests). A
// callback panic is logged, then passed to handlers.OnPanic if set.
func NewCodec(handlers Handlers, limiter *TokenBucket, logger *zap.Logger) *Codec {
	userOnPanic := handlers.OnPanic
	handlers.OnPanic = func(msgType MsgType, recovered interface{}) {
		if logger != nil {
			logger.Error("wire: callback panicked", zap.Uint8("msg_type", uint8(msgType)), zap.Any("panic", recovered))
		}
		if userOnPanic != nil {
			userOnPanic(msgType, recovered)
		}
	}
	return &Codec{
		state:             WaitingHeader,
		limiter:           limiter,
		handlers:          handlers,
		logger:            logger,
		messagesProcessed: metrics.NewCounter("wire_messages_processed_total", "messages successfully dispatched"),
		parseErrors:       metrics.NewCounter("wire_parse_errors_total", "frames dropped for parse/validation failure"),
		crossedQuotes:     metrics.NewCounter("wire_crossed_quotes_total", "quote messages observed with bid >= ask"),
		rateLimited:       metrics.NewCounter("wire_rate_limited_bytes_total", "bytes dropped by the token-bucket limiter"),
	}
}

// Stats exposes the codec's running counters (spec §8: "Messages-
// processed + parse-errors equals the number of complete frames
// observed by the codec.").
func (c *Codec) Stats() (messagesProcessed, parseErrors, crossedQuotes, rateLimited uint64) {
	return c.messagesProcessed.Load(), c.parseErrors.Load(), c.crossedQuotes.Load(), c.rateLimited.Load()
}

// ParseBuffer feeds newly received bytes into the state machine. It
// may be called repeatedly with partial data — a partial payload is
// retained across calls (spec §4.1). It returns the number of bytes
// consumed from data; callers that read into a shared buffer should
// discard that many bytes before the next read.
func (c *Codec) ParseBuffer(data []byte) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	consumed := 0
	for consumed < len(data) {
		switch c.state {
		case WaitingHeader:
			consumed += c.feedHeader(data[consumed:])
		case ReadingPayload:
			consumed += c.feedPayload(data[consumed:])
		case MessageComplete:
			c.completeMessage()
		case Error:
			c.reset()
		default:
			c.reset()
		}
		if c.state == WaitingHeader && len(c.buf) == 0 && consumed >= len(data) {
			break
		}
	}

	// Drain any pending MESSAGE_COMPLETE/ERROR transitions that don't
	// consume further input bytes.
	for c.state == MessageComplete {
		c.completeMessage()
	}
	for c.state == Error {
		c.reset()
	}

	return consumed
}

func (c *Codec) feedHeader(data []byte) int {
	need := HeaderSize - len(c.buf)
	take := need
	if take > len(data) {
		take = len(data)
	}
	c.buf = append(c.buf, data[:take]...)

	if len(c.buf) < HeaderSize {
		return take
	}

	h, err := DecodeHeader(c.buf)
	if err != nil {
		c.parseErrors.Inc()
		c.state = Error
		return take
	}
	if err := ValidateHeader(h); err != nil {
		c.logger.Warn("wire: header validation failed", zap.Error(err), zap.Uint8("msg_type", uint8(h.MsgType)))
		c.parseErrors.Inc()
		c.state = Error
		return take
	}

	c.header = h
	c.buf = c.buf[:0]
	c.state = ReadingPayload
	return take
}

func (c *Codec) feedPayload(data []byte) int {
	payloadLen := int(c.header.MsgLength) - HeaderSize
	if payloadLen < 0 {
		c.parseErrors.Inc()
		c.state = Error
		return 0
	}
	need := payloadLen - len(c.buf)
	take := need
	if take > len(data) {
		take = len(data)
	}
	if take > 0 {
		c.buf = append(c.buf, data[:take]...)
	}
	if len(c.buf) >= payloadLen {
		c.state = MessageComplete
	}
	return take
}

func (c *Codec) completeMessage() {
	if c.limiter != nil && !c.limiter.Allow() {
		c.rateLimited.Add(uint64(int(c.header.MsgLength)))
		c.reset()
		return
	}

	crossed, err := validatePayload(c.header.MsgType, c.buf)
	if err != nil {
		c.parseErrors.Inc()
		c.reset()
		return
	}
	if crossed {
		c.crossedQuotes.Inc()
	}

	header := c.header
	payload := make([]byte, len(c.buf))
	copy(payload, c.buf)

	c.messagesProcessed.Inc()
	c.reset()

	// Dispatch outside of any retained slice aliasing so the codec's
	// internal buffer can be reused immediately for the next frame.
	c.mu.Unlock()
	c.handlers.dispatch(header.MsgType, payload, header)
	c.mu.Lock()
}

func (c *Codec) reset() {
	c.buf = c.buf[:0]
	c.state = WaitingHeader
	c.header = Header{}
}
