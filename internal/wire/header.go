package wire

import "encoding/binary"

// Header is the fixed 20-byte frame header preceding every message
// (spec §3, §6). All integer fields are big-endian on the wire.
type Header struct {
	MsgType        MsgType
	Exchange       Exchange
	MsgLength      uint16
	TimestampNanos int64
	SequenceNumber uint64
}

// DecodeHeader decodes a Header from the first HeaderSize bytes of
// buf. It does not validate msg_type/exchange/msg_length — callers
// run ValidateHeader separately so a malformed header can still be
// reported with the exact field that failed.
func DecodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrShortBuffer
	}
	var h Header
	h.MsgType = MsgType(buf[0])
	h.Exchange = Exchange(buf[1])
	h.MsgLength = binary.BigEndian.Uint16(buf[2:4])
	h.TimestampNanos = int64(binary.BigEndian.Uint64(buf[4:12]))
	h.SequenceNumber = binary.BigEndian.Uint64(buf[12:20])
	return h, nil
}

// EncodeHeader writes h into a fresh HeaderSize-byte buffer, the
// inverse of DecodeHeader — used by tests and by any component
// constructing frames (e.g. a feed simulator) rather than by the
// parser itself.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = byte(h.MsgType)
	buf[1] = byte(h.Exchange)
	binary.BigEndian.PutUint16(buf[2:4], h.MsgLength)
	binary.BigEndian.PutUint64(buf[4:12], uint64(h.TimestampNanos))
	binary.BigEndian.PutUint64(buf[12:20], h.SequenceNumber)
	return buf
}

// ValidateHeader checks the header invariants of spec §4.1: known
// msg_type, known exchange, MIN_HEADER <= msg_length <= MAX_MESSAGE.
func ValidateHeader(h Header) error {
	if !h.MsgType.known() {
		return ErrBadMsgType
	}
	if !h.Exchange.known() {
		return ErrBadExchange
	}
	if h.MsgLength < MinHeader || h.MsgLength > MaxMessage {
		return ErrBadLength
	}
	return nil
}
