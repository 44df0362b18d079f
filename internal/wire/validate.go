package wire

// validatePayload re-validates the fully assembled message per spec
// §4.1's MESSAGE_COMPLETE revalidation step, and reports whether the
// quote was crossed so the caller can bump a metric without the codec
// rejecting the message (§4.1, §8 "Crossed quote ... admitted").
func validatePayload(msgType MsgType, payload []byte) (crossed bool, err error) {
	switch msgType {
	case MsgTrade:
		t, err := decodeTrade(payload)
		if err != nil {
			return false, err
		}
		return false, validateTrade(t)
	case MsgQuote:
		q, err := decodeQuote(payload)
		if err != nil {
			return false, err
		}
		if err := validateQuote(q); err != nil {
			return false, err
		}
		return q.IsCrossed(), nil
	case MsgOrderUpdate:
		o, err := decodeOrderUpdate(payload)
		if err != nil {
			return false, err
		}
		return false, validateOrderUpdate(o)
	case MsgMarketStatus:
		_, err := decodeMarketStatus(payload)
		return false, err
	case MsgIndexUpdate:
		_, err := decodeIndexUpdate(payload)
		return false, err
	case MsgHeartbeat, MsgSymbolUpdate:
		return false, nil
	default:
		return false, ErrBadMsgType
	}
}
