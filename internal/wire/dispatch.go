package wire

// Handlers holds the value-returning-void callback handles spec §4.1
// names: missing callbacks are no-ops, and a callback's own panic is
// caught, logged, and never unwinds past the parser (§7 "Callback
// exceptions"). Dispatch is a small tagged-variant switch over
// msg_type plus this handler table, per §9 "Dynamic dispatch" —
// deliberately not virtual-function polymorphism.
type Handlers struct {
	OnTrade        func(Trade)
	OnQuote        func(Quote)
	OnOrderUpdate  func(OrderUpdate)
	OnMarketStatus func(MarketStatus)
	OnSymbolUpdate func(SymbolUpdate)
	OnIndexUpdate  func(IndexUpdate)
	OnHeartbeat    func(Heartbeat)

	// OnPanic is invoked (if set) whenever a callback panics; the
	// parser always recovers the panic regardless.
	OnPanic func(msgType MsgType, recovered interface{})
}

// SymbolUpdate carries a single symbol-master delta (SPEC_FULL.md §3).
type SymbolUpdate struct {
	Row []string // positional fields, same layout as the CSV view (spec §6)
}

func (h Handlers) dispatch(msgType MsgType, payload []byte, header Header) {
	defer func() {
		if r := recover(); r != nil {
			if h.OnPanic != nil {
				h.OnPanic(msgType, r)
			}
		}
	}()

	switch msgType {
	case MsgTrade:
		if h.OnTrade == nil {
			return
		}
		t, err := decodeTrade(payload)
		if err != nil {
			return
		}
		h.OnTrade(t)
	case MsgQuote:
		if h.OnQuote == nil {
			return
		}
		q, err := decodeQuote(payload)
		if err != nil {
			return
		}
		h.OnQuote(q)
	case MsgOrderUpdate:
		if h.OnOrderUpdate == nil {
			return
		}
		o, err := decodeOrderUpdate(payload)
		if err != nil {
			return
		}
		h.OnOrderUpdate(o)
	case MsgMarketStatus:
		if h.OnMarketStatus == nil {
			return
		}
		m, err := decodeMarketStatus(payload)
		if err != nil {
			return
		}
		h.OnMarketStatus(m)
	case MsgIndexUpdate:
		if h.OnIndexUpdate == nil {
			return
		}
		iu, err := decodeIndexUpdate(payload)
		if err != nil {
			return
		}
		h.OnIndexUpdate(iu)
	case MsgHeartbeat:
		if h.OnHeartbeat == nil {
			return
		}
		h.OnHeartbeat(Heartbeat{TimestampNanos: header.TimestampNanos})
	case MsgSymbolUpdate:
		if h.OnSymbolUpdate == nil {
			return
		}
		h.OnSymbolUpdate(SymbolUpdate{Row: splitCSVRow(payload)})
	}
}

func splitCSVRow(payload []byte) []string {
	var fields []string
	start := 0
	for i, b := range payload {
		if b == ',' {
			fields = append(fields, string(payload[start:i]))
			start = i + 1
		}
	}
	fields = append(fields, string(payload[start:]))
	return fields
}
