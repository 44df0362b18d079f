// Package symbolmaster loads the symbol reference table described in
// spec §3/§6: a CSV view indexed by both symbol_id and symbol_name,
// falling back to a small built-in default set when no CSV is
// available.
package symbolmaster

import (
	"encoding/csv"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// InstrumentType is the symbol's instrument classification.
type InstrumentType string

const (
	Equity InstrumentType = "EQUITY"
	Future InstrumentType = "FUTURE"
	Option InstrumentType = "OPTION"
	Index  InstrumentType = "INDEX"
)

// Entry is one symbol master row (spec §3).
type Entry struct {
	SymbolID      uint32
	SymbolName    string
	ISIN          string
	Type          InstrumentType
	TickSize      float64
	LotSize       int64
	UpperCircuit  float64
	LowerCircuit  float64
}

// Table indexes symbol master entries by both ID and name, per spec
// §3. Lookups are cached via patrickmn/go-cache; the trading engine
// resolves symbol names through ByName on every order submission and
// every mark-to-market price lookup.
type Table struct {
	mu       sync.RWMutex
	byID     map[uint32]*Entry
	byName   map[string]*Entry
	cache    *cache.Cache
	logger   *zap.Logger
	fellBack bool
}

// NewTable creates an empty table. Call Load or LoadDefaults to
// populate it.
func NewTable(logger *zap.Logger) *Table {
	return &Table{
		byID:   make(map[uint32]*Entry),
		byName: make(map[string]*Entry),
		cache:  cache.New(5*time.Minute, 10*time.Minute),
		logger: logger,
	}
}

// Load parses a CSV view (header row then
// symbol_id,symbol_name,isin,type,tick_size,lot_size,upper_circuit,lower_circuit
// rows, per spec §6). Malformed lines are skipped with a warning and
// do not abort the load.
func (t *Table) Load(r io.Reader) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	_ = header // header row is informational only; columns are positional

	t.mu.Lock()
	defer t.mu.Unlock()

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.logger.Warn("symbol master: skipping malformed line", zap.Error(err))
			continue
		}
		entry, ok := parseRow(record)
		if !ok {
			t.logger.Warn("symbol master: skipping malformed row", zap.Strings("row", record))
			continue
		}
		t.byID[entry.SymbolID] = entry
		t.byName[entry.SymbolName] = entry
	}
	return nil
}

func parseRow(record []string) (*Entry, bool) {
	if len(record) < 8 {
		return nil, false
	}
	id, err := strconv.ParseUint(record[0], 10, 32)
	if err != nil {
		return nil, false
	}
	tick, err := strconv.ParseFloat(record[4], 64)
	if err != nil {
		return nil, false
	}
	lot, err := strconv.ParseInt(record[5], 10, 64)
	if err != nil {
		return nil, false
	}
	upper, err := strconv.ParseFloat(record[6], 64)
	if err != nil {
		return nil, false
	}
	lower, err := strconv.ParseFloat(record[7], 64)
	if err != nil {
		return nil, false
	}
	return &Entry{
		SymbolID:     uint32(id),
		SymbolName:   record[1],
		ISIN:         record[2],
		Type:         InstrumentType(record[3]),
		TickSize:     tick,
		LotSize:      lot,
		UpperCircuit: upper,
		LowerCircuit: lower,
	}, true
}

// LoadDefaults installs a small built-in default symbol set and flags
// the table as having fallen back, per spec §6 "Missing file is
// non-fatal".
func (t *Table) LoadDefaults() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.fellBack = true
	for _, e := range defaultSymbols {
		cp := e
		t.byID[cp.SymbolID] = &cp
		t.byName[cp.SymbolName] = &cp
	}
	t.logger.Warn("symbol master: no CSV view available, installed built-in default set",
		zap.Int("count", len(defaultSymbols)))
}

// FellBack reports whether the table is serving the built-in default
// set rather than a loaded CSV view.
func (t *Table) FellBack() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fellBack
}

// ByID looks up a symbol by its numeric id.
func (t *Table) ByID(id uint32) (*Entry, bool) {
	cacheKey := "id:" + strconv.FormatUint(uint64(id), 10)
	if cached, ok := t.cache.Get(cacheKey); ok {
		e, ok := cached.(*Entry)
		return e, ok
	}

	t.mu.RLock()
	e, ok := t.byID[id]
	t.mu.RUnlock()
	if ok {
		t.cache.Set(cacheKey, e, cache.DefaultExpiration)
	}
	return e, ok
}

// ByName looks up a symbol by its name.
func (t *Table) ByName(name string) (*Entry, bool) {
	if cached, ok := t.cache.Get("name:" + name); ok {
		e, ok := cached.(*Entry)
		return e, ok
	}

	t.mu.RLock()
	e, ok := t.byName[name]
	t.mu.RUnlock()
	if ok {
		t.cache.Set("name:"+name, e, cache.DefaultExpiration)
	}
	return e, ok
}

// defaultSymbols is the small built-in set installed when no CSV view
// is available (spec §6).
var defaultSymbols = []Entry{
	{SymbolID: 1, SymbolName: "RELIANCE", ISIN: "INE002A01018", Type: Equity, TickSize: 0.05, LotSize: 1, UpperCircuit: 3500, LowerCircuit: 2500},
	{SymbolID: 2, SymbolName: "TCS", ISIN: "INE467B01029", Type: Equity, TickSize: 0.05, LotSize: 1, UpperCircuit: 4500, LowerCircuit: 3200},
	{SymbolID: 3, SymbolName: "INFY", ISIN: "INE009A01021", Type: Equity, TickSize: 0.05, LotSize: 1, UpperCircuit: 2000, LowerCircuit: 1200},
	{SymbolID: 4, SymbolName: "NIFTY50", ISIN: "", Type: Index, TickSize: 0.05, LotSize: 1, UpperCircuit: 0, LowerCircuit: 0},
}
