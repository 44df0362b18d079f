package risk

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// violationRetention is how long a Violation is kept in the buffer
// before the monitor ages it out (spec §3 "entries older than 24h are
// aged out").
const violationRetention = 24 * time.Hour

// ExecutionReport is the minimal post-trade fact the monitor needs:
// the realized/unrealized P&L delta a single fill contributed (spec
// §4.5 "On each execution report: update portfolio P&L").
type ExecutionReport struct {
	StrategyID string
	SymbolID   uint32
	PnLDelta   float64
	Timestamp  time.Time
}

// PortfolioChecker is the read-only view of portfolio/strategy/
// correlation state the monitor's background loop consults each
// second (spec §4.5 "A background loop runs portfolio/strategy/
// correlation checks every second"). internal/position.Portfolio
// satisfies this interface structurally; risk does not import
// position to avoid a cycle.
type PortfolioChecker interface {
	PortfolioExposure() float64
	StrategyExposures() map[string]float64
	CorrelatedPairs() map[[2]string]float64
	Volatilities() map[string]float64
}

// Monitor is the post-trade risk monitor of spec §4.5: P&L tracking
// against the daily-loss circuit-breaker trip, plus a background loop
// that checks exposure/correlation limits and ages the violation
// buffer. Grounded on internal/risk/risk_monitor.go /
// risk_monitor_service.go.
type Monitor struct {
	engine *Engine
	limits func() Limits

	portfolioPnL atomicFloat64

	mu         sync.RWMutex // guards violations: writers append, readers snapshot by copy (spec §5)
	violations []Violation

	wg   sync.WaitGroup
	once sync.Once
}

// atomicFloat64 stores a float64 behind an atomic int64 bit pattern.
type atomicFloat64 struct{ bits atomic.Int64 }

func (a *atomicFloat64) add(delta float64) float64 {
	for {
		old := a.bits.Load()
		oldF := math.Float64frombits(uint64(old))
		newF := oldF + delta
		if a.bits.CompareAndSwap(old, int64(math.Float64bits(newF))) {
			return newF
		}
	}
}

func (a *atomicFloat64) load() float64 { return math.Float64frombits(uint64(a.bits.Load())) }

// NewMonitor creates a Monitor watching engine's limits/breaker.
func NewMonitor(engine *Engine) *Monitor {
	return &Monitor{engine: engine, limits: engine.Limits}
}

// OnExecution folds an execution report's P&L delta into the running
// portfolio P&L and trips the circuit breaker if the daily-loss limit
// is breached (spec §4.5).
func (m *Monitor) OnExecution(report ExecutionReport) {
	pnl := m.portfolioPnL.add(report.PnLDelta)
	limits := m.limits()
	if pnl < -limits.MaxDailyLoss {
		m.appendViolation(Violation{
			Type:         RejectedCircuitBreaker,
			Severity:     SeverityCritical,
			Description:  "daily loss limit exceeded",
			StrategyID:   report.StrategyID,
			SymbolID:     report.SymbolID,
			CurrentValue: pnl,
			LimitValue:   -limits.MaxDailyLoss,
			Timestamp:    report.Timestamp,
		})
		m.engine.Breaker().Trip("daily loss limit exceeded")
	}
}

// PortfolioPnL returns the running portfolio P&L.
func (m *Monitor) PortfolioPnL() float64 { return m.portfolioPnL.load() }

func (m *Monitor) appendViolation(v Violation) {
	m.mu.Lock()
	m.violations = append(m.violations, v)
	m.mu.Unlock()
}

// Violations returns a copy of the current violation buffer.
func (m *Monitor) Violations() []Violation {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Violation, len(m.violations))
	copy(out, m.violations)
	return out
}

// ageViolations drops entries older than violationRetention.
func (m *Monitor) ageViolations(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cutoff := now.Add(-violationRetention)
	kept := m.violations[:0]
	for _, v := range m.violations {
		if v.Timestamp.After(cutoff) {
			kept = append(kept, v)
		}
	}
	m.violations = kept
}

// Run starts the background loop that checks portfolio/strategy
// exposure and correlation every second, ages the violation buffer,
// and exits when ctx is cancelled (spec §4.5, §5 "observes a shared
// shutdown flag and joins on teardown").
func (m *Monitor) Run(ctx context.Context, checker PortfolioChecker) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				m.tick(now, checker)
			}
		}
	}()
}

// Wait blocks until the background loop started by Run has exited.
func (m *Monitor) Wait() { m.wg.Wait() }

func (m *Monitor) tick(now time.Time, checker PortfolioChecker) {
	limits := m.limits()

	if checker != nil {
		if exposure := checker.PortfolioExposure(); exposure > limits.MaxPortfolioExposure {
			m.appendViolation(Violation{
				Type: RejectedExposureLimit, Severity: SeverityWarning,
				Description: "portfolio exposure limit exceeded", CurrentValue: exposure,
				LimitValue: limits.MaxPortfolioExposure, Timestamp: now,
			})
		}
		for strategyID, exposure := range checker.StrategyExposures() {
			if exposure > limits.MaxStrategyExposure {
				m.appendViolation(Violation{
					Type: RejectedExposureLimit, Severity: SeverityWarning,
					Description: "strategy exposure limit exceeded", StrategyID: strategyID,
					CurrentValue: exposure, LimitValue: limits.MaxStrategyExposure, Timestamp: now,
				})
			}
		}
		for pair, corr := range checker.CorrelatedPairs() {
			if corr > limits.MaxCorrelation {
				m.appendViolation(Violation{
					Type: RejectedCorrelation, Severity: SeverityWarning,
					Description: "correlation limit exceeded: " + pair[0] + "/" + pair[1],
					CurrentValue: corr, LimitValue: limits.MaxCorrelation, Timestamp: now,
				})
			}
		}
		for symbol, vol := range checker.Volatilities() {
			if vol > limits.MaxVolatility {
				m.appendViolation(Violation{
					Type: RejectedVolatility, Severity: SeverityWarning,
					Description: "volatility limit exceeded: " + symbol,
					CurrentValue: vol, LimitValue: limits.MaxVolatility, Timestamp: now,
				})
			}
		}
	}

	m.ageViolations(now)
}
