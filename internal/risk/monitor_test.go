package risk

import (
	"context"
	"testing"
	"time"
)

type fakeChecker struct {
	portfolioExposure float64
	strategyExposures map[string]float64
	correlatedPairs   map[[2]string]float64
	volatilities      map[string]float64
}

func (f fakeChecker) PortfolioExposure() float64            { return f.portfolioExposure }
func (f fakeChecker) StrategyExposures() map[string]float64 { return f.strategyExposures }
func (f fakeChecker) CorrelatedPairs() map[[2]string]float64 { return f.correlatedPairs }
func (f fakeChecker) Volatilities() map[string]float64       { return f.volatilities }

func TestMonitorTripsBreakerOnDailyLoss(t *testing.T) {
	l := DefaultLimits()
	l.MaxDailyLoss = 1000
	e := New(l, nil)
	m := NewMonitor(e)

	m.OnExecution(ExecutionReport{StrategyID: "S1", PnLDelta: -500, Timestamp: time.Now()})
	if e.Breaker().Tripped() {
		t.Fatalf("breaker should not trip before the daily loss limit is breached")
	}

	m.OnExecution(ExecutionReport{StrategyID: "S1", PnLDelta: -600, Timestamp: time.Now()})
	if !e.Breaker().Tripped() {
		t.Fatalf("breaker should trip once cumulative P&L breaches -MaxDailyLoss")
	}
}

func TestMonitorPortfolioPnLAccumulates(t *testing.T) {
	e := New(DefaultLimits(), nil)
	m := NewMonitor(e)

	m.OnExecution(ExecutionReport{StrategyID: "S1", PnLDelta: 100, Timestamp: time.Now()})
	m.OnExecution(ExecutionReport{StrategyID: "S1", PnLDelta: -30, Timestamp: time.Now()})

	if got := m.PortfolioPnL(); got != 70 {
		t.Fatalf("portfolio P&L = %f, want 70", got)
	}
}

func TestMonitorTickRaisesExposureViolation(t *testing.T) {
	l := DefaultLimits()
	l.MaxPortfolioExposure = 1000
	e := New(l, nil)
	m := NewMonitor(e)

	checker := fakeChecker{portfolioExposure: 2000}
	m.tick(time.Now(), checker)

	violations := m.Violations()
	if len(violations) != 1 || violations[0].Type != RejectedExposureLimit {
		t.Fatalf("expected a single exposure violation, got %+v", violations)
	}
}

func TestMonitorTickRaisesCorrelationViolation(t *testing.T) {
	l := DefaultLimits()
	l.MaxCorrelation = 0.5
	e := New(l, nil)
	m := NewMonitor(e)

	checker := fakeChecker{
		strategyExposures: map[string]float64{},
		correlatedPairs:   map[[2]string]float64{{"A", "B"}: 0.9},
	}
	m.tick(time.Now(), checker)

	violations := m.Violations()
	found := false
	for _, v := range violations {
		if v.Type == RejectedCorrelation {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a correlation violation, got %+v", violations)
	}
}

func TestMonitorTickRaisesVolatilityViolation(t *testing.T) {
	l := DefaultLimits()
	l.MaxVolatility = 0.3
	e := New(l, nil)
	m := NewMonitor(e)

	checker := fakeChecker{volatilities: map[string]float64{"RELIANCE": 0.5}}
	m.tick(time.Now(), checker)

	violations := m.Violations()
	found := false
	for _, v := range violations {
		if v.Type == RejectedVolatility {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a volatility violation, got %+v", violations)
	}
}

func TestMonitorAgesOutOldViolations(t *testing.T) {
	e := New(DefaultLimits(), nil)
	m := NewMonitor(e)

	old := time.Now().Add(-25 * time.Hour)
	m.appendViolation(Violation{Type: RejectedExposureLimit, Timestamp: old})
	m.appendViolation(Violation{Type: RejectedExposureLimit, Timestamp: time.Now()})

	m.ageViolations(time.Now())

	if got := len(m.Violations()); got != 1 {
		t.Fatalf("violation count after aging = %d, want 1", got)
	}
}

func TestMonitorRunStopsOnContextCancel(t *testing.T) {
	e := New(DefaultLimits(), nil)
	m := NewMonitor(e)

	ctx, cancel := context.WithCancel(context.Background())
	m.Run(ctx, fakeChecker{})
	cancel()

	done := make(chan struct{})
	go func() {
		m.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("monitor background loop did not stop after context cancellation")
	}
}
