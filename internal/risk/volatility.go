package risk

import (
	"math"

	talib "github.com/markcheno/go-talib"
)

// VolatilityTracker estimates per-symbol annualized volatility and
// pairwise correlation from return series, feeding the post-trade
// monitor's standalone volatility/correlation checks (the engine's
// parametric VaR uses a fixed per-position volatility instead).
// Grounded on internal/trading/market_data/timeframe/indicators.go
// and internal/strategy/optimized/momentum_strategy.go's use of
// github.com/markcheno/go-talib (talib.StdDev, talib.Correl); only
// these two indicators are wired — the wider indicator surface
// (MACD, RSI, Bollinger, …) belongs to strategy logic, out of scope
// per spec §1 (see DESIGN.md).
type VolatilityTracker struct {
	// barsPerYear annualizes the per-bar standard deviation; 252 for
	// daily bars.
	barsPerYear float64
}

// NewVolatilityTracker creates a tracker assuming daily return bars.
func NewVolatilityTracker() *VolatilityTracker {
	return &VolatilityTracker{barsPerYear: 252}
}

// Volatility returns the annualized standard deviation of returns over
// the trailing period-length window.
func (v *VolatilityTracker) Volatility(returns []float64, period int) float64 {
	if len(returns) < period || period <= 0 {
		return 0
	}
	std := talib.StdDev(returns, period, 1)
	last := std[len(std)-1]
	return last * math.Sqrt(v.barsPerYear)
}

// Correlation returns the Pearson correlation between two equal-length
// return series over the trailing period-length window.
func (v *VolatilityTracker) Correlation(a, b []float64, period int) float64 {
	if len(a) < period || len(b) < period || period <= 0 {
		return 0
	}
	corr := talib.Correl(a, b, period)
	return corr[len(corr)-1]
}
