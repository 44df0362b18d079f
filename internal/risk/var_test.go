package risk

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/stat/distuv"
)

func TestParametricVaRSanity(t *testing.T) {
	// Two uncorrelated assets of equal notional and volatility; VaR
	// should scale with sqrt(2) vs a single asset of the same total
	// notional, not with the naive sum.
	single := []AssetExposure{{Symbol: "A", Notional: 2_000_000, Volatility: 0.02}}
	singleVaR := ParametricVaR(single, nil, 0.95, 1)

	pair := []AssetExposure{
		{Symbol: "A", Notional: 1_000_000, Volatility: 0.02},
		{Symbol: "B", Notional: 1_000_000, Volatility: 0.02},
	}
	correlations := map[[2]string]float64{{"A", "B"}: 0}
	pairVaR := ParametricVaR(pair, correlations, 0.95, 1)

	if pairVaR >= singleVaR {
		t.Fatalf("diversified VaR %f should be less than concentrated VaR %f", pairVaR, singleVaR)
	}
	if pairVaR <= 0 {
		t.Fatalf("VaR should be positive, got %f", pairVaR)
	}
}

func TestParametricVaREmptyPortfolio(t *testing.T) {
	if v := ParametricVaR(nil, nil, 0.95, 1); v != 0 {
		t.Fatalf("empty portfolio VaR = %f, want 0", v)
	}
}

func TestHistoricalVaRUsesQuantileLoss(t *testing.T) {
	assets := []AssetExposure{
		{Symbol: "A", Notional: 1_000_000, Returns: []float64{0.01, -0.02, 0.03, -0.05, 0.0, -0.01, 0.02, -0.03, 0.01, -0.04}},
	}
	v := HistoricalVaR(assets, 0.90)
	if v <= 0 {
		t.Fatalf("historical VaR should be positive for a return series with losses, got %f", v)
	}
}

func TestHistoricalVaRNoHistoryIsZero(t *testing.T) {
	assets := []AssetExposure{{Symbol: "A", Notional: 1_000_000}}
	if v := HistoricalVaR(assets, 0.95); v != 0 {
		t.Fatalf("VaR with no return history = %f, want 0", v)
	}
}

func TestMonteCarloVaRConverges(t *testing.T) {
	assets := []AssetExposure{
		{Symbol: "A", Notional: 1_000_000, Volatility: 0.02, ExpectedReturn: 0},
	}
	src := distuv.Normal{Mu: 0, Sigma: 1, Src: nil}
	v := MonteCarloVaR(assets, 0.95, 5000, src)
	if v <= 0 {
		t.Fatalf("Monte Carlo VaR should be positive, got %f", v)
	}
	// Loose sanity bound: for a single N(0, 0.02) asset the 95% VaR is
	// roughly 1.645 * 0.02 * notional.
	want := 1.645 * 0.02 * 1_000_000
	if math.Abs(v-want)/want > 0.3 {
		t.Fatalf("Monte Carlo VaR %f too far from analytic approximation %f", v, want)
	}
}

func TestComponentVaRSumsToTotal(t *testing.T) {
	assets := []AssetExposure{
		{Symbol: "A", Notional: 1_000_000, Volatility: 0.02},
		{Symbol: "B", Notional: 500_000, Volatility: 0.03},
	}
	components := ComponentVaR(assets, nil, 0.95, 1)
	total := ParametricVaR(assets, nil, 0.95, 1)

	var sum float64
	for _, c := range components {
		sum += c
	}
	if math.Abs(sum-total) > 1e-6 {
		t.Fatalf("component VaR sum %f should equal total VaR %f", sum, total)
	}
}

func TestIncrementalVaRNonNegativeForNewLong(t *testing.T) {
	existing := []AssetExposure{{Symbol: "A", Notional: 1_000_000, Volatility: 0.02}}
	newAsset := AssetExposure{Symbol: "B", Notional: 500_000, Volatility: 0.02}
	inc := IncrementalVaR(existing, newAsset, nil, 0.95, 1)
	if inc <= 0 {
		t.Fatalf("adding a new long position should increase VaR, got delta %f", inc)
	}
}
