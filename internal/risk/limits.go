package risk

import (
	"github.com/go-playground/validator/v10"
)

// Limits is the spec §3 RiskLimits record. Grounded on the teacher's
// internal/validation/validator.go use of go-playground/validator/v10
// struct tags for bounds checking.
type Limits struct {
	MaxPositionSize float64 `validate:"gt=0"`

	MaxPortfolioExposure float64 `validate:"gt=0"`
	MaxStrategyExposure  float64 `validate:"gt=0"`
	MaxSectorConcentration float64 `validate:"gt=0,lte=1"`

	MaxOrderSize  float64 `validate:"gt=0"`
	MaxOrderValue float64 `validate:"gt=0"`

	MaxOrdersPerSecond int `validate:"gt=0"`
	MaxOrdersPerMinute int `validate:"gt=0"`

	MaxPriceDeviation float64 `validate:"gt=0"`
	MinSpread         float64 `validate:"gte=0"`
	MaxMarketImpact   float64 `validate:"gte=0"`

	MaxVaR1Day  float64 `validate:"gt=0"`
	MaxVaR10Day float64 `validate:"gt=0"`

	MaxVolatility  float64 `validate:"gt=0"`
	MaxCorrelation float64 `validate:"gte=0,lte=1"`

	MaxDailyLoss float64 `validate:"gt=0"`
	MaxDrawdown  float64 `validate:"gt=0"`

	MaxConsecutiveLosses int `validate:"gte=0"`

	MaxPositionHoldSeconds int64 `validate:"gte=0"`
	MaxOrderLifetimeSeconds int64 `validate:"gte=0"`
}

var limitsValidator = validator.New()

// Validate checks l's fields against the struct tags above, returning
// a validator.ValidationErrors listing every field that fails its
// tag.
func (l Limits) Validate() error {
	return limitsValidator.Struct(l)
}

// DefaultLimits returns a conservative starting point. Limits are not
// loaded from configuration in this package; Engine.SetLimits swaps
// them at runtime.
func DefaultLimits() Limits {
	return Limits{
		MaxPositionSize:         1_000_000,
		MaxPortfolioExposure:    10_000_000,
		MaxStrategyExposure:     2_000_000,
		MaxSectorConcentration:  0.3,
		MaxOrderSize:            100_000,
		MaxOrderValue:           1_000_000,
		MaxOrdersPerSecond:      50,
		MaxOrdersPerMinute:      1000,
		MaxPriceDeviation:       0.05,
		MinSpread:               0,
		MaxMarketImpact:         0.02,
		MaxVaR1Day:              500_000,
		MaxVaR10Day:             1_500_000,
		MaxVolatility:           0.5,
		MaxCorrelation:          0.9,
		MaxDailyLoss:            250_000,
		MaxDrawdown:             0.2,
		MaxConsecutiveLosses:    10,
		MaxPositionHoldSeconds:  24 * 3600,
		MaxOrderLifetimeSeconds: 3600,
	}
}
