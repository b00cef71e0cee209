// Package emission implements lifetime decay minting: a contribution of
// value V made at age a is paid out as a continuous, exponentially decaying
// rate over the contributor's remaining life expectancy R.
//
//	R    = lifeExpectancy − age
//	k    = ln(100) / R                 (rate(R) = 1% of rate(0))
//	A    = V·k / (1 − e^(−kR))         (∫₀^R rate = V)
//	rate = A·e^(−kt),  t ∈ [0, R]
//
// The calculator is pure and stateless; all methods are safe for concurrent use.
package emission

import (
	"math"

	"github.com/baekya-protocol/baekya/internal/domain"
)

// ─── Constants ──────────────────────────────────────────────────────────────

const (
	// MaxAge is the upper bound for a contributor's age in years.
	MaxAge = 120.0

	// ResidualFraction is rate(R)/rate(0). The curve never reaches zero.
	ResidualFraction = 0.01

	// minDenominator guards A against a vanishing 1 − e^(−kR).
	minDenominator = 1e-10
)

// timeTableYears are the checkpoints reported by TimeTable. The 50-year
// point only appears for horizons of at least 50 years.
var timeTableYears = []float64{0, 1, 5, 10, 25, 50}

// ─── Configuration ──────────────────────────────────────────────────────────

// LifeExpectancy holds default life expectancies in years.
type LifeExpectancy struct {
	Male    float64 `toml:"male_life_expectancy"`
	Female  float64 `toml:"female_life_expectancy"`
	Default float64 `toml:"default_life_expectancy"`
}

// For returns the default life expectancy for g.
func (le LifeExpectancy) For(g domain.Gender) float64 {
	switch g {
	case domain.GenderMale:
		return le.Male
	case domain.GenderFemale:
		return le.Female
	default:
		return le.Default
	}
}

// Config configures the calculator.
type Config struct {
	LifeExpectancy LifeExpectancy
}

// DefaultConfig returns the protocol defaults (male 80, female 85, other 80).
func DefaultConfig() Config {
	return Config{
		LifeExpectancy: LifeExpectancy{Male: 80, Female: 85, Default: 80},
	}
}

// ─── Calculator ─────────────────────────────────────────────────────────────

// Calculator produces decay curves for contributions.
type Calculator struct {
	config Config
}

// NewCalculator creates a calculator.
func NewCalculator(cfg Config) *Calculator {
	return &Calculator{config: cfg}
}

// DefaultLifeExpectancy returns the configured expectancy for g.
func (c *Calculator) DefaultLifeExpectancy(g domain.Gender) float64 {
	return c.config.LifeExpectancy.For(g)
}

// Calculate validates its inputs and returns the decay curve paying out
// value over lifeExpectancy − age years.
func (c *Calculator) Calculate(age, value, lifeExpectancy float64) (Curve, error) {
	if !(age > 0 && age <= MaxAge) {
		return Curve{}, domain.InvalidField("age", "must be in (0, %v], got %v", MaxAge, age)
	}
	if !(value > 0) || math.IsInf(value, 0) {
		return Curve{}, domain.InvalidField("value", "must be positive, got %v", value)
	}
	if !(lifeExpectancy > age) {
		return Curve{}, domain.InvalidField("lifeExpectancy", "must exceed age %v, got %v", age, lifeExpectancy)
	}

	r := lifeExpectancy - age
	k := DecayConstant(r)
	denominator := 1 - math.Exp(-k*r)
	if math.Abs(denominator) < minDenominator {
		return Curve{}, &domain.FieldError{Kind: domain.ErrNumeric, Field: "remainingYears", Detail: "decay denominator vanished"}
	}

	a := value * k / denominator
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return Curve{}, &domain.FieldError{Kind: domain.ErrNumeric, Field: "initialRate", Detail: "not finite"}
	}

	return Curve{
		InitialRate:    a,
		DecayConstant:  k,
		RemainingYears: r,
		TotalValue:     value,
	}, nil
}

// DecayConstant returns k = ln(100)/R, or 0 for a non-positive horizon.
func DecayConstant(remainingYears float64) float64 {
	if remainingYears <= 0 {
		return 0
	}
	return -math.Log(ResidualFraction) / remainingYears
}
