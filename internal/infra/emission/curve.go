package emission

import (
	"math"

	"github.com/baekya-protocol/baekya/internal/domain"
)

// ─── Curve ──────────────────────────────────────────────────────────────────

// Curve is one decaying emission: rate(t) = A·e^(−kt) on [0, R].
// Rates are tokens per year; t is in years since the stream started.
type Curve struct {
	InitialRate    float64 `json:"initial_rate"`    // A
	DecayConstant  float64 `json:"decay_constant"`  // k
	RemainingYears float64 `json:"remaining_years"` // R
	TotalValue     float64 `json:"total_value"`     // ∫₀^R rate
}

// FromStream rebuilds the curve of a persisted stream.
func FromStream(s domain.EmissionStream) Curve {
	return Curve{
		InitialRate:    s.InitialRate,
		DecayConstant:  s.DecayConstant,
		RemainingYears: s.RemainingYears,
		TotalValue:     s.TotalValue.Float64(),
	}
}

// RateAt returns the yearly rate at t, or 0 outside [0, R].
func (c Curve) RateAt(t float64) float64 {
	if t < 0 || t > c.RemainingYears {
		return 0
	}
	return c.InitialRate * math.Exp(-c.DecayConstant*t)
}

// AccumulatedBetween integrates the rate over [t1, t2], both clamped to
// [0, R]. The result lies in [0, TotalValue].
func (c Curve) AccumulatedBetween(t1, t2 float64) float64 {
	t1 = clamp(t1, 0, c.RemainingYears)
	t2 = clamp(t2, 0, c.RemainingYears)
	if t2 <= t1 || c.DecayConstant <= 0 {
		return 0
	}
	v := c.InitialRate * (math.Exp(-c.DecayConstant*t1) - math.Exp(-c.DecayConstant*t2)) / c.DecayConstant
	return clamp(v, 0, c.TotalValue)
}

// FutureEarnings returns what the curve pays in the next hours after
// elapsed years.
func (c Curve) FutureEarnings(elapsed, hours float64) float64 {
	return c.AccumulatedBetween(elapsed, elapsed+hours/domain.HoursPerYear)
}

// HourlyRate is the initial rate per hour.
func (c Curve) HourlyRate() float64 { return c.InitialRate / domain.HoursPerYear }

// DailyRate is the initial rate per day.
func (c Curve) DailyRate() float64 { return c.InitialRate / domain.DaysPerYear }

// MonthlyRate is the initial rate per month.
func (c Curve) MonthlyRate() float64 { return c.InitialRate / domain.MonthsPerYear }

// ─── Time Table ─────────────────────────────────────────────────────────────

// Rates expresses one yearly rate in every reporting unit.
type Rates struct {
	Yearly  float64 `json:"yearly"`
	Monthly float64 `json:"monthly"`
	Daily   float64 `json:"daily"`
	Hourly  float64 `json:"hourly"`
}

// RatesOf splits a yearly rate.
func RatesOf(yearly float64) Rates {
	return Rates{
		Yearly:  yearly,
		Monthly: yearly / domain.MonthsPerYear,
		Daily:   yearly / domain.DaysPerYear,
		Hourly:  yearly / domain.HoursPerYear,
	}
}

// TimePoint is the rate at a checkpoint.
type TimePoint struct {
	Years float64 `json:"years"`
	Rates
}

// TimeTable reports the rate at 0, 1, 5, 10 and 25 years (and 50 when
// R ≥ 50), skipping checkpoints past R.
func (c Curve) TimeTable() []TimePoint {
	table := make([]TimePoint, 0, len(timeTableYears))
	for _, t := range timeTableYears {
		if t > c.RemainingYears {
			continue
		}
		table = append(table, TimePoint{Years: t, Rates: RatesOf(c.RateAt(t))})
	}
	return table
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
