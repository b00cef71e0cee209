package emission

import (
	"errors"
	"math"
	"testing"

	"github.com/baekya-protocol/baekya/internal/domain"
)

// ─── Helpers ────────────────────────────────────────────────────────────────

func newTestCalculator(t *testing.T) *Calculator {
	t.Helper()
	return NewCalculator(DefaultConfig())
}

func mustCurve(t *testing.T, c *Calculator, age, value, le float64) Curve {
	t.Helper()
	curve, err := c.Calculate(age, value, le)
	if err != nil {
		t.Fatalf("Calculate(%v, %v, %v) failed: %v", age, value, le, err)
	}
	return curve
}

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

// ─── Calculate ──────────────────────────────────────────────────────────────

func TestCalculate_FirstContribution(t *testing.T) {
	c := newTestCalculator(t)
	curve := mustCurve(t, c, 30, 80, 80)

	if curve.RemainingYears != 50 {
		t.Errorf("RemainingYears = %v, want 50", curve.RemainingYears)
	}
	if !approxEqual(curve.DecayConstant, 0.0921, 1e-4) {
		t.Errorf("DecayConstant = %v, want ≈0.0921", curve.DecayConstant)
	}
	want := 80 * curve.DecayConstant / (1 - math.Exp(-curve.DecayConstant*50))
	if !approxEqual(curve.InitialRate, want, 1e-12) {
		t.Errorf("InitialRate = %v, want %v", curve.InitialRate, want)
	}
	if !approxEqual(curve.InitialRate, 7.4427, 1e-4) {
		t.Errorf("InitialRate = %v, want ≈7.4427", curve.InitialRate)
	}
}

func TestCalculate_SecondContributionScalesWithValue(t *testing.T) {
	c := newTestCalculator(t)
	first := mustCurve(t, c, 30, 80, 80)
	second := mustCurve(t, c, 30, 250, 80)

	ratio := second.InitialRate / first.InitialRate
	if !approxEqual(ratio, 250.0/80.0, 1e-12) {
		t.Errorf("A2/A1 = %v, want %v", ratio, 250.0/80.0)
	}
	combined := first.InitialRate + second.InitialRate
	if !approxEqual(combined, 30.7011, 1e-3) {
		t.Errorf("combined rate = %v, want ≈30.701", combined)
	}
	for _, tp := range []float64{0, 1, 10, 49.9} {
		sum := first.RateAt(tp) + second.RateAt(tp)
		if !approxEqual(sum, combined*math.Exp(-first.DecayConstant*tp), 1e-9) {
			t.Errorf("rates not additive at t=%v: %v", tp, sum)
		}
	}
}

func TestCalculate_InvalidParameters(t *testing.T) {
	c := newTestCalculator(t)
	tests := []struct {
		name  string
		age   float64
		value float64
		le    float64
		field string
	}{
		{"zero age", 0, 80, 80, "age"},
		{"negative age", -5, 80, 80, "age"},
		{"age above max", 121, 80, 130, "age"},
		{"zero value", 30, 0, 80, "value"},
		{"negative value", 30, -1, 80, "value"},
		{"NaN value", 30, math.NaN(), 80, "value"},
		{"life expectancy equals age", 80, 10, 80, "lifeExpectancy"},
		{"life expectancy below age", 90, 10, 80, "lifeExpectancy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Calculate(tt.age, tt.value, tt.le)
			if !errors.Is(err, domain.ErrInvalidParameter) {
				t.Fatalf("err = %v, want ErrInvalidParameter", err)
			}
			var fe *domain.FieldError
			if errors.As(err, &fe) && fe.Field != tt.field {
				t.Errorf("Field = %q, want %q", fe.Field, tt.field)
			}
		})
	}
}

func TestCalculate_MaxAgeAccepted(t *testing.T) {
	c := newTestCalculator(t)
	if _, err := c.Calculate(120, 10, 121); err != nil {
		t.Errorf("Calculate(120, 10, 121) error: %v", err)
	}
}

func TestCalculate_NumericOverflow(t *testing.T) {
	c := newTestCalculator(t)
	_, err := c.Calculate(1e-320, 10, 2e-320)
	if !errors.Is(err, domain.ErrNumeric) {
		t.Errorf("err = %v, want ErrNumeric", err)
	}
}

func TestDefaultLifeExpectancy(t *testing.T) {
	c := newTestCalculator(t)
	tests := []struct {
		g    domain.Gender
		want float64
	}{
		{domain.GenderMale, 80},
		{domain.GenderFemale, 85},
		{domain.GenderUnspecified, 80},
		{domain.Gender("other"), 80},
	}
	for _, tt := range tests {
		if got := c.DefaultLifeExpectancy(tt.g); got != tt.want {
			t.Errorf("DefaultLifeExpectancy(%q) = %v, want %v", tt.g, got, tt.want)
		}
	}
}

func TestDecayConstant_NonPositiveHorizon(t *testing.T) {
	if got := DecayConstant(0); got != 0 {
		t.Errorf("DecayConstant(0) = %v, want 0", got)
	}
}

// ─── Curve Properties ───────────────────────────────────────────────────────

func TestCurve_Conservation(t *testing.T) {
	c := newTestCalculator(t)
	for _, tc := range []struct{ age, value, le float64 }{
		{30, 80, 80}, {30, 250, 80}, {70, 5, 85}, {1, 1000, 120}, {119.5, 3, 120},
	} {
		curve := mustCurve(t, c, tc.age, tc.value, tc.le)
		got := curve.AccumulatedBetween(0, curve.RemainingYears)
		if !approxEqual(got, tc.value, 1e-9*tc.value) {
			t.Errorf("∫₀^R rate (age=%v, value=%v) = %v, want %v", tc.age, tc.value, got, tc.value)
		}
	}
}

func TestCurve_ResidualRate(t *testing.T) {
	curve := mustCurve(t, newTestCalculator(t), 30, 80, 80)

	if got := curve.RateAt(0); got != curve.InitialRate {
		t.Errorf("RateAt(0) = %v, want %v", got, curve.InitialRate)
	}
	if got := curve.RateAt(curve.RemainingYears); !approxEqual(got, 0.01*curve.InitialRate, 1e-12) {
		t.Errorf("RateAt(R) = %v, want %v", got, 0.01*curve.InitialRate)
	}
}

func TestCurve_StrictlyDecreasing(t *testing.T) {
	curve := mustCurve(t, newTestCalculator(t), 30, 80, 80)
	prev := curve.RateAt(0)
	for step := 1; step <= 500; step++ {
		tp := float64(step) * curve.RemainingYears / 500
		got := curve.RateAt(tp)
		if got >= prev {
			t.Fatalf("RateAt(%v) = %v, not below %v", tp, got, prev)
		}
		prev = got
	}
}

func TestCurve_RateOutsideHorizon(t *testing.T) {
	curve := mustCurve(t, newTestCalculator(t), 30, 80, 80)
	if got := curve.RateAt(-1); got != 0 {
		t.Errorf("RateAt(-1) = %v, want 0", got)
	}
	if got := curve.RateAt(50.001); got != 0 {
		t.Errorf("RateAt(R+) = %v, want 0", got)
	}
}

func TestCurve_AccumulatedBetween(t *testing.T) {
	curve := mustCurve(t, newTestCalculator(t), 30, 80, 80)

	tests := []struct {
		name   string
		t1, t2 float64
		want   float64
	}{
		{"empty interval", 5, 5, 0},
		{"reversed interval", 10, 5, 0},
		{"entirely before start", -10, -1, 0},
		{"entirely after end", 60, 70, 0},
		{"clamped to horizon", -10, 100, 80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := curve.AccumulatedBetween(tt.t1, tt.t2)
			if !approxEqual(got, tt.want, 1e-9) {
				t.Errorf("AccumulatedBetween(%v, %v) = %v, want %v", tt.t1, tt.t2, got, tt.want)
			}
		})
	}

	// Splitting the interval does not change the total.
	whole := curve.AccumulatedBetween(0, 10)
	split := curve.AccumulatedBetween(0, 3) + curve.AccumulatedBetween(3, 10)
	if !approxEqual(whole, split, 1e-9) {
		t.Errorf("split accumulation = %v, want %v", split, whole)
	}
}

func TestCurve_FutureEarnings(t *testing.T) {
	curve := mustCurve(t, newTestCalculator(t), 30, 80, 80)
	got := curve.FutureEarnings(0, domain.HoursPerYear)
	want := curve.AccumulatedBetween(0, 1)
	if !approxEqual(got, want, 1e-12) {
		t.Errorf("FutureEarnings(0, 8760h) = %v, want %v", got, want)
	}
}

func TestCurve_RateUnits(t *testing.T) {
	curve := Curve{InitialRate: 8760}
	if curve.HourlyRate() != 1 {
		t.Errorf("HourlyRate() = %v, want 1", curve.HourlyRate())
	}
	if curve.DailyRate() != 24 {
		t.Errorf("DailyRate() = %v, want 24", curve.DailyRate())
	}
	if curve.MonthlyRate() != 730 {
		t.Errorf("MonthlyRate() = %v, want 730", curve.MonthlyRate())
	}
}

func TestCurve_TimeTable(t *testing.T) {
	c := newTestCalculator(t)

	long := mustCurve(t, c, 30, 80, 80) // R = 50
	table := long.TimeTable()
	wantYears := []float64{0, 1, 5, 10, 25, 50}
	if len(table) != len(wantYears) {
		t.Fatalf("len(TimeTable) = %d, want %d", len(table), len(wantYears))
	}
	for i, tp := range table {
		if tp.Years != wantYears[i] {
			t.Errorf("table[%d].Years = %v, want %v", i, tp.Years, wantYears[i])
		}
		if !approxEqual(tp.Hourly*domain.HoursPerYear, tp.Yearly, 1e-9) {
			t.Errorf("table[%d] hourly/yearly mismatch", i)
		}
	}

	short := mustCurve(t, c, 60, 80, 80) // R = 20
	if got := len(short.TimeTable()); got != 4 {
		t.Errorf("len(TimeTable) for R=20 = %d, want 4", got)
	}
}

func TestFromStream(t *testing.T) {
	curve := mustCurve(t, newTestCalculator(t), 30, 80, 80)
	s := domain.EmissionStream{
		InitialRate:    curve.InitialRate,
		DecayConstant:  curve.DecayConstant,
		RemainingYears: curve.RemainingYears,
		TotalValue:     domain.Tokens(80),
	}
	got := FromStream(s)
	if got != curve {
		t.Errorf("FromStream() = %+v, want %+v", got, curve)
	}
}
