// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
//
// Contributions flow through four engines that all speak these types:
// emission (decay streams), cvcm (contribution ledger), governance (DAOs),
// and ptoken (political-token issuance).
package domain

import (
	"fmt"
	"math"
	"time"
)

// ─── Fixed-Point Amounts ────────────────────────────────────────────────────

// Amount is a token quantity in micro-units (1 token = AmountScale units).
type Amount int64

// AmountScale is the number of micro-units per whole token.
const AmountScale Amount = 1_000_000

// Tokens converts a whole-token count to an Amount.
func Tokens(n int64) Amount { return Amount(n) * AmountScale }

// AmountFromFloat floors a token quantity to micro-units.
func AmountFromFloat(v float64) Amount {
	return Amount(math.Floor(v * float64(AmountScale)))
}

// Float64 returns the amount in tokens.
func (a Amount) Float64() float64 { return float64(a) / float64(AmountScale) }

// String formats the amount with six decimals, e.g. "30.000000".
func (a Amount) String() string {
	sign := ""
	if a < 0 {
		sign = "-"
		a = -a
	}
	return fmt.Sprintf("%s%d.%06d", sign, a/AmountScale, a%AmountScale)
}

// TokenKind distinguishes the two ledgers.
type TokenKind string

const (
	TokenB TokenKind = "B" // contribution reward, emitted by decay streams
	TokenP TokenKind = "P" // political token, minted by CAPM issuance
)

// ─── Contribution Types ─────────────────────────────────────────────────────

// Gender selects a default life expectancy when none is supplied.
type Gender string

const (
	GenderUnspecified Gender = ""
	GenderMale        Gender = "male"
	GenderFemale      Gender = "female"
)

// ContributionStatus is the lifecycle state of a contribution.
type ContributionStatus string

const (
	StatusSubmitted ContributionStatus = "submitted"
	StatusVerified  ContributionStatus = "verified"
	StatusRejected  ContributionStatus = "rejected"
	StatusMinted    ContributionStatus = "minted"
)

// Terminal reports whether a verification decision has been recorded.
func (s ContributionStatus) Terminal() bool {
	return s == StatusVerified || s == StatusRejected || s == StatusMinted
}

// DCA (designated contribution activity) is a catalogue entry of a DAO.
// Immutable once registered.
type DCA struct {
	DAOID        string    `json:"dao_id"`
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Value        Amount    `json:"value"`
	Criteria     string    `json:"criteria"`
	AutoVerified bool      `json:"auto_verified"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Verification is the single decision taken on a contribution.
type Verification struct {
	ContributionID string    `json:"contribution_id"`
	VerifierID     string    `json:"verifier_id"`
	Approved       bool      `json:"approved"`
	Reason         string    `json:"reason,omitempty"`
	DecidedAt      time.Time `json:"decided_at"`
}

// Profile holds the demographics emission depends on. Contributions that
// omit an age fall back to the contributor's profile.
type Profile struct {
	Age            float64 `json:"age"`
	Gender         Gender  `json:"gender,omitempty"`
	LifeExpectancy float64 `json:"life_expectancy,omitempty"` // 0 selects the default for Gender
}

// Contribution is one submitted unit of work against a DCA.
type Contribution struct {
	ID             string             `json:"id"`
	DAOID          string             `json:"dao_id"`
	DCAID          string             `json:"dca_id"`
	ContributorID  string             `json:"contributor_id"`
	Age            float64            `json:"age"`
	Gender         Gender             `json:"gender,omitempty"`
	LifeExpectancy float64            `json:"life_expectancy"`
	Description    string             `json:"description,omitempty"`
	Evidence       string             `json:"evidence,omitempty"`
	Value          Amount             `json:"value"`
	Status         ContributionStatus `json:"status"`
	SubmittedAt    time.Time          `json:"submitted_at"`
	Verification   *Verification      `json:"verification,omitempty"`
}

// EmissionStream is the decaying issuance curve created by one verified
// contribution. Never mutated after creation.
type EmissionStream struct {
	ContributionID string    `json:"contribution_id"`
	ContributorID  string    `json:"contributor_id"`
	DAOID          string    `json:"dao_id"`
	DCAID          string    `json:"dca_id"`
	InitialRate    float64   `json:"initial_rate"`    // tokens/year at t=0
	DecayConstant  float64   `json:"decay_constant"`  // k, per year
	RemainingYears float64   `json:"remaining_years"` // R
	TotalValue     Amount    `json:"total_value"`
	StartTime      time.Time `json:"start_time"`
}

// ElapsedYears returns the stream age at now, in years (never negative).
func (s *EmissionStream) ElapsedYears(now time.Time) float64 {
	d := now.Sub(s.StartTime)
	if d <= 0 {
		return 0
	}
	return d.Hours() / HoursPerYear
}

// Calendar constants used to express annual rates.
const (
	HoursPerYear  = 8760
	DaysPerYear   = 365
	MonthsPerYear = 12
)
