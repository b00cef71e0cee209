package cvcm

import (
	"fmt"
	"time"

	"github.com/baekya-protocol/baekya/internal/domain"
	"github.com/baekya-protocol/baekya/internal/infra/emission"
)

// ─── Rates ──────────────────────────────────────────────────────────────────

// TotalRate is Σ initial rate (B/year) over a contributor's streams.
func (l *Ledger) TotalRate(contributorID string) float64 {
	var total float64
	for _, s := range l.Streams(contributorID) {
		total += s.InitialRate
	}
	return total
}

// CurrentHourlyRate is Σ rate(elapsed) over a contributor's streams, per hour.
func (l *Ledger) CurrentHourlyRate(contributorID string) float64 {
	now := l.clock()
	var yearly float64
	for _, s := range l.Streams(contributorID) {
		yearly += emission.FromStream(s).RateAt(s.ElapsedYears(now))
	}
	return yearly / domain.HoursPerYear
}

func (l *Ledger) clock() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.now()
}

// ─── Accrual ────────────────────────────────────────────────────────────────

// Accrual is the result of advancing a contributor's cursor.
type Accrual struct {
	ContributorID string        `json:"contributor_id"`
	New           domain.Amount `json:"new"`   // credited by this call
	Total         domain.Amount `json:"total"` // credited over the account's life
	EvaluatedAt   time.Time     `json:"evaluated_at"`
}

// ProjectAccumulated credits whatever the streams have paid out since the
// last evaluation. Each stream's payout is floor(∫₀^elapsed rate) in
// micro-units minus what was already credited, so repeated or concurrent
// calls never count the same tokens twice.
func (l *Ledger) ProjectAccumulated(contributorID string) Accrual {
	l.mu.RLock()
	now := l.now()
	acct := l.accounts[contributorID]
	repo, onErr := l.repo, l.onPersistError
	l.mu.RUnlock()
	if acct == nil {
		return Accrual{ContributorID: contributorID, EvaluatedAt: now}
	}

	acct.mu.Lock()
	defer acct.mu.Unlock()

	if now.Before(acct.lastEval) {
		now = acct.lastEval
	}

	var fresh domain.Amount
	for _, s := range acct.streams {
		owed := owedTotal(s, now)
		if delta := owed - acct.credited[s.ContributionID]; delta > 0 {
			acct.credited[s.ContributionID] = owed
			fresh += delta
		}
	}
	acct.accrued += fresh
	acct.lastEval = now

	// Written under the account lock so cursors reach the store in order.
	if fresh > 0 && repo != nil {
		if err := repo.PutAccount(acct.cursorLocked()); err != nil && onErr != nil {
			onErr(fmt.Errorf("cvcm: persist: %w", err))
		}
	}

	return Accrual{ContributorID: contributorID, New: fresh, Total: acct.accrued, EvaluatedAt: now}
}

// owedTotal is what stream s has paid out in total by now, in micro-units.
func owedTotal(s domain.EmissionStream, now time.Time) domain.Amount {
	elapsed := s.ElapsedYears(now)
	if elapsed >= s.RemainingYears {
		return s.TotalValue
	}
	owed := domain.AmountFromFloat(emission.FromStream(s).AccumulatedBetween(0, elapsed))
	if owed > s.TotalValue {
		owed = s.TotalValue
	}
	return owed
}

func (a *account) cursorLocked() domain.AccountCursor {
	credited := make(map[string]domain.Amount, len(a.credited))
	for k, v := range a.credited {
		credited[k] = v
	}
	return domain.AccountCursor{
		ContributorID: a.id,
		LastEvaluated: a.lastEval,
		Credited:      credited,
		Accrued:       a.accrued,
	}
}

// ─── Dashboard ──────────────────────────────────────────────────────────────

// StreamView is one stream as seen at a point in time.
type StreamView struct {
	Stream         domain.EmissionStream `json:"stream"`
	CurrentRate    emission.Rates        `json:"current_rate"`
	ElapsedYears   float64               `json:"elapsed_years"`
	RemainingYears float64               `json:"remaining_years"`
	Credited       domain.Amount         `json:"credited"`
	TimeTable      []emission.TimePoint  `json:"time_table"`
}

// Dashboard is a read-only summary of a contributor's emission.
type Dashboard struct {
	ContributorID string         `json:"contributor_id"`
	AsOf          time.Time      `json:"as_of"`
	InitialRate   emission.Rates `json:"initial_rate"` // Σ A
	CurrentRate   emission.Rates `json:"current_rate"` // Σ rate(elapsed)
	Accrued       domain.Amount  `json:"accrued"`      // credited so far
	Pending       domain.Amount  `json:"pending"`      // paid out, not yet credited
	Streams       []StreamView   `json:"streams"`
}

// Dashboard reports rates and balances without advancing the cursor.
func (l *Ledger) Dashboard(contributorID string) Dashboard {
	now := l.clock()
	d := Dashboard{ContributorID: contributorID, AsOf: now}

	acct := l.account(contributorID)
	if acct == nil {
		return d
	}

	acct.mu.Lock()
	defer acct.mu.Unlock()

	var initial, current float64
	for _, s := range acct.streams {
		curve := emission.FromStream(s)
		elapsed := s.ElapsedYears(now)
		rate := curve.RateAt(elapsed)
		initial += s.InitialRate
		current += rate

		credited := acct.credited[s.ContributionID]
		if owed := owedTotal(s, now); owed > credited {
			d.Pending += owed - credited
		}

		remaining := s.RemainingYears - elapsed
		if remaining < 0 {
			remaining = 0
		}
		d.Streams = append(d.Streams, StreamView{
			Stream:         s,
			CurrentRate:    emission.RatesOf(rate),
			ElapsedYears:   elapsed,
			RemainingYears: remaining,
			Credited:       credited,
			TimeTable:      curve.TimeTable(),
		})
	}
	d.InitialRate = emission.RatesOf(initial)
	d.CurrentRate = emission.RatesOf(current)
	d.Accrued = acct.accrued
	return d
}
