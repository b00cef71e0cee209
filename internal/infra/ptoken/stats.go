package ptoken

import (
	"sort"
	"time"

	"github.com/baekya-protocol/baekya/internal/domain"
)

// ─── Statistics ─────────────────────────────────────────────────────────────

// DAOStats summarises one DAO's issuance history.
type DAOStats struct {
	DAOID       string        `json:"dao_id"`
	TotalIssued domain.Amount `json:"total_issued"`
	Recipients  int           `json:"recipients"`
	Periods     int           `json:"periods"`
	LastIssued  time.Time     `json:"last_issued,omitempty"`
}

// NetworkStats summarises the whole P supply.
type NetworkStats struct {
	TotalSupply domain.Amount `json:"total_supply"`
	Burned      domain.Amount `json:"burned"`
	Circulating domain.Amount `json:"circulating"`
	Holders     int           `json:"holders"`
	ActiveDAOs  int           `json:"active_daos"` // DAOs with at least one issuance
}

// Holder is one identity's balance.
type Holder struct {
	Identity string        `json:"identity"`
	Balance  domain.Amount `json:"balance"`
}

// DAOStats reports issuance for daoID.
func (a *Allocator) DAOStats(daoID string) DAOStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	st := DAOStats{DAOID: daoID}
	recipients := make(map[string]struct{})
	periods := make(map[string]struct{})
	for _, rec := range a.issuance {
		if rec.DAOID != daoID {
			continue
		}
		st.TotalIssued += rec.Amount
		recipients[rec.Identity] = struct{}{}
		periods[rec.Period] = struct{}{}
		if rec.Timestamp.After(st.LastIssued) {
			st.LastIssued = rec.Timestamp
		}
	}
	st.Recipients = len(recipients)
	st.Periods = len(periods)
	return st
}

// NetworkStats reports supply counters across every DAO.
func (a *Allocator) NetworkStats() NetworkStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	st := NetworkStats{
		TotalSupply: a.totalSupply,
		Burned:      a.burned,
		Circulating: a.totalSupply - a.burned,
	}
	for _, bal := range a.balances {
		if bal > 0 {
			st.Holders++
		}
	}
	daos := make(map[string]struct{})
	for _, rec := range a.issuance {
		daos[rec.DAOID] = struct{}{}
	}
	st.ActiveDAOs = len(daos)
	return st
}

// TopHolders returns up to limit holders by balance, descending, ties by
// identity. limit ≤ 0 returns every holder.
func (a *Allocator) TopHolders(limit int) []Holder {
	a.mu.RLock()
	out := make([]Holder, 0, len(a.balances))
	for id, bal := range a.balances {
		if bal > 0 {
			out = append(out, Holder{Identity: id, Balance: bal})
		}
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Balance != out[j].Balance {
			return out[i].Balance > out[j].Balance
		}
		return out[i].Identity < out[j].Identity
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Issuance returns daoID's issuance records in mint order. An empty daoID
// returns every record.
func (a *Allocator) Issuance(daoID string) []domain.IssuanceRecord {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []domain.IssuanceRecord
	for _, rec := range a.issuance {
		if daoID == "" || rec.DAOID == daoID {
			out = append(out, rec)
		}
	}
	return out
}

// ─── Snapshot & Restore ─────────────────────────────────────────────────────

// Snapshot copies balances, the issuance trail and the supply counters.
func (a *Allocator) Snapshot() domain.BalanceSnapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()

	snap := domain.BalanceSnapshot{
		Balances:    make(map[string]domain.Amount, len(a.balances)),
		Issuance:    append([]domain.IssuanceRecord(nil), a.issuance...),
		TotalSupply: a.totalSupply,
		Burned:      a.burned,
	}
	for id, bal := range a.balances {
		snap.Balances[id] = bal
	}
	return snap
}

// Restore replaces the allocator state with snap.
func (a *Allocator) Restore(snap domain.BalanceSnapshot) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.balances = make(map[string]domain.Amount, len(snap.Balances))
	for id, bal := range snap.Balances {
		a.balances[id] = bal
	}
	a.issuance = append([]domain.IssuanceRecord(nil), snap.Issuance...)
	sort.SliceStable(a.issuance, func(i, j int) bool { return a.issuance[i].Timestamp.Before(a.issuance[j].Timestamp) })
	a.totalSupply = snap.TotalSupply
	a.burned = snap.Burned
}
