package cvcm

import (
	"sort"
	"time"

	"github.com/baekya-protocol/baekya/internal/domain"
)

// ─── DAO Statistics ─────────────────────────────────────────────────────────

// DAOStats summarises contribution activity in one DAO.
type DAOStats struct {
	DAOID              string  `json:"dao_id"`
	TotalContributions int     `json:"total_contributions"`
	Verified           int     `json:"verified"`
	Rejected           int     `json:"rejected"`
	Pending            int     `json:"pending"`
	UniqueContributors int     `json:"unique_contributors"`
	VerificationRate   float64 `json:"verification_rate"` // verified / total
	TotalInitialRate   float64 `json:"total_initial_rate"`
}

// DAOStats aggregates every contribution submitted to daoID.
func (l *Ledger) DAOStats(daoID string) DAOStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := DAOStats{DAOID: daoID}
	contributors := make(map[string]struct{})
	streamsFor := make(map[string]bool) // contributionIDs that produced a stream

	for _, c := range l.contributions {
		if c.DAOID != daoID {
			continue
		}
		stats.TotalContributions++
		contributors[c.ContributorID] = struct{}{}
		switch c.Status {
		case domain.StatusMinted, domain.StatusVerified:
			stats.Verified++
			streamsFor[c.ID] = true
		case domain.StatusRejected:
			stats.Rejected++
		default:
			stats.Pending++
		}
	}
	stats.UniqueContributors = len(contributors)
	if stats.TotalContributions > 0 {
		stats.VerificationRate = float64(stats.Verified) / float64(stats.TotalContributions)
	}

	for id := range contributors {
		acct := l.accounts[id]
		if acct == nil {
			continue
		}
		acct.mu.Lock()
		for _, s := range acct.streams {
			if streamsFor[s.ContributionID] {
				stats.TotalInitialRate += s.InitialRate
			}
		}
		acct.mu.Unlock()
	}
	return stats
}

// ─── Ranking Input ──────────────────────────────────────────────────────────

// ContributionScores sums, per contributor, the value of contributions to
// daoID minted within [since, until). A zero until means no upper bound.
func (l *Ledger) ContributionScores(daoID string, since, until time.Time) map[string]float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	scores := make(map[string]float64)
	for _, c := range l.contributions {
		if c.DAOID != daoID || c.Status != domain.StatusMinted || c.Verification == nil {
			continue
		}
		at := c.Verification.DecidedAt
		if at.Before(since) || (!until.IsZero() && !at.Before(until)) {
			continue
		}
		scores[c.ContributorID] += c.Value.Float64()
	}
	return scores
}

// ─── Snapshot & Restore ─────────────────────────────────────────────────────

// Snapshot copies the full ledger state.
func (l *Ledger) Snapshot() domain.LedgerSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var snap domain.LedgerSnapshot
	for _, catalogue := range l.dcas {
		for _, dca := range catalogue {
			snap.DCAs = append(snap.DCAs, *dca)
		}
	}
	for _, c := range l.contributions {
		snap.Contributions = append(snap.Contributions, *c)
	}
	for _, acct := range l.accounts {
		acct.mu.Lock()
		snap.Streams = append(snap.Streams, acct.streams...)
		snap.Accounts = append(snap.Accounts, acct.cursorLocked())
		acct.mu.Unlock()
	}
	sort.Slice(snap.Contributions, func(i, j int) bool {
		return snap.Contributions[i].SubmittedAt.Before(snap.Contributions[j].SubmittedAt)
	})
	return snap
}

// Restore replaces the ledger state with snap.
func (l *Ledger) Restore(snap domain.LedgerSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.dcas = make(map[string]map[string]*domain.DCA)
	l.contributions = make(map[string]*domain.Contribution)
	l.byContributor = make(map[string][]string)
	l.accounts = make(map[string]*account)

	for _, dca := range snap.DCAs {
		d := dca
		if l.dcas[d.DAOID] == nil {
			l.dcas[d.DAOID] = make(map[string]*domain.DCA)
		}
		l.dcas[d.DAOID][d.ID] = &d
	}

	contributions := append([]domain.Contribution(nil), snap.Contributions...)
	sort.SliceStable(contributions, func(i, j int) bool {
		return contributions[i].SubmittedAt.Before(contributions[j].SubmittedAt)
	})
	for _, c := range contributions {
		cp := c
		l.contributions[cp.ID] = &cp
		l.byContributor[cp.ContributorID] = append(l.byContributor[cp.ContributorID], cp.ID)
	}

	streams := append([]domain.EmissionStream(nil), snap.Streams...)
	sort.SliceStable(streams, func(i, j int) bool { return streams[i].StartTime.Before(streams[j].StartTime) })
	for _, s := range streams {
		acct := l.accountLocked(s.ContributorID)
		acct.streams = append(acct.streams, s)
	}
	for _, cur := range snap.Accounts {
		acct := l.accountLocked(cur.ContributorID)
		acct.lastEval = cur.LastEvaluated
		acct.accrued = cur.Accrued
		for k, v := range cur.Credited {
			acct.credited[k] = v
		}
	}
}
