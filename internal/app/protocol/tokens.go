package protocol

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/baekya-protocol/baekya/internal/domain"
	"github.com/baekya-protocol/baekya/internal/infra/cvcm"
	"github.com/baekya-protocol/baekya/internal/infra/governance"
	"github.com/baekya-protocol/baekya/internal/infra/observability"
	"github.com/baekya-protocol/baekya/internal/infra/ptoken"
)

// ─── Periodic Issuance ──────────────────────────────────────────────────────

// PeriodLabel names the issuance window [since, until).
func PeriodLabel(since, until time.Time) string {
	return since.UTC().Format(time.RFC3339) + "/" + until.UTC().Format(time.RFC3339)
}

// LastIssuanceEnd returns the end of the latest issued window across all
// DAOs, or the zero time when no window was issued. Grants carry no window
// and are ignored.
func (s *Service) LastIssuanceEnd() time.Time {
	var last time.Time
	for _, rec := range s.alloc.Issuance("") {
		_, end, ok := strings.Cut(rec.Period, "/")
		if !ok {
			continue
		}
		t, err := time.Parse(time.RFC3339, end)
		if err == nil && t.After(last) {
			last = t
		}
	}
	return last
}

// RunIssuance mints daoID's CAPM ladder for contributions minted within
// [since, until). Each window is issued at most once; a window without
// contributions mints nothing.
func (s *Service) RunIssuance(ctx context.Context, daoID string, since, until time.Time) (ptoken.MintResult, error) {
	if !until.After(since) {
		return ptoken.MintResult{}, domain.InvalidField("until", "window end %v is not after start %v", until, since)
	}
	members, err := s.gov.MemberCount(daoID)
	if err != nil {
		return ptoken.MintResult{}, err
	}

	s.issueMu.Lock()
	defer s.issueMu.Unlock()

	period := PeriodLabel(since, until)
	for _, rec := range s.alloc.Issuance(daoID) {
		if rec.Period == period {
			return ptoken.MintResult{}, fmt.Errorf("issuance %s for %s: %w", period, daoID, domain.ErrDuplicateEntity)
		}
	}

	span := s.start(ctx, "run_issuance", map[string]string{"dao": daoID, "period": period})
	scores := s.ledger.ContributionScores(daoID, since, until)
	res, err := s.alloc.ExecutePeriodicMinting(daoID, scores, ptoken.MintConfig{
		MemberCount:  members,
		MinGuarantee: s.config.MinGuarantee,
		Period:       period,
	})
	span.End(err)
	if err != nil {
		observability.IssuanceRuns.WithLabelValues("error").Inc()
		return ptoken.MintResult{}, err
	}
	if len(res.Intents) == 0 {
		observability.IssuanceRuns.WithLabelValues("empty").Inc()
		return res, nil
	}

	observability.IssuanceRuns.WithLabelValues("minted").Inc()
	observability.PTokensMinted.WithLabelValues("capm").Add(res.Ladder.Total.Float64())
	s.publish(res.Intents...)
	s.refreshSupply()

	s.log.WithFields(logrus.Fields{
		"dao":        daoID,
		"period":     period,
		"recipients": len(res.Records),
		"total":      res.Ladder.Total,
		"median":     res.Ladder.Median,
	}).Info("Issued P tokens")
	return res, nil
}

// ─── Transfers & Burns ──────────────────────────────────────────────────────

// TransferPToken moves amount P from one identity to another.
func (s *Service) TransferPToken(ctx context.Context, from, to string, amount domain.Amount) (domain.LedgerIntent, error) {
	if err := s.checkIdentity("from", from); err != nil {
		return domain.LedgerIntent{}, err
	}
	if err := s.checkIdentity("to", to); err != nil {
		return domain.LedgerIntent{}, err
	}
	span := s.start(ctx, "transfer_ptoken", nil)
	intent, err := s.alloc.Transfer(from, to, amount)
	span.End(err)
	if err != nil {
		return domain.LedgerIntent{}, err
	}
	s.publish(intent)
	return intent, nil
}

// BurnPToken destroys amount of identity's P.
func (s *Service) BurnPToken(ctx context.Context, identity string, amount domain.Amount, reason string) (domain.LedgerIntent, error) {
	span := s.start(ctx, "burn_ptoken", map[string]string{"reason": reason})
	intent, err := s.alloc.Burn(identity, amount, reason)
	span.End(err)
	if err != nil {
		return domain.LedgerIntent{}, err
	}
	s.publish(intent)
	observability.PTokensBurned.Add(intent.Amount.Float64())
	s.refreshSupply()
	return intent, nil
}

// ─── Status ─────────────────────────────────────────────────────────────────

// DAOStatus combines one DAO's governance, contribution and issuance figures.
type DAOStatus struct {
	Name          string           `json:"name"`
	Governance    governance.Stats `json:"governance"`
	Contributions cvcm.DAOStats    `json:"contributions"`
	Issuance      ptoken.DAOStats  `json:"issuance"`
}

// Status is a point-in-time summary of the whole protocol.
type Status struct {
	DAOs       []DAOStatus         `json:"daos"`
	Network    ptoken.NetworkStats `json:"network"`
	Spans      int                 `json:"spans"`
	ErrorSpans int                 `json:"error_spans"`
}

// Status summarises every DAO and the P supply.
func (s *Service) Status() Status {
	daos := s.gov.DAOs()
	st := Status{DAOs: make([]DAOStatus, 0, len(daos)), Network: s.alloc.NetworkStats()}
	for _, d := range daos {
		gs, err := s.gov.Stats(d.ID)
		if err != nil {
			continue
		}
		st.DAOs = append(st.DAOs, DAOStatus{
			Name:          d.Name,
			Governance:    gs,
			Contributions: s.ledger.DAOStats(d.ID),
			Issuance:      s.alloc.DAOStats(d.ID),
		})
	}
	st.Spans, st.ErrorSpans = s.tracer.Stats()
	return st
}
