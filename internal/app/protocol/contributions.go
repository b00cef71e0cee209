package protocol

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/baekya-protocol/baekya/internal/domain"
	"github.com/baekya-protocol/baekya/internal/infra/cvcm"
	"github.com/baekya-protocol/baekya/internal/infra/observability"
)

// ─── Profiles ───────────────────────────────────────────────────────────────

// SetProfile records id's demographics and writes them to the attached
// store.
func (s *Service) SetProfile(id string, p domain.Profile) error {
	if err := s.checkIdentity("identity", id); err != nil {
		return err
	}
	if p.Age <= 0 {
		return domain.InvalidField("age", "must be positive, got %v", p.Age)
	}
	s.mu.Lock()
	s.profiles[id] = p
	store := s.profileStore
	s.mu.Unlock()

	if store != nil {
		if err := store.PutProfile(id, p); err != nil {
			s.persistFailed("profiles")(err)
		}
	}
	return nil
}

// Profile returns id's recorded demographics.
func (s *Service) Profile(id string) (domain.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	return p, ok
}

// ─── DAOs & Catalogue ───────────────────────────────────────────────────────

// CreateDAO registers a DAO founded and operated by founderID.
func (s *Service) CreateDAO(ctx context.Context, founderID string, cfg domain.DAOConfig) (domain.DAO, error) {
	if err := s.checkIdentity("founderId", founderID); err != nil {
		return domain.DAO{}, err
	}
	span := s.start(ctx, "create_dao", map[string]string{"founder": founderID})
	dao, err := s.gov.CreateDAO(founderID, cfg)
	span.End(err)
	if err != nil {
		return domain.DAO{}, err
	}

	observability.DAOs.Set(float64(len(s.gov.DAOs())))
	s.log.WithFields(logrus.Fields{"dao": dao.ID, "name": dao.Name, "founder": founderID}).Info("Created DAO")
	return dao, nil
}

// RegisterDCA adds dca to daoID's catalogue on behalf of the DAO operator.
func (s *Service) RegisterDCA(ctx context.Context, daoID, operatorID string, dca domain.DCA) (domain.DCA, error) {
	if err := s.requireOperator(daoID, operatorID); err != nil {
		return domain.DCA{}, err
	}
	span := s.start(ctx, "register_dca", map[string]string{"dao": daoID, "dca": dca.ID})
	stored, err := s.ledger.RegisterDCA(daoID, dca)
	span.End(err)
	if err != nil {
		return domain.DCA{}, err
	}
	s.log.WithFields(logrus.Fields{"dao": daoID, "dca": stored.ID, "value": stored.Value}).Debug("Registered DCA")
	return stored, nil
}

// ─── Contributions ──────────────────────────────────────────────────────────

// Outcome is the result of submitting or verifying a contribution.
type Outcome struct {
	Contribution domain.Contribution    `json:"contribution"`
	Stream       *domain.EmissionStream `json:"stream,omitempty"` // set once approved
	Joined       bool                   `json:"joined"`           // contributor became a DAO member
}

// SubmitContribution records a contribution. Contributions to an
// auto-verified DCA are approved by the system identity in the same call.
func (s *Service) SubmitContribution(ctx context.Context, req cvcm.SubmitRequest) (Outcome, error) {
	if err := s.checkIdentity("contributorId", req.ContributorID); err != nil {
		return Outcome{}, err
	}
	if _, err := s.gov.DAO(req.DAOID); err != nil {
		return Outcome{}, err
	}
	if req.Age == 0 {
		if p, ok := s.Profile(req.ContributorID); ok {
			req.Age = p.Age
			if req.Gender == "" {
				req.Gender = p.Gender
			}
			if req.LifeExpectancy == 0 {
				req.LifeExpectancy = p.LifeExpectancy
			}
		}
	}

	span := s.start(ctx, "submit_contribution", map[string]string{"dao": req.DAOID, "dca": req.DCAID})
	c, err := s.ledger.SubmitContribution(req)
	if err != nil {
		span.End(err)
		return Outcome{}, err
	}
	observability.ContributionsSubmitted.WithLabelValues(req.DAOID).Inc()
	span.Set("contribution", c.ID)

	dca, err := s.ledger.DCA(c.DAOID, c.DCAID)
	if err != nil || !dca.AutoVerified {
		span.End(nil)
		s.log.WithFields(logrus.Fields{"contribution": c.ID, "contributor": c.ContributorID}).Debug("Contribution submitted")
		return Outcome{Contribution: c}, nil
	}

	out, err := s.decide(span.Context(ctx), cvcm.VerifyRequest{
		ContributionID: c.ID,
		VerifierID:     s.config.SystemID,
		Approved:       true,
		Reason:         "auto-verified",
	})
	span.End(err)
	if err != nil {
		return Outcome{Contribution: c}, err
	}
	return out, nil
}

// VerifyContribution records the DAO operator's decision. Approval starts
// the emission stream and makes the contributor a member.
func (s *Service) VerifyContribution(ctx context.Context, req cvcm.VerifyRequest) (Outcome, error) {
	c, err := s.ledger.Contribution(req.ContributionID)
	if err != nil {
		return Outcome{}, err
	}
	if err := s.requireOperator(c.DAOID, req.VerifierID); err != nil {
		return Outcome{}, err
	}
	return s.decide(ctx, req)
}

func (s *Service) decide(ctx context.Context, req cvcm.VerifyRequest) (Outcome, error) {
	span := s.start(ctx, "verify_contribution", map[string]string{"contribution": req.ContributionID})
	res, err := s.ledger.VerifyContribution(req)
	if err != nil {
		span.End(err)
		return Outcome{}, err
	}

	out := Outcome{Contribution: res.Contribution, Stream: res.Stream}
	if res.Stream == nil {
		observability.ContributionsVerified.WithLabelValues("rejected").Inc()
		span.End(nil)
		s.log.WithFields(logrus.Fields{"contribution": req.ContributionID, "reason": req.Reason}).Debug("Contribution rejected")
		return out, nil
	}

	observability.ContributionsVerified.WithLabelValues("approved").Inc()
	observability.EmissionStreams.Inc()
	joined, err := s.gov.AddContributor(res.Contribution.DAOID, res.Contribution.ContributorID)
	if err != nil {
		err = fmt.Errorf("add %s to %s: %w", res.Contribution.ContributorID, res.Contribution.DAOID, err)
		span.End(err)
		return out, err
	}
	out.Joined = joined
	span.End(nil)

	s.log.WithFields(logrus.Fields{
		"contribution": req.ContributionID,
		"contributor":  res.Contribution.ContributorID,
		"rate":         res.Stream.InitialRate,
		"joined":       joined,
	}).Debug("Contribution approved")
	return out, nil
}

// ClaimAccrued credits the B emitted to contributorID since the last claim
// and publishes it as a MINT intent.
func (s *Service) ClaimAccrued(ctx context.Context, contributorID string) (cvcm.Accrual, error) {
	if err := s.checkIdentity("contributorId", contributorID); err != nil {
		return cvcm.Accrual{}, err
	}
	span := s.start(ctx, "claim_accrued", map[string]string{"contributor": contributorID})
	acc := s.ledger.ProjectAccumulated(contributorID)
	if acc.New > 0 {
		s.publish(domain.LedgerIntent{
			Kind:      domain.IntentMint,
			SubjectID: contributorID,
			Token:     domain.TokenB,
			Amount:    acc.New,
			Metadata:  map[string]string{"source": "emission"},
			Timestamp: acc.EvaluatedAt,
		})
		observability.BTokensClaimed.Add(acc.New.Float64())
	}
	span.Set("new", acc.New.String())
	span.End(nil)
	return acc, nil
}
