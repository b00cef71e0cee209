package protocol

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/baekya-protocol/baekya/internal/domain"
	"github.com/baekya-protocol/baekya/internal/infra/cvcm"
	"github.com/baekya-protocol/baekya/internal/infra/governance"
	"github.com/baekya-protocol/baekya/internal/infra/observability"
)

// ─── Proposals ──────────────────────────────────────────────────────────────

// CreateProposal opens a pending proposal in req.DAOID.
func (s *Service) CreateProposal(ctx context.Context, req governance.ProposalRequest) (*domain.Proposal, error) {
	if err := s.checkIdentity("proposerId", req.ProposerID); err != nil {
		return nil, err
	}
	span := s.start(ctx, "create_proposal", map[string]string{"dao": req.DAOID})
	p, err := s.gov.CreateProposal(req)
	span.End(err)
	if err != nil {
		return nil, err
	}
	observability.ProposalTransitions.WithLabelValues(string(domain.ProposalPending)).Inc()
	s.log.WithFields(logrus.Fields{"dao": p.DAOID, "proposal": p.ID, "proposer": p.ProposerID}).Debug("Proposal created")
	return p, nil
}

// PayProposalStake records the proposer's stake. The proposer must hold
// amount P.
func (s *Service) PayProposalStake(ctx context.Context, daoID, proposalID, payerID string, amount domain.Amount) (governance.EntryResult, error) {
	if err := s.requireBalance(payerID, amount); err != nil {
		return governance.EntryResult{}, err
	}
	span := s.start(ctx, "pay_proposal_stake", map[string]string{"dao": daoID, "proposal": proposalID})
	res, err := s.gov.PayProposalStake(daoID, proposalID, payerID, amount)
	span.End(err)
	if err != nil {
		return governance.EntryResult{}, err
	}
	s.afterEntry(ctx, res)
	return res, nil
}

// EndorseProposal records a member's endorsement. The endorser must hold
// amount P.
func (s *Service) EndorseProposal(ctx context.Context, daoID, proposalID, endorserID string, amount domain.Amount) (governance.EntryResult, error) {
	if err := s.requireBalance(endorserID, amount); err != nil {
		return governance.EntryResult{}, err
	}
	span := s.start(ctx, "endorse_proposal", map[string]string{"dao": daoID, "proposal": proposalID})
	res, err := s.gov.EndorseProposal(daoID, proposalID, endorserID, amount)
	span.End(err)
	if err != nil {
		return governance.EntryResult{}, err
	}
	s.afterEntry(ctx, res)
	return res, nil
}

// afterEntry credits the proposer once a proposal reaches the vote.
func (s *Service) afterEntry(ctx context.Context, res governance.EntryResult) {
	if !res.EnteredVoting {
		return
	}
	p := res.Proposal
	observability.ProposalTransitions.WithLabelValues(string(domain.ProposalVoting)).Inc()
	s.log.WithFields(logrus.Fields{"dao": p.DAOID, "proposal": p.ID}).Info("Proposal entered voting")

	political, ok := s.DefaultDAO(PoliticalDAO)
	if !ok {
		return
	}
	if _, err := s.ledger.DCA(political, ProposalFundingDCA); err != nil {
		return
	}
	_, err := s.SubmitContribution(ctx, cvcm.SubmitRequest{
		DAOID:         political,
		DCAID:         ProposalFundingDCA,
		ContributorID: p.ProposerID,
		Description:   p.Title,
		Evidence:      "proposal:" + p.ID,
	})
	if err != nil {
		// Proposers without a profile have no age to derive emission from.
		s.log.WithError(err).WithField("proposer", p.ProposerID).Warn("Proposal funding credit skipped")
	}
}

// Vote casts a weighted ballot. The voter must be qualified and the weight
// must not exceed their voting power.
func (s *Service) Vote(ctx context.Context, req governance.VoteRequest) (governance.VoteResult, error) {
	if !s.alloc.IsQualifiedVoter(req.VoterID) {
		return governance.VoteResult{}, fmt.Errorf("%s is not a qualified voter: %w", req.VoterID, domain.ErrInsufficientBalance)
	}
	if power := s.alloc.VotingPower(req.VoterID); req.Weight > power {
		return governance.VoteResult{}, fmt.Errorf("weight %v exceeds voting power %v of %s: %w", req.Weight, power, req.VoterID, domain.ErrInsufficientBalance)
	}

	span := s.start(ctx, "vote", map[string]string{"dao": req.DAOID, "proposal": req.ProposalID, "choice": string(req.Choice)})
	res, err := s.gov.Vote(req)
	span.End(err)
	if err != nil {
		return governance.VoteResult{}, err
	}

	observability.VotesCast.WithLabelValues(string(req.Choice)).Inc()
	if res.Concluded {
		observability.ProposalTransitions.WithLabelValues(string(res.Proposal.Status)).Inc()
		s.log.WithFields(logrus.Fields{
			"dao":      req.DAOID,
			"proposal": req.ProposalID,
			"status":   res.Proposal.Status,
			"approval": governance.ApprovalRatio(res.Proposal.Votes),
		}).Info("Proposal concluded")
	}
	return res, nil
}

// ─── Operator Accountability ────────────────────────────────────────────────

// ConductOperatorSurvey opens a survey on daoID's operator.
func (s *Service) ConductOperatorSurvey(ctx context.Context, daoID string) (*domain.OperatorSurvey, error) {
	span := s.start(ctx, "conduct_survey", map[string]string{"dao": daoID})
	sv, err := s.gov.ConductOperatorSurvey(daoID)
	span.End(err)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"dao": daoID, "survey": sv.ID, "operator": sv.OperatorID}).Debug("Operator survey opened")
	return sv, nil
}

// VoteOperatorSurvey records a member's survey answer.
func (s *Service) VoteOperatorSurvey(ctx context.Context, daoID, surveyID, voterID string, choice domain.SurveyChoice) (*domain.OperatorSurvey, error) {
	span := s.start(ctx, "vote_survey", map[string]string{"dao": daoID, "survey": surveyID})
	sv, err := s.gov.VoteOperatorSurvey(daoID, surveyID, voterID, choice)
	span.End(err)
	return sv, err
}

// ConcludeOperatorSurvey closes a survey; low support opens an impeachment.
func (s *Service) ConcludeOperatorSurvey(ctx context.Context, daoID, surveyID string) (governance.SurveyOutcome, error) {
	span := s.start(ctx, "conclude_survey", map[string]string{"dao": daoID, "survey": surveyID})
	out, err := s.gov.ConcludeOperatorSurvey(daoID, surveyID)
	span.End(err)
	if err != nil {
		return governance.SurveyOutcome{}, err
	}

	outcome := "confidence"
	if out.Impeachment != nil {
		outcome = "impeachment"
	}
	observability.SurveysConcluded.WithLabelValues(outcome).Inc()
	s.log.WithFields(logrus.Fields{
		"dao":     daoID,
		"survey":  surveyID,
		"support": out.Survey.SupportRate,
		"outcome": outcome,
	}).Info("Operator survey concluded")
	return out, nil
}

// VoteImpeachment records a member's impeachment ballot.
func (s *Service) VoteImpeachment(ctx context.Context, daoID, impeachmentID, voterID string, choice domain.VoteChoice) (*domain.Impeachment, error) {
	span := s.start(ctx, "vote_impeachment", map[string]string{"dao": daoID, "impeachment": impeachmentID})
	im, err := s.gov.VoteImpeachment(daoID, impeachmentID, voterID, choice)
	span.End(err)
	return im, err
}

// ConcludeImpeachment settles an impeachment. When upheld, successorID
// becomes operator and the removed operator's P balance is burned.
func (s *Service) ConcludeImpeachment(ctx context.Context, daoID, impeachmentID, successorID string) (*domain.Impeachment, error) {
	span := s.start(ctx, "conclude_impeachment", map[string]string{"dao": daoID, "impeachment": impeachmentID})
	im, err := s.gov.ConcludeImpeachment(daoID, impeachmentID, successorID)
	if err != nil {
		span.End(err)
		return nil, err
	}

	observability.ImpeachmentsConcluded.WithLabelValues(string(im.Status)).Inc()
	if im.Status != domain.ImpeachmentUpheld {
		span.End(nil)
		s.log.WithFields(logrus.Fields{"dao": daoID, "impeachment": impeachmentID}).Info("Impeachment dismissed")
		return im, nil
	}

	burn, err := s.alloc.BurnAll(im.TargetOperatorID, "impeached")
	if err != nil {
		span.End(err)
		return im, fmt.Errorf("burn P of %s: %w", im.TargetOperatorID, err)
	}
	s.publish(burn)
	observability.PTokensBurned.Add(burn.Amount.Float64())
	s.refreshSupply()
	span.End(nil)

	s.log.WithFields(logrus.Fields{
		"dao":       daoID,
		"removed":   im.TargetOperatorID,
		"successor": im.SuccessorID,
		"burned":    burn.Amount,
	}).Warn("Operator impeached")
	return im, nil
}
