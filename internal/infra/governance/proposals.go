package governance

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/baekya-protocol/baekya/internal/domain"
)

// ─── Requests ───────────────────────────────────────────────────────────────

// ProposalRequest describes a new proposal.
type ProposalRequest struct {
	DAOID       string
	ProposerID  string
	Title       string
	Description string
	Type        string
}

// VoteRequest is one weighted ballot.
type VoteRequest struct {
	DAOID      string
	ProposalID string
	VoterID    string
	Choice     domain.VoteChoice
	Weight     domain.Amount
}

// EntryResult is returned by stake and endorsement calls.
type EntryResult struct {
	Proposal      *domain.Proposal
	EnteredVoting bool // this call moved the proposal to voting
}

// VoteResult is returned by Vote.
type VoteResult struct {
	Proposal  *domain.Proposal
	Concluded bool // this call reached quorum and concluded the proposal
}

// ─── Proposal Lifecycle ─────────────────────────────────────────────────────

// CreateProposal opens a pending proposal. Only members may propose.
func (e *Engine) CreateProposal(req ProposalRequest) (*domain.Proposal, error) {
	if req.ProposerID == "" {
		return nil, domain.RequiredField("proposerId")
	}
	if req.Title == "" {
		return nil, domain.RequiredField("title")
	}
	s, err := e.lookup(req.DAOID)
	if err != nil {
		return nil, err
	}
	s.ds.mu.Lock()
	defer s.ds.mu.Unlock()

	if !s.ds.isMember(req.ProposerID) {
		return nil, fmt.Errorf("propose in %s: %s: %w", req.DAOID, req.ProposerID, domain.ErrNotAMember)
	}

	p := &domain.Proposal{
		ID:          uuid.NewString(),
		DAOID:       req.DAOID,
		ProposerID:  req.ProposerID,
		Title:       req.Title,
		Description: req.Description,
		Type:        req.Type,
		Status:      domain.ProposalPending,
		Voters:      make(map[string]domain.VoteChoice),
		CreatedAt:   s.now,
	}
	s.ds.proposals[p.ID] = p
	s.ds.proposalOrder = append(s.ds.proposalOrder, p.ID)

	return e.commitProposal(s, p), nil
}

// PayProposalStake adds to the proposer's stake. Only the proposer may pay.
func (e *Engine) PayProposalStake(daoID, proposalID, payerID string, amount domain.Amount) (EntryResult, error) {
	if amount <= 0 {
		return EntryResult{}, domain.InvalidField("amount", "must be positive, got %v", amount)
	}
	s, p, err := e.lockProposal(daoID, proposalID)
	if err != nil {
		return EntryResult{}, err
	}
	defer s.ds.mu.Unlock()

	if payerID != p.ProposerID {
		return EntryResult{}, fmt.Errorf("stake on %s by %s: %w", proposalID, payerID, domain.ErrNotAuthorized)
	}
	if p.Status != domain.ProposalPending {
		return EntryResult{}, fmt.Errorf("stake on %s (%s): %w", proposalID, p.Status, domain.ErrInvalidStateTransition)
	}

	p.Stake += amount
	entered := e.tryEnterVoting(s, p)
	return EntryResult{Proposal: e.commitProposal(s, p), EnteredVoting: entered}, nil
}

// EndorseProposal adds a member's endorsement to a pending proposal.
func (e *Engine) EndorseProposal(daoID, proposalID, endorserID string, amount domain.Amount) (EntryResult, error) {
	if amount <= 0 {
		return EntryResult{}, domain.InvalidField("amount", "must be positive, got %v", amount)
	}
	s, p, err := e.lockProposal(daoID, proposalID)
	if err != nil {
		return EntryResult{}, err
	}
	defer s.ds.mu.Unlock()

	if !s.ds.isMember(endorserID) {
		return EntryResult{}, fmt.Errorf("endorse %s by %s: %w", proposalID, endorserID, domain.ErrNotAMember)
	}
	if p.Status != domain.ProposalPending {
		return EntryResult{}, fmt.Errorf("endorse %s (%s): %w", proposalID, p.Status, domain.ErrInvalidStateTransition)
	}

	p.Endorsements += amount
	entered := e.tryEnterVoting(s, p)
	return EntryResult{Proposal: e.commitProposal(s, p), EnteredVoting: entered}, nil
}

// tryEnterVoting moves p to voting when both entry thresholds hold.
// Caller holds s.ds.mu.
func (e *Engine) tryEnterVoting(s session, p *domain.Proposal) bool {
	if p.Status != domain.ProposalPending {
		return false
	}
	needed := domain.Tokens(int64(e.config.EndorsementThreshold(len(s.ds.members))))
	if p.Stake < e.config.MinStake || p.Endorsements < needed {
		return false
	}
	p.Status = domain.ProposalVoting
	p.VotingStartedAt = s.now
	return true
}

// Vote casts one weighted ballot. The ballot that brings the total weight
// to quorum concludes the proposal.
func (e *Engine) Vote(req VoteRequest) (VoteResult, error) {
	if !req.Choice.Valid() {
		return VoteResult{}, domain.InvalidField("choice", "unknown vote %q", req.Choice)
	}
	if req.Weight <= 0 {
		return VoteResult{}, domain.InvalidField("weight", "must be positive, got %v", req.Weight)
	}
	s, p, err := e.lockProposal(req.DAOID, req.ProposalID)
	if err != nil {
		return VoteResult{}, err
	}
	defer s.ds.mu.Unlock()

	if !s.ds.isMember(req.VoterID) {
		return VoteResult{}, fmt.Errorf("vote on %s by %s: %w", req.ProposalID, req.VoterID, domain.ErrNotAMember)
	}
	if p.Status != domain.ProposalVoting {
		return VoteResult{}, fmt.Errorf("vote on %s (%s): %w", req.ProposalID, p.Status, domain.ErrInvalidStateTransition)
	}
	if _, voted := p.Voters[req.VoterID]; voted {
		return VoteResult{}, fmt.Errorf("vote on %s by %s: %w", req.ProposalID, req.VoterID, domain.ErrAlreadyVoted)
	}

	p.Voters[req.VoterID] = req.Choice
	switch req.Choice {
	case domain.VoteApprove:
		p.Votes.Approve += req.Weight
	case domain.VoteReject:
		p.Votes.Reject += req.Weight
	case domain.VoteAbstain:
		p.Votes.Abstain += req.Weight
	}

	concluded := false
	quorum := domain.Tokens(int64(e.config.Quorum(len(s.ds.members))))
	if p.Votes.Total() >= quorum {
		if e.config.passes(p.Votes) {
			p.Status = domain.ProposalPassed
		} else {
			p.Status = domain.ProposalRejected
		}
		p.ConcludedAt = s.now
		concluded = true
	}
	return VoteResult{Proposal: e.commitProposal(s, p), Concluded: concluded}, nil
}

// lockProposal returns with s.ds.mu held on success.
func (e *Engine) lockProposal(daoID, proposalID string) (session, *domain.Proposal, error) {
	s, err := e.lookup(daoID)
	if err != nil {
		return session{}, nil, err
	}
	s.ds.mu.Lock()
	p, ok := s.ds.proposals[proposalID]
	if !ok {
		s.ds.mu.Unlock()
		return session{}, nil, fmt.Errorf("proposal %s in %s: %w", proposalID, daoID, domain.ErrUnknownEntity)
	}
	return s, p, nil
}

// commitProposal persists p and returns a detached copy. Caller holds s.ds.mu.
func (e *Engine) commitProposal(s session, p *domain.Proposal) *domain.Proposal {
	stored := p.Clone()
	s.persist(func(r domain.GovernanceRepository) error { return r.PutProposal(*stored) })
	return p.Clone()
}

// ─── Proposal Queries ───────────────────────────────────────────────────────

// Proposal returns one proposal.
func (e *Engine) Proposal(daoID, proposalID string) (*domain.Proposal, error) {
	s, p, err := e.lockProposal(daoID, proposalID)
	if err != nil {
		return nil, err
	}
	defer s.ds.mu.Unlock()
	return p.Clone(), nil
}

// Proposals lists daoID's proposals in creation order, optionally
// filtered by status.
func (e *Engine) Proposals(daoID string, status *domain.ProposalStatus) ([]*domain.Proposal, error) {
	s, err := e.lookup(daoID)
	if err != nil {
		return nil, err
	}
	s.ds.mu.Lock()
	defer s.ds.mu.Unlock()

	out := make([]*domain.Proposal, 0, len(s.ds.proposalOrder))
	for _, id := range s.ds.proposalOrder {
		p := s.ds.proposals[id]
		if status != nil && p.Status != *status {
			continue
		}
		out = append(out, p.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
