package domain

import "time"

// ─── DAO Types ──────────────────────────────────────────────────────────────

// DAO is a governance unit. Members is sorted; OperatorID holds
// verification authority and answers to operator surveys.
type DAO struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Purpose     string    `json:"purpose"`
	Description string    `json:"description,omitempty"`
	FounderID   string    `json:"founder_id"`
	OperatorID  string    `json:"operator_id"`
	Members     []string  `json:"members"`
	CreatedAt   time.Time `json:"created_at"`
}

// DAOConfig is the input for DAO creation.
type DAOConfig struct {
	Name        string `json:"name"`
	Purpose     string `json:"purpose"`
	Description string `json:"description,omitempty"`
}

// ─── Proposals ──────────────────────────────────────────────────────────────

// ProposalStatus is monotone: pending → voting → {passed, rejected}.
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalVoting   ProposalStatus = "voting"
	ProposalPassed   ProposalStatus = "passed"
	ProposalRejected ProposalStatus = "rejected"
)

// Terminal reports whether the proposal has concluded.
func (s ProposalStatus) Terminal() bool {
	return s == ProposalPassed || s == ProposalRejected
}

// VoteChoice is a ballot on a proposal or impeachment.
type VoteChoice string

const (
	VoteApprove VoteChoice = "approve"
	VoteReject  VoteChoice = "reject"
	VoteAbstain VoteChoice = "abstain"
)

// Valid reports whether c is a known choice.
func (c VoteChoice) Valid() bool {
	return c == VoteApprove || c == VoteReject || c == VoteAbstain
}

// ProposalTally holds weighted votes.
type ProposalTally struct {
	Approve Amount `json:"approve"`
	Reject  Amount `json:"reject"`
	Abstain Amount `json:"abstain"`
}

// Total includes abstentions; quorum counts them.
func (t ProposalTally) Total() Amount { return t.Approve + t.Reject + t.Abstain }

// Proposal is a DAO motion moving through stake, endorsement and voting.
type Proposal struct {
	ID              string                `json:"id"`
	DAOID           string                `json:"dao_id"`
	ProposerID      string                `json:"proposer_id"`
	Title           string                `json:"title"`
	Description     string                `json:"description,omitempty"`
	Type            string                `json:"type,omitempty"`
	Status          ProposalStatus        `json:"status"`
	Stake           Amount                `json:"stake"`
	Endorsements    Amount                `json:"endorsements"`
	Votes           ProposalTally         `json:"votes"`
	Voters          map[string]VoteChoice `json:"voters"`
	CreatedAt       time.Time             `json:"created_at"`
	VotingStartedAt time.Time             `json:"voting_started_at,omitempty"`
	ConcludedAt     time.Time             `json:"concluded_at,omitempty"`
}

// Clone returns a deep copy safe to hand outside a lock.
func (p *Proposal) Clone() *Proposal {
	cp := *p
	cp.Voters = make(map[string]VoteChoice, len(p.Voters))
	for k, v := range p.Voters {
		cp.Voters[k] = v
	}
	return &cp
}

// ─── Operator Accountability ────────────────────────────────────────────────

// SurveyChoice is a member's stance on the current operator.
type SurveyChoice string

const (
	SurveySupport SurveyChoice = "support"
	SurveyNeutral SurveyChoice = "neutral"
	SurveyOppose  SurveyChoice = "oppose"
)

// Valid reports whether c is a known choice.
func (c SurveyChoice) Valid() bool {
	return c == SurveySupport || c == SurveyNeutral || c == SurveyOppose
}

// SurveyStatus is active until concluded once.
type SurveyStatus string

const (
	SurveyActive    SurveyStatus = "active"
	SurveyConcluded SurveyStatus = "concluded"
)

// SurveyTally counts one ballot per member.
type SurveyTally struct {
	Support int `json:"support"`
	Neutral int `json:"neutral"`
	Oppose  int `json:"oppose"`
}

// OperatorSurvey measures member support for the operator.
type OperatorSurvey struct {
	ID            string                  `json:"id"`
	DAOID         string                  `json:"dao_id"`
	OperatorID    string                  `json:"operator_id"`
	Status        SurveyStatus            `json:"status"`
	Votes         SurveyTally             `json:"votes"`
	Voters        map[string]SurveyChoice `json:"voters"`
	SupportRate   float64                 `json:"support_rate"`
	ImpeachmentID string                  `json:"impeachment_id,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	ConcludedAt   time.Time               `json:"concluded_at,omitempty"`
}

// Clone returns a deep copy safe to hand outside a lock.
func (s *OperatorSurvey) Clone() *OperatorSurvey {
	cp := *s
	cp.Voters = make(map[string]SurveyChoice, len(s.Voters))
	for k, v := range s.Voters {
		cp.Voters[k] = v
	}
	return &cp
}

// ImpeachmentStatus: active → {upheld, dismissed}, once.
type ImpeachmentStatus string

const (
	ImpeachmentActive    ImpeachmentStatus = "active"
	ImpeachmentUpheld    ImpeachmentStatus = "upheld"
	ImpeachmentDismissed ImpeachmentStatus = "dismissed"
)

// ImpeachmentTally counts one ballot per member.
type ImpeachmentTally struct {
	Approve int `json:"approve"`
	Reject  int `json:"reject"`
}

// Impeachment is spawned by a failed operator survey.
type Impeachment struct {
	ID               string                `json:"id"`
	DAOID            string                `json:"dao_id"`
	TargetOperatorID string                `json:"target_operator_id"`
	SurveyID         string                `json:"survey_id"`
	Status           ImpeachmentStatus     `json:"status"`
	Votes            ImpeachmentTally      `json:"votes"`
	Voters           map[string]VoteChoice `json:"voters"`
	SuccessorID      string                `json:"successor_id,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	ConcludedAt      time.Time             `json:"concluded_at,omitempty"`
}

// Clone returns a deep copy safe to hand outside a lock.
func (i *Impeachment) Clone() *Impeachment {
	cp := *i
	cp.Voters = make(map[string]VoteChoice, len(i.Voters))
	for k, v := range i.Voters {
		cp.Voters[k] = v
	}
	return &cp
}
