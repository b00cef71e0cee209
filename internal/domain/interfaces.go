package domain

import "time"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// IdentityVerifier answers whether an identity may act in the protocol.
// Signing and DID issuance live behind it.
type IdentityVerifier interface {
	IsValidIdentity(id string) bool
}

// IntentSink receives committed token movements, in commit order per caller.
type IntentSink interface {
	Publish(intent LedgerIntent) error
}

// ContributionRepository persists ledger records after each commit.
type ContributionRepository interface {
	PutDCA(dca DCA) error
	PutContribution(c Contribution) error
	PutStream(s EmissionStream) error
	PutAccount(a AccountCursor) error
}

// GovernanceRepository persists governance records after each commit.
type GovernanceRepository interface {
	PutDAO(dao DAO) error
	PutProposal(p Proposal) error
	PutSurvey(s OperatorSurvey) error
	PutImpeachment(i Impeachment) error
}

// BalanceLedger persists P-token balances and the issuance audit trail.
type BalanceLedger interface {
	PutBalance(identity string, balance Amount) error
	AppendIssuance(rec IssuanceRecord) error
	PutSupply(total, burned Amount) error
}

// ProfileStore persists contributor profiles.
type ProfileStore interface {
	PutProfile(identity string, p Profile) error
}

// ─── Snapshots ──────────────────────────────────────────────────────────────
// Restored by a host store at startup; engines accept them via Restore.

// AccountCursor is the private accrual cursor of one contributor.
type AccountCursor struct {
	ContributorID string            `json:"contributor_id"`
	LastEvaluated time.Time         `json:"last_evaluated"`
	Credited      map[string]Amount `json:"credited"` // contributionID → B credited
	Accrued       Amount            `json:"accrued"`
}

// LedgerSnapshot is the persisted state of the contribution ledger.
type LedgerSnapshot struct {
	DCAs          []DCA
	Contributions []Contribution
	Streams       []EmissionStream
	Accounts      []AccountCursor
}

// GovernanceSnapshot is the persisted state of the governance engine.
type GovernanceSnapshot struct {
	DAOs         []DAO
	Proposals    []Proposal
	Surveys      []OperatorSurvey
	Impeachments []Impeachment
}

// BalanceSnapshot is the persisted state of the P-token allocator.
type BalanceSnapshot struct {
	Balances    map[string]Amount
	Issuance    []IssuanceRecord
	TotalSupply Amount
	Burned      Amount
}
