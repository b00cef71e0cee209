package ptoken

import (
	"fmt"
	"sync"
	"time"

	"github.com/baekya-protocol/baekya/internal/domain"
)

// ─── Allocator ──────────────────────────────────────────────────────────────

// Allocator owns P-token balances, the issuance audit trail, and supply
// counters. Invariant: totalSupply == Σ balances + burned.
// Thread-safe via RWMutex.
type Allocator struct {
	mu          sync.RWMutex
	balances    map[string]domain.Amount // identity → balance
	issuance    []domain.IssuanceRecord
	totalSupply domain.Amount
	burned      domain.Amount

	repo           domain.BalanceLedger
	onPersistError func(error)

	// Injectable clock for testing.
	now func() time.Time
}

// NewAllocator creates an empty allocator.
func NewAllocator() *Allocator {
	return &Allocator{
		balances: make(map[string]domain.Amount),
		now:      time.Now,
	}
}

// SetClock replaces the time source.
func (a *Allocator) SetClock(now func() time.Time) {
	a.mu.Lock()
	a.now = now
	a.mu.Unlock()
}

// SetRepository attaches a store written after every commit. Write
// failures go to onErr; the in-memory commit stands.
func (a *Allocator) SetRepository(repo domain.BalanceLedger, onErr func(error)) {
	a.mu.Lock()
	a.repo = repo
	a.onPersistError = onErr
	a.mu.Unlock()
}

// persistLocked writes the touched balances, any new issuance records and
// the supply counters. Caller holds a.mu.
func (a *Allocator) persistLocked(touched []string, records []domain.IssuanceRecord) {
	if a.repo == nil {
		return
	}
	report := func(err error) {
		if err != nil && a.onPersistError != nil {
			a.onPersistError(fmt.Errorf("ptoken: persist: %w", err))
		}
	}
	for _, id := range touched {
		report(a.repo.PutBalance(id, a.balances[id]))
	}
	for _, rec := range records {
		report(a.repo.AppendIssuance(rec))
	}
	report(a.repo.PutSupply(a.totalSupply, a.burned))
}

// ─── Minting ────────────────────────────────────────────────────────────────

// MintResult is a committed issuance: the ladder, its audit records, and
// one MINT intent per recipient for the host ledger.
type MintResult struct {
	DAOID   string
	Period  string
	Ladder  Ladder
	Records []domain.IssuanceRecord
	Intents []domain.LedgerIntent
}

// Mint credits every allocation, appends one issuance record each, and
// raises the total supply by the allocation sum. All or nothing.
func (a *Allocator) Mint(daoID, period string, allocations []domain.Allocation) (MintResult, error) {
	if daoID == "" {
		return MintResult{}, domain.RequiredField("daoId")
	}
	var sum domain.Amount
	for _, al := range allocations {
		if al.Identity == "" {
			return MintResult{}, domain.RequiredField("identity")
		}
		if al.Amount <= 0 {
			return MintResult{}, domain.InvalidField("amount", "allocation for %s must be positive, got %v", al.Identity, al.Amount)
		}
		sum += al.Amount
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	res := MintResult{
		DAOID:   daoID,
		Period:  period,
		Ladder:  Ladder{Total: sum, Allocations: append([]domain.Allocation(nil), allocations...)},
		Records: make([]domain.IssuanceRecord, 0, len(allocations)),
		Intents: make([]domain.LedgerIntent, 0, len(allocations)),
	}
	touched := make([]string, 0, len(allocations))
	for _, al := range allocations {
		a.balances[al.Identity] += al.Amount
		touched = append(touched, al.Identity)

		rec := domain.IssuanceRecord{
			DAOID:     daoID,
			Identity:  al.Identity,
			Amount:    al.Amount,
			Rank:      al.Rank,
			Period:    period,
			Timestamp: now,
		}
		a.issuance = append(a.issuance, rec)
		res.Records = append(res.Records, rec)
		res.Intents = append(res.Intents, domain.LedgerIntent{
			Kind:      domain.IntentMint,
			SubjectID: al.Identity,
			Token:     domain.TokenP,
			Amount:    al.Amount,
			Metadata: map[string]string{
				"dao_id": daoID,
				"period": period,
				"rank":   fmt.Sprint(al.Rank),
			},
			Timestamp: now,
		})
	}
	a.totalSupply += sum

	a.persistLocked(touched, res.Records)
	return res, nil
}

// ExecutePeriodicMinting computes the CAPM ladder for scores and mints it.
// No contributors is a successful no-op.
func (a *Allocator) ExecutePeriodicMinting(daoID string, scores map[string]float64, cfg MintConfig) (MintResult, error) {
	ladder, err := ComputeCAPM(scores, cfg)
	if err != nil {
		return MintResult{}, fmt.Errorf("periodic minting for %s: %w", daoID, err)
	}
	if len(ladder.Allocations) == 0 {
		return MintResult{DAOID: daoID, Period: cfg.Period, Ladder: ladder}, nil
	}
	// A zero minimum guarantee leaves the last rank with nothing to mint.
	paid := make([]domain.Allocation, 0, len(ladder.Allocations))
	for _, al := range ladder.Allocations {
		if al.Amount > 0 {
			paid = append(paid, al)
		}
	}
	res, err := a.Mint(daoID, cfg.Period, paid)
	if err != nil {
		return MintResult{}, err
	}
	res.Ladder = ladder
	return res, nil
}

// Grant mints amount to identity outside the CAPM ladder, such as the
// award that comes with operating a DAO. Recorded as rank 0 issuance.
func (a *Allocator) Grant(daoID, identity string, amount domain.Amount, reason string) (domain.LedgerIntent, error) {
	res, err := a.Mint(daoID, reason, []domain.Allocation{{Identity: identity, Amount: amount}})
	if err != nil {
		return domain.LedgerIntent{}, err
	}
	return res.Intents[0], nil
}

// ─── Transfers & Burns ──────────────────────────────────────────────────────

// Transfer moves amount from one identity to another.
func (a *Allocator) Transfer(from, to string, amount domain.Amount) (domain.LedgerIntent, error) {
	switch {
	case from == "":
		return domain.LedgerIntent{}, domain.RequiredField("from")
	case to == "":
		return domain.LedgerIntent{}, domain.RequiredField("to")
	case from == to:
		return domain.LedgerIntent{}, domain.InvalidField("to", "cannot transfer to self")
	case amount <= 0:
		return domain.LedgerIntent{}, domain.InvalidField("amount", "must be positive, got %v", amount)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if bal := a.balances[from]; bal < amount {
		return domain.LedgerIntent{}, fmt.Errorf("transfer %v from %s (balance %v): %w", amount, from, bal, domain.ErrInsufficientBalance)
	}
	a.balances[from] -= amount
	a.balances[to] += amount
	a.persistLocked([]string{from, to}, nil)

	return domain.LedgerIntent{
		Kind:           domain.IntentTransfer,
		SubjectID:      from,
		CounterpartyID: to,
		Token:          domain.TokenP,
		Amount:         amount,
		Timestamp:      a.now(),
	}, nil
}

// Burn destroys amount of identity's balance.
func (a *Allocator) Burn(identity string, amount domain.Amount, reason string) (domain.LedgerIntent, error) {
	if identity == "" {
		return domain.LedgerIntent{}, domain.RequiredField("identity")
	}
	if amount <= 0 {
		return domain.LedgerIntent{}, domain.InvalidField("amount", "must be positive, got %v", amount)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if bal := a.balances[identity]; bal < amount {
		return domain.LedgerIntent{}, fmt.Errorf("burn %v from %s (balance %v): %w", amount, identity, bal, domain.ErrInsufficientBalance)
	}
	return a.burnLocked(identity, amount, reason), nil
}

// BurnAll destroys identity's whole balance. An empty balance burns nothing
// and returns an intent with a zero amount.
func (a *Allocator) BurnAll(identity, reason string) (domain.LedgerIntent, error) {
	if identity == "" {
		return domain.LedgerIntent{}, domain.RequiredField("identity")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	bal := a.balances[identity]
	if bal == 0 {
		return domain.LedgerIntent{Kind: domain.IntentBurn, SubjectID: identity, Token: domain.TokenP, Timestamp: a.now()}, nil
	}
	return a.burnLocked(identity, bal, reason), nil
}

func (a *Allocator) burnLocked(identity string, amount domain.Amount, reason string) domain.LedgerIntent {
	a.balances[identity] -= amount
	a.burned += amount
	a.persistLocked([]string{identity}, nil)

	intent := domain.LedgerIntent{
		Kind:      domain.IntentBurn,
		SubjectID: identity,
		Token:     domain.TokenP,
		Amount:    amount,
		Timestamp: a.now(),
	}
	if reason != "" {
		intent.Metadata = map[string]string{"reason": reason}
	}
	return intent
}

// ─── Balances ───────────────────────────────────────────────────────────────

// Balance returns identity's P balance. Unknown identities hold zero.
func (a *Allocator) Balance(identity string) domain.Amount {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.balances[identity]
}

// VotingPower is the P balance.
func (a *Allocator) VotingPower(identity string) domain.Amount {
	return a.Balance(identity)
}

// IsQualifiedVoter reports whether identity holds at least one P.
func (a *Allocator) IsQualifiedVoter(identity string) bool {
	return a.Balance(identity) >= domain.Tokens(1)
}

// QualifiedVoters filters members down to those holding at least one P,
// preserving order.
func (a *Allocator) QualifiedVoters(members []string) []string {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []string
	for _, id := range members {
		if a.balances[id] >= domain.Tokens(1) {
			out = append(out, id)
		}
	}
	return out
}
