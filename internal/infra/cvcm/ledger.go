// Package cvcm implements the contribution ledger: contribution →
// verification → calculation → minting.
//
// A contribution is submitted against a DAO's DCA catalogue, receives
// exactly one verification decision, and on approval is converted into an
// emission stream owned by the contributor:
//
//	submitted ──approve──▶ verified ──▶ minted   (stream created)
//	    └──────reject───▶ rejected               (no emission)
//
// verified→minted happens in the same critical section, so callers never
// observe a verified contribution without its stream.
//
// Lock order: Ledger.mu, then account.mu. Reads of an account release the
// ledger lock before taking the account lock.
package cvcm

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/baekya-protocol/baekya/internal/domain"
	"github.com/baekya-protocol/baekya/internal/infra/emission"
)

// ─── Requests ───────────────────────────────────────────────────────────────

// SubmitRequest describes a new contribution.
type SubmitRequest struct {
	DAOID          string
	DCAID          string
	ContributorID  string
	Age            float64
	Gender         domain.Gender
	LifeExpectancy float64 // 0 selects the default for Gender
	Description    string
	Evidence       string
}

// VerifyRequest records the decision on a submitted contribution.
type VerifyRequest struct {
	ContributionID string
	VerifierID     string
	Approved       bool
	Reason         string
}

// VerifyResult is the outcome of a verification. Stream is nil on rejection.
type VerifyResult struct {
	Contribution domain.Contribution
	Stream       *domain.EmissionStream
}

// ─── Ledger ─────────────────────────────────────────────────────────────────

// Ledger owns the DCA catalogue, contributions, and per-contributor
// emission accounts. Thread-safe.
type Ledger struct {
	mu            sync.RWMutex
	calc          *emission.Calculator
	dcas          map[string]map[string]*domain.DCA // daoID → dcaID → DCA
	contributions map[string]*domain.Contribution
	byContributor map[string][]string // contributorID → contribution IDs, submission order
	accounts      map[string]*account

	repo           domain.ContributionRepository
	onPersistError func(error)

	// Injectable clock for testing.
	now func() time.Time
}

// account is a contributor's streams and private accrual cursor.
type account struct {
	mu       sync.Mutex
	id       string
	streams  []domain.EmissionStream
	lastEval time.Time
	credited map[string]domain.Amount // contributionID → B already credited
	accrued  domain.Amount
}

// NewLedger creates an empty ledger.
func NewLedger(calc *emission.Calculator) *Ledger {
	return &Ledger{
		calc:          calc,
		dcas:          make(map[string]map[string]*domain.DCA),
		contributions: make(map[string]*domain.Contribution),
		byContributor: make(map[string][]string),
		accounts:      make(map[string]*account),
		now:           time.Now,
	}
}

// SetClock replaces the time source.
func (l *Ledger) SetClock(now func() time.Time) {
	l.mu.Lock()
	l.now = now
	l.mu.Unlock()
}

// SetRepository attaches a store written after every commit. Write
// failures go to onErr; the in-memory commit stands.
func (l *Ledger) SetRepository(repo domain.ContributionRepository, onErr func(error)) {
	l.mu.Lock()
	l.repo = repo
	l.onPersistError = onErr
	l.mu.Unlock()
}

func (l *Ledger) persist(write func(domain.ContributionRepository) error) {
	if l.repo == nil {
		return
	}
	if err := write(l.repo); err != nil && l.onPersistError != nil {
		l.onPersistError(fmt.Errorf("cvcm: persist: %w", err))
	}
}

// Calculator exposes the emission calculator in use.
func (l *Ledger) Calculator() *emission.Calculator { return l.calc }

// ─── DCA Catalogue ──────────────────────────────────────────────────────────

// RegisterDCA adds dca to daoID's catalogue. The (daoID, dca.ID) key is
// unique and the entry is immutable afterwards.
func (l *Ledger) RegisterDCA(daoID string, dca domain.DCA) (domain.DCA, error) {
	switch {
	case daoID == "":
		return domain.DCA{}, domain.RequiredField("daoId")
	case dca.ID == "":
		return domain.DCA{}, domain.RequiredField("dcaId")
	case dca.Name == "":
		return domain.DCA{}, domain.RequiredField("name")
	case dca.Value <= 0:
		return domain.DCA{}, domain.InvalidField("value", "must be positive, got %v", dca.Value)
	case dca.Criteria == "":
		return domain.DCA{}, domain.RequiredField("criteria")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	catalogue, ok := l.dcas[daoID]
	if !ok {
		catalogue = make(map[string]*domain.DCA)
		l.dcas[daoID] = catalogue
	}
	if _, exists := catalogue[dca.ID]; exists {
		return domain.DCA{}, fmt.Errorf("register %s/%s: %w", daoID, dca.ID, domain.ErrDuplicateDCA)
	}

	dca.DAOID = daoID
	dca.RegisteredAt = l.now()
	stored := dca
	catalogue[dca.ID] = &stored

	l.persist(func(r domain.ContributionRepository) error { return r.PutDCA(stored) })
	return stored, nil
}

// DCA looks up one catalogue entry.
func (l *Ledger) DCA(daoID, dcaID string) (domain.DCA, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	dca, ok := l.dcas[daoID][dcaID]
	if !ok {
		return domain.DCA{}, fmt.Errorf("dca %s/%s: %w", daoID, dcaID, domain.ErrUnknownDCA)
	}
	return *dca, nil
}

// DCAs returns daoID's catalogue ordered by ID.
func (l *Ledger) DCAs(daoID string) []domain.DCA {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.DCA, 0, len(l.dcas[daoID]))
	for _, dca := range l.dcas[daoID] {
		out = append(out, *dca)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ─── Submission & Verification ──────────────────────────────────────────────

// SubmitContribution records a contribution against a registered DCA. The
// value is fixed from the catalogue at submission time.
func (l *Ledger) SubmitContribution(req SubmitRequest) (domain.Contribution, error) {
	switch {
	case req.ContributorID == "":
		return domain.Contribution{}, domain.RequiredField("contributorId")
	case req.DAOID == "":
		return domain.Contribution{}, domain.RequiredField("daoId")
	case req.DCAID == "":
		return domain.Contribution{}, domain.RequiredField("dcaId")
	case !(req.Age > 0):
		return domain.Contribution{}, domain.InvalidField("age", "must be positive, got %v", req.Age)
	}

	le := req.LifeExpectancy
	if le == 0 {
		le = l.calc.DefaultLifeExpectancy(req.Gender)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	dca, ok := l.dcas[req.DAOID][req.DCAID]
	if !ok {
		return domain.Contribution{}, fmt.Errorf("submit to %s/%s: %w", req.DAOID, req.DCAID, domain.ErrUnknownDCA)
	}

	// Reject inputs the calculator would refuse at verification time.
	if _, err := l.calc.Calculate(req.Age, dca.Value.Float64(), le); err != nil {
		return domain.Contribution{}, err
	}

	c := &domain.Contribution{
		ID:             uuid.NewString(),
		DAOID:          req.DAOID,
		DCAID:          req.DCAID,
		ContributorID:  req.ContributorID,
		Age:            req.Age,
		Gender:         req.Gender,
		LifeExpectancy: le,
		Description:    req.Description,
		Evidence:       req.Evidence,
		Value:          dca.Value,
		Status:         domain.StatusSubmitted,
		SubmittedAt:    l.now(),
	}
	l.contributions[c.ID] = c
	l.byContributor[c.ContributorID] = append(l.byContributor[c.ContributorID], c.ID)

	snapshot := *c
	l.persist(func(r domain.ContributionRepository) error { return r.PutContribution(snapshot) })
	return snapshot, nil
}

// VerifyContribution records the single decision on a contribution. On
// approval the emission stream is created and the contribution is minted
// before the lock is released.
func (l *Ledger) VerifyContribution(req VerifyRequest) (VerifyResult, error) {
	if req.ContributionID == "" {
		return VerifyResult{}, domain.RequiredField("contributionId")
	}
	if req.VerifierID == "" {
		return VerifyResult{}, domain.RequiredField("verifierId")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.contributions[req.ContributionID]
	if !ok {
		return VerifyResult{}, fmt.Errorf("contribution %s: %w", req.ContributionID, domain.ErrUnknownEntity)
	}
	if c.Status != domain.StatusSubmitted {
		return VerifyResult{}, fmt.Errorf("contribution %s is %s: %w", c.ID, c.Status, domain.ErrInvalidStateTransition)
	}

	now := l.now()
	decision := &domain.Verification{
		ContributionID: c.ID,
		VerifierID:     req.VerifierID,
		Approved:       req.Approved,
		Reason:         req.Reason,
		DecidedAt:      now,
	}

	if !req.Approved {
		c.Status = domain.StatusRejected
		c.Verification = decision
		snapshot := *c
		l.persist(func(r domain.ContributionRepository) error { return r.PutContribution(snapshot) })
		return VerifyResult{Contribution: snapshot}, nil
	}

	curve, err := l.calc.Calculate(c.Age, c.Value.Float64(), c.LifeExpectancy)
	if err != nil {
		return VerifyResult{}, err
	}

	stream := domain.EmissionStream{
		ContributionID: c.ID,
		ContributorID:  c.ContributorID,
		DAOID:          c.DAOID,
		DCAID:          c.DCAID,
		InitialRate:    curve.InitialRate,
		DecayConstant:  curve.DecayConstant,
		RemainingYears: curve.RemainingYears,
		TotalValue:     c.Value,
		StartTime:      now,
	}

	acct := l.accountLocked(c.ContributorID)
	acct.mu.Lock()
	acct.streams = append(acct.streams, stream)
	acct.mu.Unlock()

	c.Verification = decision
	c.Status = domain.StatusMinted

	snapshot := *c
	l.persist(func(r domain.ContributionRepository) error {
		if err := r.PutStream(stream); err != nil {
			return err
		}
		return r.PutContribution(snapshot)
	})
	return VerifyResult{Contribution: snapshot, Stream: &stream}, nil
}

// accountLocked returns (creating if needed) the account for id.
// Caller must hold l.mu for writing.
func (l *Ledger) accountLocked(id string) *account {
	acct, ok := l.accounts[id]
	if !ok {
		acct = &account{id: id, credited: make(map[string]domain.Amount)}
		l.accounts[id] = acct
	}
	return acct
}

// account returns the account for id, or nil.
func (l *Ledger) account(id string) *account {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.accounts[id]
}

// ─── Lookups ────────────────────────────────────────────────────────────────

// Contribution returns one contribution.
func (l *Ledger) Contribution(id string) (domain.Contribution, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c, ok := l.contributions[id]
	if !ok {
		return domain.Contribution{}, fmt.Errorf("contribution %s: %w", id, domain.ErrUnknownEntity)
	}
	return *c, nil
}

// ContributionHistory returns a contributor's contributions, newest first.
func (l *Ledger) ContributionHistory(contributorID string) []domain.Contribution {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ids := l.byContributor[contributorID]
	out := make([]domain.Contribution, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		out = append(out, *l.contributions[ids[i]])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SubmittedAt.After(out[j].SubmittedAt) })
	return out
}

// Streams returns a contributor's emission streams in creation order.
func (l *Ledger) Streams(contributorID string) []domain.EmissionStream {
	acct := l.account(contributorID)
	if acct == nil {
		return nil
	}
	acct.mu.Lock()
	defer acct.mu.Unlock()
	return append([]domain.EmissionStream(nil), acct.streams...)
}
