// Package governance implements the DAO state machine: membership,
// proposals, weighted voting, operator surveys, and impeachment.
//
// Proposal lifecycle:
//
//	pending ──(stake ≥ 1 ∧ endorsements ≥ max(1, ⌈1%·members⌉))──▶ voting
//	voting  ──(Σ votes ≥ ⌈40%·members⌉)──▶ passed | rejected
//
// A proposal passes when approve/(approve+reject) ≥ 0.5; abstentions count
// toward quorum only, and zero decisive weight rejects. Each transition is
// performed exactly once, by the call that crosses the threshold.
//
// Operator accountability:
//
//	survey (support/neutral/oppose) ──supportRate ≤ 40%──▶ impeachment
//	impeachment ──(voters ≥ ⌈40%·members⌉ ∧ approve > reject)──▶ upheld
//	            └──────────────────otherwise───────────────▶ dismissed
//
// Thresholds are integer percentages so boundary cases compare exactly.
//
// Lock order: Engine.mu, then a DAO's own mutex. Operations on one DAO are
// serialised; distinct DAOs proceed in parallel.
package governance

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/baekya-protocol/baekya/internal/domain"
)

// ─── Configuration ──────────────────────────────────────────────────────────

// EngineConfig holds governance thresholds.
type EngineConfig struct {
	MinStake                 domain.Amount // stake a proposer must pay before voting
	EndorsementPercent       int           // endorsements needed, % of members (min 1 token)
	QuorumPercent            int           // vote weight needed to conclude, % of members
	PassPercent              int           // approve share of decisive weight
	ImpeachmentPercent       int           // survey support at or below this spawns impeachment
	ImpeachmentQuorumPercent int           // impeachment voters needed, % of members
}

// DefaultEngineConfig returns the protocol thresholds.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MinStake:                 domain.Tokens(1),
		EndorsementPercent:       1,
		QuorumPercent:            40,
		PassPercent:              50,
		ImpeachmentPercent:       40,
		ImpeachmentQuorumPercent: 40,
	}
}

// ─── Threshold Helpers ──────────────────────────────────────────────────────

// ceilPercent returns ⌈members·pct/100⌉.
func ceilPercent(members, pct int) int {
	return (members*pct + 99) / 100
}

// EndorsementThreshold is the endorsement total (in tokens) a proposal
// needs to enter voting: max(1, ⌈pct·members⌉).
func (c EngineConfig) EndorsementThreshold(members int) int {
	return max(1, ceilPercent(members, c.EndorsementPercent))
}

// Quorum is the total vote weight (in tokens) that concludes a proposal.
func (c EngineConfig) Quorum(members int) int {
	return ceilPercent(members, c.QuorumPercent)
}

// ImpeachmentQuorum is the number of ballots an impeachment needs.
func (c EngineConfig) ImpeachmentQuorum(members int) int {
	return ceilPercent(members, c.ImpeachmentQuorumPercent)
}

// passes reports approve/(approve+reject) ≥ PassPercent with at least one
// decisive vote.
func (c EngineConfig) passes(t domain.ProposalTally) bool {
	decisive := t.Approve + t.Reject
	if decisive <= 0 {
		return false
	}
	return t.Approve*100 >= domain.Amount(c.PassPercent)*decisive
}

// triggersImpeachment reports supportRate ≤ ImpeachmentPercent (inclusive).
func (c EngineConfig) triggersImpeachment(t domain.SurveyTally) bool {
	decisive := t.Support + t.Oppose
	if decisive == 0 {
		return false
	}
	return t.Support*100 <= c.ImpeachmentPercent*decisive
}

// EndorsementThreshold uses the default configuration.
func EndorsementThreshold(members int) int {
	return DefaultEngineConfig().EndorsementThreshold(members)
}

// Quorum uses the default configuration.
func Quorum(members int) int { return DefaultEngineConfig().Quorum(members) }

// ApprovalRatio is approve/(approve+reject), or 0 with no decisive votes.
func ApprovalRatio(t domain.ProposalTally) float64 {
	decisive := t.Approve + t.Reject
	if decisive <= 0 {
		return 0
	}
	return float64(t.Approve) / float64(decisive)
}

// SupportRate is support/(support+oppose), or 1 with no decisive votes.
func SupportRate(t domain.SurveyTally) float64 {
	decisive := t.Support + t.Oppose
	if decisive == 0 {
		return 1
	}
	return float64(t.Support) / float64(decisive)
}

// ─── Engine ─────────────────────────────────────────────────────────────────

// Engine holds every DAO and its governance records. Thread-safe.
type Engine struct {
	mu     sync.RWMutex
	config EngineConfig
	daos   map[string]*daoState

	repo           domain.GovernanceRepository
	onPersistError func(error)

	// Injectable clock for testing.
	now func() time.Time
}

// daoState is one DAO plus its proposals, surveys and impeachments.
// All fields are guarded by mu.
type daoState struct {
	mu               sync.Mutex
	dao              domain.DAO // Members is rebuilt from members on read
	members          map[string]struct{}
	proposals        map[string]*domain.Proposal
	proposalOrder    []string
	surveys          map[string]*domain.OperatorSurvey
	surveyOrder      []string
	impeachments     map[string]*domain.Impeachment
	impeachmentOrder []string
}

func newDAOState(dao domain.DAO) *daoState {
	return &daoState{
		dao:          dao,
		members:      make(map[string]struct{}),
		proposals:    make(map[string]*domain.Proposal),
		surveys:      make(map[string]*domain.OperatorSurvey),
		impeachments: make(map[string]*domain.Impeachment),
	}
}

// NewEngine creates a governance engine.
func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		config: cfg,
		daos:   make(map[string]*daoState),
		now:    time.Now,
	}
}

// Config returns the engine thresholds.
func (e *Engine) Config() EngineConfig { return e.config }

// SetClock replaces the time source.
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	e.now = now
	e.mu.Unlock()
}

// SetRepository attaches a store written after every commit. Write
// failures go to onErr; the in-memory commit stands.
func (e *Engine) SetRepository(repo domain.GovernanceRepository, onErr func(error)) {
	e.mu.Lock()
	e.repo = repo
	e.onPersistError = onErr
	e.mu.Unlock()
}

// session is a DAO looked up under the engine lock, with the clock and
// store captured so the DAO lock can be taken without the engine lock.
type session struct {
	ds    *daoState
	now   time.Time
	repo  domain.GovernanceRepository
	onErr func(error)
}

func (s session) persist(write func(domain.GovernanceRepository) error) {
	if s.repo == nil {
		return
	}
	if err := write(s.repo); err != nil && s.onErr != nil {
		s.onErr(fmt.Errorf("governance: persist: %w", err))
	}
}

func (e *Engine) lookup(daoID string) (session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	ds, ok := e.daos[daoID]
	if !ok {
		return session{}, fmt.Errorf("dao %s: %w", daoID, domain.ErrUnknownEntity)
	}
	return session{ds: ds, now: e.now(), repo: e.repo, onErr: e.onPersistError}, nil
}

// view copies the DAO with a sorted member list. Caller holds ds.mu.
func (ds *daoState) view() domain.DAO {
	d := ds.dao
	d.Members = make([]string, 0, len(ds.members))
	for id := range ds.members {
		d.Members = append(d.Members, id)
	}
	sort.Strings(d.Members)
	return d
}

func (ds *daoState) isMember(id string) bool {
	_, ok := ds.members[id]
	return ok
}

// ─── DAO Lifecycle ──────────────────────────────────────────────────────────

// CreateDAO registers a DAO. The founder becomes its sole member and operator.
func (e *Engine) CreateDAO(founderID string, cfg domain.DAOConfig) (domain.DAO, error) {
	switch {
	case founderID == "":
		return domain.DAO{}, domain.RequiredField("founderId")
	case cfg.Name == "":
		return domain.DAO{}, domain.RequiredField("name")
	case cfg.Purpose == "":
		return domain.DAO{}, domain.RequiredField("purpose")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	ds := newDAOState(domain.DAO{
		ID:          uuid.NewString(),
		Name:        cfg.Name,
		Purpose:     cfg.Purpose,
		Description: cfg.Description,
		FounderID:   founderID,
		OperatorID:  founderID,
		CreatedAt:   e.now(),
	})
	ds.members[founderID] = struct{}{}
	e.daos[ds.dao.ID] = ds

	view := ds.view()
	s := session{repo: e.repo, onErr: e.onPersistError}
	s.persist(func(r domain.GovernanceRepository) error { return r.PutDAO(view) })
	return view, nil
}

// AddContributor makes id a member of daoID. Idempotent; reports whether
// the member is new.
func (e *Engine) AddContributor(daoID, id string) (bool, error) {
	if id == "" {
		return false, domain.RequiredField("contributorId")
	}
	s, err := e.lookup(daoID)
	if err != nil {
		return false, err
	}
	s.ds.mu.Lock()
	defer s.ds.mu.Unlock()

	if s.ds.isMember(id) {
		return false, nil
	}
	s.ds.members[id] = struct{}{}
	view := s.ds.view()
	s.persist(func(r domain.GovernanceRepository) error { return r.PutDAO(view) })
	return true, nil
}

// TransferOperator hands the operator role to id, adding id as a member.
// Used for the bootstrap hand-over of system-owned DAOs.
func (e *Engine) TransferOperator(daoID, id string) (domain.DAO, error) {
	if id == "" {
		return domain.DAO{}, domain.RequiredField("operatorId")
	}
	s, err := e.lookup(daoID)
	if err != nil {
		return domain.DAO{}, err
	}
	s.ds.mu.Lock()
	defer s.ds.mu.Unlock()

	s.ds.members[id] = struct{}{}
	s.ds.dao.OperatorID = id
	view := s.ds.view()
	s.persist(func(r domain.GovernanceRepository) error { return r.PutDAO(view) })
	return view, nil
}

// ─── DAO Queries ────────────────────────────────────────────────────────────

// DAO returns one DAO.
func (e *Engine) DAO(daoID string) (domain.DAO, error) {
	s, err := e.lookup(daoID)
	if err != nil {
		return domain.DAO{}, err
	}
	s.ds.mu.Lock()
	defer s.ds.mu.Unlock()
	return s.ds.view(), nil
}

// DAOs returns every DAO ordered by creation time, then name.
func (e *Engine) DAOs() []domain.DAO {
	e.mu.RLock()
	states := make([]*daoState, 0, len(e.daos))
	for _, ds := range e.daos {
		states = append(states, ds)
	}
	e.mu.RUnlock()

	out := make([]domain.DAO, 0, len(states))
	for _, ds := range states {
		ds.mu.Lock()
		out = append(out, ds.view())
		ds.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// FindDAO returns the first DAO with the given name.
func (e *Engine) FindDAO(name string) (domain.DAO, bool) {
	for _, d := range e.DAOs() {
		if d.Name == name {
			return d, true
		}
	}
	return domain.DAO{}, false
}

// Members returns daoID's sorted member list.
func (e *Engine) Members(daoID string) ([]string, error) {
	d, err := e.DAO(daoID)
	if err != nil {
		return nil, err
	}
	return d.Members, nil
}

// MemberCount returns the number of members of daoID.
func (e *Engine) MemberCount(daoID string) (int, error) {
	s, err := e.lookup(daoID)
	if err != nil {
		return 0, err
	}
	s.ds.mu.Lock()
	defer s.ds.mu.Unlock()
	return len(s.ds.members), nil
}

// IsMember reports whether id belongs to daoID. Unknown DAOs have no members.
func (e *Engine) IsMember(daoID, id string) bool {
	s, err := e.lookup(daoID)
	if err != nil {
		return false
	}
	s.ds.mu.Lock()
	defer s.ds.mu.Unlock()
	return s.ds.isMember(id)
}

// IsOperator reports whether id is daoID's current operator.
func (e *Engine) IsOperator(daoID, id string) bool {
	s, err := e.lookup(daoID)
	if err != nil {
		return false
	}
	s.ds.mu.Lock()
	defer s.ds.mu.Unlock()
	return id != "" && s.ds.dao.OperatorID == id
}

// Stats summarises one DAO's governance activity.
type Stats struct {
	DAOID              string                        `json:"dao_id"`
	Members            int                           `json:"members"`
	OperatorID         string                        `json:"operator_id"`
	Proposals          map[domain.ProposalStatus]int `json:"proposals"`
	ActiveSurveys      int                           `json:"active_surveys"`
	ActiveImpeachments int                           `json:"active_impeachments"`
	Quorum             int                           `json:"quorum"`
	EndorsementNeeded  int                           `json:"endorsement_needed"`
}

// Stats reports counts and current thresholds for daoID.
func (e *Engine) Stats(daoID string) (Stats, error) {
	s, err := e.lookup(daoID)
	if err != nil {
		return Stats{}, err
	}
	s.ds.mu.Lock()
	defer s.ds.mu.Unlock()

	n := len(s.ds.members)
	st := Stats{
		DAOID:             daoID,
		Members:           n,
		OperatorID:        s.ds.dao.OperatorID,
		Proposals:         make(map[domain.ProposalStatus]int),
		Quorum:            e.config.Quorum(n),
		EndorsementNeeded: e.config.EndorsementThreshold(n),
	}
	for _, p := range s.ds.proposals {
		st.Proposals[p.Status]++
	}
	for _, sv := range s.ds.surveys {
		if sv.Status == domain.SurveyActive {
			st.ActiveSurveys++
		}
	}
	for _, im := range s.ds.impeachments {
		if im.Status == domain.ImpeachmentActive {
			st.ActiveImpeachments++
		}
	}
	return st, nil
}
