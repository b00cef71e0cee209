package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/baekya-protocol/baekya/internal/domain"
	"github.com/baekya-protocol/baekya/internal/infra/cvcm"
	"github.com/baekya-protocol/baekya/internal/infra/emission"
	"github.com/baekya-protocol/baekya/internal/infra/governance"
	"github.com/baekya-protocol/baekya/internal/infra/ptoken"
)

// Engines write through the store; a fresh engine restored from the store
// must see the same state.

func TestStoreTestSuite(t *testing.T) {
	suite.Run(t, new(StoreTestSuite))
}

type StoreTestSuite struct {
	suite.Suite
	dir     string
	db      *DB
	errs    []error
	clock   time.Time
	onError func(error)
}

func (s *StoreTestSuite) SetupTest() {
	s.dir = s.T().TempDir()
	db, err := Open(s.dir)
	require.NoError(s.T(), err)
	s.db = db
	s.errs = nil
	s.clock = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.onError = func(err error) { s.errs = append(s.errs, err) }
}

func (s *StoreTestSuite) TearDownTest() {
	require.NoError(s.T(), s.db.Close())
	assert.Empty(s.T(), s.errs, "persist errors")
}

func (s *StoreTestSuite) now() time.Time { return s.clock }

// reopen closes the store and opens the same directory again.
func (s *StoreTestSuite) reopen() {
	require.NoError(s.T(), s.db.Close())
	db, err := Open(s.dir)
	require.NoError(s.T(), err)
	s.db = db
}

func (s *StoreTestSuite) TestLedgerRoundTrip() {
	ledger := cvcm.NewLedger(emission.NewCalculator(emission.DefaultConfig()))
	ledger.SetClock(s.now)
	ledger.SetRepository(s.db, s.onError)

	_, err := ledger.RegisterDCA("dao-dev", domain.DCA{ID: "pull-request", Name: "Pull request", Value: domain.Tokens(80), Criteria: "merged"})
	require.NoError(s.T(), err)
	c, err := ledger.SubmitContribution(cvcm.SubmitRequest{DAOID: "dao-dev", DCAID: "pull-request", ContributorID: "alice", Age: 30})
	require.NoError(s.T(), err)
	_, err = ledger.VerifyContribution(cvcm.VerifyRequest{ContributionID: c.ID, VerifierID: "op", Approved: true})
	require.NoError(s.T(), err)

	s.clock = s.clock.Add(365 * 24 * time.Hour)
	first := ledger.ProjectAccumulated("alice")
	require.Greater(s.T(), first.New, domain.Amount(0))

	s.reopen()
	snap, err := s.db.LoadLedger()
	require.NoError(s.T(), err)
	assert.Len(s.T(), snap.DCAs, 1)
	assert.Len(s.T(), snap.Contributions, 1)
	assert.Len(s.T(), snap.Streams, 1)
	assert.Len(s.T(), snap.Accounts, 1)

	restored := cvcm.NewLedger(emission.NewCalculator(emission.DefaultConfig()))
	restored.SetClock(s.now)
	restored.Restore(snap)

	got, err := restored.Contribution(c.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), domain.StatusMinted, got.Status)
	assert.InDelta(s.T(), ledger.TotalRate("alice"), restored.TotalRate("alice"), 1e-12)

	// The cursor survived: nothing new accrues without elapsed time.
	again := restored.ProjectAccumulated("alice")
	assert.Equal(s.T(), domain.Amount(0), again.New)
	assert.Equal(s.T(), first.Total, again.Total)
}

func (s *StoreTestSuite) TestGovernanceRoundTrip() {
	engine := governance.NewEngine(governance.DefaultEngineConfig())
	engine.SetClock(s.now)
	engine.SetRepository(s.db, s.onError)

	dao, err := engine.CreateDAO("founder", domain.DAOConfig{Name: "Development", Purpose: "build"})
	require.NoError(s.T(), err)
	for _, id := range []string{"bob", "carol"} {
		_, err := engine.AddContributor(dao.ID, id)
		require.NoError(s.T(), err)
	}
	p, err := engine.CreateProposal(governance.ProposalRequest{DAOID: dao.ID, ProposerID: "bob", Title: "Relay"})
	require.NoError(s.T(), err)
	_, err = engine.PayProposalStake(dao.ID, p.ID, "bob", domain.Tokens(1))
	require.NoError(s.T(), err)
	_, err = engine.EndorseProposal(dao.ID, p.ID, "carol", domain.Tokens(1))
	require.NoError(s.T(), err)
	_, err = engine.Vote(governance.VoteRequest{DAOID: dao.ID, ProposalID: p.ID, VoterID: "carol", Choice: domain.VoteApprove, Weight: domain.Tokens(1)})
	require.NoError(s.T(), err)
	sv, err := engine.ConductOperatorSurvey(dao.ID)
	require.NoError(s.T(), err)
	_, err = engine.VoteOperatorSurvey(dao.ID, sv.ID, "bob", domain.SurveyOppose)
	require.NoError(s.T(), err)
	out, err := engine.ConcludeOperatorSurvey(dao.ID, sv.ID)
	require.NoError(s.T(), err)
	require.NotNil(s.T(), out.Impeachment)

	s.reopen()
	snap, err := s.db.LoadGovernance()
	require.NoError(s.T(), err)

	restored := governance.NewEngine(governance.DefaultEngineConfig())
	restored.Restore(snap)

	members, err := restored.Members(dao.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"bob", "carol", "founder"}, members)

	gotP, err := restored.Proposal(dao.ID, p.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), domain.ProposalVoting, gotP.Status)
	assert.Equal(s.T(), domain.Tokens(1), gotP.Votes.Approve)

	ims, err := restored.Impeachments(dao.ID)
	require.NoError(s.T(), err)
	require.Len(s.T(), ims, 1)
	assert.Equal(s.T(), domain.ImpeachmentActive, ims[0].Status)
	assert.Equal(s.T(), "founder", ims[0].TargetOperatorID)
}

func (s *StoreTestSuite) TestBalanceRoundTrip() {
	alloc := ptoken.NewAllocator()
	alloc.SetClock(s.now)
	alloc.SetRepository(s.db, s.onError)

	_, err := alloc.ExecutePeriodicMinting("dao-1", map[string]float64{"a": 3, "b": 2, "c": 1},
		ptoken.MintConfig{MemberCount: 3, MinGuarantee: domain.Tokens(1), Period: "2025-01"})
	require.NoError(s.T(), err)
	_, err = alloc.Transfer("a", "c", domain.Tokens(1))
	require.NoError(s.T(), err)
	_, err = alloc.BurnAll("b", "impeached")
	require.NoError(s.T(), err)

	s.reopen()
	snap, err := s.db.LoadBalances()
	require.NoError(s.T(), err)

	restored := ptoken.NewAllocator()
	restored.Restore(snap)
	assert.Equal(s.T(), alloc.Balance("a"), restored.Balance("a"))
	assert.Equal(s.T(), alloc.Balance("c"), restored.Balance("c"))
	assert.Equal(s.T(), domain.Amount(0), restored.Balance("b"))
	assert.Equal(s.T(), alloc.NetworkStats(), restored.NetworkStats())
	assert.Len(s.T(), restored.Issuance("dao-1"), 3)
}

func (s *StoreTestSuite) TestOutboxAsIntentSink() {
	var sink domain.IntentSink = s.db
	require.NoError(s.T(), sink.Publish(domain.LedgerIntent{Kind: domain.IntentBurn, SubjectID: "op", Token: domain.TokenP, Amount: domain.Tokens(30)}))

	pending, err := s.db.PendingIntents(0)
	require.NoError(s.T(), err)
	require.Len(s.T(), pending, 1)
	assert.False(s.T(), pending[0].Intent.Timestamp.IsZero(), "publish stamps a missing timestamp")
}

func (s *StoreTestSuite) TestProfileRoundTrip() {
	var store domain.ProfileStore = s.db
	require.NoError(s.T(), store.PutProfile("alice", domain.Profile{Age: 30, Gender: domain.GenderFemale}))
	require.NoError(s.T(), store.PutProfile("bob", domain.Profile{Age: 40, LifeExpectancy: 90}))
	require.NoError(s.T(), store.PutProfile("alice", domain.Profile{Age: 31, Gender: domain.GenderFemale}))

	s.reopen()
	profiles, err := s.db.LoadProfiles()
	require.NoError(s.T(), err)

	assert.Len(s.T(), profiles, 2)
	assert.Equal(s.T(), domain.Profile{Age: 31, Gender: domain.GenderFemale}, profiles["alice"])
	assert.Equal(s.T(), domain.Profile{Age: 40, LifeExpectancy: 90}, profiles["bob"])
}
