package sqlite

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/baekya-protocol/baekya/internal/domain"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

var testTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// ─── Open ───────────────────────────────────────────────────────────────────

func TestOpen_CreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	db, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
		t.Errorf("database file missing: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Errorf("Ping() error: %v", err)
	}
}

func TestOpen_EmptyDir(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("Open(\"\") should fail")
	}
}

func TestOpen_Reopen(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	db.PutBalance("alice", domain.Tokens(3))
	db.Close()

	db, err = Open(dir)
	if err != nil {
		t.Fatalf("reopen error: %v", err)
	}
	defer db.Close()
	bal, _ := db.GetBalance("alice")
	if bal != domain.Tokens(3) {
		t.Errorf("balance after reopen = %v, want 3", bal)
	}
}

func TestClose_Nil(t *testing.T) {
	var db *DB
	if err := db.Close(); err != nil {
		t.Errorf("nil Close() = %v", err)
	}
}

// ─── Balances ───────────────────────────────────────────────────────────────

func TestPutBalance_Upsert(t *testing.T) {
	db := newTestDB(t)
	db.PutBalance("alice", domain.Tokens(5))
	db.PutBalance("alice", domain.Tokens(2))

	bal, err := db.GetBalance("alice")
	if err != nil {
		t.Fatal(err)
	}
	if bal != domain.Tokens(2) {
		t.Errorf("balance = %v, want 2", bal)
	}
}

func TestGetBalance_Missing(t *testing.T) {
	db := newTestDB(t)
	bal, err := db.GetBalance("nobody")
	if err != nil || bal != 0 {
		t.Errorf("GetBalance(nobody) = %v, %v; want 0, nil", bal, err)
	}
}

func TestIssuanceHistory(t *testing.T) {
	db := newTestDB(t)
	for i, id := range []string{"a", "b", "c"} {
		db.AppendIssuance(domain.IssuanceRecord{
			DAOID: "dao-1", Identity: id, Amount: domain.Tokens(int64(3 - i)),
			Rank: i + 1, Period: "p1", Timestamp: testTime.Add(time.Duration(i) * time.Second),
		})
	}
	db.AppendIssuance(domain.IssuanceRecord{DAOID: "dao-2", Identity: "z", Amount: 1, Timestamp: testTime})

	recs, err := db.IssuanceHistory("dao-1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 2 {
		t.Fatalf("len = %d, want 2", len(recs))
	}
	if recs[0].Identity != "c" || recs[1].Identity != "b" {
		t.Errorf("order = %s,%s; want c,b (newest first)", recs[0].Identity, recs[1].Identity)
	}
	if !recs[0].Timestamp.Equal(testTime.Add(2 * time.Second)) {
		t.Errorf("timestamp = %v", recs[0].Timestamp)
	}
}

func TestLoadBalances(t *testing.T) {
	db := newTestDB(t)
	db.PutBalance("alice", domain.Tokens(4))
	db.PutBalance("bob", domain.Tokens(1))
	db.AppendIssuance(domain.IssuanceRecord{DAOID: "d", Identity: "alice", Amount: domain.Tokens(6), Timestamp: testTime})
	db.PutSupply(domain.Tokens(6), domain.Tokens(1))

	snap, err := db.LoadBalances()
	if err != nil {
		t.Fatalf("LoadBalances() error: %v", err)
	}
	if len(snap.Balances) != 2 || snap.Balances["alice"] != domain.Tokens(4) {
		t.Errorf("balances = %v", snap.Balances)
	}
	if len(snap.Issuance) != 1 {
		t.Errorf("issuance = %d records, want 1", len(snap.Issuance))
	}
	if snap.TotalSupply != domain.Tokens(6) || snap.Burned != domain.Tokens(1) {
		t.Errorf("supply = %v/%v, want 6/1", snap.TotalSupply, snap.Burned)
	}
}

func TestLoadBalances_Empty(t *testing.T) {
	db := newTestDB(t)
	snap, err := db.LoadBalances()
	if err != nil {
		t.Fatalf("LoadBalances() error: %v", err)
	}
	if len(snap.Balances) != 0 || snap.TotalSupply != 0 {
		t.Errorf("empty snapshot = %+v", snap)
	}
}

// ─── Outbox ─────────────────────────────────────────────────────────────────

func TestOutbox_PublishAndDrain(t *testing.T) {
	db := newTestDB(t)
	db.Publish(domain.LedgerIntent{Kind: domain.IntentMint, SubjectID: "alice", Token: domain.TokenB, Amount: 1500, Timestamp: testTime})
	db.Publish(domain.LedgerIntent{
		Kind: domain.IntentTransfer, SubjectID: "alice", CounterpartyID: "bob", Token: domain.TokenP,
		Amount: domain.Tokens(1), Metadata: map[string]string{"memo": "thanks"}, Timestamp: testTime,
	})

	pending, err := db.PendingIntents(10)
	if err != nil {
		t.Fatalf("PendingIntents() error: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %d, want 2", len(pending))
	}
	first := pending[0].Intent
	if first.Kind != domain.IntentMint || first.Amount != 1500 || first.Token != domain.TokenB {
		t.Errorf("first = %+v", first)
	}
	if pending[1].Intent.Metadata["memo"] != "thanks" || pending[1].Intent.CounterpartyID != "bob" {
		t.Errorf("second = %+v", pending[1].Intent)
	}

	n, err := db.MarkDelivered(pending[0].Seq)
	if err != nil || n != 1 {
		t.Errorf("MarkDelivered = %d, %v; want 1, nil", n, err)
	}
	count, _ := db.PendingIntentCount()
	if count != 1 {
		t.Errorf("pending count = %d, want 1", count)
	}
}

// ─── Records ────────────────────────────────────────────────────────────────

func TestPutStream_Immutable(t *testing.T) {
	db := newTestDB(t)
	s := domain.EmissionStream{ContributionID: "c1", ContributorID: "alice", InitialRate: 7.44, TotalValue: domain.Tokens(80), StartTime: testTime}
	db.PutStream(s)
	s.InitialRate = 99
	if err := db.PutStream(s); err != nil {
		t.Fatalf("second PutStream() error: %v", err)
	}

	snap, err := db.LoadLedger()
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Streams) != 1 || snap.Streams[0].InitialRate != 7.44 {
		t.Errorf("streams = %+v, want original rate", snap.Streams)
	}
}

func TestPutProposal_Upsert(t *testing.T) {
	db := newTestDB(t)
	p := domain.Proposal{ID: "p1", DAOID: "d1", Title: "t", Status: domain.ProposalPending, CreatedAt: testTime}
	db.PutProposal(p)
	p.Status = domain.ProposalVoting
	p.Voters = map[string]domain.VoteChoice{"bob": domain.VoteApprove}
	db.PutProposal(p)

	snap, err := db.LoadGovernance()
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Proposals) != 1 {
		t.Fatalf("proposals = %d, want 1", len(snap.Proposals))
	}
	got := snap.Proposals[0]
	if got.Status != domain.ProposalVoting || got.Voters["bob"] != domain.VoteApprove {
		t.Errorf("proposal = %+v", got)
	}
}
