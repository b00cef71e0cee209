package domain

import "time"

// ─── Ledger Intents ─────────────────────────────────────────────────────────
// The core never writes to a chain. Every committed token movement is
// described by an intent and handed to an IntentSink after the in-memory
// state has changed; the sink owns signing and broadcast.

// IntentKind is the business reason for a token movement.
type IntentKind string

const (
	IntentMint     IntentKind = "MINT"
	IntentTransfer IntentKind = "TRANSFER"
	IntentBurn     IntentKind = "BURN"
)

// LedgerIntent is a single committed token movement.
type LedgerIntent struct {
	Kind           IntentKind        `json:"kind"`
	SubjectID      string            `json:"subject_id"`
	CounterpartyID string            `json:"counterparty_id,omitempty"`
	Token          TokenKind         `json:"token"`
	Amount         Amount            `json:"amount"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
}

// ─── Issuance ───────────────────────────────────────────────────────────────

// Allocation is one contributor's CAPM share for a period.
type Allocation struct {
	Identity     string  `json:"identity"`
	Contribution float64 `json:"contribution"` // ranking score
	Rank         int     `json:"rank"`         // 1 = highest contribution
	Amount       Amount  `json:"amount"`
}

// IssuanceRecord is the append-only audit of one P-token mint.
type IssuanceRecord struct {
	DAOID     string    `json:"dao_id"`
	Identity  string    `json:"identity"`
	Amount    Amount    `json:"amount"`
	Rank      int       `json:"rank"`
	Period    string    `json:"period"`
	Timestamp time.Time `json:"timestamp"`
}
