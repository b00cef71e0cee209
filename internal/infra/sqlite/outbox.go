package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/baekya-protocol/baekya/internal/domain"
)

// ─── Intent Outbox ──────────────────────────────────────────────────────────
// DB implements domain.IntentSink. Intents are appended in publish order and
// drained by the host process that signs and broadcasts them.

// OutboxEntry is one stored intent with its sequence number.
type OutboxEntry struct {
	Seq    int64               `json:"seq"`
	Intent domain.LedgerIntent `json:"intent"`
}

// Publish appends intent to the outbox.
func (db *DB) Publish(intent domain.LedgerIntent) error {
	meta := "{}"
	if len(intent.Metadata) > 0 {
		b, err := json.Marshal(intent.Metadata)
		if err != nil {
			return fmt.Errorf("encode intent metadata: %w", err)
		}
		meta = string(b)
	}
	ts := intent.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := db.db.Exec(`
		INSERT INTO intent_outbox (kind, subject_id, counterparty_id, token, amount, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(intent.Kind), intent.SubjectID, intent.CounterpartyID, string(intent.Token), int64(intent.Amount), meta, formatTime(ts))
	if err != nil {
		return fmt.Errorf("publish %s intent for %s: %w", intent.Kind, intent.SubjectID, err)
	}
	return nil
}

// PendingIntents returns up to limit undelivered intents, oldest first.
func (db *DB) PendingIntents(limit int) ([]OutboxEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.db.Query(`
		SELECT seq, kind, subject_id, counterparty_id, token, amount, metadata_json, created_at
		FROM intent_outbox WHERE delivered_at IS NULL
		ORDER BY seq LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OutboxEntry
	for rows.Next() {
		var e OutboxEntry
		var kind, token, meta, created string
		var amount int64
		if err := rows.Scan(&e.Seq, &kind, &e.Intent.SubjectID, &e.Intent.CounterpartyID, &token, &amount, &meta, &created); err != nil {
			return nil, err
		}
		e.Intent.Kind = domain.IntentKind(kind)
		e.Intent.Token = domain.TokenKind(token)
		e.Intent.Amount = domain.Amount(amount)
		if meta != "" && meta != "{}" {
			if err := json.Unmarshal([]byte(meta), &e.Intent.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata of intent %d: %w", e.Seq, err)
			}
		}
		if e.Intent.Timestamp, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("parse created_at of intent %d: %w", e.Seq, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkDelivered flags intents up to and including seq as delivered.
func (db *DB) MarkDelivered(seq int64) (int64, error) {
	res, err := db.db.Exec(`
		UPDATE intent_outbox SET delivered_at = ?
		WHERE delivered_at IS NULL AND seq <= ?
	`, formatTime(time.Now()), seq)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PendingIntentCount returns the number of undelivered intents.
func (db *DB) PendingIntentCount() (int, error) {
	var n int
	err := db.db.QueryRow(`SELECT COUNT(*) FROM intent_outbox WHERE delivered_at IS NULL`).Scan(&n)
	return n, err
}
