package sqlite

import (
	"database/sql"
	"fmt"

	"github.com/baekya-protocol/baekya/internal/domain"
)

// ─── P-Token Balances ───────────────────────────────────────────────────────
// DB implements domain.BalanceLedger.

// PutBalance sets identity's balance.
func (db *DB) PutBalance(identity string, balance domain.Amount) error {
	_, err := db.db.Exec(`
		INSERT INTO ptoken_balances (identity, balance, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(identity) DO UPDATE SET
			balance    = excluded.balance,
			updated_at = datetime('now')
	`, identity, int64(balance))
	return err
}

// AppendIssuance appends one audit record.
func (db *DB) AppendIssuance(rec domain.IssuanceRecord) error {
	_, err := db.db.Exec(`
		INSERT INTO ptoken_issuance (dao_id, identity, amount, rank, period, issued_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.DAOID, rec.Identity, int64(rec.Amount), rec.Rank, rec.Period, formatTime(rec.Timestamp))
	return err
}

// PutSupply stores the supply counters.
func (db *DB) PutSupply(total, burned domain.Amount) error {
	_, err := db.db.Exec(`
		INSERT INTO ptoken_supply (id, total_supply, burned, updated_at)
		VALUES (1, ?, ?, datetime('now'))
		ON CONFLICT(id) DO UPDATE SET
			total_supply = excluded.total_supply,
			burned       = excluded.burned,
			updated_at   = datetime('now')
	`, int64(total), int64(burned))
	return err
}

// GetBalance returns identity's stored balance, zero when absent.
func (db *DB) GetBalance(identity string) (domain.Amount, error) {
	var bal int64
	err := db.db.QueryRow(`SELECT balance FROM ptoken_balances WHERE identity = ?`, identity).Scan(&bal)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return domain.Amount(bal), err
}

// IssuanceHistory returns up to limit of daoID's issuance records, newest
// first.
func (db *DB) IssuanceHistory(daoID string, limit int) ([]domain.IssuanceRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.db.Query(`
		SELECT dao_id, identity, amount, rank, period, issued_at
		FROM ptoken_issuance WHERE dao_id = ?
		ORDER BY issued_at DESC, id DESC LIMIT ?
	`, daoID, limit)
	if err != nil {
		return nil, err
	}
	return scanIssuance(rows)
}

// LoadBalances reads balances, the issuance trail and the supply counters
// for ptoken.Allocator.Restore.
func (db *DB) LoadBalances() (domain.BalanceSnapshot, error) {
	snap := domain.BalanceSnapshot{Balances: make(map[string]domain.Amount)}

	rows, err := db.db.Query(`SELECT identity, balance FROM ptoken_balances`)
	if err != nil {
		return snap, fmt.Errorf("load balances: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		var bal int64
		if err := rows.Scan(&id, &bal); err != nil {
			return snap, fmt.Errorf("load balances: %w", err)
		}
		snap.Balances[id] = domain.Amount(bal)
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("load balances: %w", err)
	}

	issRows, err := db.db.Query(`
		SELECT dao_id, identity, amount, rank, period, issued_at
		FROM ptoken_issuance ORDER BY id
	`)
	if err != nil {
		return snap, fmt.Errorf("load issuance: %w", err)
	}
	if snap.Issuance, err = scanIssuance(issRows); err != nil {
		return snap, fmt.Errorf("load issuance: %w", err)
	}

	var total, burned int64
	err = db.db.QueryRow(`SELECT total_supply, burned FROM ptoken_supply WHERE id = 1`).Scan(&total, &burned)
	if err != nil && err != sql.ErrNoRows {
		return snap, fmt.Errorf("load supply: %w", err)
	}
	snap.TotalSupply = domain.Amount(total)
	snap.Burned = domain.Amount(burned)
	return snap, nil
}

func scanIssuance(rows *sql.Rows) ([]domain.IssuanceRecord, error) {
	defer rows.Close()
	var out []domain.IssuanceRecord
	for rows.Next() {
		var rec domain.IssuanceRecord
		var amount int64
		var issuedAt string
		if err := rows.Scan(&rec.DAOID, &rec.Identity, &amount, &rec.Rank, &rec.Period, &issuedAt); err != nil {
			return nil, err
		}
		rec.Amount = domain.Amount(amount)
		ts, err := parseTime(issuedAt)
		if err != nil {
			return nil, fmt.Errorf("parse issued_at %q: %w", issuedAt, err)
		}
		rec.Timestamp = ts
		out = append(out, rec)
	}
	return out, rows.Err()
}
