package sqlite

import (
	"fmt"
	"time"

	"github.com/baekya-protocol/baekya/internal/domain"
)

// ─── Contribution Ledger ────────────────────────────────────────────────────
// DB implements domain.ContributionRepository.

// PutDCA stores a catalogue entry.
func (db *DB) PutDCA(dca domain.DCA) error {
	body, err := encode(dca)
	if err != nil {
		return fmt.Errorf("encode dca %s/%s: %w", dca.DAOID, dca.ID, err)
	}
	_, err = db.db.Exec(`
		INSERT INTO dcas (dao_id, dca_id, value, body, registered_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(dao_id, dca_id) DO UPDATE SET
			value = excluded.value,
			body  = excluded.body
	`, dca.DAOID, dca.ID, int64(dca.Value), body, formatTime(dca.RegisteredAt))
	return err
}

// PutContribution inserts or replaces a contribution.
func (db *DB) PutContribution(c domain.Contribution) error {
	body, err := encode(c)
	if err != nil {
		return fmt.Errorf("encode contribution %s: %w", c.ID, err)
	}
	_, err = db.db.Exec(`
		INSERT INTO contributions (id, dao_id, contributor_id, status, body, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			body   = excluded.body
	`, c.ID, c.DAOID, c.ContributorID, string(c.Status), body, formatTime(c.SubmittedAt))
	return err
}

// PutStream stores an emission stream. Streams are immutable, so a second
// write of the same contribution is ignored.
func (db *DB) PutStream(s domain.EmissionStream) error {
	body, err := encode(s)
	if err != nil {
		return fmt.Errorf("encode stream %s: %w", s.ContributionID, err)
	}
	_, err = db.db.Exec(`
		INSERT INTO emission_streams (contribution_id, contributor_id, body, start_time)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(contribution_id) DO NOTHING
	`, s.ContributionID, s.ContributorID, body, formatTime(s.StartTime))
	return err
}

// PutAccount stores a contributor's accrual cursor.
func (db *DB) PutAccount(a domain.AccountCursor) error {
	body, err := encode(a)
	if err != nil {
		return fmt.Errorf("encode cursor %s: %w", a.ContributorID, err)
	}
	_, err = db.db.Exec(`
		INSERT INTO accrual_cursors (contributor_id, accrued, body, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(contributor_id) DO UPDATE SET
			accrued    = excluded.accrued,
			body       = excluded.body,
			updated_at = excluded.updated_at
	`, a.ContributorID, int64(a.Accrued), body, formatTime(a.LastEvaluated))
	return err
}

// LoadLedger reads every ledger record for cvcm.Ledger.Restore.
func (db *DB) LoadLedger() (domain.LedgerSnapshot, error) {
	var snap domain.LedgerSnapshot
	var err error

	if snap.DCAs, err = queryBodies[domain.DCA](db, `SELECT body FROM dcas ORDER BY registered_at, dao_id, dca_id`); err != nil {
		return snap, fmt.Errorf("load dcas: %w", err)
	}
	if snap.Contributions, err = queryBodies[domain.Contribution](db, `SELECT body FROM contributions ORDER BY submitted_at, id`); err != nil {
		return snap, fmt.Errorf("load contributions: %w", err)
	}
	if snap.Streams, err = queryBodies[domain.EmissionStream](db, `SELECT body FROM emission_streams ORDER BY start_time, contribution_id`); err != nil {
		return snap, fmt.Errorf("load streams: %w", err)
	}
	if snap.Accounts, err = queryBodies[domain.AccountCursor](db, `SELECT body FROM accrual_cursors ORDER BY contributor_id`); err != nil {
		return snap, fmt.Errorf("load cursors: %w", err)
	}
	return snap, nil
}

// ─── Governance ─────────────────────────────────────────────────────────────
// DB implements domain.GovernanceRepository.

// PutDAO inserts or replaces a DAO with its member list.
func (db *DB) PutDAO(dao domain.DAO) error {
	body, err := encode(dao)
	if err != nil {
		return fmt.Errorf("encode dao %s: %w", dao.ID, err)
	}
	_, err = db.db.Exec(`
		INSERT INTO daos (id, name, operator_id, body, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name        = excluded.name,
			operator_id = excluded.operator_id,
			body        = excluded.body
	`, dao.ID, dao.Name, dao.OperatorID, body, formatTime(dao.CreatedAt))
	return err
}

// PutProposal inserts or replaces a proposal.
func (db *DB) PutProposal(p domain.Proposal) error {
	return db.putGovernanceRecord("proposals", p.ID, p.DAOID, string(p.Status), p.CreatedAt, p)
}

// PutSurvey inserts or replaces an operator survey.
func (db *DB) PutSurvey(s domain.OperatorSurvey) error {
	return db.putGovernanceRecord("operator_surveys", s.ID, s.DAOID, string(s.Status), s.CreatedAt, s)
}

// PutImpeachment inserts or replaces an impeachment.
func (db *DB) PutImpeachment(i domain.Impeachment) error {
	return db.putGovernanceRecord("impeachments", i.ID, i.DAOID, string(i.Status), i.CreatedAt, i)
}

// putGovernanceRecord upserts into one of the fixed governance tables.
func (db *DB) putGovernanceRecord(table, id, daoID, status string, createdAt time.Time, v any) error {
	body, err := encode(v)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", table, id, err)
	}
	_, err = db.db.Exec(`
		INSERT INTO `+table+` (id, dao_id, status, body, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			body   = excluded.body
	`, id, daoID, status, body, formatTime(createdAt))
	return err
}

// LoadGovernance reads every governance record for governance.Engine.Restore.
func (db *DB) LoadGovernance() (domain.GovernanceSnapshot, error) {
	var snap domain.GovernanceSnapshot
	var err error

	if snap.DAOs, err = queryBodies[domain.DAO](db, `SELECT body FROM daos ORDER BY created_at, name`); err != nil {
		return snap, fmt.Errorf("load daos: %w", err)
	}
	if snap.Proposals, err = queryBodies[domain.Proposal](db, `SELECT body FROM proposals ORDER BY created_at, id`); err != nil {
		return snap, fmt.Errorf("load proposals: %w", err)
	}
	if snap.Surveys, err = queryBodies[domain.OperatorSurvey](db, `SELECT body FROM operator_surveys ORDER BY created_at, id`); err != nil {
		return snap, fmt.Errorf("load surveys: %w", err)
	}
	if snap.Impeachments, err = queryBodies[domain.Impeachment](db, `SELECT body FROM impeachments ORDER BY created_at, id`); err != nil {
		return snap, fmt.Errorf("load impeachments: %w", err)
	}
	return snap, nil
}

func queryBodies[T any](db *DB, query string) ([]T, error) {
	rows, err := db.db.Query(query)
	if err != nil {
		return nil, err
	}
	return decodeRows[T](rows)
}
