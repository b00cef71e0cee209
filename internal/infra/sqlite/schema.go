package sqlite

// ─── Schema ─────────────────────────────────────────────────────────────────

// Migrations returns the schema statements, applied in order on Open.
// Each string is a single SQL statement (SQLite executes one at a time).
func Migrations() []string {
	return []string{
		// Contribution ledger
		`CREATE TABLE IF NOT EXISTS dcas (
			dao_id        TEXT NOT NULL,
			dca_id        TEXT NOT NULL,
			value         INTEGER NOT NULL,
			body          TEXT NOT NULL,
			registered_at TEXT NOT NULL,
			PRIMARY KEY (dao_id, dca_id)
		)`,
		`CREATE TABLE IF NOT EXISTS contributions (
			id             TEXT PRIMARY KEY,
			dao_id         TEXT NOT NULL,
			contributor_id TEXT NOT NULL,
			status         TEXT NOT NULL,
			body           TEXT NOT NULL,
			submitted_at   TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contributions_contributor ON contributions(contributor_id)`,
		`CREATE INDEX IF NOT EXISTS idx_contributions_dao ON contributions(dao_id, status)`,
		`CREATE TABLE IF NOT EXISTS emission_streams (
			contribution_id TEXT PRIMARY KEY,
			contributor_id  TEXT NOT NULL,
			body            TEXT NOT NULL,
			start_time      TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_streams_contributor ON emission_streams(contributor_id)`,
		`CREATE TABLE IF NOT EXISTS accrual_cursors (
			contributor_id TEXT PRIMARY KEY,
			accrued        INTEGER NOT NULL DEFAULT 0,
			body           TEXT NOT NULL,
			updated_at     TEXT NOT NULL
		)`,

		// Governance
		`CREATE TABLE IF NOT EXISTS daos (
			id          TEXT PRIMARY KEY,
			name        TEXT NOT NULL,
			operator_id TEXT NOT NULL,
			body        TEXT NOT NULL,
			created_at  TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS proposals (
			id         TEXT PRIMARY KEY,
			dao_id     TEXT NOT NULL,
			status     TEXT NOT NULL,
			body       TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_proposals_dao ON proposals(dao_id, status)`,
		`CREATE TABLE IF NOT EXISTS operator_surveys (
			id         TEXT PRIMARY KEY,
			dao_id     TEXT NOT NULL,
			status     TEXT NOT NULL,
			body       TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS impeachments (
			id         TEXT PRIMARY KEY,
			dao_id     TEXT NOT NULL,
			status     TEXT NOT NULL,
			body       TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,

		// Contributor profiles
		`CREATE TABLE IF NOT EXISTS profiles (
			identity        TEXT PRIMARY KEY,
			age             REAL NOT NULL,
			gender          TEXT NOT NULL DEFAULT '',
			life_expectancy REAL NOT NULL DEFAULT 0,
			updated_at      TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		// P-token balances and issuance audit
		`CREATE TABLE IF NOT EXISTS ptoken_balances (
			identity   TEXT PRIMARY KEY,
			balance    INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		)`,
		`CREATE TABLE IF NOT EXISTS ptoken_issuance (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			dao_id    TEXT NOT NULL,
			identity  TEXT NOT NULL,
			amount    INTEGER NOT NULL,
			rank      INTEGER NOT NULL DEFAULT 0,
			period    TEXT NOT NULL DEFAULT '',
			issued_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_issuance_dao ON ptoken_issuance(dao_id, issued_at)`,
		`CREATE TABLE IF NOT EXISTS ptoken_supply (
			id           INTEGER PRIMARY KEY CHECK (id = 1),
			total_supply INTEGER NOT NULL DEFAULT 0,
			burned       INTEGER NOT NULL DEFAULT 0,
			updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
		)`,

		// Ledger intent outbox
		`CREATE TABLE IF NOT EXISTS intent_outbox (
			seq             INTEGER PRIMARY KEY AUTOINCREMENT,
			kind            TEXT NOT NULL,
			subject_id      TEXT NOT NULL,
			counterparty_id TEXT NOT NULL DEFAULT '',
			token           TEXT NOT NULL,
			amount          INTEGER NOT NULL,
			metadata_json   TEXT NOT NULL DEFAULT '{}',
			created_at      TEXT NOT NULL,
			delivered_at    TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_pending ON intent_outbox(delivered_at, seq)`,
	}
}
