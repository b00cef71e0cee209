package sqlite

import (
	"fmt"

	"github.com/baekya-protocol/baekya/internal/domain"
)

// ─── Profiles ───────────────────────────────────────────────────────────────
// DB implements domain.ProfileStore.

// PutProfile sets identity's profile.
func (db *DB) PutProfile(identity string, p domain.Profile) error {
	_, err := db.db.Exec(`
		INSERT INTO profiles (identity, age, gender, life_expectancy, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT(identity) DO UPDATE SET
			age             = excluded.age,
			gender          = excluded.gender,
			life_expectancy = excluded.life_expectancy,
			updated_at      = datetime('now')
	`, identity, p.Age, string(p.Gender), p.LifeExpectancy)
	return err
}

// LoadProfiles reads every stored profile.
func (db *DB) LoadProfiles() (map[string]domain.Profile, error) {
	rows, err := db.db.Query(`SELECT identity, age, gender, life_expectancy FROM profiles`)
	if err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	defer rows.Close()

	out := make(map[string]domain.Profile)
	for rows.Next() {
		var id, gender string
		var p domain.Profile
		if err := rows.Scan(&id, &p.Age, &gender, &p.LifeExpectancy); err != nil {
			return nil, fmt.Errorf("load profiles: %w", err)
		}
		p.Gender = domain.Gender(gender)
		out[id] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load profiles: %w", err)
	}
	return out, nil
}
