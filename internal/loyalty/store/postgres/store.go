// Package postgres persists loyalty profiles and the tier table in
// PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"loyalty/internal/loyalty/models"
)

// Store implements the storage port over database/sql. Profiles are written
// as whole snapshots: the profile row is upserted and the history rows are
// replaced within one transaction, so a save is all-or-nothing.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the loyalty tables when they do not exist yet.
// Deployments with managed migrations can skip this.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS loyalty_profiles (
	user_id TEXT PRIMARY KEY,
	points  BIGINT NOT NULL DEFAULT 0,
	tier_id TEXT
);
CREATE TABLE IF NOT EXISTS loyalty_ledger (
	id            UUID PRIMARY KEY,
	user_id       TEXT NOT NULL REFERENCES loyalty_profiles(user_id) ON DELETE CASCADE,
	position      INT NOT NULL,
	action        TEXT NOT NULL,
	points_change BIGINT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	UNIQUE (user_id, position)
);
CREATE TABLE IF NOT EXISTS loyalty_tiers (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	min_points BIGINT NOT NULL,
	benefits   TEXT[] NOT NULL DEFAULT '{}'
);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure loyalty schema: %w", err)
	}
	return nil
}

func (s *Store) GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	profile := &models.UserProfile{UserID: userID}

	var tierID sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT points, tier_id FROM loyalty_profiles WHERE user_id = $1`,
		userID,
	).Scan(&profile.Points, &tierID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", userID, err)
	}
	profile.TierID = tierID.String

	rows, err := s.db.QueryContext(ctx,
		`SELECT action, points_change, created_at
		 FROM loyalty_ledger WHERE user_id = $1 ORDER BY position`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("load ledger %s: %w", userID, err)
	}
	defer rows.Close()

	profile.History = []models.LedgerEntry{}
	for rows.Next() {
		var entry models.LedgerEntry
		if err := rows.Scan(&entry.Action, &entry.PointsChange, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		profile.History = append(profile.History, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger %s: %w", userID, err)
	}

	return profile, nil
}

func (s *Store) SaveUserProfile(ctx context.Context, profile *models.UserProfile) (*models.UserProfile, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin save profile: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO loyalty_profiles (user_id, points, tier_id)
		 VALUES ($1, $2, NULLIF($3, ''))
		 ON CONFLICT (user_id) DO UPDATE SET points = $2, tier_id = NULLIF($3, '')`,
		profile.UserID, profile.Points, profile.TierID,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert profile %s: %w", profile.UserID, err)
	}

	// History rows are replaced wholesale to mirror the snapshot contract.
	// Entries are append-only upstream, so this only ever grows the set.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM loyalty_ledger WHERE user_id = $1`, profile.UserID,
	); err != nil {
		return nil, fmt.Errorf("clear ledger %s: %w", profile.UserID, err)
	}
	for i, entry := range profile.History {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO loyalty_ledger (id, user_id, position, action, points_change, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			uuid.New(), profile.UserID, i, entry.Action, entry.PointsChange, entry.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("insert ledger entry %d for %s: %w", i, profile.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit save profile %s: %w", profile.UserID, err)
	}
	return profile.Clone(), nil
}

func (s *Store) GetTiers(ctx context.Context) ([]models.Tier, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, min_points, benefits FROM loyalty_tiers ORDER BY min_points DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("load tiers: %w", err)
	}
	defer rows.Close()

	var tiers []models.Tier
	for rows.Next() {
		var tier models.Tier
		if err := rows.Scan(&tier.ID, &tier.Name, &tier.MinPoints, pq.Array(&tier.Benefits)); err != nil {
			return nil, fmt.Errorf("scan tier: %w", err)
		}
		tiers = append(tiers, tier)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tiers: %w", err)
	}
	return tiers, nil
}

// ReplaceTiers swaps the tier table within one transaction. Used at boot to
// seed configuration.
func (s *Store) ReplaceTiers(ctx context.Context, tiers []models.Tier) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace tiers: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM loyalty_tiers`); err != nil {
		return fmt.Errorf("clear tiers: %w", err)
	}
	for _, tier := range tiers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO loyalty_tiers (id, name, min_points, benefits) VALUES ($1, $2, $3, $4)`,
			tier.ID, tier.Name, tier.MinPoints, pq.Array(tier.Benefits),
		); err != nil {
			return fmt.Errorf("insert tier %s: %w", tier.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit replace tiers: %w", err)
	}
	return nil
}
