package db

import (
	"context"
	"fmt"
	"time"

	"github.com/rsned/craft-market-planner/pkg/crafting"
)

// BlacklistStore persists time-boxed world exclusions.
type BlacklistStore struct {
	db *DB
}

// NewBlacklistStore creates a new BlacklistStore.
func NewBlacklistStore(db *DB) *BlacklistStore {
	return &BlacklistStore{db: db}
}

// Add blacklists world until expiresAt, replacing any earlier entry.
func (s *BlacklistStore) Add(ctx context.Context, entry crafting.BlacklistEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO world_blacklist (world, reason, expires_at)
		VALUES (?, ?, ?)
		ON CONFLICT(world) DO UPDATE SET
			reason = excluded.reason,
			expires_at = excluded.expires_at
	`, entry.World, entry.Reason, entry.ExpiresAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("adding blacklist entry: %w", err)
	}
	return nil
}

// Remove deletes the entry for world.
func (s *BlacklistStore) Remove(ctx context.Context, world string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM world_blacklist WHERE world = ?`, world); err != nil {
		return fmt.Errorf("removing blacklist entry: %w", err)
	}
	return nil
}

// Active returns entries that have not expired at now.
func (s *BlacklistStore) Active(ctx context.Context, now time.Time) ([]crafting.BlacklistEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT world, reason, expires_at
		FROM world_blacklist
		WHERE expires_at > ?
		ORDER BY world
	`, now.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("querying blacklist: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []crafting.BlacklistEntry
	for rows.Next() {
		var e crafting.BlacklistEntry
		var expires string
		if err := rows.Scan(&e.World, &e.Reason, &expires); err != nil {
			return nil, fmt.Errorf("scanning blacklist entry: %w", err)
		}
		e.ExpiresAt = parseTime(expires)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// PruneExpired removes entries that expired before now.
func (s *BlacklistStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM world_blacklist WHERE expires_at <= ?
	`, now.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("pruning blacklist: %w", err)
	}
	return result.RowsAffected()
}
