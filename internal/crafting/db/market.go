package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rsned/craft-market-planner/pkg/crafting"
)

// MarketStore keeps the last successful listing fetch per region so a
// failed refresh can fall back to it.
type MarketStore struct {
	db *DB
}

// NewMarketStore creates a new MarketStore.
func NewMarketStore(db *DB) *MarketStore {
	return &MarketStore{db: db}
}

// SaveSnapshot replaces the stored listings of region for every item in
// requested and every item in listings. A requested item missing from
// listings sold out, so its old rows are dropped without replacement.
func (s *MarketStore) SaveSnapshot(ctx context.Context, region string, requested []int, listings crafting.RegionListings, fetchedAt time.Time) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		clearStmt, err := tx.PrepareContext(ctx, `
			DELETE FROM listing_snapshots WHERE region = ? AND item_id = ?
		`)
		if err != nil {
			return fmt.Errorf("preparing snapshot cleanup: %w", err)
		}
		defer func() { _ = clearStmt.Close() }()

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO listing_snapshots
			(region, item_id, world_id, world_name, quantity, price_per_unit, retainer, hq, average_price, fetched_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, itemID := range requested {
			if _, ok := listings[itemID]; ok {
				continue
			}
			if _, err := clearStmt.ExecContext(ctx, region, itemID); err != nil {
				return fmt.Errorf("clearing snapshot for %d: %w", itemID, err)
			}
		}

		ts := fetchedAt.UTC().Format(timeLayout)
		for itemID, il := range listings {
			if _, err := clearStmt.ExecContext(ctx, region, itemID); err != nil {
				return fmt.Errorf("clearing snapshot for %d: %w", itemID, err)
			}
			for _, l := range il.Listings {
				_, err := stmt.ExecContext(ctx,
					region, itemID, l.WorldID, l.WorldName, l.Quantity, l.PricePerUnit,
					l.RetainerName, boolToInt(l.IsHQ), il.AveragePrice, ts,
				)
				if err != nil {
					return fmt.Errorf("inserting listing for %d: %w", itemID, err)
				}
			}
		}

		return nil
	})
}

// LoadSnapshot returns the stored listings for the given items in region
// and the oldest fetch time among them. Items with no snapshot are absent
// from the result.
func (s *MarketStore) LoadSnapshot(ctx context.Context, region string, itemIDs []int) (crafting.RegionListings, time.Time, error) {
	result := make(crafting.RegionListings)
	var oldest time.Time

	for _, itemID := range itemIDs {
		rows, err := s.db.QueryContext(ctx, `
			SELECT world_id, world_name, quantity, price_per_unit, retainer, hq, average_price, fetched_at
			FROM listing_snapshots
			WHERE region = ? AND item_id = ?
			ORDER BY price_per_unit, quantity DESC
		`, region, itemID)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("querying snapshot: %w", err)
		}

		il := crafting.ItemListings{ItemID: itemID, Region: region}
		found := false
		for rows.Next() {
			var l crafting.Listing
			var hq int
			var fetched string
			if err := rows.Scan(&l.WorldID, &l.WorldName, &l.Quantity, &l.PricePerUnit,
				&l.RetainerName, &hq, &il.AveragePrice, &fetched); err != nil {
				_ = rows.Close()
				return nil, time.Time{}, fmt.Errorf("scanning listing: %w", err)
			}
			l.IsHQ = hq != 0
			il.Listings = append(il.Listings, l)
			found = true

			if t := parseTime(fetched); oldest.IsZero() || t.Before(oldest) {
				oldest = t
			}
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, time.Time{}, err
		}

		if found {
			result[itemID] = il
		}
	}

	return result, oldest, nil
}

// PruneSnapshots removes snapshots older than maxAge.
func (s *MarketStore) PruneSnapshots(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UTC().Format(timeLayout)
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM listing_snapshots WHERE fetched_at < ?
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("pruning snapshots: %w", err)
	}
	return result.RowsAffected()
}

// ClearMarketData removes all snapshots and cached prices.
func (s *MarketStore) ClearMarketData(ctx context.Context) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM listing_snapshots`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM price_cache`); err != nil {
			return err
		}
		return nil
	})
}
