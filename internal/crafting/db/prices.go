package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rsned/craft-market-planner/pkg/crafting"
)

// PriceStore persists the price cache.
type PriceStore struct {
	db *DB
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(db *DB) *PriceStore {
	return &PriceStore{db: db}
}

// GetPrice retrieves the stored price of one item. Returns nil if absent.
func (s *PriceStore) GetPrice(ctx context.Context, itemID int) (*crafting.PriceInfo, error) {
	p := &crafting.PriceInfo{ItemID: itemID}
	var source, fetched string

	err := s.db.QueryRowContext(ctx, `
		SELECT source, unit_price, hq_unit_price, details, region, fetched_at
		FROM price_cache WHERE item_id = ?
	`, itemID).Scan(&source, &p.UnitPrice, &p.HQUnitPrice, &p.Details, &p.Region, &fetched)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying price: %w", err)
	}

	p.Source = crafting.PriceSource(source)
	p.FetchedAt = parseTime(fetched)
	return p, nil
}

// UpsertPrices writes prices in one transaction.
func (s *PriceStore) UpsertPrices(ctx context.Context, prices []crafting.PriceInfo) error {
	if len(prices) == 0 {
		return nil
	}
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO price_cache (item_id, source, unit_price, hq_unit_price, details, region, fetched_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(item_id) DO UPDATE SET
				source = excluded.source,
				unit_price = excluded.unit_price,
				hq_unit_price = excluded.hq_unit_price,
				details = excluded.details,
				region = excluded.region,
				fetched_at = excluded.fetched_at
		`)
		if err != nil {
			return fmt.Errorf("preparing price statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, p := range prices {
			if _, err := stmt.ExecContext(ctx,
				p.ItemID, string(p.Source), p.UnitPrice, p.HQUnitPrice, p.Details, p.Region,
				p.FetchedAt.UTC().Format(timeLayout),
			); err != nil {
				return fmt.Errorf("upserting price for %d: %w", p.ItemID, err)
			}
		}
		return nil
	})
}
