package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rsned/craft-market-planner/pkg/crafting"
)

// ItemStore handles static item data.
type ItemStore struct {
	db *DB
}

// NewItemStore creates a new ItemStore.
func NewItemStore(db *DB) *ItemStore {
	return &ItemStore{db: db}
}

// GetItem retrieves one item. Returns nil if not found.
func (s *ItemStore) GetItem(ctx context.Context, id int) (*crafting.Item, error) {
	item := &crafting.Item{ID: id}
	var tradeable, canBeHQ int

	err := s.db.QueryRowContext(ctx, `
		SELECT name, tradeable, vendor_price, can_be_hq
		FROM items WHERE id = ?
	`, id).Scan(&item.Name, &tradeable, &item.VendorPrice, &canBeHQ)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying item: %w", err)
	}

	item.Tradeable = tradeable != 0
	item.CanBeHQ = canBeHQ != 0
	return item, nil
}

// BulkInsertItems inserts or replaces items in a transaction.
func (s *ItemStore) BulkInsertItems(ctx context.Context, items []crafting.Item) error {
	return s.db.InTransaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO items (id, name, tradeable, vendor_price, can_be_hq)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing item statement: %w", err)
		}
		defer func() { _ = stmt.Close() }()

		for _, it := range items {
			if _, err := stmt.ExecContext(ctx,
				it.ID, it.Name, boolToInt(it.Tradeable), it.VendorPrice, boolToInt(it.CanBeHQ),
			); err != nil {
				return fmt.Errorf("inserting item %d: %w", it.ID, err)
			}
		}
		return nil
	})
}

// CountItems returns the total number of items.
func (s *ItemStore) CountItems(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM items`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting items: %w", err)
	}
	return count, nil
}
