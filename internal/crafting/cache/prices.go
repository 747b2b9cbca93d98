// Package cache holds the in-memory caches shared by concurrent operations.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rsned/craft-market-planner/pkg/crafting"
)

// PriceStore persists prices between runs.
type PriceStore interface {
	GetPrice(ctx context.Context, itemID int) (*crafting.PriceInfo, error)
	UpsertPrices(ctx context.Context, prices []crafting.PriceInfo) error
}

// ItemSource provides static item data used to classify unpriced items.
type ItemSource interface {
	LookupItem(ctx context.Context, itemID int) (*crafting.Item, error)
}

// PriceCache is a read-through price cache safe for concurrent use.
// Lookups consult memory, then the store, then the item catalog; none of
// them touch the network. Put marks an entry dirty until Flush writes it.
type PriceCache struct {
	store  PriceStore
	items  ItemSource
	logger *slog.Logger

	mu      sync.RWMutex
	entries map[int]crafting.PriceInfo
	dirty   map[int]struct{}
}

// NewPriceCache creates a PriceCache. store and items may be nil.
func NewPriceCache(store PriceStore, items ItemSource, logger *slog.Logger) *PriceCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &PriceCache{
		store:   store,
		items:   items,
		logger:  logger,
		entries: make(map[int]crafting.PriceInfo),
		dirty:   make(map[int]struct{}),
	}
}

// LookupPrice returns the best known price of itemID. An item nothing is
// known about gets PriceSourceUnknown and a zero price.
func (c *PriceCache) LookupPrice(ctx context.Context, itemID int) (crafting.PriceInfo, error) {
	c.mu.RLock()
	info, ok := c.entries[itemID]
	c.mu.RUnlock()
	if ok {
		return info, nil
	}

	if c.store != nil {
		stored, err := c.store.GetPrice(ctx, itemID)
		if err != nil {
			return crafting.PriceInfo{}, fmt.Errorf("loading cached price: %w", err)
		}
		if stored != nil {
			c.remember(*stored)
			return *stored, nil
		}
	}

	info = crafting.PriceInfo{ItemID: itemID, Source: crafting.PriceSourceUnknown}
	if c.items != nil {
		item, err := c.items.LookupItem(ctx, itemID)
		if err != nil {
			return crafting.PriceInfo{}, fmt.Errorf("classifying item: %w", err)
		}
		info = classify(itemID, item)
	}
	c.remember(info)
	return info, nil
}

// classify derives a price entry from static item data.
func classify(itemID int, item *crafting.Item) crafting.PriceInfo {
	info := crafting.PriceInfo{ItemID: itemID, Source: crafting.PriceSourceUnknown}
	switch {
	case item == nil:
	case item.Tradeable:
		info.Source = crafting.PriceSourceMarket
	case item.VendorPrice > 0:
		info.Source = crafting.PriceSourceVendor
		info.UnitPrice = item.VendorPrice
		info.Details = "vendor"
	default:
		info.Source = crafting.PriceSourceUntradeable
	}
	return info
}

// remember stores info without marking it dirty, unless a concurrent Put
// already stored something newer.
func (c *PriceCache) remember(info crafting.PriceInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[info.ItemID]; !ok {
		c.entries[info.ItemID] = info
	}
}

// Put records a fresh price and marks it for the next Flush.
func (c *PriceCache) Put(info crafting.PriceInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[info.ItemID] = info
	c.dirty[info.ItemID] = struct{}{}
}

// Len returns the number of entries held in memory.
func (c *PriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Flush writes dirty entries to the store. Entries stay dirty if the write
// fails.
func (c *PriceCache) Flush(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	c.mu.Lock()
	pending := make([]crafting.PriceInfo, 0, len(c.dirty))
	for id := range c.dirty {
		pending = append(pending, c.entries[id])
	}
	c.dirty = make(map[int]struct{})
	c.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}
	if err := c.store.UpsertPrices(ctx, pending); err != nil {
		c.mu.Lock()
		for _, p := range pending {
			c.dirty[p.ItemID] = struct{}{}
		}
		c.mu.Unlock()
		return fmt.Errorf("flushing prices: %w", err)
	}

	c.logger.Debug("price cache flushed", "entries", len(pending))
	return nil
}
