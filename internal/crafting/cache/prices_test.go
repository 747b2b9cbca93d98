package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsned/craft-market-planner/pkg/crafting"
)

type fakePriceStore struct {
	mu      sync.Mutex
	prices  map[int]crafting.PriceInfo
	upserts int
	failing bool
}

func newFakePriceStore() *fakePriceStore {
	return &fakePriceStore{prices: make(map[int]crafting.PriceInfo)}
}

func (s *fakePriceStore) GetPrice(_ context.Context, itemID int) (*crafting.PriceInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.prices[itemID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (s *fakePriceStore) UpsertPrices(_ context.Context, prices []crafting.PriceInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("disk full")
	}
	s.upserts++
	for _, p := range prices {
		s.prices[p.ItemID] = p
	}
	return nil
}

type fakeItems map[int]*crafting.Item

func (f fakeItems) LookupItem(_ context.Context, itemID int) (*crafting.Item, error) {
	return f[itemID], nil
}

func TestPriceCache_ClassifiesFromCatalog(t *testing.T) {
	// Arrange
	items := fakeItems{
		1: {ID: 1, Name: "Iron Ore", Tradeable: true},
		2: {ID: 2, Name: "Distilled Water", VendorPrice: 3},
		3: {ID: 3, Name: "Quest Token"},
	}
	c := NewPriceCache(nil, items, nil)
	ctx := context.Background()

	// Act
	market, err1 := c.LookupPrice(ctx, 1)
	vendor, err2 := c.LookupPrice(ctx, 2)
	untradeable, err3 := c.LookupPrice(ctx, 3)
	unknown, err4 := c.LookupPrice(ctx, 4)

	// Assert
	require.NoError(t, errors.Join(err1, err2, err3, err4))
	assert.Equal(t, crafting.PriceSourceMarket, market.Source)
	assert.Zero(t, market.UnitPrice)
	assert.Equal(t, crafting.PriceSourceVendor, vendor.Source)
	assert.Equal(t, int64(3), vendor.UnitPrice)
	assert.Equal(t, crafting.PriceSourceUntradeable, untradeable.Source)
	assert.Equal(t, crafting.PriceSourceUnknown, unknown.Source)
}

func TestPriceCache_StoreBeforeCatalog(t *testing.T) {
	store := newFakePriceStore()
	store.prices[1] = crafting.PriceInfo{ItemID: 1, Source: crafting.PriceSourceMarket, UnitPrice: 250}
	c := NewPriceCache(store, fakeItems{1: {ID: 1, Tradeable: true}}, nil)

	info, err := c.LookupPrice(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, int64(250), info.UnitPrice)
}

func TestPriceCache_PutAndFlush(t *testing.T) {
	// Arrange
	store := newFakePriceStore()
	c := NewPriceCache(store, nil, nil)
	ctx := context.Background()
	fetched := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	// Act
	c.Put(crafting.PriceInfo{ItemID: 7, Source: crafting.PriceSourceMarket, UnitPrice: 99, FetchedAt: fetched})
	got, err := c.LookupPrice(ctx, 7)
	require.NoError(t, err)
	require.NoError(t, c.Flush(ctx))
	require.NoError(t, c.Flush(ctx))

	// Assert
	assert.Equal(t, int64(99), got.UnitPrice)
	assert.Equal(t, 1, store.upserts, "second flush has nothing dirty")
	assert.Equal(t, int64(99), store.prices[7].UnitPrice)
}

func TestPriceCache_FlushFailureKeepsDirty(t *testing.T) {
	store := newFakePriceStore()
	store.failing = true
	c := NewPriceCache(store, nil, nil)
	c.Put(crafting.PriceInfo{ItemID: 7, Source: crafting.PriceSourceMarket, UnitPrice: 99})

	require.Error(t, c.Flush(context.Background()))

	store.failing = false
	require.NoError(t, c.Flush(context.Background()))
	assert.Equal(t, int64(99), store.prices[7].UnitPrice)
}

func TestPriceCache_ConcurrentAccess(t *testing.T) {
	c := NewPriceCache(newFakePriceStore(), fakeItems{}, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			c.Put(crafting.PriceInfo{ItemID: id, Source: crafting.PriceSourceMarket, UnitPrice: int64(id)})
			_, _ = c.LookupPrice(ctx, id)
			_, _ = c.LookupPrice(ctx, id+100)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 40, c.Len())
	require.NoError(t, c.Flush(ctx))
}
