package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rsned/craft-market-planner/internal/crafting/cache"
	"github.com/rsned/craft-market-planner/pkg/crafting"
)

var testStart = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeCatalog struct {
	items      map[int]*crafting.Item
	recipes    map[int]*crafting.Recipe
	failRecipe map[int]error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		items:      make(map[int]*crafting.Item),
		recipes:    make(map[int]*crafting.Recipe),
		failRecipe: make(map[int]error),
	}
}

func (c *fakeCatalog) addItem(id int, name string, tradeable bool, vendorPrice int64) {
	c.items[id] = &crafting.Item{ID: id, Name: name, Tradeable: tradeable, VendorPrice: vendorPrice}
}

func (c *fakeCatalog) addRecipe(itemID, yield int, ingredients ...crafting.Ingredient) {
	c.recipes[itemID] = &crafting.Recipe{ID: itemID * 10, ItemID: itemID, Yield: yield, Ingredients: ingredients}
}

func (c *fakeCatalog) LookupRecipe(_ context.Context, itemID int) (*crafting.Recipe, error) {
	if err := c.failRecipe[itemID]; err != nil {
		return nil, err
	}
	return c.recipes[itemID], nil
}

func (c *fakeCatalog) LookupItem(_ context.Context, itemID int) (*crafting.Item, error) {
	return c.items[itemID], nil
}

func ing(itemID, amount int) crafting.Ingredient {
	return crafting.Ingredient{ItemID: itemID, Amount: amount}
}

// scriptedResponse is one canned answer of fakeMarket.
type scriptedResponse struct {
	listings crafting.RegionListings
	err      error
}

// fakeMarket answers per region from a script; the last response repeats.
type fakeMarket struct {
	mu      sync.Mutex
	scripts map[string][]scriptedResponse
	calls   map[string]int
	order   []string
	onCall  func(region string)
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		scripts: make(map[string][]scriptedResponse),
		calls:   make(map[string]int),
	}
}

func (m *fakeMarket) respond(region string, listings crafting.RegionListings) {
	m.scripts[region] = append(m.scripts[region], scriptedResponse{listings: listings})
}

func (m *fakeMarket) fail(region string, err error) {
	m.scripts[region] = append(m.scripts[region], scriptedResponse{err: err})
}

func (m *fakeMarket) FetchListings(_ context.Context, region string, itemIDs []int) (crafting.RegionListings, error) {
	m.mu.Lock()
	n := m.calls[region]
	m.calls[region]++
	m.order = append(m.order, region)
	script := m.scripts[region]
	onCall := m.onCall
	m.mu.Unlock()

	if onCall != nil {
		onCall(region)
	}
	if len(script) == 0 {
		return nil, &crafting.FetchError{Region: region, StatusCode: 404, Err: errors.New("unknown region")}
	}
	resp := script[min(n, len(script)-1)]
	if resp.err != nil {
		return nil, resp.err
	}
	out := make(crafting.RegionListings)
	for _, id := range itemIDs {
		if il, ok := resp.listings[id]; ok {
			out[id] = il
		}
	}
	return out, nil
}

func (m *fakeMarket) callCount(region string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[region]
}

type fakeSnapshots struct {
	saved map[string]crafting.RegionListings
}

func newFakeSnapshots() *fakeSnapshots {
	return &fakeSnapshots{saved: make(map[string]crafting.RegionListings)}
}

func (s *fakeSnapshots) SaveSnapshot(_ context.Context, region string, _ []int, listings crafting.RegionListings, _ time.Time) error {
	s.saved[region] = listings
	return nil
}

func (s *fakeSnapshots) LoadSnapshot(_ context.Context, region string, _ []int) (crafting.RegionListings, time.Time, error) {
	return s.saved[region], testStart.Add(-time.Hour), nil
}

type fakeBlacklist []string

func (b fakeBlacklist) Active(context.Context, time.Time) ([]crafting.BlacklistEntry, error) {
	out := make([]crafting.BlacklistEntry, 0, len(b))
	for _, w := range b {
		out = append(out, crafting.BlacklistEntry{World: w, ExpiresAt: testStart.Add(time.Hour)})
	}
	return out, nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	attempts map[string]int
	retries  map[string]int
	failures map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{attempts: map[string]int{}, retries: map[string]int{}, failures: map[string]int{}}
}

func (r *fakeRecorder) RecordAttempt(region string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[region]++
}

func (r *fakeRecorder) RecordRetry(region, _ string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retries[region]++
}

func (r *fakeRecorder) RecordRegionFailure(region string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[region]++
}

func (r *fakeRecorder) RecordDuration(string, time.Duration) {}

// listingsOf builds ItemListings for one item from (world, quantity, price) triples.
func listingsOf(itemID int, region string, entries ...crafting.Listing) crafting.ItemListings {
	return crafting.ItemListings{ItemID: itemID, Region: region, Listings: entries}
}

func listing(world string, quantity int, price int64) crafting.Listing {
	return crafting.Listing{WorldName: world, Quantity: quantity, PricePerUnit: price}
}

// newTestEngine wires an engine over fakes with an instant clock.
func newTestEngine(catalog *fakeCatalog, market *fakeMarket, opts ...Option) (*Engine, *MockClock) {
	clock := NewMockClock(testStart)
	prices := cache.NewPriceCache(nil, catalog, nil)
	base := []Option{
		WithClock(clock),
		WithWorldPolicy(WorldPolicy{HomeWorld: "World A", HomeDataCenter: "DC1"}),
		WithRegions([]string{"DC1", "DC2"}),
	}
	return New(catalog, prices, market, append(base, opts...)...), clock
}
