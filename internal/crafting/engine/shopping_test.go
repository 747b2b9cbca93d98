package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsned/craft-market-planner/pkg/crafting"
)

func TestComputeShoppingPlans_RecommendsCheapestWorld(t *testing.T) {
	// Arrange: item X needs 2 of Y; World A has one stack of 5 at 100,
	// World B has two single units at 90.
	catalog := newFakeCatalog()
	catalog.addItem(1, "X", true, 0)
	catalog.addItem(2, "Y", true, 0)
	catalog.addRecipe(1, 1, ing(2, 2))
	market := newFakeMarket()
	market.respond("DC1", crafting.RegionListings{
		2: listingsOf(2, "DC1", listing("World A", 5, 100), listing("World B", 1, 90), listing("World B", 1, 90)),
	})
	e, _ := newTestEngine(catalog, market)
	plan, err := e.BuildPlan(context.Background(), "", []crafting.Target{{ItemID: 1, Quantity: 1}})
	require.NoError(t, err)

	// Act
	result, err := e.ShopPlan(context.Background(), plan, ShoppingRequest{}, nil)

	// Assert
	require.NoError(t, err)
	require.Len(t, result.Plans, 1)
	p := result.Plans[0]
	assert.Equal(t, 2, p.QuantityNeeded)
	require.Len(t, p.WorldOptions, 2)
	require.NotNil(t, p.RecommendedWorld)
	assert.Equal(t, "World B", p.RecommendedWorld.WorldName)
	assert.Equal(t, int64(180), p.RecommendedWorld.TotalCost)
	assert.True(t, p.WorldOptions[0].IsHomeWorld)
	assert.Equal(t, 1, result.Outcome.Success)
	assert.Equal(t, result.Plans, plan.MarketPlans)
}

func TestComputeShoppingPlans_AllRegionsWithFailure(t *testing.T) {
	// Arrange
	market := newFakeMarket()
	market.respond("DC1", crafting.RegionListings{
		7: listingsOf(7, "DC1", listing("World A", 3, 50)),
	})
	market.fail("DC2", timeoutErr("DC2"))
	catalog := newFakeCatalog()
	catalog.addItem(7, "Ore", true, 0)
	e, clock := newTestEngine(catalog, market)

	var failedEvents int
	progress := func(p crafting.Progress) {
		if p.Stage == crafting.StageRegionFailed {
			failedEvents++
		}
	}
	materials := []crafting.MaterialAggregate{{ItemID: 7, Name: "Ore", TotalQuantity: 2, Source: crafting.SourceBuyNormalQuality}}

	// Act
	result, err := e.ComputeShoppingPlans(context.Background(), materials, ShoppingRequest{Region: "DC1", AllRegions: true}, progress)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"DC2"}, result.Outcome.FailedRegions)
	assert.Equal(t, 3, market.callCount("DC2"))
	assert.Equal(t, 1, failedEvents)
	require.Len(t, result.Plans, 1)
	require.NotNil(t, result.Plans[0].RecommendedWorld)
	assert.Equal(t, "DC1", result.Plans[0].RecommendedWorld.DataCenter)
	assert.NotEmpty(t, clock.Sleeps())
}

func TestComputeShoppingPlans_InsufficientListings(t *testing.T) {
	market := newFakeMarket()
	market.respond("DC1", crafting.RegionListings{
		7: listingsOf(7, "DC1", listing("World A", 1, 50)),
	})
	catalog := newFakeCatalog()
	catalog.addItem(7, "Ore", true, 0)
	e, _ := newTestEngine(catalog, market)
	materials := []crafting.MaterialAggregate{{ItemID: 7, Name: "Ore", TotalQuantity: 5}}

	result, err := e.ComputeShoppingPlans(context.Background(), materials, ShoppingRequest{Region: "DC1"}, nil)

	require.NoError(t, err)
	p := result.Plans[0]
	require.Len(t, p.WorldOptions, 1)
	assert.False(t, p.WorldOptions[0].HasFullCoverage)
	assert.Nil(t, p.RecommendedWorld)
	assert.NotEmpty(t, p.Error)
	assert.Equal(t, 1, result.Outcome.Failed)
}

func TestComputeShoppingPlans_BlacklistedWorldSkipped(t *testing.T) {
	market := newFakeMarket()
	market.respond("DC1", crafting.RegionListings{
		7: listingsOf(7, "DC1", listing("World A", 2, 50), listing("World B", 2, 80)),
	})
	catalog := newFakeCatalog()
	catalog.addItem(7, "Ore", true, 0)
	e, _ := newTestEngine(catalog, market, WithBlacklist(fakeBlacklist{"World A"}))
	materials := []crafting.MaterialAggregate{{ItemID: 7, Name: "Ore", TotalQuantity: 2}}

	result, err := e.ComputeShoppingPlans(context.Background(), materials, ShoppingRequest{Region: "DC1"}, nil)

	require.NoError(t, err)
	require.NotNil(t, result.Plans[0].RecommendedWorld)
	assert.Equal(t, "World B", result.Plans[0].RecommendedWorld.WorldName)
	assert.True(t, result.Plans[0].WorldOptions[0].IsBlacklisted)
}

func TestComputeShoppingPlans_SkipsNonMarketMaterials(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.addItem(3, "Water", false, 5)
	catalog.addItem(4, "Token", false, 0)
	market := newFakeMarket()
	e, _ := newTestEngine(catalog, market)
	materials := []crafting.MaterialAggregate{
		{ItemID: 3, Name: "Water", TotalQuantity: 1},
		{ItemID: 4, Name: "Token", TotalQuantity: 1},
	}

	result, err := e.ComputeShoppingPlans(context.Background(), materials, ShoppingRequest{Region: "DC1"}, nil)

	require.NoError(t, err)
	assert.Empty(t, result.Plans)
	assert.Equal(t, 2, result.Outcome.Skipped)
	assert.Zero(t, market.callCount("DC1"))
}

func TestComputeShoppingPlans_UnknownObjective(t *testing.T) {
	e, _ := newTestEngine(newFakeCatalog(), newFakeMarket())

	_, err := e.ComputeShoppingPlans(context.Background(), nil, ShoppingRequest{Region: "DC1", Objective: "cheapest-ever"}, nil)

	assert.Error(t, err)
}

func TestCategorizeMaterials(t *testing.T) {
	e, _ := newTestEngine(potionCatalog(), newFakeMarket())
	materials := []crafting.MaterialAggregate{{ItemID: 2}, {ItemID: 3}, {ItemID: 4}, {ItemID: 99}}

	buckets := e.CategorizeMaterials(context.Background(), materials)

	assert.Len(t, buckets.Market, 1)
	assert.Len(t, buckets.Vendor, 1)
	assert.Len(t, buckets.Untradeable, 2)
	assert.Equal(t, len(materials), len(buckets.Market)+len(buckets.Vendor)+len(buckets.Untradeable))
}

func TestRefreshAndShop_FetchesEachRegionOnce(t *testing.T) {
	// Arrange
	market := newFakeMarket()
	market.respond("DC1", crafting.RegionListings{
		2: listingsOf(2, "DC1", listing("World A", 5, 100), listing("World B", 1, 90), listing("World B", 1, 90)),
	})
	e, _ := newTestEngine(potionCatalog(), market)
	plan, err := e.BuildPlan(context.Background(), "potions", []crafting.Target{{ItemID: 1, Quantity: 1}})
	require.NoError(t, err)

	// Act
	refreshed, shopping, err := e.RefreshAndShop(context.Background(), plan,
		RefreshRequest{Region: "DC1"}, ShoppingRequest{}, nil)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, 1, market.callCount("DC1"))
	assert.Equal(t, 2, refreshed.Outcome.Success)
	assert.Equal(t, int64(90), plan.RootItems[0].Children[0].MarketPrice)
	require.Len(t, shopping.Plans, 1)
	require.NotNil(t, shopping.Plans[0].RecommendedWorld)
	assert.Equal(t, "World B", shopping.Plans[0].RecommendedWorld.WorldName)
	assert.Equal(t, shopping.Plans, plan.MarketPlans)
}

func TestRefreshAndShop_UnpricedScopeStillShops(t *testing.T) {
	market := newFakeMarket()
	market.respond("DC1", crafting.RegionListings{
		2: listingsOf(2, "DC1", listing("World A", 2, 80)),
	})
	e, clock := newTestEngine(potionCatalog(), market)
	e.prices.Put(crafting.PriceInfo{ItemID: 2, Source: crafting.PriceSourceMarket, UnitPrice: 70, FetchedAt: clock.Now()})
	plan, err := e.BuildPlan(context.Background(), "", []crafting.Target{{ItemID: 1, Quantity: 1}})
	require.NoError(t, err)

	refreshed, shopping, err := e.RefreshAndShop(context.Background(), plan,
		RefreshRequest{Region: "DC1", Scope: crafting.ScopeUnpriced}, ShoppingRequest{}, nil)

	require.NoError(t, err)
	assert.Equal(t, 1, refreshed.Outcome.Cached)
	assert.Equal(t, 1, market.callCount("DC1"))
	require.Len(t, shopping.Plans, 1)
	require.NotNil(t, shopping.Plans[0].RecommendedWorld)
	assert.Equal(t, int64(160), shopping.Plans[0].RecommendedWorld.TotalCost)
}
