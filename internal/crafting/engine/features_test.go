package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"github.com/rsned/craft-market-planner/pkg/crafting"
)

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeShoppingScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

type shoppingContext struct {
	catalog  *fakeCatalog
	market   *fakeMarket
	listings map[string]crafting.RegionListings
	policy   WorldPolicy
	result   *crafting.ShoppingResult
}

func (s *shoppingContext) reset() {
	s.catalog = newFakeCatalog()
	s.market = newFakeMarket()
	s.listings = make(map[string]crafting.RegionListings)
	s.policy = WorldPolicy{HomeDataCenter: "DC1"}
	s.result = nil
}

func (s *shoppingContext) itemIsCraftedFrom(itemID int, name string, amount, ingredientID int, ingredientName string) error {
	s.catalog.addItem(itemID, name, true, 0)
	s.catalog.addItem(ingredientID, ingredientName, true, 0)
	s.catalog.addRecipe(itemID, 1, crafting.Ingredient{ItemID: ingredientID, Name: ingredientName, Amount: amount})
	return nil
}

func (s *shoppingContext) itemIsTradeable(itemID int, name string) error {
	s.catalog.addItem(itemID, name, true, 0)
	return nil
}

func (s *shoppingContext) worldLists(worldName, region string, quantity, itemID int, price int64) error {
	rl, ok := s.listings[region]
	if !ok {
		rl = make(crafting.RegionListings)
		s.listings[region] = rl
	}
	il := rl[itemID]
	il.ItemID = itemID
	il.Region = region
	il.Listings = append(il.Listings, listing(worldName, quantity, price))
	rl[itemID] = il
	return nil
}

func (s *shoppingContext) dataCenterTimesOut(region string) error {
	s.market.fail(region, timeoutErr(region))
	return nil
}

func (s *shoppingContext) travelProhibited(worldName string) error {
	s.policy.TravelProhibitedWorlds = append(s.policy.TravelProhibitedWorlds, worldName)
	return nil
}

func (s *shoppingContext) engine() *Engine {
	for region, rl := range s.listings {
		s.market.respond(region, rl)
	}
	e, _ := newTestEngine(s.catalog, s.market, WithWorldPolicy(s.policy))
	return e
}

func (s *shoppingContext) planAndShop(quantity, itemID int, region string) error {
	e := s.engine()
	plan, err := e.BuildPlan(context.Background(), "", []crafting.Target{{ItemID: itemID, Quantity: quantity}})
	if err != nil {
		return err
	}
	s.result, err = e.ShopPlan(context.Background(), plan, ShoppingRequest{Region: region}, nil)
	return err
}

func (s *shoppingContext) shop(quantity, itemID int, region string, all bool) error {
	e := s.engine()
	materials := []crafting.MaterialAggregate{{ItemID: itemID, TotalQuantity: quantity, Source: crafting.SourceBuyNormalQuality}}
	var err error
	s.result, err = e.ComputeShoppingPlans(context.Background(), materials, ShoppingRequest{Region: region, AllRegions: all}, nil)
	return err
}

func (s *shoppingContext) shopInRegion(quantity, itemID int, region string) error {
	return s.shop(quantity, itemID, region, false)
}

func (s *shoppingContext) shopAcrossAll(quantity, itemID int, region string) error {
	return s.shop(quantity, itemID, region, true)
}

func (s *shoppingContext) planFor(itemID int) (*crafting.DetailedShoppingPlan, error) {
	if s.result == nil {
		return nil, fmt.Errorf("no shopping result")
	}
	for i := range s.result.Plans {
		if s.result.Plans[i].ItemID == itemID {
			return &s.result.Plans[i], nil
		}
	}
	return nil, fmt.Errorf("no shopping plan for item %d", itemID)
}

func (s *shoppingContext) recommendedWorldIs(itemID int, worldName string, cost int64) error {
	p, err := s.planFor(itemID)
	if err != nil {
		return err
	}
	if p.RecommendedWorld == nil {
		return fmt.Errorf("no world recommended for item %d: %s", itemID, p.Error)
	}
	if p.RecommendedWorld.WorldName != worldName {
		return fmt.Errorf("expected %s to be recommended, got %s", worldName, p.RecommendedWorld.WorldName)
	}
	if p.RecommendedWorld.TotalCost != cost {
		return fmt.Errorf("expected total cost %d, got %d", cost, p.RecommendedWorld.TotalCost)
	}
	return nil
}

func (s *shoppingContext) worldCostsWithExcess(worldName string, itemID int, cost int64, excess int) error {
	p, err := s.planFor(itemID)
	if err != nil {
		return err
	}
	for _, w := range p.WorldOptions {
		if w.WorldName != worldName {
			continue
		}
		if w.TotalCost != cost || w.ExcessQuantity != excess {
			return fmt.Errorf("expected %s to cost %d with excess %d, got %d with excess %d",
				worldName, cost, excess, w.TotalCost, w.ExcessQuantity)
		}
		return nil
	}
	return fmt.Errorf("world %s not among the options", worldName)
}

func (s *shoppingContext) regionTried(region string, times int) error {
	if got := s.market.callCount(region); got != times {
		return fmt.Errorf("expected %d attempts for %s, got %d", times, region, got)
	}
	return nil
}

func (s *shoppingContext) failedRegionsAre(list string) error {
	got := strings.Join(s.result.Outcome.FailedRegions, ",")
	if got != list {
		return fmt.Errorf("expected failed regions %q, got %q", list, got)
	}
	return nil
}

func InitializeShoppingScenario(sc *godog.ScenarioContext) {
	s := &shoppingContext{}

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		s.reset()
		return ctx, nil
	})

	sc.Step(`^item (\d+) named "([^"]*)" is crafted from (\d+) of item (\d+) named "([^"]*)"$`, s.itemIsCraftedFrom)
	sc.Step(`^item (\d+) named "([^"]*)" is tradeable$`, s.itemIsTradeable)
	sc.Step(`^"([^"]*)" in "([^"]*)" lists (\d+) of item (\d+) at (\d+)$`, s.worldLists)
	sc.Step(`^data center "([^"]*)" times out$`, s.dataCenterTimesOut)
	sc.Step(`^travel to "([^"]*)" is prohibited$`, s.travelProhibited)
	sc.Step(`^I plan (\d+) of item (\d+) and compute shopping plans in "([^"]*)"$`, s.planAndShop)
	sc.Step(`^I compute shopping plans for (\d+) of item (\d+) in "([^"]*)" across all data centers$`, s.shopAcrossAll)
	sc.Step(`^I compute shopping plans for (\d+) of item (\d+) in "([^"]*)"$`, s.shopInRegion)
	sc.Step(`^the recommended world for item (\d+) is "([^"]*)" with total cost (\d+)$`, s.recommendedWorldIs)
	sc.Step(`^"([^"]*)" for item (\d+) costs (\d+) with an excess of (\d+)$`, s.worldCostsWithExcess)
	sc.Step(`^data center "([^"]*)" was tried (\d+) times$`, s.regionTried)
	sc.Step(`^the failed regions are "([^"]*)"$`, s.failedRegionsAre)
}
