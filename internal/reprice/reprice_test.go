package reprice

import (
	"testing"

	"github.com/opensource-commerce/kite/internal/domain"
)

func testRules() *domain.RulesConfig {
	return &domain.RulesConfig{
		InventoryAndPricing: domain.InventoryPricingRules{
			RepriceOnSourceDeltaPct:  3,
			ImmediateRepriceDeltaPct: 8,
		},
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		listing    domain.Listing
		wantAction domain.RepriceActionType
		wantReason string
	}{
		{
			"depleted stock takes listing down",
			domain.Listing{SKU: "A", SourcePriceNow: 10, SourcePricePrev: 10, SourceStock: 0},
			domain.ActionSetOutOfStock,
			"source_stock_0",
		},
		{
			"stock wins over large drift",
			domain.Listing{SKU: "A", SourcePriceNow: 20, SourcePricePrev: 10, SourceStock: 0},
			domain.ActionSetOutOfStock,
			"source_stock_0",
		},
		{
			"missing previous price escalates",
			domain.Listing{SKU: "A", SourcePriceNow: 10, SourcePricePrev: 0, SourceStock: 5},
			domain.ActionRepriceNow,
			"source_price_prev_0",
		},
		{
			"no drift",
			domain.Listing{SKU: "A", SourcePriceNow: 10, SourcePricePrev: 10, SourceStock: 5},
			domain.ActionNone,
			"delta_0%",
		},
		{
			"drift below threshold",
			domain.Listing{SKU: "A", SourcePriceNow: 10.2, SourcePricePrev: 10, SourceStock: 5},
			domain.ActionNone,
			"delta_2%",
		},
		{
			"drift at standard threshold",
			domain.Listing{SKU: "A", SourcePriceNow: 10.3, SourcePricePrev: 10, SourceStock: 5},
			domain.ActionReprice,
			"delta_3%",
		},
		{
			"negative drift reprices too",
			domain.Listing{SKU: "A", SourcePriceNow: 9, SourcePricePrev: 10, SourceStock: 5},
			domain.ActionRepriceNow,
			"delta_-10%",
		},
		{
			"drift at immediate threshold",
			domain.Listing{SKU: "A", SourcePriceNow: 10.8, SourcePricePrev: 10, SourceStock: 5},
			domain.ActionRepriceNow,
			"delta_8%",
		},
		{
			"fractional drift trims trailing zeros",
			domain.Listing{SKU: "A", SourcePriceNow: 11.23, SourcePricePrev: 10, SourceStock: 5},
			domain.ActionRepriceNow,
			"delta_12.3%",
		},
		{
			"rounded drift decides the threshold",
			// 2.996% rounds to 3.00, which meets the 3% threshold.
			domain.Listing{SKU: "A", SourcePriceNow: 102.996, SourcePricePrev: 100, SourceStock: 5},
			domain.ActionReprice,
			"delta_3%",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.listing, testRules())
			if got.Action != tt.wantAction {
				t.Errorf("expected action %s, got %s", tt.wantAction, got.Action)
			}
			if got.Reason != tt.wantReason {
				t.Errorf("expected reason %q, got %q", tt.wantReason, got.Reason)
			}
			if got.SKU != tt.listing.SKU {
				t.Errorf("expected sku %s, got %s", tt.listing.SKU, got.SKU)
			}
		})
	}
}

func TestClassifyIdempotent(t *testing.T) {
	l := domain.Listing{SKU: "A", SourcePriceNow: 9.13, SourcePricePrev: 10, SourceStock: 3}
	first := Classify(l, testRules())
	second := Classify(l, testRules())
	if first != second {
		t.Errorf("same snapshot must classify identically: %+v vs %+v", first, second)
	}
}

func TestClassifySeverityMonotonic(t *testing.T) {
	// Widening drift never de-escalates the action.
	rank := map[domain.RepriceActionType]int{
		domain.ActionNone:       0,
		domain.ActionReprice:    1,
		domain.ActionRepriceNow: 2,
	}

	prevRank := 0
	for now := 10.0; now <= 12.0; now += 0.05 {
		got := Classify(domain.Listing{SKU: "A", SourcePriceNow: now, SourcePricePrev: 10, SourceStock: 5}, testRules())
		if rank[got.Action] < prevRank {
			t.Fatalf("severity decreased at now=%.2f: %s", now, got.Action)
		}
		prevRank = rank[got.Action]
	}
}

func TestClassifyAllPreservesOrder(t *testing.T) {
	listings := []domain.Listing{
		{SKU: "A", SourcePriceNow: 10, SourcePricePrev: 10, SourceStock: 5},
		{SKU: "B", SourcePriceNow: 9, SourcePricePrev: 10, SourceStock: 5},
		{SKU: "C", SourcePriceNow: 10, SourcePricePrev: 10, SourceStock: 0},
	}

	actions := ClassifyAll(listings, testRules())
	if len(actions) != 3 {
		t.Fatalf("expected 3 actions, got %d", len(actions))
	}
	if actions[0].Action != domain.ActionNone ||
		actions[1].Action != domain.ActionRepriceNow ||
		actions[2].Action != domain.ActionSetOutOfStock {
		t.Errorf("unexpected actions: %+v", actions)
	}
	for i, a := range actions {
		if a.SKU != listings[i].SKU {
			t.Errorf("action %d: expected sku %s, got %s", i, listings[i].SKU, a.SKU)
		}
	}
}

func TestClassifyAllEmpty(t *testing.T) {
	if got := ClassifyAll(nil, testRules()); got != nil {
		t.Errorf("expected nil for empty input, got %v", got)
	}
}
