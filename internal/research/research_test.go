package research

import (
	"context"
	"testing"

	"github.com/opensource-commerce/kite/internal/domain"
)

func testRules() *domain.RulesConfig {
	return &domain.RulesConfig{
		ProfitRules: domain.ProfitRules{
			MinGrossProfitUSD: 5,
			MinGrossMarginPct: 20,
			MinNetMarginPct:   10,
			EstimatedCostRates: domain.CostRates{
				MarketplaceFeePct: 12,
				PaymentFeePct:     3,
			},
		},
	}
}

func floatPtr(f float64) *float64 { return &f }

func TestEvaluateSolvedPricePasses(t *testing.T) {
	stage := New()
	verdicts, err := stage.Evaluate(context.Background(), []domain.CatalogCandidate{
		{SKU: "SKU-1", SourcePrice: 10, ShippingCost: 2},
	}, testRules())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(verdicts) != 1 {
		t.Fatalf("expected 1 verdict, got %d", len(verdicts))
	}

	v := verdicts[0]
	if !v.Pass {
		t.Error("solved price must pass its own policy")
	}
	if v.Next != domain.NextListingQueue {
		t.Errorf("expected next %s, got %s", domain.NextListingQueue, v.Next)
	}
	if v.SellPrice != v.SuggestedSellPrice {
		t.Errorf("without override sell price %v must equal suggestion %v", v.SellPrice, v.SuggestedSellPrice)
	}
}

func TestEvaluateOverrideBelowFloorRejects(t *testing.T) {
	stage := New()
	verdicts, err := stage.Evaluate(context.Background(), []domain.CatalogCandidate{
		{SKU: "SKU-1", SourcePrice: 10, ShippingCost: 2, TargetSellPrice: floatPtr(13)},
	}, testRules())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	v := verdicts[0]
	if v.Pass {
		t.Error("13.00 sell on 12.00 cost cannot satisfy a 5.00 gross profit floor")
	}
	if v.Next != domain.NextReject {
		t.Errorf("expected next %s, got %s", domain.NextReject, v.Next)
	}
	if v.SellPrice != 13 {
		t.Errorf("verdict must report the override price, got %v", v.SellPrice)
	}
	if v.SuggestedSellPrice <= 13 {
		t.Errorf("suggestion %v must exceed the failing override", v.SuggestedSellPrice)
	}
}

func TestEvaluatePreservesInputOrder(t *testing.T) {
	candidates := make([]domain.CatalogCandidate, 40)
	for i := range candidates {
		candidates[i] = domain.CatalogCandidate{
			SKU:          "SKU-" + string(rune('A'+i%26)) + string(rune('0'+i/26)),
			SourcePrice:  float64(5 + i),
			ShippingCost: 1.5,
		}
	}

	stage := New(WithMaxWorkers(4))
	verdicts, err := stage.Evaluate(context.Background(), candidates, testRules())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(verdicts) != len(candidates) {
		t.Fatalf("expected %d verdicts, got %d", len(candidates), len(verdicts))
	}
	for i, v := range verdicts {
		if v.SKU != candidates[i].SKU {
			t.Fatalf("verdict %d: expected sku %s, got %s", i, candidates[i].SKU, v.SKU)
		}
	}
}

func TestEvaluateEmptyInput(t *testing.T) {
	verdicts, err := New().Evaluate(context.Background(), nil, testRules())
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if verdicts != nil {
		t.Errorf("expected nil verdicts for empty input, got %v", verdicts)
	}
}

func TestEvaluateInfeasiblePolicyFails(t *testing.T) {
	rules := testRules()
	rules.ProfitRules.MinNetMarginPct = 90

	_, err := New().Evaluate(context.Background(), []domain.CatalogCandidate{
		{SKU: "SKU-1", SourcePrice: 10, ShippingCost: 2},
	}, rules)
	if err == nil {
		t.Fatal("expected error for infeasible policy")
	}
}
