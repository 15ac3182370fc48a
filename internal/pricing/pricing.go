// Package pricing implements the price solver and profit evaluator.
//
// All currency math runs on decimals; monetary outputs are rounded to two
// places, half away from zero.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/opensource-commerce/kite/internal/domain"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Evaluation is the profit verdict for a chosen sell price.
type Evaluation struct {
	GrossProfit    float64 `json:"grossProfit"`
	GrossMarginPct float64 `json:"grossMarginPct"`
	NetProfit      float64 `json:"netProfit"`
	NetMarginPct   float64 `json:"netMarginPct"`
	Pass           bool    `json:"pass"`
}

// RequiredSellPrice solves for the lowest price satisfying all three profit
// floors: gross profit, gross margin and net margin. The binding constraint
// is the maximum of the three floors, rounded to 2 decimal places.
func RequiredSellPrice(sourcePrice, shippingCost float64, rules *domain.RulesConfig) (float64, error) {
	p := rules.ProfitRules

	costBase := decimal.NewFromFloat(sourcePrice).Add(decimal.NewFromFloat(shippingCost))
	feeRate := decimal.NewFromFloat(p.EstimatedCostRates.Sum()).Div(hundred)
	minNet := decimal.NewFromFloat(p.MinNetMarginPct).Div(hundred)
	minGrossMargin := decimal.NewFromFloat(p.MinGrossMarginPct).Div(hundred)

	grossDenom := one.Sub(minGrossMargin)
	if grossDenom.Sign() <= 0 {
		return 0, &domain.ConfigurationError{
			Field:  "profitRules.minGrossMarginPct",
			Reason: "must be below 100%",
		}
	}

	// The net-margin floor divides by (1 - feeRate - minNetMargin); a
	// non-positive denominator means no finite price can satisfy the policy.
	netDenom := one.Sub(feeRate).Sub(minNet)
	if netDenom.Sign() <= 0 {
		return 0, &domain.ConfigurationError{
			Field:  "profitRules",
			Reason: "effective fee rate plus minimum net margin must be below 100%",
		}
	}

	byGrossProfit := costBase.Add(decimal.NewFromFloat(p.MinGrossProfitUSD))
	byGrossMargin := costBase.Div(grossDenom)
	byNetMargin := costBase.Div(netDenom)

	target := decimal.Max(byGrossProfit, byGrossMargin, byNetMargin)
	return target.Round(2).InexactFloat64(), nil
}

// EvaluateProfit computes the profit verdict for a sell price. Pass is
// decided on the unrounded values; the reported monetary fields are rounded
// to 2 decimal places.
func EvaluateProfit(sellPrice, sourcePrice, shippingCost float64, rules *domain.RulesConfig) (*Evaluation, error) {
	if sellPrice <= 0 {
		return nil, fmt.Errorf("sell price must be > 0, got %.2f", sellPrice)
	}
	p := rules.ProfitRules

	sell := decimal.NewFromFloat(sellPrice)
	costBase := decimal.NewFromFloat(sourcePrice).Add(decimal.NewFromFloat(shippingCost))
	feeRate := decimal.NewFromFloat(p.EstimatedCostRates.Sum()).Div(hundred)

	grossProfit := sell.Sub(costBase)
	grossMarginPct := grossProfit.Div(sell).Mul(hundred)

	netProfit := sell.Mul(one.Sub(feeRate)).Sub(costBase)
	netMarginPct := netProfit.Div(sell).Mul(hundred)

	pass := grossProfit.GreaterThanOrEqual(decimal.NewFromFloat(p.MinGrossProfitUSD)) &&
		grossMarginPct.GreaterThanOrEqual(decimal.NewFromFloat(p.MinGrossMarginPct)) &&
		netMarginPct.GreaterThanOrEqual(decimal.NewFromFloat(p.MinNetMarginPct))

	return &Evaluation{
		GrossProfit:    grossProfit.Round(2).InexactFloat64(),
		GrossMarginPct: grossMarginPct.Round(2).InexactFloat64(),
		NetProfit:      netProfit.Round(2).InexactFloat64(),
		NetMarginPct:   netMarginPct.Round(2).InexactFloat64(),
		Pass:           pass,
	}, nil
}
