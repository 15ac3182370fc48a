// Package reprice classifies source price drift on active listings into
// apply actions.
package reprice

import (
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/opensource-commerce/kite/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Classify maps one listing snapshot to an action. The decision tree, in
// priority order:
//
//  1. source stock depleted: take the listing down, price drift is moot
//  2. no previous source price: drift is incomputable, escalate immediately
//  3. drift at or beyond the immediate threshold: reprice_now
//  4. drift at or beyond the standard threshold: reprice
//  5. otherwise: none
//
// Thresholds compare against the rounded drift so the recorded reason and
// the classification can never disagree.
func Classify(l domain.Listing, rules *domain.RulesConfig) domain.RepriceAction {
	if l.SourceStock <= 0 {
		return domain.RepriceAction{
			SKU:    l.SKU,
			Action: domain.ActionSetOutOfStock,
			Reason: domain.ReasonSourceStockZero,
		}
	}

	if l.SourcePricePrev <= 0 {
		return domain.RepriceAction{
			SKU:    l.SKU,
			Action: domain.ActionRepriceNow,
			Reason: domain.ReasonSourcePricePrevZero,
		}
	}

	prev := decimal.NewFromFloat(l.SourcePricePrev)
	now := decimal.NewFromFloat(l.SourcePriceNow)
	delta := now.Sub(prev).Div(prev).Mul(hundred).Round(2)
	reason := "delta_" + formatDelta(delta) + "%"

	magnitude := delta.Abs()
	ip := rules.InventoryAndPricing

	action := domain.ActionNone
	switch {
	case magnitude.GreaterThanOrEqual(decimal.NewFromFloat(ip.ImmediateRepriceDeltaPct)):
		action = domain.ActionRepriceNow
	case magnitude.GreaterThanOrEqual(decimal.NewFromFloat(ip.RepriceOnSourceDeltaPct)):
		action = domain.ActionReprice
	}

	return domain.RepriceAction{SKU: l.SKU, Action: action, Reason: reason}
}

// ClassifyAll classifies every listing, in input order.
func ClassifyAll(listings []domain.Listing, rules *domain.RulesConfig) []domain.RepriceAction {
	if len(listings) == 0 {
		return nil
	}

	actions := make([]domain.RepriceAction, len(listings))
	actionable := 0
	for i, l := range listings {
		actions[i] = Classify(l, rules)
		if actions[i].Action != domain.ActionNone {
			actionable++
		}
	}

	slog.Debug("reprice stage complete",
		"listings", len(listings),
		"actionable", actionable,
	)
	return actions
}

// formatDelta renders the rounded drift without trailing zeros, so
// -12.30 reads as "-12.3" and 5.00 as "5".
func formatDelta(d decimal.Decimal) string {
	return strconv.FormatFloat(d.InexactFloat64(), 'f', -1, 64)
}
