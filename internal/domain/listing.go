package domain

import (
	"fmt"
)

// Listing is an active marketplace listing with its latest source snapshot.
// Produced by the marketplace collaborator; the Reprice stage reads it and
// never mutates it directly, mutation happens via adapter calls.
type Listing struct {
	SKU             string  `json:"sku"`
	CurrentPrice    float64 `json:"currentPrice"`
	SourcePriceNow  float64 `json:"sourcePriceNow"`
	SourcePricePrev float64 `json:"sourcePricePrev"`
	ShippingCost    float64 `json:"shippingCost"`
	SourceStock     int     `json:"sourceStock"`
}

// Validate rejects malformed listing records at the collaborator boundary.
func (l *Listing) Validate() error {
	if l.SKU == "" {
		return fmt.Errorf("sku is required")
	}
	if l.CurrentPrice < 0 {
		return fmt.Errorf("sku %s: currentPrice must be >= 0", l.SKU)
	}
	if l.SourcePriceNow < 0 {
		return fmt.Errorf("sku %s: sourcePriceNow must be >= 0", l.SKU)
	}
	if l.SourcePricePrev < 0 {
		return fmt.Errorf("sku %s: sourcePricePrev must be >= 0", l.SKU)
	}
	if l.ShippingCost < 0 {
		return fmt.Errorf("sku %s: shippingCost must be >= 0", l.SKU)
	}
	return nil
}

// RepriceActionType classifies what the apply phase does with a listing.
type RepriceActionType string

const (
	ActionNone          RepriceActionType = "none"
	ActionReprice       RepriceActionType = "reprice"
	ActionRepriceNow    RepriceActionType = "reprice_now"
	ActionSetOutOfStock RepriceActionType = "set_out_of_stock"
)

// Fixed reason strings for actions that carry no price delta.
const (
	ReasonSourceStockZero     = "source_stock_0"
	ReasonSourcePricePrevZero = "source_price_prev_0"
)

// RepriceAction is the per-listing output of the Reprice stage.
// Reason encodes the signed drift percentage (e.g. "delta_-12.3%") so a
// re-evaluation of the same snapshot is idempotent and auditable.
type RepriceAction struct {
	SKU    string            `json:"sku"`
	Action RepriceActionType `json:"action"`
	Reason string            `json:"reason"`
}
