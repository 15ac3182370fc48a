package domain

import (
	"fmt"
)

// CatalogCandidate is a sourced product under consideration for listing.
// Produced by the supplier collaborator; consumed read-only by Research.
type CatalogCandidate struct {
	SKU          string  `json:"sku"`
	SourcePrice  float64 `json:"sourcePrice"`
	ShippingCost float64 `json:"shippingCost"`

	// TargetSellPrice overrides the solver's suggestion when set.
	TargetSellPrice *float64 `json:"targetSellPrice,omitempty"`
}

// Validate rejects malformed candidate records at the collaborator boundary.
func (c *CatalogCandidate) Validate() error {
	if c.SKU == "" {
		return fmt.Errorf("sku is required")
	}
	if c.SourcePrice <= 0 {
		return fmt.Errorf("sku %s: sourcePrice must be > 0", c.SKU)
	}
	if c.ShippingCost < 0 {
		return fmt.Errorf("sku %s: shippingCost must be >= 0", c.SKU)
	}
	if c.TargetSellPrice != nil && *c.TargetSellPrice <= 0 {
		return fmt.Errorf("sku %s: targetSellPrice override must be > 0", c.SKU)
	}
	return nil
}

// Research verdict routing.
const (
	NextListingQueue = "listing_queue"
	NextReject       = "reject"
)

// ResearchVerdict is the per-candidate output of the Research stage.
type ResearchVerdict struct {
	SKU                string  `json:"sku"`
	SourcePrice        float64 `json:"sourcePrice"`
	SellPrice          float64 `json:"sellPrice"`
	SuggestedSellPrice float64 `json:"suggestedSellPrice"`
	GrossProfit        float64 `json:"grossProfit"`
	GrossMarginPct     float64 `json:"grossMarginPct"`
	NetMarginPct       float64 `json:"netMarginPct"`
	Pass               bool    `json:"pass"`
	Next               string  `json:"next"`
}
