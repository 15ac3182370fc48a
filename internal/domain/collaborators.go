package domain

import (
	"context"
)

// Supplier is the upstream source collaborator. A fetch failure is fatal
// for the run; the orchestrator does not process a partial batch.
type Supplier interface {
	FetchCatalogCandidates(ctx context.Context) ([]CatalogCandidate, error)
	FetchStockAndPriceBySku(ctx context.Context) (map[string]SourceQuote, error)
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error)
}

// SourceQuote is the supplier's latest stock and price observation for a SKU.
type SourceQuote struct {
	PriceNow  float64 `json:"priceNow"`
	PricePrev float64 `json:"pricePrev"`
	Stock     int     `json:"stock"`
}

// PlaceOrderRequest asks the supplier to fulfil one order line.
type PlaceOrderRequest struct {
	SKU             string `json:"sku"`
	Quantity        int    `json:"quantity"`
	ShippingAddress string `json:"shippingAddress"`
}

// PlaceOrderResult is the supplier's acknowledgement of a placed order.
type PlaceOrderResult struct {
	OrderRef       string `json:"orderRef"`
	TrackingNumber string `json:"trackingNumber,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
}

// Marketplace is the selling-side collaborator. Apply-style calls return a
// per-item ack or error and never abort the batch.
type Marketplace interface {
	FetchOpenOrders(ctx context.Context) ([]Order, error)
	FetchActiveListings(ctx context.Context) ([]Listing, error)
	UpdateListingPrice(ctx context.Context, sku string, price float64) (*Ack, error)
	SetListingOutOfStock(ctx context.Context, sku string) (*Ack, error)
	PostTracking(ctx context.Context, orderID, trackingNumber, carrier string) (*Ack, error)
	SendMessage(ctx context.Context, buyerID, subject, body string) (*Ack, error)
}

// Ack is a marketplace acknowledgement for a single apply call.
type Ack struct {
	OK     bool   `json:"ok"`
	Action string `json:"action"`
	SKU    string `json:"sku,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Notifier delivers an approval-queue snapshot out of band.
// Delivery failures are reported, logged, and never fatal to the run.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, queue *ApprovalQueue) error
}
