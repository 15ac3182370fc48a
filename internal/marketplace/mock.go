package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opensource-commerce/kite/internal/domain"
)

// Mock serves orders and listings from JSON fixtures and acknowledges every
// apply call without side effects. Used for dry runs and tests.
type Mock struct {
	dataDir string
}

// NewMock creates a fixture-backed marketplace adapter.
func NewMock(dataDir string) *Mock {
	if dataDir == "" {
		dataDir = "./data"
	}
	return &Mock{dataDir: dataDir}
}

// FetchOpenOrders loads the orders fixture. Records are validated at the
// boundary; one malformed record fails the fetch.
func (m *Mock) FetchOpenOrders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	if err := m.loadFixture("orders.sample.json", &orders); err != nil {
		return nil, &domain.CollaboratorError{Collaborator: "marketplace", Op: "fetch_open_orders", Err: err}
	}

	for i := range orders {
		if err := orders[i].Validate(); err != nil {
			return nil, &domain.CollaboratorError{Collaborator: "marketplace", Op: "fetch_open_orders", Err: err}
		}
	}
	return orders, nil
}

// FetchActiveListings loads the listings fixture.
func (m *Mock) FetchActiveListings(ctx context.Context) ([]domain.Listing, error) {
	var listings []domain.Listing
	if err := m.loadFixture("listings.sample.json", &listings); err != nil {
		return nil, &domain.CollaboratorError{Collaborator: "marketplace", Op: "fetch_active_listings", Err: err}
	}

	for i := range listings {
		if err := listings[i].Validate(); err != nil {
			return nil, &domain.CollaboratorError{Collaborator: "marketplace", Op: "fetch_active_listings", Err: err}
		}
	}
	return listings, nil
}

// UpdateListingPrice acknowledges the price change.
func (m *Mock) UpdateListingPrice(ctx context.Context, sku string, price float64) (*domain.Ack, error) {
	if price <= 0 {
		return nil, fmt.Errorf("sku %s: price must be > 0, got %.2f", sku, price)
	}
	return &domain.Ack{OK: true, Action: "update_price", SKU: sku, Detail: fmt.Sprintf("price=%.2f", price)}, nil
}

// SetListingOutOfStock acknowledges the takedown.
func (m *Mock) SetListingOutOfStock(ctx context.Context, sku string) (*domain.Ack, error) {
	return &domain.Ack{OK: true, Action: "set_out_of_stock", SKU: sku}, nil
}

// PostTracking acknowledges the tracking upload.
func (m *Mock) PostTracking(ctx context.Context, orderID, trackingNumber, carrier string) (*domain.Ack, error) {
	return &domain.Ack{OK: true, Action: "post_tracking", Detail: fmt.Sprintf("order=%s tracking=%s carrier=%s", orderID, trackingNumber, carrier)}, nil
}

// SendMessage acknowledges the buyer message.
func (m *Mock) SendMessage(ctx context.Context, buyerID, subject, body string) (*domain.Ack, error) {
	return &domain.Ack{OK: true, Action: "send_message", Detail: fmt.Sprintf("buyer=%s subject=%s", buyerID, subject)}, nil
}

func (m *Mock) loadFixture(name string, out any) error {
	data, err := os.ReadFile(filepath.Join(m.dataDir, name))
	if err != nil {
		return fmt.Errorf("read fixture %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse fixture %s: %w", name, err)
	}
	return nil
}
