package supplier

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/opensource-commerce/kite/internal/domain"
)

// Mock serves catalog candidates and quotes from JSON fixtures and
// fabricates order placements. Used for dry runs and tests.
type Mock struct {
	dataDir string
	now     func() time.Time
}

// NewMock creates a fixture-backed supplier adapter.
func NewMock(dataDir string) *Mock {
	if dataDir == "" {
		dataDir = "./data"
	}
	return &Mock{dataDir: dataDir, now: time.Now}
}

// FetchCatalogCandidates loads the products fixture. Records are validated
// at the boundary; one malformed record fails the fetch.
func (m *Mock) FetchCatalogCandidates(ctx context.Context) ([]domain.CatalogCandidate, error) {
	var candidates []domain.CatalogCandidate
	if err := m.loadFixture("products.sample.json", &candidates); err != nil {
		return nil, &domain.CollaboratorError{Collaborator: "supplier", Op: "fetch_catalog_candidates", Err: err}
	}

	for i := range candidates {
		if err := candidates[i].Validate(); err != nil {
			return nil, &domain.CollaboratorError{Collaborator: "supplier", Op: "fetch_catalog_candidates", Err: err}
		}
	}
	return candidates, nil
}

// FetchStockAndPriceBySku loads the quotes fixture keyed by SKU.
func (m *Mock) FetchStockAndPriceBySku(ctx context.Context) (map[string]domain.SourceQuote, error) {
	var quotes map[string]domain.SourceQuote
	if err := m.loadFixture("quotes.sample.json", &quotes); err != nil {
		return nil, &domain.CollaboratorError{Collaborator: "supplier", Op: "fetch_stock_and_price", Err: err}
	}
	return quotes, nil
}

// PlaceOrder fabricates a supplier order reference and tracking number.
func (m *Mock) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (*domain.PlaceOrderResult, error) {
	if req.SKU == "" {
		return nil, fmt.Errorf("sku is required")
	}
	if req.Quantity <= 0 {
		return nil, fmt.Errorf("sku %s: quantity must be > 0", req.SKU)
	}

	return &domain.PlaceOrderResult{
		OrderRef:       fmt.Sprintf("SUP-%d", m.now().Unix()),
		TrackingNumber: fmt.Sprintf("MOCKTRK%08d", rand.Intn(100000000)),
		Carrier:        "UPS",
	}, nil
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
