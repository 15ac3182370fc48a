package supplier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/opensource-commerce/kite/internal/domain"
)

const defaultTimeout = 30 * time.Second

// HTTPClient talks to a supplier API over HTTP JSON with a static bearer
// token.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTP creates a live supplier adapter.
func NewHTTP(cfg domain.AdapterConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, &domain.ConfigurationError{Field: "supplier.baseUrl", Reason: "must be set in live mode"}
	}
	if cfg.Token == "" {
		return nil, &domain.ConfigurationError{Field: "supplier.token", Reason: "must be set in live mode"}
	}

	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	return &HTTPClient{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// FetchCatalogCandidates retrieves sourced products under consideration.
func (c *HTTPClient) FetchCatalogCandidates(ctx context.Context) ([]domain.CatalogCandidate, error) {
	var candidates []domain.CatalogCandidate
	if err := c.do(ctx, http.MethodGet, "/catalog/candidates", nil, &candidates); err != nil {
		return nil, &domain.CollaboratorError{Collaborator: "supplier", Op: "fetch_catalog_candidates", Err: err}
	}

	for i := range candidates {
		if err := candidates[i].Validate(); err != nil {
			return nil, &domain.CollaboratorError{Collaborator: "supplier", Op: "fetch_catalog_candidates", Err: err}
		}
	}
	return candidates, nil
}

// FetchStockAndPriceBySku retrieves the latest quote per SKU.
func (c *HTTPClient) FetchStockAndPriceBySku(ctx context.Context) (map[string]domain.SourceQuote, error) {
	var quotes map[string]domain.SourceQuote
	if err := c.do(ctx, http.MethodGet, "/quotes", nil, &quotes); err != nil {
		return nil, &domain.CollaboratorError{Collaborator: "supplier", Op: "fetch_stock_and_price", Err: err}
	}
	return quotes, nil
}

// PlaceOrder submits one order line for fulfilment.
func (c *HTTPClient) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (*domain.PlaceOrderResult, error) {
	var result domain.PlaceOrderResult
	if err := c.do(ctx, http.MethodPost, "/orders", req, &result); err != nil {
		return nil, &domain.CollaboratorError{Collaborator: "supplier", Op: "place_order", Err: err}
	}
	return &result, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d", method, path, resp.StatusCode)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
