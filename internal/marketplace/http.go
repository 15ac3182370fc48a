package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/opensource-commerce/kite/internal/domain"
)

const defaultTimeout = 30 * time.Second

// HTTPClient talks to a marketplace gateway over HTTP JSON.
// Authentication is a static bearer token; OAuth refresh is the gateway's
// concern, not the pipeline's.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTP creates a live marketplace adapter.
func NewHTTP(cfg domain.AdapterConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, &domain.ConfigurationError{Field: "marketplace.baseUrl", Reason: "must be set in live mode"}
	}
	if cfg.Token == "" {
		return nil, &domain.ConfigurationError{Field: "marketplace.token", Reason: "must be set in live mode"}
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

// FetchOpenOrders retrieves open orders awaiting triage.
func (c *HTTPClient) FetchOpenOrders(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	if err := c.do(ctx, http.MethodGet, "/orders/open", nil, &orders); err != nil {
		return nil, &domain.CollaboratorError{Collaborator: "marketplace", Op: "fetch_open_orders", Err: err}
	}

	for i := range orders {
		if err := orders[i].Validate(); err != nil {
			return nil, &domain.CollaboratorError{Collaborator: "marketplace", Op: "fetch_open_orders", Err: err}
		}
	}
	return orders, nil
}

// FetchActiveListings retrieves active listings with source snapshots.
func (c *HTTPClient) FetchActiveListings(ctx context.Context) ([]domain.Listing, error) {
	var listings []domain.Listing
	if err := c.do(ctx, http.MethodGet, "/listings/active", nil, &listings); err != nil {
		return nil, &domain.CollaboratorError{Collaborator: "marketplace", Op: "fetch_active_listings", Err: err}
	}

	for i := range listings {
		if err := listings[i].Validate(); err != nil {
			return nil, &domain.CollaboratorError{Collaborator: "marketplace", Op: "fetch_active_listings", Err: err}
		}
	}
	return listings, nil
}

// UpdateListingPrice pushes a new price for a listing.
func (c *HTTPClient) UpdateListingPrice(ctx context.Context, sku string, price float64) (*domain.Ack, error) {
	body := map[string]any{"price": price}
	var ack domain.Ack
	if err := c.do(ctx, http.MethodPut, "/listings/"+url.PathEscape(sku)+"/price", body, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// SetListingOutOfStock zeroes the listing's available quantity.
func (c *HTTPClient) SetListingOutOfStock(ctx context.Context, sku string) (*domain.Ack, error) {
	var ack domain.Ack
	if err := c.do(ctx, http.MethodPut, "/listings/"+url.PathEscape(sku)+"/out-of-stock", nil, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// PostTracking uploads tracking for a shipped order.
func (c *HTTPClient) PostTracking(ctx context.Context, orderID, trackingNumber, carrier string) (*domain.Ack, error) {
	body := map[string]any{"trackingNumber": trackingNumber, "carrier": carrier}
	var ack domain.Ack
	if err := c.do(ctx, http.MethodPost, "/orders/"+url.PathEscape(orderID)+"/tracking", body, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
}

// SendMessage sends a message to a buyer.
func (c *HTTPClient) SendMessage(ctx context.Context, buyerID, subject, bodyText string) (*domain.Ack, error) {
	body := map[string]any{"buyerId": buyerID, "subject": subject, "body": bodyText}
	var ack domain.Ack
	if err := c.do(ctx, http.MethodPost, "/messages", body, &ack); err != nil {
		return nil, err
	}
	return &ack, nil
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
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, truncate(data, 256))
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
