package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/opensource-commerce/kite/internal/domain"
	"github.com/opensource-commerce/kite/internal/repository"
)

type fakeSupplier struct {
	candidates []domain.CatalogCandidate
	err        error
}

func (f *fakeSupplier) FetchCatalogCandidates(ctx context.Context) ([]domain.CatalogCandidate, error) {
	return f.candidates, f.err
}

func (f *fakeSupplier) FetchStockAndPriceBySku(ctx context.Context) (map[string]domain.SourceQuote, error) {
	return nil, nil
}

func (f *fakeSupplier) PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (*domain.PlaceOrderResult, error) {
	return &domain.PlaceOrderResult{OrderRef: "SUP-1"}, nil
}

type priceUpdate struct {
	sku   string
	price float64
}

type fakeMarketplace struct {
	listings []domain.Listing
	orders   []domain.Order

	priceUpdates []priceUpdate
	takedowns    []string

	failSKU string
}

func (f *fakeMarketplace) FetchOpenOrders(ctx context.Context) ([]domain.Order, error) {
	return f.orders, nil
}

func (f *fakeMarketplace) FetchActiveListings(ctx context.Context) ([]domain.Listing, error) {
	return f.listings, nil
}

func (f *fakeMarketplace) UpdateListingPrice(ctx context.Context, sku string, price float64) (*domain.Ack, error) {
	if sku == f.failSKU {
		return nil, fmt.Errorf("gateway timeout")
	}
	f.priceUpdates = append(f.priceUpdates, priceUpdate{sku: sku, price: price})
	return &domain.Ack{OK: true, Action: "update_price", SKU: sku}, nil
}

func (f *fakeMarketplace) SetListingOutOfStock(ctx context.Context, sku string) (*domain.Ack, error) {
	if sku == f.failSKU {
		return nil, fmt.Errorf("gateway timeout")
	}
	f.takedowns = append(f.takedowns, sku)
	return &domain.Ack{OK: true, Action: "set_out_of_stock", SKU: sku}, nil
}

func (f *fakeMarketplace) PostTracking(ctx context.Context, orderID, trackingNumber, carrier string) (*domain.Ack, error) {
	return &domain.Ack{OK: true, Action: "post_tracking"}, nil
}

func (f *fakeMarketplace) SendMessage(ctx context.Context, buyerID, subject, body string) (*domain.Ack, error) {
	return &domain.Ack{OK: true, Action: "send_message"}, nil
}

type fakeRepo struct {
	state     *domain.RunState
	queues    []*domain.ApprovalQueue
	summaries []*domain.RunSummary
	decisions map[string][]domain.Decision
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{decisions: make(map[string][]domain.Decision)}
}

func (f *fakeRepo) GetRunState(ctx context.Context) (*domain.RunState, error) {
	if f.state == nil {
		return nil, repository.ErrNotFound
	}
	return f.state, nil
}

func (f *fakeRepo) SaveRunState(ctx context.Context, state *domain.RunState) error {
	f.state = state
	return nil
}

func (f *fakeRepo) SaveApprovalQueue(ctx context.Context, queue *domain.ApprovalQueue) error {
	f.queues = append(f.queues, queue)
	return nil
}

func (f *fakeRepo) LatestApprovalQueue(ctx context.Context) (*domain.ApprovalQueue, error) {
	if len(f.queues) == 0 {
		return nil, repository.ErrNotFound
	}
	return f.queues[len(f.queues)-1], nil
}

func (f *fakeRepo) SaveRunSummary(ctx context.Context, summary *domain.RunSummary) error {
	f.summaries = append(f.summaries, summary)
	return nil
}

func (f *fakeRepo) LatestRunSummary(ctx context.Context) (*domain.RunSummary, error) {
	if len(f.summaries) == 0 {
		return nil, repository.ErrNotFound
	}
	return f.summaries[len(f.summaries)-1], nil
}

func (f *fakeRepo) SaveDecisions(ctx context.Context, runID string, decisions []domain.Decision) error {
	f.decisions[runID] = decisions
	return nil
}

func (f *fakeRepo) ListDecisions(ctx context.Context, limit int) ([]*domain.DecisionRecord, error) {
	return nil, nil
}

func (f *fakeRepo) Ping(ctx context.Context) error { return nil }
func (f *fakeRepo) Close() error                   { return nil }

type fakeNotifier struct {
	name   string
	queues []*domain.ApprovalQueue
	err    error
}

func (f *fakeNotifier) Name() string { return f.name }

func (f *fakeNotifier) Notify(ctx context.Context, queue *domain.ApprovalQueue) error {
	if f.err != nil {
		return f.err
	}
	f.queues = append(f.queues, queue)
	return nil
}

func testRules() *domain.RulesConfig {
	return &domain.RulesConfig{
		Market: domain.MarketRules{Country: "US", Currency: "USD"},
		ProfitRules: domain.ProfitRules{
			MinGrossProfitUSD: 5,
			MinGrossMarginPct: 20,
			MinNetMarginPct:   10,
			EstimatedCostRates: domain.CostRates{
				MarketplaceFeePct: 12,
				PaymentFeePct:     3,
			},
		},
		InventoryAndPricing: domain.InventoryPricingRules{
			RepriceOnSourceDeltaPct:  3,
			ImmediateRepriceDeltaPct: 8,
		},
		AutoApproval: domain.AutoApprovalRules{
			OrderValueUSDMax:            150,
			AutoApprovedOrdersPerDayMax: 25,
			AlwaysManualIf:              domain.AlwaysManualIf{OrderValueUSDGte: 400},
		},
		RiskScoring: domain.RiskScoringRules{
			Weights: domain.RiskWeights{
				OrderValue:     30,
				AddressQuality: 25,
				RegionRisk:     20,
				Velocity:       15,
				ItemRisk:       10,
				BuyerHistory:   20,
			},
			ManualReviewThreshold: 50,
		},
	}
}

func fixedDay(day string) func() time.Time {
	t, _ := time.Parse(domain.DayFormat, day)
	return func() time.Time { return t.Add(12 * time.Hour) }
}

func newTestRunner(supplier *fakeSupplier, market *fakeMarketplace, repo *fakeRepo, notifiers ...domain.Notifier) *Runner {
	r := New(Deps{
		Supplier:    supplier,
		Marketplace: market,
		Repository:  repo,
		Notifiers:   notifiers,
		Mode:        domain.ModeMock,
	})
	r.now = fixedDay("2025-11-03")
	return r
}

func TestRunFullPipeline(t *testing.T) {
	supplier := &fakeSupplier{candidates: []domain.CatalogCandidate{
		{SKU: "NEW-1", SourcePrice: 10, ShippingCost: 2},
	}}
	market := &fakeMarketplace{
		listings: []domain.Listing{
			{SKU: "L-1", CurrentPrice: 20, SourcePriceNow: 9, SourcePricePrev: 10, ShippingCost: 2, SourceStock: 5},
			{SKU: "L-2", CurrentPrice: 30, SourcePriceNow: 15, SourcePricePrev: 15, ShippingCost: 1, SourceStock: 0},
			{SKU: "L-3", CurrentPrice: 25, SourcePriceNow: 12, SourcePricePrev: 12, ShippingCost: 1, SourceStock: 8},
		},
		orders: []domain.Order{
			{OrderID: "o-1", OrderValue: 50},
			{OrderID: "o-2", OrderValue: 500},
		},
	}
	repo := newFakeRepo()
	notifier := &fakeNotifier{name: "test"}

	result, err := newTestRunner(supplier, market, repo, notifier).Run(context.Background(), testRules(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Research: the single candidate at its solved price passes.
	if result.Summary.Metrics.ResearchAccepted != 1 {
		t.Errorf("expected 1 research accept, got %d", result.Summary.Metrics.ResearchAccepted)
	}

	// Reprice: L-1 drifts -10% (reprice_now), L-2 is out of stock, L-3 is quiet.
	if result.Summary.Metrics.RepriceActions != 2 {
		t.Errorf("expected 2 reprice actions, got %d", result.Summary.Metrics.RepriceActions)
	}
	if len(market.takedowns) != 1 || market.takedowns[0] != "L-2" {
		t.Errorf("expected takedown for L-2, got %v", market.takedowns)
	}
	if len(market.priceUpdates) != 1 || market.priceUpdates[0].sku != "L-1" {
		t.Fatalf("expected price update for L-1, got %v", market.priceUpdates)
	}

	// Applied price is recomputed from the latest source snapshot:
	// cost base 9+2=11 and the $5 gross-profit floor binds at 16.00.
	if market.priceUpdates[0].price != 16 {
		t.Errorf("expected recomputed price 16.00, got %.2f", market.priceUpdates[0].price)
	}

	// Triage: o-1 approves, o-2 is a policy trigger.
	if result.Summary.Metrics.AutoApproved != 1 || result.Summary.Metrics.ManualReview != 1 {
		t.Errorf("unexpected triage metrics: %+v", result.Summary.Metrics)
	}

	// Queue holds only manual items and reached notifier and repository.
	if result.Queue.Count != 1 || result.Queue.Items[0].OrderID != "o-2" {
		t.Errorf("unexpected queue: %+v", result.Queue)
	}
	if len(notifier.queues) != 1 {
		t.Errorf("expected 1 notification, got %d", len(notifier.queues))
	}
	if len(repo.queues) != 1 || len(repo.summaries) != 1 {
		t.Errorf("expected persisted queue and summary")
	}

	// Run state carries the final counter under today's date.
	if repo.state.Day != "2025-11-03" || repo.state.AutoApprovedToday != 1 {
		t.Errorf("unexpected run state: %+v", repo.state)
	}

	// Decisions are persisted for the run.
	if len(repo.decisions[result.RunID]) != 2 {
		t.Errorf("expected 2 persisted decisions for run %s", result.RunID)
	}

	if result.Summary.Mode != "mock" || result.Summary.ApplyFailures != 0 {
		t.Errorf("unexpected summary: %+v", result.Summary)
	}
}

func TestRunCarriesQuotaSameDay(t *testing.T) {
	cfg := testRules()
	cfg.AutoApproval.AutoApprovedOrdersPerDayMax = 3

	repo := newFakeRepo()
	repo.state = &domain.RunState{Day: "2025-11-03", AutoApprovedToday: 2}

	market := &fakeMarketplace{orders: []domain.Order{
		{OrderID: "o-1", OrderValue: 10},
		{OrderID: "o-2", OrderValue: 10},
	}}

	result, err := newTestRunner(&fakeSupplier{}, market, repo).Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// One slot remained: o-1 takes it, o-2 hits the cap.
	if result.Decisions[0].Decision != domain.DecisionAutoApprove {
		t.Errorf("expected o-1 approved, got %+v", result.Decisions[0])
	}
	if result.Decisions[1].Reason != domain.ReasonDailyCap {
		t.Errorf("expected cap on o-2, got %+v", result.Decisions[1])
	}
	if repo.state.AutoApprovedToday != 3 {
		t.Errorf("expected final counter 3, got %d", repo.state.AutoApprovedToday)
	}
}

func TestRunResetsQuotaOnNewDay(t *testing.T) {
	cfg := testRules()
	cfg.AutoApproval.AutoApprovedOrdersPerDayMax = 3

	repo := newFakeRepo()
	repo.state = &domain.RunState{Day: "2025-11-02", AutoApprovedToday: 3}

	market := &fakeMarketplace{orders: []domain.Order{{OrderID: "o-1", OrderValue: 10}}}

	result, err := newTestRunner(&fakeSupplier{}, market, repo).Run(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Decisions[0].Decision != domain.DecisionAutoApprove {
		t.Error("stale counter must not block a new day")
	}
	if repo.state.Day != "2025-11-03" || repo.state.AutoApprovedToday != 1 {
		t.Errorf("unexpected run state: %+v", repo.state)
	}
}

func TestRunApplyFailureIsNotFatal(t *testing.T) {
	market := &fakeMarketplace{
		listings: []domain.Listing{
			{SKU: "L-1", CurrentPrice: 20, SourcePriceNow: 9, SourcePricePrev: 10, ShippingCost: 2, SourceStock: 5},
			{SKU: "L-2", CurrentPrice: 30, SourcePriceNow: 15, SourcePricePrev: 15, ShippingCost: 1, SourceStock: 0},
		},
		failSKU: "L-1",
	}
	repo := newFakeRepo()

	result, err := newTestRunner(&fakeSupplier{}, market, repo).Run(context.Background(), testRules(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Summary.ApplyFailures != 1 {
		t.Errorf("expected 1 apply failure, got %d", result.Summary.ApplyFailures)
	}

	var failed *domain.ApplyResult
	for i := range result.ApplyResults {
		if !result.ApplyResults[i].OK {
			failed = &result.ApplyResults[i]
		}
	}
	if failed == nil || failed.SKU != "L-1" || failed.Error == "" {
		t.Errorf("expected recorded failure for L-1: %+v", result.ApplyResults)
	}

	// The rest of the batch still applied and the run persisted.
	if len(market.takedowns) != 1 {
		t.Errorf("expected L-2 takedown despite L-1 failure")
	}
	if len(repo.summaries) != 1 {
		t.Error("expected summary persisted despite apply failure")
	}
}

func TestRunNotifierFailureIsNotFatal(t *testing.T) {
	repo := newFakeRepo()
	market := &fakeMarketplace{orders: []domain.Order{{OrderID: "o-1", OrderValue: 500}}}
	broken := &fakeNotifier{name: "broken", err: errors.New("webhook down")}
	working := &fakeNotifier{name: "working"}

	_, err := newTestRunner(&fakeSupplier{}, market, repo, broken, working).Run(context.Background(), testRules(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if len(working.queues) != 1 {
		t.Error("expected remaining notifier to still fire")
	}
	if repo.state == nil {
		t.Error("expected run state persisted despite notifier failure")
	}
}

func TestRunFetchFailureIsFatal(t *testing.T) {
	supplier := &fakeSupplier{err: &domain.CollaboratorError{
		Collaborator: "supplier",
		Op:           "fetch_catalog_candidates",
		Err:          errors.New("connection refused"),
	}}
	repo := newFakeRepo()

	_, err := newTestRunner(supplier, &fakeMarketplace{}, repo).Run(context.Background(), testRules(), nil)
	if err == nil {
		t.Fatal("expected fatal error on fetch failure")
	}
	var collabErr *domain.CollaboratorError
	if !errors.As(err, &collabErr) {
		t.Errorf("expected CollaboratorError, got %T: %v", err, err)
	}
	if repo.state != nil || len(repo.summaries) != 0 {
		t.Error("nothing may persist after a failed fetch")
	}
}

func TestRunEmptyBatch(t *testing.T) {
	repo := newFakeRepo()
	result, err := newTestRunner(&fakeSupplier{}, &fakeMarketplace{}, repo).Run(context.Background(), testRules(), nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if result.Queue.Count != 0 {
		t.Errorf("expected empty queue, got %d", result.Queue.Count)
	}
	if result.Summary.Metrics != (domain.RunMetrics{}) {
		t.Errorf("expected zero metrics, got %+v", result.Summary.Metrics)
	}
	if repo.state == nil || repo.state.AutoApprovedToday != 0 {
		t.Error("run state must still persist for an empty batch")
	}
}
