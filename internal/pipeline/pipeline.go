// Package pipeline runs the full decision pipeline: research, reprice,
// triage, apply, persist, notify.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-commerce/kite/internal/domain"
	"github.com/opensource-commerce/kite/internal/pricing"
	"github.com/opensource-commerce/kite/internal/reprice"
	"github.com/opensource-commerce/kite/internal/repository"
	"github.com/opensource-commerce/kite/internal/research"
	"github.com/opensource-commerce/kite/internal/rules"
	"github.com/opensource-commerce/kite/internal/triage"
)

var tracer = otel.Tracer("kite-pipeline")

// Runner orchestrates one pipeline run. Collaborators are interfaces chosen
// at construction; the runner never asks which implementation it holds.
type Runner struct {
	supplier    domain.Supplier
	marketplace domain.Marketplace
	repo        domain.Repository
	bus         domain.EventBus
	notifiers   []domain.Notifier
	research    *research.Stage
	mode        string

	// now is swapped in tests to pin the quota day.
	now func() time.Time
}

// Deps are the collaborators a Runner needs.
type Deps struct {
	Supplier    domain.Supplier
	Marketplace domain.Marketplace
	Repository  domain.Repository
	Bus         domain.EventBus
	Notifiers   []domain.Notifier
	Mode        domain.AdapterMode
}

// New creates a pipeline runner.
func New(deps Deps) *Runner {
	return &Runner{
		supplier:    deps.Supplier,
		marketplace: deps.Marketplace,
		repo:        deps.Repository,
		bus:         deps.Bus,
		notifiers:   deps.Notifiers,
		research:    research.New(),
		mode:        string(deps.Mode),
		now:         time.Now,
	}
}

// Result carries everything one run produced.
type Result struct {
	RunID          string                   `json:"runId"`
	Research       []domain.ResearchVerdict `json:"research"`
	RepriceActions []domain.RepriceAction   `json:"repriceActions"`
	Decisions      []domain.Decision        `json:"decisions"`
	ApplyResults   []domain.ApplyResult     `json:"applyResults"`
	Queue          *domain.ApprovalQueue    `json:"queue"`
	Summary        *domain.RunSummary       `json:"summary"`
}

// Run executes one pipeline pass. Fetch and persistence failures are fatal;
// per-item apply failures and notifier failures are recorded and logged but
// never abort the run.
func (r *Runner) Run(ctx context.Context, cfg *domain.RulesConfig, risk *rules.RiskEngine) (*Result, error) {
	runID := uuid.New().String()
	today := r.now().UTC().Format(domain.DayFormat)

	ctx, span := tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("run.mode", r.mode),
		),
	)
	defer span.End()

	slog.Info("pipeline run started", "run_id", runID, "mode", r.mode, "day", today)
	r.publish(ctx, domain.TopicRunStarted, map[string]any{"runId": runID, "mode": r.mode})

	// Fetch. Any collaborator failure is fatal: the pipeline never
	// processes a partial batch.
	candidates, listings, orders, err := r.fetch(ctx)
	if err != nil {
		return nil, err
	}

	// Load the cross-run quota window. The counter carries over only when
	// the persisted day matches today.
	carried, err := r.loadCarriedQuota(ctx, today)
	if err != nil {
		return nil, err
	}

	verdicts, err := r.runResearch(ctx, candidates, cfg)
	if err != nil {
		return nil, err
	}

	actions := r.runReprice(ctx, listings, cfg)
	triageRes := r.runTriage(ctx, orders, cfg, risk, carried)
	applyResults := r.apply(ctx, actions, listings, cfg)

	queue := buildApprovalQueue(r.now().UTC(), triageRes.Decisions)
	if err := r.repo.SaveApprovalQueue(ctx, queue); err != nil {
		return nil, fmt.Errorf("persist approval queue: %w", err)
	}
	r.publish(ctx, domain.TopicApprovalQueue, queue)

	r.notify(ctx, queue)

	// Persist the final counter under today's date so the next run carries
	// the quota forward.
	if err := r.repo.SaveRunState(ctx, &domain.RunState{
		Day:               today,
		AutoApprovedToday: triageRes.AutoApprovedToday,
	}); err != nil {
		return nil, fmt.Errorf("persist run state: %w", err)
	}

	if err := r.repo.SaveDecisions(ctx, runID, triageRes.Decisions); err != nil {
		return nil, fmt.Errorf("persist decisions: %w", err)
	}

	summary := r.buildSummary(runID, verdicts, actions, triageRes.Decisions, queue, applyResults)
	if err := r.repo.SaveRunSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("persist run summary: %w", err)
	}

	r.publish(ctx, domain.TopicRunCompleted, summary)

	slog.Info("pipeline run completed",
		"run_id", runID,
		"research_accepted", summary.Metrics.ResearchAccepted,
		"reprice_actions", summary.Metrics.RepriceActions,
		"auto_approved", summary.Metrics.AutoApproved,
		"manual_review", summary.Metrics.ManualReview,
		"apply_failures", summary.ApplyFailures,
	)

	return &Result{
		RunID:          runID,
		Research:       verdicts,
		RepriceActions: actions,
		Decisions:      triageRes.Decisions,
		ApplyResults:   applyResults,
		Queue:          queue,
		Summary:        summary,
	}, nil
}

func (r *Runner) fetch(ctx context.Context) ([]domain.CatalogCandidate, []domain.Listing, []domain.Order, error) {
	ctx, span := tracer.Start(ctx, "pipeline.fetch")
	defer span.End()

	candidates, err := r.supplier.FetchCatalogCandidates(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	listings, err := r.marketplace.FetchActiveListings(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	orders, err := r.marketplace.FetchOpenOrders(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	slog.Debug("fetch complete",
		"candidates", len(candidates),
		"listings", len(listings),
		"orders", len(orders),
	)
	return candidates, listings, orders, nil
}

func (r *Runner) loadCarriedQuota(ctx context.Context, today string) (int, error) {
	state, err := r.repo.GetRunState(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load run state: %w", err)
	}
	if state.Day != today {
		return 0, nil
	}
	return state.AutoApprovedToday, nil
}

func (r *Runner) runResearch(ctx context.Context, candidates []domain.CatalogCandidate, cfg *domain.RulesConfig) ([]domain.ResearchVerdict, error) {
	ctx, span := tracer.Start(ctx, "pipeline.research")
	defer span.End()
	return r.research.Evaluate(ctx, candidates, cfg)
}

func (r *Runner) runReprice(ctx context.Context, listings []domain.Listing, cfg *domain.RulesConfig) []domain.RepriceAction {
	_, span := tracer.Start(ctx, "pipeline.reprice")
	defer span.End()
	return reprice.ClassifyAll(listings, cfg)
}

func (r *Runner) runTriage(ctx context.Context, orders []domain.Order, cfg *domain.RulesConfig, risk *rules.RiskEngine, carried int) triage.Result {
	_, span := tracer.Start(ctx, "pipeline.triage",
		trace.WithAttributes(attribute.Int("quota.carried", carried)),
	)
	defer span.End()
	return triage.Run(orders, cfg, risk, carried)
}

// apply executes reprice actions against the marketplace. Prices are
// recomputed at apply time from the listing's latest source snapshot, not
// taken from the classification, so a price is never staler than this run.
func (r *Runner) apply(ctx context.Context, actions []domain.RepriceAction, listings []domain.Listing, cfg *domain.RulesConfig) []domain.ApplyResult {
	ctx, span := tracer.Start(ctx, "pipeline.apply")
	defer span.End()

	bySKU := make(map[string]domain.Listing, len(listings))
	for _, l := range listings {
		bySKU[l.SKU] = l
	}

	var results []domain.ApplyResult
	for _, action := range actions {
		switch action.Action {
		case domain.ActionSetOutOfStock:
			results = append(results, r.applyOne(ctx, action, 0, func() (*domain.Ack, error) {
				return r.marketplace.SetListingOutOfStock(ctx, action.SKU)
			}))

		case domain.ActionReprice, domain.ActionRepriceNow:
			listing := bySKU[action.SKU]
			sourcePrice := listing.SourcePriceNow
			if sourcePrice <= 0 {
				sourcePrice = listing.CurrentPrice
			}

			newPrice, err := pricing.RequiredSellPrice(sourcePrice, listing.ShippingCost, cfg)
			if err != nil {
				results = append(results, r.recordApplyFailure(action, 0, err))
				continue
			}

			results = append(results, r.applyOne(ctx, action, newPrice, func() (*domain.Ack, error) {
				return r.marketplace.UpdateListingPrice(ctx, action.SKU, newPrice)
			}))
		}
	}

	if len(results) > 0 {
		r.publish(ctx, domain.TopicRepriceApplied, results)
	}
	return results
}

func (r *Runner) applyOne(ctx context.Context, action domain.RepriceAction, newPrice float64, call func() (*domain.Ack, error)) domain.ApplyResult {
	ack, err := call()
	if err != nil {
		return r.recordApplyFailure(action, newPrice, err)
	}

	result := domain.ApplyResult{
		SKU:      action.SKU,
		Action:   action.Action,
		NewPrice: newPrice,
		OK:       ack.OK,
	}
	if !ack.OK {
		result.Error = ack.Detail
	}
	return result
}

func (r *Runner) recordApplyFailure(action domain.RepriceAction, newPrice float64, err error) domain.ApplyResult {
	applyErr := &domain.ApplyError{SKU: action.SKU, Action: action.Action, Err: err}
	slog.Error("apply action failed",
		"sku", action.SKU,
		"action", string(action.Action),
		"error", applyErr,
	)
	return domain.ApplyResult{
		SKU:      action.SKU,
		Action:   action.Action,
		NewPrice: newPrice,
		OK:       false,
		Error:    applyErr.Error(),
	}
}

func buildApprovalQueue(createdAt time.Time, decisions []domain.Decision) *domain.ApprovalQueue {
	var items []domain.Decision
	for _, d := range decisions {
		if d.Decision == domain.DecisionManualReview {
			items = append(items, d)
		}
	}
	return &domain.ApprovalQueue{
		ID:        uuid.New().String(),
		CreatedAt: createdAt,
		Count:     len(items),
		Items:     items,
	}
}

func (r *Runner) notify(ctx context.Context, queue *domain.ApprovalQueue) {
	ctx, span := tracer.Start(ctx, "pipeline.notify")
	defer span.End()

	for _, n := range r.notifiers {
		if err := n.Notify(ctx, queue); err != nil {
			slog.Warn("notification failed",
				"notifier", n.Name(),
				"queue_id", queue.ID,
				"error", err,
			)
		}
	}
}

func (r *Runner) buildSummary(runID string, verdicts []domain.ResearchVerdict, actions []domain.RepriceAction, decisions []domain.Decision, queue *domain.ApprovalQueue, applyResults []domain.ApplyResult) *domain.RunSummary {
	metrics := domain.RunMetrics{ManualReview: queue.Count}
	for _, v := range verdicts {
		if v.Pass {
			metrics.ResearchAccepted++
		}
	}
	for _, a := range actions {
		if a.Action != domain.ActionNone {
			metrics.RepriceActions++
		}
	}
	for _, d := range decisions {
		if d.Decision == domain.DecisionAutoApprove {
			metrics.AutoApproved++
		}
	}

	applyFailures := 0
	for _, ar := range applyResults {
		if !ar.OK {
			applyFailures++
		}
	}

	return &domain.RunSummary{
		ID:            runID,
		CreatedAt:     r.now().UTC(),
		Mode:          r.mode,
		Metrics:       metrics,
		ApplyFailures: applyFailures,
	}
}

// publish is best effort: a bus failure is logged, never fatal.
func (r *Runner) publish(ctx context.Context, topic string, payload any) {
	if r.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Warn("failed to encode event payload", "topic", topic, "error", err)
		return
	}
	if err := r.bus.Publish(ctx, topic, data); err != nil {
		slog.Warn("failed to publish event", "topic", topic, "error", err)
	}
}
