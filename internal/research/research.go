// Package research evaluates catalog candidates against the profit policy
// and routes each to the listing queue or rejection.
package research

import (
	"context"
	"log/slog"
	"sync"

	"github.com/opensource-commerce/kite/internal/domain"
	"github.com/opensource-commerce/kite/internal/pricing"
)

const defaultMaxWorkers = 8

// Stage evaluates candidates concurrently. Candidates are independent, so
// evaluation order does not matter; output order matches input order.
type Stage struct {
	maxWorkers int
}

// Option configures a Stage.
type Option func(*Stage)

// WithMaxWorkers caps concurrent candidate evaluations.
func WithMaxWorkers(n int) Option {
	return func(s *Stage) {
		if n > 0 {
			s.maxWorkers = n
		}
	}
}

// New creates a research stage.
func New(opts ...Option) *Stage {
	s := &Stage{maxWorkers: defaultMaxWorkers}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Evaluate produces one verdict per candidate, in input order. A candidate
// with a target sell price override is judged at the override; the solved
// price is always reported alongside for comparison. Solver errors fail the
// whole stage: they indicate an infeasible policy, not a bad candidate.
func (s *Stage) Evaluate(ctx context.Context, candidates []domain.CatalogCandidate, rules *domain.RulesConfig) ([]domain.ResearchVerdict, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	verdicts := make([]domain.ResearchVerdict, len(candidates))
	errs := make([]error, len(candidates))

	var wg sync.WaitGroup
	sem := make(chan struct{}, s.maxWorkers)

	for i, c := range candidates {
		wg.Add(1)
		go func(idx int, cand domain.CatalogCandidate) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if ctx.Err() != nil {
				errs[idx] = ctx.Err()
				return
			}

			verdict, err := evaluateOne(cand, rules)
			if err != nil {
				errs[idx] = err
				return
			}
			verdicts[idx] = *verdict
		}(i, c)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	accepted := 0
	for _, v := range verdicts {
		if v.Pass {
			accepted++
		}
	}
	slog.Debug("research stage complete",
		"candidates", len(candidates),
		"accepted", accepted,
	)

	return verdicts, nil
}

func evaluateOne(c domain.CatalogCandidate, rules *domain.RulesConfig) (*domain.ResearchVerdict, error) {
	suggested, err := pricing.RequiredSellPrice(c.SourcePrice, c.ShippingCost, rules)
	if err != nil {
		return nil, err
	}

	sellPrice := suggested
	if c.TargetSellPrice != nil {
		sellPrice = *c.TargetSellPrice
	}

	eval, err := pricing.EvaluateProfit(sellPrice, c.SourcePrice, c.ShippingCost, rules)
	if err != nil {
		return nil, err
	}

	next := domain.NextReject
	if eval.Pass {
		next = domain.NextListingQueue
	}

	return &domain.ResearchVerdict{
		SKU:                c.SKU,
		SourcePrice:        c.SourcePrice,
		SellPrice:          sellPrice,
		SuggestedSellPrice: suggested,
		GrossProfit:        eval.GrossProfit,
		GrossMarginPct:     eval.GrossMarginPct,
		NetMarginPct:       eval.NetMarginPct,
		Pass:               eval.Pass,
		Next:               next,
	}, nil
}
