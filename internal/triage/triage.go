// Package triage scores open orders and decides which may ship unattended.
package triage

import (
	"log/slog"

	"github.com/opensource-commerce/kite/internal/domain"
	"github.com/opensource-commerce/kite/internal/rules"
)

// Result carries the per-order decisions and the updated daily counter. The
// counter comes back to the caller so it can be persisted across runs: the
// daily cap is global, not per-run.
type Result struct {
	Decisions         []domain.Decision
	AutoApprovedToday int
}

// Run triages orders in input order. Evaluation is strictly sequential
// because each auto-approval consumes daily quota that constrains every
// later order. carried is the count of orders already auto-approved today
// by earlier runs.
func Run(orders []domain.Order, cfg *domain.RulesConfig, risk *rules.RiskEngine, carried int) Result {
	maxAutoValue := cfg.AutoApproval.OrderValueUSDMax
	dailyMax := cfg.AutoApproval.AutoApprovedOrdersPerDayMax
	alwaysManualGte := cfg.AutoApproval.AlwaysManualIf.OrderValueUSDGte
	threshold := cfg.RiskScoring.ManualReviewThreshold

	autoApproved := carried
	decisions := make([]domain.Decision, 0, len(orders))

	for _, o := range orders {
		score := riskScore(o, cfg, risk)

		// buyerHistoryBad weighs into the score but does not block on
		// its own.
		blocked := o.AddressMismatch ||
			o.FreightForwarderSuspected ||
			o.HighRiskSignal ||
			o.NewSupplierFirstOrder ||
			score >= threshold

		manualByPolicy := blocked || o.OrderValue >= alwaysManualGte
		dailyCapReached := autoApproved >= dailyMax

		decision := domain.DecisionAutoApprove
		if manualByPolicy || dailyCapReached || o.OrderValue > maxAutoValue {
			decision = domain.DecisionManualReview
		} else {
			autoApproved++
		}

		reason := domain.ReasonWithinBounds
		switch {
		case manualByPolicy:
			reason = domain.ReasonPolicyRisk
		case dailyCapReached:
			reason = domain.ReasonDailyCap
		}

		decisions = append(decisions, domain.Decision{
			OrderID:    o.OrderID,
			OrderValue: o.OrderValue,
			RiskScore:  score,
			Decision:   decision,
			Reason:     reason,
		})
	}

	slog.Debug("triage stage complete",
		"orders", len(orders),
		"auto_approved", autoApproved-carried,
		"carried", carried,
	)

	return Result{Decisions: decisions, AutoApprovedToday: autoApproved}
}

// riskScore sums the fixed signal weights, then any matching custom rules,
// and clamps to the score ceiling.
func riskScore(o domain.Order, cfg *domain.RulesConfig, risk *rules.RiskEngine) int {
	w := cfg.RiskScoring.Weights

	score := 0
	if o.OrderValue >= cfg.AutoApproval.AlwaysManualIf.OrderValueUSDGte {
		score += w.OrderValue
	}
	if o.AddressMismatch {
		score += w.AddressQuality
	}
	if o.FreightForwarderSuspected {
		score += w.RegionRisk
	}
	if o.HighRiskSignal {
		score += w.Velocity
	}
	if o.NewSupplierFirstOrder {
		score += w.ItemRisk
	}
	if o.BuyerHistoryBad {
		score += w.BuyerHistory
	}
	score += risk.Score(o)

	if score > domain.MaxRiskScore {
		return domain.MaxRiskScore
	}
	return score
}
