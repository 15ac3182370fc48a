package domain

import (
	"fmt"
)

// Order is an open marketplace order awaiting triage.
// Produced by the marketplace collaborator.
type Order struct {
	OrderID    string  `json:"orderId"`
	BuyerID    string  `json:"buyerId,omitempty"`
	OrderValue float64 `json:"orderValue"`

	// Risk signals.
	AddressMismatch           bool `json:"addressMismatch"`
	FreightForwarderSuspected bool `json:"freightForwarderSuspected"`
	HighRiskSignal            bool `json:"highRiskSignal"`
	NewSupplierFirstOrder     bool `json:"newSupplierFirstOrder"`
	BuyerHistoryBad           bool `json:"buyerHistoryBad"`
}

// Validate rejects malformed order records at the collaborator boundary.
func (o *Order) Validate() error {
	if o.OrderID == "" {
		return fmt.Errorf("orderId is required")
	}
	if o.OrderValue < 0 {
		return fmt.Errorf("order %s: orderValue must be >= 0", o.OrderID)
	}
	return nil
}

// DecisionType is the triage outcome for an order.
type DecisionType string

const (
	DecisionAutoApprove  DecisionType = "auto_approve"
	DecisionManualReview DecisionType = "manual_review"
)

// Triage reason strings. Precedence: policy/risk before the daily cap.
const (
	ReasonPolicyRisk   = "policy/risk trigger"
	ReasonDailyCap     = "daily auto-approve cap reached"
	ReasonWithinBounds = "within auto-approval bounds"
)

// Decision is the per-order output of the triage stage.
type Decision struct {
	OrderID    string       `json:"orderId"`
	OrderValue float64      `json:"orderValue"`
	RiskScore  int          `json:"riskScore"`
	Decision   DecisionType `json:"decision"`
	Reason     string       `json:"reason"`
}
