package domain

import (
	"time"
)

// DayFormat is the calendar-date layout used for the daily quota window.
const DayFormat = "2006-01-02"

// RunState is the only entity persisted across runs. The auto-approval
// counter resets whenever the persisted day differs from the run's date;
// within a run it is only ever incremented.
type RunState struct {
	Day               string `json:"day"`
	AutoApprovedToday int    `json:"autoApprovedToday"`
}

// ApprovalQueue is the manual-review subset of a run's decisions.
// It is written to durable storage and forwarded to notifiers; items are
// never auto-executed.
type ApprovalQueue struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"createdAt"`
	Count     int        `json:"count"`
	Items     []Decision `json:"items"`
}

// RunMetrics summarizes what a run produced.
type RunMetrics struct {
	ResearchAccepted int `json:"researchAccepted"`
	RepriceActions   int `json:"repriceActions"`
	AutoApproved     int `json:"autoApproved"`
	ManualReview     int `json:"manualReview"`
}

// RunSummary is the persisted record of one orchestrator run.
type RunSummary struct {
	ID            string     `json:"id"`
	CreatedAt     time.Time  `json:"createdAt"`
	Mode          string     `json:"mode"`
	Metrics       RunMetrics `json:"metrics"`
	ApplyFailures int        `json:"applyFailures"`
}

// ApplyResult records the outcome of one adapter call in the apply phase.
// Failures are collected per item; they never abort the batch.
type ApplyResult struct {
	SKU      string            `json:"sku"`
	Action   RepriceActionType `json:"action"`
	NewPrice float64           `json:"newPrice,omitempty"`
	OK       bool              `json:"ok"`
	Error    string            `json:"error,omitempty"`
}

// DecisionRecord is a persisted triage decision with its run context.
type DecisionRecord struct {
	ID        string    `json:"id"`
	RunID     string    `json:"runId"`
	CreatedAt time.Time `json:"createdAt"`
	Decision
}
