package domain

// RulesConfig is the validated policy document consumed by every stage.
// It is loaded once per run and treated as immutable afterwards.
type RulesConfig struct {
	Market              MarketRules           `json:"market"`
	ProfitRules         ProfitRules           `json:"profitRules"`
	InventoryAndPricing InventoryPricingRules `json:"inventoryAndPricing"`
	AutoApproval        AutoApprovalRules     `json:"autoApproval"`
	RiskScoring         RiskScoringRules      `json:"riskScoring"`

	// CustomRiskRules are optional CEL expressions evaluated per order.
	// Each enabled rule that evaluates true adds its weight to the risk score.
	CustomRiskRules []CustomRiskRule `json:"customRiskRules,omitempty"`
}

// MarketRules identifies the marketplace profile the policy applies to.
type MarketRules struct {
	Country  string `json:"country"`
	Currency string `json:"currency"`
}

// ProfitRules holds the minimum profitability constraints.
type ProfitRules struct {
	MinGrossProfitUSD  float64   `json:"minGrossProfitUsd"`
	MinGrossMarginPct  float64   `json:"minGrossMarginPct"`
	MinNetMarginPct    float64   `json:"minNetMarginPct"`
	EstimatedCostRates CostRates `json:"estimatedCostRates"`
}

// CostRates are the named cost rate percentages summed into the effective
// fee rate deducted from the sell price.
type CostRates struct {
	MarketplaceFeePct float64 `json:"marketplaceFeePct"`
	PaymentFeePct     float64 `json:"paymentFeePct"`
	ReturnReservePct  float64 `json:"returnReservePct"`
	FXSlippagePct     float64 `json:"fxSlippagePct"`
	MiscReservePct    float64 `json:"miscReservePct"`
}

// Sum returns the total cost rate in percent.
func (c CostRates) Sum() float64 {
	return c.MarketplaceFeePct + c.PaymentFeePct + c.ReturnReservePct + c.FXSlippagePct + c.MiscReservePct
}

// EffectiveFeeRate returns the summed cost rates as a fraction of the sell price.
func (p ProfitRules) EffectiveFeeRate() float64 {
	return p.EstimatedCostRates.Sum() / 100
}

// InventoryPricingRules holds the reprice drift thresholds.
// Invariant: RepriceOnSourceDeltaPct <= ImmediateRepriceDeltaPct.
type InventoryPricingRules struct {
	PollIntervalMinutes      int     `json:"pollIntervalMinutes"`
	RepriceOnSourceDeltaPct  float64 `json:"repriceOnSourceDeltaPct"`
	ImmediateRepriceDeltaPct float64 `json:"immediateRepriceDeltaPct"`
}

// AutoApprovalRules bound unattended order approval.
type AutoApprovalRules struct {
	OrderValueUSDMax            float64        `json:"orderValueUsdMax"`
	AutoApprovedOrdersPerDayMax int            `json:"autoApprovedOrdersPerDayMax"`
	AlwaysManualIf              AlwaysManualIf `json:"alwaysManualIf"`
}

// AlwaysManualIf holds unconditional manual-review triggers.
type AlwaysManualIf struct {
	OrderValueUSDGte float64 `json:"orderValueUsdGte"`
}

// RiskScoringRules holds per-signal weights and the manual-review threshold.
type RiskScoringRules struct {
	Weights               RiskWeights `json:"weights"`
	ManualReviewThreshold int         `json:"manualReviewThreshold"`
}

// RiskWeights are the score contributions of the fixed risk signals.
type RiskWeights struct {
	OrderValue     int `json:"orderValue"`
	AddressQuality int `json:"addressQuality"`
	RegionRisk     int `json:"regionRisk"`
	Velocity       int `json:"velocity"`
	ItemRisk       int `json:"itemRisk"`
	BuyerHistory   int `json:"buyerHistory"`
}

// CustomRiskRule is a CEL expression over order fields with a score weight.
type CustomRiskRule struct {
	ID         string `json:"id"`
	Expression string `json:"expression"`
	Weight     int    `json:"weight"`
	Enabled    bool   `json:"enabled"`
}

// MaxRiskScore caps the per-order risk score.
const MaxRiskScore = 100

// Validate enforces the cross-field invariants of the policy document.
// Every violation is a ConfigurationError and fails the run before any
// stage executes.
func (r *RulesConfig) Validate() error {
	if r.Market.Country == "" {
		return &ConfigurationError{Field: "market.country", Reason: "must be set"}
	}
	if r.ProfitRules.MinGrossProfitUSD <= 0 {
		return &ConfigurationError{Field: "profitRules.minGrossProfitUsd", Reason: "must be > 0"}
	}
	if r.ProfitRules.MinGrossMarginPct < 0 || r.ProfitRules.MinGrossMarginPct >= 100 {
		return &ConfigurationError{Field: "profitRules.minGrossMarginPct", Reason: "must be in [0, 100)"}
	}
	if r.ProfitRules.MinNetMarginPct < 0 {
		return &ConfigurationError{Field: "profitRules.minNetMarginPct", Reason: "must be >= 0"}
	}
	rates := r.ProfitRules.EstimatedCostRates
	for field, v := range map[string]float64{
		"marketplaceFeePct": rates.MarketplaceFeePct,
		"paymentFeePct":     rates.PaymentFeePct,
		"returnReservePct":  rates.ReturnReservePct,
		"fxSlippagePct":     rates.FXSlippagePct,
		"miscReservePct":    rates.MiscReservePct,
	} {
		if v < 0 {
			return &ConfigurationError{Field: "profitRules.estimatedCostRates." + field, Reason: "must be >= 0"}
		}
	}
	// The net-margin price floor divides by (1 - feeRate - minNetMargin).
	if r.ProfitRules.EffectiveFeeRate()+r.ProfitRules.MinNetMarginPct/100 >= 1 {
		return &ConfigurationError{
			Field:  "profitRules",
			Reason: "effective fee rate plus minimum net margin must be below 100%",
		}
	}
	ip := r.InventoryAndPricing
	if ip.RepriceOnSourceDeltaPct <= 0 {
		return &ConfigurationError{Field: "inventoryAndPricing.repriceOnSourceDeltaPct", Reason: "must be > 0"}
	}
	if ip.ImmediateRepriceDeltaPct <= 0 {
		return &ConfigurationError{Field: "inventoryAndPricing.immediateRepriceDeltaPct", Reason: "must be > 0"}
	}
	if ip.RepriceOnSourceDeltaPct > ip.ImmediateRepriceDeltaPct {
		return &ConfigurationError{
			Field:  "inventoryAndPricing",
			Reason: "repriceOnSourceDeltaPct must be <= immediateRepriceDeltaPct",
		}
	}
	aa := r.AutoApproval
	if aa.OrderValueUSDMax <= 0 {
		return &ConfigurationError{Field: "autoApproval.orderValueUsdMax", Reason: "must be > 0"}
	}
	if aa.AutoApprovedOrdersPerDayMax < 0 {
		return &ConfigurationError{Field: "autoApproval.autoApprovedOrdersPerDayMax", Reason: "must be >= 0"}
	}
	if aa.AlwaysManualIf.OrderValueUSDGte <= 0 {
		return &ConfigurationError{Field: "autoApproval.alwaysManualIf.orderValueUsdGte", Reason: "must be > 0"}
	}
	rs := r.RiskScoring
	for field, w := range map[string]int{
		"orderValue":     rs.Weights.OrderValue,
		"addressQuality": rs.Weights.AddressQuality,
		"regionRisk":     rs.Weights.RegionRisk,
		"velocity":       rs.Weights.Velocity,
		"itemRisk":       rs.Weights.ItemRisk,
		"buyerHistory":   rs.Weights.BuyerHistory,
	} {
		if w < 0 {
			return &ConfigurationError{Field: "riskScoring.weights." + field, Reason: "must be >= 0"}
		}
	}
	if rs.ManualReviewThreshold <= 0 || rs.ManualReviewThreshold > MaxRiskScore {
		return &ConfigurationError{Field: "riskScoring.manualReviewThreshold", Reason: "must be in (0, 100]"}
	}
	for _, cr := range r.CustomRiskRules {
		if cr.ID == "" {
			return &ConfigurationError{Field: "customRiskRules", Reason: "rule id must be set"}
		}
		if cr.Expression == "" {
			return &ConfigurationError{Field: "customRiskRules." + cr.ID, Reason: "expression must be set"}
		}
		if cr.Weight < 0 {
			return &ConfigurationError{Field: "customRiskRules." + cr.ID, Reason: "weight must be >= 0"}
		}
	}
	return nil
}
