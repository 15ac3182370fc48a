package rules

// rulesSchema describes the shape of the policy document. Cross-field
// invariants (threshold ordering, fee/margin feasibility) are enforced in
// RulesConfig.Validate, not here.
const rulesSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["market", "profitRules", "inventoryAndPricing", "autoApproval", "riskScoring"],
  "properties": {
    "market": {
      "type": "object",
      "required": ["country"],
      "properties": {
        "country": {"type": "string", "minLength": 2},
        "currency": {"type": "string"}
      }
    },
    "profitRules": {
      "type": "object",
      "required": ["minGrossProfitUsd", "minGrossMarginPct", "minNetMarginPct", "estimatedCostRates"],
      "properties": {
        "minGrossProfitUsd": {"type": "number"},
        "minGrossMarginPct": {"type": "number"},
        "minNetMarginPct": {"type": "number"},
        "estimatedCostRates": {
          "type": "object",
          "properties": {
            "marketplaceFeePct": {"type": "number"},
            "paymentFeePct": {"type": "number"},
            "returnReservePct": {"type": "number"},
            "fxSlippagePct": {"type": "number"},
            "miscReservePct": {"type": "number"}
          }
        }
      }
    },
    "inventoryAndPricing": {
      "type": "object",
      "required": ["repriceOnSourceDeltaPct", "immediateRepriceDeltaPct"],
      "properties": {
        "pollIntervalMinutes": {"type": "integer"},
        "repriceOnSourceDeltaPct": {"type": "number"},
        "immediateRepriceDeltaPct": {"type": "number"}
      }
    },
    "autoApproval": {
      "type": "object",
      "required": ["orderValueUsdMax", "autoApprovedOrdersPerDayMax", "alwaysManualIf"],
      "properties": {
        "orderValueUsdMax": {"type": "number"},
        "autoApprovedOrdersPerDayMax": {"type": "integer"},
        "alwaysManualIf": {
          "type": "object",
          "required": ["orderValueUsdGte"],
          "properties": {
            "orderValueUsdGte": {"type": "number"}
          }
        }
      }
    },
    "riskScoring": {
      "type": "object",
      "required": ["weights", "manualReviewThreshold"],
      "properties": {
        "weights": {
          "type": "object",
          "properties": {
            "orderValue": {"type": "integer"},
            "addressQuality": {"type": "integer"},
            "regionRisk": {"type": "integer"},
            "velocity": {"type": "integer"},
            "itemRisk": {"type": "integer"},
            "buyerHistory": {"type": "integer"}
          }
        },
        "manualReviewThreshold": {"type": "integer"}
      }
    },
    "customRiskRules": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "expression", "weight"],
        "properties": {
          "id": {"type": "string", "minLength": 1},
          "expression": {"type": "string", "minLength": 1},
          "weight": {"type": "integer"},
          "enabled": {"type": "boolean"}
        }
      }
    }
  }
}`
