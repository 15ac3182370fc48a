package rules

import (
	"fmt"
	"log/slog"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-commerce/kite/internal/domain"
)

// RiskEngine evaluates the policy's custom CEL risk rules against orders.
// Expressions are compiled once at policy load; each enabled rule that
// evaluates true contributes its weight to the order's risk score.
type RiskEngine struct {
	env      *cel.Env
	compiled []*compiledRiskRule
}

type compiledRiskRule struct {
	cfg     domain.CustomRiskRule
	program cel.Program
}

// NewRiskEngine compiles the enabled custom risk rules. A rule that fails
// to compile is a ConfigurationError: the policy is rejected before any
// stage runs.
func NewRiskEngine(rules []domain.CustomRiskRule) (*RiskEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("order_id", cel.StringType),
		cel.Variable("buyer_id", cel.StringType),
		cel.Variable("order_value", cel.DoubleType),
		cel.Variable("address_mismatch", cel.BoolType),
		cel.Variable("freight_forwarder_suspected", cel.BoolType),
		cel.Variable("high_risk_signal", cel.BoolType),
		cel.Variable("new_supplier_first_order", cel.BoolType),
		cel.Variable("buyer_history_bad", cel.BoolType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	e := &RiskEngine{env: env}
	for _, cfg := range rules {
		if !cfg.Enabled {
			continue
		}

		ast, issues := env.Compile(cfg.Expression)
		if issues != nil && issues.Err() != nil {
			return nil, &domain.ConfigurationError{
				Field:  "customRiskRules." + cfg.ID,
				Reason: fmt.Sprintf("compile: %v", issues.Err()),
			}
		}
		if ast.OutputType() != cel.BoolType {
			return nil, &domain.ConfigurationError{
				Field:  "customRiskRules." + cfg.ID,
				Reason: fmt.Sprintf("expression must return bool, got %s", ast.OutputType()),
			}
		}

		program, err := env.Program(ast)
		if err != nil {
			return nil, &domain.ConfigurationError{
				Field:  "customRiskRules." + cfg.ID,
				Reason: fmt.Sprintf("program: %v", err),
			}
		}

		e.compiled = append(e.compiled, &compiledRiskRule{cfg: cfg, program: program})
	}

	return e, nil
}

// RuleCount returns the number of compiled rules.
func (e *RiskEngine) RuleCount() int {
	if e == nil {
		return 0
	}
	return len(e.compiled)
}

// Score returns the summed weight of the custom rules matching the order.
// An evaluation error skips that rule; the fixed signals still apply.
func (e *RiskEngine) Score(o domain.Order) int {
	if e == nil || len(e.compiled) == 0 {
		return 0
	}

	activation := map[string]any{
		"order_id":                    o.OrderID,
		"buyer_id":                    o.BuyerID,
		"order_value":                 o.OrderValue,
		"address_mismatch":            o.AddressMismatch,
		"freight_forwarder_suspected": o.FreightForwarderSuspected,
		"high_risk_signal":            o.HighRiskSignal,
		"new_supplier_first_order":    o.NewSupplierFirstOrder,
		"buyer_history_bad":           o.BuyerHistoryBad,
	}

	score := 0
	for _, rule := range e.compiled {
		out, _, err := rule.program.Eval(activation)
		if err != nil {
			slog.Warn("custom risk rule evaluation failed",
				"rule_id", rule.cfg.ID,
				"order_id", o.OrderID,
				"error", err,
			)
			continue
		}
		if matched, ok := out.(types.Bool); ok && bool(matched) {
			score += rule.cfg.Weight
		}
	}
	return score
}
