// Package rules loads and validates the policy document and compiles the
// optional CEL custom risk rules.
package rules

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/opensource-commerce/kite/internal/domain"
)

// Load reads the policy document, checks its shape against the embedded
// schema, and enforces the cross-field invariants. Any failure is fatal:
// no stage may run with an invalid policy.
func Load(path string) (*domain.RulesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ConfigurationError{Field: "rules", Reason: fmt.Sprintf("read %s: %v", path, err)}
	}
	return Parse(data)
}

// Parse validates and decodes a policy document.
func Parse(data []byte) (*domain.RulesConfig, error) {
	if err := validateShape(data); err != nil {
		return nil, &domain.ConfigurationError{Field: "rules", Reason: err.Error()}
	}

	var cfg domain.RulesConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &domain.ConfigurationError{Field: "rules", Reason: fmt.Sprintf("parse: %v", err)}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func validateShape(data []byte) error {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("rules.schema.json", bytes.NewReader([]byte(rulesSchema))); err != nil {
			schemaErr = err
			return
		}
		schema, schemaErr = c.Compile("rules.schema.json")
	})
	if schemaErr != nil {
		return fmt.Errorf("compile schema: %w", schemaErr)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}

// Holder is a concurrency-safe handle on the active policy, so the API's
// reload endpoint can swap it between runs.
type Holder struct {
	mu   sync.RWMutex
	cfg  *domain.RulesConfig
	risk *RiskEngine
}

// NewHolder wraps an already-validated policy and its compiled risk rules.
func NewHolder(cfg *domain.RulesConfig, risk *RiskEngine) *Holder {
	return &Holder{cfg: cfg, risk: risk}
}

// Get returns the active policy and risk engine.
func (h *Holder) Get() (*domain.RulesConfig, *RiskEngine) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg, h.risk
}

// Set swaps in a new policy and risk engine.
func (h *Holder) Set(cfg *domain.RulesConfig, risk *RiskEngine) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cfg = cfg
	h.risk = risk
}
