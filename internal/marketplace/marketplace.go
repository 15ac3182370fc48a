// Package marketplace provides selling-side adapter implementations.
//
// Two adapters exist: a mock backed by JSON fixtures for dry runs and
// backtests, and an HTTP JSON client for a live marketplace gateway. The
// orchestrator only sees domain.Marketplace; which one runs is decided at
// startup.
package marketplace

import (
	"fmt"

	"github.com/opensource-commerce/kite/internal/domain"
)

// New creates a marketplace adapter for the given mode.
func New(mode domain.AdapterMode, dataDir string, cfg domain.AdapterConfig) (domain.Marketplace, error) {
	switch mode {
	case domain.ModeMock:
		return NewMock(dataDir), nil

	case domain.ModeLive:
		return NewHTTP(cfg)

	default:
		return nil, fmt.Errorf("unsupported marketplace mode: %s", mode)
	}
}
