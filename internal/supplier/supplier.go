// Package supplier provides upstream source adapter implementations.
package supplier

import (
	"fmt"

	"github.com/opensource-commerce/kite/internal/domain"
)

// New creates a supplier adapter for the given mode.
func New(mode domain.AdapterMode, dataDir string, cfg domain.AdapterConfig) (domain.Supplier, error) {
	switch mode {
	case domain.ModeMock:
		return NewMock(dataDir), nil

	case domain.ModeLive:
		return NewHTTP(cfg)

	default:
		return nil, fmt.Errorf("unsupported supplier mode: %s", mode)
	}
}
