package domain

import (
	"fmt"
)

// ConfigurationError reports an invalid or internally-inconsistent policy or
// runtime configuration. It is fatal: a run must not start with one pending.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "invalid configuration: " + e.Reason
	}
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// CollaboratorError reports a failed upstream fetch from a supplier or
// marketplace collaborator. Fatal for the run: no batch without input data.
type CollaboratorError struct {
	Collaborator string // "supplier" or "marketplace"
	Op           string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Collaborator, e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// ApplyError reports a single failed adapter call during the apply phase.
// Recovered locally: recorded per item, the run continues.
type ApplyError struct {
	SKU    string
	Action RepriceActionType
	Err    error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply %s for %s: %v", e.Action, e.SKU, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// NotifyError reports a failed notification delivery. Fully recovered:
// logged, never blocks persistence of run state.
type NotifyError struct {
	Notifier string
	Err      error
}

func (e *NotifyError) Error() string {
	return fmt.Sprintf("notify via %s: %v", e.Notifier, e.Err)
}

func (e *NotifyError) Unwrap() error { return e.Err }
