// Package domain defines the core interfaces and types for Kite.
package domain

import (
	"context"
	"time"
)

// Repository defines the interface for run-state and run-output persistence.
type Repository interface {
	// Run state (the cross-run daily quota).
	GetRunState(ctx context.Context) (*RunState, error)
	SaveRunState(ctx context.Context, state *RunState) error

	// Approval queue snapshots.
	SaveApprovalQueue(ctx context.Context, queue *ApprovalQueue) error
	LatestApprovalQueue(ctx context.Context) (*ApprovalQueue, error)

	// Run summaries.
	SaveRunSummary(ctx context.Context, summary *RunSummary) error
	LatestRunSummary(ctx context.Context) (*RunSummary, error)

	// Per-run decision audit trail.
	SaveDecisions(ctx context.Context, runID string, decisions []Decision) error
	ListDecisions(ctx context.Context, limit int) ([]*DecisionRecord, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
