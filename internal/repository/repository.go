// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-commerce/kite/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// runStateID keys the single run_state row. The quota window is one row
// whose day column rolls forward; history lives in run_summaries.
const runStateID = 1

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// GetRunState retrieves the persisted quota window. Returns ErrNotFound on
// first run, before any state has been saved.
func (r *SQLRepository) GetRunState(ctx context.Context) (*domain.RunState, error) {
	query := `
		SELECT day, auto_approved_today
		FROM run_state
		WHERE id = ?
	`

	var state domain.RunState
	err := r.db.QueryRowContext(ctx, r.rebind(query), runStateID).Scan(
		&state.Day, &state.AutoApprovedToday,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &state, nil
}

// SaveRunState upserts the quota window row.
func (r *SQLRepository) SaveRunState(ctx context.Context, state *domain.RunState) error {
	if state == nil || state.Day == "" {
		return fmt.Errorf("%w: run state day is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO run_state (id, day, auto_approved_today, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			day = excluded.day,
			auto_approved_today = excluded.auto_approved_today,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		runStateID, state.Day, state.AutoApprovedToday, time.Now().UTC(),
	)
	return err
}

// SaveApprovalQueue stores a manual-review queue snapshot.
func (r *SQLRepository) SaveApprovalQueue(ctx context.Context, queue *domain.ApprovalQueue) error {
	if queue == nil || queue.ID == "" {
		return fmt.Errorf("%w: queue id is required", ErrInvalidInput)
	}

	items, err := json.Marshal(queue.Items)
	if err != nil {
		return fmt.Errorf("failed to encode queue items: %w", err)
	}

	query := `
		INSERT INTO approval_queues (id, created_at, count, items)
		VALUES (?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		queue.ID, queue.CreatedAt, queue.Count, string(items),
	)
	return err
}

// LatestApprovalQueue retrieves the most recent queue snapshot.
func (r *SQLRepository) LatestApprovalQueue(ctx context.Context) (*domain.ApprovalQueue, error) {
	query := `
		SELECT id, created_at, count, items
		FROM approval_queues
		ORDER BY created_at DESC
		LIMIT 1
	`

	var queue domain.ApprovalQueue
	var items string

	err := r.db.QueryRowContext(ctx, query).Scan(
		&queue.ID, &queue.CreatedAt, &queue.Count, &items,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(items), &queue.Items); err != nil {
		return nil, fmt.Errorf("failed to parse queue items: %w", err)
	}

	return &queue, nil
}

// SaveRunSummary stores the record of one orchestrator run.
func (r *SQLRepository) SaveRunSummary(ctx context.Context, summary *domain.RunSummary) error {
	if summary == nil || summary.ID == "" {
		return fmt.Errorf("%w: summary id is required", ErrInvalidInput)
	}

	metrics, err := json.Marshal(summary.Metrics)
	if err != nil {
		return fmt.Errorf("failed to encode run metrics: %w", err)
	}

	query := `
		INSERT INTO run_summaries (id, created_at, mode, metrics, apply_failures)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, r.rebind(query),
		summary.ID, summary.CreatedAt, summary.Mode, string(metrics), summary.ApplyFailures,
	)
	return err
}

// LatestRunSummary retrieves the most recent run summary.
func (r *SQLRepository) LatestRunSummary(ctx context.Context) (*domain.RunSummary, error) {
	query := `
		SELECT id, created_at, mode, metrics, apply_failures
		FROM run_summaries
		ORDER BY created_at DESC
		LIMIT 1
	`

	var summary domain.RunSummary
	var metrics string

	err := r.db.QueryRowContext(ctx, query).Scan(
		&summary.ID, &summary.CreatedAt, &summary.Mode, &metrics, &summary.ApplyFailures,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(metrics), &summary.Metrics); err != nil {
		return nil, fmt.Errorf("failed to parse run metrics: %w", err)
	}

	return &summary, nil
}

// SaveDecisions stores a run's triage decisions in one transaction.
func (r *SQLRepository) SaveDecisions(ctx context.Context, runID string, decisions []domain.Decision) error {
	if runID == "" {
		return fmt.Errorf("%w: runID is required", ErrInvalidInput)
	}
	if len(decisions) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := r.rebind(`
		INSERT INTO decisions (id, run_id, order_id, order_value, risk_score, decision, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)

	now := time.Now().UTC()
	for _, d := range decisions {
		if _, err := tx.ExecContext(ctx, query,
			uuid.New().String(), runID,
			d.OrderID, d.OrderValue, d.RiskScore, string(d.Decision), d.Reason,
			now,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ListDecisions retrieves the most recent decisions, newest first.
func (r *SQLRepository) ListDecisions(ctx context.Context, limit int) ([]*domain.DecisionRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, run_id, order_id, order_value, risk_score, decision, reason, created_at
		FROM decisions
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*domain.DecisionRecord
	for rows.Next() {
		var rec domain.DecisionRecord
		var decision string

		if err := rows.Scan(
			&rec.ID, &rec.RunID,
			&rec.OrderID, &rec.OrderValue, &rec.RiskScore, &decision, &rec.Reason,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}

		rec.Decision.Decision = domain.DecisionType(decision)
		records = append(records, &rec)
	}

	return records, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	// Convert ? to $1, $2, etc.
	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
