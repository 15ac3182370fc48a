package repository

// Schema definitions for the Kite database.
// Compatible with both SQLite and PostgreSQL.

// run_state is a single-row table. The quota counter resets by rolling the
// day column forward, not by inserting rows.
const schemaRunState = `
CREATE TABLE IF NOT EXISTS run_state (
    id INTEGER PRIMARY KEY,
    day TEXT NOT NULL,
    auto_approved_today INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMP NOT NULL
);
`

const schemaApprovalQueues = `
CREATE TABLE IF NOT EXISTS approval_queues (
    id TEXT PRIMARY KEY,
    created_at TIMESTAMP NOT NULL,
    count INTEGER NOT NULL,
    items TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_approval_queues_created ON approval_queues(created_at);
`

const schemaRunSummaries = `
CREATE TABLE IF NOT EXISTS run_summaries (
    id TEXT PRIMARY KEY,
    created_at TIMESTAMP NOT NULL,
    mode TEXT NOT NULL,
    metrics TEXT NOT NULL,
    apply_failures INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_run_summaries_created ON run_summaries(created_at);
`

const schemaDecisions = `
CREATE TABLE IF NOT EXISTS decisions (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    order_id TEXT NOT NULL,
    order_value REAL NOT NULL,
    risk_score INTEGER NOT NULL,
    decision TEXT NOT NULL,
    reason TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_run ON decisions(run_id);
CREATE INDEX IF NOT EXISTS idx_decisions_created ON decisions(created_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaRunState,
		schemaApprovalQueues,
		schemaRunSummaries,
		schemaDecisions,
	}
}
