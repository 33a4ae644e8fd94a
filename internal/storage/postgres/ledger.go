package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quantforge/strategy-optimizer/internal/optimizer"
)

// Ledger implements optimizer.Ledger on PostgreSQL. Sessions are upserted on
// every state transition; results are written once per session. Callers
// treat both as best-effort.
type Ledger struct {
	pool *Pool
}

// NewLedger creates a new Ledger over the pool.
func NewLedger(pool *Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Compile-time interface check.
var _ optimizer.Ledger = (*Ledger)(nil)

// Schema is the DDL for the ledger tables, applied by the host at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS optimizer_sessions (
	session_id  TEXT PRIMARY KEY,
	status      TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	timeframe   TEXT NOT NULL,
	strategy    TEXT NOT NULL,
	payload     JSONB NOT NULL,
	error       TEXT,
	created_ms  BIGINT NOT NULL,
	updated_ms  BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS optimizer_results (
	session_id  TEXT PRIMARY KEY REFERENCES optimizer_sessions(session_id),
	payload     JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Init applies the schema.
func (l *Ledger) Init(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply ledger schema: %w", err)
	}
	return nil
}

// PersistSession upserts the session row keyed by session id.
func (l *Ledger) PersistSession(ctx context.Context, session *optimizer.Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	query := `
		INSERT INTO optimizer_sessions (
			session_id, status, symbol, timeframe, strategy, payload, error, created_ms, updated_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (session_id) DO UPDATE SET
			status = EXCLUDED.status,
			payload = EXCLUDED.payload,
			error = EXCLUDED.error,
			updated_ms = EXCLUDED.updated_ms
	`

	_, err = l.pool.Exec(ctx, query,
		session.SessionID,
		string(session.Status),
		session.Symbol,
		session.Timeframe,
		session.Strategy,
		payload,
		session.Error,
		session.CreatedMs,
		session.UpdatedMs,
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// PersistResults writes the final results row for a completed session.
func (l *Ledger) PersistResults(ctx context.Context, sessionID string, results *optimizer.Results) error {
	payload, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}

	query := `
		INSERT INTO optimizer_results (session_id, payload)
		VALUES ($1, $2)
		ON CONFLICT (session_id) DO UPDATE SET payload = EXCLUDED.payload
	`
	if _, err := l.pool.Exec(ctx, query, sessionID, payload); err != nil {
		return fmt.Errorf("insert results: %w", err)
	}
	return nil
}
