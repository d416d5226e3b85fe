// Package audit persists the append-only compliance trail: one entry per
// automated or human action on a case, plus the chase log used to compute
// when a client was last followed up.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Event types recorded against a case.
const (
	EventCaseCreated      = "CASE_CREATED"
	EventCaseUpdated      = "CASE_UPDATED"
	EventStageChanged     = "STAGE_CHANGED"
	EventAnalysisComplete = "ANALYSIS_COMPLETED"
	EventAnalysisFailed   = "ANALYSIS_FAILED"
	EventReportScheduled  = "REPORT_SCHEDULED"
	EventReportDelivered  = "REPORT_DELIVERED"
	EventChaseSent        = "CHASE_SENT"
	EventDecisionRecorded = "DECISION_RECORDED"
	EventCasePaused       = "CASE_PAUSED"
	EventCaseResumed      = "CASE_RESUMED"
)

// Entry is one immutable audit record.
type Entry struct {
	ID        int64
	CaseID    string
	Type      string
	Actor     *string
	Payload   []byte
	CreatedAt time.Time
}

// ChaseEntry is one immutable record of an automated follow-up message.
type ChaseEntry struct {
	ID        int64
	CaseID    string
	Attempt   int
	Final     bool
	SentTo    string
	CreatedAt time.Time
}

// Repository provides append-only writes inside a caller transaction and
// read access for presentation.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append inserts an audit entry inside the caller's transaction so the
// entry commits atomically with the case mutation it describes.
func (r *Repository) Append(ctx context.Context, tx pgx.Tx, caseID, eventType string, actor *string, payload map[string]any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("audit: marshal payload: %w", err)
	}

	var actorVal any
	if actor != nil && *actor != "" {
		actorVal = *actor
	}

	const q = `
INSERT INTO audit_log (case_id, type, payload, actor)
VALUES ($1, $2, $3::jsonb, $4)
`
	if _, err := tx.Exec(ctx, q, caseID, eventType, body, actorVal); err != nil {
		return fmt.Errorf("audit: insert entry: %w", err)
	}
	return nil
}

// AppendChase records a sent follow-up inside the caller's transaction.
func (r *Repository) AppendChase(ctx context.Context, tx pgx.Tx, entry ChaseEntry) error {
	const q = `
INSERT INTO chase_log (case_id, attempt, final, sent_to)
VALUES ($1, $2, $3, $4)
`
	if _, err := tx.Exec(ctx, q, entry.CaseID, entry.Attempt, entry.Final, entry.SentTo); err != nil {
		return fmt.Errorf("audit: insert chase entry: %w", err)
	}
	return nil
}

// ListForCase returns the newest audit entries for a case.
func (r *Repository) ListForCase(ctx context.Context, caseID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	const q = `
SELECT id, case_id, type, actor, payload, created_at
FROM audit_log
WHERE case_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`
	rows, err := r.pool.Query(ctx, q, caseID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list for case: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.CaseID, &e.Type, &e.Actor, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit: scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("audit: iterate entries: %w", err)
	}
	return entries, nil
}

// LastChaseAt returns the time of the most recent chase for a case, or nil
// when the client has never been chased.
func (r *Repository) LastChaseAt(ctx context.Context, caseID string) (*time.Time, error) {
	const q = `SELECT MAX(created_at) FROM chase_log WHERE case_id = $1`

	var last *time.Time
	if err := r.pool.QueryRow(ctx, q, caseID).Scan(&last); err != nil {
		return nil, fmt.Errorf("audit: last chase at: %w", err)
	}
	return last, nil
}
