package casefile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"caseflow/deadline"
)

var (
	// ErrNotFound is returned when no case row exists for the identifier.
	ErrNotFound = errors.New("casefile: not found")
)

// Repository defines the transactional writes the case service performs.
// Every method runs inside the caller's transaction so stage changes, audit
// entries and derived-field updates commit atomically.
type Repository interface {
	Insert(ctx context.Context, tx pgx.Tx, c Case) (Case, error)
	GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Case, error)
	UpdateAttributes(ctx context.Context, tx pgx.Tx, c Case) error
	UpdateStage(ctx context.Context, tx pgx.Tx, id string, stage Stage, at time.Time) error
	UpdateDerived(ctx context.Context, tx pgx.Tx, id string, d *Derived, status AnalysisStatus, at time.Time) error
	UpdateSchedule(ctx context.Context, tx pgx.Tx, id string, sendAt *time.Time) error
	MarkDelivered(ctx context.Context, tx pgx.Tx, id string, at time.Time) error
	RecordChase(ctx context.Context, tx pgx.Tx, id string, attempt int, at time.Time) error
	UpdateDecision(ctx context.Context, tx pgx.Tx, id string, decision ClientDecision) error
	SetPaused(ctx context.Context, tx pgx.Tx, id string, paused bool) error
}

// PGRepository is the pgx implementation of Repository plus the pool-backed
// reads used by the sweeps and the presentation layer.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const caseColumns = `
	id, reference, external_ref,
	client_name, client_email, client_age,
	property_value, loan_amount, ltv,
	annual_income, income_type, category, purpose,
	time_sensitivity, term_years, deadline,
	stage, stage_entered_at, paused, analysis_status,
	scheduled_send_at, delivered_at, chase_count, last_chase_at,
	client_decision,
	triage_score, triage_rating, triage_factors, triaged_at,
	matched_lenders, rejected_lenders, matched_at,
	urgency, days_remaining, urgency_at,
	created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (Case, error) {
	var c Case
	err := row.Scan(
		&c.ID, &c.Reference, &c.ExternalRef,
		&c.ClientName, &c.ClientEmail, &c.ClientAge,
		&c.PropertyValue, &c.LoanAmount, &c.LTV,
		&c.AnnualIncome, &c.IncomeType, &c.Category, &c.Purpose,
		&c.TimeSensitivity, &c.TermYears, &c.Deadline,
		&c.Stage, &c.StageEnteredAt, &c.Paused, &c.AnalysisStatus,
		&c.ScheduledSendAt, &c.DeliveredAt, &c.ChaseCount, &c.LastChaseAt,
		&c.ClientDecision,
		&c.TriageScore, &c.TriageRating, &c.TriageFactors, &c.TriagedAt,
		&c.Matched, &c.Rejected, &c.MatchedAt,
		&c.Urgency, &c.DaysRemaining, &c.UrgencyAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (r *PGRepository) Insert(ctx context.Context, tx pgx.Tx, c Case) (Case, error) {
	const q = `
INSERT INTO cases (
	id, reference, external_ref,
	client_name, client_email, client_age,
	property_value, loan_amount, ltv,
	annual_income, income_type, category, purpose,
	time_sensitivity, term_years, deadline,
	stage, stage_entered_at, paused, analysis_status, chase_count, client_decision
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)
RETURNING ` + caseColumns

	row := tx.QueryRow(ctx, q,
		c.ID, c.Reference, c.ExternalRef,
		c.ClientName, c.ClientEmail, c.ClientAge,
		c.PropertyValue, c.LoanAmount, c.LTV,
		c.AnnualIncome, c.IncomeType, c.Category, c.Purpose,
		c.TimeSensitivity, c.TermYears, c.Deadline,
		c.Stage, c.StageEnteredAt, c.Paused, c.AnalysisStatus, c.ChaseCount, c.ClientDecision,
	)
	created, err := scanCase(row)
	if err != nil {
		return Case{}, fmt.Errorf("casefile: insert: %w", err)
	}
	return created, nil
}

func (r *PGRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, id string) (Case, error) {
	row := tx.QueryRow(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = $1 FOR UPDATE`, id)
	c, err := scanCase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Case{}, ErrNotFound
		}
		return Case{}, fmt.Errorf("casefile: get for update: %w", err)
	}
	return c, nil
}

func (r *PGRepository) UpdateAttributes(ctx context.Context, tx pgx.Tx, c Case) error {
	const q = `
UPDATE cases SET
	external_ref = $2,
	client_name = $3,
	client_email = $4,
	client_age = $5,
	property_value = $6,
	loan_amount = $7,
	ltv = $8,
	annual_income = $9,
	income_type = $10,
	category = $11,
	purpose = $12,
	time_sensitivity = $13,
	term_years = $14,
	deadline = $15,
	updated_at = now()
WHERE id = $1
`
	tag, err := tx.Exec(ctx, q,
		c.ID, c.ExternalRef,
		c.ClientName, c.ClientEmail, c.ClientAge,
		c.PropertyValue, c.LoanAmount, c.LTV,
		c.AnnualIncome, c.IncomeType, c.Category, c.Purpose,
		c.TimeSensitivity, c.TermYears, c.Deadline,
	)
	if err != nil {
		return fmt.Errorf("casefile: update attributes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) UpdateStage(ctx context.Context, tx pgx.Tx, id string, stage Stage, at time.Time) error {
	const q = `
UPDATE cases SET stage = $2, stage_entered_at = $3, updated_at = now()
WHERE id = $1
`
	tag, err := tx.Exec(ctx, q, id, stage, at)
	if err != nil {
		return fmt.Errorf("casefile: update stage: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateDerived caches a full analysis outcome, or clears the cache when d
// is nil so a stale rating is never displayed against fresh inputs.
func (r *PGRepository) UpdateDerived(ctx context.Context, tx pgx.Tx, id string, d *Derived, status AnalysisStatus, at time.Time) error {
	if d == nil {
		const clear = `
UPDATE cases SET
	analysis_status = $2,
	triage_score = NULL, triage_rating = NULL, triage_factors = NULL, triaged_at = NULL,
	matched_lenders = NULL, rejected_lenders = NULL, matched_at = NULL,
	urgency = NULL, days_remaining = NULL, urgency_at = NULL,
	updated_at = now()
WHERE id = $1
`
		if _, err := tx.Exec(ctx, clear, id, status); err != nil {
			return fmt.Errorf("casefile: clear derived: %w", err)
		}
		return nil
	}

	const q = `
UPDATE cases SET
	analysis_status = $2,
	triage_score = $3, triage_rating = $4, triage_factors = $5, triaged_at = $6,
	matched_lenders = $7, rejected_lenders = $8, matched_at = $6,
	urgency = $9, days_remaining = $10, urgency_at = $6,
	updated_at = now()
WHERE id = $1
`
	tag, err := tx.Exec(ctx, q, id, status,
		d.TriageScore, d.TriageRating, d.TriageFactors, at,
		d.Matched, d.Rejected,
		d.Urgency, d.DaysRemaining,
	)
	if err != nil {
		return fmt.Errorf("casefile: update derived: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) UpdateSchedule(ctx context.Context, tx pgx.Tx, id string, sendAt *time.Time) error {
	tag, err := tx.Exec(ctx, `UPDATE cases SET scheduled_send_at = $2, updated_at = now() WHERE id = $1`, id, sendAt)
	if err != nil {
		return fmt.Errorf("casefile: update schedule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkDelivered stamps the delivery time and resets the chase counters.
func (r *PGRepository) MarkDelivered(ctx context.Context, tx pgx.Tx, id string, at time.Time) error {
	const q = `
UPDATE cases SET
	delivered_at = $2,
	scheduled_send_at = NULL,
	chase_count = 0,
	last_chase_at = NULL,
	updated_at = now()
WHERE id = $1
`
	tag, err := tx.Exec(ctx, q, id, at)
	if err != nil {
		return fmt.Errorf("casefile: mark delivered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) RecordChase(ctx context.Context, tx pgx.Tx, id string, attempt int, at time.Time) error {
	const q = `
UPDATE cases SET chase_count = $2, last_chase_at = $3, updated_at = now()
WHERE id = $1
`
	tag, err := tx.Exec(ctx, q, id, attempt, at)
	if err != nil {
		return fmt.Errorf("casefile: record chase: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) UpdateDecision(ctx context.Context, tx pgx.Tx, id string, decision ClientDecision) error {
	tag, err := tx.Exec(ctx, `UPDATE cases SET client_decision = $2, updated_at = now() WHERE id = $1`, id, decision)
	if err != nil {
		return fmt.Errorf("casefile: update decision: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) SetPaused(ctx context.Context, tx pgx.Tx, id string, paused bool) error {
	tag, err := tx.Exec(ctx, `UPDATE cases SET paused = $2, updated_at = now() WHERE id = $1`, id, paused)
	if err != nil {
		return fmt.Errorf("casefile: set paused: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Get fetches a case by id.
func (r *PGRepository) Get(ctx context.Context, id string) (Case, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+caseColumns+` FROM cases WHERE id = $1`, id)
	c, err := scanCase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Case{}, ErrNotFound
		}
		return Case{}, fmt.Errorf("casefile: get: %w", err)
	}
	return c, nil
}

// GetByReference fetches a case by its human-readable reference code.
func (r *PGRepository) GetByReference(ctx context.Context, reference string) (Case, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+caseColumns+` FROM cases WHERE reference = $1`, reference)
	c, err := scanCase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Case{}, ErrNotFound
		}
		return Case{}, fmt.Errorf("casefile: get by reference: %w", err)
	}
	return c, nil
}

// GetByExternalRef fetches a case by its external-system correlation id.
func (r *PGRepository) GetByExternalRef(ctx context.Context, externalRef string) (Case, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+caseColumns+` FROM cases WHERE external_ref = $1`, externalRef)
	c, err := scanCase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Case{}, ErrNotFound
		}
		return Case{}, fmt.Errorf("casefile: get by external ref: %w", err)
	}
	return c, nil
}

// ListByStages returns every case whose stage is in the given set.
func (r *PGRepository) ListByStages(ctx context.Context, stages []Stage) ([]Case, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+caseColumns+` FROM cases WHERE stage = ANY($1) ORDER BY created_at DESC`, stageStrings(stages))
	if err != nil {
		return nil, fmt.Errorf("casefile: list by stages: %w", err)
	}
	defer rows.Close()
	return collectCases(rows)
}

// ListPendingDecision returns the chase scheduler's working set: unpaused
// cases awaiting a client decision.
func (r *PGRepository) ListPendingDecision(ctx context.Context) ([]Case, error) {
	const q = `
SELECT ` + caseColumns + `
FROM cases
WHERE stage = ANY($1)
  AND client_decision = $2
  AND paused = FALSE
ORDER BY delivered_at ASC NULLS LAST
`
	chaseStages := stageStrings([]Stage{StageAwaitingDecision, StageDecisionChase})
	rows, err := r.pool.Query(ctx, q, chaseStages, DecisionPending)
	if err != nil {
		return nil, fmt.Errorf("casefile: list pending decision: %w", err)
	}
	defer rows.Close()
	return collectCases(rows)
}

// ListDueForDelivery returns unpaused cases whose scheduled report send time
// has arrived.
func (r *PGRepository) ListDueForDelivery(ctx context.Context, now time.Time) ([]Case, error) {
	const q = `
SELECT ` + caseColumns + `
FROM cases
WHERE stage = $1
  AND paused = FALSE
  AND scheduled_send_at IS NOT NULL
  AND scheduled_send_at <= $2
ORDER BY scheduled_send_at ASC
`
	rows, err := r.pool.Query(ctx, q, StagePendingDelivery, now)
	if err != nil {
		return nil, fmt.Errorf("casefile: list due for delivery: %w", err)
	}
	defer rows.Close()
	return collectCases(rows)
}

// ListOpenDeadlines implements the urgency sweep's store: the deadline and
// cached classification of every open-stage case.
func (r *PGRepository) ListOpenDeadlines(ctx context.Context) ([]deadline.CaseDeadline, error) {
	const q = `
SELECT id, deadline, urgency, days_remaining
FROM cases
WHERE stage = ANY($1)
`
	rows, err := r.pool.Query(ctx, q, stageStrings(OpenStages))
	if err != nil {
		return nil, fmt.Errorf("casefile: list open deadlines: %w", err)
	}
	defer rows.Close()

	items := make([]deadline.CaseDeadline, 0, 32)
	for rows.Next() {
		var item deadline.CaseDeadline
		if err := rows.Scan(&item.CaseID, &item.Deadline, &item.Urgency, &item.DaysRemaining); err != nil {
			return nil, fmt.Errorf("casefile: scan deadline: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("casefile: iterate deadlines: %w", err)
	}
	return items, nil
}

// UpdateUrgency writes back a changed urgency classification. The cache-only
// nature of the column makes a plain pool write sufficient here.
func (r *PGRepository) UpdateUrgency(ctx context.Context, caseID string, cls deadline.Classification, at time.Time) error {
	const q = `
UPDATE cases SET urgency = $2, days_remaining = $3, urgency_at = $4, updated_at = now()
WHERE id = $1
`
	tag, err := r.pool.Exec(ctx, q, caseID, string(cls.Urgency), cls.DaysLeft, at)
	if err != nil {
		return fmt.Errorf("casefile: update urgency: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func collectCases(rows pgx.Rows) ([]Case, error) {
	cases := make([]Case, 0, 16)
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("casefile: scan case: %w", err)
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("casefile: iterate cases: %w", err)
	}
	return cases, nil
}

func stageStrings(stages []Stage) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = string(s)
	}
	return out
}
