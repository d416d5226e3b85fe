package casefile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"caseflow/audit"
)

var (
	// ErrCasePaused signals an automated actor tried to move a paused case.
	ErrCasePaused = errors.New("casefile: case is paused")
	// ErrStageMismatch signals the case is not in the stage the operation requires.
	ErrStageMismatch = errors.New("casefile: case not in required stage")
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// AuditWriter appends compliance entries inside the case transaction.
type AuditWriter interface {
	Append(ctx context.Context, tx pgx.Tx, caseID, eventType string, actor *string, payload map[string]any) error
	AppendChase(ctx context.Context, tx pgx.Tx, entry audit.ChaseEntry) error
}

// Deriver recomputes the cached decision outputs for a case. It is
// implemented by the analysis runner; the service only knows that edits to
// derived-input attributes must trigger it.
type Deriver interface {
	Derive(ctx context.Context, c Case) (Derived, error)
}

// Service owns every mutation of the case record: intake, attribute edits,
// stage transitions and the chase/delivery bookkeeping. Each write commits
// together with its audit entry.
type Service struct {
	pool    TxBeginner
	repo    Repository
	audits  AuditWriter
	deriver Deriver
	now     func() time.Time
	idGen   func() string
}

func NewService(pool TxBeginner, repo Repository, audits AuditWriter) *Service {
	return &Service{
		pool:   pool,
		repo:   repo,
		audits: audits,
		now:    time.Now,
		idGen:  func() string { return uuid.NewString() },
	}
}

// WithDeriver wires the analysis runner used to keep derived fields fresh.
func (s *Service) WithDeriver(d Deriver) *Service {
	s.deriver = d
	return s
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithIDGenerator overrides id generation, for tests.
func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

// CreateParams is the intake payload for a new enquiry.
type CreateParams struct {
	Reference       string
	ExternalRef     *string
	ClientName      string
	ClientEmail     *string
	ClientAge       int
	PropertyValue   float64
	LoanAmount      float64
	AnnualIncome    float64
	IncomeType      IncomeType
	Category        Category
	Purpose         Purpose
	TimeSensitivity TimeSensitivity
	TermYears       int
	Deadline        *time.Time
	Actor           string
}

// Create records a new enquiry at intake_received. The loan-to-value ratio
// is derived here; triage, matching and urgency follow on the first
// analysis run.
func (s *Service) Create(ctx context.Context, params CreateParams) (Case, error) {
	if params.ClientName == "" {
		return Case{}, fmt.Errorf("casefile: client name required")
	}
	if params.PropertyValue <= 0 || params.LoanAmount <= 0 {
		return Case{}, fmt.Errorf("casefile: property value and loan amount must be positive")
	}
	if !params.Category.Valid() {
		return Case{}, fmt.Errorf("casefile: invalid category %q", params.Category)
	}
	if !params.IncomeType.Valid() {
		return Case{}, fmt.Errorf("casefile: invalid income type %q", params.IncomeType)
	}
	if params.Purpose != "" && !params.Purpose.Valid() {
		return Case{}, fmt.Errorf("casefile: invalid purpose %q", params.Purpose)
	}
	if params.TimeSensitivity == "" {
		params.TimeSensitivity = SensitivityStandard
	}
	if !params.TimeSensitivity.Valid() {
		return Case{}, fmt.Errorf("casefile: invalid time sensitivity %q", params.TimeSensitivity)
	}

	id := s.idGen()
	reference := params.Reference
	if reference == "" {
		reference = "MC-" + strings.ToUpper(strings.ReplaceAll(id, "-", "")[:8])
	}
	now := s.now()

	c := Case{
		ID:              id,
		Reference:       reference,
		ExternalRef:     params.ExternalRef,
		ClientName:      params.ClientName,
		ClientEmail:     params.ClientEmail,
		ClientAge:       params.ClientAge,
		PropertyValue:   params.PropertyValue,
		LoanAmount:      params.LoanAmount,
		LTV:             ComputeLTV(params.PropertyValue, params.LoanAmount),
		AnnualIncome:    params.AnnualIncome,
		IncomeType:      params.IncomeType,
		Category:        params.Category,
		Purpose:         params.Purpose,
		TimeSensitivity: params.TimeSensitivity,
		TermYears:       params.TermYears,
		Deadline:        params.Deadline,
		Stage:           StageIntakeReceived,
		StageEnteredAt:  now,
		AnalysisStatus:  AnalysisNone,
		ClientDecision:  DecisionPending,
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Case{}, fmt.Errorf("casefile: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	created, err := s.repo.Insert(ctx, tx, c)
	if err != nil {
		return Case{}, err
	}

	payload := map[string]any{
		"reference": created.Reference,
		"category":  created.Category,
		"ltv":       created.LTV,
	}
	if err := s.audits.Append(ctx, tx, created.ID, audit.EventCaseCreated, actorPtr(params.Actor), payload); err != nil {
		return Case{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Case{}, fmt.Errorf("casefile: commit create: %w", err)
	}
	return created, nil
}

// UpdateParams carries a partial edit; nil fields are left unchanged.
// ClearDeadline removes a previously set deadline.
type UpdateParams struct {
	CaseID          string
	ExternalRef     *string
	ClientName      *string
	ClientEmail     *string
	ClientAge       *int
	PropertyValue   *float64
	LoanAmount      *float64
	AnnualIncome    *float64
	IncomeType      *IncomeType
	Category        *Category
	Purpose         *Purpose
	TimeSensitivity *TimeSensitivity
	TermYears       *int
	Deadline        *time.Time
	ClearDeadline   bool
	Actor           string
}

// Update applies an attribute edit. Whenever an input of a derived field
// changes, the cached triage, matches and urgency are recomputed in the same
// transaction; if recomputation fails the stale cache is cleared and the
// case flagged analysis-failed rather than left showing outdated results.
func (s *Service) Update(ctx context.Context, params UpdateParams) (Case, error) {
	if params.CaseID == "" {
		return Case{}, fmt.Errorf("casefile: update missing case id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Case{}, fmt.Errorf("casefile: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := s.repo.GetForUpdate(ctx, tx, params.CaseID)
	if err != nil {
		return Case{}, err
	}

	changed, derivedInputChanged, err := applyUpdate(&c, params)
	if err != nil {
		return Case{}, err
	}
	if len(changed) == 0 {
		if err := tx.Commit(ctx); err != nil {
			return Case{}, fmt.Errorf("casefile: commit noop update: %w", err)
		}
		return c, nil
	}

	c.LTV = ComputeLTV(c.PropertyValue, c.LoanAmount)
	if err := s.repo.UpdateAttributes(ctx, tx, c); err != nil {
		return Case{}, err
	}

	payload := map[string]any{"fields": changed}
	if err := s.audits.Append(ctx, tx, c.ID, audit.EventCaseUpdated, actorPtr(params.Actor), payload); err != nil {
		return Case{}, err
	}

	if derivedInputChanged && s.deriver != nil {
		now := s.now()
		derived, derr := s.deriver.Derive(ctx, c)
		if derr != nil {
			if err := s.repo.UpdateDerived(ctx, tx, c.ID, nil, AnalysisFailed, now); err != nil {
				return Case{}, err
			}
			failure := map[string]any{"error": derr.Error(), "trigger": "attribute_update"}
			if err := s.audits.Append(ctx, tx, c.ID, audit.EventAnalysisFailed, nil, failure); err != nil {
				return Case{}, err
			}
			c.AnalysisStatus = AnalysisFailed
			clearDerived(&c)
		} else {
			if err := s.repo.UpdateDerived(ctx, tx, c.ID, &derived, AnalysisComplete, now); err != nil {
				return Case{}, err
			}
			applyDerived(&c, derived, now)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return Case{}, fmt.Errorf("casefile: commit update: %w", err)
	}
	return c, nil
}

// TransitionParams describes one stage move.
type TransitionParams struct {
	CaseID    string
	To        Stage
	Actor     string
	Automated bool
	Reason    string
	Payload   map[string]any
}

// Transition validates and records a stage move, stamping the stage-entry
// time and mirroring the move into the audit log. Paused cases refuse
// automated transitions.
func (s *Service) Transition(ctx context.Context, params TransitionParams) (Case, error) {
	if params.CaseID == "" {
		return Case{}, fmt.Errorf("casefile: transition missing case id")
	}
	if !params.To.Valid() {
		return Case{}, fmt.Errorf("casefile: invalid target stage %q", params.To)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Case{}, fmt.Errorf("casefile: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := s.transitionInTx(ctx, tx, params)
	if err != nil {
		return Case{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Case{}, fmt.Errorf("casefile: commit transition: %w", err)
	}
	return c, nil
}

func (s *Service) transitionInTx(ctx context.Context, tx pgx.Tx, params TransitionParams) (Case, error) {
	c, err := s.repo.GetForUpdate(ctx, tx, params.CaseID)
	if err != nil {
		return Case{}, err
	}
	return s.moveStage(ctx, tx, c, params)
}

// moveStage performs the validated stage write plus audit entry for an
// already-locked case.
func (s *Service) moveStage(ctx context.Context, tx pgx.Tx, c Case, params TransitionParams) (Case, error) {
	if c.Paused && params.Automated {
		return Case{}, ErrCasePaused
	}
	if !CanTransition(c.Stage, params.To) {
		return Case{}, &InvalidTransitionError{From: c.Stage, To: params.To}
	}

	now := s.now()
	if err := s.repo.UpdateStage(ctx, tx, c.ID, params.To, now); err != nil {
		return Case{}, err
	}

	payload := map[string]any{
		"from":      string(c.Stage),
		"to":        string(params.To),
		"automated": params.Automated,
	}
	if params.Reason != "" {
		payload["reason"] = params.Reason
	}
	for k, v := range params.Payload {
		payload[k] = v
	}
	if err := s.audits.Append(ctx, tx, c.ID, audit.EventStageChanged, actorPtr(params.Actor), payload); err != nil {
		return Case{}, err
	}

	c.Stage = params.To
	c.StageEnteredAt = now
	return c, nil
}

// SaveDerived persists a completed analysis outcome against the case.
func (s *Service) SaveDerived(ctx context.Context, caseID string, derived Derived) (Case, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Case{}, fmt.Errorf("casefile: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := s.repo.GetForUpdate(ctx, tx, caseID)
	if err != nil {
		return Case{}, err
	}

	now := s.now()
	if err := s.repo.UpdateDerived(ctx, tx, caseID, &derived, AnalysisComplete, now); err != nil {
		return Case{}, err
	}
	payload := map[string]any{
		"triage_rating": derived.TriageRating,
		"triage_score":  derived.TriageScore,
		"matched":       len(derived.Matched),
		"rejected":      len(derived.Rejected),
	}
	if err := s.audits.Append(ctx, tx, caseID, audit.EventAnalysisComplete, nil, payload); err != nil {
		return Case{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Case{}, fmt.Errorf("casefile: commit derived: %w", err)
	}

	applyDerived(&c, derived, now)
	c.AnalysisStatus = AnalysisComplete
	return c, nil
}

// MarkAnalysisFailed flags a failed analysis run without advancing the
// stage, leaving the case recoverable by re-triggering.
func (s *Service) MarkAnalysisFailed(ctx context.Context, caseID string, cause error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("casefile: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := s.repo.GetForUpdate(ctx, tx, caseID); err != nil {
		return err
	}
	if err := s.repo.UpdateDerived(ctx, tx, caseID, nil, AnalysisFailed, s.now()); err != nil {
		return err
	}
	payload := map[string]any{}
	if cause != nil {
		payload["error"] = cause.Error()
	}
	if err := s.audits.Append(ctx, tx, caseID, audit.EventAnalysisFailed, nil, payload); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("casefile: commit analysis failure: %w", err)
	}
	return nil
}

// ScheduleDelivery approves the report out of human review and books its
// send time.
func (s *Service) ScheduleDelivery(ctx context.Context, caseID string, sendAt time.Time, actor string) (Case, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Case{}, fmt.Errorf("casefile: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := s.repo.GetForUpdate(ctx, tx, caseID)
	if err != nil {
		return Case{}, err
	}
	if c.Stage != StageHumanReview {
		return Case{}, fmt.Errorf("%w: %s", ErrStageMismatch, c.Stage)
	}

	if err := s.repo.UpdateSchedule(ctx, tx, caseID, &sendAt); err != nil {
		return Case{}, err
	}
	c, err = s.moveStage(ctx, tx, c, TransitionParams{
		CaseID: caseID,
		To:     StagePendingDelivery,
		Actor:  actor,
		Reason: "report approved",
	})
	if err != nil {
		return Case{}, err
	}
	payload := map[string]any{"send_at": sendAt.UTC()}
	if err := s.audits.Append(ctx, tx, caseID, audit.EventReportScheduled, actorPtr(actor), payload); err != nil {
		return Case{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Case{}, fmt.Errorf("casefile: commit schedule: %w", err)
	}
	c.ScheduledSendAt = &sendAt
	return c, nil
}

// MarkDelivered records that the report actually went out: delivery
// timestamp stamped, chase counters reset, case moved to awaiting_decision.
func (s *Service) MarkDelivered(ctx context.Context, caseID string, actor string) (Case, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Case{}, fmt.Errorf("casefile: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := s.repo.GetForUpdate(ctx, tx, caseID)
	if err != nil {
		return Case{}, err
	}
	if c.Stage != StagePendingDelivery {
		return Case{}, fmt.Errorf("%w: %s", ErrStageMismatch, c.Stage)
	}

	now := s.now()
	if err := s.repo.MarkDelivered(ctx, tx, caseID, now); err != nil {
		return Case{}, err
	}
	c, err = s.moveStage(ctx, tx, c, TransitionParams{
		CaseID: caseID,
		To:     StageAwaitingDecision,
		Actor:  actor,
		Reason: "report delivered",
	})
	if err != nil {
		return Case{}, err
	}
	payload := map[string]any{"delivered_at": now.UTC()}
	if err := s.audits.Append(ctx, tx, caseID, audit.EventReportDelivered, actorPtr(actor), payload); err != nil {
		return Case{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Case{}, fmt.Errorf("casefile: commit delivery: %w", err)
	}

	c.DeliveredAt = &now
	c.ScheduledSendAt = nil
	c.ChaseCount = 0
	c.LastChaseAt = nil
	return c, nil
}

// RecordChaseParams describes one sent follow-up.
type RecordChaseParams struct {
	CaseID string
	SentTo string
	Final  bool
}

// RecordChase books a sent follow-up: increments the chase counter, stamps
// last_chase_at, moves the case into decision_chase if it was still
// awaiting, and appends both the chase-log and audit entries.
func (s *Service) RecordChase(ctx context.Context, params RecordChaseParams) (Case, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Case{}, fmt.Errorf("casefile: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := s.repo.GetForUpdate(ctx, tx, params.CaseID)
	if err != nil {
		return Case{}, err
	}
	if c.Stage != StageAwaitingDecision && c.Stage != StageDecisionChase {
		return Case{}, fmt.Errorf("%w: %s", ErrStageMismatch, c.Stage)
	}
	if c.Paused {
		return Case{}, ErrCasePaused
	}

	now := s.now()
	attempt := c.ChaseCount + 1
	if err := s.repo.RecordChase(ctx, tx, c.ID, attempt, now); err != nil {
		return Case{}, err
	}

	if c.Stage == StageAwaitingDecision {
		c, err = s.moveStage(ctx, tx, c, TransitionParams{
			CaseID:    c.ID,
			To:        StageDecisionChase,
			Automated: true,
			Reason:    "follow-up sent",
		})
		if err != nil {
			return Case{}, err
		}
	}

	if err := s.audits.AppendChase(ctx, tx, audit.ChaseEntry{
		CaseID:  c.ID,
		Attempt: attempt,
		Final:   params.Final,
		SentTo:  params.SentTo,
	}); err != nil {
		return Case{}, err
	}
	payload := map[string]any{
		"attempt": attempt,
		"final":   params.Final,
		"sent_to": params.SentTo,
	}
	if err := s.audits.Append(ctx, tx, c.ID, audit.EventChaseSent, nil, payload); err != nil {
		return Case{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Case{}, fmt.Errorf("casefile: commit chase: %w", err)
	}

	c.ChaseCount = attempt
	c.LastChaseAt = &now
	return c, nil
}

// WithdrawNoResponse closes a case whose chase attempts are exhausted.
func (s *Service) WithdrawNoResponse(ctx context.Context, caseID, reason string) (Case, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Case{}, fmt.Errorf("casefile: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := s.repo.GetForUpdate(ctx, tx, caseID)
	if err != nil {
		return Case{}, err
	}
	if c.Paused {
		return Case{}, ErrCasePaused
	}

	if err := s.repo.UpdateDecision(ctx, tx, caseID, DecisionNoResponse); err != nil {
		return Case{}, err
	}
	c, err = s.moveStage(ctx, tx, c, TransitionParams{
		CaseID:    caseID,
		To:        StageWithdrawn,
		Automated: true,
		Reason:    reason,
		Payload:   map[string]any{"client_decision": string(DecisionNoResponse)},
	})
	if err != nil {
		return Case{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Case{}, fmt.Errorf("casefile: commit withdrawal: %w", err)
	}

	c.ClientDecision = DecisionNoResponse
	return c, nil
}

// RecordClientDecision registers the client's explicit response to the
// delivered report: proceeding moves the case forward, declining closes it.
func (s *Service) RecordClientDecision(ctx context.Context, caseID string, decision ClientDecision, actor string) (Case, error) {
	if decision != DecisionProceeding && decision != DecisionDeclined {
		return Case{}, fmt.Errorf("casefile: invalid client decision %q", decision)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Case{}, fmt.Errorf("casefile: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := s.repo.GetForUpdate(ctx, tx, caseID)
	if err != nil {
		return Case{}, err
	}
	if c.Stage != StageAwaitingDecision && c.Stage != StageDecisionChase {
		return Case{}, fmt.Errorf("%w: %s", ErrStageMismatch, c.Stage)
	}

	if err := s.repo.UpdateDecision(ctx, tx, caseID, decision); err != nil {
		return Case{}, err
	}

	target := StageClientProceeding
	reason := "client confirmed intent to proceed"
	if decision == DecisionDeclined {
		target = StageWithdrawn
		reason = "client declined to proceed"
	}
	c, err = s.moveStage(ctx, tx, c, TransitionParams{
		CaseID: caseID,
		To:     target,
		Actor:  actor,
		Reason: reason,
	})
	if err != nil {
		return Case{}, err
	}
	payload := map[string]any{"decision": string(decision)}
	if err := s.audits.Append(ctx, tx, caseID, audit.EventDecisionRecorded, actorPtr(actor), payload); err != nil {
		return Case{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Case{}, fmt.Errorf("casefile: commit decision: %w", err)
	}

	c.ClientDecision = decision
	return c, nil
}

// SetPaused toggles the pause flag that excludes a case from all automated
// processing.
func (s *Service) SetPaused(ctx context.Context, caseID string, paused bool, actor string) (Case, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Case{}, fmt.Errorf("casefile: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	c, err := s.repo.GetForUpdate(ctx, tx, caseID)
	if err != nil {
		return Case{}, err
	}
	if c.Paused == paused {
		if err := tx.Commit(ctx); err != nil {
			return Case{}, fmt.Errorf("casefile: commit pause noop: %w", err)
		}
		return c, nil
	}

	if err := s.repo.SetPaused(ctx, tx, caseID, paused); err != nil {
		return Case{}, err
	}
	event := audit.EventCasePaused
	if !paused {
		event = audit.EventCaseResumed
	}
	if err := s.audits.Append(ctx, tx, caseID, event, actorPtr(actor), nil); err != nil {
		return Case{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Case{}, fmt.Errorf("casefile: commit pause: %w", err)
	}

	c.Paused = paused
	return c, nil
}

func applyUpdate(c *Case, params UpdateParams) (changed []string, derivedInputChanged bool, err error) {
	note := func(field string, derived bool) {
		changed = append(changed, field)
		if derived {
			derivedInputChanged = true
		}
	}

	if params.ExternalRef != nil {
		c.ExternalRef = params.ExternalRef
		note("external_ref", false)
	}
	if params.ClientName != nil {
		if *params.ClientName == "" {
			return nil, false, fmt.Errorf("casefile: client name cannot be empty")
		}
		c.ClientName = *params.ClientName
		note("client_name", false)
	}
	if params.ClientEmail != nil {
		c.ClientEmail = params.ClientEmail
		note("client_email", false)
	}
	if params.ClientAge != nil {
		c.ClientAge = *params.ClientAge
		note("client_age", true)
	}
	if params.PropertyValue != nil {
		if *params.PropertyValue <= 0 {
			return nil, false, fmt.Errorf("casefile: property value must be positive")
		}
		c.PropertyValue = *params.PropertyValue
		note("property_value", true)
	}
	if params.LoanAmount != nil {
		if *params.LoanAmount <= 0 {
			return nil, false, fmt.Errorf("casefile: loan amount must be positive")
		}
		c.LoanAmount = *params.LoanAmount
		note("loan_amount", true)
	}
	if params.AnnualIncome != nil {
		c.AnnualIncome = *params.AnnualIncome
		note("annual_income", true)
	}
	if params.IncomeType != nil {
		if !params.IncomeType.Valid() {
			return nil, false, fmt.Errorf("casefile: invalid income type %q", *params.IncomeType)
		}
		c.IncomeType = *params.IncomeType
		note("income_type", true)
	}
	if params.Category != nil {
		if !params.Category.Valid() {
			return nil, false, fmt.Errorf("casefile: invalid category %q", *params.Category)
		}
		c.Category = *params.Category
		note("category", true)
	}
	if params.Purpose != nil {
		if !params.Purpose.Valid() {
			return nil, false, fmt.Errorf("casefile: invalid purpose %q", *params.Purpose)
		}
		c.Purpose = *params.Purpose
		note("purpose", true)
	}
	if params.TimeSensitivity != nil {
		if !params.TimeSensitivity.Valid() {
			return nil, false, fmt.Errorf("casefile: invalid time sensitivity %q", *params.TimeSensitivity)
		}
		c.TimeSensitivity = *params.TimeSensitivity
		note("time_sensitivity", true)
	}
	if params.TermYears != nil {
		c.TermYears = *params.TermYears
		note("term_years", true)
	}
	if params.ClearDeadline {
		c.Deadline = nil
		note("deadline", true)
	} else if params.Deadline != nil {
		c.Deadline = params.Deadline
		note("deadline", true)
	}

	return changed, derivedInputChanged, nil
}

func applyDerived(c *Case, d Derived, at time.Time) {
	score := d.TriageScore
	rating := d.TriageRating
	urgency := d.Urgency
	c.TriageScore = &score
	c.TriageRating = &rating
	c.TriageFactors = d.TriageFactors
	c.TriagedAt = &at
	c.Matched = d.Matched
	c.Rejected = d.Rejected
	c.MatchedAt = &at
	c.Urgency = &urgency
	c.DaysRemaining = d.DaysRemaining
	c.UrgencyAt = &at
	c.AnalysisStatus = AnalysisComplete
}

func clearDerived(c *Case) {
	c.TriageScore = nil
	c.TriageRating = nil
	c.TriageFactors = nil
	c.TriagedAt = nil
	c.Matched = nil
	c.Rejected = nil
	c.MatchedAt = nil
	c.Urgency = nil
	c.DaysRemaining = nil
	c.UrgencyAt = nil
}

func actorPtr(actor string) *string {
	if actor == "" {
		return nil
	}
	return &actor
}
