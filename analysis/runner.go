// Package analysis orchestrates the automated pipeline for one case:
// completeness check, triage scoring, lender matching and deadline
// classification, with the results cached on the case record.
package analysis

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"caseflow/casefile"
	"caseflow/deadline"
	"caseflow/lender"
	"caseflow/triage"
)

// CaseReader loads the case under analysis.
type CaseReader interface {
	Get(ctx context.Context, id string) (casefile.Case, error)
}

// CaseWriter applies analysis outcomes to the case record.
type CaseWriter interface {
	Transition(ctx context.Context, params casefile.TransitionParams) (casefile.Case, error)
	SaveDerived(ctx context.Context, caseID string, derived casefile.Derived) (casefile.Case, error)
	MarkAnalysisFailed(ctx context.Context, caseID string, cause error) error
}

// CatalogSource lists the active lenders to match against.
type CatalogSource interface {
	ListActive(ctx context.Context, category string) ([]lender.Lender, error)
}

// Runner executes analysis runs. It also serves as the recompute hook for
// attribute edits: Derive is the pure computation, Run adds the stage
// orchestration around it.
type Runner struct {
	reader  CaseReader
	writer  CaseWriter
	catalog CatalogSource
	log     *zap.Logger
	now     func() time.Time
}

func NewRunner(reader CaseReader, writer CaseWriter, catalog CatalogSource, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{
		reader:  reader,
		writer:  writer,
		catalog: catalog,
		log:     log,
		now:     time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// MissingFields lists the intake fields still required before analysis can
// run.
func MissingFields(c casefile.Case) []string {
	var missing []string
	if c.ClientName == "" {
		missing = append(missing, "client_name")
	}
	if c.ClientAge <= 0 {
		missing = append(missing, "client_age")
	}
	if c.PropertyValue <= 0 {
		missing = append(missing, "property_value")
	}
	if c.LoanAmount <= 0 {
		missing = append(missing, "loan_amount")
	}
	if c.AnnualIncome <= 0 {
		missing = append(missing, "annual_income")
	}
	if !c.Category.Valid() {
		missing = append(missing, "category")
	}
	if !c.IncomeType.Valid() {
		missing = append(missing, "income_type")
	}
	if c.TermYears <= 0 {
		missing = append(missing, "term_years")
	}
	return missing
}

// Derive computes the cached decision outputs for a case without touching
// its stage. It satisfies the recompute hook the case service calls on
// attribute edits.
func (r *Runner) Derive(ctx context.Context, c casefile.Case) (casefile.Derived, error) {
	scored, err := triage.Score(triage.Input{
		LTV:             c.LTV,
		AnnualIncome:    c.AnnualIncome,
		TimeSensitivity: c.TimeSensitivity,
		Category:        c.Category,
		IncomeType:      c.IncomeType,
		Purpose:         c.Purpose,
	})
	if err != nil {
		return casefile.Derived{}, fmt.Errorf("analysis: triage case %s: %w", c.ID, err)
	}

	catalog, err := r.catalog.ListActive(ctx, string(c.Category))
	if err != nil {
		return casefile.Derived{}, fmt.Errorf("analysis: load lender catalog: %w", err)
	}
	matched, err := lender.Match(lender.Profile{
		LTV:          c.LTV,
		Category:     c.Category,
		AnnualIncome: c.AnnualIncome,
		IncomeType:   c.IncomeType,
		LoanAmount:   c.LoanAmount,
		ClientAge:    c.ClientAge,
		TermYears:    c.TermYears,
	}, catalog)
	if err != nil {
		return casefile.Derived{}, fmt.Errorf("analysis: match case %s: %w", c.ID, err)
	}

	classified := deadline.Classify(c.Deadline, r.now())

	derived := casefile.Derived{
		TriageScore:   scored.Score,
		TriageRating:  string(scored.Rating),
		TriageFactors: scored.Factors,
		Urgency:       string(classified.Urgency),
		DaysRemaining: classified.DaysLeft,
	}
	for _, a := range matched.Accepted {
		derived.Matched = append(derived.Matched, casefile.LenderDecision{
			Name:       a.Lender,
			Confidence: a.Confidence,
			Reasons:    a.Reasons,
		})
	}
	for _, rej := range matched.Rejected {
		derived.Rejected = append(derived.Rejected, casefile.LenderDecision{
			Name:    rej.Lender,
			Reasons: rej.Reasons,
		})
	}
	return derived, nil
}

// Run executes one full analysis pass for the case: routes incomplete
// intakes to data completion, computes the derived outputs, and advances
// complete cases to human review. A computation failure marks the case
// analysis-failed but leaves its stage alone so the run can be retried.
func (r *Runner) Run(ctx context.Context, caseID string) (casefile.Case, error) {
	c, err := r.reader.Get(ctx, caseID)
	if err != nil {
		return casefile.Case{}, err
	}
	if c.Paused {
		return casefile.Case{}, casefile.ErrCasePaused
	}

	switch c.Stage {
	case casefile.StageIntakeReceived, casefile.StageDataCompletion:
		if missing := MissingFields(c); len(missing) > 0 {
			if c.Stage == casefile.StageIntakeReceived {
				c, err = r.writer.Transition(ctx, casefile.TransitionParams{
					CaseID:    c.ID,
					To:        casefile.StageDataCompletion,
					Automated: true,
					Reason:    "intake incomplete",
					Payload:   map[string]any{"missing": missing},
				})
				if err != nil {
					return casefile.Case{}, err
				}
			}
			r.log.Info("analysis deferred, intake incomplete",
				zap.String("case_id", c.ID),
				zap.Strings("missing", missing),
			)
			return c, nil
		}
		c, err = r.writer.Transition(ctx, casefile.TransitionParams{
			CaseID:    c.ID,
			To:        casefile.StageMarketAnalysis,
			Automated: true,
			Reason:    "intake complete",
		})
		if err != nil {
			return casefile.Case{}, err
		}
	case casefile.StageMarketAnalysis, casefile.StageHumanReview:
		// Retry after a failed run, or recompute under review.
	default:
		return casefile.Case{}, fmt.Errorf("%w: %s", casefile.ErrStageMismatch, c.Stage)
	}

	derived, err := r.Derive(ctx, c)
	if err != nil {
		if markErr := r.writer.MarkAnalysisFailed(ctx, c.ID, err); markErr != nil {
			r.log.Error("recording analysis failure failed",
				zap.String("case_id", c.ID),
				zap.Error(markErr),
			)
		}
		return casefile.Case{}, err
	}

	c, err = r.writer.SaveDerived(ctx, c.ID, derived)
	if err != nil {
		return casefile.Case{}, err
	}

	if c.Stage == casefile.StageMarketAnalysis {
		c, err = r.writer.Transition(ctx, casefile.TransitionParams{
			CaseID:    c.ID,
			To:        casefile.StageHumanReview,
			Automated: true,
			Reason:    "analysis complete",
		})
		if err != nil {
			return casefile.Case{}, err
		}
	}

	r.log.Info("analysis complete",
		zap.String("case_id", c.ID),
		zap.String("rating", derived.TriageRating),
		zap.Int("matched", len(derived.Matched)),
	)
	return c, nil
}
