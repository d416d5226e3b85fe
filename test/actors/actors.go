package actors

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"caseflow/analysis"
	"caseflow/casefile"
	"caseflow/chase"
	"caseflow/delivery"
)

// contention reports whether an error is an expected consequence of two
// actors racing over the same case rather than a real failure.
func contention(err error) bool {
	var invalid *casefile.InvalidTransitionError
	return errors.Is(err, casefile.ErrNotFound) ||
		errors.Is(err, casefile.ErrCasePaused) ||
		errors.Is(err, casefile.ErrStageMismatch) ||
		errors.As(err, &invalid)
}

func jitter(base, spread int) time.Duration {
	return time.Duration(base+rand.Intn(spread)) * time.Millisecond
}

// Intaker creates cases with randomized applicant data and immediately runs
// analysis on each, pushing complete cases through to human_review.
func Intaker(ctx context.Context, svc *casefile.Service, runner *analysis.Runner, stop <-chan struct{}) error {
	incomeTypes := []casefile.IncomeType{casefile.IncomeEmployed, casefile.IncomeSelfEmployed, casefile.IncomeContractor}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		email := fmt.Sprintf("stress%d@example.com", rand.Int63())
		pv := float64(200000 + rand.Intn(600000))
		created, err := svc.Create(ctx, casefile.CreateParams{
			ClientName:      fmt.Sprintf("Stress Client %d", rand.Int63()),
			ClientEmail:     &email,
			ClientAge:       25 + rand.Intn(40),
			PropertyValue:   pv,
			LoanAmount:      math.Round(pv * (0.5 + rand.Float64()*0.4)),
			AnnualIncome:    float64(20000 + rand.Intn(80000)),
			IncomeType:      incomeTypes[rand.Intn(len(incomeTypes))],
			Category:        casefile.CategoryResidential,
			Purpose:         casefile.PurposePurchase,
			TimeSensitivity: casefile.SensitivityStandard,
			TermYears:       10 + rand.Intn(25),
			Actor:           "stress-intaker",
		})
		if err != nil {
			return fmt.Errorf("intaker create: %w", err)
		}
		if _, err := runner.Run(ctx, created.ID); err != nil && !contention(err) {
			return fmt.Errorf("intaker analysis: %w", err)
		}
		time.Sleep(jitter(10, 20))
	}
}

// Reviewer approves reviewed cases for fast-track delivery, racing other
// reviewers over the same human_review queue.
func Reviewer(ctx context.Context, repo *casefile.PGRepository, svc *delivery.Service, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		cases, err := repo.ListByStages(ctx, []casefile.Stage{casefile.StageHumanReview})
		if err != nil {
			return fmt.Errorf("reviewer list: %w", err)
		}
		for _, c := range cases {
			_, err := svc.Approve(ctx, delivery.ApproveParams{
				CaseID: c.ID,
				Mode:   delivery.ModeFastTrack,
				Actor:  "stress-reviewer",
			})
			if err != nil && !contention(err) {
				return fmt.Errorf("reviewer approve %s: %w", c.ID, err)
			}
		}
		time.Sleep(jitter(20, 40))
	}
}

// Decider records client decisions on delivered cases, splitting between
// proceeding and declined.
func Decider(ctx context.Context, repo *casefile.PGRepository, svc *casefile.Service, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		cases, err := repo.ListPendingDecision(ctx)
		if err != nil {
			return fmt.Errorf("decider list: %w", err)
		}
		for _, c := range cases {
			if rand.Intn(3) != 0 {
				continue // leave most cases for the chase sweep
			}
			decision := casefile.DecisionProceeding
			if rand.Intn(2) == 0 {
				decision = casefile.DecisionDeclined
			}
			if _, err := svc.RecordClientDecision(ctx, c.ID, decision, "stress-decider"); err != nil && !contention(err) {
				return fmt.Errorf("decider record %s: %w", c.ID, err)
			}
		}
		time.Sleep(jitter(30, 50))
	}
}

// Chaser backdates delivery timestamps so pending cases fall due, then runs a
// chase sweep. The backdating stands in for the passage of days.
func Chaser(ctx context.Context, pool *pgxpool.Pool, scheduler *chase.Scheduler, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, err := pool.Exec(ctx, `UPDATE cases
                  SET delivered_at = delivered_at - interval '50 hours',
                      last_chase_at = last_chase_at - interval '80 hours'
                  WHERE stage IN ('awaiting_decision','decision_chase') AND delivered_at IS NOT NULL`)
		if err != nil {
			return fmt.Errorf("chaser backdate: %w", err)
		}
		if _, err := scheduler.Run(ctx); err != nil {
			return fmt.Errorf("chaser sweep: %w", err)
		}
		time.Sleep(jitter(100, 100))
	}
}

// Pauser toggles the pause flag on random open cases to exercise the
// automated-transition guard under load.
func Pauser(ctx context.Context, pool *pgxpool.Pool, svc *casefile.Service, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		var id string
		var paused bool
		err := pool.QueryRow(ctx, `SELECT id, paused FROM cases
                  WHERE stage NOT IN ('completed','withdrawn','unsuitable')
                  ORDER BY random() LIMIT 1`).Scan(&id, &paused)
		if err == nil {
			if _, err := svc.SetPaused(ctx, id, !paused, "stress-pauser"); err != nil && !contention(err) {
				return fmt.Errorf("pauser toggle %s: %w", id, err)
			}
		}
		time.Sleep(jitter(150, 100))
	}
}
