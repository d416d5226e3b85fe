package chase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"caseflow/casefile"
	"caseflow/mailer"
)

// Action is the outcome Evaluate picks for one case.
type Action string

const (
	// ActionNone means the case is not yet due another follow-up.
	ActionNone Action = "none"
	// ActionSend means a follow-up is due and attempts remain.
	ActionSend Action = "send"
	// ActionWithdraw means a follow-up fell due with no attempts left.
	ActionWithdraw Action = "withdraw"
	// ActionSkip means the case is missing the data needed to chase it.
	ActionSkip Action = "skip"
)

// CaseSource lists the cases currently waiting on a client decision.
type CaseSource interface {
	ListPendingDecision(ctx context.Context) ([]casefile.Case, error)
}

// CaseWriter applies chase outcomes to the case record.
type CaseWriter interface {
	RecordChase(ctx context.Context, params casefile.RecordChaseParams) (casefile.Case, error)
	WithdrawNoResponse(ctx context.Context, caseID, reason string) (casefile.Case, error)
}

// Scheduler sweeps pending-decision cases and sends whatever follow-ups
// have fallen due.
type Scheduler struct {
	source    CaseSource
	writer    CaseWriter
	messenger mailer.Messenger
	settings  SettingsSource
	log       *zap.Logger
	now       func() time.Time
}

func NewScheduler(source CaseSource, writer CaseWriter, messenger mailer.Messenger, settings SettingsSource, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scheduler{
		source:    source,
		writer:    writer,
		messenger: messenger,
		settings:  settings,
		log:       log,
		now:       time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

// Outcome records what happened to one case during a sweep.
type Outcome struct {
	CaseID  string
	Action  Action
	Attempt int
	Err     error
}

// SweepResult summarises one pass over the pending-decision cases.
type SweepResult struct {
	Scanned   int
	Sent      int
	Withdrawn int
	Skipped   int
	Failed    int
	Outcomes  []Outcome
}

// Evaluate decides what a single sweep pass should do with a case, given
// the cadence and the current time. It is pure so the due/withdraw rules
// can be tested without any plumbing.
func Evaluate(c casefile.Case, cfg Config, now time.Time) Action {
	if c.DeliveredAt == nil {
		return ActionSkip
	}

	var due time.Time
	if c.ChaseCount == 0 {
		due = c.DeliveredAt.Add(time.Duration(cfg.FirstChaseAfterHours) * time.Hour)
	} else {
		if c.LastChaseAt == nil {
			return ActionSkip
		}
		due = c.LastChaseAt.Add(time.Duration(cfg.IntervalHours) * time.Hour)
	}
	if now.Before(due) {
		return ActionNone
	}

	if c.ChaseCount >= cfg.MaxAttempts {
		return ActionWithdraw
	}
	if c.ClientEmail == nil || *c.ClientEmail == "" {
		return ActionSkip
	}
	return ActionSend
}

// Run executes one sweep: loads the cadence, evaluates every case waiting
// on a decision, sends the follow-ups that are due and withdraws exhausted
// cases. A failure on one case never stops the rest of the sweep; a send
// failure leaves the case untouched so the next sweep retries it.
func (s *Scheduler) Run(ctx context.Context) (SweepResult, error) {
	cfg, err := LoadConfig(ctx, s.settings)
	if err != nil {
		return SweepResult{}, err
	}

	cases, err := s.source.ListPendingDecision(ctx)
	if err != nil {
		return SweepResult{}, err
	}

	result := SweepResult{Scanned: len(cases)}
	for _, c := range cases {
		outcome := s.process(ctx, c, cfg)
		switch {
		case outcome.Err != nil:
			result.Failed++
			s.log.Warn("chase failed",
				zap.String("case_id", c.ID),
				zap.String("action", string(outcome.Action)),
				zap.Error(outcome.Err),
			)
		case outcome.Action == ActionSend:
			result.Sent++
		case outcome.Action == ActionWithdraw:
			result.Withdrawn++
		case outcome.Action == ActionSkip:
			result.Skipped++
		}
		if outcome.Action != ActionNone || outcome.Err != nil {
			result.Outcomes = append(result.Outcomes, outcome)
		}
	}

	s.log.Info("chase sweep complete",
		zap.Int("scanned", result.Scanned),
		zap.Int("sent", result.Sent),
		zap.Int("withdrawn", result.Withdrawn),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *Scheduler) process(ctx context.Context, c casefile.Case, cfg Config) Outcome {
	action := Evaluate(c, cfg, s.now())
	outcome := Outcome{CaseID: c.ID, Action: action}

	switch action {
	case ActionSend:
		attempt := c.ChaseCount + 1
		outcome.Attempt = attempt
		msg := BuildMessage(c.ClientName, c.Reference, attempt, cfg.MaxAttempts)
		if err := s.messenger.Send(ctx, *c.ClientEmail, msg.Subject, msg.Body); err != nil {
			outcome.Err = err
			return outcome
		}
		if _, err := s.writer.RecordChase(ctx, casefile.RecordChaseParams{
			CaseID: c.ID,
			SentTo: *c.ClientEmail,
			Final:  msg.Final,
		}); err != nil {
			// Paused between listing and locking; next sweep re-evaluates.
			if errors.Is(err, casefile.ErrCasePaused) {
				outcome.Action = ActionSkip
				return outcome
			}
			outcome.Err = err
		}
	case ActionWithdraw:
		if _, err := s.writer.WithdrawNoResponse(ctx, c.ID, "no response after final chase"); err != nil {
			if errors.Is(err, casefile.ErrCasePaused) {
				outcome.Action = ActionSkip
				return outcome
			}
			outcome.Err = err
		}
	}
	return outcome
}
