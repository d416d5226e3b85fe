package delivery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"caseflow/casefile"
	"caseflow/mailer"
)

// CaseSource reads the cases the delivery loop needs.
type CaseSource interface {
	Get(ctx context.Context, id string) (casefile.Case, error)
	ListDueForDelivery(ctx context.Context, now time.Time) ([]casefile.Case, error)
}

// CaseWriter applies delivery outcomes to the case record.
type CaseWriter interface {
	ScheduleDelivery(ctx context.Context, caseID string, sendAt time.Time, actor string) (casefile.Case, error)
	MarkDelivered(ctx context.Context, caseID string, actor string) (casefile.Case, error)
}

// Service approves reports out of human review and dispatches scheduled
// ones when their send time arrives.
type Service struct {
	source    CaseSource
	writer    CaseWriter
	messenger mailer.Messenger
	log       *zap.Logger
	now       func() time.Time
}

func NewService(source CaseSource, writer CaseWriter, messenger mailer.Messenger, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		source:    source,
		writer:    writer,
		messenger: messenger,
		log:       log,
		now:       time.Now,
	}
}

// WithClock overrides the time source, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ApproveParams records the reviewer's send-time choice for one case.
type ApproveParams struct {
	CaseID   string
	Mode     Mode
	CustomAt *time.Time
	Actor    string
}

// Approve books the approved report's send time and, for fast-track,
// dispatches it in the same call.
func (s *Service) Approve(ctx context.Context, params ApproveParams) (casefile.Case, error) {
	now := s.now()
	sendAt, err := Resolve(params.Mode, params.CustomAt, now)
	if err != nil {
		return casefile.Case{}, err
	}

	c, err := s.writer.ScheduleDelivery(ctx, params.CaseID, sendAt, params.Actor)
	if err != nil {
		return casefile.Case{}, err
	}

	if params.Mode == ModeFastTrack {
		return s.dispatch(ctx, c, params.Actor)
	}
	return c, nil
}

// DispatchResult summarises one pass over the scheduled reports.
type DispatchResult struct {
	Scanned int
	Sent    int
	Failed  int
}

// DispatchDue sends every report whose scheduled time has arrived. A
// failure on one case never stops the rest; the failed case keeps its
// schedule and is retried on the next pass.
func (s *Service) DispatchDue(ctx context.Context) (DispatchResult, error) {
	due, err := s.source.ListDueForDelivery(ctx, s.now())
	if err != nil {
		return DispatchResult{}, err
	}

	result := DispatchResult{Scanned: len(due)}
	for _, c := range due {
		if _, err := s.dispatch(ctx, c, ""); err != nil {
			result.Failed++
			s.log.Warn("report dispatch failed",
				zap.String("case_id", c.ID),
				zap.Error(err),
			)
			continue
		}
		result.Sent++
	}

	s.log.Info("delivery sweep complete",
		zap.Int("scanned", result.Scanned),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (s *Service) dispatch(ctx context.Context, c casefile.Case, actor string) (casefile.Case, error) {
	if c.ClientEmail == nil || *c.ClientEmail == "" {
		return casefile.Case{}, fmt.Errorf("delivery: case %s has no client email", c.ID)
	}

	subject, body := BuildReport(c)
	if err := s.messenger.Send(ctx, *c.ClientEmail, subject, body); err != nil {
		return casefile.Case{}, fmt.Errorf("delivery: send report for case %s: %w", c.ID, err)
	}

	delivered, err := s.writer.MarkDelivered(ctx, c.ID, actor)
	if err != nil {
		return casefile.Case{}, err
	}
	s.log.Info("report delivered",
		zap.String("case_id", c.ID),
		zap.String("to", *c.ClientEmail),
	)
	return delivered, nil
}

// BuildReport renders the recommendation email from the case's cached
// analysis results.
func BuildReport(c casefile.Case) (subject, body string) {
	subject = fmt.Sprintf("Your mortgage recommendation (%s)", c.Reference)

	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", c.ClientName)
	fmt.Fprintf(&b, "Please find below the recommendation for your %s enquiry (case %s).\n\n",
		strings.ReplaceAll(string(c.Category), "_", " "), c.Reference)
	fmt.Fprintf(&b, "Property value: £%.0f\nLoan amount: £%.0f\nLoan-to-value: %.1f%%\n\n",
		c.PropertyValue, c.LoanAmount, c.LTV)

	if len(c.Matched) > 0 {
		b.WriteString("Lenders likely to accept your application:\n")
		for _, m := range c.Matched {
			fmt.Fprintf(&b, "  - %s (confidence %d%%)\n", m.Name, m.Confidence)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("We were unable to identify a mainstream lender for this case; your adviser will discuss specialist options with you.\n\n")
	}

	if c.Deadline != nil {
		fmt.Fprintf(&b, "Your stated deadline is %s; please respond promptly so we can keep your application on track.\n\n",
			c.Deadline.Format("2 January 2006"))
	}

	b.WriteString("Please reply to confirm whether you would like to proceed.\n\nKind regards,\nYour advice team")
	return subject, b.String()
}
