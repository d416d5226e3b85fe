package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/casefile"
	"caseflow/mailer"
)

type fakeSource struct {
	due []casefile.Case
	err error
}

func (f *fakeSource) Get(ctx context.Context, id string) (casefile.Case, error) {
	for _, c := range f.due {
		if c.ID == id {
			return c, nil
		}
	}
	return casefile.Case{}, casefile.ErrNotFound
}

func (f *fakeSource) ListDueForDelivery(ctx context.Context, now time.Time) ([]casefile.Case, error) {
	return f.due, f.err
}

type fakeWriter struct {
	scheduled map[string]time.Time
	delivered []string
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{scheduled: make(map[string]time.Time)}
}

func (f *fakeWriter) ScheduleDelivery(ctx context.Context, caseID string, sendAt time.Time, actor string) (casefile.Case, error) {
	f.scheduled[caseID] = sendAt
	email := caseID + "@example.com"
	return casefile.Case{
		ID:              caseID,
		Reference:       "MC-" + caseID,
		ClientName:      "Jordan Client",
		ClientEmail:     &email,
		Stage:           casefile.StagePendingDelivery,
		ScheduledSendAt: &sendAt,
	}, nil
}

func (f *fakeWriter) MarkDelivered(ctx context.Context, caseID string, actor string) (casefile.Case, error) {
	f.delivered = append(f.delivered, caseID)
	return casefile.Case{ID: caseID, Stage: casefile.StageAwaitingDecision}, nil
}

func reviewedCase(id string) casefile.Case {
	email := id + "@example.com"
	rating := "strong"
	return casefile.Case{
		ID:            id,
		Reference:     "MC-" + id,
		ClientName:    "Jordan Client",
		ClientEmail:   &email,
		Category:      casefile.CategoryResidential,
		PropertyValue: 400000,
		LoanAmount:    300000,
		LTV:           75,
		Stage:         casefile.StagePendingDelivery,
		TriageRating:  &rating,
		Matched: []casefile.LenderDecision{
			{Name: "Alpha Bank", Confidence: 85},
		},
	}
}

func newService(source *fakeSource, writer *fakeWriter, msgr mailer.Messenger) *Service {
	return NewService(source, writer, msgr, nil).
		WithClock(func() time.Time { return monday })
}

func TestApprove_SchedulesForLater(t *testing.T) {
	writer := newFakeWriter()
	recorder := mailer.NewRecorder()
	svc := newService(&fakeSource{}, writer, recorder)

	c, err := svc.Approve(context.Background(), ApproveParams{
		CaseID: "case-1",
		Mode:   ModeNextMorning,
		Actor:  "adviser-1",
	})
	require.NoError(t, err)

	assert.Equal(t, NextMorning(monday), writer.scheduled["case-1"])
	assert.Empty(t, recorder.Sent, "nothing goes out until the send time")
	assert.Empty(t, writer.delivered)
	assert.Equal(t, casefile.StagePendingDelivery, c.Stage)
}

func TestApprove_FastTrackDispatchesImmediately(t *testing.T) {
	writer := newFakeWriter()
	recorder := mailer.NewRecorder()
	svc := newService(&fakeSource{}, writer, recorder)

	c, err := svc.Approve(context.Background(), ApproveParams{
		CaseID: "case-1",
		Mode:   ModeFastTrack,
		Actor:  "adviser-1",
	})
	require.NoError(t, err)

	require.Len(t, recorder.Sent, 1)
	assert.Equal(t, "case-1@example.com", recorder.Sent[0].To)
	assert.Equal(t, []string{"case-1"}, writer.delivered)
	assert.Equal(t, casefile.StageAwaitingDecision, c.Stage)
}

func TestApprove_InvalidMode(t *testing.T) {
	svc := newService(&fakeSource{}, newFakeWriter(), mailer.NewRecorder())

	_, err := svc.Approve(context.Background(), ApproveParams{CaseID: "case-1", Mode: "telepathy"})
	assert.Error(t, err)
}

func TestDispatchDue(t *testing.T) {
	source := &fakeSource{due: []casefile.Case{reviewedCase("a"), reviewedCase("b")}}
	writer := newFakeWriter()
	recorder := mailer.NewRecorder()

	result, err := newService(source, writer, recorder).DispatchDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.Scanned)
	assert.Equal(t, 2, result.Sent)
	assert.Equal(t, []string{"a", "b"}, writer.delivered)
	require.Len(t, recorder.Sent, 2)
	assert.Contains(t, recorder.Sent[0].Body, "Alpha Bank")
}

func TestDispatchDue_FailureIsolation(t *testing.T) {
	source := &fakeSource{due: []casefile.Case{reviewedCase("bad"), reviewedCase("good")}}
	writer := newFakeWriter()
	recorder := mailer.NewRecorder()
	recorder.FailFor = map[string]error{"bad@example.com": errors.New("smtp timeout")}

	result, err := newService(source, writer, recorder).DispatchDue(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Sent)
	assert.Equal(t, []string{"good"}, writer.delivered, "failed case keeps its schedule")
}

func TestBuildReport(t *testing.T) {
	c := reviewedCase("a")
	deadline := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	c.Deadline = &deadline

	subject, body := BuildReport(c)
	assert.Contains(t, subject, c.Reference)
	assert.Contains(t, body, "Alpha Bank")
	assert.Contains(t, body, "85%")
	assert.Contains(t, body, "1 April 2025")

	c.Matched = nil
	_, body = BuildReport(c)
	assert.Contains(t, body, "specialist options")
}
