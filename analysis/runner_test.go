package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caseflow/casefile"
	"caseflow/lender"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeReader struct {
	cases map[string]casefile.Case
}

func (f *fakeReader) Get(ctx context.Context, id string) (casefile.Case, error) {
	c, ok := f.cases[id]
	if !ok {
		return casefile.Case{}, casefile.ErrNotFound
	}
	return c, nil
}

type fakeWriter struct {
	reader      *fakeReader
	transitions []casefile.Stage
	saved       *casefile.Derived
	failedWith  error
}

func (f *fakeWriter) Transition(ctx context.Context, params casefile.TransitionParams) (casefile.Case, error) {
	c := f.reader.cases[params.CaseID]
	c.Stage = params.To
	f.reader.cases[params.CaseID] = c
	f.transitions = append(f.transitions, params.To)
	return c, nil
}

func (f *fakeWriter) SaveDerived(ctx context.Context, caseID string, derived casefile.Derived) (casefile.Case, error) {
	f.saved = &derived
	c := f.reader.cases[caseID]
	c.AnalysisStatus = casefile.AnalysisComplete
	f.reader.cases[caseID] = c
	return c, nil
}

func (f *fakeWriter) MarkAnalysisFailed(ctx context.Context, caseID string, cause error) error {
	f.failedWith = cause
	return nil
}

type fakeCatalog struct {
	lenders []lender.Lender
	err     error
}

func (f *fakeCatalog) ListActive(ctx context.Context, category string) ([]lender.Lender, error) {
	return f.lenders, f.err
}

func completeCase(id string) casefile.Case {
	email := id + "@example.com"
	return casefile.Case{
		ID:              id,
		Reference:       "MC-" + id,
		ClientName:      "Jordan Client",
		ClientEmail:     &email,
		ClientAge:       40,
		PropertyValue:   400000,
		LoanAmount:      300000,
		LTV:             75,
		AnnualIncome:    62000,
		IncomeType:      casefile.IncomeEmployed,
		Category:        casefile.CategoryResidential,
		TimeSensitivity: casefile.SensitivityStandard,
		TermYears:       25,
		Stage:           casefile.StageIntakeReceived,
	}
}

func catalogLender(name string) lender.Lender {
	return lender.Lender{
		ID:                   "lender-" + name,
		Name:                 name,
		Category:             "residential",
		MaxLTVResidential:    85,
		MinIncomeResidential: 25000,
		SelfEmployedAccepted: true,
		MaxAgeAtTermEnd:      75,
		Active:               true,
	}
}

func newRunner(reader *fakeReader, writer *fakeWriter, catalog *fakeCatalog) *Runner {
	return NewRunner(reader, writer, catalog, nil).
		WithClock(func() time.Time { return now })
}

func TestRun_CompleteIntake(t *testing.T) {
	reader := &fakeReader{cases: map[string]casefile.Case{"c1": completeCase("c1")}}
	writer := &fakeWriter{reader: reader}
	catalog := &fakeCatalog{lenders: []lender.Lender{catalogLender("Alpha Bank")}}

	result, err := newRunner(reader, writer, catalog).Run(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, []casefile.Stage{
		casefile.StageMarketAnalysis,
		casefile.StageHumanReview,
	}, writer.transitions)

	require.NotNil(t, writer.saved)
	assert.Equal(t, 15, writer.saved.TriageScore) // +20 LTV, -5 income
	assert.Equal(t, "strong", writer.saved.TriageRating)
	require.Len(t, writer.saved.Matched, 1)
	assert.Equal(t, "Alpha Bank", writer.saved.Matched[0].Name)
	assert.Equal(t, "standard", writer.saved.Urgency)
	assert.Nil(t, writer.saved.DaysRemaining)

	assert.Equal(t, casefile.StageHumanReview, result.Stage)
}

func TestRun_IncompleteIntakeGoesToDataCompletion(t *testing.T) {
	c := completeCase("c1")
	c.AnnualIncome = 0
	c.TermYears = 0
	reader := &fakeReader{cases: map[string]casefile.Case{"c1": c}}
	writer := &fakeWriter{reader: reader}

	result, err := newRunner(reader, writer, &fakeCatalog{}).Run(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, []casefile.Stage{casefile.StageDataCompletion}, writer.transitions)
	assert.Nil(t, writer.saved, "no analysis runs on incomplete data")
	assert.Equal(t, casefile.StageDataCompletion, result.Stage)
}

func TestRun_DataCompletionStillMissingStaysPut(t *testing.T) {
	c := completeCase("c1")
	c.Stage = casefile.StageDataCompletion
	c.AnnualIncome = 0
	reader := &fakeReader{cases: map[string]casefile.Case{"c1": c}}
	writer := &fakeWriter{reader: reader}

	result, err := newRunner(reader, writer, &fakeCatalog{}).Run(context.Background(), "c1")
	require.NoError(t, err)

	assert.Empty(t, writer.transitions)
	assert.Equal(t, casefile.StageDataCompletion, result.Stage)
}

func TestRun_CompletedDataMovesOn(t *testing.T) {
	c := completeCase("c1")
	c.Stage = casefile.StageDataCompletion
	reader := &fakeReader{cases: map[string]casefile.Case{"c1": c}}
	writer := &fakeWriter{reader: reader}
	catalog := &fakeCatalog{lenders: []lender.Lender{catalogLender("Alpha Bank")}}

	result, err := newRunner(reader, writer, catalog).Run(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, []casefile.Stage{
		casefile.StageMarketAnalysis,
		casefile.StageHumanReview,
	}, writer.transitions)
	assert.Equal(t, casefile.StageHumanReview, result.Stage)
}

func TestRun_PausedCaseRefused(t *testing.T) {
	c := completeCase("c1")
	c.Paused = true
	reader := &fakeReader{cases: map[string]casefile.Case{"c1": c}}
	writer := &fakeWriter{reader: reader}

	_, err := newRunner(reader, writer, &fakeCatalog{}).Run(context.Background(), "c1")
	assert.ErrorIs(t, err, casefile.ErrCasePaused)
	assert.Empty(t, writer.transitions)
}

func TestRun_CatalogFailureMarksAnalysisFailed(t *testing.T) {
	reader := &fakeReader{cases: map[string]casefile.Case{"c1": completeCase("c1")}}
	writer := &fakeWriter{reader: reader}
	catalog := &fakeCatalog{err: errors.New("catalog unavailable")}

	_, err := newRunner(reader, writer, catalog).Run(context.Background(), "c1")
	require.Error(t, err)

	assert.NotNil(t, writer.failedWith)
	assert.Nil(t, writer.saved)
	// The case reached market_analysis and stays there for a retry.
	assert.Equal(t, []casefile.Stage{casefile.StageMarketAnalysis}, writer.transitions)
}

func TestRun_HumanReviewRecomputesInPlace(t *testing.T) {
	c := completeCase("c1")
	c.Stage = casefile.StageHumanReview
	reader := &fakeReader{cases: map[string]casefile.Case{"c1": c}}
	writer := &fakeWriter{reader: reader}
	catalog := &fakeCatalog{lenders: []lender.Lender{catalogLender("Alpha Bank")}}

	result, err := newRunner(reader, writer, catalog).Run(context.Background(), "c1")
	require.NoError(t, err)

	assert.Empty(t, writer.transitions, "recompute under review does not move the stage")
	assert.NotNil(t, writer.saved)
	assert.Equal(t, casefile.StageHumanReview, result.Stage)
}

func TestRun_RejectedStage(t *testing.T) {
	c := completeCase("c1")
	c.Stage = casefile.StageAwaitingDecision
	reader := &fakeReader{cases: map[string]casefile.Case{"c1": c}}
	writer := &fakeWriter{reader: reader}

	_, err := newRunner(reader, writer, &fakeCatalog{}).Run(context.Background(), "c1")
	assert.ErrorIs(t, err, casefile.ErrStageMismatch)
}

func TestDerive_PartitionsLenders(t *testing.T) {
	tight := catalogLender("Tight Bank")
	tight.MaxLTVResidential = 70

	c := completeCase("c1")
	reader := &fakeReader{cases: map[string]casefile.Case{"c1": c}}
	writer := &fakeWriter{reader: reader}
	catalog := &fakeCatalog{lenders: []lender.Lender{catalogLender("Alpha Bank"), tight}}

	derived, err := newRunner(reader, writer, catalog).Derive(context.Background(), c)
	require.NoError(t, err)

	require.Len(t, derived.Matched, 1)
	assert.Equal(t, "Alpha Bank", derived.Matched[0].Name)
	assert.NotZero(t, derived.Matched[0].Confidence)
	require.Len(t, derived.Rejected, 1)
	assert.Equal(t, "Tight Bank", derived.Rejected[0].Name)
	assert.NotEmpty(t, derived.Rejected[0].Reasons)
}

func TestDerive_DeadlineClassified(t *testing.T) {
	c := completeCase("c1")
	deadline := now.Add(5 * 24 * time.Hour)
	c.Deadline = &deadline

	reader := &fakeReader{cases: map[string]casefile.Case{"c1": c}}
	writer := &fakeWriter{reader: reader}
	catalog := &fakeCatalog{}

	derived, err := newRunner(reader, writer, catalog).Derive(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, "critical", derived.Urgency)
	require.NotNil(t, derived.DaysRemaining)
	assert.Equal(t, 5, *derived.DaysRemaining)
}

func TestMissingFields(t *testing.T) {
	c := completeCase("c1")
	assert.Empty(t, MissingFields(c))

	c.ClientName = ""
	c.Category = ""
	c.ClientAge = 0
	missing := MissingFields(c)
	assert.Contains(t, missing, "client_name")
	assert.Contains(t, missing, "category")
	assert.Contains(t, missing, "client_age")
}
