package deadline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	items   []CaseDeadline
	updates map[string]Classification
	failFor map[string]error
	listErr error
}

func newFakeStore(items ...CaseDeadline) *fakeStore {
	return &fakeStore{
		items:   items,
		updates: make(map[string]Classification),
		failFor: make(map[string]error),
	}
}

func (f *fakeStore) ListOpenDeadlines(ctx context.Context) ([]CaseDeadline, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.items, nil
}

func (f *fakeStore) UpdateUrgency(ctx context.Context, caseID string, c Classification, at time.Time) error {
	if err := f.failFor[caseID]; err != nil {
		return err
	}
	f.updates[caseID] = c
	return nil
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestSweep_PersistsOnlyChanges(t *testing.T) {
	soon := now.Add(20 * 24 * time.Hour)
	overdue := now.Add(-48 * time.Hour)

	store := newFakeStore(
		// Already correct, untouched.
		CaseDeadline{CaseID: "fresh", Deadline: &soon, Urgency: strPtr("soon"), DaysRemaining: intPtr(20)},
		// Stale bucket.
		CaseDeadline{CaseID: "stale", Deadline: &overdue, Urgency: strPtr("critical"), DaysRemaining: intPtr(1)},
		// Never classified.
		CaseDeadline{CaseID: "new", Deadline: nil, Urgency: nil},
	)

	sweep := NewSweep(store, nil).WithClock(func() time.Time { return now })
	result, err := sweep.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, result.Scanned)
	assert.Equal(t, 2, result.Updated)
	assert.Equal(t, 0, result.Failed)

	assert.NotContains(t, store.updates, "fresh")
	assert.Equal(t, UrgencyOverdue, store.updates["stale"].Urgency)
	assert.Equal(t, UrgencyStandard, store.updates["new"].Urgency)
	assert.Nil(t, store.updates["new"].DaysLeft)
}

func TestSweep_FailureIsolation(t *testing.T) {
	overdueA := now.Add(-24 * time.Hour)
	overdueB := now.Add(-24 * time.Hour)

	store := newFakeStore(
		CaseDeadline{CaseID: "bad", Deadline: &overdueA},
		CaseDeadline{CaseID: "good", Deadline: &overdueB},
	)
	store.failFor["bad"] = errors.New("write failed")

	sweep := NewSweep(store, nil).WithClock(func() time.Time { return now })
	result, err := sweep.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Updated)
	assert.Contains(t, store.updates, "good")
}

func TestSweep_ListFailure(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("db down")

	sweep := NewSweep(store, nil)
	_, err := sweep.Run(context.Background())
	assert.Error(t, err)
}
