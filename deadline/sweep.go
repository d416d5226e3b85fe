package deadline

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// CaseDeadline is the slice of a case the urgency sweep reads: its deadline
// and the currently cached classification.
type CaseDeadline struct {
	CaseID        string
	Deadline      *time.Time
	Urgency       *string
	DaysRemaining *int
}

// Store is the persistence seam the sweep needs: list the open-stage cases
// and write back a changed classification.
type Store interface {
	ListOpenDeadlines(ctx context.Context) ([]CaseDeadline, error)
	UpdateUrgency(ctx context.Context, caseID string, c Classification, at time.Time) error
}

// SweepResult aggregates one urgency refresh pass.
type SweepResult struct {
	Scanned int
	Updated int
	Failed  int
}

// Sweep refreshes the cached urgency bucket of every open-stage case.
type Sweep struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

func NewSweep(store Store, log *zap.Logger) *Sweep {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweep{store: store, log: log, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (s *Sweep) WithClock(now func() time.Time) *Sweep {
	s.now = now
	return s
}

// Run reclassifies every open case and persists only the ones whose bucket
// or day count actually changed. A failure writing one case is logged and
// counted without aborting the pass.
func (s *Sweep) Run(ctx context.Context) (SweepResult, error) {
	items, err := s.store.ListOpenDeadlines(ctx)
	if err != nil {
		return SweepResult{}, err
	}

	now := s.now()
	result := SweepResult{Scanned: len(items)}

	for _, item := range items {
		cls := Classify(item.Deadline, now)
		if !changed(item, cls) {
			continue
		}
		if err := s.store.UpdateUrgency(ctx, item.CaseID, cls, now); err != nil {
			result.Failed++
			s.log.Warn("urgency update failed",
				zap.String("case_id", item.CaseID),
				zap.Error(err),
			)
			continue
		}
		result.Updated++
	}

	return result, nil
}

func changed(item CaseDeadline, cls Classification) bool {
	if item.Urgency == nil || Urgency(*item.Urgency) != cls.Urgency {
		return true
	}
	if (item.DaysRemaining == nil) != (cls.DaysLeft == nil) {
		return true
	}
	if item.DaysRemaining != nil && cls.DaysLeft != nil && *item.DaysRemaining != *cls.DaysLeft {
		return true
	}
	return false
}
