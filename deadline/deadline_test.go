package deadline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) *time.Time {
	t := now.Add(d)
	return &t
}

func TestClassify_NoDeadline(t *testing.T) {
	got := Classify(nil, now)
	assert.Equal(t, UrgencyStandard, got.Urgency)
	assert.Nil(t, got.DaysLeft)
}

func TestClassify_Buckets(t *testing.T) {
	cases := []struct {
		name     string
		deadline *time.Time
		wantDays int
		want     Urgency
	}{
		{"exactly now", at(0), 0, UrgencyCritical},
		{"one second past", at(-time.Second), -1, UrgencyOverdue},
		{"one day past", at(-25 * time.Hour), -2, UrgencyOverdue},
		{"partial day ahead counts full", at(time.Hour), 1, UrgencyCritical},
		{"seven days", at(7 * 24 * time.Hour), 7, UrgencyCritical},
		{"just over seven days", at(7*24*time.Hour + time.Minute), 8, UrgencySoon},
		{"thirty days", at(30 * 24 * time.Hour), 30, UrgencySoon},
		{"just over thirty days", at(30*24*time.Hour + time.Minute), 31, UrgencyStandard},
		{"ninety days", at(90 * 24 * time.Hour), 90, UrgencyStandard},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.deadline, now)
			require.NotNil(t, got.DaysLeft)
			assert.Equal(t, tc.wantDays, *got.DaysLeft)
			assert.Equal(t, tc.want, got.Urgency)
		})
	}
}
