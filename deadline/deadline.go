// Package deadline classifies how much time is left before a case's
// client-stated deadline and keeps the cached urgency of live cases fresh.
package deadline

import (
	"math"
	"time"
)

// Urgency buckets the remaining time before a deadline.
type Urgency string

const (
	UrgencyOverdue  Urgency = "overdue"
	UrgencyCritical Urgency = "critical"
	UrgencySoon     Urgency = "soon"
	UrgencyStandard Urgency = "standard"
)

// Classification is the outcome for a single case. DaysLeft is nil when no
// deadline is set; negative values mean the deadline has passed.
type Classification struct {
	Urgency  Urgency
	DaysLeft *int
}

// Classify buckets the deadline relative to now. A missing deadline is
// standard urgency with no day count. Day counting rounds away from "now":
// any future remainder counts as a full day ahead, any past remainder as a
// full day overdue.
func Classify(deadline *time.Time, now time.Time) Classification {
	if deadline == nil {
		return Classification{Urgency: UrgencyStandard}
	}

	hours := deadline.Sub(now).Hours()
	var days int
	if hours >= 0 {
		days = int(math.Ceil(hours / 24))
	} else {
		days = int(math.Floor(hours / 24))
	}

	return Classification{Urgency: bucket(days), DaysLeft: &days}
}

func bucket(daysLeft int) Urgency {
	switch {
	case daysLeft < 0:
		return UrgencyOverdue
	case daysLeft <= 7:
		return UrgencyCritical
	case daysLeft <= 30:
		return UrgencySoon
	default:
		return UrgencyStandard
	}
}
