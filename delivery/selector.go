// Package delivery schedules approved reports and dispatches them when
// their send time arrives.
package delivery

import (
	"fmt"
	"time"
)

// Mode names one of the send-time choices offered at approval.
type Mode string

const (
	// ModeFastTrack sends the report immediately on approval.
	ModeFastTrack Mode = "fast_track"
	// ModeNextMorning sends at 09:00 on the next working day.
	ModeNextMorning Mode = "next_morning"
	// ModeTodayEOD sends at 17:00 today; only offered before 17:00.
	ModeTodayEOD Mode = "today_eod"
	// ModeCustom sends at an explicitly chosen time.
	ModeCustom Mode = "custom"
)

// Option is one offered send time.
type Option struct {
	Mode   Mode
	SendAt time.Time
	Label  string
}

// NextMorning returns 09:00 on the day after now, rolling Saturday and
// Sunday mornings forward to Monday.
func NextMorning(now time.Time) time.Time {
	day := now.AddDate(0, 0, 1)
	for day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
		day = day.AddDate(0, 0, 1)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, now.Location())
}

// Options lists the send times available at the given moment. The
// end-of-day slot disappears once 17:00 has passed.
func Options(now time.Time) []Option {
	opts := []Option{
		{Mode: ModeFastTrack, SendAt: now, Label: "Send immediately"},
		{Mode: ModeNextMorning, SendAt: NextMorning(now), Label: "Next working morning (9am)"},
	}
	eod := time.Date(now.Year(), now.Month(), now.Day(), 17, 0, 0, 0, now.Location())
	if now.Before(eod) {
		opts = append(opts, Option{Mode: ModeTodayEOD, SendAt: eod, Label: "Today at 5pm"})
	}
	return opts
}

// Resolve turns a chosen mode into a concrete send time. Custom requires
// an explicit time no earlier than now; today_eod is rejected after 17:00.
func Resolve(mode Mode, custom *time.Time, now time.Time) (time.Time, error) {
	switch mode {
	case ModeFastTrack:
		return now, nil
	case ModeNextMorning:
		return NextMorning(now), nil
	case ModeTodayEOD:
		eod := time.Date(now.Year(), now.Month(), now.Day(), 17, 0, 0, 0, now.Location())
		if !now.Before(eod) {
			return time.Time{}, fmt.Errorf("delivery: end-of-day slot has passed")
		}
		return eod, nil
	case ModeCustom:
		if custom == nil {
			return time.Time{}, fmt.Errorf("delivery: custom mode requires a send time")
		}
		if custom.Before(now) {
			return time.Time{}, fmt.Errorf("delivery: custom send time is in the past")
		}
		return *custom, nil
	default:
		return time.Time{}, fmt.Errorf("delivery: unknown mode %q", mode)
	}
}
