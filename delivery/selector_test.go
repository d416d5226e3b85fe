package delivery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2025-03-10 is a Monday.
var monday = time.Date(2025, 3, 10, 11, 30, 0, 0, time.UTC)

func TestNextMorning(t *testing.T) {
	got := NextMorning(monday)
	assert.Equal(t, time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC), got)

	friday := time.Date(2025, 3, 14, 16, 0, 0, 0, time.UTC)
	got = NextMorning(friday)
	assert.Equal(t, time.Date(2025, 3, 17, 9, 0, 0, 0, time.UTC), got, "weekend rolls to Monday")

	saturday := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	got = NextMorning(saturday)
	assert.Equal(t, time.Date(2025, 3, 17, 9, 0, 0, 0, time.UTC), got)
}

func TestOptions_EODOnlyBeforeFive(t *testing.T) {
	opts := Options(monday)
	require.Len(t, opts, 3)
	assert.Equal(t, ModeFastTrack, opts[0].Mode)
	assert.Equal(t, ModeNextMorning, opts[1].Mode)
	assert.Equal(t, ModeTodayEOD, opts[2].Mode)
	assert.Equal(t, 17, opts[2].SendAt.Hour())

	evening := time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC)
	opts = Options(evening)
	require.Len(t, opts, 2, "end-of-day slot disappears at 17:00")
}

func TestResolve(t *testing.T) {
	got, err := Resolve(ModeFastTrack, nil, monday)
	require.NoError(t, err)
	assert.Equal(t, monday, got)

	got, err = Resolve(ModeNextMorning, nil, monday)
	require.NoError(t, err)
	assert.Equal(t, NextMorning(monday), got)

	got, err = Resolve(ModeTodayEOD, nil, monday)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC), got)

	evening := time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)
	_, err = Resolve(ModeTodayEOD, nil, evening)
	assert.Error(t, err, "end-of-day is rejected after 17:00")

	custom := monday.Add(26 * time.Hour)
	got, err = Resolve(ModeCustom, &custom, monday)
	require.NoError(t, err)
	assert.Equal(t, custom, got)

	past := monday.Add(-time.Hour)
	_, err = Resolve(ModeCustom, &past, monday)
	assert.Error(t, err)

	_, err = Resolve(ModeCustom, nil, monday)
	assert.Error(t, err)

	_, err = Resolve(Mode("telepathy"), nil, monday)
	assert.Error(t, err)
}
