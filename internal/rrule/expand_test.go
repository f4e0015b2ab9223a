package rrule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-mkcal/mkcal/internal/model"
)

func TestExpandWeeklyCount(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	dtstart := time.Date(2026, 1, 5, 14, 0, 0, 0, loc) // a Monday

	count := 4
	set := Set{RRule: &model.RecurrenceRule{
		Freq:     model.Weekly,
		Interval: 1,
		Count:    &count,
		ByDay:    []model.ByDay{{Day: model.Monday}},
	}}

	occs, limitHit, err := Expand(set, dtstart, dtstart, dtstart.AddDate(0, 0, 60))
	require.NoError(t, err)
	assert.False(t, limitHit)
	require.Len(t, occs, 4)
	for i, occ := range occs {
		assert.Equal(t, time.Monday, occ.In(loc).Weekday())
		if i > 0 {
			assert.Equal(t, 14, occs[i-1].In(loc).Hour())
		}
	}
}

func TestExpandRespectsExDate(t *testing.T) {
	dtstart := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	count := 3
	excluded := time.Date(2026, 1, 12, 9, 0, 0, 0, time.UTC)

	set := Set{
		RRule:   &model.RecurrenceRule{Freq: model.Daily, Interval: 7, Count: &count},
		ExDates: []time.Time{excluded},
	}
	occs, _, err := Expand(set, dtstart, dtstart, dtstart.AddDate(0, 0, 30))
	require.NoError(t, err)
	for _, occ := range occs {
		assert.False(t, occ.Equal(excluded))
	}
	assert.Len(t, occs, 2)
}

func TestBuildIgnoresUntilWhenCountSet(t *testing.T) {
	dtstart := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
	count := 10
	until := dtstart.AddDate(0, 0, 2) // would stop the series after 2 occurrences if honored

	r, err := Build(model.RecurrenceRule{Freq: model.Daily, Interval: 1, Count: &count, Until: &until}, dtstart)
	require.NoError(t, err)

	occs := r.All()
	assert.Len(t, occs, count)
}

func TestExpandMaxCap(t *testing.T) {
	dtstart := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	set := Set{RRule: &model.RecurrenceRule{Freq: model.Daily, Interval: 1}}
	_, limitHit, err := Expand(set, dtstart, dtstart, dtstart.AddDate(100, 0, 0))
	require.NoError(t, err)
	assert.True(t, limitHit)
}
