package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(n int) time.Time {
	return time.Date(2026, 1, n, 0, 0, 0, 0, time.UTC)
}

func TestMissingRangesFillsGapBetweenTwoLoadedWindows(t *testing.T) {
	s := openTestStorage(t)
	s.loadedRanges = []rangeWindow{
		{from: day(1), to: day(10)},
		{from: day(20), to: day(30)},
	}

	gaps := s.missingRanges(day(5), day(25))
	require.Len(t, gaps, 1)
	assert.True(t, gaps[0].from.Equal(day(10).Add(time.Nanosecond)))
	assert.True(t, gaps[0].to.Equal(day(20).Add(-time.Nanosecond)))
}

func TestMissingRangesEmptyWhenFullyCovered(t *testing.T) {
	s := openTestStorage(t)
	s.loadedRanges = []rangeWindow{{from: day(1), to: day(30)}}

	assert.Empty(t, s.missingRanges(day(5), day(10)))
}

func TestLoadRangeOnlyLoadsMissingSubRange(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()
	nb := s.Notebooks()[0]

	save := func(summary string, start time.Time) {
		require.NoError(t, s.Save(ctx, &Incidence{
			Header: Header{NotebookUID: nb.UID, Summary: summary},
			Kind:   KindEvent,
			Event:  &EventFields{DtStart: start, DtEnd: start.Add(time.Hour)},
		}))
	}
	save("early", day(2))
	save("middle", day(15))
	save("late", day(25))

	_, _, err := s.LoadRange(ctx, day(1), day(10))
	require.NoError(t, err)
	_, _, err = s.LoadRange(ctx, day(20), day(30))
	require.NoError(t, err)
	require.Len(t, s.loadedRanges, 2)

	instances, _, err := s.LoadRange(ctx, day(1), day(30))
	require.NoError(t, err)
	require.Len(t, instances, 3)
	assert.Empty(t, s.missingRanges(day(1), day(30)))
}
