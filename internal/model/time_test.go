package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeTimestampZoned(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	original := time.Date(2026, 3, 15, 9, 30, 0, 0, loc)
	ts := EncodeTimestamp(original, false)
	assert.Equal(t, "America/New_York", ts.Zone)

	decoded := DecodeTimestamp(ts, NoZoneResolver)
	assert.True(t, original.Equal(decoded))
}

func TestEncodeDecodeTimestampAllDay(t *testing.T) {
	day := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	ts := EncodeTimestamp(day, true)
	assert.True(t, ts.AllDay())

	decoded := DecodeTimestamp(ts, NoZoneResolver)
	assert.Equal(t, day.Year(), decoded.Year())
	assert.Equal(t, day.YearDay(), decoded.YearDay())
}

func TestDecodeTimestampUnknownZoneFallsBackToLocal(t *testing.T) {
	ts := Timestamp{SecondsUTC: 1000, SecondsLocal: 2000, Zone: "Not/AZone"}
	decoded := DecodeTimestamp(ts, NoZoneResolver)
	assert.Equal(t, time.Unix(2000, 0).UTC(), decoded)
}

func TestTimestampIsZero(t *testing.T) {
	assert.True(t, Timestamp{}.IsZero())
	assert.False(t, Timestamp{SecondsUTC: 1}.IsZero())
}

type fakeResolver struct {
	loc *time.Location
}

func (f fakeResolver) ResolveZone(string) (*time.Location, error) { return f.loc, nil }

func TestDecodeTimestampUsesResolver(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	original := time.Date(2026, 6, 1, 14, 0, 0, 0, loc)
	ts := EncodeTimestamp(original, false)
	ts.Zone = "custom-vtimezone-id"

	decoded := DecodeTimestamp(ts, fakeResolver{loc: loc})
	assert.True(t, original.Equal(decoded))
}
