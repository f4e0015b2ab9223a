package codec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-mkcal/mkcal/internal/model"
)

func TestEncodeDecodeEventRoundTrip(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)

	inc := &model.Incidence{
		Header: model.Header{
			UID:         "event-1",
			NotebookUID: "nb-1",
			Summary:     "Standup",
			Categories:  []string{"work", "daily"},
			HasGeo:      true,
			Latitude:    41.8781,
			Longitude:   -87.6298,
			Created:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		Kind: model.KindEvent,
		Event: &model.EventFields{
			DtStart: time.Date(2026, 3, 2, 9, 0, 0, 0, loc),
			DtEnd:   time.Date(2026, 3, 2, 9, 30, 0, 0, loc),
		},
	}

	row := EncodeComponent(inc)
	decoded := DecodeComponent(row, model.NoZoneResolver)

	assert.Equal(t, inc.UID, decoded.UID)
	assert.Equal(t, inc.Categories, decoded.Categories)
	assert.True(t, decoded.HasGeo)
	assert.InDelta(t, inc.Latitude, decoded.Latitude, 0.0001)
	assert.True(t, inc.Event.DtStart.Equal(decoded.Event.DtStart))
	assert.True(t, inc.Event.DtEnd.Equal(decoded.Event.DtEnd))
}

func TestEncodeDecodeAllDayEventLegacyConvention(t *testing.T) {
	start := time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 7, 4, 0, 0, 0, 0, time.UTC) // single-day all-day event

	inc := &model.Incidence{
		Header: model.Header{UID: "allday-1", NotebookUID: "nb-1", Summary: "Holiday"},
		Kind:   model.KindEvent,
		Event:  &model.EventFields{DtStart: start, DtEnd: end, AllDay: true},
	}

	row := EncodeComponent(inc)
	// the stored dtend is one day past the last visible day
	assert.Equal(t, start.AddDate(0, 0, 1).Unix(), row.DtEndUTC)

	decoded := DecodeComponent(row, model.NoZoneResolver)
	assert.True(t, end.Equal(decoded.Event.DtEnd))
}

func TestGeoSentinelNotTrustedWithoutHasGeo(t *testing.T) {
	inc := &model.Incidence{
		Header: model.Header{UID: "no-geo", NotebookUID: "nb-1", HasGeo: false},
		Kind:   model.KindEvent,
		Event:  &model.EventFields{DtStart: time.Now().UTC()},
	}
	row := EncodeComponent(inc)
	assert.Equal(t, geoUnset, row.Latitude)
	assert.Equal(t, geoUnset, row.Longitude)

	decoded := DecodeComponent(row, model.NoZoneResolver)
	assert.False(t, decoded.HasGeo)
	assert.Zero(t, decoded.Latitude)
}

func TestEncodeDecodeRRule(t *testing.T) {
	count := 5
	rule := model.RecurrenceRule{
		Freq:     model.Weekly,
		Interval: 2,
		Count:    &count,
		ByDay: []model.ByDay{
			{Ordinal: 0, Day: model.Monday},
			{Ordinal: -1, Day: model.Friday},
		},
	}
	encoded := EncodeRRule(rule)
	decoded, err := DecodeRRule(encoded)
	require.NoError(t, err)

	assert.Equal(t, rule.Freq, decoded.Freq)
	assert.Equal(t, rule.Interval, decoded.Interval)
	require.NotNil(t, decoded.Count)
	assert.Equal(t, *rule.Count, *decoded.Count)
	assert.Equal(t, rule.ByDay, decoded.ByDay)
}

func TestEncodeRRuleDropsUntilWhenCountSet(t *testing.T) {
	count := 5
	until := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rule := model.RecurrenceRule{Freq: model.Daily, Interval: 1, Count: &count, Until: &until}

	encoded := EncodeRRule(rule)
	assert.Contains(t, encoded, "COUNT=5")
	assert.NotContains(t, encoded, "UNTIL=")

	decoded, err := DecodeRRule(encoded)
	require.NoError(t, err)
	require.NotNil(t, decoded.Count)
	assert.Nil(t, decoded.Until)
}

func TestDecodeRRuleDropsUntilWhenBothPresentOnLegacyRow(t *testing.T) {
	decoded, err := DecodeRRule("FREQ=DAILY;COUNT=3;UNTIL=1767225600")
	require.NoError(t, err)
	require.NotNil(t, decoded.Count)
	assert.Nil(t, decoded.Until)
}

func TestEncodeDecodeTodo(t *testing.T) {
	inc := &model.Incidence{
		Header: model.Header{UID: "todo-1", NotebookUID: "nb-1", Summary: "Write report"},
		Kind:   model.KindTodo,
		Todo: &model.TodoFields{
			Due:             time.Date(2026, 5, 1, 17, 0, 0, 0, time.UTC),
			PercentComplete: 40,
			Priority:        3,
		},
	}
	row := EncodeComponent(inc)
	decoded := DecodeComponent(row, model.NoZoneResolver)

	require.NotNil(t, decoded.Todo)
	assert.Equal(t, 40, decoded.Todo.PercentComplete)
	assert.Equal(t, 3, decoded.Todo.Priority)
	assert.True(t, inc.Todo.Due.Equal(decoded.Todo.Due))
}
