package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVTimezone = `BEGIN:VTIMEZONE
TZID:Fake/Offset
BEGIN:STANDARD
DTSTART:19700101T000000
TZOFFSETFROM:+0000
TZOFFSETTO:-0500
TZNAME:FAKE
END:STANDARD
END:VTIMEZONE`

func TestVTimezoneResolverFallsBackToEmbeddedBlock(t *testing.T) {
	r := VTimezoneResolver{Fallback: NoZoneResolver, Blocks: map[string]string{"Fake/Offset": testVTimezone}}

	loc, err := r.ResolveZone("Fake/Offset")
	require.NoError(t, err)
	_, offset := time.Now().In(loc).Zone()
	assert.Equal(t, -5*3600, offset)
}

func TestVTimezoneResolverPrefersFallback(t *testing.T) {
	real, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	r := VTimezoneResolver{
		Fallback: stubResolver{loc: real},
		Blocks:   map[string]string{"America/Chicago": testVTimezone},
	}

	loc, err := r.ResolveZone("America/Chicago")
	require.NoError(t, err)
	assert.Equal(t, real, loc)
}

func TestVTimezoneResolverUnknownID(t *testing.T) {
	r := VTimezoneResolver{Fallback: NoZoneResolver}
	_, err := r.ResolveZone("nope")
	assert.Error(t, err)
}

type stubResolver struct{ loc *time.Location }

func (s stubResolver) ResolveZone(string) (*time.Location, error) { return s.loc, nil }
