// Package model holds the calendar data types shared by the codec, the
// in-memory calendar, and the storage facade.
package model

import "time"

// FloatingDate is the sentinel zone id for an all-day (date-only) value.
// An empty zone id means floating clock time (no date-only meaning).
const FloatingDate = "FloatingDate"

// Timestamp is the two-integer-plus-zone encoding described by the
// storage schema: seconds_utc, seconds_local, and an IANA zone id (or
// FloatingDate, or empty for floating clock time).
type Timestamp struct {
	SecondsUTC   int64
	SecondsLocal int64
	Zone         string
}

// IsZero reports whether the timestamp carries no information at all.
func (t Timestamp) IsZero() bool {
	return t.SecondsUTC == 0 && t.SecondsLocal == 0 && t.Zone == ""
}

// AllDay reports whether the timestamp represents a floating date.
func (t Timestamp) AllDay() bool {
	return t.Zone == FloatingDate
}

// clockSeconds treats y/m/d/h/m/s as if they were UTC, matching the
// source engine's "interpret the wall clock as UTC" origin-time trick.
func clockSeconds(t time.Time) int64 {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC).Unix()
}

// ToOriginTime converts a zoned time.Time into UTC epoch seconds.
func ToOriginTime(t time.Time) int64 {
	return t.UTC().Unix()
}

// ToLocalOriginTime converts a zoned time.Time into the clock-time
// projection used for seconds_local: the wall-clock reading of t in
// its own location, reinterpreted as UTC.
func ToLocalOriginTime(t time.Time) int64 {
	return clockSeconds(t)
}

// EncodeTimestamp builds the on-disk triplet for a zoned instant. A
// zero time.Time encodes to a zero Timestamp (the "unset" sentinel).
func EncodeTimestamp(t time.Time, allDay bool) Timestamp {
	if t.IsZero() {
		return Timestamp{}
	}
	if allDay {
		return Timestamp{
			SecondsUTC:   clockSeconds(t),
			SecondsLocal: clockSeconds(t),
			Zone:         FloatingDate,
		}
	}
	zone := ""
	if name, _ := t.Zone(); name != "" && name != "UTC" && t.Location() != time.Local {
		zone = t.Location().String()
	} else if t.Location() == time.Local {
		zone = ""
	}
	return Timestamp{
		SecondsUTC:   ToOriginTime(t),
		SecondsLocal: clockSeconds(t),
		Zone:         zone,
	}
}

// ZoneResolver offers a fallback IANA zone when a stored zone id can't
// be resolved directly (e.g. an old alias, or a zone known only via the
// calendar's embedded VTIMEZONE block). Implemented externally per
// spec.md §6; core code only ever reads through this narrow interface.
type ZoneResolver interface {
	ResolveZone(id string) (*time.Location, error)
}

// noResolver never resolves anything; used when the caller supplies none.
type noResolver struct{}

func (noResolver) ResolveZone(string) (*time.Location, error) { return nil, errUnresolvedZone }

var errUnresolvedZone = &zoneError{"zone id not resolvable"}

type zoneError struct{ msg string }

func (e *zoneError) Error() string { return e.msg }

// NoZoneResolver is the default, always-failing ZoneResolver.
var NoZoneResolver ZoneResolver = noResolver{}

// DecodeTimestamp reconstructs a zoned time.Time (or a date, or a
// clock-time value) from the on-disk triplet, per spec.md §3's decode
// rules: empty zone -> clock time; FloatingDate -> date; a valid zone
// -> convert from UTC seconds; unknown zone -> fall back to
// seconds_local interpreted as clock time.
func DecodeTimestamp(ts Timestamp, resolver ZoneResolver) time.Time {
	if ts.IsZero() {
		return time.Time{}
	}
	switch {
	case ts.Zone == "":
		return time.Unix(ts.SecondsLocal, 0).UTC()
	case ts.Zone == FloatingDate:
		return time.Unix(ts.SecondsLocal, 0).UTC()
	default:
		if resolver == nil {
			resolver = NoZoneResolver
		}
		loc, err := time.LoadLocation(ts.Zone)
		if err != nil || loc == nil {
			loc, err = resolver.ResolveZone(ts.Zone)
		}
		if err != nil || loc == nil {
			return time.Unix(ts.SecondsLocal, 0).UTC()
		}
		return time.Unix(ts.SecondsUTC, 0).In(loc)
	}
}
