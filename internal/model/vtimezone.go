package model

import (
	"strconv"
	"strings"
	"time"
)

// VTimezoneResolver resolves a zone id against a caller-supplied
// Fallback first (the IANA database wrapped in a ZoneResolver, or
// whatever the embedder offers), then against a table of embedded
// VTIMEZONE blocks keyed by tzid — the last-resort fallback spec.md §6
// describes for zone ids that only ever existed inside an imported
// .ics file.
//
// Only the standard-time UTC offset is extracted from a block (the
// TZOFFSETTO of its first STANDARD sub-component); full RFC 5545
// VTIMEZONE parsing, including DST transition rules, is out of scope,
// so the resolved location is a fixed offset rather than a genuine
// IANA zone.
type VTimezoneResolver struct {
	Fallback ZoneResolver
	Blocks   map[string]string // tzid -> VTIMEZONE ics text
}

func (r VTimezoneResolver) ResolveZone(id string) (*time.Location, error) {
	if r.Fallback != nil {
		if loc, err := r.Fallback.ResolveZone(id); err == nil && loc != nil {
			return loc, nil
		}
	}
	block, ok := r.Blocks[id]
	if !ok {
		return nil, errUnresolvedZone
	}
	offset, err := parseVTimezoneOffset(block)
	if err != nil {
		return nil, err
	}
	return time.FixedZone(id, offset), nil
}

// parseVTimezoneOffset scans an embedded VTIMEZONE block for the
// TZOFFSETTO property of its first STANDARD sub-component and returns
// its value in seconds east of UTC.
func parseVTimezoneOffset(block string) (int, error) {
	inStandard := false
	for _, rawLine := range strings.Split(block, "\n") {
		line := strings.TrimSpace(rawLine)
		switch line {
		case "BEGIN:STANDARD":
			inStandard = true
			continue
		case "END:STANDARD":
			inStandard = false
			continue
		}
		if !inStandard {
			continue
		}
		value, ok := strings.CutPrefix(line, "TZOFFSETTO:")
		if !ok {
			continue
		}
		return parseUTCOffset(value)
	}
	return 0, errUnresolvedZone
}

// parseUTCOffset parses a VTIMEZONE TZOFFSETTO value (±HHMM or
// ±HHMMSS) into seconds east of UTC.
func parseUTCOffset(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errUnresolvedZone
	}
	sign := 1
	switch s[0] {
	case '+':
		s = s[1:]
	case '-':
		sign = -1
		s = s[1:]
	}
	if len(s) < 4 {
		return 0, errUnresolvedZone
	}
	hours, err := strconv.Atoi(s[0:2])
	if err != nil {
		return 0, errUnresolvedZone
	}
	minutes, err := strconv.Atoi(s[2:4])
	if err != nil {
		return 0, errUnresolvedZone
	}
	seconds := 0
	if len(s) >= 6 {
		seconds, _ = strconv.Atoi(s[4:6])
	}
	return sign * (hours*3600 + minutes*60 + seconds), nil
}
