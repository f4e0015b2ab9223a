// Package ical defines the narrow interface through which mkcal
// consumes iCalendar text encoding/decoding. VTIMEZONE resolution goes
// through model.ZoneResolver instead.
// The codec itself is out of scope: callers supply an implementation
// (or use the stub here for tests that don't exercise import/export).
package ical

import (
	"fmt"

	"github.com/go-mkcal/mkcal/internal/model"
)

// Codec converts between raw .ics text and the decoded incidences it
// describes.
type Codec interface {
	FromICSData(data []byte) ([]*model.Incidence, error)
	ToICSData(incidences []*model.Incidence) ([]byte, error)
}

// StubCodec rejects every call; useful as a placeholder default so a
// storage user that never imports/exports ICS doesn't need to wire a
// real codec.
type StubCodec struct{}

func (StubCodec) FromICSData([]byte) ([]*model.Incidence, error) {
	return nil, fmt.Errorf("ical: no Codec configured")
}

func (StubCodec) ToICSData([]*model.Incidence) ([]byte, error) {
	return nil, fmt.Errorf("ical: no Codec configured")
}
