// Package alarmd defines the narrow interface to an external alarm
// daemon. The daemon itself is out of scope here: it is consumed only
// through this interface, and a process without one configured simply
// gets a Client that no-ops.
package alarmd

import (
	"context"
	"time"
)

// Cookie identifies one scheduled alarm registration with the daemon.
type Cookie string

// Request describes a single alarm to schedule.
type Request struct {
	InstanceUID string // opaque key the caller uses to find this cookie again
	Trigger     time.Time
	Description string
}

// Client is the narrow surface mkcal needs from an external alarm
// daemon: schedule, query, and cancel registrations.
type Client interface {
	AddEvent(ctx context.Context, req Request) (Cookie, error)
	Query(ctx context.Context, cookie Cookie) (Request, bool, error)
	Cancel(ctx context.Context, cookie Cookie) error
}

// NoopClient is a Client that does nothing; used when no daemon is
// configured so alarm sync degrades to a silent no-op rather than an
// error.
type NoopClient struct{}

func (NoopClient) AddEvent(context.Context, Request) (Cookie, error) { return "", nil }
func (NoopClient) Query(context.Context, Cookie) (Request, bool, error) {
	return Request{}, false, nil
}
func (NoopClient) Cancel(context.Context, Cookie) error { return nil }
