// Package alarmsync reconciles enabled alarms on incidences in visible
// notebooks with an external alarm daemon: scheduling cookies for
// alarms that need one, cancelling cookies that no longer correspond
// to a live alarm, and keeping a small success/failure ledger per
// alarm so repeated scheduling failures can be surfaced through
// Failures. A failed alarm is tried again on the next Reconcile.
package alarmsync

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/go-mkcal/mkcal/internal/alarmd"
	"github.com/go-mkcal/mkcal/internal/model"
)

// minRearmGap is added to a trigger that falls within the same clock
// minute as "now", moving it into the next minute.
const minRearmGap = time.Minute

// ledgerEntry tracks reconciliation outcomes for one alarm, the way
// the pattern-learning module tracks success_count/failure_count per
// learned intent.
type ledgerEntry struct {
	SuccessCount int
	FailureCount int
	LastError    error
}

// Syncer reconciles alarms against a daemon client.
type Syncer struct {
	client alarmd.Client

	mu      sync.Mutex
	cookies map[string]alarmd.Cookie // instance key -> daemon cookie
	ledger  map[string]*ledgerEntry
}

// New returns a Syncer backed by client. Pass alarmd.NoopClient{} when
// no daemon is configured; every Reconcile call then becomes a no-op.
func New(client alarmd.Client) *Syncer {
	if client == nil {
		client = alarmd.NoopClient{}
	}
	return &Syncer{
		client:  client,
		cookies: make(map[string]alarmd.Cookie),
		ledger:  make(map[string]*ledgerEntry),
	}
}

// instanceKey identifies one alarm within one incidence instance.
func instanceKey(uid string, recurrenceID time.Time, alarmUID string) string {
	return uid + "|" + recurrenceID.UTC().Format(time.RFC3339) + "|" + alarmUID
}

// Reconcile schedules cookies for every enabled alarm on a non-deleted
// incidence in a visible notebook whose next trigger is at or after
// now (a trigger within the current minute is moved on by
// minRearmGap), and cancels any cookie this Syncer previously
// scheduled for an alarm that's no longer in that set. The notebook's
// read-only flag is not consulted.
func (s *Syncer) Reconcile(ctx context.Context, inc *model.Incidence, notebookVisible bool, now time.Time) {
	anchor := inc.StartTime()
	live := map[string]bool{}

	if notebookVisible && !inc.Deleted {
		for _, al := range inc.Alarms {
			if !al.Enabled {
				continue
			}
			trigger := al.NextTime(anchor, now)
			if trigger.Before(now) {
				continue
			}
			if trigger.Truncate(time.Minute).Equal(now.Truncate(time.Minute)) {
				trigger = trigger.Add(minRearmGap)
			}
			key := instanceKey(inc.UID, recurrenceIDOf(inc), al.UID)
			live[key] = true
			s.schedule(ctx, key, al, trigger)
		}
	}

	s.mu.Lock()
	var stale []string
	prefix := inc.UID + "|" + recurrenceIDOf(inc).UTC().Format(time.RFC3339) + "|"
	for key := range s.cookies {
		if len(key) > len(prefix) && key[:len(prefix)] == prefix && !live[key] {
			stale = append(stale, key)
		}
	}
	s.mu.Unlock()

	for _, key := range stale {
		s.cancel(ctx, key)
	}
}

func recurrenceIDOf(inc *model.Incidence) time.Time {
	if inc.RecurrenceID != nil {
		return *inc.RecurrenceID
	}
	return time.Time{}
}

func (s *Syncer) schedule(ctx context.Context, key string, al model.Alarm, trigger time.Time) {
	s.mu.Lock()
	_, already := s.cookies[key]
	entry := s.ledger[key]
	if entry == nil {
		entry = &ledgerEntry{}
		s.ledger[key] = entry
	}
	s.mu.Unlock()
	if already {
		return
	}

	cookie, err := s.client.AddEvent(ctx, alarmd.Request{
		InstanceUID: key,
		Trigger:     trigger,
		Description: al.Description,
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		entry.FailureCount++
		entry.LastError = err
		log.Warn().Err(err).Str("alarm", al.UID).Int("failures", entry.FailureCount).Msg("alarmsync: schedule failed")
		return
	}
	entry.SuccessCount++
	entry.LastError = nil
	s.cookies[key] = cookie
}

func (s *Syncer) cancel(ctx context.Context, key string) {
	s.mu.Lock()
	cookie, ok := s.cookies[key]
	if ok {
		delete(s.cookies, key)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := s.client.Cancel(ctx, cookie); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("alarmsync: cancel failed")
	}
}

// Failures returns the failure count recorded for an alarm, for
// diagnostics or tests.
func (s *Syncer) Failures(uid string, recurrenceID time.Time, alarmUID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.ledger[instanceKey(uid, recurrenceID, alarmUID)]
	if entry == nil {
		return 0
	}
	return entry.FailureCount
}
