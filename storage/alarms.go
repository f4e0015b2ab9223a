package storage

import (
	"context"
	"time"

	"github.com/go-mkcal/mkcal/internal/alarmd"
	"github.com/go-mkcal/mkcal/internal/alarmsync"
	"github.com/go-mkcal/mkcal/internal/calendar"
	"github.com/go-mkcal/mkcal/internal/model"
)

// EnableAlarmSync starts reconciling enabled alarms on every save and
// notebook-visibility change against client. Call at most once per
// Storage; pass nil to use the no-op daemon client (alarms stay
// recorded in the database but are never scheduled externally).
func (s *Storage) EnableAlarmSync(client alarmd.Client) {
	s.alarms = alarmsync.New(client)
	s.calendar.Subscribe(&alarmObserver{s: s})
	for _, inc := range s.calendar.All() {
		s.reconcileAlarms(inc)
	}
}

// alarmObserver adapts calendar.Observer to alarmsync.Syncer.Reconcile,
// recomputing the affected incidences' alarms whenever they change.
type alarmObserver struct{ s *Storage }

func (o *alarmObserver) IncidenceAdded(inc *model.Incidence) { o.s.reconcileAlarms(inc) }

func (o *alarmObserver) IncidenceUpdated(_, inc *model.Incidence) { o.s.reconcileAlarms(inc) }

func (o *alarmObserver) IncidenceDeleted(inc *model.Incidence) { o.s.reconcileAlarms(inc) }

func (o *alarmObserver) NotebookChanged(nb *model.Notebook) {
	for _, inc := range o.s.calendar.ByNotebook(nb.UID) {
		o.s.reconcileAlarms(inc)
	}
}

// Modified is a no-op: alarm reconciliation only triggers on Save and
// on notebook-visibility change, not on a generic external-change
// signal.
func (o *alarmObserver) Modified(string) {}

func (s *Storage) reconcileAlarms(inc *model.Incidence) {
	if s.alarms == nil || len(inc.Alarms) == 0 {
		return
	}
	nb := s.calendar.Notebook(inc.NotebookUID)
	visible := nb != nil && nb.Visible
	s.alarms.Reconcile(context.Background(), inc, visible, time.Now().UTC())
}

var _ calendar.Observer = (*alarmObserver)(nil)
