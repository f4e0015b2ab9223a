package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-mkcal/mkcal/internal/model"
)

type recordingObserver struct {
	added, updated, deleted int
}

func (r *recordingObserver) IncidenceAdded(*model.Incidence)        { r.added++ }
func (r *recordingObserver) IncidenceUpdated(_, _ *model.Incidence) { r.updated++ }
func (r *recordingObserver) IncidenceDeleted(*model.Incidence)      { r.deleted++ }
func (r *recordingObserver) NotebookChanged(*model.Notebook)        {}
func (r *recordingObserver) Modified(string)                        {}

func newEvent(uid string, start time.Time) *model.Incidence {
	return &model.Incidence{
		Header: model.Header{UID: uid, NotebookUID: "nb-1", Summary: "test"},
		Kind:   model.KindEvent,
		Event:  &model.EventFields{DtStart: start, DtEnd: start.Add(time.Hour)},
	}
}

func TestPutNotifiesAddedThenUpdated(t *testing.T) {
	cal := New(nil)
	obs := &recordingObserver{}
	cal.Subscribe(obs)

	inc := newEvent("uid-1", time.Now())
	cal.Put(inc)
	assert.Equal(t, 1, obs.added)

	cal.Put(inc)
	assert.Equal(t, 1, obs.updated)
}

func TestRemoveNotifiesDeleted(t *testing.T) {
	cal := New(nil)
	obs := &recordingObserver{}
	cal.Subscribe(obs)

	inc := newEvent("uid-1", time.Now())
	cal.Put(inc)
	cal.Remove(inc.Key())
	assert.Equal(t, 1, obs.deleted)
	assert.Nil(t, cal.Get(inc.Key()))
}

func TestExpandNonRecurring(t *testing.T) {
	cal := New(nil)
	start := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	cal.Put(newEvent("single", start))

	instances, limitHit, err := cal.Expand("single", start.AddDate(0, 0, -1), start.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.False(t, limitHit)
	require.Len(t, instances, 1)
	assert.True(t, instances[0].Start.Equal(start))
}

func TestExpandWeeklyWithException(t *testing.T) {
	cal := New(nil)
	start := time.Date(2026, 4, 6, 9, 0, 0, 0, time.UTC) // Monday
	count := 3
	master := newEvent("series", start)
	master.RRule = &model.RecurrenceRule{Freq: model.Weekly, Interval: 1, Count: &count}
	cal.Put(master)

	excDate := start.AddDate(0, 0, 7)
	exception := newEvent("series", excDate.Add(time.Hour)) // moved one hour later
	exception.RecurrenceID = &excDate
	cal.Put(exception)

	instances, _, err := cal.Expand("series", start.AddDate(0, 0, -1), start.AddDate(0, 0, 30))
	require.NoError(t, err)
	require.Len(t, instances, 3)
	assert.True(t, instances[1].Start.Equal(excDate.Add(time.Hour)))
	assert.Same(t, exception, instances[1].Incidence)
}

func TestByNotebookAndByKind(t *testing.T) {
	cal := New(nil)
	cal.Put(newEvent("e1", time.Now()))
	todo := &model.Incidence{
		Header: model.Header{UID: "t1", NotebookUID: "nb-1"},
		Kind:   model.KindTodo,
		Todo:   &model.TodoFields{Due: time.Now()},
	}
	cal.Put(todo)

	assert.Len(t, cal.ByNotebook("nb-1"), 2)
	assert.Len(t, cal.ByKind(model.KindEvent), 1)
	assert.Len(t, cal.ByKind(model.KindTodo), 1)
}
