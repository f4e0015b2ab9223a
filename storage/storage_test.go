package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-mkcal/mkcal/internal/model"
)

func openTestStorage(t *testing.T) *Storage {
	t.Helper()
	path := filepath.Join(t.TempDir(), "calendar.db")
	s, err := Open(path, model.NoZoneResolver)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenCreatesDefaultNotebook(t *testing.T) {
	s := openTestStorage(t)
	notebooks := s.Notebooks()
	require.Len(t, notebooks, 1)
	assert.True(t, notebooks[0].IsDefault)
}

func TestSaveAndLoadByID(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()
	nb := s.Notebooks()[0]

	inc := &Incidence{
		Header: Header{NotebookUID: nb.UID, Summary: "Kickoff"},
		Kind:   KindEvent,
		Event:  &EventFields{DtStart: time.Now().UTC(), DtEnd: time.Now().UTC().Add(time.Hour)},
	}
	require.NoError(t, s.Save(ctx, inc))
	assert.NotEmpty(t, inc.UID)

	loaded, err := s.LoadByID(ctx, inc.UID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "Kickoff", loaded.Summary)
	assert.Equal(t, 0, loaded.Revision)

	inc.Summary = "Kickoff (rescheduled)"
	require.NoError(t, s.Save(ctx, inc))
	reloaded, err := s.LoadByID(ctx, inc.UID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.Revision)
}

func TestSaveSkipsUnknownNotebookWhenValidating(t *testing.T) {
	s := openTestStorage(t)
	inc := &Incidence{
		Header: Header{UID: "skip-me", NotebookUID: "does-not-exist", Summary: "x"},
		Kind:   KindEvent,
		Event:  &EventFields{DtStart: time.Now().UTC()},
	}
	require.NoError(t, s.Save(context.Background(), inc))

	loaded, err := s.LoadByID(context.Background(), inc.UID)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestSaveAllowsUnknownNotebookWhenValidationDisabled(t *testing.T) {
	s := openTestStorage(t)
	s.ValidateNotebooks(false)

	inc := &Incidence{
		Header: Header{UID: "allow-me", NotebookUID: "does-not-exist", Summary: "x"},
		Kind:   KindEvent,
		Event:  &EventFields{DtStart: time.Now().UTC()},
	}
	require.NoError(t, s.Save(context.Background(), inc))

	loaded, err := s.LoadByID(context.Background(), inc.UID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
}

func TestMarkDeletedThenPurge(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()
	nb := s.Notebooks()[0]

	inc := &Incidence{
		Header: Header{NotebookUID: nb.UID, Summary: "to delete"},
		Kind:   KindEvent,
		Event:  &EventFields{DtStart: time.Now().UTC()},
	}
	require.NoError(t, s.Save(ctx, inc))

	require.NoError(t, s.MarkDeleted(ctx, inc.Key()))
	deleted, err := s.DeletedSince(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, deleted, 1)
	assert.True(t, deleted[0].Deleted)

	n, err := s.PurgeDeleted(ctx, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	found, err := s.LoadByID(ctx, inc.UID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestLoadRangeExpandsRecurrence(t *testing.T) {
	s := openTestStorage(t)
	ctx := context.Background()
	nb := s.Notebooks()[0]

	start := time.Now().UTC().Truncate(time.Hour)
	count := 5
	inc := &Incidence{
		Header: Header{
			NotebookUID: nb.UID,
			Summary:     "daily standup",
			RRule:       &RecurrenceRule{Freq: model.Daily, Interval: 1, Count: &count},
		},
		Kind:  KindEvent,
		Event: &EventFields{DtStart: start, DtEnd: start.Add(30 * time.Minute)},
	}
	require.NoError(t, s.Save(ctx, inc))

	instances, limitHit, err := s.LoadRange(ctx, start, start.AddDate(0, 0, 10))
	require.NoError(t, err)
	assert.False(t, limitHit)
	assert.Len(t, instances, 5)
}

func TestAddNotebookAndSetDefault(t *testing.T) {
	s := openTestStorage(t)
	first := s.Notebooks()[0]

	nb2, err := s.AddNotebook(&Notebook{Name: "Work", Visible: true})
	require.NoError(t, err)
	require.NoError(t, s.SetDefaultNotebook(nb2.UID))

	assert.False(t, s.Notebook(first.UID).IsDefault)
	assert.True(t, s.Notebook(nb2.UID).IsDefault)
}
