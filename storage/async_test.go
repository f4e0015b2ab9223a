package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsyncSaveCommitsBeforeReturning(t *testing.T) {
	s := openTestStorage(t)
	a := NewAsync(s, 0)
	t.Cleanup(func() { a.Close() })

	nb := a.Notebooks()[0]
	inc := &Incidence{
		Header: Header{NotebookUID: nb.UID, Summary: "async save"},
		Kind:   KindEvent,
		Event:  &EventFields{DtStart: time.Now().UTC()},
	}
	require.NoError(t, a.Save(context.Background(), inc))

	loaded, err := a.LoadByID(context.Background(), inc.UID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "async save", loaded.Summary)
}

func TestAsyncCancelFailsQueuedWork(t *testing.T) {
	s := openTestStorage(t)
	a := NewAsync(s, 0)
	t.Cleanup(func() { a.Close() })

	a.Cancel()
	nb := a.Notebooks()[0]
	inc := &Incidence{
		Header: Header{NotebookUID: nb.UID, Summary: "should not commit"},
		Kind:   KindEvent,
		Event:  &EventFields{DtStart: time.Now().UTC()},
	}
	err := a.Save(context.Background(), inc)
	assert.Error(t, err)
}
