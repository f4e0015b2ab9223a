package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-mkcal/mkcal/internal/alarmd"
)

func TestEnableAlarmSyncSchedulesOnSave(t *testing.T) {
	s := openTestStorage(t)
	client := alarmd.NewFakeClient()
	s.EnableAlarmSync(client)

	nb := s.Notebooks()[0]
	start := time.Now().UTC().Add(time.Hour)
	inc := &Incidence{
		Header: Header{
			NotebookUID: nb.UID,
			Summary:     "with alarm",
			Alarms: []Alarm{
				{UID: "a1", Relative: true, Trigger: -10 * time.Minute, Enabled: true},
			},
		},
		Kind:  KindEvent,
		Event: &EventFields{DtStart: start},
	}
	require.NoError(t, s.Save(context.Background(), inc))

	assert.Len(t, client.Cookies(), 1)
}

func TestEnableAlarmSyncSkipsInvisibleNotebook(t *testing.T) {
	s := openTestStorage(t)
	client := alarmd.NewFakeClient()
	s.EnableAlarmSync(client)

	nb, err := s.AddNotebook(&Notebook{Name: "hidden", Visible: false})
	require.NoError(t, err)

	start := time.Now().UTC().Add(time.Hour)
	inc := &Incidence{
		Header: Header{
			NotebookUID: nb.UID,
			Summary:     "invisible alarm",
			Alarms:      []Alarm{{UID: "a1", Relative: true, Enabled: true}},
		},
		Kind:  KindEvent,
		Event: &EventFields{DtStart: start},
	}
	require.NoError(t, s.Save(context.Background(), inc))

	assert.Empty(t, client.Cookies())
}
