// Package storage is the public facade over the calendar engine: open
// a database, load and save incidences and notebooks, run incremental
// sync queries, and subscribe to change notifications.
package storage

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/go-mkcal/mkcal/internal/alarmsync"
	"github.com/go-mkcal/mkcal/internal/calendar"
	"github.com/go-mkcal/mkcal/internal/codec"
	"github.com/go-mkcal/mkcal/internal/model"
	"github.com/go-mkcal/mkcal/internal/store"
)

// Re-exported model types so callers only need to import this package
// for everyday use.
type (
	Incidence      = model.Incidence
	Notebook       = model.Notebook
	Header         = model.Header
	EventFields    = model.EventFields
	TodoFields     = model.TodoFields
	JournalFields  = model.JournalFields
	Attendee       = model.Attendee
	Alarm          = model.Alarm
	Attachment     = model.Attachment
	CustomProperty = model.CustomProperty
	RecurrenceRule = model.RecurrenceRule
	ByDay          = model.ByDay
	InstanceKey    = model.InstanceKey
	Instance       = calendar.Instance
	Observer       = calendar.Observer
	Kind           = model.Kind
)

const (
	KindEvent   = model.KindEvent
	KindTodo    = model.KindTodo
	KindJournal = model.KindJournal
)

// Storage is the opened calendar database plus its in-memory index. A
// Storage is safe for concurrent use by multiple goroutines.
type Storage struct {
	engine   *store.Engine
	calendar *calendar.Calendar
	alarms   *alarmsync.Syncer // nil until EnableAlarmSync is called

	zoneResolver model.ZoneResolver // caller-supplied fallback, before VTIMEZONE blocks are layered on
	lastTxnID    atomic.Int64       // last transaction id this process has already accounted for
	validate     atomic.Bool       // valid-notebook policy toggle, see ValidateNotebooks

	loadedRanges []rangeWindow // disjoint, sorted windows already loaded from disk
}

type rangeWindow struct{ from, to time.Time }

// Open opens (creating if necessary) the database at path, or at the
// location resolved from MKCAL_DB_PATH / the per-user data directory
// when path is empty, loads every notebook and stored timezone, and
// starts the change-notification watcher.
func Open(path string, resolver model.ZoneResolver) (*Storage, error) {
	eng, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	if resolver == nil {
		resolver = model.NoZoneResolver
	}

	blocks, err := store.LoadTimezones(context.Background(), eng.DB())
	if err != nil {
		eng.Close()
		return nil, err
	}
	cal := calendar.New(model.VTimezoneResolver{Fallback: resolver, Blocks: blocks})

	s := &Storage{engine: eng, calendar: cal, zoneResolver: resolver}
	s.validate.Store(true)

	if txnID, err := eng.TransactionID(); err == nil {
		s.lastTxnID.Store(txnID)
	}

	notebooks, err := store.LoadNotebooks(context.Background(), eng.DB())
	if err != nil {
		eng.Close()
		return nil, err
	}
	for _, nb := range notebooks {
		cal.PutNotebook(nb)
	}
	if len(notebooks) == 0 {
		if _, err := s.AddNotebook(&model.Notebook{
			UID: uuid.New().String(), Name: "Default",
			AllowEvents: true, AllowTodos: true, AllowJournals: true,
			Visible: true, IsDefault: true, Master: true,
		}); err != nil {
			eng.Close()
			return nil, err
		}
	}

	eng.OnChange(func() { s.handleChangeNotification() })
	if err := eng.WatchExternalChanges(); err != nil {
		log.Warn().Err(err).Msg("storage: change watcher unavailable, external writers won't be observed")
	}

	return s, nil
}

// handleChangeNotification runs whenever this process commits a
// data-changing transaction or is told (via the sibling change file)
// that another process did. It compares the database's transaction id
// against the last one this process has already accounted for: on a
// genuine advance it re-reads the VTIMEZONE blobs and tells observers
// the database changed. It never reloads incidences or notebooks
// itself — callers decide whether and what to re-fetch.
func (s *Storage) handleChangeNotification() {
	current, err := s.engine.TransactionID()
	if err != nil {
		log.Warn().Err(err).Msg("storage: read transaction id for change notification failed")
		return
	}
	if current <= s.lastTxnID.Load() {
		return
	}
	s.lastTxnID.Store(current)

	if err := s.refreshTimezones(context.Background()); err != nil {
		log.Warn().Err(err).Msg("storage: refresh timezones after change notification failed")
	}
	s.calendar.NotifyModified(s.engine.Path())
}

// Close releases the database connection and stops the watcher.
func (s *Storage) Close() error {
	return s.engine.Close()
}

// Subscribe registers an Observer for incidence and notebook changes.
func (s *Storage) Subscribe(o Observer) {
	s.calendar.Subscribe(o)
}

// Save inserts or replaces inc. Created/LastModified/Revision are
// stamped here: Created only on first insert, LastModified and
// Revision on every save.
func (s *Storage) Save(ctx context.Context, inc *Incidence) error {
	unlock, err := s.engine.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	now := time.Now().UTC()
	existing := s.calendar.Get(inc.Key())
	if existing == nil {
		if inc.UID == "" {
			inc.UID = uuid.New().String()
		}
		if inc.Created.IsZero() {
			inc.Created = now
		}
		inc.Revision = 0
	} else {
		inc.Created = existing.Created
		inc.Revision = existing.Revision + 1
	}
	inc.LastModified = now

	if inc.NotebookUID == "" {
		return fmt.Errorf("storage: save %s: notebook uid required", inc.UID)
	}
	if !s.IsValidNotebook(inc.NotebookUID) {
		log.Trace().Str("uid", inc.UID).Str("notebook", inc.NotebookUID).
			Msg("storage: save skipped, notebook rejected by valid-notebook policy")
		return nil
	}

	row := codec.EncodeComponent(inc)
	row.Created = model.ToOriginTime(inc.Created)
	row.LastModified = model.ToOriginTime(inc.LastModified)
	row.Revision = inc.Revision

	tx, err := s.engine.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := store.UpsertComponent(tx, row, inc); err != nil {
		return err
	}
	txnID, err := store.NextTransactionID(tx)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	s.lastTxnID.Store(txnID)

	s.calendar.Put(inc.Clone())
	s.engine.NotifyChanged()
	return nil
}

// MarkDeleted soft-deletes the instance identified by key: the row
// stays on disk (and in memory) with Deleted set and DeletedDate
// stamped, so DeletedSince callers can still observe the tombstone
// until a PurgeDeleted call removes it for good.
func (s *Storage) MarkDeleted(ctx context.Context, key InstanceKey) error {
	inc := s.calendar.Get(key)
	if inc == nil {
		return &store.StorageError{Kind: store.ErrNotFound, Op: "storage: mark deleted"}
	}

	unlock, err := s.engine.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	now := time.Now().UTC()
	tx, err := s.engine.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin transaction: %w", err)
	}
	defer tx.Rollback()

	ridUTC := int64(0)
	if key.RecurrenceID != (time.Time{}) {
		ridUTC = model.ToOriginTime(key.RecurrenceID)
	}
	if err := store.MarkDeleted(tx, key.UID, ridUTC, model.ToOriginTime(now)); err != nil {
		return err
	}
	txnID, err := store.NextTransactionID(tx)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	s.lastTxnID.Store(txnID)

	deleted := inc.Clone()
	deleted.Deleted = true
	deleted.DeletedDate = now
	s.calendar.Put(deleted)
	s.engine.NotifyChanged()
	return nil
}

// PurgeDeleted permanently removes soft-deleted rows whose
// DeletedDate is before cutoff (the zero Time purges all of them) and
// evicts the matching entries from the in-memory index.
func (s *Storage) PurgeDeleted(ctx context.Context, cutoff time.Time) (int64, error) {
	unlock, err := s.engine.Lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	var before int64
	if !cutoff.IsZero() {
		before = model.ToOriginTime(cutoff)
	}

	tx, err := s.engine.DB().BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("storage: begin transaction: %w", err)
	}
	defer tx.Rollback()

	n, err := store.PurgeDeleted(tx, before)
	if err != nil {
		return 0, err
	}
	txnID, err := store.NextTransactionID(tx)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("storage: commit: %w", err)
	}
	s.lastTxnID.Store(txnID)

	for _, inc := range s.calendar.All() {
		if inc.Deleted && (before == 0 || model.ToOriginTime(inc.DeletedDate) < before) {
			s.calendar.Remove(inc.Key())
		}
	}
	s.engine.NotifyChanged()
	return n, nil
}
