package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/go-mkcal/mkcal/internal/store"
)

// AddNotebook inserts a new notebook, assigning it a uid if it doesn't
// have one yet, and marks it the default (clearing the flag on every
// other notebook) when IsDefault is set.
func (s *Storage) AddNotebook(nb *Notebook) (*Notebook, error) {
	if nb.UID == "" {
		nb.UID = uuid.New().String()
	}
	now := time.Now().UTC()
	nb.Created = now
	nb.Modified = now

	ctx := context.Background()
	unlock, err := s.engine.Lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()

	tx, err := s.engine.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := store.UpsertNotebook(tx, nb); err != nil {
		return nil, err
	}
	if nb.IsDefault {
		if err := store.SetDefaultNotebook(tx, nb.UID); err != nil {
			return nil, err
		}
	}
	txnID, err := store.NextTransactionID(tx)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("storage: commit: %w", err)
	}
	s.lastTxnID.Store(txnID)

	s.calendar.PutNotebook(nb)
	if nb.IsDefault {
		for _, other := range s.calendar.Notebooks() {
			if other.UID != nb.UID && other.IsDefault {
				other.IsDefault = false
				s.calendar.PutNotebook(other)
			}
		}
	}
	s.engine.NotifyChanged()
	return nb, nil
}

// UpdateNotebook persists changes to an existing notebook.
func (s *Storage) UpdateNotebook(nb *Notebook) error {
	if s.calendar.Notebook(nb.UID) == nil {
		return &store.StorageError{Kind: store.ErrInvalidNotebook, Op: "storage: update notebook " + nb.UID}
	}
	nb.Modified = time.Now().UTC()

	ctx := context.Background()
	unlock, err := s.engine.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	tx, err := s.engine.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := store.UpsertNotebook(tx, nb); err != nil {
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

	s.calendar.PutNotebook(nb)
	s.engine.NotifyChanged()
	return nil
}

// DeleteNotebook removes a notebook. When onlyMemory is true, the
// notebook and its incidences are evicted from the in-memory index
// only (used when another process already deleted the row on disk and
// this process is just catching up after a change notification).
func (s *Storage) DeleteNotebook(uid string, onlyMemory bool) error {
	if onlyMemory {
		s.calendar.RemoveNotebook(uid)
		return nil
	}

	ctx := context.Background()
	unlock, err := s.engine.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	tx, err := s.engine.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := store.DeleteNotebook(tx, uid); err != nil {
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

	s.calendar.RemoveNotebook(uid)
	s.engine.NotifyChanged()
	return nil
}

// SetDefaultNotebook marks uid as the default notebook and clears the
// flag on every other notebook.
func (s *Storage) SetDefaultNotebook(uid string) error {
	nb := s.calendar.Notebook(uid)
	if nb == nil {
		return &store.StorageError{Kind: store.ErrInvalidNotebook, Op: "storage: set default notebook " + uid}
	}

	ctx := context.Background()
	unlock, err := s.engine.Lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	tx, err := s.engine.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := store.SetDefaultNotebook(tx, uid); err != nil {
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

	for _, other := range s.calendar.Notebooks() {
		other.IsDefault = other.UID == uid
		s.calendar.PutNotebook(other)
	}
	s.engine.NotifyChanged()
	return nil
}

// Notebook returns the notebook for uid, or nil.
func (s *Storage) Notebook(uid string) *Notebook {
	return s.calendar.Notebook(uid)
}

// Notebooks returns every loaded notebook.
func (s *Storage) Notebooks() []*Notebook {
	return s.calendar.Notebooks()
}

// ValidateNotebooks toggles the valid-notebook policy Save enforces.
// On (the default), IsValidNotebook rejects any notebook uid that
// isn't loaded. Off, any uid with no loaded notebook is accepted,
// matching a client that saves incidences ahead of the notebook
// metadata itself arriving.
func (s *Storage) ValidateNotebooks(enabled bool) {
	s.validate.Store(enabled)
}

// IsValidNotebook reports whether uid names a notebook Save will
// accept incidences into: a loaded notebook is accepted unless it is
// runtime-only or read-only; a uid with no loaded notebook is accepted
// only when the valid-notebook policy is off.
func (s *Storage) IsValidNotebook(uid string) bool {
	nb := s.calendar.Notebook(uid)
	if nb != nil {
		return !nb.RunTimeOnly && !nb.ReadOnly
	}
	return !s.validate.Load()
}

// ValidateLoadedNotebooks checks that every notebook uid referenced by
// a loaded incidence still exists, returning the set of dangling uids.
func (s *Storage) ValidateLoadedNotebooks() []string {
	seen := map[string]bool{}
	var missing []string
	for _, inc := range s.calendar.All() {
		if seen[inc.NotebookUID] {
			continue
		}
		seen[inc.NotebookUID] = true
		if s.calendar.Notebook(inc.NotebookUID) == nil {
			missing = append(missing, inc.NotebookUID)
		}
	}
	return missing
}
