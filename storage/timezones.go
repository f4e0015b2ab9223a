package storage

import (
	"context"
	"fmt"

	"github.com/go-mkcal/mkcal/internal/model"
	"github.com/go-mkcal/mkcal/internal/store"
)

// ImportTimezone stores an embedded VTIMEZONE block under tzid,
// offering it through the active resolver as a fallback for zone ids
// the IANA database doesn't know about (imported-but-unrecognized
// zone ids, per the fallback-zone decode path).
func (s *Storage) ImportTimezone(ctx context.Context, tzid, icsData string) error {
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

	if err := store.UpsertTimezone(tx, tzid, icsData); err != nil {
		return err
	}
	id, err := store.NextTransactionID(tx)
	if err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit: %w", err)
	}
	s.lastTxnID.Store(id)

	if err := s.refreshTimezones(ctx); err != nil {
		return err
	}
	s.engine.NotifyChanged()
	return nil
}

// refreshTimezones reloads every stored VTIMEZONE block and rebuilds
// the calendar's active resolver around it, layered on top of the
// caller-supplied fallback given to Open.
func (s *Storage) refreshTimezones(ctx context.Context) error {
	blocks, err := store.LoadTimezones(ctx, s.engine.DB())
	if err != nil {
		return err
	}
	s.calendar.SetResolver(model.VTimezoneResolver{Fallback: s.zoneResolver, Blocks: blocks})
	return nil
}
