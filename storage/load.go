package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/go-mkcal/mkcal/internal/codec"
	"github.com/go-mkcal/mkcal/internal/model"
	"github.com/go-mkcal/mkcal/internal/store"
)

// LoadAll reads every component row from disk into the in-memory
// index. Safe to call repeatedly; rows already indexed are replaced in
// place.
func (s *Storage) LoadAll(ctx context.Context) error {
	rows, err := store.LoadAll(ctx, s.engine.DB())
	if err != nil {
		return err
	}
	return s.indexRows(ctx, rows)
}

func (s *Storage) indexRows(ctx context.Context, rows []codec.ComponentRow) error {
	for _, row := range rows {
		inc := codec.DecodeComponent(row, s.calendar.Resolver())
		if err := store.LoadChildren(ctx, s.engine.DB(), inc); err != nil {
			return err
		}
		s.calendar.Put(inc)
	}
	return nil
}

// LoadByID loads (if not already indexed) and returns the master
// incidence identified by uid, or nil if no such incidence exists.
func (s *Storage) LoadByID(ctx context.Context, uid string) (*Incidence, error) {
	if inc := s.calendar.Get(InstanceKey{UID: uid}); inc != nil {
		return inc, nil
	}
	rows, err := store.LoadByUID(ctx, s.engine.DB(), uid)
	if err != nil {
		return nil, err
	}
	if err := s.indexRows(ctx, rows); err != nil {
		return nil, err
	}
	return s.calendar.Get(InstanceKey{UID: uid}), nil
}

// LoadSeries loads and returns the master plus every exception sharing
// uid.
func (s *Storage) LoadSeries(ctx context.Context, uid string) ([]*Incidence, error) {
	rows, err := store.LoadByUID(ctx, s.engine.DB(), uid)
	if err != nil {
		return nil, err
	}
	if err := s.indexRows(ctx, rows); err != nil {
		return nil, err
	}
	return s.calendar.Series(uid), nil
}

// LoadByInstanceIdentifier loads the series for uid and returns the
// specific occurrence identified by key, expanding the recurrence if
// key.RecurrenceID doesn't correspond to a stored exception row.
func (s *Storage) LoadByInstanceIdentifier(ctx context.Context, key InstanceKey) (*Instance, error) {
	if _, err := s.LoadSeries(ctx, key.UID); err != nil {
		return nil, err
	}
	if key.RecurrenceID.IsZero() {
		master := s.calendar.Get(key)
		if master == nil || master.Deleted {
			return nil, nil
		}
		return &Instance{Incidence: master, Start: master.StartTime(), End: master.EndTime()}, nil
	}
	window := key.RecurrenceID.Add(24 * time.Hour)
	instances, _, err := s.calendar.Expand(key.UID, key.RecurrenceID, window)
	if err != nil {
		return nil, err
	}
	for i := range instances {
		if instances[i].RecurrenceID.Equal(key.RecurrenceID) {
			return &instances[i], nil
		}
	}
	return nil, nil
}

// LoadRange loads every component whose dtstart falls within from..to,
// plus every recurring series, into the in-memory index (expanding recurring series) and returns
// the concrete instances sorted by start time. Previously-loaded,
// overlapping windows are not reloaded from disk: only the sub-ranges
// of [from, to] not already covered by s.loadedRanges are fetched.
func (s *Storage) LoadRange(ctx context.Context, from, to time.Time) ([]Instance, bool, error) {
	for _, gap := range s.missingRanges(from, to) {
		if err := s.loadGap(ctx, gap.from, gap.to); err != nil {
			return nil, false, err
		}
		s.markLoaded(gap.from, gap.to)
	}

	uids := make([]string, 0)
	seen := map[string]bool{}
	for _, inc := range s.calendar.All() {
		if !seen[inc.UID] {
			seen[inc.UID] = true
			uids = append(uids, inc.UID)
		}
	}

	results := make([][]Instance, len(uids))
	limitHits := make([]bool, len(uids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, uid := range uids {
		i, uid := i, uid
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			instances, limitHit, err := s.calendar.Expand(uid, from, to)
			if err != nil {
				return fmt.Errorf("storage: expand %s: %w", uid, err)
			}
			results[i] = instances
			limitHits[i] = limitHit
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}

	var out []Instance
	var anyLimitHit bool
	for i := range results {
		out = append(out, results[i]...)
		anyLimitHit = anyLimitHit || limitHits[i]
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, anyLimitHit, nil
}

// loadGap fetches rows whose dtstart falls within [from, to] (plus every
// recurring master, which may have started outside the window) and
// indexes the full series for each uid touched, so exceptions anchored
// outside the window still apply during expansion.
func (s *Storage) loadGap(ctx context.Context, from, to time.Time) error {
	rows, err := store.LoadByDateRange(ctx, s.engine.DB(), model.ToOriginTime(from), model.ToOriginTime(to))
	if err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, row := range rows {
		if seen[row.UID] {
			continue
		}
		seen[row.UID] = true
		seriesRows, err := store.LoadByUID(ctx, s.engine.DB(), row.UID)
		if err != nil {
			return err
		}
		if err := s.indexRows(ctx, seriesRows); err != nil {
			return err
		}
	}
	return nil
}

// missingRanges returns the disjoint sub-ranges of [from, to] not
// already covered by s.loadedRanges, so LoadRange fetches exactly the
// gap rather than the whole window (or the whole database).
func (s *Storage) missingRanges(from, to time.Time) []rangeWindow {
	if from.After(to) {
		return nil
	}
	cursor := from
	var gaps []rangeWindow
	for _, w := range s.loadedRanges {
		if w.to.Before(cursor) || w.from.After(to) {
			continue
		}
		if w.from.After(cursor) {
			gaps = append(gaps, rangeWindow{from: cursor, to: w.from.Add(-time.Nanosecond)})
		}
		if w.to.After(cursor) {
			cursor = w.to.Add(time.Nanosecond)
		}
		if cursor.After(to) {
			break
		}
	}
	if !cursor.After(to) {
		gaps = append(gaps, rangeWindow{from: cursor, to: to})
	}
	return gaps
}

func (s *Storage) markLoaded(from, to time.Time) {
	s.loadedRanges = append(s.loadedRanges, rangeWindow{from: from, to: to})
	sort.Slice(s.loadedRanges, func(i, j int) bool { return s.loadedRanges[i].from.Before(s.loadedRanges[j].from) })

	merged := s.loadedRanges[:0]
	for _, w := range s.loadedRanges {
		if len(merged) > 0 && !w.from.After(merged[len(merged)-1].to) {
			if w.to.After(merged[len(merged)-1].to) {
				merged[len(merged)-1].to = w.to
			}
			continue
		}
		merged = append(merged, w)
	}
	s.loadedRanges = merged
}

// LoadByDate returns every instance occurring on the given calendar
// day, in the day's own location.
func (s *Storage) LoadByDate(ctx context.Context, day time.Time) ([]Instance, error) {
	loc := day.Location()
	from := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	to := from.AddDate(0, 0, 1).Add(-time.Nanosecond)
	instances, _, err := s.LoadRange(ctx, from, to)
	return instances, err
}

// LoadNotebook loads and returns every non-deleted incidence belonging
// to notebookUID.
func (s *Storage) LoadNotebook(ctx context.Context, notebookUID string) ([]*Incidence, error) {
	rows, err := store.LoadByNotebook(ctx, s.engine.DB(), notebookUID)
	if err != nil {
		return nil, err
	}
	if err := s.indexRows(ctx, rows); err != nil {
		return nil, err
	}
	var out []*Incidence
	for _, inc := range s.calendar.ByNotebook(notebookUID) {
		if !inc.Deleted {
			out = append(out, inc)
		}
	}
	return out, nil
}

// Filter narrows a LoadFilter call.
type Filter struct {
	NotebookUID string
	Kind        *Kind
	From, To    time.Time
}

// LoadFilter loads and returns instances matching f. An empty From
// defaults to the Unix epoch and an empty To to five years from now;
// the matched notebook or kind is applied whether or not a window is
// given.
func (s *Storage) LoadFilter(ctx context.Context, f Filter) ([]Instance, error) {
	from, to := f.From, f.To
	if from.IsZero() {
		from = time.Unix(0, 0).UTC()
	}
	if to.IsZero() {
		to = time.Now().UTC().AddDate(5, 0, 0)
	}
	instances, _, err := s.LoadRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	var out []Instance
	for _, inst := range instances {
		if f.NotebookUID != "" && inst.Incidence.NotebookUID != f.NotebookUID {
			continue
		}
		if f.Kind != nil && inst.Incidence.Kind != *f.Kind {
			continue
		}
		out = append(out, inst)
	}
	return out, nil
}

// InsertedSince returns every incidence created at or after since.
func (s *Storage) InsertedSince(ctx context.Context, since time.Time) ([]*Incidence, error) {
	rows, err := store.LoadInsertedSince(ctx, s.engine.DB(), model.ToOriginTime(since))
	if err != nil {
		return nil, err
	}
	return s.decodeRows(ctx, rows)
}

// ModifiedSince returns every incidence last modified at or after
// since (excluding soft-deleted rows; see DeletedSince for those).
func (s *Storage) ModifiedSince(ctx context.Context, since time.Time) ([]*Incidence, error) {
	rows, err := store.LoadModifiedSince(ctx, s.engine.DB(), model.ToOriginTime(since))
	if err != nil {
		return nil, err
	}
	return s.decodeRows(ctx, rows)
}

// DeletedSince returns every incidence soft-deleted at or after since.
func (s *Storage) DeletedSince(ctx context.Context, since time.Time) ([]*Incidence, error) {
	rows, err := store.LoadDeletedSince(ctx, s.engine.DB(), model.ToOriginTime(since))
	if err != nil {
		return nil, err
	}
	return s.decodeRows(ctx, rows)
}

func (s *Storage) decodeRows(ctx context.Context, rows []codec.ComponentRow) ([]*Incidence, error) {
	out := make([]*Incidence, 0, len(rows))
	for _, row := range rows {
		inc := codec.DecodeComponent(row, s.calendar.Resolver())
		if err := store.LoadChildren(ctx, s.engine.DB(), inc); err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, nil
}

// DuplicatesOf returns every non-deleted incidence matching the legacy
// duplicate-detection key of (DtStart, notebook, summary) for inc,
// excluding inc itself. notebookScoped restricts the match to inc's own
// notebook instead of the whole database.
func (s *Storage) DuplicatesOf(ctx context.Context, inc *Incidence, notebookScoped bool) ([]*Incidence, error) {
	nb := ""
	if notebookScoped {
		nb = inc.NotebookUID
	}
	rows, err := store.LoadDuplicates(ctx, s.engine.DB(), model.ToOriginTime(inc.StartTime()), inc.Summary, nb)
	if err != nil {
		return nil, err
	}
	decoded, err := s.decodeRows(ctx, rows)
	if err != nil {
		return nil, err
	}
	out := decoded[:0]
	for _, d := range decoded {
		if d.UID != inc.UID {
			out = append(out, d)
		}
	}
	return out, nil
}

// IncidenceDeletedDate returns the soft-delete timestamp recorded for
// key, or the zero Time if key is not indexed or was never deleted.
func (s *Storage) IncidenceDeletedDate(key InstanceKey) time.Time {
	inc := s.calendar.Get(key)
	if inc == nil || !inc.Deleted {
		return time.Time{}
	}
	return inc.DeletedDate
}

// CountEvents, CountTodos, and CountJournals return the number of
// non-deleted incidences of each kind currently on disk.
func (s *Storage) CountEvents(ctx context.Context) (int, error) {
	return store.CountByKind(ctx, s.engine.DB(), model.KindEvent)
}

func (s *Storage) CountTodos(ctx context.Context) (int, error) {
	return store.CountByKind(ctx, s.engine.DB(), model.KindTodo)
}

func (s *Storage) CountJournals(ctx context.Context) (int, error) {
	return store.CountByKind(ctx, s.engine.DB(), model.KindJournal)
}

// LoadContacts returns the distinct attendee email addresses across
// every loaded incidence, most-frequent first; ties are broken by
// email for a deterministic order (an Open Question the original
// engine leaves ambiguous).
func (s *Storage) LoadContacts(ctx context.Context) ([]string, error) {
	if err := s.LoadAll(ctx); err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, inc := range s.calendar.All() {
		for _, a := range inc.Attendees {
			if a.Email != "" {
				counts[a.Email]++
			}
		}
	}
	out := make([]string, 0, len(counts))
	for email := range counts {
		out = append(out, email)
	}
	sort.Slice(out, func(i, j int) bool {
		if counts[out[i]] != counts[out[j]] {
			return counts[out[i]] > counts[out[j]]
		}
		return out[i] < out[j]
	})
	return out, nil
}
