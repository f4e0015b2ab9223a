// Package calendar holds the in-memory, mutex-guarded index of
// incidences loaded from the store, the observer dispatch that notifies
// callers of changes, and recurrence expansion into concrete instances.
package calendar

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/go-mkcal/mkcal/internal/model"
)

// Observer receives notification of committed changes. Implementations
// must not block for long: Calendar invokes them synchronously and
// recovers from panics so one broken observer cannot corrupt state for
// others.
type Observer interface {
	IncidenceAdded(inc *model.Incidence)
	IncidenceUpdated(old, new *model.Incidence)
	IncidenceDeleted(inc *model.Incidence)
	NotebookChanged(nb *model.Notebook)
	Modified(path string)
}

// Calendar is the in-memory index of every loaded incidence, keyed by
// InstanceKey so a recurring series master and its exceptions are
// distinct entries.
type Calendar struct {
	mu sync.RWMutex

	incidences map[model.InstanceKey]*model.Incidence
	byUID      map[string][]model.InstanceKey
	byNotebook map[string]map[model.InstanceKey]bool
	deletedUID map[string]bool

	notebooks map[string]*model.Notebook

	observers []Observer
	resolver  model.ZoneResolver
}

// New returns an empty Calendar. Use resolver to resolve zone ids
// embedded in stored timestamps that aren't in the IANA database
// (e.g. only known via an imported VTIMEZONE); pass
// model.NoZoneResolver when none is available.
func New(resolver model.ZoneResolver) *Calendar {
	if resolver == nil {
		resolver = model.NoZoneResolver
	}
	return &Calendar{
		incidences: make(map[model.InstanceKey]*model.Incidence),
		byUID:      make(map[string][]model.InstanceKey),
		byNotebook: make(map[string]map[model.InstanceKey]bool),
		deletedUID: make(map[string]bool),
		notebooks:  make(map[string]*model.Notebook),
		resolver:   resolver,
	}
}

// Subscribe registers an observer. It takes the calendar's lock, so it
// may run concurrently with mutations; an observer added while a
// mutation is notifying is first called by the next mutation.
func (c *Calendar) Subscribe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, o)
}

// Put inserts or replaces an incidence in the index and notifies
// observers with the final state (added if no prior value existed,
// updated otherwise).
func (c *Calendar) Put(inc *model.Incidence) {
	c.mu.Lock()
	key := inc.Key()
	old, existed := c.incidences[key]
	c.incidences[key] = inc
	if !existed {
		c.byUID[inc.UID] = append(c.byUID[inc.UID], key)
	}
	if c.byNotebook[inc.NotebookUID] == nil {
		c.byNotebook[inc.NotebookUID] = make(map[model.InstanceKey]bool)
	}
	c.byNotebook[inc.NotebookUID][key] = true
	if inc.Deleted {
		c.deletedUID[inc.UID] = true
	}
	observers := append([]Observer(nil), c.observers...)
	c.mu.Unlock()

	for _, o := range observers {
		func(o Observer) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("calendar: observer panicked")
				}
			}()
			if existed {
				o.IncidenceUpdated(old, inc)
			} else {
				o.IncidenceAdded(inc)
			}
		}(o)
	}
}

// Remove purges an instance from the index entirely (used after a hard
// delete/purge, as opposed to the soft-delete Put(inc.Deleted=true)
// path) and notifies observers.
func (c *Calendar) Remove(key model.InstanceKey) {
	c.mu.Lock()
	inc, ok := c.incidences[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.incidences, key)
	keys := c.byUID[inc.UID]
	for i, k := range keys {
		if k == key {
			c.byUID[inc.UID] = append(keys[:i], keys[i+1:]...)
			break
		}
	}
	if nb := c.byNotebook[inc.NotebookUID]; nb != nil {
		delete(nb, key)
	}
	observers := append([]Observer(nil), c.observers...)
	c.mu.Unlock()

	for _, o := range observers {
		func(o Observer) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("calendar: observer panicked")
				}
			}()
			o.IncidenceDeleted(inc)
		}(o)
	}
}

// Get returns the incidence for key, or nil if absent.
func (c *Calendar) Get(key model.InstanceKey) *model.Incidence {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.incidences[key]
}

// Series returns the master plus every exception sharing uid, sorted
// by recurrence id.
func (c *Calendar) Series(uid string) []*model.Incidence {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := c.byUID[uid]
	out := make([]*model.Incidence, 0, len(keys))
	for _, k := range keys {
		out = append(out, c.incidences[k])
	}
	sort.Slice(out, func(i, j int) bool {
		ki, kj := out[i].Key(), out[j].Key()
		return ki.RecurrenceID.Before(kj.RecurrenceID)
	})
	return out
}

// All returns every loaded incidence, including soft-deleted ones,
// in no particular order.
func (c *Calendar) All() []*model.Incidence {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*model.Incidence, 0, len(c.incidences))
	for _, inc := range c.incidences {
		out = append(out, inc)
	}
	return out
}

// ByNotebook returns every loaded incidence belonging to notebookUID.
func (c *Calendar) ByNotebook(notebookUID string) []*model.Incidence {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := c.byNotebook[notebookUID]
	out := make([]*model.Incidence, 0, len(keys))
	for k := range keys {
		out = append(out, c.incidences[k])
	}
	return out
}

// ByKind returns every non-deleted loaded incidence of the given kind.
func (c *Calendar) ByKind(kind model.Kind) []*model.Incidence {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*model.Incidence, 0)
	for _, inc := range c.incidences {
		if inc.Kind == kind && !inc.Deleted {
			out = append(out, inc)
		}
	}
	return out
}

// PutNotebook inserts or replaces a notebook and notifies observers.
func (c *Calendar) PutNotebook(nb *model.Notebook) {
	c.mu.Lock()
	c.notebooks[nb.UID] = nb
	observers := append([]Observer(nil), c.observers...)
	c.mu.Unlock()
	for _, o := range observers {
		func(o Observer) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("calendar: observer panicked")
				}
			}()
			o.NotebookChanged(nb)
		}(o)
	}
}

// RemoveNotebook drops a notebook and every incidence that belonged to
// it from the in-memory index (the store cascade already removed the
// rows; this keeps the cache consistent without a full reload).
func (c *Calendar) RemoveNotebook(uid string) {
	c.mu.Lock()
	delete(c.notebooks, uid)
	for key := range c.byNotebook[uid] {
		inc := c.incidences[key]
		delete(c.incidences, key)
		if inc != nil {
			keys := c.byUID[inc.UID]
			for i, k := range keys {
				if k == key {
					c.byUID[inc.UID] = append(keys[:i], keys[i+1:]...)
					break
				}
			}
		}
	}
	delete(c.byNotebook, uid)
	c.mu.Unlock()
}

// Notebook returns the notebook for uid, or nil.
func (c *Calendar) Notebook(uid string) *model.Notebook {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.notebooks[uid]
}

// Notebooks returns every loaded notebook.
func (c *Calendar) Notebooks() []*model.Notebook {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*model.Notebook, 0, len(c.notebooks))
	for _, n := range c.notebooks {
		out = append(out, n)
	}
	return out
}

// Resolver returns the zone resolver this calendar currently uses.
func (c *Calendar) Resolver() model.ZoneResolver {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resolver
}

// SetResolver replaces the zone resolver, e.g. after reloading
// VTIMEZONE blocks following a change notification. It does not
// reinterpret already-decoded incidences.
func (c *Calendar) SetResolver(r model.ZoneResolver) {
	if r == nil {
		r = model.NoZoneResolver
	}
	c.mu.Lock()
	c.resolver = r
	c.mu.Unlock()
}

// NotifyModified tells every observer that an external process
// committed a change to the database at path. Calendar does not
// reload anything itself: the facade decides what, if anything, to
// re-fetch.
func (c *Calendar) NotifyModified(path string) {
	c.mu.RLock()
	observers := append([]Observer(nil), c.observers...)
	c.mu.RUnlock()

	for _, o := range observers {
		func(o Observer) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("calendar: observer panicked")
				}
			}()
			o.Modified(path)
		}(o)
	}
}
