package calendar

import (
	"sort"
	"time"

	"github.com/go-mkcal/mkcal/internal/model"
	"github.com/go-mkcal/mkcal/internal/rrule"
)

// Instance is one concrete occurrence of a (possibly recurring)
// incidence, with its own-kind start/end already shifted to the
// occurrence's actual time.
type Instance struct {
	Incidence    *model.Incidence // the master or the exception that supplied this occurrence
	RecurrenceID time.Time        // zero for a non-recurring incidence
	Start        time.Time
	End          time.Time
}

// ExpandOptions configures one call to Expand.
type ExpandOptions struct {
	From, To time.Time
}

// Expand returns every concrete occurrence of the series identified by
// uid within [from, to]. Exception children (rows with their own
// RecurrenceID) override the generated occurrence at that recurrence
// id instead of appearing twice; EXDATEs suppress occurrences outright.
// limitHit reports whether internal/rrule's MaxExpand cap truncated the
// series.
func (c *Calendar) Expand(uid string, from, to time.Time) (instances []Instance, limitHit bool, err error) {
	series := c.Series(uid)
	if len(series) == 0 {
		return nil, false, nil
	}

	var master *model.Incidence
	exceptions := map[time.Time]*model.Incidence{}
	for _, inc := range series {
		if inc.IsException() {
			exceptions[inc.RecurrenceID.UTC()] = inc
		} else {
			master = inc
		}
	}
	if master == nil {
		// No master (every row is already an exception, or the only
		// row is a detached single occurrence); treat each row as its
		// own single-occurrence instance.
		for rid, inc := range exceptions {
			if overlaps(inc.StartTime(), inc.EndTime(), from, to) {
				instances = append(instances, toInstance(inc, rid))
			}
		}
		sortInstances(instances)
		return instances, false, nil
	}

	if master.Deleted {
		return nil, false, nil
	}

	if !master.Recurs() {
		if overlaps(master.StartTime(), master.EndTime(), from, to) {
			instances = append(instances, toInstance(master, time.Time{}))
		}
		return instances, false, nil
	}

	set := rrule.Set{RDates: master.RDates, ExDates: master.ExDates}
	if master.RRule != nil {
		set.RRule = master.RRule
	}
	set.ExRules = master.ExRules

	occs, limitHit, err := rrule.Expand(set, master.StartTime(), from, to)
	if err != nil {
		return nil, false, err
	}

	duration := master.Duration()
	for _, occStart := range occs {
		rid := occStart.UTC()
		if ex, ok := exceptions[rid]; ok {
			if ex.Deleted {
				continue
			}
			if overlaps(ex.StartTime(), ex.EndTime(), from, to) {
				instances = append(instances, toInstance(ex, rid))
			}
			continue
		}
		occEnd := occStart.Add(duration)
		if overlaps(occStart, occEnd, from, to) {
			instances = append(instances, Instance{
				Incidence:    master,
				RecurrenceID: rid,
				Start:        occStart,
				End:          occEnd,
			})
		}
	}

	// THISANDFUTURE exceptions replace every generated occurrence at or
	// after their own recurrence id with their own field values, shifted
	// by the same start-time delta the exception itself carries.
	for rid, ex := range exceptions {
		if !ex.ThisAndFuture {
			continue
		}
		delta := ex.StartTime().Sub(rid)
		for i := range instances {
			if instances[i].Incidence == master && !instances[i].RecurrenceID.Before(rid) {
				instances[i].Incidence = ex
				instances[i].Start = instances[i].Start.Add(delta)
				instances[i].End = instances[i].End.Add(delta)
			}
		}
	}

	sortInstances(instances)
	return instances, limitHit, nil
}

func toInstance(inc *model.Incidence, rid time.Time) Instance {
	return Instance{Incidence: inc, RecurrenceID: rid, Start: inc.StartTime(), End: inc.EndTime()}
}

func overlaps(start, end, from, to time.Time) bool {
	if end.IsZero() {
		end = start
	}
	if start.IsZero() {
		return false
	}
	return !end.Before(from) && !start.After(to)
}

func sortInstances(instances []Instance) {
	sort.Slice(instances, func(i, j int) bool {
		return instances[i].Start.Before(instances[j].Start)
	})
}
