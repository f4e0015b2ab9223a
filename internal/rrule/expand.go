// Package rrule adapts the by-part model.RecurrenceRule to
// github.com/teambition/rrule-go's expansion engine, expanding in the
// incidence's own timezone (to keep wall-clock semantics across DST
// transitions) before converting results to UTC for the caller.
package rrule

import (
	"fmt"
	"time"

	goset "github.com/teambition/rrule-go"

	"github.com/go-mkcal/mkcal/internal/model"
)

// MaxExpand bounds how many occurrences a single Expand call will ever
// materialize, guarding against unbounded (e.g. COUNT-less, UNTIL-less)
// rules paired with a far-future window.
const MaxExpand = 1000

var weekdayMap = map[model.Weekday]goset.Weekday{
	model.Monday:    goset.MO,
	model.Tuesday:   goset.TU,
	model.Wednesday: goset.WE,
	model.Thursday:  goset.TH,
	model.Friday:    goset.FR,
	model.Saturday:  goset.SA,
	model.Sunday:    goset.SU,
}

var freqMap = map[model.Frequency]goset.Frequency{
	model.Secondly: goset.SECONDLY,
	model.Minutely: goset.MINUTELY,
	model.Hourly:   goset.HOURLY,
	model.Daily:    goset.DAILY,
	model.Weekly:   goset.WEEKLY,
	model.Monthly:  goset.MONTHLY,
	model.Yearly:   goset.YEARLY,
}

func toByWeekday(days []model.ByDay) []goset.Weekday {
	if len(days) == 0 {
		return nil
	}
	out := make([]goset.Weekday, 0, len(days))
	for _, d := range days {
		wd := weekdayMap[d.Day]
		if d.Ordinal != 0 {
			wd = wd.Nth(d.Ordinal)
		}
		out = append(out, wd)
	}
	return out
}

// Build constructs a github.com/teambition/rrule-go RRule from a
// by-part model.RecurrenceRule, anchored at dtstart (interpreted in
// dtstart's own location).
func Build(rule model.RecurrenceRule, dtstart time.Time) (*goset.RRule, error) {
	opt := goset.ROption{
		Freq:       freqMap[rule.Freq],
		Interval:   rule.Interval,
		Dtstart:    dtstart,
		Byweekday:  toByWeekday(rule.ByDay),
		Bymonth:    rule.ByMonth,
		Bymonthday: rule.ByMonthDay,
		Byyearday:  rule.ByYearDay,
		Byweekno:   rule.ByWeekNo,
		Bysetpos:   rule.BySetPos,
		Wkst:       weekdayMap[rule.WeekStart],
	}
	if opt.Interval <= 0 {
		opt.Interval = 1
	}
	// count and until are mutually exclusive; count wins so a rule
	// carrying both (e.g. a pre-normalization row) doesn't get
	// truncated early by an until that precedes the count-th
	// occurrence.
	switch {
	case rule.Count != nil:
		opt.Count = *rule.Count
	case rule.Until != nil:
		opt.Until = *rule.Until
	}
	r, err := goset.NewRRule(opt)
	if err != nil {
		return nil, fmt.Errorf("rrule: build rule: %w", err)
	}
	return r, nil
}

// Set bundles a master RRULE with its EXRULEs, RDATEs and EXDATEs the
// way rrule.RRuleSet does, so the three are expanded and filtered
// together in one pass.
type Set struct {
	RRule   *model.RecurrenceRule
	ExRules []model.RecurrenceRule
	RDates  []time.Time
	ExDates []time.Time
}

// Expand materializes occurrence start times between from and to
// (inclusive), in own, own's own location, then returns them converted
// to UTC. limitHit is true when MaxExpand truncated the result.
func Expand(s Set, dtstart, from, to time.Time) (occurrences []time.Time, limitHit bool, err error) {
	loc := dtstart.Location()
	if loc == nil {
		loc = time.UTC
	}
	localFrom := inLocation(from, loc)
	localTo := inLocation(to, loc)
	localDtstart := inLocation(dtstart, loc)

	set := goset.NewRRuleSet()
	if s.RRule != nil {
		r, err := Build(*s.RRule, localDtstart)
		if err != nil {
			return nil, false, err
		}
		set.RRule(r)
	} else {
		set.RDate(localDtstart)
	}
	for _, ex := range s.ExRules {
		r, err := Build(ex, localDtstart)
		if err != nil {
			return nil, false, err
		}
		set.ExRule(r)
	}
	for _, rd := range s.RDates {
		set.RDate(inLocation(rd, loc))
	}
	for _, ed := range s.ExDates {
		set.ExDate(inLocation(ed, loc))
	}

	local := set.Between(localFrom, localTo, true)
	if len(local) > MaxExpand {
		local = local[:MaxExpand]
		limitHit = true
	}
	occurrences = make([]time.Time, len(local))
	for i, t := range local {
		occurrences[i] = inLocation(t, loc).UTC()
	}
	return occurrences, limitHit, nil
}

func inLocation(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}
