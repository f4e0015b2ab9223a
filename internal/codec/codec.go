// Package codec translates between model.Incidence / model.Notebook
// and the flat row shapes of the schema package, including the
// seconds_utc/seconds_local/zone origin-time triplet and the legacy
// all-day end-date convention. Purging child rows before reinserting
// them is done by the store package, not here.
package codec

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-mkcal/mkcal/internal/model"
)

// geoUnset is the conventional "no location" sentinel mirrored from
// the legacy desktop calendar stack (255.0, used because valid
// latitude/longitude never reach it); has_geo is still the
// authoritative flag and is checked before either field is trusted.
const geoUnset = 255.0

// ComponentRow is the flat shape of one row of the components table,
// joined with its child rows, ready for binding to a prepared
// statement or scanning from one.
type ComponentRow struct {
	UID                string
	RecurrenceIDUTC    int64
	RecurrenceIDLocal  int64
	RecurrenceIDZone   string
	ThisAndFuture      bool
	NotebookUID        string
	Kind               string
	Summary            string
	Description        string
	Location           string
	Categories         string
	Classification     int
	Status             int
	DtStartUTC         int64
	DtStartLocal       int64
	DtStartZone        string
	DtEndUTC           int64
	DtEndLocal         int64
	DtEndZone          string
	AllDay             bool
	Transparency       string
	DueUTC             int64
	DueLocal           int64
	DueZone            string
	CompletedUTC       int64
	PercentComplete    int
	Priority           int
	HasGeo             bool
	Latitude           float64
	Longitude          float64
	RRule              string
	Created            int64
	LastModified       int64
	Revision           int
	Deleted            bool
	DeletedDate        int64
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func joinCategories(cats []string) string {
	return strings.Join(cats, "\x1f")
}

func splitCategories(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "\x1f")
}

// EncodeComponent flattens an Incidence into its components row. The
// all-day legacy convention (storing dtend one day past the last
// visible day) is applied here, matching how existing databases were
// written by the original desktop client.
func EncodeComponent(inc *model.Incidence) ComponentRow {
	row := ComponentRow{
		UID:            inc.UID,
		ThisAndFuture:  inc.ThisAndFuture,
		NotebookUID:    inc.NotebookUID,
		Kind:           inc.Kind.String(),
		Summary:        inc.Summary,
		Description:    inc.Description,
		Location:       inc.Location,
		Categories:     joinCategories(inc.Categories),
		Classification: int(inc.Classification),
		HasGeo:         inc.HasGeo,
		Created:        model.ToOriginTime(inc.Created),
		LastModified:   model.ToOriginTime(inc.LastModified),
		Revision:       inc.Revision,
		Deleted:        inc.Deleted,
	}
	if inc.HasGeo {
		row.Latitude = inc.Latitude
		row.Longitude = inc.Longitude
	} else {
		row.Latitude = geoUnset
		row.Longitude = geoUnset
	}
	if inc.RecurrenceID != nil {
		ts := model.EncodeTimestamp(*inc.RecurrenceID, false)
		row.RecurrenceIDUTC = ts.SecondsUTC
		row.RecurrenceIDLocal = ts.SecondsLocal
		row.RecurrenceIDZone = ts.Zone
	}
	if !inc.DeletedDate.IsZero() {
		row.DeletedDate = model.ToOriginTime(inc.DeletedDate)
	}
	if inc.RRule != nil {
		row.RRule = EncodeRRule(*inc.RRule)
	}

	switch inc.Kind {
	case model.KindEvent:
		if ev := inc.Event; ev != nil {
			row.AllDay = ev.AllDay
			row.Transparency = ev.Transparency
			row.Status = int(ev.Status)
			start := model.EncodeTimestamp(ev.DtStart, ev.AllDay)
			row.DtStartUTC, row.DtStartLocal, row.DtStartZone = start.SecondsUTC, start.SecondsLocal, start.Zone
			end := ev.DtEnd
			if ev.AllDay && !end.IsZero() {
				end = end.AddDate(0, 0, 1)
			}
			ets := model.EncodeTimestamp(end, ev.AllDay)
			row.DtEndUTC, row.DtEndLocal, row.DtEndZone = ets.SecondsUTC, ets.SecondsLocal, ets.Zone
		}
	case model.KindTodo:
		if td := inc.Todo; td != nil {
			row.Status = int(td.Status)
			row.PercentComplete = td.PercentComplete
			row.Priority = td.Priority
			start := model.EncodeTimestamp(td.DtStart, false)
			row.DtStartUTC, row.DtStartLocal, row.DtStartZone = start.SecondsUTC, start.SecondsLocal, start.Zone
			due := model.EncodeTimestamp(td.Due, false)
			row.DueUTC, row.DueLocal, row.DueZone = due.SecondsUTC, due.SecondsLocal, due.Zone
			row.CompletedUTC = model.ToOriginTime(td.Completed)
		}
	case model.KindJournal:
		if jr := inc.Journal; jr != nil {
			row.Status = int(jr.Status)
			start := model.EncodeTimestamp(jr.DtStart, false)
			row.DtStartUTC, row.DtStartLocal, row.DtStartZone = start.SecondsUTC, start.SecondsLocal, start.Zone
		}
	}
	return row
}

// DecodeComponent rebuilds an Incidence from its row, reversing the
// legacy all-day dtend convention and resolving the has_geo sentinel.
func DecodeComponent(row ComponentRow, resolver model.ZoneResolver) *model.Incidence {
	inc := &model.Incidence{
		Header: model.Header{
			UID:            row.UID,
			NotebookUID:    row.NotebookUID,
			ThisAndFuture:  row.ThisAndFuture,
			Summary:        row.Summary,
			Description:    row.Description,
			Location:       row.Location,
			Categories:     splitCategories(row.Categories),
			Classification: model.Classification(row.Classification),
			HasGeo:         row.HasGeo,
			Created:        time.Unix(row.Created, 0).UTC(),
			LastModified:   time.Unix(row.LastModified, 0).UTC(),
			Revision:       row.Revision,
			Deleted:        row.Deleted,
		},
	}
	if row.HasGeo {
		inc.Latitude = row.Latitude
		inc.Longitude = row.Longitude
	}
	if row.DeletedDate != 0 {
		inc.DeletedDate = time.Unix(row.DeletedDate, 0).UTC()
	}
	if row.RecurrenceIDUTC != 0 || row.RecurrenceIDLocal != 0 || row.RecurrenceIDZone != "" {
		rid := model.DecodeTimestamp(model.Timestamp{
			SecondsUTC: row.RecurrenceIDUTC, SecondsLocal: row.RecurrenceIDLocal, Zone: row.RecurrenceIDZone,
		}, resolver)
		inc.RecurrenceID = &rid
	}
	if row.RRule != "" {
		if rr, err := DecodeRRule(row.RRule); err == nil {
			inc.RRule = &rr
		}
	}

	switch row.Kind {
	case model.KindEvent.String():
		inc.Kind = model.KindEvent
		dtstart := model.DecodeTimestamp(model.Timestamp{SecondsUTC: row.DtStartUTC, SecondsLocal: row.DtStartLocal, Zone: row.DtStartZone}, resolver)
		dtend := model.DecodeTimestamp(model.Timestamp{SecondsUTC: row.DtEndUTC, SecondsLocal: row.DtEndLocal, Zone: row.DtEndZone}, resolver)
		if row.AllDay && !dtend.IsZero() {
			dtend = dtend.AddDate(0, 0, -1)
		}
		inc.Event = &model.EventFields{
			DtStart:      dtstart,
			DtEnd:        dtend,
			AllDay:       row.AllDay,
			Transparency: row.Transparency,
			Status:       model.Status(row.Status),
		}
	case model.KindTodo.String():
		inc.Kind = model.KindTodo
		inc.Todo = &model.TodoFields{
			DtStart:         model.DecodeTimestamp(model.Timestamp{SecondsUTC: row.DtStartUTC, SecondsLocal: row.DtStartLocal, Zone: row.DtStartZone}, resolver),
			Due:             model.DecodeTimestamp(model.Timestamp{SecondsUTC: row.DueUTC, SecondsLocal: row.DueLocal, Zone: row.DueZone}, resolver),
			PercentComplete: row.PercentComplete,
			Priority:        row.Priority,
			Status:          model.Status(row.Status),
		}
		if row.CompletedUTC != 0 {
			inc.Todo.Completed = time.Unix(row.CompletedUTC, 0).UTC()
		}
	case model.KindJournal.String():
		inc.Kind = model.KindJournal
		inc.Journal = &model.JournalFields{
			DtStart: model.DecodeTimestamp(model.Timestamp{SecondsUTC: row.DtStartUTC, SecondsLocal: row.DtStartLocal, Zone: row.DtStartZone}, resolver),
			Status:  model.Status(row.Status),
		}
	}
	return inc
}

// EncodeRRule serializes a by-part RecurrenceRule into the compact
// key=value;key=value form stored in the rrule column.
func EncodeRRule(r model.RecurrenceRule) string {
	parts := []string{"FREQ=" + freqName(r.Freq)}
	if r.Interval > 1 {
		parts = append(parts, "INTERVAL="+strconv.Itoa(r.Interval))
	}
	// count and until are mutually exclusive on disk; count wins when a
	// caller (incorrectly) set both.
	switch {
	case r.Count != nil:
		parts = append(parts, "COUNT="+strconv.Itoa(*r.Count))
	case r.Until != nil:
		parts = append(parts, "UNTIL="+strconv.FormatInt(r.Until.UTC().Unix(), 10))
	}
	if len(r.ByDay) > 0 {
		days := make([]string, len(r.ByDay))
		for i, d := range r.ByDay {
			days[i] = byDayString(d)
		}
		parts = append(parts, "BYDAY="+strings.Join(days, ","))
	}
	if len(r.ByMonth) > 0 {
		parts = append(parts, "BYMONTH="+joinInts(r.ByMonth))
	}
	if len(r.ByMonthDay) > 0 {
		parts = append(parts, "BYMONTHDAY="+joinInts(r.ByMonthDay))
	}
	if len(r.ByYearDay) > 0 {
		parts = append(parts, "BYYEARDAY="+joinInts(r.ByYearDay))
	}
	if len(r.ByWeekNo) > 0 {
		parts = append(parts, "BYWEEKNO="+joinInts(r.ByWeekNo))
	}
	if len(r.BySetPos) > 0 {
		parts = append(parts, "BYSETPOS="+joinInts(r.BySetPos))
	}
	parts = append(parts, "WKST="+weekdayName(r.WeekStart))
	return strings.Join(parts, ";")
}

// DecodeRRule parses the key=value;key=value form back into a
// by-part RecurrenceRule.
func DecodeRRule(s string) (model.RecurrenceRule, error) {
	var r model.RecurrenceRule
	r.Interval = 1
	for _, field := range strings.Split(s, ";") {
		kv := strings.SplitN(field, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key, val := kv[0], kv[1]
		switch key {
		case "FREQ":
			r.Freq = freqFromName(val)
		case "INTERVAL":
			n, err := strconv.Atoi(val)
			if err != nil {
				return r, fmt.Errorf("codec: parse INTERVAL: %w", err)
			}
			r.Interval = n
		case "COUNT":
			n, err := strconv.Atoi(val)
			if err != nil {
				return r, fmt.Errorf("codec: parse COUNT: %w", err)
			}
			r.Count = &n
		case "UNTIL":
			n, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return r, fmt.Errorf("codec: parse UNTIL: %w", err)
			}
			t := time.Unix(n, 0).UTC()
			r.Until = &t
		case "BYDAY":
			for _, d := range strings.Split(val, ",") {
				bd, err := parseByDay(d)
				if err != nil {
					return r, err
				}
				r.ByDay = append(r.ByDay, bd)
			}
		case "BYMONTH":
			r.ByMonth = parseInts(val)
		case "BYMONTHDAY":
			r.ByMonthDay = parseInts(val)
		case "BYYEARDAY":
			r.ByYearDay = parseInts(val)
		case "BYWEEKNO":
			r.ByWeekNo = parseInts(val)
		case "BYSETPOS":
			r.BySetPos = parseInts(val)
		case "WKST":
			r.WeekStart = weekdayFromName(val)
		}
	}
	// A row written before this normalization existed may still carry
	// both: count wins, per the decode rule.
	if r.Count != nil {
		r.Until = nil
	}
	return r, nil
}

var weekdayNames = map[model.Weekday]string{
	model.Monday: "MO", model.Tuesday: "TU", model.Wednesday: "WE",
	model.Thursday: "TH", model.Friday: "FR", model.Saturday: "SA", model.Sunday: "SU",
}

func weekdayName(w model.Weekday) string { return weekdayNames[w] }

func weekdayFromName(s string) model.Weekday {
	for w, n := range weekdayNames {
		if n == s {
			return w
		}
	}
	return model.Monday
}

func byDayString(d model.ByDay) string {
	if d.Ordinal == 0 {
		return weekdayName(d.Day)
	}
	return strconv.Itoa(d.Ordinal) + weekdayName(d.Day)
}

func parseByDay(s string) (model.ByDay, error) {
	if len(s) <= 2 {
		return model.ByDay{Day: weekdayFromName(s)}, nil
	}
	wd := s[len(s)-2:]
	ord := s[:len(s)-2]
	n, err := strconv.Atoi(ord)
	if err != nil {
		return model.ByDay{}, fmt.Errorf("codec: parse BYDAY ordinal %q: %w", s, err)
	}
	return model.ByDay{Ordinal: n, Day: weekdayFromName(wd)}, nil
}

func joinInts(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func parseInts(s string) []int {
	fields := strings.Split(s, ",")
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		if n, err := strconv.Atoi(f); err == nil {
			out = append(out, n)
		}
	}
	return out
}

var freqNames = map[model.Frequency]string{
	model.Secondly: "SECONDLY", model.Minutely: "MINUTELY", model.Hourly: "HOURLY",
	model.Daily: "DAILY", model.Weekly: "WEEKLY", model.Monthly: "MONTHLY", model.Yearly: "YEARLY",
}

func freqName(f model.Frequency) string { return freqNames[f] }

func freqFromName(s string) model.Frequency {
	for f, n := range freqNames {
		if n == s {
			return f
		}
	}
	return model.Daily
}

// ScanComponentRow reads one components table row via the given
// *sql.Rows cursor, matching the column order EncodeComponent's
// companion INSERT statement writes in.
func ScanComponentRow(rows *sql.Rows) (ComponentRow, error) {
	var row ComponentRow
	var thisAndFuture, allDay, hasGeo, deleted int64
	err := rows.Scan(
		&row.UID, &row.RecurrenceIDUTC, &row.RecurrenceIDLocal, &row.RecurrenceIDZone, &thisAndFuture,
		&row.NotebookUID, &row.Kind, &row.Summary, &row.Description, &row.Location, &row.Categories,
		&row.Classification, &row.Status,
		&row.DtStartUTC, &row.DtStartLocal, &row.DtStartZone,
		&row.DtEndUTC, &row.DtEndLocal, &row.DtEndZone, &allDay, &row.Transparency,
		&row.DueUTC, &row.DueLocal, &row.DueZone, &row.CompletedUTC, &row.PercentComplete, &row.Priority,
		&hasGeo, &row.Latitude, &row.Longitude, &row.RRule,
		&row.Created, &row.LastModified, &row.Revision, &deleted, &row.DeletedDate,
	)
	row.ThisAndFuture = thisAndFuture != 0
	row.AllDay = allDay != 0
	row.HasGeo = hasGeo != 0
	row.Deleted = deleted != 0
	return row, err
}
