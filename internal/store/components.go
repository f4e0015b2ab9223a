package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-mkcal/mkcal/internal/codec"
	"github.com/go-mkcal/mkcal/internal/model"
)

const componentColumns = `uid, recurrence_id_utc, recurrence_id_local, recurrence_id_zone, this_and_future,
	notebook_uid, kind, summary, description, location, categories, classification, status,
	dtstart_utc, dtstart_local, dtstart_zone, dtend_utc, dtend_local, dtend_zone, all_day, transparency,
	due_utc, due_local, due_zone, completed_utc, percent_complete, priority,
	has_geo, latitude, longitude, rrule,
	created, last_modified, revision, deleted, deleted_date`

// UpsertComponent writes row and replaces its child rows (custom
// properties, attendees, alarms, attachments, recursive/rdate rows)
// within tx. Child tables are purged before reinsertion rather than
// diffed, matching the teacher engine's reload-on-write approach.
func UpsertComponent(tx *sql.Tx, row codec.ComponentRow, inc *model.Incidence) error {
	_, err := tx.Exec(`
		INSERT INTO components (`+componentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid, recurrence_id_utc) DO UPDATE SET
			recurrence_id_local = excluded.recurrence_id_local,
			recurrence_id_zone = excluded.recurrence_id_zone,
			this_and_future = excluded.this_and_future,
			notebook_uid = excluded.notebook_uid,
			kind = excluded.kind,
			summary = excluded.summary,
			description = excluded.description,
			location = excluded.location,
			categories = excluded.categories,
			classification = excluded.classification,
			status = excluded.status,
			dtstart_utc = excluded.dtstart_utc, dtstart_local = excluded.dtstart_local, dtstart_zone = excluded.dtstart_zone,
			dtend_utc = excluded.dtend_utc, dtend_local = excluded.dtend_local, dtend_zone = excluded.dtend_zone,
			all_day = excluded.all_day, transparency = excluded.transparency,
			due_utc = excluded.due_utc, due_local = excluded.due_local, due_zone = excluded.due_zone,
			completed_utc = excluded.completed_utc, percent_complete = excluded.percent_complete, priority = excluded.priority,
			has_geo = excluded.has_geo, latitude = excluded.latitude, longitude = excluded.longitude, rrule = excluded.rrule,
			last_modified = excluded.last_modified, revision = excluded.revision,
			deleted = excluded.deleted, deleted_date = excluded.deleted_date
	`,
		row.UID, row.RecurrenceIDUTC, row.RecurrenceIDLocal, row.RecurrenceIDZone, boolToInt(row.ThisAndFuture),
		row.NotebookUID, row.Kind, row.Summary, row.Description, row.Location, row.Categories, row.Classification, row.Status,
		row.DtStartUTC, row.DtStartLocal, row.DtStartZone, row.DtEndUTC, row.DtEndLocal, row.DtEndZone, boolToInt(row.AllDay), row.Transparency,
		row.DueUTC, row.DueLocal, row.DueZone, row.CompletedUTC, row.PercentComplete, row.Priority,
		boolToInt(row.HasGeo), row.Latitude, row.Longitude, row.RRule,
		row.Created, row.LastModified, row.Revision, boolToInt(row.Deleted), row.DeletedDate,
	)
	if err != nil {
		return wrap(ErrUnknown, "store: upsert component", err)
	}

	if err := purgeChildren(tx, row.UID, row.RecurrenceIDUTC); err != nil {
		return err
	}
	return insertChildren(tx, row.UID, row.RecurrenceIDUTC, inc)
}

func purgeChildren(tx *sql.Tx, uid string, ridUTC int64) error {
	for _, table := range []string{"custom_properties", "attendees", "alarms", "attachments", "recursive", "rdates"} {
		if _, err := tx.Exec(`DELETE FROM `+table+` WHERE uid = ? AND recurrence_id_utc = ?`, uid, ridUTC); err != nil {
			return wrap(ErrUnknown, "store: purge "+table, err)
		}
	}
	return nil
}

func insertChildren(tx *sql.Tx, uid string, ridUTC int64, inc *model.Incidence) error {
	for _, cp := range inc.CustomProps {
		params := ""
		for k, v := range cp.Parameters {
			params += k + "=" + v + ";"
		}
		if _, err := tx.Exec(`INSERT INTO custom_properties (uid, recurrence_id_utc, name, value, parameters) VALUES (?, ?, ?, ?, ?)`,
			uid, ridUTC, cp.Name, cp.Value, params); err != nil {
			return wrap(ErrUnknown, "store: insert custom property", err)
		}
	}
	for _, a := range inc.Attendees {
		if _, err := tx.Exec(`INSERT INTO attendees (uid, recurrence_id_utc, email, name, role, partstat, rsvp, is_organizer) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uid, ridUTC, a.Email, a.Name, a.Role, a.PartStat, boolToInt(a.RSVP), boolToInt(a.IsOrganizer)); err != nil {
			return wrap(ErrUnknown, "store: insert attendee", err)
		}
	}
	if inc.Organizer != nil {
		o := *inc.Organizer
		o.IsOrganizer = true
		if _, err := tx.Exec(`INSERT INTO attendees (uid, recurrence_id_utc, email, name, role, partstat, rsvp, is_organizer) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			uid, ridUTC, o.Email, o.Name, "CHAIR", o.PartStat, boolToInt(o.RSVP), 1); err != nil {
			return wrap(ErrUnknown, "store: insert organizer", err)
		}
	}
	for _, al := range inc.Alarms {
		if _, err := tx.Exec(`INSERT INTO alarms (alarm_uid, uid, recurrence_id_utc, trigger_seconds, trigger_abs_utc, relative, related_to_end, repeat_count, repeat_delay_seconds, enabled, description)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			al.UID, uid, ridUTC, int64(al.Trigger.Seconds()), model.ToOriginTime(al.TriggerAbs), boolToInt(al.Relative), boolToInt(al.RelatedToEnd),
			al.Repeat, int64(al.RepeatDelay.Seconds()), boolToInt(al.Enabled), al.Description); err != nil {
			return wrap(ErrUnknown, "store: insert alarm", err)
		}
	}
	for _, at := range inc.Attachments {
		if _, err := tx.Exec(`INSERT INTO attachments (uid, recurrence_id_utc, uri, mime_type, data, label) VALUES (?, ?, ?, ?, ?, ?)`,
			uid, ridUTC, at.URI, at.MimeType, at.Data, at.Label); err != nil {
			return wrap(ErrUnknown, "store: insert attachment", err)
		}
	}
	for _, ex := range inc.ExRules {
		if _, err := tx.Exec(`INSERT INTO recursive (uid, recurrence_id_utc, is_exrule, rrule) VALUES (?, ?, 1, ?)`,
			uid, ridUTC, codec.EncodeRRule(ex)); err != nil {
			return wrap(ErrUnknown, "store: insert exrule", err)
		}
	}
	for _, rd := range inc.RDates {
		ts := model.EncodeTimestamp(rd, false)
		if _, err := tx.Exec(`INSERT INTO rdates (uid, recurrence_id_utc, is_exdate, date_utc, date_local, date_zone) VALUES (?, ?, 0, ?, ?, ?)`,
			uid, ridUTC, ts.SecondsUTC, ts.SecondsLocal, ts.Zone); err != nil {
			return wrap(ErrUnknown, "store: insert rdate", err)
		}
	}
	for _, ed := range inc.ExDates {
		ts := model.EncodeTimestamp(ed, false)
		if _, err := tx.Exec(`INSERT INTO rdates (uid, recurrence_id_utc, is_exdate, date_utc, date_local, date_zone) VALUES (?, ?, 1, ?, ?, ?)`,
			uid, ridUTC, ts.SecondsUTC, ts.SecondsLocal, ts.Zone); err != nil {
			return wrap(ErrUnknown, "store: insert exdate", err)
		}
	}
	return nil
}

// LoadChildren populates the slice fields of inc from the child tables.
func LoadChildren(ctx context.Context, db *sql.DB, inc *model.Incidence) error {
	uid, rid := inc.UID, int64(0)
	if inc.RecurrenceID != nil {
		rid = model.EncodeTimestamp(*inc.RecurrenceID, false).SecondsUTC
	}

	rows, err := db.QueryContext(ctx, `SELECT name, value, parameters FROM custom_properties WHERE uid = ? AND recurrence_id_utc = ?`, uid, rid)
	if err != nil {
		return wrap(ErrUnknown, "store: load custom properties", err)
	}
	for rows.Next() {
		var cp model.CustomProperty
		var params string
		if err := rows.Scan(&cp.Name, &cp.Value, &params); err != nil {
			rows.Close()
			return wrap(ErrUnknown, "store: scan custom property", err)
		}
		cp.Parameters = parseParams(params)
		inc.CustomProps = append(inc.CustomProps, cp)
	}
	rows.Close()

	arows, err := db.QueryContext(ctx, `SELECT email, name, role, partstat, rsvp, is_organizer FROM attendees WHERE uid = ? AND recurrence_id_utc = ?`, uid, rid)
	if err != nil {
		return wrap(ErrUnknown, "store: load attendees", err)
	}
	for arows.Next() {
		var a model.Attendee
		var rsvp, isOrg int64
		if err := arows.Scan(&a.Email, &a.Name, &a.Role, &a.PartStat, &rsvp, &isOrg); err != nil {
			arows.Close()
			return wrap(ErrUnknown, "store: scan attendee", err)
		}
		a.RSVP = rsvp != 0
		a.IsOrganizer = isOrg != 0
		if a.IsOrganizer {
			org := a
			inc.Organizer = &org
			continue
		}
		inc.Attendees = append(inc.Attendees, a)
	}
	arows.Close()

	alrows, err := db.QueryContext(ctx, `SELECT alarm_uid, trigger_seconds, trigger_abs_utc, relative, related_to_end, repeat_count, repeat_delay_seconds, enabled, description
		FROM alarms WHERE uid = ? AND recurrence_id_utc = ?`, uid, rid)
	if err != nil {
		return wrap(ErrUnknown, "store: load alarms", err)
	}
	for alrows.Next() {
		var a model.Alarm
		var triggerSec, triggerAbs, repeatDelaySec, relative, relEnd, enabled int64
		if err := alrows.Scan(&a.UID, &triggerSec, &triggerAbs, &relative, &relEnd, &a.Repeat, &repeatDelaySec, &enabled, &a.Description); err != nil {
			alrows.Close()
			return wrap(ErrUnknown, "store: scan alarm", err)
		}
		a.Trigger = time.Duration(triggerSec) * time.Second
		a.RepeatDelay = time.Duration(repeatDelaySec) * time.Second
		a.Relative = relative != 0
		a.RelatedToEnd = relEnd != 0
		a.Enabled = enabled != 0
		if triggerAbs != 0 {
			a.TriggerAbs = time.Unix(triggerAbs, 0).UTC()
		}
		inc.Alarms = append(inc.Alarms, a)
	}
	alrows.Close()

	atrows, err := db.QueryContext(ctx, `SELECT uri, mime_type, data, label FROM attachments WHERE uid = ? AND recurrence_id_utc = ?`, uid, rid)
	if err != nil {
		return wrap(ErrUnknown, "store: load attachments", err)
	}
	for atrows.Next() {
		var at model.Attachment
		if err := atrows.Scan(&at.URI, &at.MimeType, &at.Data, &at.Label); err != nil {
			atrows.Close()
			return wrap(ErrUnknown, "store: scan attachment", err)
		}
		inc.Attachments = append(inc.Attachments, at)
	}
	atrows.Close()

	rrows, err := db.QueryContext(ctx, `SELECT is_exrule, rrule FROM recursive WHERE uid = ? AND recurrence_id_utc = ?`, uid, rid)
	if err != nil {
		return wrap(ErrUnknown, "store: load recursive", err)
	}
	for rrows.Next() {
		var isExrule int64
		var rruleStr string
		if err := rrows.Scan(&isExrule, &rruleStr); err != nil {
			rrows.Close()
			return wrap(ErrUnknown, "store: scan recursive", err)
		}
		rr, err := codec.DecodeRRule(rruleStr)
		if err != nil {
			rrows.Close()
			return wrap(ErrUnknown, "store: decode exrule", err)
		}
		if isExrule != 0 {
			inc.ExRules = append(inc.ExRules, rr)
		}
	}
	rrows.Close()

	dates, err := db.QueryContext(ctx, `SELECT is_exdate, date_utc, date_local, date_zone FROM rdates WHERE uid = ? AND recurrence_id_utc = ?`, uid, rid)
	if err != nil {
		return wrap(ErrUnknown, "store: load rdates", err)
	}
	for dates.Next() {
		var isExdate, du, dl int64
		var zone string
		if err := dates.Scan(&isExdate, &du, &dl, &zone); err != nil {
			dates.Close()
			return wrap(ErrUnknown, "store: scan rdate", err)
		}
		t := model.DecodeTimestamp(model.Timestamp{SecondsUTC: du, SecondsLocal: dl, Zone: zone}, model.NoZoneResolver)
		if isExdate != 0 {
			inc.ExDates = append(inc.ExDates, t)
		} else {
			inc.RDates = append(inc.RDates, t)
		}
	}
	dates.Close()

	return nil
}

func parseParams(s string) map[string]string {
	if s == "" {
		return nil
	}
	out := map[string]string{}
	for _, kv := range strings.Split(s, ";") {
		if kv == "" {
			continue
		}
		name, value, found := strings.Cut(kv, "=")
		if !found {
			continue
		}
		out[name] = value
	}
	return out
}

