// Package schema holds the SQLite data definition for the calendar
// store: calendars (notebooks), components (incidences) and their
// child tables, plus the bookkeeping tables the engine and the
// calendar facade use for change tracking and inter-process
// notification.
package schema

// DDL creates every table, index, and trigger the store needs if they
// don't already exist. It is safe to run against an existing database.
const DDL = `
-- ============================================================
-- METADATA: single-row table tracking schema/transaction state
-- ============================================================
CREATE TABLE IF NOT EXISTS metadata (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

INSERT OR IGNORE INTO metadata (key, value) VALUES ('schema_version', '1');
INSERT OR IGNORE INTO metadata (key, value) VALUES ('transaction_id', '0');

-- ============================================================
-- CALENDARS: notebooks
-- ============================================================
CREATE TABLE IF NOT EXISTS calendars (
	uid TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	color TEXT NOT NULL DEFAULT '',
	plugin_name TEXT NOT NULL DEFAULT '',
	account TEXT NOT NULL DEFAULT '',
	allow_events INTEGER NOT NULL DEFAULT 1,
	allow_todos INTEGER NOT NULL DEFAULT 1,
	allow_journals INTEGER NOT NULL DEFAULT 1,
	visible INTEGER NOT NULL DEFAULT 1,
	read_only INTEGER NOT NULL DEFAULT 0,
	is_default INTEGER NOT NULL DEFAULT 0,
	shared INTEGER NOT NULL DEFAULT 0,
	master INTEGER NOT NULL DEFAULT 0,
	synchronized INTEGER NOT NULL DEFAULT 0,
	shareable INTEGER NOT NULL DEFAULT 0,
	sync_profile TEXT NOT NULL DEFAULT '',
	attachment_size INTEGER NOT NULL DEFAULT 0,
	shared_with TEXT NOT NULL DEFAULT '',
	sync_date INTEGER NOT NULL DEFAULT 0,
	created INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
	modified INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);

CREATE TABLE IF NOT EXISTS calendar_properties (
	notebook_uid TEXT NOT NULL,
	name TEXT NOT NULL,
	value TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (notebook_uid, name),
	FOREIGN KEY (notebook_uid) REFERENCES calendars(uid) ON DELETE CASCADE
);

-- ============================================================
-- COMPONENTS: incidences (events, todos, journals)
--
-- notebook_uid deliberately carries no foreign key: the valid-notebook
-- policy is enforced in application code (Storage.IsValidNotebook), not
-- by the schema, so a row can be saved ahead of its notebook's own
-- metadata arriving. DeleteNotebook cascades manually instead.
-- ============================================================
CREATE TABLE IF NOT EXISTS components (
	uid TEXT NOT NULL,
	recurrence_id_utc INTEGER NOT NULL DEFAULT 0,
	recurrence_id_local INTEGER NOT NULL DEFAULT 0,
	recurrence_id_zone TEXT NOT NULL DEFAULT '',
	this_and_future INTEGER NOT NULL DEFAULT 0,
	notebook_uid TEXT NOT NULL,
	kind TEXT NOT NULL CHECK (kind IN ('event', 'todo', 'journal')),
	summary TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	location TEXT NOT NULL DEFAULT '',
	categories TEXT NOT NULL DEFAULT '',
	classification INTEGER NOT NULL DEFAULT 0,
	status INTEGER NOT NULL DEFAULT 0,

	dtstart_utc INTEGER NOT NULL DEFAULT 0,
	dtstart_local INTEGER NOT NULL DEFAULT 0,
	dtstart_zone TEXT NOT NULL DEFAULT '',
	dtend_utc INTEGER NOT NULL DEFAULT 0,
	dtend_local INTEGER NOT NULL DEFAULT 0,
	dtend_zone TEXT NOT NULL DEFAULT '',
	all_day INTEGER NOT NULL DEFAULT 0,
	transparency TEXT NOT NULL DEFAULT 'OPAQUE',

	due_utc INTEGER NOT NULL DEFAULT 0,
	due_local INTEGER NOT NULL DEFAULT 0,
	due_zone TEXT NOT NULL DEFAULT '',
	completed_utc INTEGER NOT NULL DEFAULT 0,
	percent_complete INTEGER NOT NULL DEFAULT 0,
	priority INTEGER NOT NULL DEFAULT 0,

	has_geo INTEGER NOT NULL DEFAULT 0,
	latitude REAL NOT NULL DEFAULT 0,
	longitude REAL NOT NULL DEFAULT 0,

	rrule TEXT NOT NULL DEFAULT '',

	created INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
	last_modified INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
	revision INTEGER NOT NULL DEFAULT 0,
	deleted INTEGER NOT NULL DEFAULT 0,
	deleted_date INTEGER NOT NULL DEFAULT 0,

	PRIMARY KEY (uid, recurrence_id_utc)
);

CREATE INDEX IF NOT EXISTS idx_components_notebook ON components(notebook_uid);
CREATE INDEX IF NOT EXISTS idx_components_kind ON components(kind);
CREATE INDEX IF NOT EXISTS idx_components_dtstart ON components(dtstart_utc);
CREATE INDEX IF NOT EXISTS idx_components_modified ON components(last_modified);
CREATE INDEX IF NOT EXISTS idx_components_created ON components(created);
CREATE INDEX IF NOT EXISTS idx_components_deleted ON components(deleted, deleted_date);
CREATE INDEX IF NOT EXISTS idx_components_duplicate ON components(dtstart_utc, notebook_uid, summary);

CREATE TABLE IF NOT EXISTS custom_properties (
	uid TEXT NOT NULL,
	recurrence_id_utc INTEGER NOT NULL DEFAULT 0,
	name TEXT NOT NULL,
	value TEXT NOT NULL DEFAULT '',
	parameters TEXT NOT NULL DEFAULT '',
	FOREIGN KEY (uid, recurrence_id_utc) REFERENCES components(uid, recurrence_id_utc) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_custom_properties_component ON custom_properties(uid, recurrence_id_utc);

CREATE TABLE IF NOT EXISTS attendees (
	uid TEXT NOT NULL,
	recurrence_id_utc INTEGER NOT NULL DEFAULT 0,
	email TEXT NOT NULL DEFAULT '',
	name TEXT NOT NULL DEFAULT '',
	role TEXT NOT NULL DEFAULT '',
	partstat TEXT NOT NULL DEFAULT '',
	rsvp INTEGER NOT NULL DEFAULT 0,
	is_organizer INTEGER NOT NULL DEFAULT 0,
	FOREIGN KEY (uid, recurrence_id_utc) REFERENCES components(uid, recurrence_id_utc) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_attendees_component ON attendees(uid, recurrence_id_utc);

CREATE TABLE IF NOT EXISTS alarms (
	alarm_uid TEXT PRIMARY KEY,
	uid TEXT NOT NULL,
	recurrence_id_utc INTEGER NOT NULL DEFAULT 0,
	trigger_seconds INTEGER NOT NULL DEFAULT 0,
	trigger_abs_utc INTEGER NOT NULL DEFAULT 0,
	relative INTEGER NOT NULL DEFAULT 1,
	related_to_end INTEGER NOT NULL DEFAULT 0,
	repeat_count INTEGER NOT NULL DEFAULT 0,
	repeat_delay_seconds INTEGER NOT NULL DEFAULT 0,
	enabled INTEGER NOT NULL DEFAULT 1,
	description TEXT NOT NULL DEFAULT '',
	FOREIGN KEY (uid, recurrence_id_utc) REFERENCES components(uid, recurrence_id_utc) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_alarms_component ON alarms(uid, recurrence_id_utc);

CREATE TABLE IF NOT EXISTS attachments (
	uid TEXT NOT NULL,
	recurrence_id_utc INTEGER NOT NULL DEFAULT 0,
	uri TEXT NOT NULL DEFAULT '',
	mime_type TEXT NOT NULL DEFAULT '',
	data BLOB,
	label TEXT NOT NULL DEFAULT '',
	FOREIGN KEY (uid, recurrence_id_utc) REFERENCES components(uid, recurrence_id_utc) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_attachments_component ON attachments(uid, recurrence_id_utc);

-- ============================================================
-- RECURSIVE: EXRULE rows, keyed like components but many per master
-- ============================================================
CREATE TABLE IF NOT EXISTS recursive (
	uid TEXT NOT NULL,
	recurrence_id_utc INTEGER NOT NULL DEFAULT 0,
	is_exrule INTEGER NOT NULL DEFAULT 0,
	rrule TEXT NOT NULL DEFAULT '',
	FOREIGN KEY (uid, recurrence_id_utc) REFERENCES components(uid, recurrence_id_utc) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_recursive_component ON recursive(uid, recurrence_id_utc);

CREATE TABLE IF NOT EXISTS rdates (
	uid TEXT NOT NULL,
	recurrence_id_utc INTEGER NOT NULL DEFAULT 0,
	is_exdate INTEGER NOT NULL DEFAULT 0,
	date_utc INTEGER NOT NULL,
	date_local INTEGER NOT NULL,
	date_zone TEXT NOT NULL DEFAULT '',
	FOREIGN KEY (uid, recurrence_id_utc) REFERENCES components(uid, recurrence_id_utc) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_rdates_component ON rdates(uid, recurrence_id_utc);

-- ============================================================
-- TIMEZONES: embedded VTIMEZONE blocks, consumed only through the
-- narrow ZoneResolver interface
-- ============================================================
CREATE TABLE IF NOT EXISTS timezones (
	tzid TEXT PRIMARY KEY,
	ics_data TEXT NOT NULL DEFAULT ''
);
`
