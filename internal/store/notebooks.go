package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/go-mkcal/mkcal/internal/model"
)

const notebookColumns = `uid, name, description, color, plugin_name, account,
	allow_events, allow_todos, allow_journals,
	visible, read_only, is_default, shared, master, synchronized, shareable,
	sync_profile, attachment_size, shared_with,
	sync_date, created, modified`

// UpsertNotebook inserts or replaces a notebook row and its custom
// properties. run_time_only is deliberately not a column: a
// runtime-only notebook never touches disk.
func UpsertNotebook(tx *sql.Tx, n *model.Notebook) error {
	if n.RunTimeOnly {
		return nil
	}
	_, err := tx.Exec(`
		INSERT INTO calendars (`+notebookColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(uid) DO UPDATE SET
			name = excluded.name, description = excluded.description, color = excluded.color,
			plugin_name = excluded.plugin_name, account = excluded.account,
			allow_events = excluded.allow_events, allow_todos = excluded.allow_todos, allow_journals = excluded.allow_journals,
			visible = excluded.visible, read_only = excluded.read_only, is_default = excluded.is_default,
			shared = excluded.shared, master = excluded.master, synchronized = excluded.synchronized, shareable = excluded.shareable,
			sync_profile = excluded.sync_profile, attachment_size = excluded.attachment_size, shared_with = excluded.shared_with,
			sync_date = excluded.sync_date, modified = excluded.modified
	`,
		n.UID, n.Name, n.Description, n.Color, n.PluginName, n.Account,
		boolToInt(n.AllowEvents), boolToInt(n.AllowTodos), boolToInt(n.AllowJournals),
		boolToInt(n.Visible), boolToInt(n.ReadOnly), boolToInt(n.IsDefault), boolToInt(n.Shared),
		boolToInt(n.Master), boolToInt(n.Synchronized), boolToInt(n.Shareable),
		n.SyncProfile, n.AttachmentSize, strings.Join(n.SharedWith, ","),
		model.ToOriginTime(n.SyncDate), model.ToOriginTime(n.Created), model.ToOriginTime(n.Modified),
	)
	if err != nil {
		return wrap(ErrUnknown, "store: upsert notebook", err)
	}

	if _, err := tx.Exec(`DELETE FROM calendar_properties WHERE notebook_uid = ?`, n.UID); err != nil {
		return wrap(ErrUnknown, "store: purge notebook properties", err)
	}
	for _, cp := range n.CustomProps {
		if _, err := tx.Exec(`INSERT INTO calendar_properties (notebook_uid, name, value) VALUES (?, ?, ?)`,
			n.UID, cp.Name, cp.Value); err != nil {
			return wrap(ErrUnknown, "store: insert notebook property", err)
		}
	}
	return nil
}

// DeleteNotebook removes a notebook row, its custom properties, and
// every component that belongs to it (which in turn cascades, via the
// schema's foreign keys, to that component's own child rows).
// components.notebook_uid carries no foreign key of its own, so the
// component deletion is explicit here rather than left to the engine.
func DeleteNotebook(tx *sql.Tx, uid string) error {
	if _, err := tx.Exec(`DELETE FROM components WHERE notebook_uid = ?`, uid); err != nil {
		return wrap(ErrUnknown, "store: cascade delete notebook components", err)
	}
	if _, err := tx.Exec(`DELETE FROM calendars WHERE uid = ?`, uid); err != nil {
		return wrap(ErrUnknown, "store: delete notebook", err)
	}
	return nil
}

// SetDefaultNotebook clears is_default on every notebook, then sets it
// on uid.
func SetDefaultNotebook(tx *sql.Tx, uid string) error {
	if _, err := tx.Exec(`UPDATE calendars SET is_default = 0`); err != nil {
		return wrap(ErrUnknown, "store: clear default notebook", err)
	}
	if _, err := tx.Exec(`UPDATE calendars SET is_default = 1 WHERE uid = ?`, uid); err != nil {
		return wrap(ErrUnknown, "store: set default notebook", err)
	}
	return nil
}

// LoadNotebooks reads every notebook row along with its custom
// properties.
func LoadNotebooks(ctx context.Context, db *sql.DB) ([]*model.Notebook, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+notebookColumns+` FROM calendars`)
	if err != nil {
		return nil, wrap(ErrUnknown, "store: load notebooks", err)
	}
	defer rows.Close()

	var out []*model.Notebook
	for rows.Next() {
		n, err := scanNotebook(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, n := range out {
		if err := loadNotebookProperties(ctx, db, n); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func loadNotebookProperties(ctx context.Context, db *sql.DB, n *model.Notebook) error {
	rows, err := db.QueryContext(ctx, `SELECT name, value FROM calendar_properties WHERE notebook_uid = ?`, n.UID)
	if err != nil {
		return wrap(ErrUnknown, "store: load notebook properties", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cp model.CustomProperty
		if err := rows.Scan(&cp.Name, &cp.Value); err != nil {
			return wrap(ErrUnknown, "store: scan notebook property", err)
		}
		n.CustomProps = append(n.CustomProps, cp)
	}
	return rows.Err()
}

func scanNotebook(rows *sql.Rows) (*model.Notebook, error) {
	var n model.Notebook
	var allowEvents, allowTodos, allowJournals int64
	var visible, readOnly, isDefault, shared, master, synchronized, shareable int64
	var sharedWith string
	var syncDate, created, modified int64
	err := rows.Scan(&n.UID, &n.Name, &n.Description, &n.Color, &n.PluginName, &n.Account,
		&allowEvents, &allowTodos, &allowJournals,
		&visible, &readOnly, &isDefault, &shared, &master, &synchronized, &shareable,
		&n.SyncProfile, &n.AttachmentSize, &sharedWith,
		&syncDate, &created, &modified)
	if err != nil {
		return nil, wrap(ErrUnknown, "store: scan notebook", err)
	}
	n.AllowEvents = allowEvents != 0
	n.AllowTodos = allowTodos != 0
	n.AllowJournals = allowJournals != 0
	n.Visible = visible != 0
	n.ReadOnly = readOnly != 0
	n.IsDefault = isDefault != 0
	n.Shared = shared != 0
	n.Master = master != 0
	n.Synchronized = synchronized != 0
	n.Shareable = shareable != 0
	if sharedWith != "" {
		n.SharedWith = strings.Split(sharedWith, ",")
	}
	n.SyncDate = unixOrZero(syncDate)
	n.Created = unixOrZero(created)
	n.Modified = unixOrZero(modified)
	return &n, nil
}

func unixOrZero(s int64) time.Time {
	if s == 0 {
		return time.Time{}
	}
	return time.Unix(s, 0).UTC()
}
