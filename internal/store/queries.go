package store

import (
	"context"
	"database/sql"

	"github.com/go-mkcal/mkcal/internal/codec"
	"github.com/go-mkcal/mkcal/internal/model"
)

const selectComponents = `SELECT ` + componentColumns + ` FROM components`

// LoadAll reads every non-purged component row, including soft-deleted
// ones, for the in-memory calendar to index on startup.
func LoadAll(ctx context.Context, db *sql.DB) ([]codec.ComponentRow, error) {
	rows, err := db.QueryContext(ctx, selectComponents)
	if err != nil {
		return nil, wrap(ErrUnknown, "store: load all components", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// LoadByUID reads every row (master plus exceptions) sharing uid.
func LoadByUID(ctx context.Context, db *sql.DB, uid string) ([]codec.ComponentRow, error) {
	rows, err := db.QueryContext(ctx, selectComponents+` WHERE uid = ? ORDER BY recurrence_id_utc`, uid)
	if err != nil {
		return nil, wrap(ErrUnknown, "store: load by uid", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// LoadByDateRange reads every non-deleted row whose dtstart falls within
// [fromUnix, toUnix], plus every recurring master (a non-empty RRULE or
// at least one RDATE) regardless of its own dtstart (a series that
// began before the window can still generate occurrences inside it, so
// its master row must always come along).
// Exceptions belonging to a matched master are not included here; the
// caller loads each matched uid's full series separately.
func LoadByDateRange(ctx context.Context, db *sql.DB, fromUnix, toUnix int64) ([]codec.ComponentRow, error) {
	rows, err := db.QueryContext(ctx, selectComponents+` WHERE ((dtstart_utc BETWEEN ? AND ?) OR rrule != '' OR uid IN (SELECT uid FROM rdates WHERE is_exdate = 0)) AND deleted = 0`, fromUnix, toUnix)
	if err != nil {
		return nil, wrap(ErrUnknown, "store: load by date range", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// LoadByNotebook reads every row belonging to notebookUID.
func LoadByNotebook(ctx context.Context, db *sql.DB, notebookUID string) ([]codec.ComponentRow, error) {
	rows, err := db.QueryContext(ctx, selectComponents+` WHERE notebook_uid = ?`, notebookUID)
	if err != nil {
		return nil, wrap(ErrUnknown, "store: load by notebook", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// LoadModifiedSince reads rows whose last_modified falls at or after
// sinceUnix, used by the incremental sync entry points.
func LoadModifiedSince(ctx context.Context, db *sql.DB, sinceUnix int64) ([]codec.ComponentRow, error) {
	rows, err := db.QueryContext(ctx, selectComponents+` WHERE last_modified >= ? AND deleted = 0`, sinceUnix)
	if err != nil {
		return nil, wrap(ErrUnknown, "store: load modified since", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// LoadInsertedSince reads rows created at or after sinceUnix.
func LoadInsertedSince(ctx context.Context, db *sql.DB, sinceUnix int64) ([]codec.ComponentRow, error) {
	rows, err := db.QueryContext(ctx, selectComponents+` WHERE created >= ? AND deleted = 0`, sinceUnix)
	if err != nil {
		return nil, wrap(ErrUnknown, "store: load inserted since", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// LoadDeletedSince reads soft-deleted rows whose deleted_date falls at
// or after sinceUnix.
func LoadDeletedSince(ctx context.Context, db *sql.DB, sinceUnix int64) ([]codec.ComponentRow, error) {
	rows, err := db.QueryContext(ctx, selectComponents+` WHERE deleted = 1 AND deleted_date >= ?`, sinceUnix)
	if err != nil {
		return nil, wrap(ErrUnknown, "store: load deleted since", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// LoadDuplicates reads rows matching the legacy duplicate-detection key
// of (dtstart, notebook, summary), optionally scoped to one notebook.
func LoadDuplicates(ctx context.Context, db *sql.DB, dtstartUTC int64, summary, notebookUID string) ([]codec.ComponentRow, error) {
	q := selectComponents + ` WHERE dtstart_utc = ? AND summary = ? AND deleted = 0`
	args := []interface{}{dtstartUTC, summary}
	if notebookUID != "" {
		q += ` AND notebook_uid = ?`
		args = append(args, notebookUID)
	}
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, wrap(ErrUnknown, "store: load duplicates", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// MarkDeleted soft-deletes a component row: sets deleted=1 and stamps
// deleted_date, rather than removing the row, so DeletedSince queries
// can still find it until a purge.
func MarkDeleted(tx *sql.Tx, uid string, ridUTC int64, deletedDate int64) error {
	_, err := tx.Exec(`UPDATE components SET deleted = 1, deleted_date = ? WHERE uid = ? AND recurrence_id_utc = ?`, deletedDate, uid, ridUTC)
	if err != nil {
		return wrap(ErrUnknown, "store: mark deleted", err)
	}
	return nil
}

// PurgeDeleted permanently removes soft-deleted rows older than
// beforeUnix (or all of them, if beforeUnix is 0); cascades to child
// tables via the foreign key ON DELETE CASCADE clauses.
func PurgeDeleted(tx *sql.Tx, beforeUnix int64) (int64, error) {
	q := `DELETE FROM components WHERE deleted = 1`
	var args []interface{}
	if beforeUnix > 0 {
		q += ` AND deleted_date < ?`
		args = append(args, beforeUnix)
	}
	res, err := tx.Exec(q, args...)
	if err != nil {
		return 0, wrap(ErrUnknown, "store: purge deleted", err)
	}
	return res.RowsAffected()
}

// CountByKind returns the number of non-deleted rows of the given kind.
func CountByKind(ctx context.Context, db *sql.DB, kind model.Kind) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM components WHERE kind = ? AND deleted = 0`, kind.String()).Scan(&n)
	if err != nil {
		return 0, wrap(ErrUnknown, "store: count by kind", err)
	}
	return n, nil
}

func scanAll(rows *sql.Rows) ([]codec.ComponentRow, error) {
	var out []codec.ComponentRow
	for rows.Next() {
		row, err := codec.ScanComponentRow(rows)
		if err != nil {
			return nil, wrap(ErrUnknown, "store: scan component row", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}
