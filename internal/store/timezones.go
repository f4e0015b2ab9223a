package store

import (
	"context"
	"database/sql"
)

// UpsertTimezone inserts or replaces the stored VTIMEZONE block for
// tzid.
func UpsertTimezone(tx *sql.Tx, tzid, icsData string) error {
	_, err := tx.Exec(`
		INSERT INTO timezones (tzid, ics_data) VALUES (?, ?)
		ON CONFLICT(tzid) DO UPDATE SET ics_data = excluded.ics_data
	`, tzid, icsData)
	if err != nil {
		return wrap(ErrUnknown, "store: upsert timezone", err)
	}
	return nil
}

// LoadTimezones reads every stored VTIMEZONE block into a tzid -> ics
// text map.
func LoadTimezones(ctx context.Context, db *sql.DB) (map[string]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT tzid, ics_data FROM timezones`)
	if err != nil {
		return nil, wrap(ErrUnknown, "store: load timezones", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var tzid, ics string
		if err := rows.Scan(&tzid, &ics); err != nil {
			return nil, wrap(ErrUnknown, "store: scan timezone", err)
		}
		out[tzid] = ics
	}
	return out, rows.Err()
}
