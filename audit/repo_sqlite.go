package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id          TEXT PRIMARY KEY,
	at          INTEGER NOT NULL,
	kind        TEXT NOT NULL,
	session_id  TEXT NOT NULL,
	user_id     TEXT NOT NULL DEFAULT '',
	from_org_id TEXT NOT NULL DEFAULT '',
	to_org_id   TEXT NOT NULL DEFAULT '',
	detail      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_audit_events_at ON audit_events(at);
`

// SQLiteRepo persists audit events locally so the security-log screen works
// even when the backend audit endpoint is unreachable.
type SQLiteRepo struct {
	db *sql.DB
}

var _ Repo = (*SQLiteRepo)(nil)

// OpenSQLiteRepo opens (creating if needed) the audit database at path.
func OpenSQLiteRepo(path string) (*SQLiteRepo, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "[OpenSQLiteRepo] open database")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "[OpenSQLiteRepo] apply schema")
	}
	return &SQLiteRepo{db: db}, nil
}

func (r *SQLiteRepo) Insert(ctx context.Context, event *Event) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, at, kind, session_id, user_id, from_org_id, to_org_id, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.At.UnixMilli(), string(event.Kind), event.SessionID,
		event.UserID, event.FromOrgID, event.ToOrgID, event.Detail,
	)
	if err != nil {
		return errors.Wrap(err, "[SQLiteRepo.Insert] insert event")
	}
	return nil
}

func (r *SQLiteRepo) List(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, at, kind, session_id, user_id, from_org_id, to_org_id, detail
		 FROM audit_events ORDER BY at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "[SQLiteRepo.List] query events")
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var at int64
		var kind string
		if err := rows.Scan(&e.ID, &at, &kind, &e.SessionID, &e.UserID, &e.FromOrgID, &e.ToOrgID, &e.Detail); err != nil {
			return nil, errors.Wrap(err, "[SQLiteRepo.List] scan event")
		}
		e.At = time.UnixMilli(at)
		e.Kind = Kind(kind)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "[SQLiteRepo.List] rows")
	}
	return events, nil
}

func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}
