package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/gchange/internal/model"
	"github.com/sells-group/gchange/internal/ngmatch"
	"github.com/sells-group/gchange/internal/nglist"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// sqlitePragmas are applied by the driver to every new pool connection.
// foreign_keys is per-connection in SQLite.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

// sqliteDSN appends sqlitePragmas to dsn as modernc _pragma parameters.
func sqliteDSN(dsn string) string {
	var b strings.Builder
	b.WriteString(dsn)
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	for _, p := range sqlitePragmas {
		b.WriteString(sep + "_pragma=" + p)
		sep = "&"
	}
	return b.String()
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", sqliteDSN(dsn))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	if err := db.Ping(); err != nil {
		db.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "sqlite: ping")
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS ng_lists (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS ng_entries (
	list_id  TEXT NOT NULL REFERENCES ng_lists(id) ON DELETE CASCADE,
	kind     TEXT NOT NULL,
	value    TEXT NOT NULL,
	position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	source     TEXT NOT NULL,
	nglist     TEXT NOT NULL DEFAULT '',
	layout     TEXT NOT NULL,
	total      INTEGER NOT NULL DEFAULT 0,
	kept       INTEGER NOT NULL DEFAULT 0,
	excluded   INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_ng_entries_list_id ON ng_entries(list_id);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM ng_lists ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list ng lists")
	}
	defer rows.Close() //nolint:errcheck

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan ng list name")
		}
		names = append(names, name)
	}
	return names, eris.Wrap(rows.Err(), "sqlite: list ng lists iterate")
}

func (s *SQLiteStore) Load(ctx context.Context, name string) (ngmatch.List, error) {
	if err := nglist.ValidateName(name); err != nil {
		return ngmatch.List{}, err
	}

	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM ng_lists WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ngmatch.List{}, eris.Wrapf(ngmatch.ErrExclusionListNotFound, "sqlite: ng list %q", name)
	}
	if err != nil {
		return ngmatch.List{}, eris.Wrapf(err, "sqlite: get ng list %q", name)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, value FROM ng_entries WHERE list_id = ? ORDER BY position`, id)
	if err != nil {
		return ngmatch.List{}, eris.Wrapf(err, "sqlite: load ng entries %q", name)
	}
	defer rows.Close() //nolint:errcheck

	list := emptyList()
	for rows.Next() {
		var kind, value string
		if err := rows.Scan(&kind, &value); err != nil {
			return ngmatch.List{}, eris.Wrap(err, "sqlite: scan ng entry")
		}
		collect(&list, kind, value)
	}
	return list, eris.Wrap(rows.Err(), "sqlite: load ng entries iterate")
}

// SaveNGList creates or replaces the named list.
func (s *SQLiteStore) SaveNGList(ctx context.Context, name string, list ngmatch.List) error {
	if err := nglist.ValidateName(name); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	if err := sqliteSaveNGList(ctx, tx, name, list); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit ng list")
}

func sqliteSaveNGList(ctx context.Context, tx *sql.Tx, name string, list ngmatch.List) error {
	now := time.Now().UTC()

	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM ng_lists WHERE name = ?`, name).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		id = uuid.New().String()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO ng_lists (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)`,
			id, name, now, now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert ng list %q", name)
		}
	case err != nil:
		return eris.Wrapf(err, "sqlite: get ng list %q", name)
	default:
		if _, err := tx.ExecContext(ctx, `UPDATE ng_lists SET updated_at = ? WHERE id = ?`, now, id); err != nil {
			return eris.Wrapf(err, "sqlite: touch ng list %q", name)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM ng_entries WHERE list_id = ?`, id); err != nil {
			return eris.Wrapf(err, "sqlite: clear ng entries %q", name)
		}
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO ng_entries (list_id, kind, value, position) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare ng entry insert")
	}
	defer stmt.Close() //nolint:errcheck

	for i, e := range flatten(list) {
		if _, err := stmt.ExecContext(ctx, id, e.kind, e.value, i); err != nil {
			return eris.Wrapf(err, "sqlite: insert ng entry %q", name)
		}
	}
	return nil
}

// DeleteNGList removes the list and its entries in one transaction.
func (s *SQLiteStore) DeleteNGList(ctx context.Context, name string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	if err := sqliteDeleteNGList(ctx, tx, name); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit delete")
}

func sqliteDeleteNGList(ctx context.Context, tx *sql.Tx, name string) error {
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM ng_entries WHERE list_id IN (SELECT id FROM ng_lists WHERE name = ?)`, name,
	); err != nil {
		return eris.Wrapf(err, "sqlite: delete ng entries %q", name)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM ng_lists WHERE name = ?`, name)
	if err != nil {
		return eris.Wrapf(err, "sqlite: delete ng list %q", name)
	}
	return checkRowsAffected(res, name)
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, source, nglist, layout, total, kept, excluded, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.NGList, string(run.Layout), run.Total, run.Kept, run.Excluded, run.CreatedAt,
	)
	return eris.Wrap(err, "sqlite: insert run")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, nglist, layout, total, kept, excluded, created_at
		 FROM runs ORDER BY created_at DESC LIMIT ?`, runLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func checkRowsAffected(res sql.Result, name string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ngmatch.ErrExclusionListNotFound, "ng list %q", name)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (model.Run, error) {
	var r model.Run
	var layout string
	if err := row.Scan(&r.ID, &r.Source, &r.NGList, &layout, &r.Total, &r.Kept, &r.Excluded, &r.CreatedAt); err != nil {
		return model.Run{}, eris.Wrap(err, "scan run")
	}
	r.Layout = model.Layout(layout)
	return r, nil
}
