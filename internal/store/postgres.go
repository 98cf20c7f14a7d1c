package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/gchange/internal/model"
	"github.com/sells-group/gchange/internal/ngmatch"
	"github.com/sells-group/gchange/internal/nglist"
	"github.com/sells-group/gchange/internal/resilience"
)

// Pool is the subset of pgxpool.Pool used by PostgresStore. pgxmock's
// PgxPoolIface satisfies it in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("postgres: ping")
	if err := resilience.Do(ctx, retry, pool.Ping); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS ng_lists (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name       TEXT NOT NULL UNIQUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ng_entries (
	list_id  TEXT NOT NULL REFERENCES ng_lists(id) ON DELETE CASCADE,
	kind     TEXT NOT NULL,
	value    TEXT NOT NULL,
	position INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	source     TEXT NOT NULL,
	nglist     TEXT NOT NULL DEFAULT '',
	layout     TEXT NOT NULL,
	total      INTEGER NOT NULL DEFAULT 0,
	kept       INTEGER NOT NULL DEFAULT 0,
	excluded   INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_ng_entries_list_id ON ng_entries(list_id);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM ng_lists ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list ng lists")
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan ng list name")
		}
		names = append(names, name)
	}
	return names, eris.Wrap(rows.Err(), "postgres: list ng lists iterate")
}

func (s *PostgresStore) Load(ctx context.Context, name string) (ngmatch.List, error) {
	if err := nglist.ValidateName(name); err != nil {
		return ngmatch.List{}, err
	}

	var id string
	err := s.pool.QueryRow(ctx, `SELECT id FROM ng_lists WHERE name = $1`, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ngmatch.List{}, eris.Wrapf(ngmatch.ErrExclusionListNotFound, "postgres: ng list %q", name)
	}
	if err != nil {
		return ngmatch.List{}, eris.Wrapf(err, "postgres: get ng list %q", name)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT kind, value FROM ng_entries WHERE list_id = $1 ORDER BY position`, id)
	if err != nil {
		return ngmatch.List{}, eris.Wrapf(err, "postgres: load ng entries %q", name)
	}
	defer rows.Close()

	list := emptyList()
	for rows.Next() {
		var kind, value string
		if err := rows.Scan(&kind, &value); err != nil {
			return ngmatch.List{}, eris.Wrap(err, "postgres: scan ng entry")
		}
		collect(&list, kind, value)
	}
	return list, eris.Wrap(rows.Err(), "postgres: load ng entries iterate")
}

// SaveNGList upserts the list row and replaces its entries via COPY.
func (s *PostgresStore) SaveNGList(ctx context.Context, name string, list ngmatch.List) error {
	if err := nglist.ValidateName(name); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	if err := pgSaveNGList(ctx, tx, name, list); err != nil {
		tx.Rollback(ctx) //nolint:errcheck
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit ng list")
}

var ngEntryColumns = []string{"list_id", "kind", "value", "position"}

func pgSaveNGList(ctx context.Context, tx pgx.Tx, name string, list ngmatch.List) error {
	var id string
	err := tx.QueryRow(ctx,
		`INSERT INTO ng_lists (id, name, created_at, updated_at) VALUES ($1, $2, now(), now())
		 ON CONFLICT (name) DO UPDATE SET updated_at = now()
		 RETURNING id`,
		uuid.New().String(), name,
	).Scan(&id)
	if err != nil {
		return eris.Wrapf(err, "postgres: upsert ng list %q", name)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM ng_entries WHERE list_id = $1`, id); err != nil {
		return eris.Wrapf(err, "postgres: clear ng entries %q", name)
	}

	entries := flatten(list)
	if len(entries) == 0 {
		return nil
	}
	rows := make([][]any, len(entries))
	for i, e := range entries {
		rows[i] = []any{id, e.kind, e.value, i}
	}
	if _, err := tx.CopyFrom(ctx, pgx.Identifier{"ng_entries"}, ngEntryColumns, pgx.CopyFromRows(rows)); err != nil {
		return eris.Wrapf(err, "postgres: COPY INTO ng_entries %q", name)
	}
	return nil
}

func (s *PostgresStore) DeleteNGList(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM ng_lists WHERE name = $1`, name)
	if err != nil {
		return eris.Wrapf(err, "postgres: delete ng list %q", name)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ngmatch.ErrExclusionListNotFound, "postgres: ng list %q", name)
	}
	return nil
}

func (s *PostgresStore) RecordRun(ctx context.Context, run *model.Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, source, nglist, layout, total, kept, excluded, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		run.ID, run.Source, run.NGList, string(run.Layout), run.Total, run.Kept, run.Excluded, run.CreatedAt,
	)
	return eris.Wrap(err, "postgres: insert run")
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, source, nglist, layout, total, kept, excluded, created_at
		 FROM runs ORDER BY created_at DESC LIMIT $1`, runLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
