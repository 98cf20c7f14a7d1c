// Package store persists NG lists and the run audit log in SQLite or
// Postgres. Both backends also serve as an nglist.Provider.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gchange/internal/model"
	"github.com/sells-group/gchange/internal/ngmatch"
	"github.com/sells-group/gchange/internal/nglist"
)

// Store defines the persistence interface.
type Store interface {
	nglist.Provider

	// NG lists
	SaveNGList(ctx context.Context, name string, list ngmatch.List) error
	DeleteNGList(ctx context.Context, name string) error

	// Runs
	RecordRun(ctx context.Context, run *model.Run) error
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Entry kinds stored in ng_entries.kind.
const (
	kindName  = "name"
	kindPhone = "phone"
)

const defaultRunLimit = 50

// Open returns the backend selected by driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	switch driver {
	case "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}

type entry struct {
	kind  string
	value string
}

// flatten orders entries names first, then phones, each in list order.
func flatten(list ngmatch.List) []entry {
	out := make([]entry, 0, list.Len())
	for _, n := range list.Names {
		out = append(out, entry{kind: kindName, value: n})
	}
	for _, p := range list.Phones {
		out = append(out, entry{kind: kindPhone, value: p})
	}
	return out
}

// collect appends one scanned entry to list.
func collect(list *ngmatch.List, kind, value string) {
	switch kind {
	case kindName:
		list.Names = append(list.Names, value)
	case kindPhone:
		list.Phones = append(list.Phones, value)
	}
}

func emptyList() ngmatch.List {
	return ngmatch.List{Names: []string{}, Phones: []string{}}
}

func runLimit(limit int) int {
	if limit <= 0 {
		return defaultRunLimit
	}
	return limit
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
