// Package nglist resolves a client's NG-list selection to a loaded
// ngmatch.List. Providers are read-only and safe for concurrent use.
package nglist

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gchange/internal/ngmatch"
)

// Provider enumerates and loads NG lists.
type Provider interface {
	// List returns the selectable list names, sorted.
	List(ctx context.Context) ([]string, error)
	// Load returns the named list, or an error matching
	// ngmatch.ErrExclusionListNotFound when it does not exist.
	Load(ctx context.Context, name string) (ngmatch.List, error)
}

// None is the selection meaning "do not filter".
const None = "なし"

// IsNone reports whether name selects no NG list.
func IsNone(name string) bool {
	n := strings.TrimSpace(name)
	return n == "" || n == None || strings.EqualFold(n, "none")
}

// ValidateName rejects names that could escape a provider's namespace.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || name != filepath.Base(name) {
		return eris.Wrapf(ngmatch.ErrExclusionListNotFound, "nglist: invalid list name %q", name)
	}
	return nil
}
