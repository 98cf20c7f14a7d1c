package nglist

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/gchange/internal/fetcher"
	"github.com/sells-group/gchange/internal/ngmatch"
)

// DirProvider serves NG lists stored as files in one directory. Each
// .xlsx, .csv, .yaml or .yml file is one list, named by its file name.
type DirProvider struct {
	dir string
}

// NewDirProvider returns a provider rooted at dir. A missing directory
// behaves as an empty one.
func NewDirProvider(dir string) *DirProvider {
	return &DirProvider{dir: dir}
}

// List returns the list file names in dir.
func (p *DirProvider) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "nglist: read dir %s", p.dir)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "nglist: list cancelled")
		}
		if e.IsDir() || !isListFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Load reads and parses the named list file.
func (p *DirProvider) Load(ctx context.Context, name string) (ngmatch.List, error) {
	if err := ValidateName(name); err != nil {
		return ngmatch.List{}, err
	}
	if !isListFile(name) {
		return ngmatch.List{}, eris.Wrapf(ngmatch.ErrExclusionListNotFound, "nglist: %q is not a list file", name)
	}
	if ctx.Err() != nil {
		return ngmatch.List{}, eris.Wrap(ctx.Err(), "nglist: load cancelled")
	}

	path := filepath.Join(p.dir, name)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ngmatch.List{}, eris.Wrapf(ngmatch.ErrExclusionListNotFound, "nglist: %q", name)
	}
	if err != nil {
		return ngmatch.List{}, eris.Wrapf(err, "nglist: read %s", path)
	}

	return Parse(name, data)
}

// Parse decodes list file contents. The extension of name selects the
// format.
func Parse(name string, data []byte) (ngmatch.List, error) {
	if isYAML(name) {
		return decodeYAML(name, data)
	}

	wb, err := fetcher.Decode(name, data)
	if err != nil {
		return ngmatch.List{}, eris.Wrapf(err, "nglist: decode %q", name)
	}
	list, err := ngmatch.ListFromWorkbook(wb)
	if err != nil {
		return ngmatch.List{}, eris.Wrapf(err, "nglist: parse %q", name)
	}
	return list, nil
}

func decodeYAML(name string, data []byte) (ngmatch.List, error) {
	var list ngmatch.List
	if err := yaml.Unmarshal(data, &list); err != nil {
		return ngmatch.List{}, eris.Wrapf(err, "nglist: parse yaml %q", name)
	}
	if list.Names == nil {
		list.Names = []string{}
	}
	if list.Phones == nil {
		list.Phones = []string{}
	}
	return list, nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

// isListFile skips hidden files and Excel lock files ("~$list.xlsx").
func isListFile(name string) bool {
	if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "~$") {
		return false
	}
	return isYAML(name) || fetcher.Supported(name)
}
