// Package ngmatch filters canonical records against a client NG list
// (exclusion list) of company names and phone numbers.
package ngmatch

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gchange/internal/model"
	"github.com/sells-group/gchange/internal/textnorm"
)

// ErrExclusionListNotFound is returned by list providers when the selected
// NG list cannot be loaded.
var ErrExclusionListNotFound = eris.New("exclusion list not found")

// List is an NG list. Duplicate entries are harmless.
type List struct {
	Names  []string `json:"names" yaml:"names"`
	Phones []string `json:"phones" yaml:"phones"`
}

// Len returns the total number of entries.
func (l List) Len() int {
	return len(l.Names) + len(l.Phones)
}

// Options selects match strictness.
type Options struct {
	// StrictNameClean drops all whitespace and case-folds both the record
	// name and the list entries before the substring test.
	StrictNameClean bool
	// PhoneSubstring strips dashes from both sides and accepts a list
	// phone contained in the record phone. The default is exact equality.
	PhoneSubstring bool
}

// Result partitions records into kept and excluded, input order preserved
// in both. Outcomes is indexed like the input.
type Result struct {
	Kept     []model.Record  `json:"kept"`
	Excluded []model.Record  `json:"excluded"`
	Outcomes []model.Outcome `json:"outcomes"`
}

// Matcher holds the comparison forms of one NG list. It is read-only after
// construction and safe for concurrent use.
type Matcher struct {
	opts   Options
	names  []string
	phones []string
	exact  map[string]struct{}
}

// NewMatcher prepares list for matching under opts. Blank entries are
// dropped: an empty name would otherwise be a substring of every record.
func NewMatcher(list List, opts Options) *Matcher {
	m := &Matcher{opts: opts, exact: make(map[string]struct{}, len(list.Phones))}

	for _, n := range list.Names {
		if key := m.nameKey(n); key != "" {
			m.names = append(m.names, key)
		}
	}
	for _, p := range list.Phones {
		key := m.phoneKey(p)
		if key == "" {
			continue
		}
		m.phones = append(m.phones, key)
		m.exact[key] = struct{}{}
	}
	return m
}

// Match computes the outcome for one record.
func (m *Matcher) Match(rec model.Record) model.Outcome {
	return model.Outcome{
		NameMatched:  m.matchName(rec.Name),
		PhoneMatched: m.matchPhone(rec.Phone),
	}
}

// Filter partitions records.
func (m *Matcher) Filter(records []model.Record) Result {
	res := Result{
		Kept:     make([]model.Record, 0, len(records)),
		Excluded: []model.Record{},
		Outcomes: make([]model.Outcome, len(records)),
	}
	for i, rec := range records {
		o := m.Match(rec)
		res.Outcomes[i] = o
		if o.Excluded() {
			res.Excluded = append(res.Excluded, rec)
		} else {
			res.Kept = append(res.Kept, rec)
		}
	}
	return res
}

// Filter is the one-shot form of NewMatcher(list, opts).Filter(records).
func Filter(records []model.Record, list List, opts Options) Result {
	return NewMatcher(list, opts).Filter(records)
}

// Match is the one-shot form of NewMatcher(list, opts).Match(rec).
func Match(rec model.Record, list List, opts Options) model.Outcome {
	return NewMatcher(list, opts).Match(rec)
}

func (m *Matcher) nameKey(s string) string {
	if m.opts.StrictNameClean {
		return textnorm.Fold(s)
	}
	return textnorm.Normalize(s)
}

func (m *Matcher) phoneKey(s string) string {
	if m.opts.PhoneSubstring {
		return textnorm.StripDashes(s)
	}
	return textnorm.Normalize(s)
}

func (m *Matcher) matchName(name string) bool {
	key := m.nameKey(name)
	if key == "" {
		return false
	}
	for _, n := range m.names {
		if strings.Contains(key, n) {
			return true
		}
	}
	return false
}

func (m *Matcher) matchPhone(phone string) bool {
	key := m.phoneKey(phone)
	if key == "" {
		return false
	}
	if !m.opts.PhoneSubstring {
		_, ok := m.exact[key]
		return ok
	}
	for _, p := range m.phones {
		if strings.Contains(key, p) {
			return true
		}
	}
	return false
}
