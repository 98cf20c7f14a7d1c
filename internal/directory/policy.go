// Package directory recovers company records from a flat business
// directory export: one line per cell, records never explicitly delimited.
package directory

import (
	"strings"

	"github.com/rotisserie/eris"
)

// HeaderMode selects the predicate that decides whether a line opens a
// new record.
type HeaderMode string

const (
	// HeaderStrict: not a phone line and free of boilerplate/review keywords.
	HeaderStrict HeaderMode = "strict"
	// HeaderLenient: not a phone line. Keyword lines become continuations.
	HeaderLenient HeaderMode = "lenient"
)

// MatchPolicy decides which of several matching lines sets a field.
type MatchPolicy string

const (
	FirstMatch MatchPolicy = "first"
	LastMatch  MatchPolicy = "last"
)

// Policy enumerates every heuristic branch of the parser. A run must use
// one Policy throughout.
type Policy struct {
	// Header picks the record-boundary predicate.
	Header HeaderMode
	// AttributeGuard makes strict headers also reject lines shaped like an
	// attribute: a category separator or a block-numbered address.
	AttributeGuard bool
	// FilterKeywords skips boilerplate and review lines during extraction.
	FilterKeywords bool
	// Phone decides whether the first or the last phone-bearing line wins.
	// Category is always last-wins and address always first-wins.
	Phone MatchPolicy
	// ExtraKeywords extends the boilerplate keyword set.
	ExtraKeywords []string
}

// DefaultPolicy is the parser behavior used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		Header:         HeaderStrict,
		AttributeGuard: true,
		FilterKeywords: true,
		Phone:          FirstMatch,
	}
}

// ParseHeaderMode parses a configured header mode. "" means strict.
func ParseHeaderMode(s string) (HeaderMode, error) {
	switch m := HeaderMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return HeaderStrict, nil
	case HeaderStrict, HeaderLenient:
		return m, nil
	default:
		return "", eris.Errorf("directory: unknown header mode %q", s)
	}
}

// ParseMatchPolicy parses a configured match policy. "" means first.
func ParseMatchPolicy(s string) (MatchPolicy, error) {
	switch m := MatchPolicy(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return FirstMatch, nil
	case FirstMatch, LastMatch:
		return m, nil
	default:
		return "", eris.Errorf("directory: unknown match policy %q", s)
	}
}
