// Package textnorm canonicalizes spreadsheet cell text before it is
// segmented, extracted, or compared.
package textnorm

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

const (
	ideographicSpace = '\u3000'
	noBreakSpace     = '\u00a0'
)

// canon rewrites the dash variants to ASCII '-' and the full-width and
// no-break spaces to a half-width one.
var canon = runes.Map(func(r rune) rune {
	switch r {
	case '−', '–', '—', '―':
		return '-'
	case ideographicSpace, noBreakSpace:
		return ' '
	default:
		return r
	}
})

// Normalize returns the canonical string form of v. Missing values (nil,
// nil pointers) become "". The result is trimmed, runs of half-width,
// full-width and no-break spaces are collapsed to a single space, and the dash
// variants −, –, — and ― become '-'. Normalize is total and idempotent.
func Normalize(v any) string {
	s, ok := stringify(v)
	if !ok {
		return ""
	}
	mapped, _, err := transform.String(canon, s)
	if err != nil {
		mapped = s
	}
	return strings.TrimSpace(collapseSpaces(mapped))
}

// Fold is the strict comparison form: Normalize, then drop every
// whitespace rune and case-fold.
func Fold(v any) string {
	s := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, Normalize(v))
	// Casers are stateful; one per call keeps Fold safe for concurrent use.
	return cases.Fold().String(s)
}

// StripDashes normalizes v and removes every '-'.
func StripDashes(v any) string {
	return strings.ReplaceAll(Normalize(v), "-", "")
}

// Lines normalizes each value and drops the ones that are missing or
// blank after normalization.
func Lines(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s := Normalize(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Strings is Lines for already-decoded string cells.
func Strings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s := Normalize(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func collapseSpaces(s string) string {
	if !strings.Contains(s, "  ") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' {
			if prevSpace {
				continue
			}
			prevSpace = true
		} else {
			prevSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

func stringify(v any) (string, bool) {
	if v != nil {
		if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return "", false
		}
	}
	switch x := v.(type) {
	case nil:
		return "", false
	case string:
		return x, true
	case *string:
		return *x, true
	case []byte:
		return string(x), true
	case float64:
		if math.IsNaN(x) {
			return "", false
		}
		return formatFloat(x, 64), true
	case float32:
		return formatFloat(float64(x), 32), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	case fmt.Stringer:
		return x.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

// formatFloat prints integral floats without a fraction so that numeric
// cells such as 123.0 read back as "123".
func formatFloat(f float64, bits int) string {
	return strconv.FormatFloat(f, 'f', -1, bits)
}
