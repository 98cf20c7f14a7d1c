package directory

import (
	"strings"
	"unicode/utf8"

	"github.com/sells-group/gchange/internal/model"
	"github.com/sells-group/gchange/internal/textnorm"
)

// Extract turns one block into a record. Fields with no matching line
// stay empty; the name is always the first line.
//
// Each attribute line is tested in order: category separator, phone,
// address. A line is consumed by the first test it passes.
func Extract(b Block, p Policy) model.Record {
	rec := model.Record{Name: b.Name()}

	for _, line := range b.Attributes() {
		if p.FilterKeywords && p.IsKeywordLine(line) {
			continue
		}

		if i := strings.LastIndexAny(line, categorySeparators); i >= 0 {
			_, size := utf8.DecodeRuneInString(line[i:])
			rec.Category = strings.TrimSpace(line[i+size:])
			continue
		}

		if phone := FindPhone(line); phone != "" {
			if rec.Phone == "" || p.Phone == LastMatch {
				rec.Phone = phone
			}
			continue
		}

		if rec.Address == "" && containsAny(line, addressMarkers) {
			rec.Address = line
		}
	}

	return rec
}

// ExtractAll extracts every block, preserving order.
func ExtractAll(blocks []Block, p Policy) []model.Record {
	out := make([]model.Record, len(blocks))
	for i, b := range blocks {
		out[i] = Extract(b, p)
	}
	return out
}

// Parse runs the whole flat-list path: normalize, drop missing values,
// segment, extract.
func Parse(values []any, p Policy) []model.Record {
	return ExtractAll(Segment(textnorm.Lines(values), p), p)
}

// ParseStrings is Parse for string cells.
func ParseStrings(values []string, p Policy) []model.Record {
	return ExtractAll(Segment(textnorm.Strings(values), p), p)
}
