package ngmatch

import (
	"github.com/sells-group/gchange/internal/model"
)

// DropDuplicatePhones keeps the first record for each non-empty phone.
// Records without a phone are always kept.
func DropDuplicatePhones(records []model.Record) []model.Record {
	seen := make(map[string]struct{}, len(records))
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if r.Phone != "" {
			if _, dup := seen[r.Phone]; dup {
				continue
			}
			seen[r.Phone] = struct{}{}
		}
		out = append(out, r)
	}
	return out
}

// DropEmptyRecords removes records whose four fields are all empty.
func DropEmptyRecords(records []model.Record) []model.Record {
	out := make([]model.Record, 0, len(records))
	for _, r := range records {
		if !r.IsEmpty() {
			out = append(out, r)
		}
	}
	return out
}
