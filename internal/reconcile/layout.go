package reconcile

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gchange/internal/model"
	"github.com/sells-group/gchange/internal/textnorm"
)

// DetectLayout guesses whether wb is a flat directory dump or a table.
// A sheet named after the input master, or a first row that carries a
// known header alongside at least one other used column, means tabular.
func DetectLayout(wb model.Workbook) model.Layout {
	for _, s := range wb.Sheets {
		if strings.Contains(s.Name, InputMasterMarker) {
			return model.LayoutTabular
		}
	}
	if len(wb.Sheets) == 0 {
		return model.LayoutFlat
	}

	first := wb.Sheets[0]
	if len(first.Rows) == 0 || usedWidth(first) < 2 {
		return model.LayoutFlat
	}
	if len(ColumnIndex(first.Rows[0])) > 0 {
		return model.LayoutTabular
	}
	return model.LayoutFlat
}

// ParseLayout parses a caller-supplied layout override.
func ParseLayout(s string) (model.Layout, error) {
	switch l := model.Layout(strings.ToLower(strings.TrimSpace(s))); l {
	case "":
		return model.LayoutAuto, nil
	case model.LayoutAuto, model.LayoutFlat, model.LayoutTabular:
		return l, nil
	default:
		return "", eris.Errorf("reconcile: unknown layout %q", s)
	}
}

// FlatLines returns the first column of the first sheet, the line list of
// a flat directory dump.
func FlatLines(wb model.Workbook) []string {
	if len(wb.Sheets) == 0 {
		return nil
	}
	return wb.Sheets[0].Column(0)
}

// usedWidth is the number of leading columns up to the last one holding
// any non-blank cell.
func usedWidth(s model.Sheet) int {
	w := 0
	for _, row := range s.Rows {
		for i := len(row) - 1; i >= w; i-- {
			if textnorm.Normalize(row[i]) != "" {
				w = i + 1
				break
			}
		}
	}
	return w
}
