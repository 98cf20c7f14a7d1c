package ngmatch

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/gchange/internal/model"
	"github.com/sells-group/gchange/internal/reconcile"
	"github.com/sells-group/gchange/internal/textnorm"
)

// ListFromWorkbook reads an NG list from the first sheet of wb. The header
// row must carry a company-name or phone column (aliases as in the
// tabular reconciler). Blank cells are skipped.
func ListFromWorkbook(wb model.Workbook) (List, error) {
	if len(wb.Sheets) == 0 || len(wb.Sheets[0].Rows) == 0 {
		return List{}, eris.Wrap(reconcile.ErrMalformedInput, "ngmatch: list has no header row")
	}
	sheet := wb.Sheets[0]

	idx := reconcile.ColumnIndex(sheet.Rows[0])
	nameCol, hasName := idx[model.FieldName]
	phoneCol, hasPhone := idx[model.FieldPhone]
	if !hasName && !hasPhone {
		return List{}, eris.Wrapf(reconcile.ErrMalformedInput, "ngmatch: sheet %q has neither a company-name nor a phone column", sheet.Name)
	}

	list := List{Names: []string{}, Phones: []string{}}
	for _, row := range sheet.Rows[1:] {
		if hasName && nameCol < len(row) {
			if v := textnorm.Normalize(row[nameCol]); v != "" {
				list.Names = append(list.Names, v)
			}
		}
		if hasPhone && phoneCol < len(row) {
			if v := textnorm.Normalize(row[phoneCol]); v != "" {
				list.Phones = append(list.Phones, v)
			}
		}
	}
	return list, nil
}
