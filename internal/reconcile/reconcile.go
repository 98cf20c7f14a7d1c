// Package reconcile maps already-tabular input (a header row followed by
// one company per row) onto the canonical record shape.
package reconcile

import (
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gchange/internal/model"
	"github.com/sells-group/gchange/internal/textnorm"
)

// InputMasterMarker marks the sheet that holds the master data in the
// client template workbook.
const InputMasterMarker = "入力マスター"

// ErrMalformedInput is returned when no usable data region exists.
var ErrMalformedInput = eris.New("malformed input")

// aliases maps folded header text to canonical field keys.
var aliases = map[string]string{
	"企業名":         model.FieldName,
	"会社名":         model.FieldName,
	"社名":          model.FieldName,
	"name":        model.FieldName,
	"company":     model.FieldName,
	"companyname": model.FieldName,

	"業種":       model.FieldCategory,
	"職種":       model.FieldCategory,
	"業界":       model.FieldCategory,
	"category": model.FieldCategory,
	"industry": model.FieldCategory,

	"住所":      model.FieldAddress,
	"所在地":     model.FieldAddress,
	"address": model.FieldAddress,

	"電話番号":  model.FieldPhone,
	"電話":    model.FieldPhone,
	"tel":   model.FieldPhone,
	"phone": model.FieldPhone,
}

// CanonicalField resolves a column header to a canonical field key.
func CanonicalField(header string) (string, bool) {
	f, ok := aliases[textnorm.Fold(header)]
	return f, ok
}

// ColumnIndex maps canonical field keys to column positions in header.
// The first column carrying an alias wins.
func ColumnIndex(header []string) map[string]int {
	idx := make(map[string]int, len(model.Fields))
	for i, h := range header {
		f, ok := CanonicalField(h)
		if !ok {
			continue
		}
		if _, seen := idx[f]; !seen {
			idx[f] = i
		}
	}
	return idx
}

// SelectSheet returns the first sheet whose name contains the input-master
// marker, falling back to the first sheet.
func SelectSheet(wb model.Workbook) (model.Sheet, error) {
	if len(wb.Sheets) == 0 {
		return model.Sheet{}, eris.Wrap(ErrMalformedInput, "reconcile: workbook has no sheets")
	}
	for _, s := range wb.Sheets {
		if strings.Contains(s.Name, InputMasterMarker) {
			return s, nil
		}
	}
	return wb.Sheets[0], nil
}

// Reconcile projects the selected sheet onto canonical records, one per
// data row, in row order. Missing columns yield empty fields.
func Reconcile(wb model.Workbook) ([]model.Record, error) {
	sheet, err := SelectSheet(wb)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.Wrapf(ErrMalformedInput, "reconcile: sheet %q has no header row", sheet.Name)
	}

	idx := ColumnIndex(sheet.Rows[0])
	records := make([]model.Record, 0, len(sheet.Rows)-1)
	for _, row := range sheet.Rows[1:] {
		records = append(records, model.Record{
			Name:     cell(row, idx, model.FieldName),
			Category: cell(row, idx, model.FieldCategory),
			Address:  cell(row, idx, model.FieldAddress),
			Phone:    cell(row, idx, model.FieldPhone),
		})
	}
	return records, nil
}

func cell(row []string, idx map[string]int, field string) string {
	i, ok := idx[field]
	if !ok || i >= len(row) {
		return ""
	}
	return textnorm.Normalize(row[i])
}
