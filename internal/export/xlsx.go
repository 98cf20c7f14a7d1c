// Package export writes formatted company records as xlsx or csv.
package export

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/xuri/excelize/v2"

	"github.com/sells-group/gchange/internal/model"
)

// Sheet names and the default download name.
const (
	KeptSheet       = "整形済みデータ"
	ExcludedSheet   = "NG除外"
	DefaultFileName = "整形済み_企業リスト.xlsx"
)

// Options controls the workbook layout.
type Options struct {
	// IncludeExcluded adds a second sheet with the records removed by
	// the NG list.
	IncludeExcluded bool
}

var columnWidths = []float64{
	36, // name
	24, // category
	48, // address
	16, // phone
}

// WriteXLSX writes kept (and optionally excluded) records to w. Every
// value is written as a string cell so phone numbers keep their
// leading zero.
func WriteXLSX(w io.Writer, kept, excluded []model.Record, opts Options) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	if err := f.SetSheetName("Sheet1", KeptSheet); err != nil {
		return eris.Wrap(err, "export: rename sheet")
	}
	if err := writeSheet(f, KeptSheet, kept); err != nil {
		return err
	}

	if opts.IncludeExcluded {
		if _, err := f.NewSheet(ExcludedSheet); err != nil {
			return eris.Wrap(err, "export: new sheet")
		}
		if err := writeSheet(f, ExcludedSheet, excluded); err != nil {
			return err
		}
	}

	idx, err := f.GetSheetIndex(KeptSheet)
	if err != nil {
		return eris.Wrap(err, "export: sheet index")
	}
	f.SetActiveSheet(idx)

	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "export: xlsx write")
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, records []model.Record) error {
	if err := setRow(f, sheet, 1, model.HeadingRow()); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return eris.Wrap(err, "export: header style")
	}
	last, _ := excelize.CoordinatesToCellName(len(model.Fields), 1)
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return eris.Wrap(err, "export: apply header style")
	}

	for i, r := range records {
		if err := setRow(f, sheet, i+2, r.Values()); err != nil {
			return err
		}
	}

	for i, width := range columnWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, col, col, width)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	for col, v := range values {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return eris.Wrapf(err, "export: cell %d,%d", col+1, row)
		}
		if err := f.SetCellStr(sheet, cell, v); err != nil {
			return eris.Wrapf(err, "export: set %s!%s", sheet, cell)
		}
	}
	return nil
}
