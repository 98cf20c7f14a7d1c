package fetcher

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/gchange/internal/model"
)

// DecodeXLSX decodes every sheet of an XLSX workbook, in file order.
func DecodeXLSX(data []byte) (model.Workbook, error) {
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return model.Workbook{}, eris.Wrap(err, "xlsx: open file")
	}

	wb := model.Workbook{Sheets: make([]model.Sheet, 0, len(f.Sheets))}
	for _, sheet := range f.Sheets {
		wb.Sheets = append(wb.Sheets, sheetRows(sheet))
	}
	return wb, nil
}

func sheetRows(sheet *xlsx.Sheet) model.Sheet {
	out := model.Sheet{Name: sheet.Name, Rows: make([][]string, 0, len(sheet.Rows))}
	for _, row := range sheet.Rows {
		out.Rows = append(out.Rows, rowToStrings(row))
	}
	return out
}

func rowToStrings(row *xlsx.Row) []string {
	if row == nil {
		return nil
	}
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		if cell != nil {
			cells[j] = cell.String()
		}
	}
	return cells
}
