package model

// Sheet is one decoded worksheet. Rows may be ragged.
type Sheet struct {
	Name string     `json:"name"`
	Rows [][]string `json:"rows"`
}

// Workbook is a decoded spreadsheet, sheets in file order.
type Workbook struct {
	Sheets []Sheet `json:"sheets"`
}

// Column returns the cells of column idx across all rows of s. Rows too
// short to reach idx contribute "".
func (s Sheet) Column(idx int) []string {
	out := make([]string, len(s.Rows))
	for i, row := range s.Rows {
		if idx < len(row) {
			out[i] = row[idx]
		}
	}
	return out
}
