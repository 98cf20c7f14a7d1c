package fetcher

import (
	"bytes"
	"encoding/csv"
	"io"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/japanese"

	"github.com/sells-group/gchange/internal/model"
)

// CSVOptions configures the CSV decoder.
type CSVOptions struct {
	Delimiter rune // default ','
	Comment   rune // comment character (0 = none)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DecodeCSV decodes a CSV file into a single-sheet workbook. Excel on
// Japanese Windows saves CSV as Shift_JIS; input that is not valid UTF-8
// is decoded as Shift_JIS.
func DecodeCSV(name string, data []byte, opts CSVOptions) (model.Workbook, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		decoded, err := japanese.ShiftJIS.NewDecoder().Bytes(data)
		if err != nil {
			return model.Workbook{}, eris.Wrap(err, "csv: decode shift_jis")
		}
		data = decoded
	}

	rows, err := readCSV(bytes.NewReader(data), opts)
	if err != nil {
		return model.Workbook{}, err
	}
	return model.Workbook{Sheets: []model.Sheet{{Name: name, Rows: rows}}}, nil
}

func readCSV(r io.Reader, opts CSVOptions) ([][]string, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // allow variable fields

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		rows = append(rows, record)
	}
}
