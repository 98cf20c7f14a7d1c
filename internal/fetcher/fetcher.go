// Package fetcher decodes uploaded spreadsheets (XLSX, CSV) into
// model.Workbook values for the parser and the NG-list loaders.
package fetcher

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/gchange/internal/model"
)

// ErrUnsupportedFormat is returned for file extensions no decoder handles.
var ErrUnsupportedFormat = eris.New("unsupported file format")

// Open reads the workbook at path, choosing the decoder by extension.
func Open(path string) (model.Workbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.Workbook{}, eris.Wrapf(err, "fetcher: read %s", path)
	}
	return Decode(filepath.Base(path), data)
}

// Decode decodes data named name (used for the extension and, for CSV,
// the sheet name).
func Decode(name string, data []byte) (model.Workbook, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".xlsx", ".xlsm":
		return DecodeXLSX(data)
	case ".csv", ".txt":
		return DecodeCSV(strings.TrimSuffix(filepath.Base(name), filepath.Ext(name)), data, CSVOptions{})
	default:
		return model.Workbook{}, eris.Wrapf(ErrUnsupportedFormat, "fetcher: %q", ext)
	}
}

// Supported reports whether Decode handles the extension of name.
func Supported(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm", ".csv", ".txt":
		return true
	default:
		return false
	}
}
