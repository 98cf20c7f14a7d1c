// Package model defines the records and run metadata shared by the
// directory parser, the NG-list matcher, and the output writers.
package model

import (
	"time"
)

// Record is the canonical four-field company row. The zero value is a
// fully formed record with every field empty.
type Record struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
}

// IsEmpty reports whether all four fields are empty strings.
func (r Record) IsEmpty() bool {
	return r.Name == "" && r.Category == "" && r.Address == "" && r.Phone == ""
}

// Values returns the fields in canonical column order.
func (r Record) Values() []string {
	return []string{r.Name, r.Category, r.Address, r.Phone}
}

// Canonical field keys, in column order.
const (
	FieldName     = "name"
	FieldCategory = "category"
	FieldAddress  = "address"
	FieldPhone    = "phone"
)

// Fields lists the canonical field keys in output order.
var Fields = []string{FieldName, FieldCategory, FieldAddress, FieldPhone}

// Headings maps canonical field keys to the column headings used in
// client-facing spreadsheets.
var Headings = map[string]string{
	FieldName:     "企業名",
	FieldCategory: "業種",
	FieldAddress:  "住所",
	FieldPhone:    "電話番号",
}

// HeadingRow returns the spreadsheet header row in canonical order.
func HeadingRow() []string {
	row := make([]string, len(Fields))
	for i, f := range Fields {
		row[i] = Headings[f]
	}
	return row
}

// Outcome is the per-record result of matching against an NG list.
type Outcome struct {
	NameMatched  bool `json:"name_matched"`
	PhoneMatched bool `json:"phone_matched"`
}

// Excluded reports whether the record must be dropped.
func (o Outcome) Excluded() bool {
	return o.NameMatched || o.PhoneMatched
}

// Layout describes how an input workbook was interpreted.
type Layout string

const (
	LayoutAuto    Layout = "auto"
	LayoutFlat    Layout = "flat"    // single column of directory lines
	LayoutTabular Layout = "tabular" // header row + one record per row
)

// Run is the audit row written for every processed upload.
type Run struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	NGList    string    `json:"nglist,omitempty"`
	Layout    Layout    `json:"layout"`
	Total     int       `json:"total"`
	Kept      int       `json:"kept"`
	Excluded  int       `json:"excluded"`
	CreatedAt time.Time `json:"created_at"`
}
