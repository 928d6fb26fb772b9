package model

import (
	"github.com/shopspring/decimal"
)

// DateColumn is the header label of the column holding the publication date.
const DateColumn = "Date"

// Endpoint selects one of the upstream archives.
type Endpoint string

const (
	EndpointDaily      Endpoint = "daily"
	EndpointHistorical Endpoint = "historical"
)

func (e Endpoint) String() string {
	return string(e)
}

// ExtractedFiles holds the fully decompressed entries of one archive in
// archive order.
type ExtractedFiles struct {
	Names    []string
	Contents map[string]string
}

// First returns the first entry in archive order.
func (f *ExtractedFiles) First() (name, content string, ok bool) {
	if f == nil || len(f.Names) == 0 {
		return "", "", false
	}
	name = f.Names[0]
	return name, f.Contents[name], true
}

// CsvTable is a parsed rate table. Header labels are trimmed and never empty.
// A table is never modified after it has been built.
type CsvTable struct {
	Header []string
	Rows   []map[string]string
}

// FetchOptions controls a single rates request.
type FetchOptions struct {
	Historical bool
	Currencies []Currency
}

// RateRecord is one normalized row keyed by column label.
type RateRecord map[string]Value

// Date returns the verbatim date column of the record.
func (r RateRecord) Date() string {
	return r[DateColumn].Text
}

// DatedRates maps a date string to the per-currency values of that day.
type DatedRates map[string]map[string]Value

// Value is a cell that is either a decimal number or a string.
type Value struct {
	Number  decimal.Decimal
	Text    string
	Numeric bool
}

func NumberValue(d decimal.Decimal) Value {
	return Value{Number: d, Text: d.String(), Numeric: true}
}

func TextValue(s string) Value {
	return Value{Text: s}
}

func (v Value) String() string {
	return v.Text
}
