package csvtable

import (
	"eurofx-service/internal/domain/model"

	"github.com/shopspring/decimal"
)

func (p *Parser) Normalize(table *model.CsvTable, filter []model.Currency) []model.RateRecord {
	return Normalize(table, filter)
}

// Normalize converts table rows into rate records in table order. A non-empty
// filter keeps only the date column and the listed currencies.
func Normalize(table *model.CsvTable, filter []model.Currency) []model.RateRecord {
	keep := columnFilter(filter)

	records := make([]model.RateRecord, 0, len(table.Rows))
	for _, row := range table.Rows {
		record := make(model.RateRecord, len(row))
		for _, label := range table.Header {
			if keep != nil {
				if _, ok := keep[label]; !ok {
					continue
				}
			}
			raw, ok := row[label]
			if !ok {
				continue
			}
			record[label] = Coerce(label, raw)
		}
		records = append(records, record)
	}
	return records
}

// Coerce turns a trimmed cell into a number when it parses as one. The date
// column always stays a string. A successful parse of "0" yields the number 0.
func Coerce(label, raw string) model.Value {
	if label == model.DateColumn {
		return model.TextValue(raw)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return model.TextValue(raw)
	}
	return model.NumberValue(d)
}

func columnFilter(filter []model.Currency) map[string]struct{} {
	if len(filter) == 0 {
		return nil
	}
	keep := make(map[string]struct{}, len(filter)+1)
	keep[model.DateColumn] = struct{}{}
	for _, c := range filter {
		keep[c.String()] = struct{}{}
	}
	return keep
}
