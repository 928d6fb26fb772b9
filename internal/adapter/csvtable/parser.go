// Package csvtable parses and normalizes the rate table carried inside the
// source archive.
package csvtable

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"eurofx-service/internal/domain/model"
	"eurofx-service/pkg/logger"
)

var (
	ErrNoEntries         = errors.New("archive has no entries")
	ErrEmptyTable        = errors.New("table has no header")
	ErrMissingDateColumn = errors.New("table has no date column")
	ErrMalformedCSV      = errors.New("malformed csv")
)

// ctxCheckEvery is how many rows are parsed between cancellation checks.
const ctxCheckEvery = 256

type Parser struct {
	log *logger.Logger
}

func NewParser(log *logger.Logger) *Parser {
	return &Parser{log: log}
}

// Parse reads the first archive entry as a header-led CSV table. Later entries
// are ignored. Cells are trimmed and columns with an empty name are dropped;
// no currency filtering happens here.
func (p *Parser) Parse(ctx context.Context, files *model.ExtractedFiles) (*model.CsvTable, error) {
	name, content, ok := files.First()
	if !ok {
		return nil, ErrNoEntries
	}
	if len(files.Names) > 1 {
		p.log.Warn("Archive has extra entries, using the first", "entry", name, "ignored", files.Names[1:])
	}

	r := csv.NewReader(strings.NewReader(content))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.ReuseRecord = true

	raw, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s", ErrEmptyTable, name)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedCSV, name, err)
	}

	columns := headerColumns(raw)
	table := &model.CsvTable{Header: make([]string, 0, len(columns))}
	hasDate := false
	for _, c := range columns {
		table.Header = append(table.Header, c.label)
		if c.label == model.DateColumn {
			hasDate = true
		}
	}
	if !hasDate {
		return nil, fmt.Errorf("%w: %s", ErrMissingDateColumn, name)
	}

	for line := 1; ; line++ {
		if line%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedCSV, name, err)
		}

		row := make(map[string]string, len(columns))
		for _, c := range columns {
			if c.index >= len(record) {
				continue
			}
			row[c.label] = strings.TrimSpace(record[c.index])
		}
		table.Rows = append(table.Rows, row)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return table, nil
}

type column struct {
	label string
	index int
}

// headerColumns trims the header and drops blank and repeated labels.
func headerColumns(raw []string) []column {
	seen := make(map[string]struct{}, len(raw))
	columns := make([]column, 0, len(raw))
	for i, h := range raw {
		label := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if label == "" {
			continue
		}
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}
		columns = append(columns, column{label: label, index: i})
	}
	return columns
}
