package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"slices"
	"time"

	"github.com/deppfellow/go-datatables/internal/datatables"
	"github.com/deppfellow/go-datatables/internal/queryset"
)

type exportColumn struct {
	header string
	field  string
}

func exportColumns(req datatables.Request, fields []string) []exportColumn {
	var cols []exportColumn
	for _, c := range req.Columns {
		if c.Additional || !slices.Contains(fields, c.Name) {
			continue
		}
		if slices.ContainsFunc(cols, func(e exportColumn) bool { return e.field == c.Name }) {
			continue
		}
		cols = append(cols, exportColumn{header: c.Data, field: c.Name})
	}
	if len(cols) > 0 {
		return cols
	}

	headers := clientPaths(fields)
	for i, f := range fields {
		cols = append(cols, exportColumn{header: headers[i], field: f})
	}
	return cols
}

// csvSerializer writes a page as CSV with a header line.
type csvSerializer struct {
	columns []exportColumn
}

func (s csvSerializer) Serialize(_ context.Context, rows []queryset.Row) (any, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	record := make([]string, len(s.columns))
	for i, c := range s.columns {
		record[i] = c.header
	}
	if err := w.Write(record); err != nil {
		return nil, err
	}

	for _, row := range rows {
		for i, c := range s.columns {
			record[i] = csvValue(row[c.field])
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func csvValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}
