// Package datatables serves the server-side processing protocol of the
// jQuery DataTables widget.
//
// Process reads the widget's query string, narrows a queryset with the
// global search, the per-column searches and the requested ordering, slices
// the requested page and hands it to a Serializer. Search and ordering are
// best effort: a column the queryset cannot filter on is skipped, a
// malformed parameter falls back to its default. Only data-layer and
// serializer failures are returned to the caller.
package datatables

import (
	"context"
	"fmt"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/deppfellow/go-datatables/internal/queryset"
)

// Response is the JSON envelope the widget expects.
//
// RecordsTotal and RecordsFiltered both carry the post-filter count.
type Response struct {
	Draw            int `json:"draw"`
	RecordsTotal    int `json:"recordsTotal"`
	RecordsFiltered int `json:"recordsFiltered"`
	Data            any `json:"data"`
}

// Process runs one DataTables request against qs.
func Process(ctx context.Context, values url.Values, qs queryset.Queryset, s Serializer, opts Options) (*Response, error) {
	req := ParseRequest(values, opts)
	return Apply(ctx, req, qs, s, opts)
}

// Apply runs an already parsed request against qs.
func Apply(ctx context.Context, req Request, qs queryset.Queryset, s Serializer, opts Options) (*Response, error) {
	logger := zerolog.Ctx(ctx).With().Str("component", "datatables").Logger()

	qs = applySearch(logger, req, qs, opts)
	qs = applyColumnSearch(logger, req, qs, opts)
	qs = applyOrder(logger, req, qs, opts)

	total, err := qs.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("counting records: %w", err)
	}

	rows, err := qs.Slice(ctx, req.Start, req.End())
	if err != nil {
		return nil, fmt.Errorf("fetching page: %w", err)
	}

	data, err := s.Serialize(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("serializing page: %w", err)
	}
	if data == nil {
		data = []any{}
	}

	logger.Debug().
		Int("draw", req.Draw).
		Int("start", req.Start).
		Int("length", req.Length).
		Int("columns", len(req.Columns)).
		Int("terms", len(req.Search)).
		Int("records", total).
		Int("rows", len(rows)).
		Msg("datatables request processed")

	return &Response{
		Draw:            req.Draw,
		RecordsTotal:    total,
		RecordsFiltered: total,
		Data:            data,
	}, nil
}

// fieldsFor returns the field paths a column searches and sorts on.
func fieldsFor(c Column, opts Options) []string {
	if fields, ok := opts.Remapping.Lookup(c.Name); ok {
		return fields
	}
	if fields, ok := opts.Remapping.Lookup(c.Data); ok {
		return fields
	}
	return []string{c.Name}
}

// applySearch ANDs the global search terms together; each term must match
// at least one searchable field. Fields the queryset rejects are dropped,
// so a term with no searchable field left matches nothing. Without any
// active column the search is ignored.
func applySearch(logger zerolog.Logger, req Request, qs queryset.Queryset, opts Options) queryset.Queryset {
	if len(req.Search) == 0 {
		return qs
	}
	if len(req.Columns) == 0 {
		logger.Debug().Msg("global search ignored: no active columns")
		return qs
	}

	terms := make(queryset.AllOf, 0, len(req.Search))
	for _, term := range req.Search {
		matches := queryset.AnyOf{}
		for _, c := range req.Columns {
			for _, f := range fieldsFor(c, opts) {
				l := queryset.Lookup{Field: f, Op: queryset.OpIContains, Value: term}
				if err := qs.Check(l); err != nil {
					logger.Debug().Err(err).Str("column", c.Data).Msg("column skipped in global search")
					continue
				}
				matches = append(matches, l)
			}
		}
		terms = append(terms, matches)
	}

	next, err := qs.Filter(terms)
	if err != nil {
		logger.Warn().Err(err).Msg("global search ignored")
		return qs
	}
	return next
}

// applyColumnSearch ANDs the per-column filters. A remapped column matches
// when any of its fields does.
func applyColumnSearch(logger zerolog.Logger, req Request, qs queryset.Queryset, opts Options) queryset.Queryset {
	for _, c := range req.Columns {
		if c.Search == "" {
			continue
		}

		op, value := queryset.OpIContains, any(c.Search)
		if b, ok := opts.Coercion.Apply(c.Name, c.Search); ok {
			op, value = queryset.OpExact, b
		}

		fields := fieldsFor(c, opts)
		var cond queryset.Cond
		if len(fields) == 1 {
			cond = queryset.Lookup{Field: fields[0], Op: op, Value: value}
		} else {
			either := make(queryset.AnyOf, 0, len(fields))
			for _, f := range fields {
				either = append(either, queryset.Lookup{Field: f, Op: op, Value: value})
			}
			cond = either
		}

		next, err := qs.Filter(cond)
		if err != nil {
			logger.Debug().Err(err).Str("column", c.Data).Msg("column search skipped")
			continue
		}
		qs = next
	}
	return qs
}

// applyOrder sorts on the first field of the requested column.
func applyOrder(logger zerolog.Logger, req Request, qs queryset.Queryset, opts Options) queryset.Queryset {
	if req.Order == nil {
		return qs
	}
	c, ok := req.ColumnAt(req.Order.Column)
	if !ok {
		logger.Debug().Int("column", req.Order.Column).Msg("order column not active")
		return qs
	}

	field := fieldsFor(c, opts)[0]
	if req.Order.Desc {
		field = "-" + field
	}
	next, err := qs.OrderBy(field)
	if err != nil {
		logger.Debug().Err(err).Str("column", c.Data).Msg("ordering skipped")
		return qs
	}
	return next
}
