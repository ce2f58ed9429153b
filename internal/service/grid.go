package service

import (
	"context"
	"fmt"
	"maps"
	"net/url"
	"strings"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/rs/zerolog"

	"github.com/deppfellow/go-datatables/internal/datatables"
	"github.com/deppfellow/go-datatables/internal/errs"
	"github.com/deppfellow/go-datatables/internal/metrics"
	"github.com/deppfellow/go-datatables/internal/queryset"
	"github.com/deppfellow/go-datatables/internal/queryset/sqlset"
	"github.com/deppfellow/go-datatables/internal/repository"
	"github.com/deppfellow/go-datatables/internal/server"
	"github.com/deppfellow/go-datatables/internal/sqlerr"
)

// GridNotFoundCode is the error code of a request for an unconfigured grid.
const GridNotFoundCode = "GRID_NOT_FOUND"

// GridService answers DataTables requests for the configured grids.
type GridService struct {
	server  *server.Server
	repo    *repository.GridRepository
	options map[string]datatables.Options
}

// GridDescription tells a client which columns a grid can serve.
type GridDescription struct {
	Name              string         `json:"name"`
	Fields            []string       `json:"fields"`
	ColumnRemapping   []ColumnRemap  `json:"column_remapping"`
	AdditionalColumns []string       `json:"additional_columns"`
	DefaultLength     int            `json:"default_length"`
	MaxLength         int            `json:"max_length,omitempty"`
	Coercion          *CoercionUsage `json:"coercion,omitempty"`
}

// ColumnRemap is one logical column and the fields it searches and sorts on.
type ColumnRemap struct {
	Column string   `json:"column"`
	Fields []string `json:"fields"`
}

// CoercionUsage reports where boolean coercion of column searches applies.
// An empty Columns means every column.
type CoercionUsage struct {
	Columns []string `json:"columns"`
}

func NewGridService(s *server.Server, repo *repository.GridRepository) (*GridService, error) {
	options := make(map[string]datatables.Options, len(s.Config.Grids))
	for name, grid := range s.Config.Grids {
		opts, err := grid.Options()
		if err != nil {
			return nil, fmt.Errorf("grid %q: %w", name, err)
		}
		options[name] = opts
	}

	return &GridService{
		server:  s,
		repo:    repo,
		options: options,
	}, nil
}

// Names lists the configured grids.
func (s *GridService) Names() []string {
	return s.repo.Names()
}

// Query runs one DataTables request against a grid.
func (s *GridService) Query(ctx context.Context, name string, values url.Values) (*datatables.Response, error) {
	set, opts, err := s.grid(name)
	if err != nil {
		return nil, err
	}

	txn := newrelic.FromContext(ctx)
	txn.AddAttribute("grid.name", name)

	segment := txn.StartSegment("grid.query")
	start := time.Now()
	resp, err := datatables.Process(ctx, values, set, datatables.NestedSerializer{}, opts)
	elapsed := time.Since(start)
	segment.End()

	if err != nil {
		metrics.RecordGridQuery(name, elapsed, 0, err)
		s.logger(ctx).Error().
			Err(err).
			Str("grid", name).
			Dur("duration", elapsed).
			Msg("grid query failed")
		return nil, sqlerr.HandleError(err)
	}

	metrics.RecordGridQuery(name, elapsed, resp.RecordsFiltered, nil)
	txn.AddAttribute("grid.records_filtered", resp.RecordsFiltered)

	s.logger(ctx).Debug().
		Str("grid", name).
		Int("draw", resp.Draw).
		Int("records_filtered", resp.RecordsFiltered).
		Dur("duration", elapsed).
		Msg("grid query served")

	return resp, nil
}

// Export renders every row matching a DataTables request as CSV. Paging
// parameters are ignored; the grid's MaxLength still caps the row count.
//
// The CSV columns are the request's client columns the grid has a field
// for, or every field of the grid when there are none.
func (s *GridService) Export(ctx context.Context, name string, values url.Values) ([]byte, error) {
	set, opts, err := s.grid(name)
	if err != nil {
		return nil, err
	}

	values = maps.Clone(values)
	if values == nil {
		values = url.Values{}
	}
	values.Set("start", "0")
	values.Set("length", "-1")
	req := datatables.ParseRequest(values, opts)

	txn := newrelic.FromContext(ctx)
	txn.AddAttribute("grid.name", name)
	segment := txn.StartSegment("grid.export")
	defer segment.End()

	start := time.Now()
	resp, err := datatables.Apply(ctx, req, set, csvSerializer{columns: exportColumns(req, set.Fields())}, opts)
	elapsed := time.Since(start)
	if err != nil {
		metrics.RecordGridQuery(name, elapsed, 0, err)
		s.logger(ctx).Error().
			Err(err).
			Str("grid", name).
			Dur("duration", elapsed).
			Msg("grid export failed")
		return nil, sqlerr.HandleError(err)
	}
	metrics.RecordGridQuery(name, elapsed, resp.RecordsFiltered, nil)

	data, ok := resp.Data.([]byte)
	if !ok {
		return nil, fmt.Errorf("grid export produced %T", resp.Data)
	}
	return data, nil
}

// Describe reports the fields and column mapping of a grid.
func (s *GridService) Describe(_ context.Context, name string) (*GridDescription, error) {
	set, opts, err := s.grid(name)
	if err != nil {
		return nil, err
	}

	desc := &GridDescription{
		Name:              name,
		Fields:            clientPaths(set.Fields()),
		ColumnRemapping:   make([]ColumnRemap, 0, len(opts.Remapping)),
		AdditionalColumns: clientPaths(opts.AdditionalColumns),
		DefaultLength:     opts.DefaultLength,
		MaxLength:         opts.MaxLength,
	}
	if desc.DefaultLength <= 0 {
		desc.DefaultLength = datatables.DefaultLength
	}
	for _, remap := range opts.Remapping {
		desc.ColumnRemapping = append(desc.ColumnRemapping, ColumnRemap{
			Column: remap.Column,
			Fields: clientPaths(remap.Fields),
		})
	}
	if opts.Coercion != nil {
		desc.Coercion = &CoercionUsage{Columns: clientPaths(opts.Coercion.Columns)}
	}
	return desc, nil
}

func (s *GridService) grid(name string) (*sqlset.Set, datatables.Options, error) {
	set, ok := s.repo.Get(name)
	if !ok {
		code := GridNotFoundCode
		return nil, datatables.Options{}, errs.NewNotFoundError(fmt.Sprintf("Grid %q not found", name), true, &code)
	}
	return set, s.options[name], nil
}

// logger prefers the request logger the middleware put in ctx.
func (s *GridService) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return s.server.Logger
}

// clientPaths rewrites field paths into the dotted form DataTables columns
// use for nested data.
func clientPaths(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = strings.ReplaceAll(p, queryset.LookupSep, ".")
	}
	return out
}
