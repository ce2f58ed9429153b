// Package sqlset implements queryset.Queryset on top of a SQL database.
//
// Identifiers never come from the request: a Table declares an allow-list
// of field paths and the SQL expression behind each one, and only values
// are bound as arguments.
package sqlset

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/deppfellow/go-datatables/internal/queryset"
)

// Runner executes rendered SQL. The database package implements it for
// pgxpool and for database/sql.
type Runner interface {
	QueryRows(ctx context.Context, query string, args ...any) ([]queryset.Row, error)
	QueryCount(ctx context.Context, query string, args ...any) (int, error)
}

// Table describes the relation a Set reads from.
type Table struct {
	// From is the FROM clause body, joins included.
	From string `koanf:"from" validate:"required"`

	// Fields maps a field path to its SQL expression.
	Fields map[string]string `koanf:"fields" validate:"required,min=1"`

	// DefaultOrder is applied when no OrderBy was requested, so that pages
	// stay stable. Same syntax as OrderBy.
	DefaultOrder string `koanf:"default_order"`
}

// Set is a SQL-backed queryset.Queryset.
type Set struct {
	dialect Dialect
	runner  Runner
	table   Table
	paths   []string
	cond    queryset.Cond
	order   string
}

// New validates the table definition and returns an unfiltered Set.
func New(dialect Dialect, runner Runner, table Table) (*Set, error) {
	if strings.TrimSpace(table.From) == "" {
		return nil, fmt.Errorf("sqlset: table has no FROM clause")
	}
	if len(table.Fields) == 0 {
		return nil, fmt.Errorf("sqlset: table %q exposes no fields", table.From)
	}

	paths := make([]string, 0, len(table.Fields))
	for p := range table.Fields {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	s := &Set{dialect: dialect, runner: runner, table: table, paths: paths}
	if table.DefaultOrder != "" {
		name, _ := queryset.SplitOrder(table.DefaultOrder)
		if _, ok := table.Fields[name]; !ok {
			return nil, fmt.Errorf("sqlset: default order %w: %q", queryset.ErrUnknownField, name)
		}
	}
	return s, nil
}

// Fields returns the exposed field paths in sorted order.
func (s *Set) Fields() []string {
	return append([]string(nil), s.paths...)
}

func (s *Set) Check(c queryset.Cond) error {
	return queryset.Walk(c, func(l queryset.Lookup) error {
		if _, ok := s.table.Fields[l.Field]; !ok {
			return fmt.Errorf("%w: %q", queryset.ErrUnknownField, l.Field)
		}
		switch l.Op {
		case queryset.OpIContains, queryset.OpExact:
			return nil
		}
		return fmt.Errorf("%w: %q", queryset.ErrUnsupportedOp, l.Op)
	})
}

func (s *Set) Filter(c queryset.Cond) (queryset.Queryset, error) {
	if err := s.Check(c); err != nil {
		return nil, err
	}
	next := *s
	if s.cond == nil {
		next.cond = c
	} else {
		next.cond = queryset.AllOf{s.cond, c}
	}
	return &next, nil
}

func (s *Set) OrderBy(field string) (queryset.Queryset, error) {
	name, _ := queryset.SplitOrder(field)
	if _, ok := s.table.Fields[name]; !ok {
		return nil, fmt.Errorf("%w: %q", queryset.ErrUnknownField, name)
	}
	next := *s
	next.order = field
	return &next, nil
}

func (s *Set) Count(ctx context.Context) (int, error) {
	query, args := s.CountSQL()
	n, err := s.runner.QueryCount(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", s.table.From, err)
	}
	return n, nil
}

func (s *Set) Slice(ctx context.Context, start, end int) ([]queryset.Row, error) {
	query, args := s.SelectSQL(start, end)
	rows, err := s.runner.QueryRows(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", s.table.From, err)
	}
	return rows, nil
}

// CountSQL renders the COUNT(*) statement for the current filters.
func (s *Set) CountSQL() (string, []any) {
	b := &builder{dialect: s.dialect}
	var sb strings.Builder
	sb.WriteString("SELECT COUNT(*) FROM ")
	sb.WriteString(s.table.From)
	s.writeWhere(&sb, b)
	return sb.String(), b.args
}

// SelectSQL renders the page query for rows [start, end).
func (s *Set) SelectSQL(start, end int) (string, []any) {
	if start < 0 {
		start = 0
	}
	b := &builder{dialect: s.dialect}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	for i, p := range s.paths {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(s.table.Fields[p])
		sb.WriteString(" AS ")
		sb.WriteString(quoteIdent(p))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(s.table.From)
	s.writeWhere(&sb, b)

	order := s.order
	if order == "" {
		order = s.table.DefaultOrder
	}
	if order != "" {
		name, desc := queryset.SplitOrder(order)
		sb.WriteString(" ORDER BY ")
		sb.WriteString(s.table.Fields[name])
		if desc {
			sb.WriteString(" DESC")
		} else {
			sb.WriteString(" ASC")
		}
	}

	unlimited := end < 0
	limit := ""
	if !unlimited {
		n := end - start
		if n < 0 {
			n = 0
		}
		limit = b.bind(n)
	}
	offset := b.bind(start)
	sb.WriteString(" ")
	sb.WriteString(s.dialect.Paginate(limit, offset, unlimited))

	return sb.String(), b.args
}

func (s *Set) writeWhere(sb *strings.Builder, b *builder) {
	if s.cond == nil {
		return
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(b.render(s.cond, s.table.Fields))
}

type builder struct {
	dialect Dialect
	args    []any
}

func (b *builder) bind(v any) string {
	b.args = append(b.args, v)
	return b.dialect.Placeholder(len(b.args))
}

func (b *builder) render(c queryset.Cond, fields map[string]string) string {
	switch c := c.(type) {
	case queryset.Lookup:
		expr := fields[c.Field]
		switch c.Op {
		case queryset.OpIContains:
			return b.dialect.IContains(expr, b.bind("%"+escapeLike(fmt.Sprint(c.Value))+"%"))
		default:
			switch v := c.Value.(type) {
			case nil:
				return expr + " IS NULL"
			case bool:
				return b.dialect.BoolEquals(expr, b.bind(b.dialect.BoolText(v)))
			}
			return expr + " = " + b.bind(c.Value)
		}
	case queryset.AnyOf:
		if len(c) == 0 {
			return "1 = 0"
		}
		parts := make([]string, len(c))
		for i, sub := range c {
			parts[i] = b.render(sub, fields)
		}
		return "(" + strings.Join(parts, " OR ") + ")"
	case queryset.AllOf:
		if len(c) == 0 {
			return "1 = 1"
		}
		parts := make([]string, len(c))
		for i, sub := range c {
			parts[i] = b.render(sub, fields)
		}
		return "(" + strings.Join(parts, " AND ") + ")"
	}
	return "1 = 0"
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
