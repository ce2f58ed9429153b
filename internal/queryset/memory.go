package queryset

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Memory is a Queryset over an in-memory slice of rows.
//
// Fields declares the paths the set exposes; a lookup on any other path
// fails with ErrUnknownField, the same way a SQL-backed set rejects a
// column it does not know.
type Memory struct {
	fields map[string]struct{}
	rows   []Row
	cond   Cond
	order  string
}

// NewMemory builds a Memory set. Rows are not copied.
func NewMemory(fields []string, rows []Row) *Memory {
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return &Memory{fields: set, rows: rows}
}

func (m *Memory) Check(c Cond) error {
	return Walk(c, func(l Lookup) error {
		if _, ok := m.fields[l.Field]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownField, l.Field)
		}
		switch l.Op {
		case OpIContains, OpExact:
			return nil
		}
		return fmt.Errorf("%w: %q", ErrUnsupportedOp, l.Op)
	})
}

func (m *Memory) Filter(c Cond) (Queryset, error) {
	if err := m.Check(c); err != nil {
		return nil, err
	}
	next := *m
	if m.cond == nil {
		next.cond = c
	} else {
		next.cond = AllOf{m.cond, c}
	}
	return &next, nil
}

func (m *Memory) OrderBy(field string) (Queryset, error) {
	name, _ := SplitOrder(field)
	if _, ok := m.fields[name]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	next := *m
	next.order = field
	return &next, nil
}

func (m *Memory) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := 0
	for _, r := range m.rows {
		if m.cond == nil || match(m.cond, r) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) Slice(ctx context.Context, start, end int) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]Row, 0, len(m.rows))
	for _, r := range m.rows {
		if m.cond == nil || match(m.cond, r) {
			out = append(out, r)
		}
	}
	if m.order != "" {
		name, desc := SplitOrder(m.order)
		sort.SliceStable(out, func(i, j int) bool {
			if desc {
				return compare(out[j][name], out[i][name]) < 0
			}
			return compare(out[i][name], out[j][name]) < 0
		})
	}

	if start < 0 {
		start = 0
	}
	if start > len(out) {
		start = len(out)
	}
	if end < 0 || end > len(out) {
		end = len(out)
	}
	if end < start {
		end = start
	}
	return out[start:end], nil
}

func match(c Cond, r Row) bool {
	switch c := c.(type) {
	case Lookup:
		return matchLookup(c, r[c.Field])
	case AnyOf:
		for _, sub := range c {
			if match(sub, r) {
				return true
			}
		}
		return false
	case AllOf:
		for _, sub := range c {
			if !match(sub, r) {
				return false
			}
		}
		return true
	}
	return false
}

func matchLookup(l Lookup, v any) bool {
	switch l.Op {
	case OpIContains:
		if v == nil {
			return false
		}
		return strings.Contains(strings.ToLower(text(v)), strings.ToLower(text(l.Value)))
	case OpExact:
		return equal(v, l.Value)
	}
	return false
}

func text(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case time.Time:
		return v.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ab, ok := toBool(a); ok {
		if bb, ok := toBool(b); ok {
			return ab == bb
		}
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			return af == bf
		}
	}
	return text(a) == text(b)
}

// toBool accepts real booleans only; numbers stay numbers.
func toBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// compare orders nil before everything else, then numbers, times, bools
// and finally falls back to text.
func compare(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			}
			return 0
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt)
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(text(a), text(b))
}
