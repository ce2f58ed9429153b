package datatables

import (
	"context"
	"sort"
	"strings"

	"github.com/deppfellow/go-datatables/internal/queryset"
)

// Serializer converts a page of rows into the value placed under "data".
type Serializer interface {
	Serialize(ctx context.Context, rows []queryset.Row) (any, error)
}

// SerializerFunc adapts a function to Serializer.
type SerializerFunc func(ctx context.Context, rows []queryset.Row) (any, error)

func (f SerializerFunc) Serialize(ctx context.Context, rows []queryset.Row) (any, error) {
	return f(ctx, rows)
}

// NestedSerializer renders every row as a JSON object, splitting "a__b"
// keys into nested objects so that a client column declared as
// data: "a.b" finds its value.
//
// Fields, when set, restricts the output to those paths.
type NestedSerializer struct {
	Fields []string
}

func (s NestedSerializer) Serialize(_ context.Context, rows []queryset.Row) (any, error) {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		obj := map[string]any{}
		if len(s.Fields) > 0 {
			for _, f := range s.Fields {
				if v, ok := row[f]; ok {
					setNested(obj, f, v)
				}
			}
		} else {
			keys := make([]string, 0, len(row))
			for k := range row {
				keys = append(keys, k)
			}
			// "a" sorts before "a__b", so nested objects consistently win
			sort.Strings(keys)
			for _, k := range keys {
				setNested(obj, k, row[k])
			}
		}
		out = append(out, obj)
	}
	return out, nil
}

func setNested(obj map[string]any, path string, v any) {
	parts := strings.Split(path, queryset.LookupSep)
	for _, p := range parts[:len(parts)-1] {
		child, ok := obj[p].(map[string]any)
		if !ok {
			child = map[string]any{}
			obj[p] = child
		}
		obj = child
	}
	obj[parts[len(parts)-1]] = v
}
