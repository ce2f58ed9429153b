package queryset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invoices() *Memory {
	return NewMemory(
		[]string{"id", "number", "paid", "customer__name"},
		[]Row{
			{"id": 1, "number": "INV-001", "paid": true, "customer__name": "Ada Lovelace"},
			{"id": 2, "number": "INV-002", "paid": false, "customer__name": "Grace Hopper"},
			{"id": 3, "number": "INV-003", "paid": true, "customer__name": nil},
			{"id": 4, "number": "inv-004", "paid": false, "customer__name": "Alan Turing"},
		},
	)
}

func ids(t *testing.T, qs Queryset) []int {
	t.Helper()
	rows, err := qs.Slice(context.Background(), 0, -1)
	require.NoError(t, err)
	out := make([]int, 0, len(rows))
	for _, r := range rows {
		out = append(out, r["id"].(int))
	}
	return out
}

func TestParseLookup(t *testing.T) {
	tests := []struct {
		key  string
		want Lookup
	}{
		{"name__icontains", Lookup{Field: "name", Op: OpIContains, Value: "x"}},
		{"customer__name__icontains", Lookup{Field: "customer__name", Op: OpIContains, Value: "x"}},
		{"customer__name", Lookup{Field: "customer__name", Op: OpExact, Value: "x"}},
		{"paid__exact", Lookup{Field: "paid", Op: OpExact, Value: "x"}},
		{"name", Lookup{Field: "name", Op: OpExact, Value: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLookup(tt.key, "x"))
		})
	}
}

func TestMemoryFilterIContains(t *testing.T) {
	qs, err := invoices().Filter(Lookup{Field: "number", Op: OpIContains, Value: "INV-00"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, ids(t, qs))

	qs, err = invoices().Filter(Lookup{Field: "customer__name", Op: OpIContains, Value: "a"})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 4}, ids(t, qs), "nil values never match icontains")
}

func TestMemoryFilterExactBool(t *testing.T) {
	qs, err := invoices().Filter(Lookup{Field: "paid", Op: OpExact, Value: true})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, ids(t, qs))
}

func TestMemoryEmptyAnyOfMatchesNothing(t *testing.T) {
	qs, err := invoices().Filter(AnyOf{})
	require.NoError(t, err)

	n, err := qs.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMemoryEmptyAllOfMatchesEverything(t *testing.T) {
	qs, err := invoices().Filter(AllOf{})
	require.NoError(t, err)

	n, err := qs.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestMemoryFilterIsImmutable(t *testing.T) {
	base := invoices()
	_, err := base.Filter(Lookup{Field: "paid", Op: OpExact, Value: true})
	require.NoError(t, err)

	n, err := base.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestMemoryUnknownField(t *testing.T) {
	_, err := invoices().Filter(Lookup{Field: "total", Op: OpIContains, Value: "1"})
	assert.ErrorIs(t, err, ErrUnknownField)

	_, err = invoices().OrderBy("-total")
	assert.ErrorIs(t, err, ErrUnknownField)

	err = invoices().Check(AnyOf{Lookup{Field: "id", Op: "gt", Value: 1}})
	assert.ErrorIs(t, err, ErrUnsupportedOp)
}

func TestMemoryOrderBy(t *testing.T) {
	asc, err := invoices().OrderBy("customer__name")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1, 4, 2}, ids(t, asc))

	desc, err := invoices().OrderBy("-customer__name")
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 1, 3}, ids(t, desc))
}

func TestMemorySlice(t *testing.T) {
	qs, err := invoices().OrderBy("-id")
	require.NoError(t, err)

	rows, err := qs.Slice(context.Background(), 1, 3)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 3, rows[0]["id"])
	assert.Equal(t, 2, rows[1]["id"])

	rows, err = qs.Slice(context.Background(), 10, 20)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestSplitOrder(t *testing.T) {
	field, desc := SplitOrder("-customer__name")
	assert.Equal(t, "customer__name", field)
	assert.True(t, desc)

	field, desc = SplitOrder("id")
	assert.Equal(t, "id", field)
	assert.False(t, desc)
}

func TestWalk(t *testing.T) {
	c := AllOf{
		AnyOf{ParseLookup("number__icontains", "inv"), ParseLookup("customer__name__icontains", "inv")},
		ParseLookup("paid", true),
	}

	var fields []string
	require.NoError(t, Walk(c, func(l Lookup) error {
		fields = append(fields, l.Field)
		return nil
	}))
	assert.Equal(t, []string{"number", "customer__name", "paid"}, fields)
}
