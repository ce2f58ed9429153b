package datatables

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/go-datatables/internal/queryset"
	"github.com/deppfellow/go-datatables/internal/queryset/sqlset"
)

var customers = []string{"Ada Lovelace", "Grace Hopper", "Alan Turing", "Barbara Liskov", "Gunther Brandt"}

// invoiceSet holds 25 invoices; odd ids are paid and customers cycle
// through the list above.
func invoiceSet() *queryset.Memory {
	rows := make([]queryset.Row, 0, 25)
	for i := 0; i < 25; i++ {
		name := customers[i%len(customers)]
		rows = append(rows, queryset.Row{
			"id":              i + 1,
			"number":          fmt.Sprintf("INV-%03d", i+1),
			"paid":            i%2 == 0,
			"customer__name":  name,
			"customer__email": strings.ToLower(strings.Fields(name)[0]) + "@example.com",
		})
	}
	return queryset.NewMemory(
		[]string{"id", "number", "paid", "customer__name", "customer__email"},
		rows,
	)
}

func process(t *testing.T, values url.Values, opts Options) *Response {
	t.Helper()
	resp, err := Process(context.Background(), values, invoiceSet(), NestedSerializer{}, opts)
	require.NoError(t, err)
	return resp
}

func dataIDs(t *testing.T, resp *Response) []int {
	t.Helper()
	rows, ok := resp.Data.([]map[string]any)
	require.True(t, ok, "unexpected data type %T", resp.Data)
	out := make([]int, 0, len(rows))
	for _, r := range rows {
		out = append(out, r["id"].(int))
	}
	return out
}

func seq(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

// invoiceColumns is the column set a typical invoice grid sends.
func invoiceColumns(kv ...string) url.Values {
	v := query(
		"columns[0][data]", "id",
		"columns[1][data]", "number",
		"columns[2][data]", "customer.name",
		"columns[3][data]", "paid",
	)
	for i := 0; i+1 < len(kv); i += 2 {
		v.Set(kv[i], kv[i+1])
	}
	return v
}

func TestProcessWithoutParameters(t *testing.T) {
	resp := process(t, url.Values{}, Options{})

	assert.Equal(t, 0, resp.Draw)
	assert.Equal(t, 25, resp.RecordsTotal)
	assert.Equal(t, 25, resp.RecordsFiltered)
	assert.Equal(t, seq(1, 10), dataIDs(t, resp))
}

func TestProcessPaging(t *testing.T) {
	resp := process(t, query("draw", "3", "start", "20", "length", "10"), Options{})
	assert.Equal(t, 3, resp.Draw)
	assert.Equal(t, 25, resp.RecordsTotal)
	assert.Equal(t, seq(21, 25), dataIDs(t, resp))

	resp = process(t, query("length", "-1"), Options{})
	assert.Equal(t, seq(1, 25), dataIDs(t, resp))

	resp = process(t, query("length", "-1"), Options{MaxLength: 20})
	assert.Equal(t, seq(1, 20), dataIDs(t, resp))
}

func TestProcessGlobalSearchANDsTerms(t *testing.T) {
	// both terms hit the same column
	resp := process(t, invoiceColumns("search[value]", "ada lovelace"), Options{})
	assert.Equal(t, 5, resp.RecordsFiltered)
	assert.Equal(t, []int{1, 6, 11, 16, 21}, dataIDs(t, resp))

	// each term hits a different column
	resp = process(t, invoiceColumns("search[value]", "INV-001 ADA"), Options{})
	assert.Equal(t, []int{1}, dataIDs(t, resp))

	// one term without a match empties the result
	resp = process(t, invoiceColumns("search[value]", "ada turing"), Options{})
	assert.Zero(t, resp.RecordsFiltered)
	assert.Equal(t, []map[string]any{}, resp.Data)
}

func TestProcessGlobalSearchSkipsUnknownColumns(t *testing.T) {
	values := invoiceColumns("search[value]", "grace")
	values.Set("columns[4][data]", "notes")

	resp := process(t, values, Options{})
	assert.Equal(t, 5, resp.RecordsFiltered)
}

func TestProcessGlobalSearchWithoutColumns(t *testing.T) {
	resp := process(t, query("search[value]", "grace"), Options{})
	assert.Equal(t, 25, resp.RecordsFiltered)
}

func TestProcessDottedColumnUsesNestedLookup(t *testing.T) {
	resp := process(t, query(
		"columns[0][data]", "customer.name",
		"columns[0][search][value]", "hopper",
		"length", "1",
	), Options{})

	assert.Equal(t, 5, resp.RecordsFiltered)
	rows := resp.Data.([]map[string]any)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]any{"name": "Grace Hopper", "email": "grace@example.com"}, rows[0]["customer"])
}

func TestProcessNumericColumnIsDropped(t *testing.T) {
	resp := process(t, query(
		"columns[0][data]", "0",
		"columns[1][data]", "number",
		"search[value]", "INV-007",
	), Options{})

	assert.Equal(t, []int{7}, dataIDs(t, resp))
	assert.Len(t, ParseRequest(query("columns[0][data]", "0", "columns[1][data]", "number"), Options{}).Columns, 1)
}

func TestProcessRemappedColumnORsFields(t *testing.T) {
	remap, err := ParseRemapping([]map[string]any{
		{"customer": []any{"customer.name", "customer.email"}},
	})
	require.NoError(t, err)
	opts := Options{Remapping: remap}

	// "grace@" only appears in the email field
	resp := process(t, query(
		"columns[0][data]", "customer",
		"columns[0][search][value]", "grace@",
	), opts)
	assert.Equal(t, []int{2, 7, 12, 17, 22}, dataIDs(t, resp))

	// and "hopper" only in the name field
	resp = process(t, query(
		"columns[0][data]", "customer",
		"search[value]", "hopper grace@",
	), opts)
	assert.Equal(t, 5, resp.RecordsFiltered)

	// terms are still ANDed across the remapped fields
	resp = process(t, query(
		"columns[0][data]", "customer",
		"search[value]", "hopper ada@",
	), opts)
	assert.Zero(t, resp.RecordsFiltered)
}

func TestProcessOrder(t *testing.T) {
	asc := process(t, invoiceColumns("order[0][column]", "0", "order[0][dir]", "asc", "length", "-1"), Options{})
	desc := process(t, invoiceColumns("order[0][column]", "0", "order[0][dir]", "desc", "length", "-1"), Options{})

	ascIDs, descIDs := dataIDs(t, asc), dataIDs(t, desc)
	require.Len(t, descIDs, len(ascIDs))
	for i := range ascIDs {
		assert.Equal(t, ascIDs[i], descIDs[len(descIDs)-1-i])
	}
	assert.Equal(t, 25, descIDs[0])
}

func TestProcessOrderByRemappedColumnUsesFirstField(t *testing.T) {
	remap, err := ParseRemapping([]map[string]any{
		{"customer": []any{"customer.email", "customer.name"}},
	})
	require.NoError(t, err)

	resp := process(t, query(
		"columns[0][data]", "customer",
		"order[0][column]", "0",
		"order[0][dir]", "desc",
		"length", "1",
	), Options{Remapping: remap})

	rows := resp.Data.([]map[string]any)
	require.Len(t, rows, 1)
	assert.Equal(t, "gunther@example.com", rows[0]["customer"].(map[string]any)["email"])
}

func TestProcessOrderByAdditionalColumn(t *testing.T) {
	resp := process(t, query(
		"columns[0][data]", "number",
		"order[0][column]", "1",
		"order[0][dir]", "asc",
		"length", "5",
	), Options{AdditionalColumns: []string{"customer.email"}})

	assert.Equal(t, []int{1, 6, 11, 16, 21}, dataIDs(t, resp))
}

func TestProcessColumnSearchCoercion(t *testing.T) {
	tests := []struct {
		name   string
		search string
		opts   Options
		want   int
	}{
		{"yes is true", "yes", Options{Coercion: DefaultCoercion()}, 13},
		{"unpaid is true", "unpaid", Options{Coercion: DefaultCoercion()}, 13},
		{"no is false", "No", Options{Coercion: DefaultCoercion()}, 12},
		{"disabled coercion searches text", "yes", Options{}, 0},
		{"text form without coercion", "true", Options{}, 13},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := process(t, invoiceColumns("columns[3][search][value]", tt.search), tt.opts)
			assert.Equal(t, tt.want, resp.RecordsFiltered)
		})
	}
}

func TestProcessCoercionLimitedToColumns(t *testing.T) {
	values := invoiceColumns("columns[2][search][value]", "Gunther")

	// "Gunther" contains "un" and turns into false everywhere
	resp := process(t, values, Options{Coercion: DefaultCoercion()})
	assert.Zero(t, resp.RecordsFiltered)

	c := DefaultCoercion()
	c.Columns = []string{"paid"}
	resp = process(t, values, Options{Coercion: c})
	assert.Equal(t, 5, resp.RecordsFiltered)
}

// recordingRunner keeps the statements a sqlset.Set sends.
type recordingRunner struct {
	queries []string
	args    [][]any
}

func (r *recordingRunner) QueryRows(_ context.Context, query string, args ...any) ([]queryset.Row, error) {
	r.queries = append(r.queries, query)
	r.args = append(r.args, args)
	return nil, nil
}

func (r *recordingRunner) QueryCount(_ context.Context, query string, args ...any) (int, error) {
	r.queries = append(r.queries, query)
	r.args = append(r.args, args)
	return 0, nil
}

func TestProcessCoercedSearchOnPostgresTextColumn(t *testing.T) {
	runner := &recordingRunner{}
	set, err := sqlset.New(sqlset.Postgres{}, runner, sqlset.Table{
		From: "invoices i LEFT JOIN customers c ON c.id = i.customer_id",
		Fields: map[string]string{
			"id":             "i.id",
			"customer__name": "c.name",
		},
		DefaultOrder: "id",
	})
	require.NoError(t, err)

	values := query("columns[0][data]", "customer.name", "columns[0][search][value]", "no")
	resp, err := Process(context.Background(), values, set, NestedSerializer{}, Options{Coercion: DefaultCoercion()})
	require.NoError(t, err)
	assert.Zero(t, resp.RecordsFiltered)

	require.NotEmpty(t, runner.queries)
	filtered := runner.queries[len(runner.queries)-1]
	assert.Contains(t, filtered, "WHERE (c.name)::text = $1")
	assert.Equal(t, "false", runner.args[len(runner.args)-1][0])
}

func TestProcessDegradesOnMalformedParameters(t *testing.T) {
	want := process(t, url.Values{}, Options{})

	for name, values := range map[string]url.Values{
		"non numeric start":    query("start", "abc"),
		"non numeric order":    invoiceColumns("order[0][column]", "id", "order[0][dir]", "asc"),
		"order without dir":    invoiceColumns("order[0][column]", "1"),
		"order out of range":   invoiceColumns("order[0][column]", "42", "order[0][dir]", "desc"),
		"blank search":         invoiceColumns("search[value]", "   "),
		"unknown column":       query("columns[0][data]", "notes", "columns[0][search][value]", "x", "order[0][column]", "0", "order[0][dir]", "desc"),
		"non numeric draw":     query("draw", "first"),
		"non numeric length":   query("length", "many"),
		"negative start value": query("start", "-10"),
	} {
		t.Run(name, func(t *testing.T) {
			got := process(t, values, Options{})
			assert.Equal(t, want.RecordsFiltered, got.RecordsFiltered)
			assert.Equal(t, dataIDs(t, want), dataIDs(t, got))
		})
	}
}

func TestProcessNilDataRendersEmptyArray(t *testing.T) {
	s := SerializerFunc(func(context.Context, []queryset.Row) (any, error) { return nil, nil })

	resp, err := Process(context.Background(), url.Values{}, invoiceSet(), s, Options{})
	require.NoError(t, err)

	b, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"draw":0,"recordsTotal":25,"recordsFiltered":25,"data":[]}`, string(b))
}

func TestProcessReturnsDataLayerErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Process(ctx, url.Values{}, invoiceSet(), NestedSerializer{}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessReturnsSerializerErrors(t *testing.T) {
	boom := errors.New("boom")
	s := SerializerFunc(func(context.Context, []queryset.Row) (any, error) { return nil, boom })

	_, err := Process(context.Background(), url.Values{}, invoiceSet(), s, Options{})
	assert.ErrorIs(t, err, boom)
}

func TestNestedSerializerFields(t *testing.T) {
	rows := []queryset.Row{{"id": 1, "customer__name": "Ada", "customer__email": "ada@example.com"}}

	out, err := NestedSerializer{Fields: []string{"id", "customer__name", "missing"}}.Serialize(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"id": 1, "customer": map[string]any{"name": "Ada"}}}, out)
}
