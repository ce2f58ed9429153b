package datatables

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/deppfellow/go-datatables/internal/queryset"
)

// Column is one active column of a request.
type Column struct {
	// Index is the position the client uses for this column in
	// columns[i][...] and order[0][column]. Additional columns are numbered
	// after the client's columns.
	Index int

	// Data is the raw columns[i][data] value, or the additional column name.
	Data string

	// Name is the lookup key: Data with "." rewritten to "__".
	Name string

	// Search is the trimmed columns[i][search][value].
	Search string

	// Additional marks a column from Options.AdditionalColumns.
	Additional bool
}

// Order is a single-column sort request.
type Order struct {
	Column int
	Desc   bool
}

// Request is the decoded DataTables query string.
type Request struct {
	Draw    int
	Start   int
	Length  int
	Columns []Column
	Search  []string
	Order   *Order
}

// ParseRequest decodes DataTables parameters. It never fails: anything
// missing or malformed falls back to its default.
//
// Column detection stops at the first columns[i][data] that is absent or
// empty. Numeric column names are skipped; they come from columns rendered
// from array rows and have no field to query.
func ParseRequest(values url.Values, opts Options) Request {
	req := Request{
		Draw:   intParam(values, "draw", 0),
		Start:  intParam(values, "start", 0),
		Length: intParam(values, "length", opts.defaultLength()),
	}
	if req.Start < 0 {
		req.Start = 0
	}
	// -1 is the protocol's "show all"; any other negative is garbage.
	if req.Length < -1 {
		req.Length = opts.defaultLength()
	}
	if opts.MaxLength > 0 && (req.Length < 0 || req.Length > opts.MaxLength) {
		req.Length = opts.MaxLength
	}

	i := 0
	for ; ; i++ {
		data := values.Get("columns[" + strconv.Itoa(i) + "][data]")
		if data == "" {
			break
		}
		if isNumeric(data) {
			continue
		}
		req.Columns = append(req.Columns, Column{
			Index:  i,
			Data:   data,
			Name:   lookupPath(data),
			Search: strings.TrimSpace(values.Get("columns[" + strconv.Itoa(i) + "][search][value]")),
		})
	}
	for k, name := range opts.AdditionalColumns {
		idx := i + k
		req.Columns = append(req.Columns, Column{
			Index:      idx,
			Data:       name,
			Name:       lookupPath(name),
			Search:     strings.TrimSpace(values.Get("columns[" + strconv.Itoa(idx) + "][search][value]")),
			Additional: true,
		})
	}

	req.Search = strings.Fields(values.Get("search[value]"))

	col, dir := values.Get("order[0][column]"), values.Get("order[0][dir]")
	if col != "" && dir != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(col)); err == nil && n >= 0 {
			req.Order = &Order{Column: n, Desc: dir == "desc"}
		}
	}

	return req
}

// ColumnAt returns the active column with the given client index.
func (r Request) ColumnAt(index int) (Column, bool) {
	for _, c := range r.Columns {
		if c.Index == index {
			return c, true
		}
	}
	return Column{}, false
}

// End returns the exclusive end of the requested page, or -1 for "all".
func (r Request) End() int {
	if r.Length < 0 {
		return -1
	}
	return r.Start + r.Length
}

func intParam(values url.Values, key string, def int) int {
	v := strings.TrimSpace(values.Get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func isNumeric(s string) bool {
	_, err := strconv.Atoi(strings.TrimSpace(s))
	return err == nil
}

func lookupPath(name string) string {
	return strings.ReplaceAll(name, ".", queryset.LookupSep)
}
