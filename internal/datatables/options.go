package datatables

import (
	"fmt"
	"strings"
)

// DefaultLength is the page size used when the request carries no usable
// "length" parameter.
const DefaultLength = 10

// Options tunes how a request is applied to a queryset.
type Options struct {
	// Remapping translates logical column names into field paths.
	Remapping Remapping

	// AdditionalColumns are appended to the columns detected in the request.
	// They take part in search and ordering but are not rendered.
	AdditionalColumns []string

	// Coercion turns per-column search text into booleans. Nil disables it.
	Coercion *Coercion

	// DefaultLength overrides DefaultLength when positive.
	DefaultLength int

	// MaxLength caps the page size when positive. It also applies to
	// length=-1 ("show all").
	MaxLength int
}

func (o Options) defaultLength() int {
	if o.DefaultLength > 0 {
		return o.DefaultLength
	}
	return DefaultLength
}

// Remap binds one logical column to one or more field paths.
type Remap struct {
	Column string
	Fields []string
}

// Remapping is an ordered list of column remaps. The first entry naming a
// column wins.
type Remapping []Remap

// Lookup returns the field paths a logical column maps to.
func (r Remapping) Lookup(column string) ([]string, bool) {
	for _, m := range r {
		if m.Column == column && len(m.Fields) > 0 {
			return m.Fields, true
		}
	}
	return nil, false
}

// ParseRemapping decodes the configuration shape: a list of single-key
// objects whose value is either a field path or a list of field paths.
//
//	- customer: customer__name
//	- contact: [customer__email, customer__phone]
func ParseRemapping(raw []map[string]any) (Remapping, error) {
	out := make(Remapping, 0, len(raw))
	for i, entry := range raw {
		if len(entry) != 1 {
			return nil, fmt.Errorf("column remapping #%d: want exactly one column, got %d", i, len(entry))
		}
		for column, v := range entry {
			fields, err := remapFields(v)
			if err != nil {
				return nil, fmt.Errorf("column remapping %q: %w", column, err)
			}
			out = append(out, Remap{Column: column, Fields: fields})
		}
	}
	return out, nil
}

func remapFields(v any) ([]string, error) {
	switch v := v.(type) {
	case string:
		if v == "" {
			return nil, fmt.Errorf("empty field path")
		}
		return []string{lookupPath(v)}, nil
	case []string:
		return remapFields(toAnySlice(v))
	case []any:
		if len(v) == 0 {
			return nil, fmt.Errorf("empty field list")
		}
		fields := make([]string, 0, len(v))
		for _, f := range v {
			s, ok := f.(string)
			if !ok || s == "" {
				return nil, fmt.Errorf("field path must be a non-empty string, got %v", f)
			}
			fields = append(fields, lookupPath(s))
		}
		return fields, nil
	}
	return nil, fmt.Errorf("unsupported value %T", v)
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

// MatchKind selects how a coercion rule compares the search text.
type MatchKind string

const (
	MatchExact    MatchKind = "exact"
	MatchContains MatchKind = "contains"
)

// CoercionRule maps search text to a boolean value.
type CoercionRule struct {
	Match    MatchKind `koanf:"match" validate:"oneof=exact contains"`
	Text     string    `koanf:"text" validate:"required"`
	Value    bool      `koanf:"value"`
	FoldCase bool      `koanf:"fold_case"`
}

func (r CoercionRule) matches(s string) bool {
	text := r.Text
	if r.FoldCase {
		s, text = strings.ToLower(s), strings.ToLower(text)
	}
	if r.Match == MatchContains {
		return strings.Contains(s, text)
	}
	return s == text
}

// Coercion is an ordered rule list; the first matching rule decides.
type Coercion struct {
	Rules []CoercionRule

	// Columns limits coercion to these column names. Empty means every
	// column.
	Columns []string
}

// DefaultCoercion returns the stock policy: "yes" (any case) or text
// containing "paid" is true, "no" (any case) or text containing "un" is
// false. Rules are tried in that order, so "unpaid" is true.
func DefaultCoercion() *Coercion {
	return &Coercion{Rules: []CoercionRule{
		{Match: MatchExact, Text: "yes", Value: true, FoldCase: true},
		{Match: MatchContains, Text: "paid", Value: true},
		{Match: MatchExact, Text: "no", Value: false, FoldCase: true},
		{Match: MatchContains, Text: "un", Value: false},
	}}
}

// Apply returns the boolean a column's search value coerces to.
func (c *Coercion) Apply(column, s string) (bool, bool) {
	if c == nil || !c.covers(column) {
		return false, false
	}
	for _, r := range c.Rules {
		if r.matches(s) {
			return r.Value, true
		}
	}
	return false, false
}

func (c *Coercion) covers(column string) bool {
	if len(c.Columns) == 0 {
		return true
	}
	for _, name := range c.Columns {
		if lookupPath(name) == column {
			return true
		}
	}
	return false
}
