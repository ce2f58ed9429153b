// Package queryset defines the lazily evaluated, chainable collection the
// DataTables adapter drives.
//
// A Queryset never runs anything until Count or Slice is called. Filter and
// OrderBy return a new Queryset and leave the receiver untouched, so a base
// queryset can be shared between requests.
//
// Field paths use double-underscore nesting ("customer__name"), and a
// lookup may carry a trailing operator suffix ("customer__name__icontains").
package queryset

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Row is a single record keyed by field path.
type Row map[string]any

// Op is a lookup operator.
type Op string

const (
	// OpIContains matches when the field's text form contains the value,
	// ignoring case.
	OpIContains Op = "icontains"

	// OpExact matches when the field equals the value.
	OpExact Op = "exact"
)

// LookupSep separates path segments and the operator suffix.
const LookupSep = "__"

var (
	// ErrUnknownField is returned when a lookup or ordering references a
	// field path the queryset does not expose.
	ErrUnknownField = errors.New("unknown field")

	// ErrUnsupportedOp is returned for operators a queryset cannot evaluate.
	ErrUnsupportedOp = errors.New("unsupported lookup operator")
)

// Cond is a filter condition tree.
//
// Implementations are Lookup, AnyOf and AllOf.
type Cond interface {
	isCond()
}

// Lookup compares a single field against a value.
type Lookup struct {
	Field string
	Op    Op
	Value any
}

// AnyOf is a disjunction. An empty AnyOf matches nothing.
type AnyOf []Cond

// AllOf is a conjunction. An empty AllOf matches everything.
type AllOf []Cond

func (Lookup) isCond() {}
func (AnyOf) isCond()  {}
func (AllOf) isCond()  {}

// ParseLookup builds a Lookup from a "path__op" key. A key without a known
// operator suffix is an exact match.
func ParseLookup(key string, value any) Lookup {
	if i := strings.LastIndex(key, LookupSep); i > 0 {
		switch op := Op(key[i+len(LookupSep):]); op {
		case OpIContains, OpExact:
			return Lookup{Field: key[:i], Op: op, Value: value}
		}
	}
	return Lookup{Field: key, Op: OpExact, Value: value}
}

// Queryset is a lazily evaluated, chainable collection of rows.
type Queryset interface {
	// Check reports whether every lookup in c can be evaluated, without
	// executing anything.
	Check(c Cond) error

	// Filter narrows the queryset to rows matching c.
	Filter(c Cond) (Queryset, error)

	// OrderBy sorts by a single field; a leading "-" sorts descending.
	OrderBy(field string) (Queryset, error)

	// Count returns the number of rows matching the current filters.
	Count(ctx context.Context) (int, error)

	// Slice returns rows [start, end) in the current order. A negative end
	// means "to the last row".
	Slice(ctx context.Context, start, end int) ([]Row, error)
}

// SplitOrder splits an ordering key into its field and direction.
func SplitOrder(field string) (string, bool) {
	if strings.HasPrefix(field, "-") {
		return field[1:], true
	}
	return field, false
}

// Walk calls fn for every Lookup in c, stopping at the first error.
func Walk(c Cond, fn func(Lookup) error) error {
	switch c := c.(type) {
	case Lookup:
		return fn(c)
	case AnyOf:
		for _, sub := range c {
			if err := Walk(sub, fn); err != nil {
				return err
			}
		}
	case AllOf:
		for _, sub := range c {
			if err := Walk(sub, fn); err != nil {
				return err
			}
		}
	case nil:
		return nil
	default:
		return fmt.Errorf("queryset: unexpected condition %T", c)
	}
	return nil
}
