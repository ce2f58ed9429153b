package sqlset

import (
	"fmt"
	"strconv"
)

// Dialect renders the few SQL fragments that differ between engines.
type Dialect interface {
	Name() string

	// Placeholder returns the bind marker for the n-th (1-based) argument.
	Placeholder(n int) string

	// IContains renders a case-insensitive substring match of expr against
	// an already escaped LIKE pattern bound at placeholder.
	IContains(expr, placeholder string) string

	// BoolEquals compares the text form of expr with a value produced by
	// BoolText, so that a boolean lookup on a text column is a miss rather
	// than a type error.
	BoolEquals(expr, placeholder string) string
	BoolText(b bool) string

	// Paginate renders the LIMIT/OFFSET tail. limit is ignored when
	// unlimited is set.
	Paginate(limit, offset string, unlimited bool) string
}

// Postgres renders PostgreSQL syntax ($n placeholders, ILIKE).
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

func (Postgres) IContains(expr, placeholder string) string {
	return fmt.Sprintf(`(%s)::text ILIKE %s ESCAPE '\'`, expr, placeholder)
}

func (Postgres) BoolEquals(expr, placeholder string) string {
	return fmt.Sprintf("(%s)::text = %s", expr, placeholder)
}

func (Postgres) BoolText(b bool) string { return strconv.FormatBool(b) }

func (Postgres) Paginate(limit, offset string, unlimited bool) string {
	if unlimited {
		return "OFFSET " + offset
	}
	return "LIMIT " + limit + " OFFSET " + offset
}

// SQLite renders SQLite syntax (? placeholders, LIKE which already folds
// ASCII case).
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) Placeholder(int) string { return "?" }

func (SQLite) IContains(expr, placeholder string) string {
	return fmt.Sprintf(`CAST(%s AS TEXT) LIKE %s ESCAPE '\'`, expr, placeholder)
}

func (SQLite) BoolEquals(expr, placeholder string) string {
	return fmt.Sprintf("CAST(%s AS TEXT) = %s", expr, placeholder)
}

// SQLite stores booleans as 0 and 1.
func (SQLite) BoolText(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// SQLite requires a LIMIT before OFFSET; -1 lifts it.
func (SQLite) Paginate(limit, offset string, unlimited bool) string {
	if unlimited {
		return "LIMIT -1 OFFSET " + offset
	}
	return "LIMIT " + limit + " OFFSET " + offset
}
