// Package sqlerr turns database driver errors into API errors.
//
// Grid queries only read, so the interesting failures are a grid
// definition that names a column or table the database does not have, a
// value the database cannot compare, and a database that is slow or gone.
package sqlerr

// Code is the driver-independent category of a database error.
type Code string

const (
	Other                     Code = "other"
	UndefinedColumn           Code = "undefined_column"
	UndefinedTable            Code = "undefined_table"
	UndefinedFunction         Code = "undefined_function"
	InvalidTextRepresentation Code = "invalid_text_representation"
	QueryCanceled             Code = "query_canceled"
	TooManyConnections        Code = "too_many_connections"
	ConnectionFailure         Code = "connection_failure"
	Busy                      Code = "busy"
)

// MapCode maps a PostgreSQL SQLSTATE onto a Code.
func MapCode(sqlstate string) Code {
	switch sqlstate {
	case "42703":
		return UndefinedColumn
	case "42P01":
		return UndefinedTable
	case "42883":
		return UndefinedFunction
	case "22P02":
		return InvalidTextRepresentation
	case "57014":
		return QueryCanceled
	case "53300":
		return TooManyConnections
	}
	// class 08: connection exception
	if len(sqlstate) == 5 && sqlstate[:2] == "08" {
		return ConnectionFailure
	}
	return Other
}

// Severity is the PostgreSQL message severity.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityFatal   Severity = "FATAL"
	SeverityPanic   Severity = "PANIC"
	SeverityWarning Severity = "WARNING"
	SeverityNotice  Severity = "NOTICE"
	SeverityDebug   Severity = "DEBUG"
	SeverityInfo    Severity = "INFO"
	SeverityLog     Severity = "LOG"
)

// MapSeverity maps the severity text of a server message. Unknown values
// are treated as errors.
func MapSeverity(severity string) Severity {
	switch s := Severity(severity); s {
	case SeverityFatal, SeverityPanic, SeverityWarning, SeverityNotice,
		SeverityDebug, SeverityInfo, SeverityLog:
		return s
	}
	return SeverityError
}

// Error is a normalised database error.
type Error struct {
	Code         Code
	Severity     Severity
	DatabaseCode string
	Message      string
	TableName    string
	ColumnName   string

	driverErr error
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

func (e *Error) Unwrap() error {
	return e.driverErr
}
