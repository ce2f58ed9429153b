package sqlerr

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"modernc.org/sqlite"

	"github.com/deppfellow/go-datatables/internal/errs"
)

// SQLite result codes, primary part only.
const (
	sqliteBusy      = 5
	sqliteLocked    = 6
	sqliteInterrupt = 9
)

var sqliteMissing = regexp.MustCompile(`no such (column|table): ([\w.]+)`)

// ErrCode reports the Code of the first *Error in err's chain.
func ErrCode(err error) Code {
	var sqlErr *Error
	if errors.As(err, &sqlErr) {
		return sqlErr.Code
	}
	return Other
}

// ConvertPgError normalises a PostgreSQL server error.
func ConvertPgError(src *pgconn.PgError) *Error {
	return &Error{
		Code:         MapCode(src.Code),
		Severity:     MapSeverity(src.Severity),
		DatabaseCode: src.Code,
		Message:      src.Message,
		TableName:    src.TableName,
		ColumnName:   src.ColumnName,
		driverErr:    src,
	}
}

// ConvertSQLiteError normalises a SQLite error. SQLite reports missing
// columns and tables only in the message text.
func ConvertSQLiteError(src *sqlite.Error) *Error {
	out := &Error{
		Code:         Other,
		Severity:     SeverityError,
		DatabaseCode: fmt.Sprint(src.Code()),
		Message:      src.Error(),
		driverErr:    src,
	}
	switch src.Code() & 0xff {
	case sqliteBusy, sqliteLocked:
		out.Code = Busy
	case sqliteInterrupt:
		out.Code = QueryCanceled
	}
	if m := sqliteMissing.FindStringSubmatch(src.Error()); m != nil {
		if m[1] == "column" {
			out.Code, out.ColumnName = UndefinedColumn, m[2]
		} else {
			out.Code, out.TableName = UndefinedTable, m[2]
		}
	}
	return out
}

// Convert returns the normalised form of a driver error, or nil when err
// does not come from a known driver.
func Convert(err error) *Error {
	var sqlErr *Error
	if errors.As(err, &sqlErr) {
		return sqlErr
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return ConvertPgError(pgErr)
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return ConvertSQLiteError(liteErr)
	}
	return nil
}

// generateErrorCode builds codes such as GRID_MISCONFIGURED or
// INVOICE_UNAVAILABLE.
func generateErrorCode(entity string, code Code) string {
	switch code {
	case UndefinedColumn, UndefinedTable, UndefinedFunction:
		return "GRID_MISCONFIGURED"
	case InvalidTextRepresentation:
		return "INVALID_FILTER_VALUE"
	case QueryCanceled:
		return "QUERY_TIMEOUT"
	}
	if entity == "" {
		entity = "database"
	}
	return errs.MakeUpperCaseWithUnderscores(entity) + "_UNAVAILABLE"
}

// HandleError converts an error from a grid query into an *errs.HTTPError.
//
//   - *errs.HTTPError passes through unchanged
//   - a bad filter value is a 400
//   - a cancelled or timed out query is a 504
//   - an overloaded or unreachable database is a 503
//   - anything else, including grid definitions that do not match the
//     schema, is a 500
func HandleError(err error) error {
	var httpErr *errs.HTTPError
	if errors.As(err, &httpErr) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		code := generateErrorCode("", QueryCanceled)
		return errs.NewGatewayTimeoutError("The query took too long to complete", &code)
	}

	sqlErr := Convert(err)
	if sqlErr == nil {
		var connErr *pgconn.ConnectError
		if errors.As(err, &connErr) {
			code := generateErrorCode("", ConnectionFailure)
			return errs.NewServiceUnavailableError("The database is unavailable", &code)
		}
		return errs.NewInternalServerError()
	}

	code := generateErrorCode(entityName(sqlErr.TableName), sqlErr.Code)
	switch sqlErr.Code {
	case InvalidTextRepresentation:
		return errs.NewBadRequestError("A search value does not match the column type", true, &code, nil)
	case QueryCanceled:
		return errs.NewGatewayTimeoutError("The query took too long to complete", &code)
	case TooManyConnections, ConnectionFailure, Busy:
		return errs.NewServiceUnavailableError(
			fmt.Sprintf("%s data is temporarily unavailable", humanizeText(entityName(sqlErr.TableName))), &code)
	}
	return errs.NewInternalServerError()
}

// entityName singularises a table name: "invoices" becomes "invoice".
func entityName(table string) string {
	if i := strings.LastIndex(table, "."); i >= 0 {
		table = table[i+1:]
	}
	if strings.HasSuffix(table, "s") && len(table) > 1 {
		table = table[:len(table)-1]
	}
	return table
}

// humanizeText turns "line_item" into "Line Item"; empty input becomes
// "Grid".
func humanizeText(text string) string {
	if text == "" {
		return "Grid"
	}
	return cases.Title(language.English).String(strings.ReplaceAll(text, "_", " "))
}
