package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/go-datatables/internal/errs"
)

func serve(e *echo.Echo, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHandleBindsAFreshRequestEachTime(t *testing.T) {
	var seen []*GridRequest
	e := echo.New()
	e.GET("/grids/:grid", Handle(Handler{}, func(c echo.Context, req *GridRequest) (map[string]string, error) {
		seen = append(seen, req)
		return map[string]string{"grid": req.Grid}, nil
	}, http.StatusOK, NewGridRequest))

	rec := serve(e, "/grids/invoices")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"grid":"invoices"}`, rec.Body.String())

	rec = serve(e, "/grids/customers")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"grid":"customers"}`, rec.Body.String())

	require.Len(t, seen, 2)
	assert.NotSame(t, seen[0], seen[1])
	assert.Equal(t, "invoices", seen[0].Grid)
}

func TestHandleReturnsErrors(t *testing.T) {
	boom := errors.New("boom")
	called := false

	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/grids/x", nil), httptest.NewRecorder())
	c.SetPath("/grids/:grid")
	c.SetParamNames("grid")
	c.SetParamValues("x")
	err := Handle(Handler{}, func(c echo.Context, req *GridRequest) (any, error) {
		called = true
		return nil, boom
	}, http.StatusOK, NewGridRequest)(c)

	assert.ErrorIs(t, err, boom)
	assert.True(t, called)
}

func TestHandleValidationFailureSkipsHandler(t *testing.T) {
	called := false
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/grids/", nil), httptest.NewRecorder())
	c.SetParamNames("grid")
	c.SetParamValues("")

	err := Handle(Handler{}, func(c echo.Context, req *GridRequest) (any, error) {
		called = true
		return nil, nil
	}, http.StatusOK, NewGridRequest)(c)

	var httpErr *errs.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.False(t, called)
}

func TestHandleFile(t *testing.T) {
	e := echo.New()
	e.GET("/grids/:grid/export", HandleFile(Handler{}, func(c echo.Context, req *GridRequest) (*File, error) {
		return &File{Name: req.Grid + ".csv", ContentType: "text/csv", Data: []byte("id\n1\n")}, nil
	}, http.StatusOK, NewGridRequest))

	rec := serve(e, "/grids/invoices/export")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "attachment; filename=invoices.csv", rec.Header().Get(echo.HeaderContentDisposition))
	assert.Equal(t, "text/csv", rec.Header().Get(echo.HeaderContentType))
	assert.Equal(t, "id\n1\n", rec.Body.String())
}
