package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/deppfellow/go-datatables/internal/datatables"
	"github.com/deppfellow/go-datatables/internal/server"
	"github.com/deppfellow/go-datatables/internal/service"
	"github.com/deppfellow/go-datatables/internal/validation"
)

// GridRequest addresses one grid by its path parameter. The DataTables
// parameters themselves are read from the raw query string, since their
// bracketed keys do not bind to struct fields.
type GridRequest struct {
	Grid string `param:"grid" validate:"required,max=64"`
}

func NewGridRequest() *GridRequest {
	return &GridRequest{}
}

func (r *GridRequest) Validate() error {
	return validation.Struct(r)
}

// ListGridsRequest carries no parameters.
type ListGridsRequest struct{}

func NewListGridsRequest() *ListGridsRequest {
	return &ListGridsRequest{}
}

func (r *ListGridsRequest) Validate() error {
	return nil
}

// GridIndex lists the grids a client may query.
type GridIndex struct {
	Grids []string `json:"grids"`
}

type GridHandler struct {
	Handler
	grids *service.GridService
}

func NewGridHandler(s *server.Server, grids *service.GridService) *GridHandler {
	return &GridHandler{
		Handler: NewHandler(s),
		grids:   grids,
	}
}

// Index serves GET /api/v1/grids.
func (h *GridHandler) Index(c echo.Context, _ *ListGridsRequest) (*GridIndex, error) {
	return &GridIndex{Grids: h.grids.Names()}, nil
}

// List serves GET /api/v1/grids/:grid, the DataTables server-side
// processing endpoint.
func (h *GridHandler) List(c echo.Context, req *GridRequest) (*datatables.Response, error) {
	return h.grids.Query(c.Request().Context(), req.Grid, c.QueryParams())
}

// Describe serves GET /api/v1/grids/:grid/columns.
func (h *GridHandler) Describe(c echo.Context, req *GridRequest) (*service.GridDescription, error) {
	return h.grids.Describe(c.Request().Context(), req.Grid)
}

// Export serves GET /api/v1/grids/:grid/export: every row matching the
// request's searches and ordering, as CSV.
func (h *GridHandler) Export(c echo.Context, req *GridRequest) (*File, error) {
	data, err := h.grids.Export(c.Request().Context(), req.Grid, c.QueryParams())
	if err != nil {
		return nil, err
	}
	return &File{
		Name:        req.Grid + ".csv",
		ContentType: "text/csv; charset=utf-8",
		Data:        data,
	}, nil
}
