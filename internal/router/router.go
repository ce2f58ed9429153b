// Package router initializes the HTTP router (using Echo).
//
// It registers the middlewares and defines the API route groups,
// mapping specific paths to their corresponding handlers
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/go-datatables/internal/handler"
	"github.com/deppfellow/go-datatables/internal/middleware"
	"github.com/deppfellow/go-datatables/internal/server"
)

// NewRouter builds the echo instance with the global middleware chain,
// the system routes and the v1 API.
func NewRouter(s *server.Server, h *handler.Handlers) *echo.Echo {
	middlewares := middleware.NewMiddlewares(s)

	router := echo.New()
	router.HideBanner = true
	router.HidePort = true
	router.JSONSerializer = jsonSerializer{}
	router.HTTPErrorHandler = middlewares.Global.GlobalErrorHandler

	// Order matters: the request id feeds the tracer and the request
	// logger, and the context enhancer reads the New Relic transaction.
	router.Use(
		middlewares.Global.Recover(),
		middleware.RequestID(),
		middlewares.Tracing.NewRelicMiddleware(),
		middlewares.Tracing.EnhanceTracing(),
		middlewares.ContextEnhancer.EnhanceContext(),
		middlewares.Global.CORS(),
		middlewares.Global.Secure(),
		middlewares.Global.RequestLogger(),
		middlewares.Global.Metrics(),
	)

	registerSystemRoutes(router, s, h)

	v1 := router.Group("/api/v1")
	registerGridRoutes(v1, h)

	return router
}

func registerGridRoutes(g *echo.Group, h *handler.Handlers) {
	grids := h.Grids

	g.GET("/grids", handler.Handle(grids.Handler, grids.Index, http.StatusOK, handler.NewListGridsRequest))
	g.GET("/grids/:grid", handler.Handle(grids.Handler, grids.List, http.StatusOK, handler.NewGridRequest))
	g.GET("/grids/:grid/columns", handler.Handle(grids.Handler, grids.Describe, http.StatusOK, handler.NewGridRequest))
	g.GET("/grids/:grid/export", handler.HandleFile(grids.Handler, grids.Export, http.StatusOK, handler.NewGridRequest))
}
