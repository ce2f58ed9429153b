package router

import (
	"github.com/labstack/echo/v4"

	"github.com/deppfellow/go-datatables/internal/handler"
	"github.com/deppfellow/go-datatables/internal/metrics"
	"github.com/deppfellow/go-datatables/internal/server"
)

// registerSystemRoutes registers the endpoints that are not part of the
// grid API: health, Prometheus metrics and the documentation UI.
func registerSystemRoutes(r *echo.Echo, s *server.Server, h *handler.Handlers) {
	r.GET("/status", h.Health.CheckHealth)

	if m := s.Config.Observability.Metrics; m.Enabled {
		r.GET(m.Path, echo.WrapHandler(metrics.Handler()))
	}

	// openapi.html and openapi.json
	r.StaticFS("/static", handler.StaticFS())

	r.GET("/docs", h.OpenAPI.ServeOpenAPIUI)
}
