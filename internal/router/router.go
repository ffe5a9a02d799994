package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iliyamo/cinema-hall/internal/handler"
	"github.com/iliyamo/cinema-hall/internal/metrics"
	"github.com/iliyamo/cinema-hall/internal/middleware"
)

// Setup installs the error handler, validator and global middleware on e.
func Setup(e *echo.Echo, m *metrics.Metrics) {
	e.HideBanner = true
	e.HTTPErrorHandler = handler.HTTPErrorHandler
	e.Validator = handler.NewValidator()
	e.Use(
		middleware.RequestID(),
		middleware.RequestLogger(),
		middleware.Prometheus(m),
	)
}

// RegisterRoutes registers the unauthenticated operational endpoints:
// a health probe for load balancers and the Prometheus scrape target.
func RegisterRoutes(e *echo.Echo, h *handler.SeatHandler) {
	e.GET("/healthz", h.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterSeats registers the seat endpoints under /v1.  limiter guards
// every seat route; pass a pass-through middleware to disable it.
func RegisterSeats(e *echo.Echo, h *handler.SeatHandler, limiter echo.MiddlewareFunc) {
	g := e.Group("/v1", limiter)
	g.GET("/seats", h.ListSeats)
	g.GET("/seats/:number", h.GetSeat)
	// reserve and cancel take the holder from the JSON body or X-Holder
	g.POST("/seats/:number/reservation", h.Reserve)
	g.DELETE("/seats/:number/reservation", h.Cancel)
}
