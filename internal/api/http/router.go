package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-dashboard/internal/api/http/handlers"
	"github.com/spec-kit/ticket-dashboard/internal/auth"
)

// MetricsRole is the viewer role allowed to read the metrics endpoint.
const MetricsRole = "admin"

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health    *handlers.HealthHandler
	Dashboard *handlers.DashboardHandler
	Tickets   *handlers.TicketsHandler
	Search    *handlers.SearchHandler
	Viewer    *auth.ViewerMiddleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Viewer.Handle, cfg.Viewer.RequireRole(MetricsRole), cfg.Health.Metrics)

	api := app.Group("/api/v1", cfg.Viewer.Handle)
	api.Get("/dashboard/options", cfg.Dashboard.Options)
	api.Get("/dashboard", cfg.Dashboard.Dashboard)
	api.Get("/tickets", cfg.Tickets.ListTickets)
	api.Get("/tickets/:id", cfg.Tickets.GetTicket)
	api.Get("/search", cfg.Search.Search)
}
