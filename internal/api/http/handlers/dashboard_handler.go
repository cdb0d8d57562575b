package handlers

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-dashboard/internal/api/dto"
	"github.com/spec-kit/ticket-dashboard/internal/domain"
	"github.com/spec-kit/ticket-dashboard/internal/service"
)

// DashboardHandler serves the aggregated dashboard.
type DashboardHandler struct {
	service  *service.DashboardService
	validate *validator.Validate
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(dashboard *service.DashboardService, validate *validator.Validate) *DashboardHandler {
	return &DashboardHandler{service: dashboard, validate: validate}
}

// Options GET /api/v1/dashboard/options.
func (h *DashboardHandler) Options(c *fiber.Ctx) error {
	opts, err := h.service.Options(c.UserContext())
	if err != nil {
		return err
	}

	resp := dto.OptionsResponse{
		Categories: append([]string{domain.FilterAll}, opts.Categories...),
		Priorities: []string{domain.FilterAll},
	}
	for _, p := range opts.Priorities {
		resp.Priorities = append(resp.Priorities, string(p))
	}
	if opts.MinDate != nil {
		resp.MinDate = dayString(domain.StartOfDay(*opts.MinDate, h.service.Location()))
	}
	if opts.MaxDate != nil {
		resp.MaxDate = dayString(domain.StartOfDay(*opts.MaxDate, h.service.Location()))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Dashboard GET /api/v1/dashboard.
func (h *DashboardHandler) Dashboard(c *fiber.Ctx) error {
	_, filter, err := parseFilterQuery(c, h.validate, h.service.Location())
	if err != nil {
		return err
	}
	view, err := h.service.Dashboard(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dashboardResponse(view)})
}

func dashboardResponse(view *domain.DashboardView) dto.DashboardResponse {
	resp := dto.DashboardResponse{
		Filter: filterEcho(view.Filter),
		Metrics: dto.MetricsResponse{
			TotalTickets: view.Metrics.TotalTickets,
			Categories:   view.Metrics.Categories,
			Days:         view.Metrics.Days,
			AvgPerDay:    view.Metrics.AvgPerDay,
		},
		Trend:      make([]dto.TrendPoint, 0, len(view.Aggregates.Trend)),
		Categories: make([]dto.CategoryPoint, 0, len(view.Aggregates.Categories)),
		Priorities: make([]dto.PriorityPoint, 0, len(view.Aggregates.Priorities)),
		Tickets:    ticketResponses(view.Tickets),
		Truncated:  view.Truncated,
	}
	for _, d := range view.Aggregates.Trend {
		resp.Trend = append(resp.Trend, dto.TrendPoint{Date: d.Day.Format(time.DateOnly), Count: d.Count})
	}
	for _, cc := range view.Aggregates.Categories {
		resp.Categories = append(resp.Categories, dto.CategoryPoint{Category: cc.Category, Count: cc.Count})
	}
	for _, pc := range view.Aggregates.Priorities {
		resp.Priorities = append(resp.Priorities, dto.PriorityPoint{Priority: string(pc.Priority), Count: pc.Count})
	}
	return resp
}
