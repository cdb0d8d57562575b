package handlers

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-dashboard/internal/service"
)

// TicketsHandler manages ticket list endpoints.
type TicketsHandler struct {
	service  *service.DashboardService
	validate *validator.Validate
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(dashboard *service.DashboardService, validate *validator.Validate) *TicketsHandler {
	return &TicketsHandler{service: dashboard, validate: validate}
}

// ListTickets GET /api/v1/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	q, filter, err := parseFilterQuery(c, h.validate, h.service.Location())
	if err != nil {
		return err
	}
	tickets, err := h.service.ListTickets(c.UserContext(), filter, q.Limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"data":   ticketResponses(tickets),
		"count":  len(tickets),
		"filter": filterEcho(filter),
	})
}

// GetTicket GET /api/v1/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.Ticket(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(*ticket)})
}
