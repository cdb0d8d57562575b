package handlers

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-dashboard/internal/api/dto"
	"github.com/spec-kit/ticket-dashboard/internal/service"
)

// SearchHandler serves semantic ticket search.
type SearchHandler struct {
	service  *service.SearchService
	validate *validator.Validate
	loc      *time.Location
}

// NewSearchHandler constructs handler.
func NewSearchHandler(search *service.SearchService, validate *validator.Validate, loc *time.Location) *SearchHandler {
	return &SearchHandler{service: search, validate: validate, loc: loc}
}

// Search GET /api/v1/search. A failing search service still answers 200 with unavailable set.
func (h *SearchHandler) Search(c *fiber.Ctx) error {
	q, filter, err := parseFilterQuery(c, h.validate, h.loc)
	if err != nil {
		return err
	}

	result := h.service.Search(c.UserContext(), q.Q, filter)
	resp := dto.SearchResponse{
		Query:       result.Query,
		Count:       len(result.Hits),
		Results:     make([]dto.SearchHitResponse, 0, len(result.Hits)),
		Unavailable: result.Unavailable,
		Fallback:    result.Fallback,
		Message:     result.Message,
	}
	for _, hit := range result.Hits {
		matched := hit.MatchedFields
		if matched == nil {
			matched = []string{}
		}
		resp.Results = append(resp.Results, dto.SearchHitResponse{
			TicketResponse: ticketResponse(hit.Ticket),
			Score:          hit.Score,
			MatchedFields:  matched,
		})
	}
	return c.JSON(fiber.Map{"data": resp})
}
