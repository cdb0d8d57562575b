package handlers

import (
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/ticket-dashboard/internal/api/dto"
	"github.com/spec-kit/ticket-dashboard/internal/domain"
	apperrors "github.com/spec-kit/ticket-dashboard/pkg/util/errorutil"
)

// NewValidator returns a validator that reports query parameter names and knows the
// priority selector.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("query"); name != "" {
			return name
		}
		return f.Name
	})
	_ = v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		raw := fl.Field().String()
		return strings.EqualFold(raw, domain.FilterAll) || domain.ParsePriority(raw).Known()
	})
	return v
}

// parseFilterQuery binds and validates the selector parameters and normalizes them into a
// filter state. Dates are calendar days in loc.
func parseFilterQuery(c *fiber.Ctx, validate *validator.Validate, loc *time.Location) (dto.FilterQuery, domain.FilterState, error) {
	var q dto.FilterQuery
	if err := c.QueryParser(&q); err != nil {
		return q, domain.FilterState{}, apperrors.NewValidationError("invalid query parameters", map[string]any{"reason": err.Error()})
	}
	if err := validate.Struct(q); err != nil {
		return q, domain.FilterState{}, validationError(err)
	}

	start, err := parseDay(q.Start, loc)
	if err != nil {
		return q, domain.FilterState{}, err
	}
	end, err := parseDay(q.End, loc)
	if err != nil {
		return q, domain.FilterState{}, err
	}
	return q, domain.NewFilterState(q.Category, q.Priority, start, end, loc), nil
}

func parseDay(raw string, loc *time.Location) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid date", map[string]any{"value": raw})
	}
	return &t, nil
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewValidationError("invalid query parameters", nil)
	}
	details := make(map[string]any, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = fe.Tag()
	}
	return apperrors.NewValidationError("invalid query parameters", details)
}

func filterEcho(f domain.FilterState) dto.FilterEcho {
	echo := dto.FilterEcho{Category: domain.FilterAll, Priority: domain.FilterAll}
	if f.HasCategory() {
		echo.Category = f.Category
	}
	if f.HasPriority() {
		echo.Priority = string(f.Priority)
	}
	echo.Start = dayString(f.Range.Start)
	echo.End = dayString(f.Range.End)
	return echo
}

func dayString(t time.Time) *string {
	if t.IsZero() {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}

func ticketResponse(t domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:          t.ID,
		CustomerID:  t.CustomerID,
		AccountID:   t.AccountID,
		Category:    t.Category,
		Subcategory: t.Subcategory,
		Priority:    string(t.Priority),
		Status:      t.Status,
		Description: t.Description,
		GeoID:       t.GeoID,
		CreatedAt:   t.CreatedAt,
	}
}

func ticketResponses(tickets []domain.Ticket) []dto.TicketResponse {
	items := make([]dto.TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		items = append(items, ticketResponse(t))
	}
	return items
}
