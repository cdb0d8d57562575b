package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-dashboard/internal/api/http/handlers"
	"github.com/spec-kit/ticket-dashboard/internal/auth"
	"github.com/spec-kit/ticket-dashboard/internal/config"
	"github.com/spec-kit/ticket-dashboard/internal/domain"
	"github.com/spec-kit/ticket-dashboard/internal/observability"
	"github.com/spec-kit/ticket-dashboard/internal/service"
	apperrors "github.com/spec-kit/ticket-dashboard/pkg/util/errorutil"
)

type memoryRepo struct {
	tickets []domain.Ticket
	err     error
}

func (r *memoryRepo) List(ctx context.Context, filter domain.FilterState, limit int) ([]domain.Ticket, error) {
	if r.err != nil {
		return nil, r.err
	}
	out := []domain.Ticket{}
	for _, t := range r.tickets {
		if filter.Matches(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memoryRepo) Stream(ctx context.Context, filter domain.FilterState, fn func(domain.Ticket) error) error {
	tickets, err := r.List(ctx, filter, 0)
	if err != nil {
		return err
	}
	for _, t := range tickets {
		if err := fn(t); err != nil {
			return err
		}
	}
	return nil
}

func (r *memoryRepo) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	for _, t := range r.tickets {
		if t.ID == id {
			t := t
			return &t, nil
		}
	}
	return nil, apperrors.NewNotFound("ticket", map[string]any{"id": id})
}

func (r *memoryRepo) Options(ctx context.Context) (*domain.FilterOptions, error) {
	if r.err != nil {
		return nil, r.err
	}
	earliest := time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)
	latest := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	return &domain.FilterOptions{
		Categories: []string{"Billing", "Technical"},
		Priorities: []domain.TicketPriority{domain.TicketPriorityLow, domain.TicketPriorityHigh},
		MinDate:    &earliest,
		MaxDate:    &latest,
	}, nil
}

func (r *memoryRepo) KeywordSearch(ctx context.Context, term string, filter domain.FilterState, limit int) ([]domain.Ticket, error) {
	return r.List(ctx, filter, limit)
}

type fixedSearcher struct {
	result domain.SearchResult
	calls  int
}

func (s *fixedSearcher) Search(ctx context.Context, query string, filter domain.FilterState) domain.SearchResult {
	s.calls++
	r := s.result
	r.Query = query
	return r
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func seed() []domain.Ticket {
	at := func(d int) time.Time { return time.Date(2024, 1, d, 10, 0, 0, 0, time.UTC) }
	return []domain.Ticket{
		{ID: "B-1", Category: "Billing", Priority: domain.TicketPriorityHigh, CreatedAt: at(3)},
		{ID: "B-2", Category: "Billing", Priority: domain.TicketPriorityLow, CreatedAt: at(15)},
		{ID: "B-3", Category: "Billing", Priority: domain.TicketPriorityCritical, CreatedAt: at(31)},
		{ID: "B-4", Category: "Billing", Priority: domain.TicketPriorityHigh, CreatedAt: time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)},
		{ID: "T-1", Category: "Technical", Priority: domain.TicketPriorityMedium, CreatedAt: at(10)},
	}
}

type testServer struct {
	app      *fiber.App
	repo     *memoryRepo
	searcher *fixedSearcher
}

func newTestServer(t *testing.T, tokens *auth.TokenManager) *testServer {
	t.Helper()
	repo := &memoryRepo{tickets: seed()}
	searcher := &fixedSearcher{result: domain.SearchResult{Hits: []domain.SearchHit{
		{Ticket: seed()[0], Score: 0.9, MatchedFields: []string{"description"}},
	}}}
	metrics := observability.NewMetrics()
	logger := zap.NewNop()

	dashboard := service.NewDashboardService(config.DashboardConfig{
		KnownCategories: []string{"Billing", "Technical", "Account"},
		TicketLimit:     10,
		MaxTicketLimit:  20,
		Timezone:        "UTC",
	}, service.DashboardDependencies{TicketRepo: repo, Metrics: metrics, Logger: logger})
	search := service.NewSearchService(service.SearchDependencies{Searcher: searcher, TicketRepo: repo, Metrics: metrics, Logger: logger})
	validate := handlers.NewValidator()

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:    handlers.NewHealthHandler("dashboard", "test", pinger{}, pinger{err: errors.New("redis down")}, metrics),
		Dashboard: handlers.NewDashboardHandler(dashboard, validate),
		Tickets:   handlers.NewTicketsHandler(dashboard, validate),
		Search:    handlers.NewSearchHandler(search, validate, time.UTC),
		Viewer:    auth.NewViewerMiddleware(tokens),
	})
	return &testServer{app: app, repo: repo, searcher: searcher}
}

func (s *testServer) get(t *testing.T, path, token string) (int, map[string]any, nethttp.Header) {
	t.Helper()
	req := httptest.NewRequest(nethttp.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	body := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	return resp.StatusCode, body, resp.Header
}

func TestDashboardEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	status, body, header := srv.get(t, "/api/v1/dashboard?category=Billing&priority=All&start=2024-01-01&end=2024-01-31", "")
	require.Equal(t, nethttp.StatusOK, status)
	assert.NotEmpty(t, header.Get(observability.RequestIDHeader))

	data := body["data"].(map[string]any)
	assert.Len(t, data["tickets"], 3)
	assert.Len(t, data["trend"], 31)
	assert.Equal(t, []any{map[string]any{"category": "Billing", "count": float64(3)}}, data["categories"])

	metrics := data["metrics"].(map[string]any)
	assert.Equal(t, float64(3), metrics["total_tickets"])
	assert.Equal(t, float64(31), metrics["days"])

	filter := data["filter"].(map[string]any)
	assert.Equal(t, "Billing", filter["category"])
	assert.Equal(t, "All", filter["priority"])
	assert.Equal(t, "2024-01-01", filter["start"])
}

func TestDashboardInvertedRangeIsEmpty(t *testing.T) {
	srv := newTestServer(t, nil)

	status, body, _ := srv.get(t, "/api/v1/dashboard?start=2024-02-01&end=2024-01-01", "")
	require.Equal(t, nethttp.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Empty(t, data["tickets"])
	assert.Empty(t, data["trend"])
}

func TestValidationErrors(t *testing.T) {
	srv := newTestServer(t, nil)

	for _, path := range []string{
		"/api/v1/dashboard?start=01/02/2024",
		"/api/v1/dashboard?priority=P0",
		"/api/v1/tickets?limit=5000",
		"/api/v1/tickets?limit=abc",
	} {
		status, body, _ := srv.get(t, path, "")
		assert.Equal(t, nethttp.StatusBadRequest, status, path)
		errBody := body["error"].(map[string]any)
		assert.Equal(t, apperrors.CodeValidation, errBody["code"], path)
	}

	_, body, _ := srv.get(t, "/api/v1/dashboard?priority=P0", "")
	details := body["error"].(map[string]any)["details"].(map[string]any)
	assert.Equal(t, "priority", details["priority"])
}

func TestPriorityAliasAccepted(t *testing.T) {
	srv := newTestServer(t, nil)

	status, body, _ := srv.get(t, "/api/v1/dashboard?priority=urgent", "")
	require.Equal(t, nethttp.StatusOK, status)
	filter := body["data"].(map[string]any)["filter"].(map[string]any)
	assert.Equal(t, "CRITICAL", filter["priority"])
}

func TestTicketsEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)

	status, body, _ := srv.get(t, "/api/v1/tickets?limit=2", "")
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, float64(2), body["count"])
	first := body["data"].([]any)[0].(map[string]any)
	assert.Equal(t, "B-4", first["ticket_id"])

	status, body, _ = srv.get(t, "/api/v1/tickets/T-1", "")
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "Technical", body["data"].(map[string]any)["category"])

	status, body, _ = srv.get(t, "/api/v1/tickets/nope", "")
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, apperrors.CodeNotFound, body["error"].(map[string]any)["code"])
}

func TestOptionsEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	status, body, _ := srv.get(t, "/api/v1/dashboard/options", "")
	require.Equal(t, nethttp.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, []any{"All", "Billing", "Technical"}, data["categories"])
	assert.Equal(t, []any{"All", "LOW", "HIGH"}, data["priorities"])
	assert.Equal(t, "2024-01-03", data["min_date"])
	assert.Equal(t, "2024-02-01", data["max_date"])
}

func TestDataAccessErrorIsBanner(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.repo.err = apperrors.NewDataAccessError(errors.New("connection refused"))

	status, body, _ := srv.get(t, "/api/v1/dashboard", "")
	assert.Equal(t, nethttp.StatusServiceUnavailable, status)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, apperrors.CodeDataAccess, errBody["code"])
	assert.NotContains(t, errBody["message"], "connection refused")
}

func TestSearchEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)

	status, body, _ := srv.get(t, "/api/v1/search?q=", "")
	require.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, float64(0), body["data"].(map[string]any)["count"])
	assert.Zero(t, srv.searcher.calls)

	status, body, _ = srv.get(t, "/api/v1/search?q=double+charge&category=Billing", "")
	require.Equal(t, nethttp.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, "double charge", data["query"])
	assert.Equal(t, float64(1), data["count"])
	assert.Equal(t, false, data["unavailable"])
	hit := data["results"].([]any)[0].(map[string]any)
	assert.Equal(t, "B-1", hit["ticket_id"])
	assert.Equal(t, 0.9, hit["score"])
}

func TestSearchUnavailableIsNotAnError(t *testing.T) {
	srv := newTestServer(t, nil)
	srv.searcher.result = domain.SearchResult{Hits: []domain.SearchHit{}, Unavailable: true, Message: domain.SearchUnavailableMessage}

	status, body, _ := srv.get(t, "/api/v1/search?q=refund", "")
	require.Equal(t, nethttp.StatusOK, status)
	data := body["data"].(map[string]any)
	assert.Equal(t, true, data["unavailable"])
	assert.Equal(t, domain.SearchUnavailableMessage, data["message"])
	assert.Empty(t, data["results"])
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, nil)

	status, body, _ := srv.get(t, "/health/live", "")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body, _ = srv.get(t, "/health/ready", "")
	assert.Equal(t, nethttp.StatusOK, status)
	deps := body["dependencies"].(map[string]any)
	assert.Equal(t, "ok", deps["postgres"])
	assert.Contains(t, deps["redis"], "degraded")

	srv.get(t, "/api/v1/tickets", "")
	status, body, _ = srv.get(t, "/health/metrics", "")
	assert.Equal(t, nethttp.StatusOK, status)
	requests := body["data"].(map[string]any)["requests"].(map[string]any)
	assert.Equal(t, float64(1), requests["/api/v1/tickets|GET|200"])
}

func TestUnknownRouteRendersError(t *testing.T) {
	srv := newTestServer(t, nil)

	status, body, _ := srv.get(t, "/api/v1/nothing", "")
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, apperrors.CodeNotFound, body["error"].(map[string]any)["code"])
}

func TestViewerTokensEnforced(t *testing.T) {
	tokens := auth.NewTokenManager("secret", "platform", 5)
	srv := newTestServer(t, tokens)

	status, body, _ := srv.get(t, "/api/v1/dashboard", "")
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, apperrors.CodeUnauth, body["error"].(map[string]any)["code"])

	analyst, _, err := tokens.GenerateToken(auth.Viewer{Subject: "u-1", Roles: []string{"analyst"}})
	require.NoError(t, err)
	status, _, _ = srv.get(t, "/api/v1/dashboard", analyst)
	assert.Equal(t, nethttp.StatusOK, status)

	status, _, _ = srv.get(t, "/health/metrics", analyst)
	assert.Equal(t, nethttp.StatusForbidden, status)

	admin, _, err := tokens.GenerateToken(auth.Viewer{Subject: "u-2", Roles: []string{MetricsRole}})
	require.NoError(t, err)
	status, _, _ = srv.get(t, "/health/metrics", admin)
	assert.Equal(t, nethttp.StatusOK, status)
}
