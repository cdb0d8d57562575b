// Package search talks to the managed semantic search service that ranks tickets.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/ticket-dashboard/internal/config"
	"github.com/spec-kit/ticket-dashboard/internal/domain"
)

const (
	retryInitialInterval = 100 * time.Millisecond
	maxErrorBodyBytes    = 512
	defaultFetchTimeout  = 30 * time.Second
)

// Client issues ranked ticket searches. It never returns an error: failures come back as
// a result with Unavailable set so ticket browsing keeps working.
type Client struct {
	endpoint     string
	token        string
	columns      []string
	scoreField   string
	maxResults   int
	attempts     int
	fetchTimeout time.Duration
	loc          *time.Location
	httpClient   *http.Client
	cache        *expirable.LRU[string, domain.SearchResult]
	fetchGroup   singleflight.Group
	logger       *zap.Logger
}

// NewClient builds a client from configuration. A zero timeout leaves net/http's default.
// Timestamps without an offset are read in loc.
func NewClient(cfg config.SearchConfig, loc *time.Location, logger *zap.Logger) *Client {
	if loc == nil {
		loc = time.UTC
	}
	attempts := max(cfg.RetryAttempts, 1)
	fetchTimeout := defaultFetchTimeout
	if cfg.Timeout() > 0 {
		fetchTimeout = cfg.Timeout()*time.Duration(attempts) + time.Second
	}
	c := &Client{
		endpoint:     strings.TrimSpace(cfg.Endpoint),
		token:        cfg.Token,
		columns:      cfg.Columns,
		scoreField:   cfg.ScoreField,
		maxResults:   cfg.MaxResults,
		attempts:     attempts,
		fetchTimeout: fetchTimeout,
		loc:          loc,
		httpClient:   &http.Client{Timeout: cfg.Timeout()},
		logger:       logger,
	}
	if c.maxResults <= 0 {
		c.maxResults = 50
	}
	if cfg.CacheSize > 0 && cfg.CacheTTL() > 0 {
		c.cache = expirable.NewLRU[string, domain.SearchResult](cfg.CacheSize, nil, cfg.CacheTTL())
	}
	return c
}

// Search ranks tickets against query, narrowed by filter. A blank query or a filter that
// can match nothing returns an empty result without contacting the service.
func (c *Client) Search(ctx context.Context, query string, filter domain.FilterState) domain.SearchResult {
	q := strings.TrimSpace(query)
	empty := domain.SearchResult{Query: q, Hits: []domain.SearchHit{}}
	if q == "" || filter.MatchesNothing() {
		return empty
	}
	if c.endpoint == "" {
		return unavailable(q)
	}

	key := q + "\x00" + filter.Key()
	if c.cache != nil {
		if cached, ok := c.cache.Get(key); ok {
			return cached
		}
	}

	// The shared fetch outlives any single caller; each caller stops waiting on its own context.
	ch := c.fetchGroup.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		return c.fetch(fetchCtx, q, filter)
	})
	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		c.logger.Warn("search abandoned", zap.String("query", q), zap.Error(ctx.Err()))
		return unavailable(q)
	}
	if res.Err != nil {
		c.logger.Warn("search service unavailable", zap.String("query", q), zap.Error(res.Err))
		return unavailable(q)
	}

	result := domain.SearchResult{Query: q, Hits: res.Val.([]domain.SearchHit)}
	if c.cache != nil {
		c.cache.Add(key, result)
	}
	return result
}

func unavailable(q string) domain.SearchResult {
	return domain.SearchResult{
		Query:       q,
		Hits:        []domain.SearchHit{},
		Unavailable: true,
		Message:     domain.SearchUnavailableMessage,
	}
}

type queryRequest struct {
	Query   string         `json:"query"`
	Columns []string       `json:"columns,omitempty"`
	Filter  map[string]any `json:"filter,omitempty"`
	Limit   int            `json:"limit"`
}

type queryResponse struct {
	Results []map[string]any `json:"results"`
}

func (c *Client) fetch(ctx context.Context, q string, filter domain.FilterState) ([]domain.SearchHit, error) {
	body, err := json.Marshal(queryRequest{
		Query:   q,
		Columns: c.columns,
		Filter:  buildFilter(filter),
		Limit:   c.maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = retryInitialInterval

	resp, err := backoff.Retry(ctx, func() (*queryResponse, error) {
		return c.post(ctx, body)
	}, backoff.WithBackOff(expBackoff), backoff.WithMaxTries(uint(c.attempts)))
	if err != nil {
		return nil, err
	}

	hits := make([]domain.SearchHit, 0, len(resp.Results))
	for _, row := range resp.Results {
		hit, ok := c.toHit(row, q)
		if !ok || !matchesHit(filter, hit.Ticket) {
			continue
		}
		hits = append(hits, hit)
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > c.maxResults {
		hits = hits[:c.maxResults]
	}
	return hits, nil
}

func (c *Client) post(ctx context.Context, body []byte) (*queryResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query search service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		statusErr := fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return nil, statusErr
		}
		return nil, backoff.Permanent(statusErr)
	}

	var decoded queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode response: %w", err))
	}
	return &decoded, nil
}

// buildFilter renders the filter in the search service's @and/@eq/@gte/@lte dialect.
func buildFilter(filter domain.FilterState) map[string]any {
	var clauses []map[string]any
	if filter.HasCategory() {
		clauses = append(clauses, map[string]any{"@eq": map[string]any{"category": filter.Category}})
	}
	if filter.HasPriority() {
		var spellings []map[string]any
		for _, alias := range domain.PriorityAliases(filter.Priority) {
			spellings = append(spellings,
				map[string]any{"@eq": map[string]any{"priority": alias}},
				map[string]any{"@eq": map[string]any{"priority": titleCase(alias)}})
		}
		clauses = append(clauses, map[string]any{"@or": spellings})
	}
	if !filter.Range.Start.IsZero() {
		clauses = append(clauses, map[string]any{"@gte": map[string]any{"created_at": filter.Range.Start.Format(time.DateOnly)}})
	}
	if !filter.Range.End.IsZero() {
		clauses = append(clauses, map[string]any{"@lte": map[string]any{"created_at": filter.Range.End.Format(time.DateOnly)}})
	}

	switch len(clauses) {
	case 0:
		return nil
	case 1:
		return clauses[0]
	default:
		return map[string]any{"@and": clauses}
	}
}

func (c *Client) toHit(row map[string]any, q string) (domain.SearchHit, bool) {
	fields := make(map[string]any, len(row))
	for k, v := range row {
		fields[strings.ToLower(k)] = v
	}

	ticket := domain.Ticket{
		ID:          text(fields["ticket_id"]),
		CustomerID:  text(fields["customer_id"]),
		AccountID:   text(fields["account_id"]),
		Category:    text(fields["category"]),
		Subcategory: text(fields["subcategory"]),
		Priority:    domain.ParsePriority(text(fields["priority"])),
		Status:      text(fields["status"]),
		Description: text(fields["description"]),
		GeoID:       text(fields["geo_id"]),
		CreatedAt:   c.parseTime(firstText(fields, "created_at", "created_date")),
	}
	if ticket.ID == "" {
		return domain.SearchHit{}, false
	}

	return domain.SearchHit{
		Ticket:        ticket,
		Score:         c.score(fields),
		MatchedFields: MatchedFields(ticket, q),
	}, true
}

func (c *Client) score(fields map[string]any) float64 {
	scores, ok := fields["@scores"].(map[string]any)
	if !ok {
		f, _ := fields["score"].(float64)
		return f
	}
	if f, ok := scores[c.scoreField].(float64); ok {
		return f
	}
	best := 0.0
	for _, v := range scores {
		if f, ok := v.(float64); ok && f > best {
			best = f
		}
	}
	return best
}

// MatchedFields lists the text fields of t that contain a term of query.
func MatchedFields(t domain.Ticket, query string) []string {
	terms := strings.Fields(strings.ToLower(query))
	candidates := []struct {
		name  string
		value string
	}{
		{"category", t.Category},
		{"subcategory", t.Subcategory},
		{"description", t.Description},
	}

	matched := []string{}
	for _, f := range candidates {
		value := strings.ToLower(f.value)
		for _, term := range terms {
			if len(term) > 1 && strings.Contains(value, term) {
				matched = append(matched, f.name)
				break
			}
		}
	}
	return matched
}

func text(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strings.TrimSuffix(fmt.Sprintf("%f", val), ".000000")
	default:
		return fmt.Sprint(val)
	}
}

// matchesHit re-checks a hit against filter. A hit without a timestamp cannot be placed in
// the date range, so only its category and priority are checked.
func matchesHit(filter domain.FilterState, t domain.Ticket) bool {
	if t.CreatedAt.IsZero() {
		filter.Range = domain.DateRange{}
	}
	return filter.Matches(t)
}

func firstText(fields map[string]any, keys ...string) string {
	for _, k := range keys {
		if v := text(fields[k]); v != "" {
			return v
		}
	}
	return ""
}

func (c *Client) parseTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t
	}
	for _, layout := range []string{"2006-01-02 15:04:05.999999999", "2006-01-02T15:04:05.999999999", time.DateOnly} {
		if t, err := time.ParseInLocation(layout, raw, c.loc); err == nil {
			return t
		}
	}
	return time.Time{}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	lower := strings.ToLower(s)
	return strings.ToUpper(lower[:1]) + lower[1:]
}
