package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-dashboard/internal/auth"
	"github.com/spec-kit/ticket-dashboard/internal/domain"
	"github.com/spec-kit/ticket-dashboard/internal/observability"
	"github.com/spec-kit/ticket-dashboard/internal/repository"
	"github.com/spec-kit/ticket-dashboard/internal/search"
)

// Searcher ranks tickets against a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string, filter domain.FilterState) domain.SearchResult
}

// SearchService runs semantic search and degrades to a keyword match when asked to.
type SearchService struct {
	searcher        Searcher
	tickets         repository.TicketRepository
	keywordFallback bool
	limit           int
	metrics         *observability.Metrics
	logger          *zap.Logger
}

// SearchDependencies bundles collaborators for the search service.
type SearchDependencies struct {
	Searcher        Searcher
	TicketRepo      repository.TicketRepository
	KeywordFallback bool
	Limit           int
	Metrics         *observability.Metrics
	Logger          *zap.Logger
}

// NewSearchService constructs the service.
func NewSearchService(deps SearchDependencies) *SearchService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := deps.Limit
	if limit <= 0 {
		limit = 50
	}
	return &SearchService{
		searcher:        deps.Searcher,
		tickets:         deps.TicketRepo,
		keywordFallback: deps.KeywordFallback,
		limit:           limit,
		metrics:         deps.Metrics,
		logger:          logger,
	}
}

// Search never fails. A blank query yields an empty result; an unreachable search service
// yields an unavailable result, optionally carrying keyword matches.
func (s *SearchService) Search(ctx context.Context, query string, filter domain.FilterState) domain.SearchResult {
	q := strings.TrimSpace(query)
	if q == "" {
		return domain.SearchResult{Query: q, Hits: []domain.SearchHit{}}
	}

	result := s.searcher.Search(ctx, q, filter)
	if result.Unavailable {
		s.logger.Info("search degraded",
			zap.String("viewer", auth.ViewerFromContext(ctx).Subject),
			zap.Bool("keyword_fallback", s.keywordFallback))
	}
	if result.Unavailable && s.keywordFallback && s.tickets != nil {
		tickets, err := s.tickets.KeywordSearch(ctx, q, filter, s.limit)
		if err != nil {
			s.logger.Warn("keyword fallback failed", zap.Error(err))
		} else {
			hits := make([]domain.SearchHit, 0, len(tickets))
			for _, t := range tickets {
				hits = append(hits, domain.SearchHit{Ticket: t, MatchedFields: search.MatchedFields(t, q)})
			}
			result.Hits = hits
			result.Fallback = true
		}
	}

	s.metrics.RecordSearch(result.Unavailable, result.Fallback)
	return result
}
