package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/ticket-dashboard/internal/auth"
	"github.com/spec-kit/ticket-dashboard/internal/cache"
	"github.com/spec-kit/ticket-dashboard/internal/config"
	"github.com/spec-kit/ticket-dashboard/internal/domain"
	"github.com/spec-kit/ticket-dashboard/internal/observability"
	"github.com/spec-kit/ticket-dashboard/internal/repository"
	apperrors "github.com/spec-kit/ticket-dashboard/pkg/util/errorutil"
)

// DashboardService computes dashboard views over the ticket store.
type DashboardService struct {
	tickets        repository.TicketRepository
	cache          cache.DashboardCache
	metrics        *observability.Metrics
	logger         *zap.Logger
	known          []string
	loc            *time.Location
	ticketLimit    int
	maxTicketLimit int
	queryTimeout   time.Duration
	viewGroup      singleflight.Group
	optionsGroup   singleflight.Group
}

// DashboardDependencies bundles collaborators for the dashboard service.
type DashboardDependencies struct {
	TicketRepo repository.TicketRepository
	Cache      cache.DashboardCache
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// NewDashboardService constructs the service.
func NewDashboardService(cfg config.DashboardConfig, deps DashboardDependencies) *DashboardService {
	loc, err := cfg.Location()
	if err != nil {
		loc = time.UTC
	}
	known := cfg.KnownCategories
	if len(known) == 0 {
		known = domain.DefaultCategories
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ticketLimit := cfg.TicketLimit
	if ticketLimit <= 0 {
		ticketLimit = 100
	}
	return &DashboardService{
		tickets:        deps.TicketRepo,
		cache:          deps.Cache,
		metrics:        deps.Metrics,
		logger:         logger,
		known:          known,
		loc:            loc,
		ticketLimit:    ticketLimit,
		maxTicketLimit: max(cfg.MaxTicketLimit, ticketLimit),
		queryTimeout:   cfg.QueryTimeout(),
	}
}

// Location is the timezone used for day buckets and date parsing.
func (s *DashboardService) Location() *time.Location { return s.loc }

// Dashboard returns the aggregates, headline metrics and the newest tickets for filter.
// The summaries always cover the whole filtered set; only the ticket list is bounded.
func (s *DashboardService) Dashboard(ctx context.Context, filter domain.FilterState) (*domain.DashboardView, error) {
	if filter.MatchesNothing() {
		return s.buildView(ctx, filter, NewAggregator(filter, s.known, s.loc), []domain.Ticket{}, false), nil
	}

	if s.cache != nil {
		view, ok, err := s.cache.GetView(ctx, filter)
		if err != nil {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
		s.metrics.RecordCache(ok)
		if ok {
			return view, nil
		}
	}

	v, err := s.shared(ctx, &s.viewGroup, filter.Key(), func(ctx context.Context) (any, error) {
		return s.computeView(ctx, filter)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.DashboardView), nil
}

// shared runs fn once per key across concurrent callers. The work runs detached from the
// caller that started it, bounded by the query timeout; each caller only stops waiting
// when its own context ends.
func (s *DashboardService) shared(ctx context.Context, group *singleflight.Group, key string, fn func(context.Context) (any, error)) (any, error) {
	ch := group.DoChan(key, func() (any, error) {
		var (
			workCtx context.Context
			cancel  context.CancelFunc
		)
		if s.queryTimeout > 0 {
			workCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), s.queryTimeout)
		} else {
			workCtx, cancel = context.WithCancel(context.WithoutCancel(ctx))
		}
		defer cancel()
		return fn(workCtx)
	})
	select {
	case res := <-ch:
		return res.Val, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *DashboardService) computeView(ctx context.Context, filter domain.FilterState) (*domain.DashboardView, error) {
	agg := NewAggregator(filter, s.known, s.loc)
	tickets := make([]domain.Ticket, 0, s.ticketLimit)
	truncated := false

	err := s.tickets.Stream(ctx, filter, func(t domain.Ticket) error {
		agg.Add(t)
		if len(tickets) < s.ticketLimit {
			tickets = append(tickets, t)
		} else {
			truncated = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	view := s.buildView(ctx, filter, agg, tickets, truncated)
	if s.cache != nil {
		if err := s.cache.SetView(ctx, view); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	s.logger.Debug("dashboard computed",
		zap.String("viewer", auth.ViewerFromContext(ctx).Subject),
		zap.String("filter", filter.Key()),
		zap.Int64("total", view.Metrics.TotalTickets),
		zap.Bool("truncated", truncated))
	return view, nil
}

func (s *DashboardService) buildView(ctx context.Context, filter domain.FilterState, agg *Aggregator, tickets []domain.Ticket, truncated bool) *domain.DashboardView {
	result := agg.Result()
	return &domain.DashboardView{
		Filter:     filter,
		Metrics:    Metrics(result, s.categoryCount(ctx)),
		Aggregates: result,
		Tickets:    tickets,
		Truncated:  truncated,
	}
}

// categoryCount is the number of distinct categories in the store. The configured set
// stands in when the store cannot be read.
func (s *DashboardService) categoryCount(ctx context.Context) int {
	opts, err := s.Options(ctx)
	if err != nil {
		s.logger.Warn("category count unavailable, using configured categories", zap.Error(err))
		return len(s.known)
	}
	return len(opts.Categories)
}

// Options lists the selector values present in the store.
func (s *DashboardService) Options(ctx context.Context) (*domain.FilterOptions, error) {
	if s.cache != nil {
		opts, ok, err := s.cache.GetOptions(ctx)
		if err != nil {
			s.logger.Warn("options cache read failed", zap.Error(err))
		}
		s.metrics.RecordCache(ok)
		if ok {
			return opts, nil
		}
	}

	v, err := s.shared(ctx, &s.optionsGroup, "options", func(ctx context.Context) (any, error) {
		opts, err := s.tickets.Options(ctx)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			if err := s.cache.SetOptions(ctx, opts); err != nil {
				s.logger.Warn("options cache write failed", zap.Error(err))
			}
		}
		return opts, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.FilterOptions), nil
}

// ListTickets returns up to limit filtered tickets, newest first. A non-positive limit uses
// the configured default; larger values are capped.
func (s *DashboardService) ListTickets(ctx context.Context, filter domain.FilterState, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = s.ticketLimit
	}
	if limit > s.maxTicketLimit {
		limit = s.maxTicketLimit
	}
	return s.tickets.List(ctx, filter, limit)
}

// Ticket fetches a single ticket by id.
func (s *DashboardService) Ticket(ctx context.Context, id string) (*domain.Ticket, error) {
	if id == "" {
		return nil, apperrors.NewValidationError("ticket id required", nil)
	}
	return s.tickets.GetByID(ctx, id)
}
