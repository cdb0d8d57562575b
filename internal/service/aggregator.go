package service

import (
	"time"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
)

// Aggregator derives the trend, category and priority summaries of a filtered ticket set
// in one pass. Feed it with Add and read the summaries with Result.
type Aggregator struct {
	filter  domain.FilterState
	loc     *time.Location
	known   []string
	isKnown map[string]struct{}

	total      int64
	byDay      map[string]int64
	firstDay   time.Time
	lastDay    time.Time
	byCategory map[string]int64
	byPriority map[domain.TicketPriority]int64
}

// NewAggregator prepares an aggregator for tickets selected by filter. Days are bucketed
// in loc; knownCategories are always reported, even at zero.
func NewAggregator(filter domain.FilterState, knownCategories []string, loc *time.Location) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	isKnown := make(map[string]struct{}, len(knownCategories))
	known := make([]string, 0, len(knownCategories))
	for _, c := range knownCategories {
		if _, dup := isKnown[c]; dup {
			continue
		}
		isKnown[c] = struct{}{}
		known = append(known, c)
	}
	return &Aggregator{
		filter:     filter,
		loc:        loc,
		known:      known,
		isKnown:    isKnown,
		byDay:      make(map[string]int64),
		byCategory: make(map[string]int64),
		byPriority: make(map[domain.TicketPriority]int64),
	}
}

// Add counts one ticket into every summary.
func (a *Aggregator) Add(t domain.Ticket) {
	a.total++

	d := domain.StartOfDay(t.CreatedAt, a.loc)
	a.byDay[d.Format(time.DateOnly)]++
	if a.firstDay.IsZero() || d.Before(a.firstDay) {
		a.firstDay = d
	}
	if a.lastDay.IsZero() || d.After(a.lastDay) {
		a.lastDay = d
	}

	a.byCategory[a.categoryBucket(t.Category)]++

	p := t.Priority
	if !p.Known() {
		p = domain.TicketPriorityUnknown
	}
	a.byPriority[p]++
}

// Result builds the summaries. The counts of every summary add up to the number of tickets added.
func (a *Aggregator) Result() domain.AggregateResult {
	return domain.AggregateResult{
		Total:      a.total,
		Trend:      a.trend(),
		Categories: a.categories(),
		Priorities: a.priorities(),
	}
}

func (a *Aggregator) categoryBucket(category string) string {
	if _, ok := a.isKnown[category]; ok {
		return category
	}
	if a.filter.HasCategory() && category == a.filter.Category {
		return category
	}
	return domain.CategoryOther
}

func (a *Aggregator) trend() []domain.DateCount {
	from, to := a.filter.Range.Start, a.filter.Range.End
	if from.IsZero() {
		from = a.firstDay
	}
	if to.IsZero() {
		to = a.lastDay
	}
	// Tickets outside the requested range still get a bucket.
	if a.total > 0 {
		if a.firstDay.Before(from) {
			from = a.firstDay
		}
		if a.lastDay.After(to) {
			to = a.lastDay
		}
	}
	if from.IsZero() || to.IsZero() || from.After(to) {
		return []domain.DateCount{}
	}

	from = domain.StartOfDay(from, a.loc)
	to = domain.StartOfDay(to, a.loc)
	series := []domain.DateCount{}
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		series = append(series, domain.DateCount{Day: d, Count: a.byDay[d.Format(time.DateOnly)]})
	}
	return series
}

func (a *Aggregator) categories() []domain.CategoryCount {
	names := a.known
	if a.filter.HasCategory() {
		names = []string{a.categoryBucket(a.filter.Category)}
	}

	out := make([]domain.CategoryCount, 0, len(names)+1)
	accounted := int64(0)
	for _, c := range names {
		out = append(out, domain.CategoryCount{Category: c, Count: a.byCategory[c]})
		accounted += a.byCategory[c]
	}
	if rest := a.total - accounted; rest > 0 {
		out = append(out, domain.CategoryCount{Category: domain.CategoryOther, Count: rest})
	}
	return out
}

func (a *Aggregator) priorities() []domain.PriorityCount {
	levels := domain.Priorities
	if a.filter.HasPriority() && a.filter.Priority.Known() {
		levels = []domain.TicketPriority{a.filter.Priority}
	}

	out := make([]domain.PriorityCount, 0, len(levels)+1)
	accounted := int64(0)
	for _, p := range levels {
		out = append(out, domain.PriorityCount{Priority: p, Count: a.byPriority[p]})
		accounted += a.byPriority[p]
	}
	if rest := a.total - accounted; rest > 0 {
		out = append(out, domain.PriorityCount{Priority: domain.TicketPriorityUnknown, Count: rest})
	}
	return out
}

// Aggregate runs an Aggregator over an in-memory ticket slice.
func Aggregate(tickets []domain.Ticket, filter domain.FilterState, knownCategories []string, loc *time.Location) domain.AggregateResult {
	agg := NewAggregator(filter, knownCategories, loc)
	for _, t := range tickets {
		agg.Add(t)
	}
	return agg.Result()
}

// Metrics computes the headline numbers for a view.
func Metrics(result domain.AggregateResult, categories int) domain.DashboardMetrics {
	days := len(result.Trend)
	avg := float64(result.Total) / float64(max(days, 1))
	return domain.DashboardMetrics{
		TotalTickets: result.Total,
		Categories:   categories,
		Days:         days,
		AvgPerDay:    avg,
	}
}
