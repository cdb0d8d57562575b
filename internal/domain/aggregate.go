package domain

import "time"

// DateCount is one day bucket of the trend series.
type DateCount struct {
	Day   time.Time
	Count int64
}

// CategoryCount is the number of tickets in a category.
type CategoryCount struct {
	Category string
	Count    int64
}

// PriorityCount is the number of tickets at a priority.
type PriorityCount struct {
	Priority TicketPriority
	Count    int64
}

// AggregateResult holds the three chart summaries of a filtered ticket set.
type AggregateResult struct {
	Total      int64
	Trend      []DateCount
	Categories []CategoryCount
	Priorities []PriorityCount
}

// DashboardMetrics is the headline row of the dashboard.
type DashboardMetrics struct {
	TotalTickets int64
	Categories   int
	Days         int
	AvgPerDay    float64
}

// DashboardView is everything the dashboard renders for one filter state.
type DashboardView struct {
	Filter     FilterState
	Metrics    DashboardMetrics
	Aggregates AggregateResult
	Tickets    []Ticket
	Truncated  bool
}

// FilterOptions lists the selector values available in the store.
type FilterOptions struct {
	Categories []string
	Priorities []TicketPriority
	MinDate    *time.Time
	MaxDate    *time.Time
}
