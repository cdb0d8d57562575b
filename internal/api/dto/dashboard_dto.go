package dto

import "time"

// FilterQuery captures the selector query parameters shared by every read endpoint.
type FilterQuery struct {
	Category string `query:"category" validate:"omitempty,max=100"`
	Priority string `query:"priority" validate:"omitempty,priority"`
	Start    string `query:"start" validate:"omitempty,datetime=2006-01-02"`
	End      string `query:"end" validate:"omitempty,datetime=2006-01-02"`
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=1000"`
	Q        string `query:"q" validate:"max=500"`
}

// FilterEcho reports the normalized filter back to the client.
type FilterEcho struct {
	Category string  `json:"category"`
	Priority string  `json:"priority"`
	Start    *string `json:"start"`
	End      *string `json:"end"`
}

// TicketResponse is one ticket row.
type TicketResponse struct {
	ID          string    `json:"ticket_id"`
	CustomerID  string    `json:"customer_id"`
	AccountID   string    `json:"account_id,omitempty"`
	Category    string    `json:"category"`
	Subcategory string    `json:"subcategory"`
	Priority    string    `json:"priority"`
	Status      string    `json:"status"`
	Description string    `json:"description"`
	GeoID       string    `json:"geo_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// MetricsResponse is the headline metrics row.
type MetricsResponse struct {
	TotalTickets int64   `json:"total_tickets"`
	Categories   int     `json:"categories"`
	Days         int     `json:"days"`
	AvgPerDay    float64 `json:"avg_per_day"`
}

// TrendPoint is one day of the trend chart.
type TrendPoint struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// CategoryPoint is one bar of the category chart.
type CategoryPoint struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

// PriorityPoint is one slice of the priority chart.
type PriorityPoint struct {
	Priority string `json:"priority"`
	Count    int64  `json:"count"`
}

// DashboardResponse is the full dashboard payload.
type DashboardResponse struct {
	Filter     FilterEcho       `json:"filter"`
	Metrics    MetricsResponse  `json:"metrics"`
	Trend      []TrendPoint     `json:"trend"`
	Categories []CategoryPoint  `json:"categories"`
	Priorities []PriorityPoint  `json:"priorities"`
	Tickets    []TicketResponse `json:"tickets"`
	Truncated  bool             `json:"truncated"`
}

// OptionsResponse lists selector values; each list starts with "All".
type OptionsResponse struct {
	Categories []string `json:"categories"`
	Priorities []string `json:"priorities"`
	MinDate    *string  `json:"min_date"`
	MaxDate    *string  `json:"max_date"`
}

// SearchHitResponse is a ranked ticket.
type SearchHitResponse struct {
	TicketResponse
	Score         float64  `json:"score"`
	MatchedFields []string `json:"matched_fields"`
}

// SearchResponse is the search payload. Unavailable is set when the search service failed.
type SearchResponse struct {
	Query       string              `json:"query"`
	Count       int                 `json:"count"`
	Results     []SearchHitResponse `json:"results"`
	Unavailable bool                `json:"unavailable"`
	Fallback    bool                `json:"fallback"`
	Message     string              `json:"message,omitempty"`
}
