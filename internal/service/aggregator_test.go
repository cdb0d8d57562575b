package service

import (
	"math/rand"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
)

var knownCategories = []string{"Billing", "Technical", "Account"}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ticketAt(id, category string, priority domain.TicketPriority, at time.Time) domain.Ticket {
	return domain.Ticket{ID: id, Category: category, Priority: priority, CreatedAt: at}
}

func sums(r domain.AggregateResult) (trend, categories, priorities int64) {
	for _, b := range r.Trend {
		trend += b.Count
	}
	for _, c := range r.Categories {
		categories += c.Count
	}
	for _, p := range r.Priorities {
		priorities += p.Count
	}
	return trend, categories, priorities
}

func TestAggregateEmptyInput(t *testing.T) {
	t.Run("open range", func(t *testing.T) {
		r := Aggregate(nil, domain.FilterState{}, knownCategories, time.UTC)

		assert.Zero(t, r.Total)
		assert.Empty(t, r.Trend)
		require.Len(t, r.Categories, 3)
		for _, c := range r.Categories {
			assert.Zero(t, c.Count)
		}
		require.Len(t, r.Priorities, 4)
	})

	t.Run("bounded range is zero filled", func(t *testing.T) {
		filter := domain.FilterState{Range: domain.DateRange{Start: day(2024, 1, 1), End: day(2024, 1, 7)}}
		r := Aggregate(nil, filter, knownCategories, time.UTC)

		require.Len(t, r.Trend, 7)
		for _, b := range r.Trend {
			assert.Zero(t, b.Count)
		}
	})

	t.Run("inverted range", func(t *testing.T) {
		filter := domain.FilterState{Range: domain.DateRange{Start: day(2024, 2, 1), End: day(2024, 1, 1)}}
		r := Aggregate(nil, filter, knownCategories, time.UTC)
		assert.Empty(t, r.Trend)
		assert.Zero(t, r.Total)
	})
}

func TestAggregateTrendIsContiguous(t *testing.T) {
	filter := domain.FilterState{Range: domain.DateRange{Start: day(2024, 1, 30), End: day(2024, 3, 2)}}
	tickets := []domain.Ticket{
		ticketAt("1", "Billing", domain.TicketPriorityLow, day(2024, 1, 30).Add(3*time.Hour)),
		ticketAt("2", "Billing", domain.TicketPriorityLow, day(2024, 2, 29).Add(23*time.Hour)),
		ticketAt("3", "Billing", domain.TicketPriorityLow, day(2024, 2, 29)),
	}

	r := Aggregate(tickets, filter, knownCategories, time.UTC)

	require.Len(t, r.Trend, filter.Range.Days())
	assert.Len(t, r.Trend, 33, "leap year february")
	for i := 1; i < len(r.Trend); i++ {
		assert.Equal(t, r.Trend[i-1].Day.AddDate(0, 0, 1), r.Trend[i].Day)
	}
	assert.Equal(t, int64(1), r.Trend[0].Count)
	assert.Equal(t, int64(2), r.Trend[30].Count)
	assert.Equal(t, day(2024, 2, 29), r.Trend[30].Day)
}

func TestAggregateTrendUsesDataSpanWhenRangeOpen(t *testing.T) {
	tickets := []domain.Ticket{
		ticketAt("1", "Billing", domain.TicketPriorityLow, day(2024, 5, 10)),
		ticketAt("2", "Billing", domain.TicketPriorityLow, day(2024, 5, 6)),
	}
	r := Aggregate(tickets, domain.FilterState{}, knownCategories, time.UTC)

	require.Len(t, r.Trend, 5)
	assert.Equal(t, day(2024, 5, 6), r.Trend[0].Day)
	assert.Equal(t, day(2024, 5, 10), r.Trend[4].Day)
}

func TestAggregateTrendBucketsInLocation(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 02:00 UTC on Jan 2 is still Jan 1 in New York.
	tickets := []domain.Ticket{ticketAt("1", "Billing", domain.TicketPriorityLow, time.Date(2024, 1, 2, 2, 0, 0, 0, time.UTC))}
	r := Aggregate(tickets, domain.FilterState{}, knownCategories, loc)

	require.Len(t, r.Trend, 1)
	assert.Equal(t, "2024-01-01", r.Trend[0].Day.Format(time.DateOnly))
}

func TestAggregatePriorityOrderFollowsSeverity(t *testing.T) {
	want := []domain.TicketPriority{
		domain.TicketPriorityLow,
		domain.TicketPriorityMedium,
		domain.TicketPriorityHigh,
		domain.TicketPriorityCritical,
	}
	base := []domain.Ticket{
		ticketAt("1", "Billing", domain.TicketPriorityCritical, day(2024, 1, 1)),
		ticketAt("2", "Billing", domain.TicketPriorityCritical, day(2024, 1, 1)),
		ticketAt("3", "Billing", domain.TicketPriorityCritical, day(2024, 1, 1)),
		ticketAt("4", "Billing", domain.TicketPriorityLow, day(2024, 1, 1)),
		ticketAt("5", "Billing", domain.TicketPriorityHigh, day(2024, 1, 1)),
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		tickets := append([]domain.Ticket(nil), base...)
		rng.Shuffle(len(tickets), func(a, b int) { tickets[a], tickets[b] = tickets[b], tickets[a] })

		r := Aggregate(tickets, domain.FilterState{}, knownCategories, time.UTC)
		got := make([]domain.TicketPriority, 0, len(r.Priorities))
		for _, p := range r.Priorities {
			got = append(got, p.Priority)
		}
		assert.Equal(t, want, got)
	}
}

func TestAggregateUnknownValues(t *testing.T) {
	tickets := []domain.Ticket{
		ticketAt("1", "Billing", domain.TicketPriorityHigh, day(2024, 1, 1)),
		ticketAt("2", "Refunds", domain.TicketPriorityUnknown, day(2024, 1, 1)),
		ticketAt("3", "Legal", domain.TicketPriority("P0"), day(2024, 1, 1)),
	}

	r := Aggregate(tickets, domain.FilterState{}, knownCategories, time.UTC)

	assert.Equal(t, []domain.CategoryCount{
		{Category: "Billing", Count: 1},
		{Category: "Technical", Count: 0},
		{Category: "Account", Count: 0},
		{Category: domain.CategoryOther, Count: 2},
	}, r.Categories)

	last := r.Priorities[len(r.Priorities)-1]
	assert.Equal(t, domain.TicketPriorityUnknown, last.Priority)
	assert.Equal(t, int64(2), last.Count)
}

func TestAggregateRestrictsSummariesToFilteredValues(t *testing.T) {
	filter := domain.FilterState{Category: "Billing", Priority: domain.TicketPriorityHigh}
	tickets := []domain.Ticket{
		ticketAt("1", "Billing", domain.TicketPriorityHigh, day(2024, 1, 1)),
		ticketAt("2", "Billing", domain.TicketPriorityHigh, day(2024, 1, 2)),
	}

	r := Aggregate(tickets, filter, knownCategories, time.UTC)

	assert.Equal(t, []domain.CategoryCount{{Category: "Billing", Count: 2}}, r.Categories)
	assert.Equal(t, []domain.PriorityCount{{Priority: domain.TicketPriorityHigh, Count: 2}}, r.Priorities)
}

func TestAggregateCountsAlwaysSumToTotal(t *testing.T) {
	categories := []string{"Billing", "Technical", "Account", "Refunds", ""}
	priorities := []domain.TicketPriority{
		domain.TicketPriorityLow, domain.TicketPriorityMedium, domain.TicketPriorityHigh,
		domain.TicketPriorityCritical, domain.TicketPriorityUnknown,
	}
	rng := rand.New(rand.NewSource(42))
	start := day(2024, 1, 1)

	for iter := 0; iter < 50; iter++ {
		n := rng.Intn(200)
		tickets := make([]domain.Ticket, 0, n)
		for i := 0; i < n; i++ {
			tickets = append(tickets, ticketAt("t",
				categories[rng.Intn(len(categories))],
				priorities[rng.Intn(len(priorities))],
				start.Add(time.Duration(rng.Intn(90*24))*time.Hour)))
		}

		filter := domain.FilterState{}
		switch iter % 3 {
		case 1:
			filter.Category = categories[rng.Intn(3)]
		case 2:
			filter.Priority = priorities[rng.Intn(4)]
		}
		if iter%2 == 0 {
			filter.Range = domain.DateRange{Start: start, End: start.AddDate(0, 0, 89)}
		}

		selected := make([]domain.Ticket, 0, len(tickets))
		for _, tk := range tickets {
			if filter.Matches(tk) {
				selected = append(selected, tk)
			}
		}

		r := Aggregate(selected, filter, knownCategories, time.UTC)
		trend, cats, pris := sums(r)
		total := int64(len(selected))

		assert.Equal(t, total, r.Total)
		assert.Equal(t, total, trend, "trend sum")
		assert.Equal(t, total, cats, "category sum")
		assert.Equal(t, total, pris, "priority sum")
		if filter.Range.Bounded() {
			assert.Len(t, r.Trend, 90)
		}
	}
}

func TestAggregateIgnoresDuplicateKnownCategories(t *testing.T) {
	tickets := []domain.Ticket{
		ticketAt("1", "Billing", domain.TicketPriorityHigh, day(2024, 1, 1)),
		ticketAt("2", "Billing", domain.TicketPriorityLow, day(2024, 1, 2)),
		ticketAt("3", "Technical", domain.TicketPriorityLow, day(2024, 1, 2)),
	}

	r := Aggregate(tickets, domain.FilterState{}, []string{"Billing", "Technical", "Billing"}, time.UTC)

	assert.Equal(t, []domain.CategoryCount{
		{Category: "Billing", Count: 2},
		{Category: "Technical", Count: 1},
	}, r.Categories)
	_, cats, _ := sums(r)
	assert.Equal(t, r.Total, cats)
}

func TestMetrics(t *testing.T) {
	filter := domain.FilterState{Range: domain.DateRange{Start: day(2024, 1, 1), End: day(2024, 1, 10)}}
	tickets := make([]domain.Ticket, 25)
	for i := range tickets {
		tickets[i] = ticketAt("t", "Billing", domain.TicketPriorityLow, day(2024, 1, 1+i%10))
	}

	m := Metrics(Aggregate(tickets, filter, knownCategories, time.UTC), len(knownCategories))
	assert.Equal(t, int64(25), m.TotalTickets)
	assert.Equal(t, 10, m.Days)
	assert.InDelta(t, 2.5, m.AvgPerDay, 0.0001)
	assert.Equal(t, 3, m.Categories)

	empty := Metrics(domain.AggregateResult{}, 0)
	assert.Zero(t, empty.AvgPerDay)
}
