package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func billingFilter() domain.FilterState {
	return domain.FilterState{
		Category: "Billing",
		Range: domain.DateRange{
			Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestViewRoundTripAndExpiry(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := NewRedisDashboardCache(client, 5*time.Minute)
	ctx := context.Background()

	view := &domain.DashboardView{
		Filter:  billingFilter(),
		Metrics: domain.DashboardMetrics{TotalTickets: 3, Days: 31},
		Aggregates: domain.AggregateResult{
			Total:      3,
			Categories: []domain.CategoryCount{{Category: "Billing", Count: 3}},
		},
		Tickets: []domain.Ticket{{ID: "T-1", Category: "Billing", Priority: domain.TicketPriorityHigh}},
	}

	_, ok, err := c.GetView(ctx, view.Filter)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetView(ctx, view))
	assert.True(t, mr.Exists(ViewKey(view.Filter)))
	assert.Equal(t, 5*time.Minute, mr.TTL(ViewKey(view.Filter)))

	got, ok, err := c.GetView(ctx, billingFilter())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(3), got.Metrics.TotalTickets)
	assert.Equal(t, "T-1", got.Tickets[0].ID)
	assert.Equal(t, domain.TicketPriorityHigh, got.Tickets[0].Priority)

	mr.FastForward(6 * time.Minute)
	_, ok, err = c.GetView(ctx, billingFilter())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestViewKeyDependsOnEveryFilterField(t *testing.T) {
	base := billingFilter()
	other := base
	other.Priority = domain.TicketPriorityLow

	assert.Equal(t, ViewKey(base), ViewKey(billingFilter()))
	assert.NotEqual(t, ViewKey(base), ViewKey(other))
	assert.NotEqual(t, ViewKey(base), ViewKey(domain.FilterState{}))
}

func TestOptionsRoundTrip(t *testing.T) {
	_, client := setupTestRedis(t)
	c := NewRedisDashboardCache(client, time.Minute)
	ctx := context.Background()

	earliest := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, c.SetOptions(ctx, &domain.FilterOptions{
		Categories: []string{"Billing"},
		Priorities: []domain.TicketPriority{domain.TicketPriorityLow},
		MinDate:    &earliest,
	}))

	got, ok, err := c.GetOptions(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"Billing"}, got.Categories)
	require.NotNil(t, got.MinDate)
	assert.True(t, earliest.Equal(*got.MinDate))
	assert.Nil(t, got.MaxDate)
}

func TestCorruptEntryIsAMiss(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := NewRedisDashboardCache(client, time.Minute)

	require.NoError(t, mr.Set(optionsKey, "{not json"))
	_, ok, err := c.GetOptions(context.Background())
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestDisabledCache(t *testing.T) {
	mr, client := setupTestRedis(t)
	ctx := context.Background()

	for name, c := range map[string]*RedisDashboardCache{
		"zero ttl":   NewRedisDashboardCache(client, 0),
		"nil client": NewRedisDashboardCache(nil, time.Minute),
	} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, c.SetView(ctx, &domain.DashboardView{Filter: billingFilter()}))
			_, ok, err := c.GetView(ctx, billingFilter())
			assert.NoError(t, err)
			assert.False(t, ok)
		})
	}
	assert.Empty(t, mr.Keys())
}

func TestRedisDownReturnsError(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := NewRedisDashboardCache(client, time.Minute)
	mr.Close()

	_, _, err := c.GetView(context.Background(), billingFilter())
	assert.Error(t, err)
}
