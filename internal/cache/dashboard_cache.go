package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/ticket-dashboard/internal/domain"
)

const (
	viewKeyPrefix = "dashboard:v1:view:"
	optionsKey    = "dashboard:v1:options"
)

// DashboardCache stores computed dashboard views and filter options.
type DashboardCache interface {
	GetView(ctx context.Context, filter domain.FilterState) (*domain.DashboardView, bool, error)
	SetView(ctx context.Context, view *domain.DashboardView) error
	GetOptions(ctx context.Context) (*domain.FilterOptions, bool, error)
	SetOptions(ctx context.Context, opts *domain.FilterOptions) error
}

// RedisDashboardCache keeps entries in Redis for a fixed TTL.
// A nil client or a non-positive TTL turns every call into a miss or a no-op.
type RedisDashboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDashboardCache creates a cache backed by client.
func NewRedisDashboardCache(client *redis.Client, ttl time.Duration) *RedisDashboardCache {
	return &RedisDashboardCache{client: client, ttl: ttl}
}

// ViewKey builds the Redis key for a filter state.
func ViewKey(filter domain.FilterState) string {
	sum := sha256.Sum256([]byte(filter.Key()))
	return viewKeyPrefix + hex.EncodeToString(sum[:16])
}

func (c *RedisDashboardCache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

func (c *RedisDashboardCache) GetView(ctx context.Context, filter domain.FilterState) (*domain.DashboardView, bool, error) {
	var view domain.DashboardView
	ok, err := c.get(ctx, ViewKey(filter), &view)
	if !ok || err != nil {
		return nil, false, err
	}
	return &view, true, nil
}

func (c *RedisDashboardCache) SetView(ctx context.Context, view *domain.DashboardView) error {
	return c.set(ctx, ViewKey(view.Filter), view)
}

func (c *RedisDashboardCache) GetOptions(ctx context.Context) (*domain.FilterOptions, bool, error) {
	var opts domain.FilterOptions
	ok, err := c.get(ctx, optionsKey, &opts)
	if !ok || err != nil {
		return nil, false, err
	}
	return &opts, true, nil
}

func (c *RedisDashboardCache) SetOptions(ctx context.Context, opts *domain.FilterOptions) error {
	return c.set(ctx, optionsKey, opts)
}

func (c *RedisDashboardCache) get(ctx context.Context, key string, dest any) (bool, error) {
	if !c.enabled() {
		return false, nil
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		// A corrupt entry is treated as a miss and overwritten on the next store.
		return false, nil
	}
	return true, nil
}

func (c *RedisDashboardCache) set(ctx context.Context, key string, value any) error {
	if !c.enabled() {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}
