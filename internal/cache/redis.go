package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/utafrali/brandcatalog/internal/domain"
)

const keyPrefix = "brand:detail:"

// BrandCache is a cache-aside store for public brand detail pages, keyed by slug.
type BrandCache struct {
	client  redis.UniversalClient
	ttl     time.Duration
	lookups *prometheus.CounterVec
}

// NewBrandCache creates a cache. reg may be nil to skip metrics.
func NewBrandCache(client redis.UniversalClient, ttl time.Duration, reg prometheus.Registerer) *BrandCache {
	c := &BrandCache{client: client, ttl: ttl}
	if reg != nil {
		c.lookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "brand_cache_lookups_total",
			Help: "Brand detail cache lookups by result.",
		}, []string{"result"})
		reg.MustRegister(c.lookups)
	}
	return c
}

func (c *BrandCache) observe(result string) {
	if c.lookups != nil {
		c.lookups.WithLabelValues(result).Inc()
	}
}

// Get returns the cached detail for slug. A miss is (nil, false, nil).
func (c *BrandCache) Get(ctx context.Context, slug string) (*domain.Detail, bool, error) {
	data, err := c.client.Get(ctx, keyPrefix+slug).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.observe("miss")
			return nil, false, nil
		}
		c.observe("error")
		return nil, false, fmt.Errorf("redis get brand %s: %w", slug, err)
	}

	var d domain.Detail
	if err := json.Unmarshal(data, &d); err != nil {
		c.observe("error")
		return nil, false, fmt.Errorf("unmarshal cached brand %s: %w", slug, err)
	}
	c.observe("hit")
	return &d, true, nil
}

// Set stores d under its slug for the configured TTL.
func (c *BrandCache) Set(ctx context.Context, d *domain.Detail) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal brand %s: %w", d.Slug, err)
	}
	if err := c.client.Set(ctx, keyPrefix+d.Slug, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set brand %s: %w", d.Slug, err)
	}
	return nil
}

// Invalidate drops the entries for slugs. Empty slugs are ignored.
func (c *BrandCache) Invalidate(ctx context.Context, slugs ...string) error {
	keys := make([]string, 0, len(slugs))
	for _, s := range slugs {
		if s != "" {
			keys = append(keys, keyPrefix+s)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del brands: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func (c *BrandCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
