package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/DovakiinZ/Sin-City-sub001/internal/model"
)

const (
	GuestCacheTTL      = 2 * time.Minute
	EnrichmentCacheTTL = 1 * time.Hour
)

// CacheService provides a Redis cache-aside layer for admin guest views and
// network enrichment lookups.
type CacheService struct {
	rdb *redis.Client
}

// NewCacheService creates a new CacheService. If redisURL is empty or connection
// fails, it returns a CacheService with a nil client (cache operations become no-ops).
func NewCacheService(redisURL string, logger zerolog.Logger) *CacheService {
	if redisURL == "" {
		logger.Info().Msg("redis: no URL configured, caching disabled")
		return &CacheService{}
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis: invalid URL, caching disabled")
		return &CacheService{}
	}

	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis: connection failed, caching disabled")
		_ = rdb.Close()
		return &CacheService{}
	}

	logger.Info().Msg("redis: connected, caching enabled")
	return &CacheService{rdb: rdb}
}

// Client returns the underlying Redis client (for health checks). May be nil.
func (c *CacheService) Client() *redis.Client {
	return c.rdb
}

// GetGuest returns a cached guest, or nil on a miss or when caching is disabled.
func (c *CacheService) GetGuest(ctx context.Context, id string) (*model.Guest, error) {
	var g model.Guest
	ok, err := c.getJSON(ctx, guestKey(id), &g)
	if !ok || err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *CacheService) SetGuest(ctx context.Context, g *model.Guest) error {
	return c.setJSON(ctx, guestKey(g.ID), g, GuestCacheTTL)
}

// InvalidateGuests removes guests from cache (called after guest changes).
func (c *CacheService) InvalidateGuests(ctx context.Context, ids ...string) error {
	if c.rdb == nil || len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = guestKey(id)
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// GetEnrichment returns cached network metadata for an IP hash.
func (c *CacheService) GetEnrichment(ctx context.Context, ipHash string) (*model.Enrichment, error) {
	var e model.Enrichment
	ok, err := c.getJSON(ctx, enrichmentKey(ipHash), &e)
	if !ok || err != nil {
		return nil, err
	}
	return &e, nil
}

func (c *CacheService) SetEnrichment(ctx context.Context, ipHash string, e *model.Enrichment) error {
	return c.setJSON(ctx, enrichmentKey(ipHash), e, EnrichmentCacheTTL)
}

// Close shuts down the Redis connection.
func (c *CacheService) Close() error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}

func (c *CacheService) getJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c.rdb == nil {
		return false, nil
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (c *CacheService) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if c.rdb == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, ttl).Err()
}

func guestKey(id string) string {
	return fmt.Sprintf("guest:%s", id)
}

func enrichmentKey(ipHash string) string {
	return fmt.Sprintf("enrichment:%s", ipHash)
}
