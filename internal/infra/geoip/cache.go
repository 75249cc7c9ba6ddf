package geoip

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
	"github.com/sifan077/GeoLink/internal/app/model"
	metrics "github.com/sifan077/GeoLink/internal/infra/prometheus"
	"go.uber.org/zap"
)

const (
	cacheKeyPrefix  = "geoip:"
	defaultCacheTTL = 24 * time.Hour
)

// Cache is the subset of *redis.Client the cached locator needs.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

// CachedLocator memoises resolved locations in Redis. Cache trouble only
// costs a direct lookup; empty results are not stored.
type CachedLocator struct {
	next   Locator
	cache  Cache
	ttl    time.Duration
	logger *zap.Logger
}

var _ Locator = (*CachedLocator)(nil)

// NewCachedLocator wraps next with a Redis-backed cache.
func NewCachedLocator(next Locator, cache Cache, ttl time.Duration, logger *zap.Logger) *CachedLocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &CachedLocator{next: next, cache: cache, ttl: ttl, logger: logger}
}

func (l *CachedLocator) Lookup(ctx context.Context, ip string) model.Location {
	ip = strings.TrimSpace(ip)
	if ip == "" || IsLocal(ip) {
		return l.next.Lookup(ctx, ip)
	}

	key := cacheKeyPrefix + ip
	raw, err := l.cache.Get(ctx, key).Result()
	switch {
	case err == nil:
		var loc model.Location
		if jsonErr := json.Unmarshal([]byte(raw), &loc); jsonErr == nil {
			metrics.GeoLookups.WithLabelValues("cache_hit").Inc()
			return loc
		}
		l.logger.Warn("discarding malformed geoip cache entry", zap.String("key", key))
	case !errors.Is(err, redis.Nil):
		l.logger.Warn("geoip cache read failed", zap.String("key", key), zap.Error(err))
	}

	loc := l.next.Lookup(ctx, ip)
	if loc.IsZero() {
		return loc
	}

	payload, err := json.Marshal(loc)
	if err != nil {
		return loc
	}
	if err := l.cache.Set(ctx, key, payload, l.ttl).Err(); err != nil {
		l.logger.Warn("geoip cache write failed", zap.String("key", key), zap.Error(err))
	}
	return loc
}
