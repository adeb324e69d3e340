// Package cache implements the short-lived query cache: TTL entries keyed by
// logical query identity, with in-flight coalescing so N concurrent callers
// for the same key share one underlying fetch.
package cache

import (
	"context"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mintlaunch/launchindex/pkg/config"
	lierrors "github.com/mintlaunch/launchindex/pkg/errors"
	"github.com/mintlaunch/launchindex/pkg/logging"
)

// Class selects the TTL for a cache entry. Shorter TTLs serve data that
// changes with user action; longer TTLs serve slowly-changing aggregates.
type Class int

const (
	ClassHome Class = iota
	ClassCard
	ClassPortfolio
	ClassLeaderboard
)

// QueryCache owns the entry map and the in-flight request map. All mutation
// goes through Do/Set and the invalidation surface; nothing else touches the
// maps.
type QueryCache struct {
	entries *ttlcache.Cache[string, any]
	group   singleflight.Group
	ttls    map[Class]time.Duration
	log     *logging.ColoredLogger
}

// New creates a query cache with per-class TTLs from the config and starts
// its expiry janitor.
func New(cfg config.CacheConfig, log *logging.ColoredLogger) *QueryCache {
	c := &QueryCache{
		entries: ttlcache.New[string, any](
			ttlcache.WithDisableTouchOnHit[string, any](),
		),
		ttls: map[Class]time.Duration{
			ClassHome:        cfg.HomeTTL,
			ClassCard:        cfg.CardTTL,
			ClassPortfolio:   cfg.PortfolioTTL,
			ClassLeaderboard: cfg.LeaderboardTTL,
		},
		log: log,
	}
	go c.entries.Start()
	return c
}

// Do returns the live entry for key if one exists; otherwise it joins the
// in-flight fetch for key, or starts one. Every concurrent caller for the
// same key observes the same result or the same failure. A failed fetch
// caches nothing.
func (c *QueryCache) Do(ctx context.Context, key string, class Class, fetch func(ctx context.Context) (any, error)) (any, error) {
	if item := c.entries.Get(key); item != nil {
		return item.Value(), nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		// A winner may have populated the entry between our miss and the
		// group admitting us.
		if item := c.entries.Get(key); item != nil {
			return item.Value(), nil
		}
		val, err := fetch(ctx)
		if err != nil {
			return nil, lierrors.NewQueryFetchError(key, err)
		}
		c.entries.Set(key, val, c.ttl(class))
		return val, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		c.log.ComponentDebug(logging.ComponentCache, "coalesced in-flight request",
			zap.String("key", key))
	}
	return v, nil
}

// Get returns the live entry for key without triggering a fetch.
func (c *QueryCache) Get(key string) (any, bool) {
	if item := c.entries.Get(key); item != nil {
		return item.Value(), true
	}
	return nil, false
}

// Set stores a value under key with its class TTL. Used by batch queries
// that fetch several entities in one round trip and cache each separately.
func (c *QueryCache) Set(key string, class Class, value any) {
	c.entries.Set(key, value, c.ttl(class))
}

// InvalidateUserScoped evicts every portfolio- and home-scoped entry. Wired
// to wallet connect/disconnect signals.
func (c *QueryCache) InvalidateUserScoped() {
	n := c.deleteByPrefix(prefixPortfolio) + c.deleteByPrefix(prefixHome)
	c.log.ComponentDebug(logging.ComponentCache, "invalidated user-scoped entries",
		zap.Int("evicted", n))
}

// InvalidateEntity evicts one entity's card and every home-scoped aggregate,
// since aggregates embed entity data. Unrelated entities stay cached.
func (c *QueryCache) InvalidateEntity(address string) {
	c.entries.Delete(KeyCard(address))
	n := c.deleteByPrefix(prefixHome)
	c.log.ComponentDebug(logging.ComponentCache, "invalidated entity",
		zap.String("address", address), zap.Int("home_evicted", n))
}

// Clear flushes every entry. Used when the backend identity changes.
func (c *QueryCache) Clear() {
	c.entries.DeleteAll()
	c.log.ComponentDebug(logging.ComponentCache, "cache cleared")
}

// Len returns the number of live entries.
func (c *QueryCache) Len() int {
	return c.entries.Len()
}

// Close stops the expiry janitor.
func (c *QueryCache) Close() {
	c.entries.Stop()
}

func (c *QueryCache) ttl(class Class) time.Duration {
	if ttl, ok := c.ttls[class]; ok {
		return ttl
	}
	return 10 * time.Second
}

func (c *QueryCache) deleteByPrefix(prefix string) int {
	n := 0
	for _, key := range c.entries.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.entries.Delete(key)
			n++
		}
	}
	return n
}

// Cached is the typed convenience wrapper around QueryCache.Do.
func Cached[T any](ctx context.Context, c *QueryCache, key string, class Class, fetch func(ctx context.Context) (T, error)) (T, error) {
	v, err := c.Do(ctx, key, class, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return v.(T), nil
}
