package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/frahmantamala/fitness-content/internal/core/events"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

const permissionKeyPrefix = "perm:role:"

// PermissionCache memoizes role -> permission names.
type PermissionCache interface {
	Get(ctx context.Context, role string) ([]string, bool)
	Set(ctx context.Context, role string, perms []string)
	Purge(ctx context.Context)
}

type noCache struct{}

func (noCache) Get(context.Context, string) ([]string, bool) { return nil, false }
func (noCache) Set(context.Context, string, []string)        {}
func (noCache) Purge(context.Context)                        {}

// TieredCache keeps an in-process LRU in front of an optional redis.
type TieredCache struct {
	local  *expirable.LRU[string, []string]
	remote *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewTieredCache(size int, ttl time.Duration, remote *redis.Client, logger *slog.Logger) *TieredCache {
	if size <= 0 {
		size = 256
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &TieredCache{
		local:  expirable.NewLRU[string, []string](size, nil, ttl),
		remote: remote,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *TieredCache) Get(ctx context.Context, role string) ([]string, bool) {
	if perms, ok := c.local.Get(role); ok {
		return perms, true
	}
	if c.remote == nil {
		return nil, false
	}

	raw, err := c.remote.Get(ctx, permissionKeyPrefix+role).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("permission cache: redis get failed", "role", role, "error", err)
		}
		return nil, false
	}

	var perms []string
	if err := json.Unmarshal(raw, &perms); err != nil {
		c.logger.Warn("permission cache: corrupt entry", "role", role, "error", err)
		return nil, false
	}
	c.local.Add(role, perms)
	return perms, true
}

func (c *TieredCache) Set(ctx context.Context, role string, perms []string) {
	c.local.Add(role, perms)
	if c.remote == nil {
		return
	}

	raw, err := json.Marshal(perms)
	if err != nil {
		return
	}
	if err := c.remote.Set(ctx, permissionKeyPrefix+role, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("permission cache: redis set failed", "role", role, "error", err)
	}
}

func (c *TieredCache) Purge(ctx context.Context) {
	c.local.Purge()
	if c.remote == nil {
		return
	}

	var keys []string
	iter := c.remote.Scan(ctx, 0, permissionKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("permission cache: redis scan failed", "error", err)
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := c.remote.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("permission cache: redis delete failed", "error", err)
	}
}

// InvalidateOn purges the cache whenever roles or permissions change.
func (c *TieredCache) InvalidateOn(bus *events.EventBus) {
	bus.Subscribe(events.EventTypeRBACChanged, func(ctx context.Context, _ events.Event) error {
		c.Purge(ctx)
		return nil
	})
}
