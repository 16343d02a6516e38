package auth

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "auth:revoked:"

// Revocations remembers signed out sessions until every token of the session has expired.
type Revocations interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}

// MemoryRevocations is the single instance store. Entries share one ttl.
type MemoryRevocations struct {
	lru *expirable.LRU[string, struct{}]
}

func NewMemoryRevocations(size int, ttl time.Duration) *MemoryRevocations {
	return &MemoryRevocations{lru: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

func (m *MemoryRevocations) Revoke(_ context.Context, sessionID string, _ time.Duration) error {
	m.lru.Add(sessionID, struct{}{})
	return nil
}

func (m *MemoryRevocations) IsRevoked(_ context.Context, sessionID string) (bool, error) {
	_, ok := m.lru.Get(sessionID)
	return ok, nil
}

// RedisRevocations shares sign outs between server instances.
type RedisRevocations struct {
	client *redis.Client
}

func NewRedisRevocations(client *redis.Client) *RedisRevocations {
	return &RedisRevocations{client: client}
}

func (r *RedisRevocations) Revoke(ctx context.Context, sessionID string, ttl time.Duration) error {
	return r.client.Set(ctx, revokedKeyPrefix+sessionID, 1, ttl).Err()
}

func (r *RedisRevocations) IsRevoked(ctx context.Context, sessionID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedKeyPrefix+sessionID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
