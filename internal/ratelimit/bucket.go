// Package ratelimit implements the shared token bucket gating outbound
// sends. The bucket lives in Redis so every dispatcher process competes for
// the same tokens; acquire and refill are single Lua scripts, so there is
// no check-then-decrement window between concurrent callers.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/dispatch-engine/internal/pkg/logger"
)

// Acquire decrements one token only if one is available. A missing key is
// a full bucket (fresh start or expiry after idle).
const acquireLuaScript = `
local capacity = tonumber(ARGV[1])

local current = redis.call("GET", KEYS[1])
if current == false then
    redis.call("SET", KEYS[1], capacity - 1)
    return {1, capacity - 1}
end

current = tonumber(current)
if current <= 0 then
    return {0, current}
end

current = redis.call("DECRBY", KEYS[1], 1)
return {1, current}
`

// Refill adds the per-second rate, clamped to capacity.
const refillLuaScript = `
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])

local current = redis.call("GET", KEYS[1])
if current == false then
    current = capacity
else
    current = tonumber(current)
end

local next = current + rate
if next > capacity then
    next = capacity
end
if next < 0 then
    next = 0
end
redis.call("SET", KEYS[1], next)
return next
`

// TokenBucket is the single shared gate for all dispatch attempts. It is
// not per-recipient or per-tenant.
type TokenBucket struct {
	client       *redis.Client
	key          string
	capacity     int64
	refillPerSec int64

	acquireScript *redis.Script
	refillScript  *redis.Script
}

// NewTokenBucket creates a bucket with the given capacity and refill rate.
func NewTokenBucket(client *redis.Client, key string, capacity, refillPerSec int64) *TokenBucket {
	if key == "" {
		key = "dispatch:bucket"
	}
	return &TokenBucket{
		client:        client,
		key:           key,
		capacity:      capacity,
		refillPerSec:  refillPerSec,
		acquireScript: redis.NewScript(acquireLuaScript),
		refillScript:  redis.NewScript(refillLuaScript),
	}
}

// TryAcquire atomically takes one token. Returns false when the bucket is
// empty; the caller defers the message instead of blocking.
func (b *TokenBucket) TryAcquire(ctx context.Context) (bool, error) {
	result, err := b.acquireScript.Run(ctx, b.client, []string{b.key}, b.capacity).Slice()
	if err != nil {
		return false, fmt.Errorf("token acquire: %w", err)
	}
	return result[0].(int64) == 1, nil
}

// RefillOnce applies one refill step: tokens = min(current + rate, capacity).
func (b *TokenBucket) RefillOnce(ctx context.Context) (int64, error) {
	n, err := b.refillScript.Run(ctx, b.client, []string{b.key}, b.capacity, b.refillPerSec).Int64()
	if err != nil {
		return 0, fmt.Errorf("token refill: %w", err)
	}
	return n, nil
}

// Tokens returns the current token count.
func (b *TokenBucket) Tokens(ctx context.Context) (int64, error) {
	n, err := b.client.Get(ctx, b.key).Int64()
	if err == redis.Nil {
		return b.capacity, nil
	}
	if err != nil {
		return 0, fmt.Errorf("token count: %w", err)
	}
	return n, nil
}

// StartRefill runs the refill loop once per second until ctx is cancelled.
func (b *TokenBucket) StartRefill(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("token refill loop stopped")
				return
			case <-ticker.C:
				if _, err := b.RefillOnce(ctx); err != nil && ctx.Err() == nil {
					logger.Warn("token refill failed", "error", err)
				}
			}
		}
	}()
}
