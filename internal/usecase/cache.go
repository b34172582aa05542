package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// verificationTTL bounds how long a verification stays readable from Redis
// before lookups fall through to the database.
const verificationTTL = 10 * time.Minute

// Cache abstracts the Redis operations used by the use cases to make testing easier.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

// RedisCache is a concrete implementation backed by go-redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache constructs a new Redis-backed cache adapter.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Set writes a value to Redis.
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

// Get retrieves a cached value from Redis. A miss is reported as redis.Nil.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

func verificationKey(requestID string) string {
	return "verification:" + requestID
}

func (uc *ProfileUseCase) cacheVerification(ctx context.Context, v *Verification) error {
	serialized, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode verification: %w", err)
	}
	return uc.withRedisRetry(ctx, v.RequestID, "cache.set.verification", func() error {
		return uc.cache.Set(ctx, verificationKey(v.RequestID), string(serialized), verificationTTL)
	})
}

// cachedVerification returns redis.Nil on a miss. An undecodable entry is
// treated as a miss.
func (uc *ProfileUseCase) cachedVerification(ctx context.Context, requestID string) (*Verification, error) {
	raw, err := uc.withRedisGet(ctx, requestID, "cache.get.verification", verificationKey(requestID))
	if err != nil {
		return nil, err
	}
	var v Verification
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		uc.logger.Warn("discarding undecodable cached verification", zap.String("request_id", requestID), zap.Error(err))
		return nil, redis.Nil
	}
	return &v, nil
}
