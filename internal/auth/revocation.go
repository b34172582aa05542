package auth

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// Revoker remembers logged out tokens until they expire.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// RedisRevoker stores revoked token ids in Redis.
type RedisRevoker struct {
	client *redis.Client
}

// NewRedisRevoker constructs a Redis backed revocation list.
func NewRedisRevoker(client *redis.Client) *RedisRevoker {
	return &RedisRevoker{client: client}
}

func revokedKey(tokenID string) string {
	return "session:revoked:" + tokenID
}

// Revoke marks tokenID revoked for ttl. Non-positive ttls are ignored since
// the token has already expired.
func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, revokedKey(tokenID), "1", ttl).Err()
}

// IsRevoked reports whether tokenID was revoked.
func (r *RedisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := r.client.Get(ctx, revokedKey(tokenID)).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, err
	}
}
