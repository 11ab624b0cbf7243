// Package replay provides a single-use guard for verified gate tokens. A
// token inside its validity window can otherwise be presented any number of
// times; the guard marks the first use in redis so repeats are denied.
package replay

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "gate:token:"

// Guard records first use of a token. FirstUse returns true when the token
// has not been seen within ttl.
type Guard interface {
	FirstUse(ctx context.Context, token string, ttl time.Duration) (bool, error)
}

type redisGuard struct {
	client *redis.Client
}

// NewRedisGuard builds a guard backed by the given redis client.
func NewRedisGuard(client *redis.Client) Guard {
	return &redisGuard{client: client}
}

// FirstUse stores a hash of the token with SET NX. Only the hash is kept so
// raw credentials never land in redis.
func (g *redisGuard) FirstUse(ctx context.Context, token string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = time.Minute
	}
	sum := sha256.Sum256([]byte(token))
	key := keyPrefix + hex.EncodeToString(sum[:])
	return g.client.SetNX(ctx, key, 1, ttl).Result()
}

type noopGuard struct{}

// NewNoopGuard returns a guard that accepts every token, for deployments
// that disable replay protection.
func NewNoopGuard() Guard { return noopGuard{} }

func (noopGuard) FirstUse(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}
