// Package session keeps the list of session tokens that were explicitly
// ended by logout. Tokens are identified by their jti and listed only
// until they would have expired anyway.
package session

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Revoker records and checks revoked token ids.
type Revoker interface {
	Revoke(ctx context.Context, jti string, exp time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	Enabled() bool
}

// redisCmds is the part of *redis.Client the store uses.
type redisCmds interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisRevoker stores revoked ids as keys that expire together with the
// token. A RedisRevoker without a client is disabled: Revoke is a no-op and
// nothing is ever reported revoked.
type RedisRevoker struct {
	rdb    redisCmds
	prefix string
	now    func() time.Time
}

// NewRedisRevoker returns a revoker backed by rdb. rdb may be nil.
func NewRedisRevoker(rdb *redis.Client, prefix string) *RedisRevoker {
	r := &RedisRevoker{prefix: prefix, now: time.Now}
	if rdb != nil {
		r.rdb = rdb
	}
	return r
}

// Enabled reports whether revocations are persisted.
func (r *RedisRevoker) Enabled() bool { return r.rdb != nil }

func (r *RedisRevoker) key(jti string) string {
	return r.prefix + ":revoked:" + jti
}

// Revoke lists jti until exp. Tokens that already expired are skipped.
func (r *RedisRevoker) Revoke(ctx context.Context, jti string, exp time.Time) error {
	if r.rdb == nil || jti == "" {
		return nil
	}
	ttl := exp.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, r.key(jti), 1, ttl).Err()
}

// IsRevoked reports whether jti was revoked.
func (r *RedisRevoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if r.rdb == nil {
		return false, nil
	}
	n, err := r.rdb.Exists(ctx, r.key(jti)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
