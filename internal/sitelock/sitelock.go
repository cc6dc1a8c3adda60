// Package sitelock provides the single-flight lock that keeps at most one ad
// hoc pipeline run active per site.
package sitelock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultTTL bounds how long a crashed process can keep a site locked.
const DefaultTTL = time.Hour

// KeyPrefix namespaces lock keys in Redis.
const KeyPrefix = "autopilot:run-lock:"

// Key returns the Redis key guarding a site.
func Key(siteID uuid.UUID) string {
	return KeyPrefix + siteID.String()
}

// RedisClient is the subset of the go-redis client the locker needs.
type RedisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// unlockScript deletes the key only if it still holds our token, so a lock
// that expired and was taken over is never released by the old holder.
const unlockScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// RedisLocker locks sites with SET NX PX and a per-acquisition token.
type RedisLocker struct {
	client RedisClient
	ttl    time.Duration

	mu     sync.Mutex
	tokens map[uuid.UUID]string
}

// NewRedisLocker creates a locker. A zero ttl uses DefaultTTL.
func NewRedisLocker(client RedisClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisLocker{client: client, ttl: ttl, tokens: map[uuid.UUID]string{}}
}

// TryLock acquires the site's lock. It returns false when another holder has it.
func (l *RedisLocker) TryLock(ctx context.Context, siteID uuid.UUID) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, Key(siteID), token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to lock site: %w", err)
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.tokens[siteID] = token
	l.mu.Unlock()
	return true, nil
}

// Unlock releases a lock this locker acquired. Unknown sites are ignored.
func (l *RedisLocker) Unlock(ctx context.Context, siteID uuid.UUID) error {
	l.mu.Lock()
	token, ok := l.tokens[siteID]
	delete(l.tokens, siteID)
	l.mu.Unlock()
	if !ok {
		return nil
	}

	if err := l.client.Eval(ctx, unlockScript, []string{Key(siteID)}, token).Err(); err != nil {
		return fmt.Errorf("failed to unlock site: %w", err)
	}
	return nil
}

// PostgresStore is the database-backed run marker.
type PostgresStore interface {
	TryLockSite(ctx context.Context, siteID uuid.UUID, ttl time.Duration) (bool, error)
	UnlockSite(ctx context.Context, siteID uuid.UUID) error
}

// PostgresLocker locks sites through the running_since column. It is used
// when no Redis is configured.
type PostgresLocker struct {
	store PostgresStore
	ttl   time.Duration
}

// NewPostgresLocker creates a locker. A zero ttl uses DefaultTTL.
func NewPostgresLocker(store PostgresStore, ttl time.Duration) *PostgresLocker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PostgresLocker{store: store, ttl: ttl}
}

// TryLock acquires the site's lock, taking over locks older than the ttl.
func (l *PostgresLocker) TryLock(ctx context.Context, siteID uuid.UUID) (bool, error) {
	return l.store.TryLockSite(ctx, siteID, l.ttl)
}

// Unlock clears the run marker.
func (l *PostgresLocker) Unlock(ctx context.Context, siteID uuid.UUID) error {
	return l.store.UnlockSite(ctx, siteID)
}
