package sitelock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis keeps keys in memory and evaluates the unlock script by hand.
type fakeRedis struct {
	values  map[string]string
	ttls    map[string]time.Duration
	evals   int
	failSet error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if f.failSet != nil {
		return redis.NewBoolResult(false, f.failSet)
	}
	if _, ok := f.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.values[key] = value.(string)
	f.ttls[key] = expiration
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Eval(_ context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	f.evals++
	if script != unlockScript || len(keys) != 1 || len(args) != 1 {
		return redis.NewCmdResult(nil, errors.New("unexpected script call"))
	}
	if f.values[keys[0]] == args[0].(string) {
		delete(f.values, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestKey(t *testing.T) {
	id := uuid.MustParse("6f1c1a52-9a57-4d0b-9c55-2b2a0f1f3e10")
	assert.Equal(t, "autopilot:run-lock:6f1c1a52-9a57-4d0b-9c55-2b2a0f1f3e10", Key(id))
}

func TestRedisLocker_SingleFlight(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	a := NewRedisLocker(client, 10*time.Minute)
	b := NewRedisLocker(client, 10*time.Minute)
	site := uuid.New()

	ok, err := a.TryLock(ctx, site)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 10*time.Minute, client.ttls[Key(site)])

	ok, err = b.TryLock(ctx, site)
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be rejected")

	// b never held the lock, so its unlock must not release a's.
	require.NoError(t, b.Unlock(ctx, site))
	assert.Zero(t, client.evals)
	assert.Contains(t, client.values, Key(site))

	require.NoError(t, a.Unlock(ctx, site))
	assert.NotContains(t, client.values, Key(site))

	ok, err = b.TryLock(ctx, site)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLocker_DoesNotReleaseTakenOverLock(t *testing.T) {
	ctx := context.Background()
	client := newFakeRedis()
	l := NewRedisLocker(client, 0)
	site := uuid.New()

	ok, err := l.TryLock(ctx, site)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, DefaultTTL, client.ttls[Key(site)])

	// The lock expired and another process took it.
	client.values[Key(site)] = "someone-else"

	require.NoError(t, l.Unlock(ctx, site))
	assert.Equal(t, "someone-else", client.values[Key(site)])
}

func TestRedisLocker_Error(t *testing.T) {
	client := newFakeRedis()
	client.failSet = errors.New("connection refused")
	l := NewRedisLocker(client, time.Minute)

	ok, err := l.TryLock(context.Background(), uuid.New())
	assert.False(t, ok)
	assert.ErrorContains(t, err, "connection refused")
}

type fakePostgres struct {
	ttl      time.Duration
	locked   map[uuid.UUID]bool
	unlocked []uuid.UUID
}

func (f *fakePostgres) TryLockSite(_ context.Context, siteID uuid.UUID, ttl time.Duration) (bool, error) {
	f.ttl = ttl
	if f.locked[siteID] {
		return false, nil
	}
	f.locked[siteID] = true
	return true, nil
}

func (f *fakePostgres) UnlockSite(_ context.Context, siteID uuid.UUID) error {
	delete(f.locked, siteID)
	f.unlocked = append(f.unlocked, siteID)
	return nil
}

func TestPostgresLocker(t *testing.T) {
	ctx := context.Background()
	store := &fakePostgres{locked: map[uuid.UUID]bool{}}
	l := NewPostgresLocker(store, 0)
	site := uuid.New()

	ok, err := l.TryLock(ctx, site)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, DefaultTTL, store.ttl)

	ok, err = l.TryLock(ctx, site)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, l.Unlock(ctx, site))
	assert.Equal(t, []uuid.UUID{site}, store.unlocked)
}
