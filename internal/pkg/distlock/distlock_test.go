package distlock

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLock_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)

	a := NewRedisLock(client, "notify:EMAIL:person:1", time.Minute)
	b := NewRedisLock(client, "notify:EMAIL:person:1", time.Minute)

	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, mr.Exists("lock:notify:EMAIL:person:1"))

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "second owner must not acquire")

	// b does not own the lock, so its release is a no-op.
	require.NoError(t, b.Release(ctx))
	assert.True(t, mr.Exists("lock:notify:EMAIL:person:1"))

	require.NoError(t, a.Release(ctx))
	assert.False(t, mr.Exists("lock:notify:EMAIL:person:1"))

	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLock_ExpiresAndStaleOwnerCannotRelease(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)

	a := NewRedisLock(client, "k", 10*time.Second)
	ok, err := a.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(5 * time.Second)
	assert.True(t, mr.Exists("lock:k"))

	mr.FastForward(10 * time.Second)
	b := NewRedisLock(client, "k", time.Minute)
	ok, err = b.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	// a's lease expired; its release must not free b's lock.
	require.NoError(t, a.Release(ctx))
	assert.True(t, mr.Exists("lock:k"))
}

func TestLocalLock(t *testing.T) {
	ctx := context.Background()
	table := NewLocalTable()
	now := time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC)
	table.now = func() time.Time { return now }

	a := table.Lock("session:abc", time.Minute)
	b := table.Lock("session:abc", time.Minute)

	ok, _ := a.Acquire(ctx)
	assert.True(t, ok)
	ok, _ = b.Acquire(ctx)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = b.Acquire(ctx)
	assert.True(t, ok, "expired holder must not block")

	require.NoError(t, a.Release(ctx))
	c := table.Lock("session:abc", 0)
	ok, _ = c.Acquire(ctx)
	assert.False(t, ok, "stale owner release must not free the lock")

	require.NoError(t, b.Release(ctx))
	ok, _ = c.Acquire(ctx)
	assert.True(t, ok)

	d := table.Lock("session:abc", time.Minute)
	now = now.Add(time.Hour)
	ok, _ = d.Acquire(ctx)
	assert.False(t, ok, "a lock without ttl never expires")
}

func TestPGAdvisoryLock(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	l := NewPGAdvisoryLock(db, "notify:SMS:person:3")

	mock.ExpectQuery(`SELECT pg_try_advisory_lock\(\$1\)`).
		WithArgs(l.lockID).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(`SELECT pg_advisory_unlock\(\$1\)`).
		WithArgs(l.lockID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := l.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, l.Release(ctx))
	require.NoError(t, l.Release(ctx), "second release is a no-op")

	mock.ExpectQuery(`SELECT pg_try_advisory_lock`).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))
	ok, err = l.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFactoryBackend(t *testing.T) {
	_, client := newRedis(t)
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "redis", NewFactory(client, db, true).Backend())
	assert.Equal(t, "postgres", NewFactory(nil, db, true).Backend())
	assert.Equal(t, "local", NewFactory(nil, db, false).Backend())
	assert.Equal(t, "local", NewFactory(nil, nil, true).Backend())

	_, isLocal := NewFactory(nil, nil, false).Lock("k", time.Second).(*LocalLock)
	assert.True(t, isLocal)
}
