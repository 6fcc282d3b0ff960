package guard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/familyhub/aniversaris/internal/metrics"
)

func TestGuardLocal(t *testing.T) {
	ctx := context.Background()
	m := metrics.New()
	g := New(nil, time.Minute, nil, m)
	assert.Equal(t, "local", g.Backend())

	release, err := g.Acquire(ctx, "abc")
	require.NoError(t, err)

	_, err = g.Acquire(ctx, "abc")
	assert.ErrorIs(t, err, ErrBusy)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GuardConflicts))

	other, err := g.Acquire(ctx, "xyz")
	require.NoError(t, err, "sessions are independent")
	other()

	release()
	release()

	again, err := g.Acquire(ctx, "abc")
	require.NoError(t, err)
	again()
}

func TestGuardRedis(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	// Two guards sharing Redis behave like two server replicas.
	a := New(rdb, 10*time.Second, nil, nil)
	b := New(rdb, 10*time.Second, nil, nil)
	assert.Equal(t, "redis", a.Backend())

	release, err := a.Acquire(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, mr.Exists("lock:session:s1"))

	_, err = b.Acquire(ctx, "s1")
	assert.ErrorIs(t, err, ErrBusy)

	release()
	assert.False(t, mr.Exists("lock:session:s1"))

	release, err = b.Acquire(ctx, "s1")
	require.NoError(t, err)

	// A lease left behind by a crashed request expires.
	mr.FastForward(11 * time.Second)
	late, err := a.Acquire(ctx, "s1")
	require.NoError(t, err)
	late()
	release()
}
