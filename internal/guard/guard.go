// Package guard serializes mutations per client session.
//
// A session may run one mutating request at a time; a second concurrent
// request from the same session is refused with ErrBusy instead of being
// queued. Different sessions never block each other. Leases live in Redis
// when it is configured, so the rule holds across server replicas, and in
// process memory otherwise. Every lease has a TTL so a crashed request
// cannot lock a session out for good.
package guard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/familyhub/aniversaris/internal/metrics"
	"github.com/familyhub/aniversaris/internal/pkg/distlock"
)

// DefaultTTL bounds one lease.
const DefaultTTL = 30 * time.Second

// ErrBusy is returned when the session already holds a lease.
var ErrBusy = errors.New("another operation is in progress for this session")

// Guard hands out per-session mutation leases.
type Guard struct {
	locks   *distlock.Factory
	ttl     time.Duration
	log     *zap.Logger
	metrics *metrics.Metrics
}

// New creates a guard. A nil redis client keeps leases in memory.
func New(rdb *redis.Client, ttl time.Duration, log *zap.Logger, m *metrics.Metrics) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Guard{locks: distlock.NewFactory(rdb, nil, false), ttl: ttl, log: log, metrics: m}
}

// Backend names where leases are stored.
func (g *Guard) Backend() string { return g.locks.Backend() }

// Acquire takes the lease for session. The returned release func is safe
// to call more than once.
func (g *Guard) Acquire(ctx context.Context, session string) (func(), error) {
	lock := g.locks.Lock("session:"+session, g.ttl)
	ok, err := lock.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		g.metrics.IncGuardConflict()
		return nil, ErrBusy
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := lock.Release(rctx); err != nil {
				g.log.Warn("release session lease", zap.Error(err))
			}
		})
	}, nil
}
