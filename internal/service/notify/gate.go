package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/familyhub/aniversaris/internal/domain"
	"github.com/familyhub/aniversaris/internal/pkg/distlock"
)

// DefaultLockTTL bounds how long a crashed sender can hold a gate key.
const DefaultLockTTL = 2 * time.Minute

// Gate enforces at most one attempt per channel, recipient, category and
// local date.
type Gate struct {
	log   LogRepository
	locks *distlock.Factory
	cal   *Calendar
	ttl   time.Duration
	zlog  *zap.Logger
}

// NewGate creates a gate. A nil locks factory uses in-process locks.
func NewGate(log LogRepository, locks *distlock.Factory, cal *Calendar, ttl time.Duration, zlog *zap.Logger) *Gate {
	if locks == nil {
		locks = distlock.NewFactory(nil, nil, false)
	}
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	if zlog == nil {
		zlog = zap.NewNop()
	}
	return &Gate{log: log, locks: locks, cal: cal, ttl: ttl, zlog: zlog}
}

// WasAlreadySent reports whether an attempt, successful or not, is already
// logged today for the key.
func (g *Gate) WasAlreadySent(ctx context.Context, ch domain.Channel, recipientKey string, cat domain.Category) (bool, error) {
	n, err := g.log.CountAttempts(ctx, ch, recipientKey, cat, g.cal.LocalDate())
	if err != nil {
		return false, domain.Upstream("check notification log", err)
	}
	return n > 0, nil
}

// Begin claims the key for today's attempt. It returns ErrInFlight when
// another sender holds the key and ErrAlreadySent when an attempt is
// logged, unless force is set. The returned ticket must be recorded or
// released.
func (g *Gate) Begin(ctx context.Context, ch domain.Channel, recipientKey string, cat domain.Category, force bool) (*Ticket, error) {
	date := g.cal.LocalDate()
	lock := g.locks.Lock(fmt.Sprintf("notify:%s:%s:%s:%s", ch, recipientKey, cat, date), g.ttl)

	ok, err := lock.Acquire(ctx)
	if err != nil {
		return nil, domain.Upstream("acquire gate lock", err)
	}
	if !ok {
		return nil, ErrInFlight
	}

	t := &Ticket{gate: g, lock: lock, channel: ch, key: recipientKey, category: cat, date: date}
	if force {
		return t, nil
	}

	n, err := g.log.CountAttempts(ctx, ch, recipientKey, cat, date)
	if err != nil {
		t.Release(ctx)
		return nil, domain.Upstream("check notification log", err)
	}
	if n > 0 {
		t.Release(ctx)
		return nil, ErrAlreadySent
	}
	return t, nil
}

// Log appends a record that is not tied to a claimed key, such as the
// daily NO_BIRTHDAYS marker.
func (g *Gate) Log(ctx context.Context, rec domain.NotificationRecord) error {
	rec.LocalDate = g.cal.LocalDate()
	rec.CreatedAt = g.cal.Now().UTC()
	if err := g.log.Append(ctx, &rec); err != nil {
		return domain.Upstream("append notification log", err)
	}
	return nil
}

// Ticket is a claimed gate key awaiting its single log entry.
type Ticket struct {
	gate     *Gate
	lock     distlock.DistLock
	channel  domain.Channel
	key      string
	category domain.Category
	date     string

	once sync.Once
	done bool
}

// Record appends the outcome of the attempt and releases the key. The
// gate fields of rec are filled in from the ticket.
func (t *Ticket) Record(ctx context.Context, rec domain.NotificationRecord) error {
	if t.done {
		return ErrTicketClosed
	}
	t.done = true
	defer t.Release(ctx)

	rec.Channel = t.channel
	rec.RecipientKey = t.key
	rec.Category = t.category
	rec.LocalDate = t.date
	rec.CreatedAt = t.gate.cal.Now().UTC()
	if err := t.gate.log.Append(ctx, &rec); err != nil {
		return domain.Upstream("append notification log", err)
	}
	return nil
}

// Release gives the key back without logging. Safe to call more than once.
func (t *Ticket) Release(ctx context.Context) {
	t.once.Do(func() {
		// The lock must be released even when ctx is already done.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := t.lock.Release(rctx); err != nil {
			t.gate.zlog.Warn("release gate lock", zap.String("recipient", t.key), zap.Error(err))
		}
	})
}
