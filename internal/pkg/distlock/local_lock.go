package distlock

import (
	"context"
	"sync"
	"time"
)

// LocalTable is an in-process lock table shared by the locks it creates.
type LocalTable struct {
	mu   sync.Mutex
	held map[string]localEntry
	now  func() time.Time
	seq  uint64
}

type localEntry struct {
	owner   uint64
	expires time.Time
}

// NewLocalTable creates an empty lock table.
func NewLocalTable() *LocalTable {
	return &LocalTable{held: make(map[string]localEntry), now: time.Now}
}

// Lock returns a lock on key in this table.
func (t *LocalTable) Lock(key string, ttl time.Duration) *LocalLock {
	t.mu.Lock()
	t.seq++
	owner := t.seq
	t.mu.Unlock()
	return &LocalLock{table: t, key: key, ttl: ttl, owner: owner}
}

// LocalLock implements DistLock within one process.
type LocalLock struct {
	table *LocalTable
	key   string
	ttl   time.Duration
	owner uint64
}

// Acquire takes the lock if it is free or its holder's TTL has passed.
func (l *LocalLock) Acquire(_ context.Context) (bool, error) {
	t := l.table
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	if e, ok := t.held[l.key]; ok && e.owner != l.owner && (e.expires.IsZero() || now.Before(e.expires)) {
		return false, nil
	}
	entry := localEntry{owner: l.owner}
	if l.ttl > 0 {
		entry.expires = now.Add(l.ttl)
	}
	t.held[l.key] = entry
	return true, nil
}

// Release frees the lock if this instance still holds it.
func (l *LocalLock) Release(_ context.Context) error {
	t := l.table
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.held[l.key]; ok && e.owner == l.owner {
		delete(t.held, l.key)
	}
	return nil
}
