package toggle

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

var errLockTimeout = errors.New("toggle: lock wait exceeded")

type lockKey struct {
	kind     Kind
	actorID  uint
	targetID uint
}

type lockEntry struct {
	sem  *semaphore.Weighted
	refs int
}

// keyedLocker hands out one mutual-exclusion slot per key. Entries are
// reference counted and removed once nobody holds or waits for them.
type keyedLocker struct {
	mu      sync.Mutex
	entries map[lockKey]*lockEntry
}

func newKeyedLocker() *keyedLocker {
	return &keyedLocker{entries: make(map[lockKey]*lockEntry)}
}

// acquire blocks for at most wait. It returns errLockTimeout when the wait is
// exceeded and ctx.Err() when ctx ends first.
func (l *keyedLocker) acquire(ctx context.Context, key lockKey, wait time.Duration) (func(), error) {
	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &lockEntry{sem: semaphore.NewWeighted(1)}
		l.entries[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	if err := entry.sem.Acquire(waitCtx, 1); err != nil {
		l.drop(key, entry)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errLockTimeout
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.sem.Release(1)
			l.drop(key, entry)
		})
	}, nil
}

func (l *keyedLocker) drop(key lockKey, entry *lockEntry) {
	l.mu.Lock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, key)
	}
	l.mu.Unlock()
}

func (l *keyedLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
