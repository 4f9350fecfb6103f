package lock

import (
	"context"
	"sync"
)

type memoryEntry struct {
	mu   chan struct{}
	refs int
}

// MemoryLocker is the in-process fallback implementation of Locker. Entries
// are reference-counted and removed once the last waiter releases, so the map
// does not grow with the user population.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

// NewMemoryLocker returns an in-process locker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		entries: make(map[string]*memoryEntry),
	}
}

// Acquire blocks until the key's slot is free or ctx is done.
func (l *MemoryLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &memoryEntry{mu: make(chan struct{}, 1)}
		l.entries[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.mu <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			<-entry.mu
			l.unref(key, entry)
		})
	}

	return release, nil
}

func (l *MemoryLocker) unref(key string, entry *memoryEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, key)
	}
}
