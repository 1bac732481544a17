package webhook

import (
	"sync"

	"github.com/google/uuid"
)

// memberLocks serializes processing per member. Entries are reference
// counted and removed when the last holder releases, so the map stays
// bounded by concurrent deliveries rather than member count.
type memberLocks struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newMemberLocks() *memberLocks {
	return &memberLocks{entries: make(map[uuid.UUID]*lockEntry)}
}

// lock acquires the member's mutex and returns the release function.
func (l *memberLocks) lock(memberID uuid.UUID) func() {
	l.mu.Lock()
	entry, ok := l.entries[memberID]
	if !ok {
		entry = &lockEntry{}
		l.entries[memberID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, memberID)
		}
		l.mu.Unlock()
	}
}
