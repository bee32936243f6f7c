package recompute

import "sync"

// State is the recompute lifecycle of one ticket type within this process.
type State string

const (
	StateStable      State = "stable"
	StateRecomputing State = "recomputing"
)

// typeLocks serializes recomputes of the same ticket type and doubles as the
// state tracker: a type with an entry is recomputing.
type typeLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newTypeLocks() *typeLocks {
	return &typeLocks{entries: make(map[string]*lockEntry)}
}

func (l *typeLocks) acquire(id string) func() {
	l.mu.Lock()
	entry, ok := l.entries[id]
	if !ok {
		entry = &lockEntry{}
		l.entries[id] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, id)
		}
		l.mu.Unlock()
	}
}

func (l *typeLocks) state(id string) State {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[id]; ok {
		return StateRecomputing
	}
	return StateStable
}
