package engine

import "sync"

// instanceLocks hands out one mutex per instance id. Entries are dropped when the last
// holder releases them.
type instanceLocks struct {
	mu    sync.Mutex
	locks map[string]*instanceLock
}

type instanceLock struct {
	mu   sync.Mutex
	refs int
}

func newInstanceLocks() *instanceLocks {
	return &instanceLocks{locks: make(map[string]*instanceLock)}
}

// lock blocks until the instance is exclusively held and returns the release func.
func (l *instanceLocks) lock(instanceID string) func() {
	l.mu.Lock()

	entry, ok := l.locks[instanceID]
	if !ok {
		entry = &instanceLock{}
		l.locks[instanceID] = entry
	}

	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		defer l.mu.Unlock()

		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, instanceID)
		}
	}
}

func (l *instanceLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.locks)
}
