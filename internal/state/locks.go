package state

import "sync"

// ThreadLocks serializes work on a thread. A thread is held from the moment
// a run starts or resumes until it suspends or finishes.
type ThreadLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewThreadLocks creates an empty lock set.
func NewThreadLocks() *ThreadLocks {
	return &ThreadLocks{held: make(map[string]struct{})}
}

// TryLock acquires threadID and returns false if it is already held.
func (l *ThreadLocks) TryLock(threadID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[threadID]; busy {
		return false
	}
	l.held[threadID] = struct{}{}
	return true
}

// Unlock releases threadID.
func (l *ThreadLocks) Unlock(threadID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, threadID)
}

// Held reports whether threadID is currently held.
func (l *ThreadLocks) Held(threadID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, busy := l.held[threadID]
	return busy
}
