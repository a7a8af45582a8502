package sqlite

import "sync"

// projectLocks serializes read-modify-write cycles per project so concurrent
// mutations of the same log cannot overwrite each other. Independent projects
// stay parallel.
type projectLocks struct {
	mu    sync.RWMutex
	locks map[string]*sync.Mutex
}

func newProjectLocks() *projectLocks {
	return &projectLocks{locks: make(map[string]*sync.Mutex)}
}

func (l *projectLocks) get(project string) *sync.Mutex {
	l.mu.RLock()
	lock, ok := l.locks[project]
	l.mu.RUnlock()
	if ok {
		return lock
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if lock, ok = l.locks[project]; ok {
		return lock
	}
	lock = &sync.Mutex{}
	l.locks[project] = lock
	return lock
}
