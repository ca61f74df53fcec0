package optsync

import "github.com/goliatone/go-optsync/pathstore"

// LockManager tracks which option paths have a propagation step in flight.
// A path can be held once; a second TryAcquire fails until Release.
//
// LockManager is not safe for concurrent use. Each Engine owns one.
type LockManager struct {
	held   map[string]struct{}
	misses int
}

// NewLockManager returns an empty lock manager.
func NewLockManager() *LockManager {
	return &LockManager{held: make(map[string]struct{})}
}

// TryAcquire takes the lock for path, reporting false if it is already held.
func (l *LockManager) TryAcquire(path pathstore.Path) bool {
	key := path.String()
	if _, ok := l.held[key]; ok {
		l.misses++
		return false
	}
	l.held[key] = struct{}{}
	return true
}

// Release drops the lock for path. Releasing a free path is a no-op.
func (l *LockManager) Release(path pathstore.Path) {
	delete(l.held, path.String())
}

// Locked reports whether path is held.
func (l *LockManager) Locked(path pathstore.Path) bool {
	_, ok := l.held[path.String()]
	return ok
}

// Held reports how many paths are locked.
func (l *LockManager) Held() int { return len(l.held) }

// Misses reports how many TryAcquire calls found their path held.
func (l *LockManager) Misses() int { return l.misses }

// Guard runs fn while holding the lock for path. When the path is already
// held fn does not run and ran is false. The lock is released on every exit,
// including a panic in fn.
func (l *LockManager) Guard(path pathstore.Path, fn func() error) (ran bool, err error) {
	if !l.TryAcquire(path) {
		return false, nil
	}
	defer l.Release(path)
	if fn == nil {
		return true, nil
	}
	return true, fn()
}
