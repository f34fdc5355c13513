package calendar

import "sync"

// refreshLocks serializes token refreshes per teacher+provider so two
// concurrent requests cannot both redeem (and invalidate) the same refresh
// token.
type refreshLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newRefreshLocks() *refreshLocks {
	return &refreshLocks{locks: make(map[string]*sync.Mutex)}
}

// acquire locks the mutex for the given key and returns its release func.
func (r *refreshLocks) acquire(key string) func() {
	r.mu.Lock()
	l, ok := r.locks[key]
	if !ok {
		l = &sync.Mutex{}
		r.locks[key] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}
