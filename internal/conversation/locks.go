package conversation

import "sync"

// UserLocks hands out one mutex per user id. Holding it across the
// load/append/persist span keeps concurrent messages of the same user from
// overwriting each other's history.
type UserLocks struct {
	locks sync.Map // user id -> *sync.Mutex
}

// Lock blocks until the user's mutex is held and returns the unlock function.
func (l *UserLocks) Lock(userID string) (unlock func()) {
	v, _ := l.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
