package session

import (
	"context"
	"fmt"
	"sync"
)

// Locker hands out one mutex per user so that at most one transition per
// user is in flight. Entries are dropped once nobody holds or waits on them.
type Locker struct {
	mu    sync.Mutex
	locks map[int64]*keyLock
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

// NewLocker creates an empty Locker.
func NewLocker() *Locker {
	return &Locker{locks: make(map[int64]*keyLock)}
}

// Lock blocks until the lock for userID is acquired or ctx is done. The
// returned unlock func is safe to call more than once.
func (l *Locker) Lock(ctx context.Context, userID int64) (func(), error) {
	l.mu.Lock()
	k, ok := l.locks[userID]
	if !ok {
		k = &keyLock{ch: make(chan struct{}, 1)}
		l.locks[userID] = k
	}
	k.refs++
	l.mu.Unlock()

	select {
	case k.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(userID, k)
		return nil, fmt.Errorf("session: lock user %d: %w", userID, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-k.ch
			l.release(userID, k)
		})
	}, nil
}

func (l *Locker) release(userID int64, k *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k.refs--
	if k.refs == 0 {
		delete(l.locks, userID)
	}
}

// held returns the number of users with an outstanding lock entry.
func (l *Locker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
