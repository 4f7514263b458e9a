package memory

import (
	"context"
	"sync"
	"time"
)

// keyedMutex hands out one exclusive slot per key. Waiters give up after a timeout.
type keyedMutex struct {
	mu    sync.Mutex
	slots map[int64]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{slots: make(map[int64]*slot)}
}

// lock blocks until key is free, ctx ends or timeout passes. The returned func releases the key.
func (k *keyedMutex) lock(ctx context.Context, key int64, timeout time.Duration) (func(), error) {
	k.mu.Lock()
	s, ok := k.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.refs++
	k.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
		return func() {
			<-s.ch
			k.release(key, s)
		}, nil
	case <-ctx.Done():
		k.release(key, s)
		return nil, ctx.Err()
	case <-timer.C:
		k.release(key, s)
		return nil, errLockTimeout
	}
}

func (k *keyedMutex) release(key int64, s *slot) {
	k.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(k.slots, key)
	}
	k.mu.Unlock()
}
