// Package keymutex provides a mutex per integer key with a bounded wait.
package keymutex

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrTimeout = errors.New("timed out waiting for lock")

type KeyMutex struct {
	mu    sync.Mutex
	slots map[int]*slot
}

type slot struct {
	sem  chan struct{}
	refs int
}

func New() *KeyMutex {
	return &KeyMutex{
		slots: make(map[int]*slot),
	}
}

// Lock blocks until the key is free, wait elapses or ctx is done. The returned
// function releases the key and is safe to call more than once.
func (m *KeyMutex) Lock(ctx context.Context, key int, wait time.Duration) (func(), error) {
	s := m.ref(key)

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case s.sem <- struct{}{}:
	case <-timer.C:
		m.unref(key, s)
		return nil, ErrTimeout
	case <-ctx.Done():
		m.unref(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once

	return func() {
		once.Do(func() {
			<-s.sem
			m.unref(key, s)
		})
	}, nil
}

func (m *KeyMutex) ref(key int) *slot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[key]
	if !ok {
		s = &slot{sem: make(chan struct{}, 1)}
		m.slots[key] = s
	}
	s.refs++

	return s
}

func (m *KeyMutex) unref(key int, s *slot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s.refs--
	if s.refs == 0 {
		delete(m.slots, key)
	}
}

// Len returns the number of keys currently locked or waited on.
func (m *KeyMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.slots)
}
