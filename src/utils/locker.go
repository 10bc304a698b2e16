package utils

import (
	"context"
	"sync"
)

// KeyedMutex hands out one in-process lock per key. Entries are dropped once
// nobody holds or waits for them.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedLock)}
}

func (k *KeyedMutex) acquireRef(key string) *keyedLock {
	k.mu.Lock()
	defer k.mu.Unlock()

	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{ch: make(chan struct{}, 1)}
		k.locks[key] = l
	}
	l.refs++
	return l
}

func (k *KeyedMutex) releaseRef(key string, l *keyedLock) {
	k.mu.Lock()
	defer k.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(k.locks, key)
	}
}

// Lock blocks until key is free or ctx is done.
func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	l := k.acquireRef(key)
	select {
	case l.ch <- struct{}{}:
		return k.unlocker(key, l), nil
	case <-ctx.Done():
		k.releaseRef(key, l)
		return nil, ctx.Err()
	}
}

// TryLock takes key only if nobody holds it.
func (k *KeyedMutex) TryLock(_ context.Context, key string) (func(), bool, error) {
	l := k.acquireRef(key)
	select {
	case l.ch <- struct{}{}:
		return k.unlocker(key, l), true, nil
	default:
		k.releaseRef(key, l)
		return nil, false, nil
	}
}

func (k *KeyedMutex) unlocker(key string, l *keyedLock) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-l.ch
			k.releaseRef(key, l)
		})
	}
}
