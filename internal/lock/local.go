package lock

import (
	"context"
	"sync"

	"github.com/huangsam/repohealth/internal/contract"
)

// Local is an in-process keyed mutex. Each key is a one-slot channel so
// waiting can be abandoned when the context is done.
type Local struct {
	mu   sync.Mutex
	keys map[string]*localKey
}

type localKey struct {
	ch   chan struct{}
	refs int
}

var _ contract.Locker = &Local{} // Compile-time check

// NewLocal returns an empty in-process locker.
func NewLocal() *Local {
	return &Local{keys: make(map[string]*localKey)}
}

func (l *Local) acquireRef(key string) *localKey {
	l.mu.Lock()
	defer l.mu.Unlock()
	k, ok := l.keys[key]
	if !ok {
		k = &localKey{ch: make(chan struct{}, 1)}
		l.keys[key] = k
	}
	k.refs++
	return k
}

func (l *Local) releaseRef(key string, k *localKey) {
	l.mu.Lock()
	defer l.mu.Unlock()
	k.refs--
	if k.refs == 0 {
		delete(l.keys, key)
	}
}

// Lock blocks until key is free or ctx is done.
func (l *Local) Lock(ctx context.Context, key string) (func(), error) {
	k := l.acquireRef(key)
	select {
	case k.ch <- struct{}{}:
		return l.unlocker(key, k), nil
	case <-ctx.Done():
		l.releaseRef(key, k)
		return nil, ctx.Err()
	}
}

// TryLock takes key only if it is free right now.
func (l *Local) TryLock(_ context.Context, key string) (func(), bool, error) {
	k := l.acquireRef(key)
	select {
	case k.ch <- struct{}{}:
		return l.unlocker(key, k), true, nil
	default:
		l.releaseRef(key, k)
		return nil, false, nil
	}
}

func (l *Local) unlocker(key string, k *localKey) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			<-k.ch
			l.releaseRef(key, k)
		})
	}
}

// Close is a no-op for the local locker.
func (l *Local) Close() error { return nil }
