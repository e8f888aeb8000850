// Package lock serializes work per job inside one process.
package lock

import (
	"context"
	"sync"

	"dream2design/internal/domain"
	"dream2design/internal/domain/ports/repository"
)

var _ repository.JobLocker = (*KeyedLocker)(nil)

type entry struct {
	ch   chan struct{}
	refs int
}

// KeyedLocker hands out one mutex per key. Entries are dropped once nobody
// holds or waits for them, so the map does not grow with the job count.
type KeyedLocker struct {
	mu   sync.Mutex
	keys map[string]*entry
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{keys: make(map[string]*entry)}
}

// Lock blocks until the key is free or ctx ends. The returned unlock is safe
// to call more than once.
func (l *KeyedLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	e, ok := l.keys[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		l.keys[key] = e
	}
	e.refs++
	l.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, e)
		return nil, domain.ErrLockTimeout
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-e.ch
			l.release(key, e)
		})
	}, nil
}

func (l *KeyedLocker) release(key string, e *entry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(l.keys, key)
	}
}

// Len reports how many keys are currently held or awaited.
func (l *KeyedLocker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.keys)
}
