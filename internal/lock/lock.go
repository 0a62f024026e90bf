// Package lock provides short-lived mutual exclusion keyed by string.  It
// is used to serialise the read-compute-write sequence of a withdrawal per
// space owner.  Acquire never waits: a held key fails fast with ErrBusy so
// the client can retry with fresh data.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrBusy is returned when the key is already held.
var ErrBusy = errors.New("lock busy")

// Release gives a lock back.  It is safe to call more than once.
type Release func()

// Local is an in-process Locker.  TTL is ignored; a key is held until it
// is released.
type Local struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocal returns an empty Local locker.
func NewLocal() *Local { return &Local{held: map[string]struct{}{}} }

// Acquire takes key or fails with ErrBusy.
func (l *Local) Acquire(_ context.Context, key string, _ time.Duration) (Release, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, ErrBusy
	}
	l.held[key] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
