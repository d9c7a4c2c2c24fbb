// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package lock serializes mutating pipeline stages per regulation.
//
// Two stages running against the same regulation at once could both pass
// their precondition checks before either commits. Holding a per-key lock
// around check-and-write closes that window. NewLocal serves a single
// process; NewRedis serves several processes sharing one database.
package lock

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrLockNotAcquired is returned when a lock could not be taken within
	// the configured retries.
	ErrLockNotAcquired = errors.New("failed to acquire lock")

	// ErrLockNotHeld is returned by an Unlock whose lock was already
	// released or has expired.
	ErrLockNotHeld = errors.New("lock not held by this owner")
)

// Unlock releases a lock obtained from Locker.Lock.
type Unlock func(ctx context.Context) error

// Locker hands out exclusive locks by key.
type Locker interface {
	// Lock blocks until the key is held, ctx is done, or the implementation
	// gives up with ErrLockNotAcquired.
	Lock(ctx context.Context, key string) (Unlock, error)
}

// Local is an in-process keyed mutex.
type Local struct {
	mu    sync.Mutex
	locks map[string]*localEntry
}

type localEntry struct {
	held chan struct{}
	refs int
}

// NewLocal creates an in-process Locker.
func NewLocal() *Local {
	return &Local{locks: make(map[string]*localEntry)}
}

func (l *Local) Lock(ctx context.Context, key string) (Unlock, error) {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &localEntry{held: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.held <- struct{}{}:
	case <-ctx.Done():
		l.unref(key, entry)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func(context.Context) error {
		err := ErrLockNotHeld
		once.Do(func() {
			<-entry.held
			l.unref(key, entry)
			err = nil
		})
		return err
	}, nil
}

// Len returns the number of keys currently held or waited on.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *Local) unref(key string, entry *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
}
