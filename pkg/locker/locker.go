/*
 * Copyright 2025 The Coedit Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 * This file was written with reference to moby/locker.
 *   https://github.com/moby/locker
 */

/*
Package locker provides named locks for finer-grained locking than a single
global mutex. Each document gets its own serialization slot keyed by its id;
lock references are cleaned up on Unlock when nothing else is waiting.
*/
package locker

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrNoSuchLock is returned when the requested lock does not exist.
var ErrNoSuchLock = errors.New("no such lock")

// Locker provides a locking mechanism based on the passed in reference name.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*lockCtr
}

// lockCtr is used by Locker to represent a lock with a given name.
type lockCtr struct {
	mu sync.Mutex
	// waiters is the number of waiters waiting to acquire the lock.
	// int32 instead of uint32 so dec() can add -1.
	waiters int32
}

// inc increments the number of waiters waiting for the lock.
func (l *lockCtr) inc() {
	atomic.AddInt32(&l.waiters, 1)
}

// dec decrements the number of waiters waiting on the lock.
func (l *lockCtr) dec() {
	atomic.AddInt32(&l.waiters, -1)
}

// count gets the current number of waiters.
func (l *lockCtr) count() int32 {
	return atomic.LoadInt32(&l.waiters)
}

// Lock locks the mutex.
func (l *lockCtr) Lock() {
	l.mu.Lock()
}

// TryLock tries to lock the mutex.
func (l *lockCtr) TryLock() bool {
	return l.mu.TryLock()
}

// Unlock unlocks the mutex.
func (l *lockCtr) Unlock() {
	l.mu.Unlock()
}

// New creates a new Locker.
func New() *Locker {
	return &Locker{
		locks: make(map[string]*lockCtr),
	}
}

// Lock locks a mutex with the given name. If it doesn't exist, one is created.
func (l *Locker) Lock(name string) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*lockCtr)
	}

	nameLock, exists := l.locks[name]
	if !exists {
		nameLock = &lockCtr{}
		l.locks[name] = nameLock
	}

	// increment the waiters while inside the main mutex so the lock isn't
	// deleted if Lock and Unlock race
	nameLock.inc()
	l.mu.Unlock()

	// lock the nameLock outside the main mutex so other names don't block
	nameLock.Lock()
	nameLock.dec()
}

// TryLock locks a mutex with the given name if it is not already held.
func (l *Locker) TryLock(name string) bool {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[string]*lockCtr)
	}

	nameLock, exists := l.locks[name]
	if !exists {
		nameLock = &lockCtr{}
		l.locks[name] = nameLock
	}

	nameLock.inc()
	l.mu.Unlock()

	succeeded := nameLock.TryLock()
	nameLock.dec()

	return succeeded
}

// Unlock unlocks the mutex with the given name. If no other callers are
// waiting on the lock, it is deleted.
func (l *Locker) Unlock(name string) error {
	l.mu.Lock()
	nameLock, exists := l.locks[name]
	if !exists {
		l.mu.Unlock()
		return ErrNoSuchLock
	}

	if nameLock.count() == 0 {
		delete(l.locks, name)
	}
	nameLock.Unlock()

	l.mu.Unlock()
	return nil
}
