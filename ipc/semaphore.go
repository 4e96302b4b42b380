// Copyright 2024 The mlsched Authors.
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

// Package ipc implements the counting semaphores layered on top of the
// process table's sleep/wakeup primitive (original_source/proc.c's
// sem_init/sem_acquire/sem_release).
package ipc

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/eduos/mlsched/proc"
)

// NSEM is the fixed number of semaphores the kernel exposes, mirroring the
// original's fixed six-element sem[] array.
const NSEM = 6

var (
	ErrBadSemIndex        = errors.New("ipc: semaphore index out of range")
	ErrAlreadyInitialized = errors.New("ipc: semaphore already initialized")
)

// Semaphore is one counting semaphore. It has its own lock, distinct from
// the process table's lock — sem_acquire must hold both at once while it
// decides whether to block, which is the one place in this system two
// locks are nested. The fixed acquisition order (semaphore lock, then
// table lock) is the load-bearing invariant spec.md §9 calls out: acquiring
// them in the opposite order anywhere else in the kernel would deadlock
// against this path.
type Semaphore struct {
	mu          sync.Mutex
	initialized bool
	value       int
	owner       proc.PID // last process to successfully acquire; informational only.
}

// Semaphores is the fixed table of NSEM semaphores plus the process table
// they sleep against.
type Semaphores struct {
	tbl *proc.Table
	sem [NSEM]Semaphore
	log *logrus.Logger
}

// New builds a Semaphores bank bound to tbl.
func New(tbl *proc.Table) *Semaphores {
	return &Semaphores{tbl: tbl}
}

// SetLogger attaches l as the semaphore bank's event sink: one event per
// init/acquire/release (spec.md §7). nil (the zero value) disables logging.
func (s *Semaphores) SetLogger(l *logrus.Logger) { s.log = l }

func (s *Semaphores) logEvent(level logrus.Level, msg string, i int, f logrus.Fields) {
	if s.log == nil {
		return
	}
	if f == nil {
		f = logrus.Fields{}
	}
	f["sem"] = i
	s.log.WithFields(f).Log(level, msg)
}

// Init sets semaphore i's count to value. Matches sem_init: no bounds
// checking on value itself, since a negative starting count is a valid way
// to pre-block acquirers. Initialization is one-shot — a second Init on an
// already-initialized semaphore returns ErrAlreadyInitialized rather than
// silently resetting value/owner out from under a running acquire/release
// protocol (spec.md §3/§4.5/§6).
func (s *Semaphores) Init(i int, value int) error {
	sem, err := s.at(i)
	if err != nil {
		return err
	}
	sem.mu.Lock()
	defer sem.mu.Unlock()
	if sem.initialized {
		return ErrAlreadyInitialized
	}
	sem.value = value
	sem.owner = 0
	sem.initialized = true
	s.logEvent(logrus.InfoLevel, "semaphore init", i, logrus.Fields{"value": value})
	return nil
}

// Acquire decrements semaphore i, blocking the calling process (which must
// be the currently Running process owning p) while the count is <= 0. It
// implements the nested-lock order documented on Semaphore: take the
// semaphore lock first, and while still holding it, take the table lock to
// sleep — exactly the reverse of every other table-locked call in this
// kernel, and the reason no other code path may acquire a semaphore lock
// while already holding the table lock.
func (s *Semaphores) Acquire(p *proc.ProcSlot, i int) error {
	sem, err := s.at(i)
	if err != nil {
		return err
	}
	sem.mu.Lock()
	for sem.value <= 0 {
		if p.Killed {
			sem.mu.Unlock()
			return proc.ErrProcessKilled
		}
		// Take the table lock before dropping the semaphore lock, then
		// sleep: the same ordering xv6's sleep(chan, lk) enforces when lk
		// isn't ptable.lock. A Release that runs after sem.mu is dropped
		// can bump the count, but its Wakeup needs the table lock, which
		// this path holds until Sleep has recorded the Sleeping state, so
		// that wakeup is never lost.
		s.tbl.Lock()
		sem.mu.Unlock()
		s.tbl.Sleep(p, proc.ChanSem(i))
		s.tbl.Unlock()
		sem.mu.Lock()
	}
	sem.value--
	sem.owner = p.PID
	s.logEvent(logrus.InfoLevel, "semaphore acquire", i, logrus.Fields{"pid": p.PID, "value": sem.value})
	sem.mu.Unlock()
	return nil
}

// Release increments semaphore i and wakes one waiter (in practice, all
// waiters are woken and recheck their own loop condition — the same
// broadcast-and-recheck discipline as the table's Wakeup).
func (s *Semaphores) Release(p *proc.ProcSlot, i int) error {
	sem, err := s.at(i)
	if err != nil {
		return err
	}
	sem.mu.Lock()
	sem.value++
	sem.owner = p.PID
	s.logEvent(logrus.InfoLevel, "semaphore release", i, logrus.Fields{"pid": p.PID, "value": sem.value})
	sem.mu.Unlock()
	s.tbl.Wakeup(proc.ChanSem(i))
	return nil
}

// Value returns semaphore i's current count, for diagnostics.
func (s *Semaphores) Value(i int) (int, error) {
	sem, err := s.at(i)
	if err != nil {
		return 0, err
	}
	sem.mu.Lock()
	defer sem.mu.Unlock()
	return sem.value, nil
}

func (s *Semaphores) at(i int) (*Semaphore, error) {
	if i < 0 || i >= NSEM {
		return nil, ErrBadSemIndex
	}
	return &s.sem[i], nil
}
