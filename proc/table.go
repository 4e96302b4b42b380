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

package proc

import (
	"errors"
	"sync"

	"github.com/mohae/deepcopy"
	"github.com/sirupsen/logrus"
)

// Sentinel errors surfaced to syscall callers; see spec.md §7.
var (
	ErrNoFreeSlot    = errors.New("proc: no free slot")
	ErrBadPID        = errors.New("proc: no such pid")
	ErrNoChildren    = errors.New("proc: no children")
	ErrProcessKilled = errors.New("proc: process killed")
)

// KernelPanic marks an invariant violation (spec.md §7's "fatal panics").
// These are programmer errors, not runtime conditions, and are never
// recovered from inside this package.
type KernelPanic struct{ Msg string }

func (k KernelPanic) Error() string { return k.Msg }

func (t *Table) kpanic(msg string) {
	t.logEvent(logrus.ErrorLevel, "kernel panic", logrus.Fields{"msg": msg})
	panic(KernelPanic{Msg: msg})
}

// Clock supplies the kernel's monotonic tick counter. Implemented by
// package clock; declared here so proc has no dependency on it.
type Clock interface {
	Now() Tick
}

// Table is the fixed-capacity process table and its single coarse lock.
// Every exported mutating method acquires mu internally unless its doc
// comment says the caller must already hold it.
type Table struct {
	mu   sync.Mutex
	cond *sync.Cond

	slots   []ProcSlot
	nextPID PID
	clock   Clock
	log     *logrus.Logger

	init PID // pid of the init process; orphans reparent to it.
}

// SetLogger attaches l as the table's event sink. One structured event is
// emitted per slot allocation/free and per state transition (spec.md §7).
// It sets the field without taking the table lock. nil disables logging,
// which is also the zero-value behavior for a Table built without calling
// SetLogger.
func (t *Table) SetLogger(l *logrus.Logger) { t.log = l }

func (t *Table) logEvent(level logrus.Level, msg string, f logrus.Fields) {
	if t.log == nil {
		return
	}
	t.log.WithFields(f).Log(level, msg)
}

// NewTable allocates a table with capacity nproc (spec.md's NPROC).
func NewTable(nproc int, clock Clock) *Table {
	t := &Table{
		slots:   make([]ProcSlot, nproc),
		nextPID: 1,
		clock:   clock,
	}
	t.cond = sync.NewCond(&t.mu)
	for i := range t.slots {
		t.slots[i].Slot = i
	}
	return t
}

// Lock/Unlock expose the table's single spinlock-equivalent to collaborating
// packages (sched, ipc) that must take it alongside table operations,
// mirroring xv6's acquire(&ptable.lock)/release(&ptable.lock) pattern.
func (t *Table) Lock()   { t.mu.Lock() }
func (t *Table) Unlock() { t.mu.Unlock() }

// NPROC returns the table's fixed capacity.
func (t *Table) NPROC() int { return len(t.slots) }

// AllocSlot scans for a Unused slot, transitions it to Embryo, and assigns
// it a fresh pid. Returns nil if the table is full (spec.md §4.1).
func (t *Table) AllocSlot() *ProcSlot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.allocSlotLocked()
}

func (t *Table) allocSlotLocked() *ProcSlot {
	for i := range t.slots {
		p := &t.slots[i]
		if p.State == Unused {
			p.State = Embryo
			p.PID = t.nextPID
			t.nextPID++
			p.CreationTime = t.clock.Now()
			p.WaitingInQueueCycle = 0
			p.ExecCycle = 0
			p.Killed = false
			if p.PID == 1 || p.PID == 2 {
				p.QueueLvl = RoundRobin
			} else {
				p.QueueLvl = Lottery
			}
			if p.PID == 1 {
				t.init = p.PID
			}
			t.logEvent(logrus.InfoLevel, "slot allocated", logrus.Fields{
				"pid": p.PID, "slot": p.Slot, "queue_lvl": p.QueueLvl, "state": p.State,
			})
			return p
		}
	}
	return nil
}

// FreeSlot resets a slot to Unused. Caller must hold the table lock.
func (t *Table) FreeSlot(p *ProcSlot) {
	idx := p.Slot
	pid := p.PID
	t.slots[idx] = ProcSlot{Slot: idx}
	t.logEvent(logrus.InfoLevel, "slot freed", logrus.Fields{
		"pid": pid, "slot": idx, "state": Unused,
	})
}

// FindByPID returns the slot for pid, or nil. Caller must hold the table
// lock; use FindByPIDLocking for the convenience wrapper that takes it.
func (t *Table) FindByPID(pid PID) *ProcSlot {
	if pid == 0 {
		return nil
	}
	for i := range t.slots {
		if t.slots[i].PID == pid {
			return &t.slots[i]
		}
	}
	return nil
}

// FindByPIDLocking acquires the table lock, looks up pid, and returns a
// *copy* of the slot (safe to read after unlocking) plus whether it existed.
func (t *Table) FindByPIDLocking(pid PID) (ProcSlot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.FindByPID(pid)
	if p == nil {
		return ProcSlot{}, false
	}
	return *p, true
}

// SlotsLocked returns pointers to every used slot (PID != 0). Caller must
// already hold the table lock; the scheduler uses this to run policy
// selection and aging as a single locked pass.
func (t *Table) SlotsLocked() []*ProcSlot {
	out := make([]*ProcSlot, 0, len(t.slots))
	for i := range t.slots {
		if t.slots[i].PID != 0 {
			out = append(out, &t.slots[i])
		}
	}
	return out
}

// Iterate calls f for every used slot (PID != 0), holding the table lock for
// the duration of the call. f must not call back into Table.
func (t *Table) Iterate(f func(*ProcSlot)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.slots {
		if t.slots[i].PID != 0 {
			f(&t.slots[i])
		}
	}
}

// MakeRunnable finishes Embryo setup (address space attached by the caller
// outside the lock) and transitions a slot to Runnable, then attaches the
// goroutine that will execute body whenever the scheduler dispatches this
// slot. body must eventually call Exit (directly or via panic-recovery in
// the caller) — if it returns without doing so, Table force-exits the slot.
func (t *Table) MakeRunnable(p *ProcSlot, body func(*ProcSlot)) {
	p.resume = make(chan struct{})
	p.retired = make(chan struct{})
	t.mu.Lock()
	p.State = Runnable
	t.logEvent(logrus.InfoLevel, "state transition", logrus.Fields{
		"pid": p.PID, "slot": p.Slot, "queue_lvl": p.QueueLvl, "state": p.State,
	})
	t.mu.Unlock()

	go func() {
		<-p.resume
		body(p)
		// A body that returns without exiting is a bug in the caller;
		// exit on its behalf so the table never wedges.
		t.mu.Lock()
		alreadyZombie := p.State == Zombie
		t.mu.Unlock()
		if !alreadyZombie {
			t.Exit(p)
		}
	}()
}

// Dispatch hands the CPU to p's goroutine and blocks until it next
// suspends (yield, sleep, or exit). Caller must NOT hold the table lock;
// the handoff happens with the lock released, mirroring the fact that
// xv6's forkret drops ptable.lock before a process runs in user mode.
func (t *Table) Dispatch(p *ProcSlot) {
	p.resume <- struct{}{}
	<-p.retired
}

// --- sleep/wakeup primitive (spec.md §4.5) ---

// Sleep atomically marks the calling process's slot as Sleeping on chan and
// suspends it until some Wakeup(chan) call (or Kill) transitions it back to
// Runnable. The table lock must be held by the caller on entry; Sleep
// releases it for the blocking window and reacquires it before returning
// (the same contract xv6's sleep(chan, &ptable.lock) documents for the
// common case where the passed lock already *is* the table lock — see the
// ipc package for how a *different* lock, e.g. a semaphore's, is folded
// into this one without losing wakeups).
func (t *Table) Sleep(p *ProcSlot, chanID ChannelID) {
	if p.State != Running {
		t.kpanic("sleep: process must be Running")
	}
	p.Chan = chanID
	p.State = Sleeping
	t.logEvent(logrus.InfoLevel, "state transition", logrus.Fields{
		"pid": p.PID, "slot": p.Slot, "queue_lvl": p.QueueLvl, "state": p.State,
	})
	t.mu.Unlock()
	p.retired <- struct{}{}
	<-p.resume
	t.mu.Lock()
	p.Chan = 0
}

// WakeupLocked transitions every Sleeping slot parked on chanID to
// Runnable. Caller must hold the table lock. A wakeup with no sleeper is a
// no-op; callers may always observe spurious wakeups and must recheck their
// condition in a loop (spec.md §4.5).
func (t *Table) WakeupLocked(chanID ChannelID) {
	for i := range t.slots {
		p := &t.slots[i]
		if p.State == Sleeping && p.Chan == chanID {
			p.State = Runnable
			t.logEvent(logrus.InfoLevel, "state transition", logrus.Fields{
				"pid": p.PID, "slot": p.Slot, "queue_lvl": p.QueueLvl, "state": p.State,
			})
		}
	}
}

// Wakeup acquires the table lock and calls WakeupLocked.
func (t *Table) Wakeup(chanID ChannelID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.WakeupLocked(chanID)
}

// --- lifecycle operations ---

// Fork duplicates the caller's auxiliary state into a fresh Embryo slot,
// then makes it Runnable with body as its entry point. Returns the child's
// pid, or ErrNoFreeSlot if the table is full.
func (t *Table) Fork(parent *ProcSlot, body func(*ProcSlot)) (PID, error) {
	t.mu.Lock()
	child := t.allocSlotLocked()
	if child == nil {
		t.mu.Unlock()
		return 0, ErrNoFreeSlot
	}
	child.Parent = parent.PID
	child.Aux = deepcopy.Copy(parent.Aux).(ProcAux)
	child.BJFWeights = parent.BJFWeights
	child.Priority = parent.Priority
	t.mu.Unlock()

	pid := child.PID
	t.MakeRunnable(child, body)
	return pid, nil
}

// Exit tears down the caller's auxiliary state, wakes a waiting parent,
// reparents children to init, and marks the slot Zombie. It must be called
// from within the slot's own goroutine. After handing off to the scheduler
// one last time via Dispatch's retired channel, Exit returns to its caller:
// the slot is never dispatched again, and any code the body runs after Exit
// runs concurrently with the scheduler. Exit of the init process is a kernel
// panic.
func (t *Table) Exit(p *ProcSlot) {
	if p.PID == t.init && t.init != 0 {
		t.kpanic("exit: init exiting")
	}

	// Close auxiliary resources outside the table lock (spec.md §4.1).
	p.Aux.OpenFiles = nil
	p.Aux.Cwd = ""

	t.mu.Lock()
	t.WakeupLocked(ChanProc(int(p.Parent)))
	for i := range t.slots {
		c := &t.slots[i]
		if c.PID != 0 && c.Parent == p.PID {
			c.Parent = t.init
			if c.State == Zombie {
				t.WakeupLocked(ChanProc(int(t.init)))
			}
		}
	}
	p.State = Zombie
	t.logEvent(logrus.InfoLevel, "state transition", logrus.Fields{
		"pid": p.PID, "slot": p.Slot, "queue_lvl": p.QueueLvl, "state": p.State,
	})
	t.mu.Unlock()

	p.retired <- struct{}{}
}

// Wait blocks the caller until a child exits, reaps it, and returns its
// pid. Returns ErrNoChildren if the caller has no children or has been
// killed.
func (t *Table) Wait(caller *ProcSlot) (PID, error) {
	t.mu.Lock()
	for {
		haveKids := false
		for i := range t.slots {
			c := &t.slots[i]
			if c.PID == 0 || c.Parent != caller.PID {
				continue
			}
			haveKids = true
			if c.State == Zombie {
				pid := c.PID
				t.FreeSlot(c)
				t.mu.Unlock()
				return pid, nil
			}
		}
		if !haveKids || caller.Killed {
			t.mu.Unlock()
			return 0, ErrNoChildren
		}
		t.Sleep(caller, ChanProc(int(caller.PID)))
	}
}

// Kill marks pid killed and, if it is Sleeping, forces it Runnable so its
// sleep returns and it can observe Killed on its next suspension point.
// Returns ErrBadPID if no such process exists.
func (t *Table) Kill(pid PID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.FindByPID(pid)
	if p == nil {
		return ErrBadPID
	}
	p.Killed = true
	if p.State == Sleeping {
		p.State = Runnable
		t.logEvent(logrus.InfoLevel, "state transition", logrus.Fields{
			"pid": p.PID, "slot": p.Slot, "queue_lvl": p.QueueLvl, "state": p.State,
		})
	}
	return nil
}

// Yield gives up the CPU for one scheduling round: the caller becomes
// Runnable again and its exec-cycle counter increments. Must be called from
// within the slot's own goroutine while Running.
func (t *Table) Yield(p *ProcSlot) {
	t.mu.Lock()
	if p.State != Running {
		t.mu.Unlock()
		t.kpanic("yield: process must be Running")
	}
	p.State = Runnable
	p.ExecCycle++
	t.logEvent(logrus.InfoLevel, "state transition", logrus.Fields{
		"pid": p.PID, "slot": p.Slot, "queue_lvl": p.QueueLvl, "state": p.State,
	})
	t.mu.Unlock()
	p.retired <- struct{}{}
	<-p.resume
}
