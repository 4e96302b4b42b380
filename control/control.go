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

// Package control implements the nine syscalls-as-methods the original
// kernel exposed to user processes (original_source/sysproc.c), split into
// two groups:
//
//   - Administrative calls (SemInit, ChangeQueue, SetBJF, SetBJFProcess,
//     SetTicket, PrintProcesses, GetParentPID) address a pid and never
//     block, so they're safe to drive from any goroutine — in particular
//     the mlschedd RPC handler goroutine a remote mlschedctl invocation
//     runs on.
//   - SemAcquire/SemRelease act on behalf of the calling process and may
//     block it, so they take the caller's own *proc.ProcSlot and must be
//     invoked from within that slot's own goroutine (i.e. from simulated
//     process bodies running in their own slot goroutines, never from the RPC
//     surface — there is no "calling process" a remote CLI invocation
//     could plausibly be).
package control

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/eduos/mlsched/ipc"
	"github.com/eduos/mlsched/proc"
)

// Syscalls is the control surface bound to one kernel instance.
type Syscalls struct {
	tbl   *proc.Table
	sems  *ipc.Semaphores
	limit *rate.Limiter
}

// New builds a Syscalls surface. PrintProcesses is rate limited to at most
// one dump per printInterval, so a misbehaving or abusive client can't
// spin the table lock via repeated console dumps.
func New(tbl *proc.Table, sems *ipc.Semaphores, printInterval time.Duration) *Syscalls {
	return &Syscalls{
		tbl:   tbl,
		sems:  sems,
		limit: rate.NewLimiter(rate.Every(printInterval), 1),
	}
}

// SemInit is sys_sem_init: initializes semaphore i to value. A second call
// on an already-initialized semaphore returns ipc.ErrAlreadyInitialized.
func (s *Syscalls) SemInit(i int, value int) error {
	return s.sems.Init(i, value)
}

// SemAcquire is sys_sem_acquire for the calling process p. See the package
// doc for the goroutine-affinity requirement.
func (s *Syscalls) SemAcquire(p *proc.ProcSlot, i int) error {
	return s.sems.Acquire(p, i)
}

// SemRelease is sys_sem_release for the calling process p.
func (s *Syscalls) SemRelease(p *proc.ProcSlot, i int) error {
	return s.sems.Release(p, i)
}

// ChangeQueue is sys_change_queue / changeq: moves pid to lvl. Unknown pids
// are a silent no-op, matching the original (original_source/proc.c's
// changeq never reports failure to the caller).
func (s *Syscalls) ChangeQueue(pid proc.PID, lvl proc.QueueLevel) {
	s.tbl.Lock()
	defer s.tbl.Unlock()
	p := s.tbl.FindByPID(pid)
	if p == nil {
		return
	}
	p.QueueLvl = lvl
	p.WaitingInQueueCycle = 0
}

// SetBJF is sys_set_bjf: sets w on every process currently in the table,
// overriding any prior SetBJFProcess assignment for all of them
// (original_source/proc.c's set_bjf, spec.md §6/§8).
func (s *Syscalls) SetBJF(w proc.BJFWeights) {
	s.tbl.Iterate(func(p *proc.ProcSlot) {
		p.BJFWeights = w
	})
}

// SetBJFProcess is sys_set_bjf_process: sets w on pid alone.
func (s *Syscalls) SetBJFProcess(pid proc.PID, w proc.BJFWeights) {
	s.tbl.Lock()
	defer s.tbl.Unlock()
	p := s.tbl.FindByPID(pid)
	if p == nil {
		return
	}
	p.BJFWeights = w
}

// SetTicket is sys_set_ticket: assigns pid's lottery ticket span.
func (s *Syscalls) SetTicket(pid proc.PID, span proc.TicketSpan) {
	s.tbl.Lock()
	defer s.tbl.Unlock()
	p := s.tbl.FindByPID(pid)
	if p == nil {
		return
	}
	p.Tickets = span
}

// GetParentPID is sys_get_parent_pid: returns pid's parent, skipping over
// any ancestor marked as a tracer (IsTracer), matching the original's
// tracer-parent skip loop. Returns 0, false if pid is unknown.
func (s *Syscalls) GetParentPID(pid proc.PID) (proc.PID, bool) {
	s.tbl.Lock()
	defer s.tbl.Unlock()
	p := s.tbl.FindByPID(pid)
	if p == nil {
		return 0, false
	}
	parent := p.Parent
	for {
		pp := s.tbl.FindByPID(parent)
		if pp == nil || !pp.IsTracer {
			break
		}
		parent = pp.TracerParent
	}
	return parent, true
}

// PrintProcesses is sys_print_processes: renders the console dump format
// (printp/procdump) for every process in the table. Rate limited; returns
// an empty string without error if called more often than the configured
// interval allows.
func (s *Syscalls) PrintProcesses() string {
	if !s.limit.Allow() {
		return ""
	}
	var b strings.Builder
	s.tbl.Iterate(func(p *proc.ProcSlot) {
		fmt.Fprintf(&b, "%d\t%s\t%s\t%s\trank=%d\twait=%d\n",
			p.PID, p.Aux.Name, p.State, p.QueueLvl, p.Rank(), p.WaitingInQueueCycle)
	})
	return b.String()
}
