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

// PID is a process identifier. 0 means "no process" / "free slot".
type PID int64

// Tick is the kernel's monotonic clock unit (see the clock package).
type Tick int64

// ProcAux bundles the auxiliary, opaque-to-the-scheduler per-process state:
// address space, kernel stack, trap frame, open files, name, and cwd. The
// scheduler never inspects these fields; it only allocates, copies, and
// frees them as a unit. Real virtual-memory/filesystem plumbing is out of
// scope (see spec Non-goals) — these are placeholders a host embedding this
// scheduler would replace with real handles.
type ProcAux struct {
	Name         string
	Cwd          string
	OpenFiles    []string
	AddressSpace []byte
	KernelStack  []byte
	TrapFrame    [16]uint64
	Context      [8]uint64
}

// BJFWeights holds the three Best-Job-First rank weighting ratios.
type BJFWeights struct {
	PriorityRatio  int64
	ArrivalRatio   int64
	ExecCycleRatio int64
}

// TicketSpan is a lottery ticket interval, inclusive on both ends.
type TicketSpan struct {
	First int64
	Last  int64
}

// Contains reports whether ticket t falls within [First, Last].
func (s TicketSpan) Contains(t int64) bool {
	return t >= s.First && t <= s.Last
}

// ProcSlot is a single process-table entry. Every operation that mutates a
// slot's fields other than Aux must be performed with the owning Table's
// lock held; see Table for the concurrency discipline.
type ProcSlot struct {
	// Identity and lifecycle.
	Slot   int // fixed index into the owning Table; a process's identity.
	PID    PID
	Parent PID // 0 means no parent (root/init).
	State  State

	Aux ProcAux

	// Chan is the wakeup-channel this slot is parked on; meaningful only
	// when State == Sleeping (invariant 3 of spec.md §3).
	Chan ChannelID

	Killed bool

	QueueLvl QueueLevel

	CreationTime Tick
	LastCPUTime  Tick // last dispatch time; used by round-robin.

	WaitingInQueueCycle int64 // increments each time another process runs instead of this one.
	ExecCycle           int64 // count of voluntary yields.

	// Lottery.
	Tickets TicketSpan

	// Best-Job-First.
	Priority int64
	Arrival  int64
	BJFWeights

	// Tracing: used only by GetParentPID.
	IsTracer     bool
	TracerParent PID

	// resume is the handoff channel the scheduler uses to grant this
	// slot's goroutine the CPU; see sched.Scheduler. It is the Go-native
	// analogue of swtch: parking on a channel instead of swapping a
	// register file. nil until the slot has an attached goroutine.
	resume chan struct{}
	// retired is how the slot's goroutine reports back to the dispatcher
	// that it gave up the CPU (yielded, slept, or exited).
	retired chan struct{}
}

// Sleeping returns the channel this slot is parked on and true, or the zero
// ChannelID and false if the slot isn't Sleeping. Prefer this over reading
// Chan directly — it is the practical stand-in for a proper sum type.
func (p *ProcSlot) Sleeping() (ChannelID, bool) {
	if p.State != Sleeping {
		return 0, false
	}
	return p.Chan, true
}

// Rank computes the Best-Job-First rank: lower is preferred. Fixed-point
// integer arithmetic throughout, per SPEC_FULL.md §1 (the original's mixed
// int/float computation is explicitly flagged as a bug to not reproduce).
func (p *ProcSlot) Rank() int64 {
	return (p.Priority*p.PriorityRatio + p.Arrival*p.ArrivalRatio + p.ExecCycle*p.ExecCycleRatio) / 10
}
