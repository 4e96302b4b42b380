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

package proc_test

import (
	"testing"

	"github.com/eduos/mlsched/proc"
)

// fakeClock is a manually-advanced Clock for deterministic tests.
type fakeClock struct{ t proc.Tick }

func (c *fakeClock) Now() proc.Tick { return c.t }

// runOnce simulates a single scheduler dispatch: marks p Running and hands
// it the CPU until it next suspends (yield, sleep, or exit).
func runOnce(tbl *proc.Table, p *proc.ProcSlot) {
	tbl.Lock()
	p.State = proc.Running
	tbl.Unlock()
	tbl.Dispatch(p)
}

func TestAllocSlotAssignsQueueByPID(t *testing.T) {
	tbl := proc.NewTable(4, &fakeClock{})

	init := tbl.AllocSlot()
	if init == nil || init.PID != 1 {
		t.Fatalf("expected pid 1, got %+v", init)
	}
	if init.QueueLvl != proc.RoundRobin {
		t.Errorf("pid 1 should start in ROUND_ROBIN, got %s", init.QueueLvl)
	}

	shell := tbl.AllocSlot()
	if shell.PID != 2 || shell.QueueLvl != proc.RoundRobin {
		t.Errorf("pid 2 should start in ROUND_ROBIN, got pid=%d queue=%s", shell.PID, shell.QueueLvl)
	}

	user := tbl.AllocSlot()
	if user.PID != 3 || user.QueueLvl != proc.Lottery {
		t.Errorf("pid 3 should start in LOTTERY, got pid=%d queue=%s", user.PID, user.QueueLvl)
	}
}

func TestAllocSlotExhaustion(t *testing.T) {
	tbl := proc.NewTable(2, &fakeClock{})
	if tbl.AllocSlot() == nil {
		t.Fatal("expected first alloc to succeed")
	}
	if tbl.AllocSlot() == nil {
		t.Fatal("expected second alloc to succeed")
	}
	if p := tbl.AllocSlot(); p != nil {
		t.Fatalf("expected table-full nil, got slot %+v", p)
	}
}

func TestForkCopiesAuxAndWeights(t *testing.T) {
	tbl := proc.NewTable(4, &fakeClock{})
	parent := tbl.AllocSlot()
	parent.Aux.Name = "parent"
	parent.Aux.OpenFiles = []string{"/dev/console"}
	parent.BJFWeights = proc.BJFWeights{PriorityRatio: 1, ArrivalRatio: 2, ExecCycleRatio: 3}
	tbl.MakeRunnable(parent, func(*proc.ProcSlot) {})

	childPID, err := tbl.Fork(parent, func(p *proc.ProcSlot) {
		tbl.Exit(p)
	})
	if err != nil {
		t.Fatalf("Fork: %v", err)
	}

	child, ok := tbl.FindByPIDLocking(childPID)
	if !ok {
		t.Fatalf("child pid %d not found", childPID)
	}
	if child.Parent != parent.PID {
		t.Errorf("child.Parent = %d, want %d", child.Parent, parent.PID)
	}
	if child.Aux.Name != "parent" {
		t.Errorf("child.Aux.Name = %q, want copied %q", child.Aux.Name, "parent")
	}
	if len(child.Aux.OpenFiles) != 1 || child.Aux.OpenFiles[0] != "/dev/console" {
		t.Errorf("child.Aux.OpenFiles not deep-copied: %+v", child.Aux.OpenFiles)
	}
	if child.BJFWeights != parent.BJFWeights {
		t.Errorf("child.BJFWeights = %+v, want %+v", child.BJFWeights, parent.BJFWeights)
	}

	runOnce(tbl, &child)
}

func TestWaitReapsExitedChild(t *testing.T) {
	tbl := proc.NewTable(4, &fakeClock{})
	parent := tbl.AllocSlot()
	tbl.MakeRunnable(parent, func(*proc.ProcSlot) {})

	done := make(chan struct{})
	childPID, err := tbl.Fork(parent, func(p *proc.ProcSlot) {
		tbl.Exit(p)
		close(done)
	})
	if err != nil {
		t.Fatalf("Fork: %v", err)
	}

	child, _ := tbl.FindByPIDLocking(childPID)
	runOnce(tbl, &child)
	<-done

	tbl.Lock()
	parent.State = proc.Running
	tbl.Unlock()
	reaped, err := tbl.Wait(parent)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if reaped != childPID {
		t.Errorf("Wait reaped pid %d, want %d", reaped, childPID)
	}
	if _, ok := tbl.FindByPIDLocking(childPID); ok {
		t.Errorf("reaped child %d still present in table", childPID)
	}
}

func TestWaitNoChildrenReturnsErr(t *testing.T) {
	tbl := proc.NewTable(4, &fakeClock{})
	solo := tbl.AllocSlot()
	tbl.MakeRunnable(solo, func(*proc.ProcSlot) {})
	tbl.Lock()
	solo.State = proc.Running
	tbl.Unlock()

	if _, err := tbl.Wait(solo); err != proc.ErrNoChildren {
		t.Errorf("Wait = %v, want ErrNoChildren", err)
	}
}

// TestOrphanReparentsToInit forks a child that never gets dispatched
// (so it's still present, Runnable, when its parent exits) and checks that
// exit() reparents it to pid 1 rather than leaving it parentless.
func TestOrphanReparentsToInit(t *testing.T) {
	tbl := proc.NewTable(4, &fakeClock{})
	initProc := tbl.AllocSlot() // pid 1
	tbl.MakeRunnable(initProc, func(*proc.ProcSlot) {})

	parent := tbl.AllocSlot() // pid 2
	var childPID proc.PID
	tbl.MakeRunnable(parent, func(p *proc.ProcSlot) {
		pid, err := tbl.Fork(p, func(c *proc.ProcSlot) {
			tbl.Lock()
			tbl.Sleep(c, proc.ChanSem(99))
			tbl.Unlock()
		})
		if err != nil {
			t.Errorf("Fork: %v", err)
		}
		childPID = pid
		// Returning without an explicit Exit exercises MakeRunnable's
		// auto-exit path.
	})

	runOnce(tbl, parent)

	child, ok := tbl.FindByPIDLocking(childPID)
	if !ok {
		t.Fatalf("child pid %d not found", childPID)
	}
	if child.Parent != initProc.PID {
		t.Errorf("child.Parent = %d, want init pid %d", child.Parent, initProc.PID)
	}
}

func TestKillWakesSleepingProcess(t *testing.T) {
	tbl := proc.NewTable(4, &fakeClock{})
	tbl.AllocSlot() // pid 1 (init) stays Embryo: init exiting is a kernel panic.
	p := tbl.AllocSlot()
	tbl.MakeRunnable(p, func(p *proc.ProcSlot) {
		tbl.Lock()
		tbl.Sleep(p, proc.ChanSem(0))
		tbl.Unlock()
	})

	runOnce(tbl, p) // runs until the body parks in Sleep

	tbl.Lock()
	if p.State != proc.Sleeping {
		tbl.Unlock()
		t.Fatalf("state = %s, want SLEEPING", p.State)
	}
	tbl.Unlock()

	if err := tbl.Kill(p.PID); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	tbl.Lock()
	if p.State != proc.Runnable {
		tbl.Unlock()
		t.Fatalf("state after Kill = %s, want RUNNABLE", p.State)
	}
	tbl.Unlock()

	runOnce(tbl, p) // redispatch: Sleep returns, body ends, auto-exit fires

	if !p.Killed {
		t.Error("expected Killed to be set")
	}
}

func TestYieldIncrementsExecCycle(t *testing.T) {
	tbl := proc.NewTable(4, &fakeClock{})
	tbl.AllocSlot() // pid 1 (init) stays Embryo: init exiting is a kernel panic.
	p := tbl.AllocSlot()
	yields := 0
	tbl.MakeRunnable(p, func(p *proc.ProcSlot) {
		for yields < 3 {
			yields++
			tbl.Yield(p)
		}
	})

	for i := 0; i < 4; i++ {
		runOnce(tbl, p)
	}

	if p.ExecCycle != 3 {
		t.Errorf("ExecCycle = %d, want 3", p.ExecCycle)
	}
	if p.State != proc.Zombie {
		t.Errorf("final state = %s, want ZOMBIE", p.State)
	}
}
