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

package ipc_test

import (
	"testing"
	"time"

	"github.com/eduos/mlsched/ipc"
	"github.com/eduos/mlsched/proc"
)

type fakeClock struct{}

func (fakeClock) Now() proc.Tick { return 0 }

func TestInitAndValue(t *testing.T) {
	tbl := proc.NewTable(2, fakeClock{})
	sems := ipc.New(tbl)
	if err := sems.Init(0, 2); err != nil {
		t.Fatalf("Init: %v", err)
	}
	v, err := sems.Value(0)
	if err != nil || v != 2 {
		t.Fatalf("Value = %d, %v, want 2, nil", v, err)
	}
}

func TestInitTwiceErrors(t *testing.T) {
	tbl := proc.NewTable(2, fakeClock{})
	sems := ipc.New(tbl)
	if err := sems.Init(0, 2); err != nil {
		t.Fatalf("first Init: %v", err)
	}
	if err := sems.Init(0, 5); err != ipc.ErrAlreadyInitialized {
		t.Fatalf("second Init = %v, want ErrAlreadyInitialized", err)
	}
	v, err := sems.Value(0)
	if err != nil || v != 2 {
		t.Errorf("Value after rejected re-init = %d, %v, want 2, nil (must not reset)", v, err)
	}
}

func TestBadIndexErrors(t *testing.T) {
	tbl := proc.NewTable(2, fakeClock{})
	sems := ipc.New(tbl)
	if err := sems.Init(ipc.NSEM, 1); err != ipc.ErrBadSemIndex {
		t.Errorf("Init(out of range) = %v, want ErrBadSemIndex", err)
	}
	if _, err := sems.Value(-1); err != ipc.ErrBadSemIndex {
		t.Errorf("Value(-1) = %v, want ErrBadSemIndex", err)
	}
}

func TestAcquireBlocksUntilRelease(t *testing.T) {
	tbl := proc.NewTable(4, fakeClock{})
	sems := ipc.New(tbl)
	sems.Init(0, 0)

	tbl.AllocSlot() // pid 1 (init) stays Embryo: init exiting is a kernel panic.
	waiter := tbl.AllocSlot()
	acquired := make(chan struct{})
	tbl.MakeRunnable(waiter, func(p *proc.ProcSlot) {
		if err := sems.Acquire(p, 0); err != nil {
			t.Errorf("Acquire: %v", err)
			return
		}
		close(acquired)
	})

	// Drive a minimal scheduler: dispatch waiter whenever it's Runnable.
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			tbl.Lock()
			runnable := waiter.State == proc.Runnable
			tbl.Unlock()
			if runnable {
				tbl.Lock()
				waiter.State = proc.Running
				tbl.Unlock()
				tbl.Dispatch(waiter)
			}
			time.Sleep(2 * time.Millisecond)
		}
	}()
	defer close(stop)

	select {
	case <-acquired:
		t.Fatal("Acquire returned before Release")
	case <-time.After(30 * time.Millisecond):
	}

	releaser := tbl.AllocSlot()
	tbl.MakeRunnable(releaser, func(p *proc.ProcSlot) {})
	if err := sems.Release(releaser, 0); err != nil {
		t.Fatalf("Release: %v", err)
	}

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("waiter never acquired after Release")
	}
}

func TestAcquireReturnsKilledError(t *testing.T) {
	tbl := proc.NewTable(4, fakeClock{})
	sems := ipc.New(tbl)
	sems.Init(0, 0)

	tbl.AllocSlot() // pid 1 (init) stays Embryo: init exiting is a kernel panic.
	waiter := tbl.AllocSlot()
	result := make(chan error, 1)
	tbl.MakeRunnable(waiter, func(p *proc.ProcSlot) {
		result <- sems.Acquire(p, 0)
	})

	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}
			tbl.Lock()
			runnable := waiter.State == proc.Runnable
			tbl.Unlock()
			if runnable {
				tbl.Lock()
				waiter.State = proc.Running
				tbl.Unlock()
				tbl.Dispatch(waiter)
			}
			time.Sleep(2 * time.Millisecond)
		}
	}()
	defer close(stop)

	time.Sleep(10 * time.Millisecond)
	if err := tbl.Kill(waiter.PID); err != nil {
		t.Fatalf("Kill: %v", err)
	}

	select {
	case err := <-result:
		if err != proc.ErrProcessKilled {
			t.Errorf("Acquire error = %v, want ErrProcessKilled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Acquire never returned after Kill")
	}
}
