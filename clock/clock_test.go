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

package clock_test

import (
	"testing"
	"time"

	"github.com/eduos/mlsched/clock"
	"github.com/eduos/mlsched/proc"
)

func TestNowAdvancesOnTick(t *testing.T) {
	var c clock.Clock
	tbl := proc.NewTable(2, &c)
	if c.Now() != 0 {
		t.Fatalf("Now() = %d, want 0", c.Now())
	}
	c.Tick(tbl)
	c.Tick(tbl)
	if c.Now() != 2 {
		t.Fatalf("Now() = %d, want 2", c.Now())
	}
}

func TestSleepTicksWakesAfterN(t *testing.T) {
	var c clock.Clock
	tbl := proc.NewTable(2, &c)
	tbl.AllocSlot() // pid 1 (init) stays Embryo: init exiting is a kernel panic.
	p := tbl.AllocSlot()

	woke := make(chan struct{})
	tbl.MakeRunnable(p, func(p *proc.ProcSlot) {
		clock.SleepTicks(tbl, p, 3)
		close(woke)
	})

	// A minimal scheduler loop in a background goroutine: whenever p is
	// Runnable, dispatch it; the test goroutine drives the tick source.
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		for i := 0; i < 10; i++ {
			tbl.Lock()
			runnable := p.State == proc.Runnable || p.State == proc.Embryo
			tbl.Unlock()
			if runnable {
				tbl.Lock()
				p.State = proc.Running
				tbl.Unlock()
				tbl.Dispatch(p)
			}
			select {
			case <-woke:
				return
			case <-time.After(5 * time.Millisecond):
			}
		}
	}()

	for i := 0; i < 3; i++ {
		time.Sleep(5 * time.Millisecond)
		c.Tick(tbl)
	}

	select {
	case <-woke:
	case <-time.After(time.Second):
		t.Fatal("SleepTicks did not return after 3 ticks")
	}
	<-schedDone
}

func TestSleepTicksZeroReturnsImmediately(t *testing.T) {
	var c clock.Clock
	tbl := proc.NewTable(2, &c)
	tbl.AllocSlot() // pid 1 (init) stays Embryo: init exiting is a kernel panic.
	p := tbl.AllocSlot()

	done := make(chan struct{})
	tbl.MakeRunnable(p, func(p *proc.ProcSlot) {
		clock.SleepTicks(tbl, p, 0)
		close(done)
	})
	tbl.Lock()
	p.State = proc.Running
	tbl.Unlock()
	tbl.Dispatch(p)
	select {
	case <-done:
	default:
		t.Fatal("body did not complete synchronously for n<=0")
	}
}
