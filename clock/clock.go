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

// Package clock implements the kernel's tick source: a monotonically
// increasing counter driven by a timer-interrupt analogue, plus the bounded
// tick-counted sleep used by sys_sleep (original_source/sysproc.c).
package clock

import (
	"sync/atomic"
	"time"

	"github.com/eduos/mlsched/proc"
)

// Clock is a free-running tick counter. The zero value is ready to use at
// tick 0. It satisfies proc.Clock.
type Clock struct {
	ticks atomic.Int64
}

// Now returns the current tick count. Implements proc.Clock.
func (c *Clock) Now() proc.Tick { return proc.Tick(c.ticks.Load()) }

// Tick advances the clock by one and wakes anything sleeping on the shared
// ticks channel, so bounded sleeps can recheck their deadlines.
func (c *Clock) Tick(tbl *proc.Table) {
	c.ticks.Add(1)
	tbl.Wakeup(proc.ChanTicks)
}

// Run drives Tick once per period until ctx (via the done channel) is
// closed. It is the goroutine analogue of the timer interrupt handler.
func (c *Clock) Run(tbl *proc.Table, period time.Duration, done <-chan struct{}) {
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			c.Tick(tbl)
		}
	}
}

// SleepTicks suspends the calling process (which must be Running, and whose
// slot's own goroutine must be the caller) for approximately n ticks, or
// until it is killed. It mirrors sys_sleep's loop: wait for a tick, check
// Killed, repeat until the count is exhausted. n <= 0 returns immediately.
func SleepTicks(tbl *proc.Table, p *proc.ProcSlot, n int64) {
	if n <= 0 {
		return
	}
	target := int64(0)
	tbl.Lock()
	for target < n {
		if p.Killed {
			tbl.Unlock()
			return
		}
		tbl.Sleep(p, proc.ChanTicks)
		target++
	}
	tbl.Unlock()
}
