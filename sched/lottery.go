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

package sched

import "github.com/eduos/mlsched/proc"

// lfsrModulus is the ticket-draw range (rand() % 200 in the original).
const lfsrModulus = 200

// lfsr is a 16-bit Fibonacci LFSR with taps {0,2,3,5}, seeded at 0xACE1 —
// the exact generator original_source/proc.c's rand() uses. It is not
// cryptographically meaningful; it exists to reproduce the original's
// ticket draw bit for bit.
type lfsr struct {
	state uint16
}

func newLFSR() *lfsr { return &lfsr{state: 0xACE1} }

func (l *lfsr) next() uint16 {
	bit := ((l.state >> 0) ^ (l.state >> 2) ^ (l.state >> 3) ^ (l.state >> 5)) & 1
	l.state = (l.state >> 1) | (bit << 15)
	return l.state
}

// draw returns a ticket value in [0, lfsrModulus).
func (l *lfsr) draw() int64 {
	return int64(l.next()) % lfsrModulus
}

// LotteryPolicy draws a ticket and dispatches the first Runnable process
// (in table order) whose ticket span contains it (lot_sched). Access to
// the generator is only ever made with the table lock held by the caller
// (sched.Scheduler), so it needs no locking of its own — the same
// implicit-protection-by-ptable.lock the original relies on.
type LotteryPolicy struct {
	gen *lfsr
}

// NewLotteryPolicy constructs a policy with the spec-mandated seed.
func NewLotteryPolicy() *LotteryPolicy {
	return &LotteryPolicy{gen: newLFSR()}
}

func (*LotteryPolicy) Level() proc.QueueLevel { return proc.Lottery }

func (l *LotteryPolicy) SelectLocked(slots []*proc.ProcSlot) (*proc.ProcSlot, bool) {
	cands := levelSlots(slots, proc.Lottery)
	if len(cands) == 0 {
		return nil, false
	}
	ticket := l.gen.draw()
	for _, p := range cands {
		if p.Tickets.Contains(ticket) {
			return p, true
		}
	}
	// No span matched (gaps or an empty span are legal): lot_sched returns
	// chosen_proc = 0 on this path, so the caller falls through to BJF
	// rather than running an uncovered process.
	return nil, false
}
