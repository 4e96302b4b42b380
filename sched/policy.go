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

// Package sched implements the three scheduling disciplines and the
// dispatch loop that composes them (original_source/proc.c's scheduler(),
// round_robin_sched(), lot_sched(), bjf_sched(), and age()).
package sched

import "github.com/eduos/mlsched/proc"

// Policy selects the next process to run from among the slots at its
// queue level. SelectLocked is called with the table lock already held;
// implementations must not block or call back into the table's locking
// methods.
type Policy interface {
	Level() proc.QueueLevel
	// SelectLocked scans slots (every used process-table entry) and
	// returns the chosen one and true, or nil and false if it chooses
	// none: no slot of its level is Runnable, or (lottery) the drawn
	// ticket falls in no Runnable slot's span.
	SelectLocked(slots []*proc.ProcSlot) (*proc.ProcSlot, bool)
}

// levelSlots filters slots to those at level lvl and currently Runnable.
func levelSlots(slots []*proc.ProcSlot, lvl proc.QueueLevel) []*proc.ProcSlot {
	var out []*proc.ProcSlot
	for _, p := range slots {
		if p.QueueLvl == lvl && p.State == proc.Runnable {
			out = append(out, p)
		}
	}
	return out
}
