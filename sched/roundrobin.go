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

// RoundRobinPolicy dispatches the Runnable process at its level that has
// gone the longest since it last held the CPU (round_robin_sched).
type RoundRobinPolicy struct{}

func (RoundRobinPolicy) Level() proc.QueueLevel { return proc.RoundRobin }

func (RoundRobinPolicy) SelectLocked(slots []*proc.ProcSlot) (*proc.ProcSlot, bool) {
	cands := levelSlots(slots, proc.RoundRobin)
	if len(cands) == 0 {
		return nil, false
	}
	best := cands[0]
	for _, p := range cands[1:] {
		if p.LastCPUTime < best.LastCPUTime {
			best = p
		}
	}
	return best, true
}
