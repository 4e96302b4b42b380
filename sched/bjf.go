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

// BJFPolicy dispatches the Runnable process at its level with the lowest
// Rank() (bjf_sched: min rank wins, first-seen breaks ties).
type BJFPolicy struct{}

func (BJFPolicy) Level() proc.QueueLevel { return proc.BJF }

func (BJFPolicy) SelectLocked(slots []*proc.ProcSlot) (*proc.ProcSlot, bool) {
	cands := levelSlots(slots, proc.BJF)
	if len(cands) == 0 {
		return nil, false
	}
	best := cands[0]
	bestRank := best.Rank()
	for _, p := range cands[1:] {
		if r := p.Rank(); r < bestRank {
			best, bestRank = p, r
		}
	}
	return best, true
}
