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

import (
	"testing"

	"github.com/eduos/mlsched/proc"
)

func bjfCandidate(pid proc.PID, priority, arrival, execCycle int64) *proc.ProcSlot {
	p := &proc.ProcSlot{
		PID:       pid,
		State:     proc.Runnable,
		QueueLvl:  proc.BJF,
		Priority:  priority,
		Arrival:   arrival,
		ExecCycle: execCycle,
	}
	p.BJFWeights = proc.BJFWeights{PriorityRatio: 1, ArrivalRatio: 1, ExecCycleRatio: 1}
	return p
}

func TestBJFPolicyLevel(t *testing.T) {
	if (BJFPolicy{}).Level() != proc.BJF {
		t.Errorf("Level() = %s, want BJF", (BJFPolicy{}).Level())
	}
}

func TestBJFPolicyPicksLowestRank(t *testing.T) {
	pol := BJFPolicy{}
	high := bjfCandidate(1, 100, 100, 100)
	low := bjfCandidate(2, 1, 1, 1)

	got, ok := pol.SelectLocked([]*proc.ProcSlot{high, low})
	if !ok || got != low {
		t.Fatalf("SelectLocked = %v, %v, want low, true (lowest Rank wins)", got, ok)
	}
}

func TestBJFPolicyFirstSeenBreaksTies(t *testing.T) {
	pol := BJFPolicy{}
	first := bjfCandidate(1, 5, 5, 5)
	second := bjfCandidate(2, 5, 5, 5)
	if first.Rank() != second.Rank() {
		t.Fatalf("test setup: ranks differ, got %d and %d", first.Rank(), second.Rank())
	}

	got, ok := pol.SelectLocked([]*proc.ProcSlot{first, second})
	if !ok || got != first {
		t.Fatalf("SelectLocked = %v, %v, want first, true (first-seen breaks ties)", got, ok)
	}
}

func TestBJFPolicyIgnoresNonBJFOrNonRunnable(t *testing.T) {
	pol := BJFPolicy{}
	wrongLevel := bjfCandidate(1, 1, 1, 1)
	wrongLevel.QueueLvl = proc.RoundRobin
	notRunnable := bjfCandidate(2, 1, 1, 1)
	notRunnable.State = proc.Sleeping

	got, ok := pol.SelectLocked([]*proc.ProcSlot{wrongLevel, notRunnable})
	if ok || got != nil {
		t.Fatalf("SelectLocked = %v, %v, want nil, false (no eligible candidates)", got, ok)
	}
}

func TestBJFPolicyEmptyCandidates(t *testing.T) {
	pol := BJFPolicy{}
	got, ok := pol.SelectLocked(nil)
	if ok || got != nil {
		t.Fatalf("SelectLocked(nil) = %v, %v, want nil, false", got, ok)
	}
}
