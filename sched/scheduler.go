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
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eduos/mlsched/proc"
)

// AgingThreshold is the waiting-in-queue-cycle count past which a Runnable
// process is promoted one level (age()); spec.md's mandated constant.
const AgingThreshold = 8000

// Clock is the subset of clock.Clock the scheduler needs to stamp
// dispatch times. Declared here, implemented there, so sched never
// imports clock.
type Clock interface {
	Now() proc.Tick
}

// Scheduler runs the fixed-priority composition of disciplines — round
// robin, then lottery, then BJF — over a process table, one CPU goroutine
// per configured core. It is the Go-native analogue of xv6's per-CPU
// scheduler() loop: each core is a goroutine that repeatedly locks the
// table, picks a victim, and swtches into it.
type Scheduler struct {
	tbl      *proc.Table
	clock    Clock
	policies []Policy
	idle     time.Duration
	log      *logrus.Logger
}

// SetLogger attaches l as the scheduler's event sink: one event per policy
// dispatch and per aging promotion (spec.md §7). nil (the zero value)
// disables logging.
func (s *Scheduler) SetLogger(l *logrus.Logger) { s.log = l }

func (s *Scheduler) logEvent(level logrus.Level, msg string, f logrus.Fields) {
	if s.log == nil {
		return
	}
	s.log.WithFields(f).Log(level, msg)
}

// New builds a Scheduler with the standard RR -> Lottery -> BJF priority
// order. idle is how long a CPU goroutine backs off when nothing is
// Runnable, to avoid spinning a real OS thread at 100%.
func New(tbl *proc.Table, clock Clock, idle time.Duration) *Scheduler {
	return &Scheduler{
		tbl:   tbl,
		clock: clock,
		idle:  idle,
		policies: []Policy{
			RoundRobinPolicy{},
			NewLotteryPolicy(),
			BJFPolicy{},
		},
	}
}

// age promotes every Runnable slot whose WaitingInQueueCycle exceeds
// AgingThreshold one level up the priority ladder (BJF -> Lottery ->
// RoundRobin), resetting its counter. Caller must hold the table lock.
func (s *Scheduler) age(slots []*proc.ProcSlot) {
	for _, p := range slots {
		if p.State != proc.Runnable {
			continue
		}
		if p.WaitingInQueueCycle <= AgingThreshold {
			continue
		}
		from := p.QueueLvl
		switch p.QueueLvl {
		case proc.BJF:
			p.QueueLvl = proc.Lottery
		case proc.Lottery:
			p.QueueLvl = proc.RoundRobin
		case proc.RoundRobin:
			// Terminal: round robin is the top of the ladder.
		}
		p.WaitingInQueueCycle = 0
		if p.QueueLvl != from {
			s.logEvent(logrus.InfoLevel, "aging promotion", logrus.Fields{
				"pid": p.PID, "slot": p.Slot, "queue_lvl": p.QueueLvl, "state": p.State,
				"from_queue_lvl": from,
			})
		}
	}
}

// selectLocked runs the policies in priority order and returns the first
// hit. Caller must hold the table lock. It does not run age() — that only
// happens once a victim has actually been chosen (spec.md §4.2 step 4);
// see RunOnce.
func (s *Scheduler) selectLocked() (*proc.ProcSlot, bool) {
	slots := s.tbl.SlotsLocked()
	for _, pol := range s.policies {
		if p, ok := pol.SelectLocked(slots); ok {
			return p, true
		}
	}
	return nil, false
}

// RunOnce performs a single dispatch: select a victim, bump bookkeeping,
// and hand it the CPU until it next suspends. Returns false if nothing was
// Runnable. age() only runs on the "otherwise" path (step 4) — after a
// victim has been picked from the table as it stood this round, not
// before, so a process promoted this pass is only eligible for its new,
// higher-priority policy from the next iteration onward.
func (s *Scheduler) RunOnce() bool {
	s.tbl.Lock()
	victim, ok := s.selectLocked()
	if !ok {
		s.tbl.Unlock()
		return false
	}
	s.logEvent(logrus.InfoLevel, "policy dispatch", logrus.Fields{
		"pid": victim.PID, "slot": victim.Slot, "queue_lvl": victim.QueueLvl, "state": victim.State,
	})
	s.age(s.tbl.SlotsLocked())
	for _, p := range s.tbl.SlotsLocked() {
		if p.State == proc.Runnable && p != victim {
			p.WaitingInQueueCycle++
		}
	}
	victim.State = proc.Running
	victim.WaitingInQueueCycle = 0
	victim.LastCPUTime = s.clock.Now()
	s.tbl.Unlock()

	s.tbl.Dispatch(victim)
	return true
}

// Run drives one CPU's dispatch loop until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if !s.RunOnce() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.idle):
			}
		}
	}
}

// RunN starts ncpu CPU goroutines sharing this scheduler's table and
// blocks until ctx is cancelled or one of them returns a non-context error,
// mirroring how a real multi-core xv6 boots one scheduler() per CPU.
func (s *Scheduler) RunN(ctx context.Context, ncpu int) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < ncpu; i++ {
		g.Go(func() error {
			err := s.Run(gctx)
			if err == context.Canceled || err == context.DeadlineExceeded {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}
