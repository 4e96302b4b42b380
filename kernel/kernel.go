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

// Package kernel wires the process table, scheduler, semaphores, clock,
// and control surface into the single object cmd/mlschedd boots.
package kernel

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eduos/mlsched/clock"
	"github.com/eduos/mlsched/control"
	"github.com/eduos/mlsched/internal/config"
	"github.com/eduos/mlsched/internal/kernlog"
	"github.com/eduos/mlsched/ipc"
	"github.com/eduos/mlsched/proc"
	"github.com/eduos/mlsched/sched"
)

// Kernel is one fully wired instance of the scheduler: a process table, a
// multi-CPU scheduler over it, a semaphore bank, a tick source, and the
// syscall surface control.Syscalls exposes over it.
type Kernel struct {
	Config config.Config
	Log    *logrus.Logger

	Table      *proc.Table
	Clock      *clock.Clock
	Scheduler  *sched.Scheduler
	Semaphores *ipc.Semaphores
	Syscalls   *control.Syscalls

	cancelClock context.CancelFunc
}

// Boot constructs a Kernel from cfg. It does not start the scheduler or
// clock goroutines; call Run for that.
func Boot(cfg config.Config, log *logrus.Logger) *Kernel {
	var c clock.Clock
	tbl := proc.NewTable(cfg.NPROC, &c)
	tbl.SetLogger(log)
	sems := ipc.New(tbl)
	sems.SetLogger(log)
	s := sched.New(tbl, &c, 2*time.Millisecond)
	s.SetLogger(log)
	ctl := control.New(tbl, sems, 200*time.Millisecond)

	kernlog.Boot(log, cfg.NPROC, cfg.NCPU, true)

	return &Kernel{
		Config:     cfg,
		Log:        log,
		Table:      tbl,
		Clock:      &c,
		Scheduler:  s,
		Semaphores: sems,
		Syscalls:   ctl,
	}
}

// Run starts the clock and ncpu scheduler goroutines and blocks until ctx
// is cancelled, mirroring a real kernel's scheduler()-per-CPU boot.
func (k *Kernel) Run(ctx context.Context) error {
	clockCtx, cancel := context.WithCancel(ctx)
	k.cancelClock = cancel
	tickDone := make(chan struct{})
	go func() {
		defer close(tickDone)
		k.Clock.Run(k.Table, time.Millisecond, clockCtx.Done())
	}()

	err := k.Scheduler.RunN(ctx, k.Config.NCPU)
	cancel()
	<-tickDone
	return err
}

// Shutdown stops the clock goroutine if Run is active. Scheduler goroutines
// stop on their own once Run's context is cancelled by the caller.
func (k *Kernel) Shutdown() {
	if k.cancelClock != nil {
		k.cancelClock()
	}
}

// Spawn creates a new process with body as its entry point and returns the
// assigned pid. With a nil parent it allocates a fresh slot and seeds its
// BJF weights from k.Config; otherwise it forks parent, and the child
// inherits parent's BJF weights. It is the
// kernel-level analogue of a shell forking its first job, used by init
// processes and the example programs.
func (k *Kernel) Spawn(name string, parent *proc.ProcSlot, body func(*proc.ProcSlot)) (proc.PID, error) {
	if parent == nil {
		slot := k.Table.AllocSlot()
		if slot == nil {
			return 0, proc.ErrNoFreeSlot
		}
		slot.Aux.Name = name
		slot.BJFWeights = proc.BJFWeights{
			PriorityRatio:  k.Config.DefaultPriorityRatio,
			ArrivalRatio:   k.Config.DefaultArrivalRatio,
			ExecCycleRatio: k.Config.DefaultExecCycleRatio,
		}
		k.Table.MakeRunnable(slot, body)
		return slot.PID, nil
	}
	pid, err := k.Table.Fork(parent, body)
	if err != nil {
		return 0, err
	}
	k.Table.Lock()
	if child := k.Table.FindByPID(pid); child != nil {
		child.Aux.Name = name
	}
	k.Table.Unlock()
	return pid, nil
}
