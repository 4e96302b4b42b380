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

package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/eduos/mlsched/proc"
)

// semInitCmd implements subcommands.Command for "sem-init".
type semInitCmd struct {
	index int
	value int
}

func (*semInitCmd) Name() string     { return "sem-init" }
func (*semInitCmd) Synopsis() string { return "initialize a semaphore's count" }
func (*semInitCmd) Usage() string    { return "sem-init -index N -value N\n" }
func (c *semInitCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.index, "index", 0, "semaphore index, 0..5")
	f.IntVar(&c.value, "value", 0, "initial count")
}
func (c *semInitCmd) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	client, err := dial(*socketFlag)
	if err != nil {
		fatalf("dial: %v", err)
	}
	defer client.Close()
	if err := client.Call("Service.SemInit", &SemInitArgs{Index: c.index, Value: c.value}, &struct{}{}); err != nil {
		fatalf("SemInit: %v", err)
	}
	return subcommands.ExitSuccess
}

// changeQueueCmd implements subcommands.Command for "change-queue".
type changeQueueCmd struct {
	pid   int64
	level int
}

func (*changeQueueCmd) Name() string     { return "change-queue" }
func (*changeQueueCmd) Synopsis() string { return "move a process to a different scheduling queue" }
func (*changeQueueCmd) Usage() string {
	return "change-queue -pid N -level N   (1=ROUND_ROBIN, 2=LOTTERY, 3=BJF)\n"
}
func (c *changeQueueCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.pid, "pid", 0, "target pid")
	f.IntVar(&c.level, "level", 1, "queue level: 1=ROUND_ROBIN, 2=LOTTERY, 3=BJF")
}
func (c *changeQueueCmd) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	client, err := dial(*socketFlag)
	if err != nil {
		fatalf("dial: %v", err)
	}
	defer client.Close()
	args := &ChangeQueueArgs{PID: proc.PID(c.pid), Level: proc.QueueLevel(c.level)}
	if err := client.Call("Service.ChangeQueue", args, &struct{}{}); err != nil {
		fatalf("ChangeQueue: %v", err)
	}
	return subcommands.ExitSuccess
}

// setBJFCmd implements subcommands.Command for "set-bjf": applies the
// given weights to every process currently in the table.
type setBJFCmd struct {
	priorityRatio, arrivalRatio, execRatio int64
}

func (*setBJFCmd) Name() string { return "set-bjf" }
func (*setBJFCmd) Synopsis() string {
	return "set BJF rank weights on every process"
}
func (*setBJFCmd) Usage() string {
	return "set-bjf -priority-ratio N -arrival-ratio N -exec-ratio N\n"
}
func (c *setBJFCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.priorityRatio, "priority-ratio", 1, "priority weight")
	f.Int64Var(&c.arrivalRatio, "arrival-ratio", 1, "arrival weight")
	f.Int64Var(&c.execRatio, "exec-ratio", 1, "exec-cycle weight")
}
func (c *setBJFCmd) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	client, err := dial(*socketFlag)
	if err != nil {
		fatalf("dial: %v", err)
	}
	defer client.Close()
	args := &SetBJFArgs{
		Weights: proc.BJFWeights{
			PriorityRatio:  c.priorityRatio,
			ArrivalRatio:   c.arrivalRatio,
			ExecCycleRatio: c.execRatio,
		},
	}
	if err := client.Call("Service.SetBJF", args, &struct{}{}); err != nil {
		fatalf("SetBJF: %v", err)
	}
	return subcommands.ExitSuccess
}

// setBJFProcessCmd implements subcommands.Command for "set-bjf-process":
// applies the given weights to one process.
type setBJFProcessCmd struct {
	pid                                     int64
	priorityRatio, arrivalRatio, execRatio int64
}

func (*setBJFProcessCmd) Name() string {
	return "set-bjf-process"
}
func (*setBJFProcessCmd) Synopsis() string {
	return "set a single process's BJF rank weights"
}
func (*setBJFProcessCmd) Usage() string {
	return "set-bjf-process -pid N -priority-ratio N -arrival-ratio N -exec-ratio N\n"
}
func (c *setBJFProcessCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.pid, "pid", 0, "target pid")
	f.Int64Var(&c.priorityRatio, "priority-ratio", 1, "priority weight")
	f.Int64Var(&c.arrivalRatio, "arrival-ratio", 1, "arrival weight")
	f.Int64Var(&c.execRatio, "exec-ratio", 1, "exec-cycle weight")
}
func (c *setBJFProcessCmd) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	client, err := dial(*socketFlag)
	if err != nil {
		fatalf("dial: %v", err)
	}
	defer client.Close()
	args := &SetBJFProcessArgs{
		PID: proc.PID(c.pid),
		Weights: proc.BJFWeights{
			PriorityRatio:  c.priorityRatio,
			ArrivalRatio:   c.arrivalRatio,
			ExecCycleRatio: c.execRatio,
		},
	}
	if err := client.Call("Service.SetBJFProcess", args, &struct{}{}); err != nil {
		fatalf("SetBJFProcess: %v", err)
	}
	return subcommands.ExitSuccess
}

// setTicketCmd implements subcommands.Command for "set-ticket".
type setTicketCmd struct {
	pid         int64
	first, last int64
}

func (*setTicketCmd) Name() string     { return "set-ticket" }
func (*setTicketCmd) Synopsis() string { return "assign a process's lottery ticket span" }
func (*setTicketCmd) Usage() string    { return "set-ticket -pid N -first N -last N\n" }
func (c *setTicketCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.pid, "pid", 0, "target pid")
	f.Int64Var(&c.first, "first", 0, "first ticket, inclusive")
	f.Int64Var(&c.last, "last", 0, "last ticket, inclusive")
}
func (c *setTicketCmd) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	client, err := dial(*socketFlag)
	if err != nil {
		fatalf("dial: %v", err)
	}
	defer client.Close()
	args := &SetTicketArgs{PID: proc.PID(c.pid), Span: proc.TicketSpan{First: c.first, Last: c.last}}
	if err := client.Call("Service.SetTicket", args, &struct{}{}); err != nil {
		fatalf("SetTicket: %v", err)
	}
	return subcommands.ExitSuccess
}

// getParentPIDCmd implements subcommands.Command for "get-parent-pid".
type getParentPIDCmd struct {
	pid int64
}

func (*getParentPIDCmd) Name() string     { return "get-parent-pid" }
func (*getParentPIDCmd) Synopsis() string { return "print a process's parent pid, skipping tracers" }
func (*getParentPIDCmd) Usage() string    { return "get-parent-pid -pid N\n" }
func (c *getParentPIDCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.pid, "pid", 0, "target pid")
}
func (c *getParentPIDCmd) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	client, err := dial(*socketFlag)
	if err != nil {
		fatalf("dial: %v", err)
	}
	defer client.Close()
	var reply proc.PID
	if err := client.Call("Service.GetParentPID", proc.PID(c.pid), &reply); err != nil {
		fatalf("GetParentPID: %v", err)
	}
	fmt.Println(reply)
	return subcommands.ExitSuccess
}

// printProcessesCmd implements subcommands.Command for "print-processes".
type printProcessesCmd struct{}

func (*printProcessesCmd) Name() string             { return "print-processes" }
func (*printProcessesCmd) Synopsis() string         { return "dump the process table" }
func (*printProcessesCmd) Usage() string            { return "print-processes\n" }
func (*printProcessesCmd) SetFlags(*flag.FlagSet)   {}
func (*printProcessesCmd) Execute(context.Context, *flag.FlagSet, ...any) subcommands.ExitStatus {
	client, err := dial(*socketFlag)
	if err != nil {
		fatalf("dial: %v", err)
	}
	defer client.Close()
	var reply string
	if err := client.Call("Service.PrintProcesses", struct{}{}, &reply); err != nil {
		fatalf("PrintProcesses: %v", err)
	}
	fmt.Print(reply)
	return subcommands.ExitSuccess
}
