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
	"github.com/eduos/mlsched/control"
	"github.com/eduos/mlsched/proc"
)

// Service adapts control.Syscalls' administrative calls to the shape
// net/rpc requires: exported methods of the form func(*Args, *Reply) error.
// Only the non-blocking syscalls are exposed this way — see control's
// package doc for why SemAcquire/SemRelease never appear on the wire.
type Service struct {
	ctl *control.Syscalls
}

type SemInitArgs struct {
	Index int
	Value int
}

func (s *Service) SemInit(args *SemInitArgs, _ *struct{}) error {
	return s.ctl.SemInit(args.Index, args.Value)
}

type ChangeQueueArgs struct {
	PID   proc.PID
	Level proc.QueueLevel
}

func (s *Service) ChangeQueue(args *ChangeQueueArgs, _ *struct{}) error {
	s.ctl.ChangeQueue(args.PID, args.Level)
	return nil
}

// SetBJFArgs carries no pid: set_bjf applies to every process currently
// in the table (spec.md §6/§8).
type SetBJFArgs struct {
	Weights proc.BJFWeights
}

func (s *Service) SetBJF(args *SetBJFArgs, _ *struct{}) error {
	s.ctl.SetBJF(args.Weights)
	return nil
}

type SetBJFProcessArgs struct {
	PID     proc.PID
	Weights proc.BJFWeights
}

func (s *Service) SetBJFProcess(args *SetBJFProcessArgs, _ *struct{}) error {
	s.ctl.SetBJFProcess(args.PID, args.Weights)
	return nil
}

type SetTicketArgs struct {
	PID  proc.PID
	Span proc.TicketSpan
}

func (s *Service) SetTicket(args *SetTicketArgs, _ *struct{}) error {
	s.ctl.SetTicket(args.PID, args.Span)
	return nil
}

func (s *Service) GetParentPID(pid proc.PID, reply *proc.PID) error {
	parent, ok := s.ctl.GetParentPID(pid)
	if !ok {
		return proc.ErrBadPID
	}
	*reply = parent
	return nil
}

func (s *Service) PrintProcesses(_ struct{}, reply *string) error {
	*reply = s.ctl.PrintProcesses()
	return nil
}
