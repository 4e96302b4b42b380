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

// Package proc implements the process table: a fixed-capacity array of
// process descriptors protected by a single lock, plus the lifecycle
// operations (fork, exit, wait, kill) that mutate it.
package proc

import "fmt"

// State is a process's position in the lifecycle state machine.
//
//	Unused -> Embryo -> Runnable -> Running -> Runnable (yield)
//	                              -> Sleeping (sleep on a channel)
//	                              -> Zombie (exit, terminal until reaped)
type State int

const (
	Unused State = iota
	Embryo
	Sleeping
	Runnable
	Running
	Zombie
)

func (s State) String() string {
	switch s {
	case Unused:
		return "UNUSED"
	case Embryo:
		return "EMBRYO"
	case Sleeping:
		return "SLEEPING"
	case Runnable:
		return "RUNNABLE"
	case Running:
		return "RUNNING"
	case Zombie:
		return "ZOMBIE"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ChannelID is an opaque wakeup-channel identity. It is always derived from
// a stable integer — a process pid or a fixed semaphore index — never from
// a transient pointer value.
type ChannelID uint64

const (
	chanKindProc uint64 = iota
	chanKindSem
	chanKindTicks
)

// ChanProc returns the channel a process sleeps on when waiting on another
// process by pid (used by Wait, and by exit to wake a sleeping parent).
func ChanProc(pid int) ChannelID {
	return ChannelID(uint64(pid)<<8 | chanKindProc)
}

// ChanSem returns the channel a counting semaphore uses for its waiters.
func ChanSem(i int) ChannelID {
	return ChannelID(uint64(i)<<8 | chanKindSem)
}

// ChanTicks is the single shared channel used by bounded, tick-counted
// sleeps (see the clock package).
const ChanTicks ChannelID = ChannelID(chanKindTicks)

// QueueLevel is one of the three scheduling disciplines a Runnable process
// belongs to. Levels are ordered highest-priority first.
type QueueLevel int

const (
	RoundRobin QueueLevel = iota + 1
	Lottery
	BJF
)

func (q QueueLevel) String() string {
	switch q {
	case RoundRobin:
		return "ROUND_ROBIN"
	case Lottery:
		return "LOTTERY"
	case BJF:
		return "BJF"
	default:
		return fmt.Sprintf("QueueLevel(%d)", int(q))
	}
}
