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

// Command mlschedctl is the administrative client for mlschedd: one
// subcommand per non-blocking syscall, dialing the daemon's unix socket
// via net/rpc.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
)

const maxDialElapsed = 5 * time.Second

var socketFlag = flag.String("socket", "/tmp/mlschedd.sock", "unix socket mlschedd is listening on.")

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(&semInitCmd{}, "")
	subcommands.Register(&changeQueueCmd{}, "")
	subcommands.Register(&setBJFCmd{}, "")
	subcommands.Register(&setBJFProcessCmd{}, "")
	subcommands.Register(&setTicketCmd{}, "")
	subcommands.Register(&getParentPIDCmd{}, "")
	subcommands.Register(&printProcessesCmd{}, "")

	flag.Parse()
	os.Exit(int(subcommands.Execute(context.Background())))
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "mlschedctl: "+format+"\n", args...)
	os.Exit(1)
}
