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

// Command mlschedd boots the scheduler kernel and serves its
// administrative syscalls over a unix socket via net/rpc.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net"
	"net/rpc"
	"os"
	"os/signal"

	"golang.org/x/sys/unix"

	"github.com/eduos/mlsched/internal/config"
	"github.com/eduos/mlsched/internal/kernlog"
	"github.com/eduos/mlsched/kernel"
)

func main() {
	getConfig := config.RegisterFlags(flag.CommandLine)
	flag.Parse()
	cfg := getConfig()

	var logOut io.Writer
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "mlschedd: opening log file %q: %v\n", cfg.LogFile, err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	log, err := kernlog.New(cfg.LogFormat, cfg.LogLevel, logOut)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mlschedd: %v\n", err)
		os.Exit(1)
	}

	k := kernel.Boot(cfg, log)

	if err := os.Remove(cfg.SocketPath); err != nil && !os.IsNotExist(err) {
		log.Fatalf("removing stale socket %q: %v", cfg.SocketPath, err)
	}
	ln, err := net.Listen("unix", cfg.SocketPath)
	if err != nil {
		log.Fatalf("listening on %q: %v", cfg.SocketPath, err)
	}
	defer ln.Close()

	srv := rpc.NewServer()
	if err := srv.Register(&Service{ctl: k.Syscalls}); err != nil {
		log.Fatalf("registering RPC service: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, unix.SIGINT, unix.SIGTERM)
	go func() {
		<-sigc
		log.Info("received shutdown signal")
		cancel()
		k.Shutdown()
		ln.Close()
	}()

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.ServeConn(conn)
		}
	}()

	log.Infof("mlschedd listening on %s", cfg.SocketPath)
	if err := k.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("scheduler exited: %v", err)
	}
	log.Info("mlschedd shut down")
}
