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

// Package kernlog is the kernel's logging target: a single *logrus.Logger
// configured once at boot from the format/output pair named in the
// process's configuration, mirroring the format-to-Emitter switch runsc's
// cli.Main performs before registering it as the global log target.
package kernlog

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logger writing format ("text" or "json") to w at the given
// level ("debug", "info", "warn", "error"). An empty w defaults to stderr.
func New(format, level string, w io.Writer) (*logrus.Logger, error) {
	if w == nil {
		w = os.Stderr
	}
	l := logrus.New()
	l.SetOutput(w)

	switch format {
	case "", "text":
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("kernlog: invalid log format %q, must be 'text' or 'json'", format)
	}

	lvl, err := logrus.ParseLevel(orDefault(level, "info"))
	if err != nil {
		return nil, fmt.Errorf("kernlog: invalid log level %q: %w", level, err)
	}
	l.SetLevel(lvl)
	return l, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// Boot emits the standard startup banner a kernel logs once at boot,
// mirroring cli.Main's "Args/Version/PID/Configuration" block.
func Boot(l *logrus.Logger, nproc, ncpu int, diskless bool) {
	l.Info("***************************")
	l.Infof("pid: %d", os.Getpid())
	l.Infof("NPROC: %d, CPUs: %d", nproc, ncpu)
	l.Infof("diskless aux state: %t", diskless)
	l.Info("***************************")
}
