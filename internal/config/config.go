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

// Package config is mlschedd's flag/file configuration layer, following
// the same two-stage pattern as runsc/config: RegisterFlags attaches every
// knob to a flag.FlagSet with its default and usage string, then the
// closure it returns (optionally layered over a TOML file) produces the
// immutable Config the rest of the kernel reads from.
package config

import (
	"flag"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the kernel's full set of boot-time knobs.
type Config struct {
	NPROC int `toml:"nproc"`
	NCPU  int `toml:"ncpu"`

	AgingThreshold int64 `toml:"aging_threshold"`

	DefaultPriorityRatio  int64 `toml:"default_priority_ratio"`
	DefaultArrivalRatio   int64 `toml:"default_arrival_ratio"`
	DefaultExecCycleRatio int64 `toml:"default_exec_cycle_ratio"`

	SocketPath string `toml:"socket_path"`

	LogFormat string `toml:"log_format"`
	LogLevel  string `toml:"log_level"`
	LogFile   string `toml:"log_file"`
}

// Default returns the out-of-the-box configuration.
func Default() Config {
	return Config{
		NPROC:                 64,
		NCPU:                  4,
		AgingThreshold:        8000,
		DefaultPriorityRatio:  1,
		DefaultArrivalRatio:   1,
		DefaultExecCycleRatio: 1,
		SocketPath:            "/tmp/mlschedd.sock",
		LogFormat:             "text",
		LogLevel:              "info",
	}
}

// RegisterFlags attaches every Config field to fs with its Default() value,
// mirroring runsc/config.RegisterFlags. The returned closure produces a
// Config snapshot once fs has been parsed.
func RegisterFlags(fs *flag.FlagSet) func() Config {
	d := Default()
	nproc := fs.Int("nproc", d.NPROC, "process table capacity (NPROC).")
	ncpu := fs.Int("ncpu", d.NCPU, "number of scheduler CPU goroutines.")
	aging := fs.Int64("aging-threshold", d.AgingThreshold, "waiting-in-queue-cycle count that triggers promotion; recorded in Config only, the scheduler uses its fixed sched.AgingThreshold.")
	prio := fs.Int64("bjf-priority-ratio", d.DefaultPriorityRatio, "default BJF priority weight for new processes.")
	arr := fs.Int64("bjf-arrival-ratio", d.DefaultArrivalRatio, "default BJF arrival weight for new processes.")
	exec := fs.Int64("bjf-exec-ratio", d.DefaultExecCycleRatio, "default BJF exec-cycle weight for new processes.")
	sock := fs.String("socket", d.SocketPath, "unix socket path the control daemon listens on.")
	logFormat := fs.String("log-format", d.LogFormat, "log format: text (default) or json.")
	logLevel := fs.String("log-level", d.LogLevel, "log level: debug, info, warn, or error.")
	logFile := fs.String("log-file", d.LogFile, "file path for logs; empty means stderr.")
	configFile := fs.String("config", "", "optional TOML config file; flags explicitly set on the command line take precedence over it.")

	return func() Config {
		c := Config{
			NPROC:                 *nproc,
			NCPU:                  *ncpu,
			AgingThreshold:        *aging,
			DefaultPriorityRatio:  *prio,
			DefaultArrivalRatio:   *arr,
			DefaultExecCycleRatio: *exec,
			SocketPath:            *sock,
			LogFormat:             *logFormat,
			LogLevel:              *logLevel,
			LogFile:               *logFile,
		}
		if *configFile == "" {
			return c
		}
		fromFile, err := Load(*configFile)
		if err != nil {
			// A missing/invalid config file is reported on stderr and the
			// flag values are returned as they are. The closure has no
			// error result, so the caller does not see the failure;
			// config itself never calls os.Exit.
			fmt.Fprintf(os.Stderr, "config: config file %q: %v\n", *configFile, err)
			return c
		}
		return mergeFlagsWinning(fs, c, fromFile)
	}
}

// Load parses a TOML config file into a Config seeded with defaults for any
// field the file omits.
func Load(path string) (Config, error) {
	c := Default()
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// flagNameByField maps each Config field that RegisterFlags exposes to its
// flag name, so mergeFlagsWinning can tell which values the user actually
// typed versus which came from RegisterFlags' own defaults.
var flagNameByField = map[string]string{
	"NPROC":                 "nproc",
	"NCPU":                  "ncpu",
	"AgingThreshold":        "aging-threshold",
	"DefaultPriorityRatio":  "bjf-priority-ratio",
	"DefaultArrivalRatio":   "bjf-arrival-ratio",
	"DefaultExecCycleRatio": "bjf-exec-ratio",
	"SocketPath":            "socket",
	"LogFormat":             "log-format",
	"LogLevel":              "log-level",
	"LogFile":               "log-file",
}

// mergeFlagsWinning starts from the file's values and overlays any flag the
// user explicitly set on fs, so "flags win" means "explicitly passed flags
// win", not "flags merely having a zero-value default win".
func mergeFlagsWinning(fs *flag.FlagSet, flagVals, fileVals Config) Config {
	out := fileVals
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	if explicit[flagNameByField["NPROC"]] {
		out.NPROC = flagVals.NPROC
	}
	if explicit[flagNameByField["NCPU"]] {
		out.NCPU = flagVals.NCPU
	}
	if explicit[flagNameByField["AgingThreshold"]] {
		out.AgingThreshold = flagVals.AgingThreshold
	}
	if explicit[flagNameByField["DefaultPriorityRatio"]] {
		out.DefaultPriorityRatio = flagVals.DefaultPriorityRatio
	}
	if explicit[flagNameByField["DefaultArrivalRatio"]] {
		out.DefaultArrivalRatio = flagVals.DefaultArrivalRatio
	}
	if explicit[flagNameByField["DefaultExecCycleRatio"]] {
		out.DefaultExecCycleRatio = flagVals.DefaultExecCycleRatio
	}
	if explicit[flagNameByField["SocketPath"]] {
		out.SocketPath = flagVals.SocketPath
	}
	if explicit[flagNameByField["LogFormat"]] {
		out.LogFormat = flagVals.LogFormat
	}
	if explicit[flagNameByField["LogLevel"]] {
		out.LogLevel = flagVals.LogLevel
	}
	if explicit[flagNameByField["LogFile"]] {
		out.LogFile = flagVals.LogFile
	}
	return out
}
