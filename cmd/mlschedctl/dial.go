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
	"net/rpc"

	"github.com/cenkalti/backoff"
)

// dial connects to mlschedd's unix socket, retrying with exponential
// backoff for up to maxDialElapsed — mlschedd may still be finishing its boot
// banner when a script launches the CLI right after it.
func dial(socketPath string) (*rpc.Client, error) {
	var client *rpc.Client
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = maxDialElapsed

	err := backoff.Retry(func() error {
		c, err := rpc.Dial("unix", socketPath)
		if err != nil {
			return err
		}
		client = c
		return nil
	}, b)
	return client, err
}
