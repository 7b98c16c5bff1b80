// Copyright 2026 Minh Vu
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

package worker

import (
	"github.com/mnvu/durango/api/serde"
	"github.com/mnvu/durango/internal/natz"
	"github.com/mnvu/durango/sdk/internal"
	"github.com/mnvu/durango/sdk/workflow"
)

// Worker hosts orchestrator and activity execution against a NATS cluster.
// Run as many workers as you like; they share the task queues and the
// History Log's sequence guard keeps every instance single-writer.
type Worker = internal.Worker

// Options tunes a worker. Zero values take defaults.
type Options = internal.WorkerOptions

// New returns a worker serving the given registry over conn. A nil serder
// selects msgpack, the default codec.
func New(conn *natz.Conn, registry *workflow.Registry, serder serde.BinarySerde, opts *Options) (*Worker, error) {
	return internal.NewWorker(conn, registry, serder, opts)
}
