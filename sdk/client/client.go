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

package client

import (
	"github.com/mnvu/durango/api/serde"
	"github.com/mnvu/durango/internal/natz"
	"github.com/mnvu/durango/sdk/internal"
)

// Client starts orchestration instances, raises events against them, and
// queries their status.
type Client = internal.Client

// Options tunes a client. Zero values take defaults.
type Options = internal.ClientOptions

// ScheduleOption configures one ScheduleOrchestration call.
type ScheduleOption = internal.ScheduleOption

// RaiseEventOption configures one RaiseEvent call.
type RaiseEventOption = internal.RaiseEventOption

var (
	// WithInput serializes the given value as the orchestration input.
	WithInput = internal.WithInput

	// WithRawInput passes pre-encoded input bytes through unchanged.
	WithRawInput = internal.WithRawInput

	// WithInstanceID pins the instance id instead of generating one.
	WithInstanceID = internal.WithInstanceID

	// WithEventPayload serializes the given value as the event payload.
	WithEventPayload = internal.WithEventPayload

	// WithRawEventPayload passes pre-encoded payload bytes through.
	WithRawEventPayload = internal.WithRawEventPayload
)

// New returns a client over conn. A nil serder selects msgpack, the default
// codec; it must match the workers'.
func New(conn *natz.Conn, serder serde.BinarySerde, opts *Options) (*Client, error) {
	return internal.NewClient(conn, serder, opts)
}
