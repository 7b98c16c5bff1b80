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

package workflow

import (
	"github.com/mnvu/durango/sdk/internal"
)

// Context is the orchestration execution context. Every await and every
// source of nondeterminism (time, ids, random values) goes through it so
// that replay reconstructs the exact same decisions.
type Context = internal.OrchestrationContext

// Task is the handle for one outstanding await. Await(valuePtr) blocks the
// orchestrator's logical thread until the task resolves from history, then
// decodes the result into valuePtr (which may be nil to discard it).
type Task = internal.Task

// Orchestrator is the orchestrator function signature.
type Orchestrator = internal.Orchestrator

// Activity is the activity function signature. Activities receive a real
// context and may perform arbitrary I/O; they run at-least-once.
type Activity = internal.Activity

// ActivityContext is the context passed to activity code.
type ActivityContext = internal.ActivityContext

// Registry maps stable names to orchestrator and activity functions. Workers
// and clients share one registry; names recorded in history must keep
// resolving for as long as instances referencing them are in flight.
type Registry = internal.Registry

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return internal.NewRegistry() }

// WhenAll returns a Task that resolves once every given task has resolved.
// Awaiting it returns the joined failures, or nil when all succeeded;
// individual results remain readable from the member tasks.
func WhenAll(ctx *Context, tasks ...Task) Task {
	return internal.WhenAll(ctx, tasks...)
}

// WhenAny returns a Task that resolves with the index of the first task to
// resolve, in History Log order. The losers are abandoned: their eventual
// completions are recorded but never observed, so the winner is stable
// across replays.
func WhenAny(ctx *Context, tasks ...Task) Task {
	return internal.WhenAny(ctx, tasks...)
}

// Compensations is a saga-style undo stack. Register each compensating
// activity before awaiting the forward action it undoes; Compensate unwinds
// in reverse order, best-effort, and joins any failures.
type Compensations = internal.Compensations

// NewCompensations returns an empty undo stack bound to the orchestration.
func NewCompensations(ctx *Context) *Compensations {
	return internal.NewCompensations(ctx)
}
