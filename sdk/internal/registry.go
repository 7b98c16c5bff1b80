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

package internal

import (
	"fmt"
)

// Orchestrator is the signature of orchestrator code: deterministic logic
// that routes every await through the context and returns the instance
// output or a business error.
type Orchestrator func(ctx *OrchestrationContext) (any, error)

// Activity is the signature of activity code: ordinary Go allowed to do I/O,
// invoked at-least-once outside the replay sandbox.
type Activity func(ctx ActivityContext) (any, error)

// Registry is the explicit name-to-function mapping shared by workers and
// the executor. Names are the unit of identity: history records and task
// messages carry names, never function pointers, so a registered name must
// stay stable for the lifetime of in-flight instances.
type Registry struct {
	orchestrators map[string]Orchestrator
	activities    map[string]Activity
}

func NewRegistry() *Registry {
	return &Registry{
		orchestrators: make(map[string]Orchestrator),
		activities:    make(map[string]Activity),
	}
}

// AddOrchestrator registers fn under its Go function name.
func (r *Registry) AddOrchestrator(fn Orchestrator) error {
	name, err := taskName(fn)
	if err != nil {
		return err
	}
	return r.AddOrchestratorN(name, fn)
}

// AddOrchestratorN registers fn under an explicit name.
func (r *Registry) AddOrchestratorN(name string, fn Orchestrator) error {
	if name == "" {
		return fmt.Errorf("orchestrator name must not be empty")
	}
	if _, ok := r.orchestrators[name]; ok {
		return fmt.Errorf("orchestrator %q: %w", name, ErrDuplicateRegistration)
	}
	r.orchestrators[name] = fn
	return nil
}

// AddActivity registers fn under its Go function name.
func (r *Registry) AddActivity(fn Activity) error {
	name, err := taskName(fn)
	if err != nil {
		return err
	}
	return r.AddActivityN(name, fn)
}

// AddActivityN registers fn under an explicit name.
func (r *Registry) AddActivityN(name string, fn Activity) error {
	if name == "" {
		return fmt.Errorf("activity name must not be empty")
	}
	if _, ok := r.activities[name]; ok {
		return fmt.Errorf("activity %q: %w", name, ErrDuplicateRegistration)
	}
	r.activities[name] = fn
	return nil
}

func (r *Registry) orchestrator(name string) (Orchestrator, error) {
	fn, ok := r.orchestrators[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrOrchestratorNotRegistered)
	}
	return fn, nil
}

func (r *Registry) activity(name string) (Activity, error) {
	fn, ok := r.activities[name]
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, ErrActivityNotRegistered)
	}
	return fn, nil
}
