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
	"errors"
	"fmt"
)

// Compensations is a saga-style undo stack maintained by orchestrator code.
// Register the compensating activity BEFORE awaiting the forward action it
// undoes: registration is a deterministic in-memory append, so on replay the
// stack always reflects every forward action that may have run, even when
// the pass died between scheduling and completion.
//
// The stack itself is rebuilt by replay, not recorded in history; only the
// compensating activity invocations are.
type Compensations struct {
	ctx     *OrchestrationContext
	pending []compensation
}

type compensation struct {
	activity any
	opts     []CallActivityOption
}

// NewCompensations returns an empty undo stack bound to the orchestration.
func NewCompensations(ctx *OrchestrationContext) *Compensations {
	return &Compensations{ctx: ctx}
}

// Add pushes a compensating activity. Call it before the forward action.
func (c *Compensations) Add(activity any, opts ...CallActivityOption) {
	c.pending = append(c.pending, compensation{activity: activity, opts: opts})
}

// Compensate runs the registered compensations in reverse registration
// order, one at a time, awaiting each before starting the next. The unwind
// is best-effort: a failed compensation does not stop the rest, and all
// failures come back joined so the orchestrator can surface or escalate
// them. The stack is left empty.
func (c *Compensations) Compensate() error {
	var errs []error
	for i := len(c.pending) - 1; i >= 0; i-- {
		comp := c.pending[i]
		if err := c.ctx.CallActivity(comp.activity, comp.opts...).Await(nil); err != nil {
			name, nameErr := taskName(comp.activity)
			if nameErr != nil {
				name = fmt.Sprintf("%v", comp.activity)
			}
			errs = append(errs, fmt.Errorf("compensation %q: %w", name, err))
		}
	}
	c.pending = nil
	return errors.Join(errs...)
}
