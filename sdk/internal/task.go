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

	"github.com/mnvu/durango/api"
)

// Task is the handle for one outstanding await: an activity invocation, a
// durable timer, an external event wait, a sub-orchestration, or a
// combinator over those.
//
// Await blocks the orchestrator's logical thread until the task resolves
// from the History Log. During replay, results are fed back from recorded
// events without any real side effect. Awaiting a task the log cannot
// resolve suspends the execution pass; no worker thread stays blocked.
type Task interface {
	Await(valuePtr any) error
}

// awaitable is the subset of tasks the combinators can observe without
// consuming them.
type awaitable interface {
	Task
	onCompleted(func())
}

var _ awaitable = (*completableTask)(nil)

type completableTask struct {
	ctx       *OrchestrationContext
	fired     bool
	canceled  bool
	rawResult []byte
	failure   *api.Failure
	callbacks []func()
}

func newTask(ctx *OrchestrationContext) *completableTask {
	return &completableTask{ctx: ctx}
}

// failedTask returns an already-resolved task carrying a failure, used when
// scheduling options are invalid before any command is emitted.
func failedTask(ctx *OrchestrationContext, err error) *completableTask {
	t := newTask(ctx)
	t.fail(failureFromError(err, api.FailureBusiness))
	return t
}

func (t *completableTask) Await(valuePtr any) error {
	t.ctx.waitForCompletion(t)
	switch {
	case t.canceled:
		return ErrTaskCanceled
	case t.failure != nil:
		return &TaskFailedError{Failure: t.failure}
	}
	if valuePtr == nil || len(t.rawResult) == 0 {
		return nil
	}
	if err := t.ctx.serder.DeserializeBinary(t.rawResult, valuePtr); err != nil {
		return fmt.Errorf("decode task result: %w", err)
	}
	return nil
}

func (t *completableTask) complete(rawResult []byte) {
	if t.fired {
		return
	}
	t.fired = true
	t.rawResult = rawResult
	t.notify()
}

func (t *completableTask) fail(f *api.Failure) {
	if t.fired {
		return
	}
	t.fired = true
	t.failure = f
	t.notify()
}

func (t *completableTask) cancel() {
	if t.fired {
		return
	}
	t.fired = true
	t.canceled = true
	t.notify()
}

func (t *completableTask) onCompleted(cb func()) {
	if t.fired {
		cb()
		return
	}
	t.callbacks = append(t.callbacks, cb)
}

func (t *completableTask) notify() {
	for _, cb := range t.callbacks {
		cb()
	}
	t.callbacks = nil
}

// taskWrapper intercepts the result of a delegate task, driving the
// replay-consistent retry loop for activities with a retry policy.
type taskWrapper struct {
	delegate      Task
	onAwaitResult func(valuePtr any, err error) error
}

func (t *taskWrapper) Await(valuePtr any) error {
	err := t.delegate.Await(valuePtr)
	if t.onAwaitResult != nil {
		return t.onAwaitResult(valuePtr, err)
	}
	return err
}

func (t *taskWrapper) onCompleted(cb func()) {
	if a, ok := t.delegate.(awaitable); ok {
		a.onCompleted(cb)
	}
}

// WhenAll returns a task that resolves once every member task has resolved.
// Awaiting it yields a joined error of all member failures (nil when every
// member succeeded); member results stay retrievable through the individual
// tasks, which are all complete by then.
func WhenAll(ctx *OrchestrationContext, tasks ...Task) Task {
	return &multiTask{ctx: ctx, tasks: tasks, waitAll: true}
}

// WhenAny returns a task that resolves as soon as the first member task
// resolves, in History Log order. Awaiting it yields the winner's index.
// The losers are abandoned, never observed again by the orchestrator; their
// eventual real-world completions are ignored on every future replay, so the
// winner is stable across replays.
func WhenAny(ctx *OrchestrationContext, tasks ...Task) Task {
	return &multiTask{ctx: ctx, tasks: tasks}
}

type multiTask struct {
	ctx     *OrchestrationContext
	tasks   []Task
	waitAll bool
}

func (m *multiTask) Await(valuePtr any) error {
	if m.waitAll {
		var errs []error
		for i, t := range m.tasks {
			if err := t.Await(nil); err != nil {
				errs = append(errs, fmt.Errorf("task %d: %w", i, err))
			}
		}
		return errors.Join(errs...)
	}

	winner := newTask(m.ctx)
	for i, t := range m.tasks {
		a, ok := t.(awaitable)
		if !ok {
			return fmt.Errorf("WhenAny: task %d is not observable", i)
		}
		idx := int32(i)
		a.onCompleted(func() {
			if winner.fired {
				return
			}
			raw, err := m.ctx.serder.SerializeBinary(idx)
			if err != nil {
				winner.fail(failureFromError(err, api.FailureExecution))
				return
			}
			winner.complete(raw)
		})
	}
	return winner.Await(valuePtr)
}
