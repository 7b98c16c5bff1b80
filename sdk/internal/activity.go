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
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/mnvu/durango/api"
	"github.com/mnvu/durango/api/serde"
)

// ActivityContext is what activity code sees. Unlike the orchestration
// context it carries a real context.Context and no determinism rules:
// activities are ordinary Go and may do arbitrary I/O. They run
// at-least-once, so their effects should be idempotent or tolerably
// duplicated.
type ActivityContext interface {
	// Context is the cancellation context of the hosting worker.
	Context() context.Context

	// InstanceID identifies the orchestration instance that scheduled this
	// invocation.
	InstanceID() api.InstanceID

	// TaskID is the scheduling sequence number within the instance. Together
	// with InstanceID it keys idempotency for external systems.
	TaskID() int32

	// GetInput decodes the activity input into valuePtr.
	GetInput(valuePtr any) error

	Logger() *slog.Logger
}

type activityContext struct {
	ctx    context.Context
	task   *api.ActivityTask
	serder serde.BinarySerde
	logger *slog.Logger
}

func (a *activityContext) Context() context.Context    { return a.ctx }
func (a *activityContext) InstanceID() api.InstanceID  { return a.task.InstanceID }
func (a *activityContext) TaskID() int32               { return a.task.TaskScheduledID }
func (a *activityContext) GetInput(valuePtr any) error {
	return a.serder.DeserializeBinary(a.task.Input, valuePtr)
}
func (a *activityContext) Logger() *slog.Logger { return a.logger }

// RunActivity executes one activity task against the registry and reports
// the outcome as history payloads: encoded result bytes on success, a
// structured failure otherwise. Panics in activity code are contained and
// recorded as execution failures.
func RunActivity(
	ctx context.Context,
	registry *Registry,
	serder serde.BinarySerde,
	logger *slog.Logger,
	task *api.ActivityTask,
) (result []byte, failure *api.Failure) {
	defer func() {
		if r := recover(); r != nil {
			failure = &api.Failure{
				Kind:         api.FailureExecution,
				ErrorType:    "Panic",
				ErrorMessage: fmt.Sprintf("activity %q panicked: %v\n%s", task.Name, r, debug.Stack()),
			}
			result = nil
		}
	}()

	fn, err := registry.activity(task.Name)
	if err != nil {
		return nil, failureFromError(err, api.FailureExecution)
	}

	actx := &activityContext{
		ctx:    ctx,
		task:   task,
		serder: serder,
		logger: defaultLogger(logger).With("instance_id", task.InstanceID, "activity", task.Name, "task_id", task.TaskScheduledID),
	}
	output, appErr := fn(actx)
	if appErr != nil {
		return nil, failureFromError(appErr, api.FailureBusiness)
	}
	raw, err := serder.SerializeBinary(output)
	if err != nil {
		return nil, failureFromError(fmt.Errorf("encode activity result: %w", err), api.FailureExecution)
	}
	return raw, nil
}
