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
	"log/slog"
	"runtime/debug"
	"sort"

	"github.com/mnvu/durango/api"
	"github.com/mnvu/durango/api/serde"
)

// ExecutionResult is the outcome of one execution pass: the commands the
// orchestrator decided on, plus any events the executor itself recorded
// (side effect results). Commands are ordered by sequence number.
type ExecutionResult struct {
	Commands       []*api.Command
	RecordedEvents []*api.HistoryEvent
	RuntimeStatus  api.RuntimeStatus
	CustomStatus   []byte

	// Completion is set when this pass reached a terminal decision; it is
	// also present in Commands.
	Completion *api.CompleteOrchestrationCommand
}

// ExecuteOrchestration runs one execution pass of an instance: replays
// oldEvents, applies newEvents, and runs orchestrator code until it either
// finishes or blocks on a task the History Log cannot resolve. It is a pure
// function of the registry and the event lists; it performs no I/O.
func ExecuteOrchestration(
	registry *Registry,
	serder serde.BinarySerde,
	logger *slog.Logger,
	id api.InstanceID,
	oldEvents, newEvents []*api.HistoryEvent,
) (result *ExecutionResult, err error) {
	ctx := newOrchestrationContext(registry, serder, logger, id, oldEvents, newEvents)

	defer func() {
		if r := recover(); r != nil {
			switch v := r.(type) {
			case error:
				switch {
				case errors.Is(v, errTaskBlocked):
					// Normal suspension; the accumulated commands stand.
				case errors.Is(v, errContinuedAsNew):
					ctx.setContinuedAsNew()
				default:
					ctx.setFailed(&api.Failure{
						Kind:         api.FailureExecution,
						ErrorType:    "Panic",
						ErrorMessage: fmt.Sprintf("orchestrator panicked: %v\n%s", v, debug.Stack()),
					})
				}
			case executionFault:
				ctx.setFailed(failureFromError(v.err, api.FailureExecution))
			default:
				ctx.setFailed(&api.Failure{
					Kind:         api.FailureExecution,
					ErrorType:    "Panic",
					ErrorMessage: fmt.Sprintf("orchestrator panicked: %v\n%s", r, debug.Stack()),
				})
			}
			result = ctx.executionResult()
		}
	}()

	// Drain the pump; orchestrator code runs inline out of ExecutionStarted.
	for {
		ok, procErr := ctx.processNextEvent()
		if procErr != nil {
			ctx.setFailed(failureFromError(procErr, api.FailureExecution))
			break
		}
		if !ok {
			break
		}
	}
	return ctx.executionResult(), nil
}

func (ctx *OrchestrationContext) executionResult() *ExecutionResult {
	commands := make([]*api.Command, 0, len(ctx.pendingCommands))
	for _, cmd := range ctx.pendingCommands {
		commands = append(commands, cmd)
	}
	sort.Slice(commands, func(i, j int) bool { return commands[i].ID < commands[j].ID })

	result := &ExecutionResult{
		Commands:       commands,
		RecordedEvents: ctx.recordedEvents,
		RuntimeStatus:  api.StatusRunning,
		CustomStatus:   ctx.customStatus,
	}
	for _, cmd := range commands {
		if cmd.CompleteOrchestration != nil {
			result.Completion = cmd.CompleteOrchestration
			result.RuntimeStatus = cmd.CompleteOrchestration.Status
		}
	}
	return result
}
