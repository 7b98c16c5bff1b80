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

// Package emulator is an in-process orchestration backend with a virtual
// clock. It drives the same replay executor as the NATS runtime but keeps
// histories in memory and fires timers only when the test advances time, so
// scenarios spanning days run in microseconds and deterministically.
package emulator

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mnvu/durango/api"
	"github.com/mnvu/durango/api/serde"
	"github.com/mnvu/durango/sdk/internal"
)

// Emulator hosts orchestration instances in memory. Not safe for concurrent
// use; tests drive it from one goroutine.
type Emulator struct {
	registry *internal.Registry
	serder   serde.BinarySerde
	logger   *slog.Logger

	now       time.Time
	histories map[api.InstanceID][]*api.HistoryEvent
	statuses  map[api.InstanceID]*api.OrchestrationMetadata

	wakes      []api.InstanceID
	activities []*api.ActivityTask
	timers     []pendingTimer

	idCounter int
}

type pendingTimer struct {
	instanceID api.InstanceID
	timerID    int32
	fireAt     time.Time
}

// Option configures the emulator.
type Option func(*Emulator)

// WithStartTime sets the virtual clock's origin.
func WithStartTime(t time.Time) Option {
	return func(e *Emulator) { e.now = t.UTC() }
}

// WithLogger attaches a logger to executor and activity runs.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Emulator) { e.logger = logger }
}

func New(registry *internal.Registry, opts ...Option) *Emulator {
	e := &Emulator{
		registry:  registry,
		serder:    serde.NewMsgpackSerde(),
		now:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		histories: make(map[api.InstanceID][]*api.HistoryEvent),
		statuses:  make(map[api.InstanceID]*api.OrchestrationMetadata),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Now returns the virtual clock.
func (e *Emulator) Now() time.Time { return e.now }

// Schedule creates a new instance and runs it until quiescent.
func (e *Emulator) Schedule(orchestrator any, opts ...internal.ScheduleOption) (api.InstanceID, error) {
	options, err := internal.ApplyScheduleOptions(opts)
	if err != nil {
		return "", err
	}
	name, err := internal.TaskName(orchestrator)
	if err != nil {
		return "", err
	}
	rawInput, err := options.EncodeInput(e.serder)
	if err != nil {
		return "", err
	}

	id := options.InstanceID()
	if id == "" {
		e.idCounter++
		id = api.InstanceID(fmt.Sprintf("emulated-%d", e.idCounter))
	}
	if _, exists := e.histories[id]; exists {
		return "", fmt.Errorf("%q: %w", id, internal.ErrInstanceAlreadyExists)
	}

	e.histories[id] = []*api.HistoryEvent{{
		EventID:          -1,
		Timestamp:        e.now,
		ExecutionStarted: &api.ExecutionStarted{Name: name, Input: rawInput},
	}}
	e.statuses[id] = &api.OrchestrationMetadata{
		InstanceID:    id,
		Name:          name,
		RuntimeStatus: api.StatusPending,
		CreatedAt:     e.now,
		LastUpdatedAt: e.now,
		Input:         rawInput,
	}
	e.wake(id)
	return id, e.RunUntilQuiescent()
}

// RaiseEvent delivers an external event and runs until quiescent.
func (e *Emulator) RaiseEvent(id api.InstanceID, eventName string, payload any) error {
	raw, err := e.serder.SerializeBinary(payload)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}
	if _, ok := e.histories[id]; !ok {
		return fmt.Errorf("%q: %w", id, internal.ErrInstanceNotFound)
	}
	e.histories[id] = append(e.histories[id], &api.HistoryEvent{
		EventID:               -1,
		Timestamp:             e.now,
		ExternalEventReceived: &api.ExternalEventReceived{Name: eventName, Input: raw},
	})
	e.wake(id)
	return e.RunUntilQuiescent()
}

// Terminate forcibly finishes an instance and runs until quiescent.
func (e *Emulator) Terminate(id api.InstanceID, reason string) error {
	if _, ok := e.histories[id]; !ok {
		return fmt.Errorf("%q: %w", id, internal.ErrInstanceNotFound)
	}
	e.histories[id] = append(e.histories[id], &api.HistoryEvent{
		EventID:             -1,
		Timestamp:           e.now,
		ExecutionTerminated: &api.ExecutionTerminated{Reason: reason},
	})
	e.wake(id)
	return e.RunUntilQuiescent()
}

// AdvanceTime moves the virtual clock, fires every timer that came due, and
// runs until quiescent. Timers fire in fire-time order.
func (e *Emulator) AdvanceTime(d time.Duration) error {
	e.now = e.now.Add(d)

	due := make([]pendingTimer, 0)
	remaining := e.timers[:0]
	for _, t := range e.timers {
		if !t.fireAt.After(e.now) {
			due = append(due, t)
		} else {
			remaining = append(remaining, t)
		}
	}
	e.timers = remaining
	sort.SliceStable(due, func(i, j int) bool { return due[i].fireAt.Before(due[j].fireAt) })

	for _, t := range due {
		e.histories[t.instanceID] = append(e.histories[t.instanceID], &api.HistoryEvent{
			EventID:    -1,
			Timestamp:  e.now,
			TimerFired: &api.TimerFired{TimerID: t.timerID},
		})
		e.wake(t.instanceID)
	}
	return e.RunUntilQuiescent()
}

// Status returns the instance's status record.
func (e *Emulator) Status(id api.InstanceID) (*api.OrchestrationMetadata, error) {
	meta, ok := e.statuses[id]
	if !ok {
		return nil, fmt.Errorf("%q: %w", id, internal.ErrInstanceNotFound)
	}
	return meta, nil
}

// Output decodes a terminal instance's output into valuePtr, or returns the
// recorded failure as a *TaskFailedError.
func (e *Emulator) Output(id api.InstanceID, valuePtr any) error {
	meta, err := e.Status(id)
	if err != nil {
		return err
	}
	if !meta.RuntimeStatus.IsTerminal() {
		return fmt.Errorf("instance %q is still %s", id, meta.RuntimeStatus)
	}
	if meta.Failure != nil {
		return &internal.TaskFailedError{Failure: meta.Failure}
	}
	if valuePtr == nil || len(meta.Output) == 0 {
		return nil
	}
	return e.serder.DeserializeBinary(meta.Output, valuePtr)
}

// History returns a copy of the instance's event log, for assertions on
// recorded behavior.
func (e *Emulator) History(id api.InstanceID) []*api.HistoryEvent {
	events := e.histories[id]
	out := make([]*api.HistoryEvent, len(events))
	copy(out, events)
	return out
}

// PendingTimers reports how many durable timers are armed.
func (e *Emulator) PendingTimers() int { return len(e.timers) }

func (e *Emulator) wake(id api.InstanceID) {
	e.wakes = append(e.wakes, id)
}

// RunUntilQuiescent processes wakes and activity tasks until none remain.
// Armed timers do not count; they wait for AdvanceTime.
func (e *Emulator) RunUntilQuiescent() error {
	for len(e.wakes) > 0 || len(e.activities) > 0 {
		for len(e.wakes) > 0 {
			id := e.wakes[0]
			e.wakes = e.wakes[1:]
			if err := e.runPass(id); err != nil {
				return err
			}
		}
		if len(e.activities) > 0 {
			task := e.activities[0]
			e.activities = e.activities[1:]
			e.runActivity(task)
		}
	}
	return nil
}

func (e *Emulator) runPass(id api.InstanceID) error {
	events, ok := e.histories[id]
	if !ok {
		return nil
	}
	started := firstExecutionStarted(events)
	if started == nil {
		return fmt.Errorf("history for %q has no execution start record", id)
	}
	if hasTerminalRecord(events) {
		return nil
	}

	activation := &api.HistoryEvent{
		EventID:             -1,
		Timestamp:           e.now,
		OrchestratorStarted: &api.OrchestratorStarted{CurrentTime: e.now},
	}
	result, err := internal.ExecuteOrchestration(e.registry, e.serder, e.logger, id, events, []*api.HistoryEvent{activation})
	if err != nil {
		return err
	}

	history := append(e.histories[id], activation)
	history = append(history, result.RecordedEvents...)
	for _, cmd := range result.Commands {
		if event := api.EventForCommand(cmd, e.now); event != nil {
			history = append(history, event)
		}
	}
	e.histories[id] = history

	for _, cmd := range result.Commands {
		if err := e.dispatch(id, started, cmd); err != nil {
			return err
		}
	}

	meta := e.statuses[id]
	meta.RuntimeStatus = result.RuntimeStatus
	meta.LastUpdatedAt = e.now
	if result.CustomStatus != nil {
		meta.CustomStatus = result.CustomStatus
	}
	if result.Completion != nil {
		meta.Output = result.Completion.Result
		meta.Failure = result.Completion.Failure
	}
	return nil
}

func (e *Emulator) dispatch(id api.InstanceID, started *api.ExecutionStarted, cmd *api.Command) error {
	switch {
	case cmd.ScheduleActivity != nil:
		e.activities = append(e.activities, &api.ActivityTask{
			InstanceID:      id,
			TaskScheduledID: cmd.ID,
			Name:            cmd.ScheduleActivity.Name,
			Input:           cmd.ScheduleActivity.Input,
		})
		return nil

	case cmd.CreateTimer != nil:
		e.timers = append(e.timers, pendingTimer{
			instanceID: id,
			timerID:    cmd.ID,
			fireAt:     cmd.CreateTimer.FireAt,
		})
		return nil

	case cmd.CreateSubOrchestration != nil:
		create := cmd.CreateSubOrchestration
		if _, exists := e.histories[create.InstanceID]; exists {
			return nil
		}
		e.histories[create.InstanceID] = []*api.HistoryEvent{{
			EventID:   -1,
			Timestamp: e.now,
			ExecutionStarted: &api.ExecutionStarted{
				Name:             create.Name,
				Input:            create.Input,
				ParentInstanceID: id,
				ParentTaskID:     cmd.ID,
			},
		}}
		e.statuses[create.InstanceID] = &api.OrchestrationMetadata{
			InstanceID:    create.InstanceID,
			Name:          create.Name,
			RuntimeStatus: api.StatusPending,
			CreatedAt:     e.now,
			LastUpdatedAt: e.now,
			Input:         create.Input,
		}
		e.wake(create.InstanceID)
		return nil

	case cmd.CompleteOrchestration != nil:
		return e.finish(id, started, cmd.CompleteOrchestration)
	}
	return fmt.Errorf("unrecognized command %d of kind %q", cmd.ID, cmd.Kind())
}

func (e *Emulator) finish(id api.InstanceID, started *api.ExecutionStarted, completion *api.CompleteOrchestrationCommand) error {
	if completion.Status == api.StatusContinuedAsNew {
		// Retire the old log wholesale and re-seed with the carried input.
		e.histories[id] = []*api.HistoryEvent{{
			EventID:   -1,
			Timestamp: e.now,
			ExecutionStarted: &api.ExecutionStarted{
				Name:             started.Name,
				Input:            completion.NewInput,
				ParentInstanceID: started.ParentInstanceID,
				ParentTaskID:     started.ParentTaskID,
			},
		}}
		e.dropTimers(id)
		meta := e.statuses[id]
		meta.RuntimeStatus = api.StatusRunning
		meta.Input = completion.NewInput
		e.wake(id)
		return nil
	}

	if started.ParentInstanceID == "" {
		return nil
	}
	finished := &api.HistoryEvent{
		EventID:   -1,
		Timestamp: e.now,
		SubOrchestrationFinished: &api.SubOrchestrationFinished{
			TaskScheduledID: started.ParentTaskID,
			Result:          completion.Result,
		},
	}
	switch completion.Status {
	case api.StatusFailed:
		finished.SubOrchestrationFinished.Failure = completion.Failure
	case api.StatusTerminated:
		finished.SubOrchestrationFinished.Failure = &api.Failure{
			Kind:         api.FailureExecution,
			ErrorType:    "Terminated",
			ErrorMessage: "sub-orchestration was terminated",
		}
	}
	e.histories[started.ParentInstanceID] = append(e.histories[started.ParentInstanceID], finished)
	e.wake(started.ParentInstanceID)
	return nil
}

// dropTimers discards armed timers of a retired execution.
func (e *Emulator) dropTimers(id api.InstanceID) {
	remaining := e.timers[:0]
	for _, t := range e.timers {
		if t.instanceID != id {
			remaining = append(remaining, t)
		}
	}
	e.timers = remaining
}

func (e *Emulator) runActivity(task *api.ActivityTask) {
	result, failure := internal.RunActivity(context.Background(), e.registry, e.serder, e.logger, task)
	event := &api.HistoryEvent{EventID: -1, Timestamp: e.now}
	if failure != nil {
		event.ActivityFailed = &api.ActivityFailed{TaskScheduledID: task.TaskScheduledID, Failure: failure}
	} else {
		event.ActivityCompleted = &api.ActivityCompleted{TaskScheduledID: task.TaskScheduledID, Result: result}
	}
	e.histories[task.InstanceID] = append(e.histories[task.InstanceID], event)
	e.wake(task.InstanceID)
}

func firstExecutionStarted(events []*api.HistoryEvent) *api.ExecutionStarted {
	for _, event := range events {
		if event.ExecutionStarted != nil {
			return event.ExecutionStarted
		}
	}
	return nil
}

func hasTerminalRecord(events []*api.HistoryEvent) bool {
	for _, event := range events {
		if event.ExecutionCompleted != nil && event.ExecutionCompleted.Status != api.StatusContinuedAsNew {
			return true
		}
	}
	return false
}
