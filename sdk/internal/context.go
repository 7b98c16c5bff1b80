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
	"container/list"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/mnvu/durango/api"
	"github.com/mnvu/durango/api/serde"
)

// OrchestrationContext is the replay executor's state for one execution pass
// of one instance. Orchestrator code receives it as its only parameter and
// must route every await through it.
//
// The executor owns the instance exclusively for the duration of the pass;
// the single-writer invariant on the History Log is a precondition enforced
// by the persistence layer.
type OrchestrationContext struct {
	id          api.InstanceID
	name        string
	isReplaying bool
	currentTime time.Time

	registry *Registry
	serder   serde.BinarySerde
	logger   *slog.Logger

	rawInput       []byte
	history        []*api.HistoryEvent
	activationTime []time.Time
	replayBoundary int
	historyIndex   int

	sequenceNumber int32
	uuidCounter    int32

	pendingCommands    map[int32]*api.Command
	pendingTasks       map[int32]*completableTask
	pendingSideEffects *list.List // *deferredSideEffect, ascending sequence
	recordedEvents     []*api.HistoryEvent

	bufferedExternalEvents    map[string]*list.List // *api.HistoryEvent per upper-cased name
	pendingExternalEventTasks map[string]*list.List // *completableTask per upper-cased name

	continuedAsNew      bool
	continuedAsNewInput []byte
	completionEmitted   bool
	customStatus        []byte
}

type deferredSideEffect struct {
	sequenceNumber int32
	task           *completableTask
	fn             func() (any, error)
}

func newOrchestrationContext(
	registry *Registry,
	serder serde.BinarySerde,
	logger *slog.Logger,
	id api.InstanceID,
	oldEvents, newEvents []*api.HistoryEvent,
) *OrchestrationContext {
	history := make([]*api.HistoryEvent, 0, len(oldEvents)+len(newEvents))
	history = append(history, oldEvents...)
	history = append(history, newEvents...)

	// Each position's orchestration time is the nearest activation marker at
	// or after it. Events that woke a pass precede that pass's marker in the
	// log but were first processed under its clock; the assignment keeps
	// replay and original execution seeing identical times.
	activationTime := make([]time.Time, len(history))
	var marker time.Time
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].OrchestratorStarted != nil {
			marker = history[i].OrchestratorStarted.CurrentTime
		}
		activationTime[i] = marker
	}

	ctx := &OrchestrationContext{
		id:                        id,
		registry:                  registry,
		serder:                    serder,
		logger:                    defaultLogger(logger).With("instance_id", id),
		history:                   history,
		activationTime:            activationTime,
		replayBoundary:            len(oldEvents),
		pendingCommands:           make(map[int32]*api.Command),
		pendingTasks:              make(map[int32]*completableTask),
		pendingSideEffects:        list.New(),
		bufferedExternalEvents:    make(map[string]*list.List),
		pendingExternalEventTasks: make(map[string]*list.List),
	}
	if len(history) > 0 {
		ctx.currentTime = activationTime[0]
	}
	return ctx
}

// InstanceID returns the instance identity.
func (ctx *OrchestrationContext) InstanceID() api.InstanceID { return ctx.id }

// OrchestrationName returns the registered orchestrator name.
func (ctx *OrchestrationContext) OrchestrationName() string { return ctx.name }

// IsReplaying reports whether the history cursor is still inside previously
// recorded events. Useful to suppress duplicate log lines or notifications.
func (ctx *OrchestrationContext) IsReplaying() bool { return ctx.isReplaying }

// Now returns the deterministic orchestration time: the timestamp of the
// last OrchestratorStarted record. It only advances between execution
// passes, never within one, and replays identically.
func (ctx *OrchestrationContext) Now() time.Time { return ctx.currentTime }

// NewUUID returns a replay-stable UUID derived from the instance id and an
// internal counter. Use it instead of random ids inside orchestrator code.
func (ctx *OrchestrationContext) NewUUID() uuid.UUID {
	ctx.uuidCounter++
	return uuid.NewV5(uuid.NamespaceURL, fmt.Sprintf("durango:%s:%d", ctx.id, ctx.uuidCounter))
}

// GetInput decodes the orchestration input into valuePtr.
func (ctx *OrchestrationContext) GetInput(valuePtr any) error {
	return ctx.serder.DeserializeBinary(ctx.rawInput, valuePtr)
}

// SetCustomStatus publishes an advisory status value readable by status
// queries. It has no effect on execution and need not replay identically.
func (ctx *OrchestrationContext) SetCustomStatus(value any) error {
	raw, err := ctx.serder.SerializeBinary(value)
	if err != nil {
		return fmt.Errorf("encode custom status: %w", err)
	}
	ctx.customStatus = raw
	return nil
}

// Logger returns a logger scoped to the instance. Log lines repeat during
// replay; gate on IsReplaying when that matters.
func (ctx *OrchestrationContext) Logger() *slog.Logger { return ctx.logger }

func (ctx *OrchestrationContext) nextSequenceNumber() int32 {
	current := ctx.sequenceNumber
	ctx.sequenceNumber++
	return current
}

// --- awaits ---

// CallActivity schedules an asynchronous activity invocation. The activity
// parameter is either the registered name or the function itself, in which
// case the name is derived the same way registration derived it.
func (ctx *OrchestrationContext) CallActivity(activity any, opts ...CallActivityOption) Task {
	options := new(callActivityOptions)
	for _, configure := range opts {
		if err := configure(options); err != nil {
			return failedTask(ctx, err)
		}
	}
	name, err := taskName(activity)
	if err != nil {
		return failedTask(ctx, err)
	}
	rawInput, err := ctx.encodeInput(options.hasInput, options.input, options.hasRaw, options.rawInput)
	if err != nil {
		return failedTask(ctx, err)
	}

	if options.retryPolicy != nil {
		policy := options.retryPolicy.normalize()
		return ctx.scheduleWithRetries(name, policy, 0, func() Task {
			return ctx.scheduleActivity(name, rawInput)
		})
	}
	return ctx.scheduleActivity(name, rawInput)
}

func (ctx *OrchestrationContext) scheduleActivity(name string, rawInput []byte) *completableTask {
	seq := ctx.nextSequenceNumber()
	ctx.pendingCommands[seq] = &api.Command{
		ID:               seq,
		ScheduleActivity: &api.ScheduleActivityCommand{Name: name, Input: rawInput},
	}
	task := newTask(ctx)
	ctx.pendingTasks[seq] = task
	return task
}

func (ctx *OrchestrationContext) scheduleWithRetries(name string, policy RetryPolicy, attempt int, schedule func() Task) Task {
	return &taskWrapper{
		delegate: schedule(),
		onAwaitResult: func(valuePtr any, err error) error {
			if err == nil {
				return nil
			}
			var tfe *TaskFailedError
			if !errors.As(err, &tfe) {
				return err
			}
			if attempt+1 >= int(policy.MaximumAttempts) || !policy.retryable(tfe.Failure) {
				return err
			}
			if timerErr := ctx.createTimerInternal(name+"-retry", policy.nextDelay(attempt)).Await(nil); timerErr != nil {
				return fmt.Errorf("retry backoff timer: %v: %w", timerErr, err)
			}
			return ctx.scheduleWithRetries(name, policy, attempt+1, schedule).Await(valuePtr)
		},
	}
}

// CreateTimer schedules a durable timer that resolves after the given delay,
// measured from the deterministic orchestration time.
func (ctx *OrchestrationContext) CreateTimer(delay time.Duration) Task {
	return ctx.createTimerInternal("", delay)
}

func (ctx *OrchestrationContext) createTimerInternal(name string, delay time.Duration) *completableTask {
	seq := ctx.nextSequenceNumber()
	ctx.pendingCommands[seq] = &api.Command{
		ID:          seq,
		CreateTimer: &api.CreateTimerCommand{FireAt: ctx.currentTime.Add(delay), Name: name},
	}
	task := newTask(ctx)
	ctx.pendingTasks[seq] = task
	return task
}

// WaitForExternalEvent resolves when an event with the given name is raised
// against this instance, or cancels (ErrTaskCanceled) when the timeout
// elapses first. The winner is decided purely by History Log order.
//
// A negative timeout waits indefinitely. A zero timeout resolves only from
// already-buffered events and cancels otherwise. Multiple concurrent waits
// on the same name resolve strictly in event arrival order; event names are
// case-insensitive.
func (ctx *OrchestrationContext) WaitForExternalEvent(eventName string, timeout time.Duration) Task {
	task := newTask(ctx)
	key := strings.ToUpper(eventName)
	if eventList, ok := ctx.bufferedExternalEvents[key]; ok {
		next := eventList.Front()
		eventList.Remove(next)
		if eventList.Len() == 0 {
			delete(ctx.bufferedExternalEvents, key)
		}
		task.complete(next.Value.(*api.HistoryEvent).ExternalEventReceived.Input)
		return task
	}
	if timeout == 0 {
		task.cancel()
		return task
	}

	taskList, ok := ctx.pendingExternalEventTasks[key]
	if !ok {
		taskList = list.New()
		ctx.pendingExternalEventTasks[key] = taskList
	}
	taskElement := taskList.PushBack(task)

	if timeout > 0 {
		ctx.createTimerInternal(eventName+"-timeout", timeout).onCompleted(func() {
			if task.fired {
				return
			}
			task.cancel()
			taskList.Remove(taskElement)
			if taskList.Len() == 0 {
				delete(ctx.pendingExternalEventTasks, key)
			}
		})
	}
	return task
}

// CallSubOrchestrator schedules a child orchestration and resolves with its
// terminal outcome. The child runs under its own instance id and History
// Log; only the recorded result crosses back into this instance.
func (ctx *OrchestrationContext) CallSubOrchestrator(orchestrator any, opts ...CallSubOrchestratorOption) Task {
	options := new(callSubOrchestratorOptions)
	for _, configure := range opts {
		if err := configure(options); err != nil {
			return failedTask(ctx, err)
		}
	}
	name, err := taskName(orchestrator)
	if err != nil {
		return failedTask(ctx, err)
	}
	rawInput, err := ctx.encodeInput(options.hasInput, options.input, options.hasRaw, options.rawInput)
	if err != nil {
		return failedTask(ctx, err)
	}

	seq := ctx.nextSequenceNumber()
	instanceID := options.instanceID
	if instanceID == "" {
		instanceID = api.InstanceID(fmt.Sprintf("%s:sub:%d", ctx.id, seq))
	}
	ctx.pendingCommands[seq] = &api.Command{
		ID: seq,
		CreateSubOrchestration: &api.CreateSubOrchestrationCommand{
			Name:       name,
			InstanceID: instanceID,
			Input:      rawInput,
		},
	}
	task := newTask(ctx)
	ctx.pendingTasks[seq] = task
	return task
}

// SideEffect funnels a nondeterministic primitive through the History Log.
// The function runs exactly once; replays feed the recorded result back
// without re-running it. The task resolves with the recorded value.
func (ctx *OrchestrationContext) SideEffect(fn func() (any, error)) Task {
	seq := ctx.nextSequenceNumber()
	task := newTask(ctx)
	ctx.pendingSideEffects.PushBack(&deferredSideEffect{sequenceNumber: seq, task: task, fn: fn})
	return task
}

// runSideEffects executes deferred side effects once the History Log is
// exhausted: at that point no recorded result can exist for them, so they
// are genuinely fresh. Returns true if any ran.
func (ctx *OrchestrationContext) runSideEffects() bool {
	ran := false
	for e := ctx.pendingSideEffects.Front(); e != nil; e = ctx.pendingSideEffects.Front() {
		ctx.pendingSideEffects.Remove(e)
		se := e.Value.(*deferredSideEffect)
		ran = true
		value, err := se.fn()
		if err != nil {
			se.task.fail(failureFromError(err, api.FailureBusiness))
			continue
		}
		raw, err := ctx.serder.SerializeBinary(value)
		if err != nil {
			se.task.fail(failureFromError(fmt.Errorf("encode side effect result: %w", err), api.FailureExecution))
			continue
		}
		ctx.recordedEvents = append(ctx.recordedEvents, &api.HistoryEvent{
			EventID:            se.sequenceNumber,
			Timestamp:          ctx.currentTime,
			SideEffectRecorded: &api.SideEffectRecorded{Result: raw},
		})
		se.task.complete(raw)
	}
	return ran
}

// ContinueAsNew retires the current logical execution and restarts the
// instance with a fresh, empty History Log seeded only with newInput. It
// never returns: code after the call does not execute.
func (ctx *OrchestrationContext) ContinueAsNew(newInput any) {
	raw, err := ctx.serder.SerializeBinary(newInput)
	if err != nil {
		panic(executionFault{fmt.Errorf("encode continue-as-new input: %w", err)})
	}
	ctx.continuedAsNew = true
	ctx.continuedAsNewInput = raw
	panic(errContinuedAsNew)
}

func (ctx *OrchestrationContext) encodeInput(hasInput bool, input any, hasRaw bool, raw []byte) ([]byte, error) {
	if hasRaw {
		return raw, nil
	}
	if !hasInput {
		return nil, nil
	}
	data, err := ctx.serder.SerializeBinary(input)
	if err != nil {
		return nil, fmt.Errorf("encode input: %w", err)
	}
	return data, nil
}

// --- history pump ---

// waitForCompletion drives the history pump until the task resolves. When
// the log is exhausted it first flushes deferred side effects; if the task
// is still unresolved the execution pass suspends.
func (ctx *OrchestrationContext) waitForCompletion(t *completableTask) {
	for !t.fired {
		ok, err := ctx.processNextEvent()
		if err != nil {
			panic(executionFault{err})
		}
		if ok {
			continue
		}
		if ctx.runSideEffects() {
			continue
		}
		panic(errTaskBlocked)
	}
}

func (ctx *OrchestrationContext) processNextEvent() (bool, error) {
	if ctx.historyIndex >= len(ctx.history) {
		return false, nil
	}
	ctx.isReplaying = ctx.historyIndex < ctx.replayBoundary
	e := ctx.history[ctx.historyIndex]
	ctx.currentTime = ctx.activationTime[ctx.historyIndex]
	ctx.historyIndex++
	if err := ctx.processEvent(e); err != nil {
		return true, err
	}
	return true, nil
}

func (ctx *OrchestrationContext) processEvent(e *api.HistoryEvent) error {
	switch {
	case e.OrchestratorStarted != nil:
		// Clock advance is handled by the activation-time cursor.
		return nil
	case e.ExecutionStarted != nil:
		return ctx.onExecutionStarted(e.ExecutionStarted)
	case e.ActivityScheduled != nil:
		return ctx.onWorkScheduled(e, "activity", e.ActivityScheduled.Name, func(c *api.Command) string {
			if c.ScheduleActivity == nil {
				return ""
			}
			return c.ScheduleActivity.Name
		})
	case e.ActivityCompleted != nil:
		ctx.resolveTask(e.ActivityCompleted.TaskScheduledID, e.ActivityCompleted.Result, nil)
		return nil
	case e.ActivityFailed != nil:
		ctx.resolveTask(e.ActivityFailed.TaskScheduledID, nil, e.ActivityFailed.Failure)
		return nil
	case e.TimerCreated != nil:
		return ctx.onWorkScheduled(e, "timer", e.TimerCreated.Name, func(c *api.Command) string {
			if c.CreateTimer == nil {
				return ""
			}
			return c.CreateTimer.Name
		})
	case e.TimerFired != nil:
		ctx.resolveTask(e.TimerFired.TimerID, nil, nil)
		return nil
	case e.ExternalEventReceived != nil:
		ctx.onExternalEventReceived(e)
		return nil
	case e.SideEffectRecorded != nil:
		return ctx.onSideEffectRecorded(e)
	case e.SubOrchestrationCreated != nil:
		return ctx.onWorkScheduled(e, "sub-orchestration", e.SubOrchestrationCreated.Name, func(c *api.Command) string {
			if c.CreateSubOrchestration == nil {
				return ""
			}
			return c.CreateSubOrchestration.Name
		})
	case e.SubOrchestrationFinished != nil:
		ctx.resolveTask(e.SubOrchestrationFinished.TaskScheduledID, e.SubOrchestrationFinished.Result, e.SubOrchestrationFinished.Failure)
		return nil
	case e.ExecutionTerminated != nil:
		ctx.onExecutionTerminated(e.ExecutionTerminated)
		return nil
	case e.ExecutionCompleted != nil:
		// Terminal record of a past execution; nothing to reconstruct.
		return nil
	}
	return fmt.Errorf("unrecognized history event %d of kind %q", e.EventID, e.Kind())
}

func (ctx *OrchestrationContext) onExecutionStarted(es *api.ExecutionStarted) error {
	orchestrator, err := ctx.registry.orchestrator(es.Name)
	if err != nil {
		return err
	}
	ctx.name = es.Name
	ctx.rawInput = es.Input

	output, appErr := orchestrator(ctx)
	if appErr != nil {
		ctx.setFailed(failureFromError(appErr, api.FailureBusiness))
		return nil
	}
	return ctx.setComplete(output)
}

// onWorkScheduled replays a scheduled-work record against the commands the
// current execution produced. A missing or mismatched command at the same
// sequence number means orchestrator code diverged from the log.
func (ctx *OrchestrationContext) onWorkScheduled(e *api.HistoryEvent, kind, name string, commandName func(*api.Command) string) error {
	cmd, ok := ctx.pendingCommands[e.EventID]
	if !ok {
		return &NonDeterminismError{
			EventID:  e.EventID,
			Expected: fmt.Sprintf("%s %q scheduled", kind, name),
			Actual:   "no command at this sequence number",
		}
	}
	if got := commandName(cmd); cmd.Kind() != kindOfScheduled(kind) || got != name {
		return &NonDeterminismError{
			EventID:  e.EventID,
			Expected: fmt.Sprintf("%s %q scheduled", kind, name),
			Actual:   fmt.Sprintf("%s %q", cmd.Kind(), got),
		}
	}
	delete(ctx.pendingCommands, e.EventID)
	return nil
}

func kindOfScheduled(kind string) string {
	switch kind {
	case "activity":
		return "schedule-activity"
	case "timer":
		return "create-timer"
	case "sub-orchestration":
		return "create-sub-orchestration"
	}
	return kind
}

// resolveTask feeds a delivery event back into the awaiting task. Unknown
// sequence numbers are tolerated: they are duplicate deliveries or
// completions of abandoned race losers, ignored on every replay.
func (ctx *OrchestrationContext) resolveTask(taskID int32, result []byte, failure *api.Failure) {
	task, ok := ctx.pendingTasks[taskID]
	if !ok {
		ctx.logger.Debug("ignoring completion for unknown or abandoned task", "task_id", taskID)
		return
	}
	delete(ctx.pendingTasks, taskID)
	if failure != nil {
		task.fail(failure)
		return
	}
	task.complete(result)
}

func (ctx *OrchestrationContext) onExternalEventReceived(e *api.HistoryEvent) {
	key := strings.ToUpper(e.ExternalEventReceived.Name)
	if taskList, ok := ctx.pendingExternalEventTasks[key]; ok {
		// First pending waiter wins; arrival order is resolution order.
		elem := taskList.Front()
		taskList.Remove(elem)
		if taskList.Len() == 0 {
			delete(ctx.pendingExternalEventTasks, key)
		}
		elem.Value.(*completableTask).complete(e.ExternalEventReceived.Input)
		return
	}
	eventList, ok := ctx.bufferedExternalEvents[key]
	if !ok {
		eventList = list.New()
		ctx.bufferedExternalEvents[key] = eventList
	}
	eventList.PushBack(e)
}

func (ctx *OrchestrationContext) onSideEffectRecorded(e *api.HistoryEvent) error {
	front := ctx.pendingSideEffects.Front()
	if front == nil {
		return &NonDeterminismError{
			EventID:  e.EventID,
			Expected: "a side effect at this sequence number",
			Actual:   "no side effect pending",
		}
	}
	se := front.Value.(*deferredSideEffect)
	if se.sequenceNumber != e.EventID {
		return &NonDeterminismError{
			EventID:  e.EventID,
			Expected: "a side effect at this sequence number",
			Actual:   fmt.Sprintf("side effect at sequence number %d", se.sequenceNumber),
		}
	}
	ctx.pendingSideEffects.Remove(front)
	se.task.complete(e.SideEffectRecorded.Result)
	return nil
}

func (ctx *OrchestrationContext) onExecutionTerminated(et *api.ExecutionTerminated) {
	raw, err := ctx.serder.SerializeBinary(et.Reason)
	if err != nil {
		raw = nil
	}
	ctx.setCompletion(&api.CompleteOrchestrationCommand{
		Status: api.StatusTerminated,
		Result: raw,
	})
}

// --- completion ---

func (ctx *OrchestrationContext) setComplete(output any) error {
	raw, err := ctx.serder.SerializeBinary(output)
	if err != nil {
		ctx.setFailed(failureFromError(fmt.Errorf("encode orchestration output: %w", err), api.FailureExecution))
		return nil
	}
	ctx.setCompletion(&api.CompleteOrchestrationCommand{
		Status: api.StatusCompleted,
		Result: raw,
	})
	return nil
}

func (ctx *OrchestrationContext) setFailed(failure *api.Failure) {
	ctx.setCompletion(&api.CompleteOrchestrationCommand{
		Status:  api.StatusFailed,
		Failure: failure,
	})
}

func (ctx *OrchestrationContext) setContinuedAsNew() {
	ctx.setCompletion(&api.CompleteOrchestrationCommand{
		Status:   api.StatusContinuedAsNew,
		NewInput: ctx.continuedAsNewInput,
	})
}

// setCompletion emits the terminal command once; a termination that raced an
// orchestrator return keeps whichever completed first.
func (ctx *OrchestrationContext) setCompletion(completion *api.CompleteOrchestrationCommand) {
	if ctx.completionEmitted {
		return
	}
	ctx.completionEmitted = true
	seq := ctx.nextSequenceNumber()
	ctx.pendingCommands[seq] = &api.Command{ID: seq, CompleteOrchestration: completion}
}
