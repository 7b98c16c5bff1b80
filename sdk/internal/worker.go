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
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"

	"github.com/mnvu/durango/api"
	"github.com/mnvu/durango/api/serde"
	"github.com/mnvu/durango/internal/natz"
)

const (
	defaultOrchestrationConcurrency = 8
	defaultActivityConcurrency      = 16
	historyConflictRetries          = 5
	taskAckWait                     = time.Minute
)

// WorkerOptions tunes a worker. Zero values take defaults.
type WorkerOptions struct {
	Logger *slog.Logger

	// OrchestrationConcurrency bounds concurrently executing replay passes.
	// Instances are still single-writer: two passes over the same instance
	// race on the history's expected-sequence guard and one loses.
	OrchestrationConcurrency int

	// ActivityConcurrency bounds concurrently executing activities.
	ActivityConcurrency int
}

// Worker hosts orchestrator and activity execution. It pulls tasks from the
// shared JetStream work queues, runs them, and appends the outcomes to the
// History Log. Any number of workers with the same registrations may run
// side by side.
type Worker struct {
	conn     *natz.Conn
	registry *Registry
	serder   serde.BinarySerde
	history  *natz.HistoryLog
	status   *statusStore
	logger   *slog.Logger
	opts     WorkerOptions
}

func NewWorker(conn *natz.Conn, registry *Registry, serder serde.BinarySerde, opts *WorkerOptions) (*Worker, error) {
	if conn == nil {
		return nil, fmt.Errorf("worker requires a NATS connection")
	}
	if registry == nil {
		return nil, fmt.Errorf("worker requires a registry")
	}
	if serder == nil {
		serder = serde.NewMsgpackSerde()
	}
	options := WorkerOptions{}
	if opts != nil {
		options = *opts
	}
	if options.OrchestrationConcurrency <= 0 {
		options.OrchestrationConcurrency = defaultOrchestrationConcurrency
	}
	if options.ActivityConcurrency <= 0 {
		options.ActivityConcurrency = defaultActivityConcurrency
	}
	return &Worker{
		conn:     conn,
		registry: registry,
		serder:   serder,
		history:  natz.NewHistoryLog(conn, serder),
		status:   newStatusStore(conn, serder),
		logger:   defaultLogger(options.Logger),
		opts:     options,
	}, nil
}

// Run processes tasks until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.conn.EnsureTopology(ctx); err != nil {
		return err
	}

	orchestrationConsumer, err := w.conn.EnsureConsumer(ctx, api.OrchestrationTasksStream, jetstream.ConsumerConfig{
		Durable:       api.OrchestrationTaskWorkerConsumer,
		FilterSubject: api.OrchestrationTaskFilterSubjectPattern,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       taskAckWait,
		MaxDeliver:    -1,
	})
	if err != nil {
		return err
	}
	activityConsumer, err := w.conn.EnsureConsumer(ctx, api.ActivityTasksStream, jetstream.ConsumerConfig{
		Durable:       api.ActivityTaskWorkerConsumer,
		FilterSubject: api.ActivityTaskFilterSubjectPattern,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       taskAckWait,
		MaxDeliver:    -1,
	})
	if err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.consume(gCtx, orchestrationConsumer, w.opts.OrchestrationConcurrency, w.handleOrchestrationMsg)
	})
	g.Go(func() error {
		return w.consume(gCtx, activityConsumer, w.opts.ActivityConcurrency, w.handleActivityMsg)
	})
	return g.Wait()
}

// consume pulls messages and fans them out to handler goroutines. Handler
// outcomes map to JetStream dispositions: nil acks, errPoisonTask
// terminates, anything else naks for redelivery.
func (w *Worker) consume(ctx context.Context, consumer jetstream.Consumer, concurrency int, handler func(context.Context, jetstream.Msg) error) error {
	iter, err := consumer.Messages(jetstream.PullMaxMessages(concurrency))
	if err != nil {
		return fmt.Errorf("open message iterator: %w", err)
	}
	go func() {
		<-ctx.Done()
		iter.Stop()
	}()

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for {
		msg, err := iter.Next()
		if err != nil {
			break
		}
		g.Go(func() error {
			switch err := handler(gCtx, msg); {
			case err == nil:
				if err := msg.Ack(); err != nil {
					w.logger.Warn("ack failed", "error", err)
				}
			case errors.Is(err, errPoisonTask):
				w.logger.Error("terminating undecodable task", "error", err)
				if err := msg.Term(); err != nil {
					w.logger.Warn("term failed", "error", err)
				}
			case errors.Is(err, errTaskNotDue):
				// Timer wake arriving early: park it until its fire time.
				var notDue *notDueError
				delay := time.Second
				if errors.As(err, &notDue) {
					delay = notDue.remaining
				}
				if err := msg.NakWithDelay(delay); err != nil {
					w.logger.Warn("delayed nak failed", "error", err)
				}
			default:
				w.logger.Warn("task failed, sending NAK", "error", err)
				if err := msg.Nak(); err != nil {
					w.logger.Warn("nak failed", "error", err)
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// errPoisonTask marks a message that can never succeed.
var errPoisonTask = errors.New("poison task")

// errTaskNotDue marks a timer wake delivered before its fire time.
var errTaskNotDue = errors.New("task not due yet")

type notDueError struct {
	remaining time.Duration
}

func (e *notDueError) Error() string {
	return fmt.Sprintf("task not due for %s", e.remaining)
}

func (e *notDueError) Unwrap() error { return errTaskNotDue }

func (w *Worker) handleOrchestrationMsg(ctx context.Context, msg jetstream.Msg) error {
	var task api.OrchestrationTask
	if err := w.serder.DeserializeBinary(msg.Data(), &task); err != nil {
		return fmt.Errorf("decode orchestration task: %v: %w", err, errPoisonTask)
	}

	if task.TimerID != nil {
		if remaining := time.Until(task.FireAt); remaining > 0 {
			return &notDueError{remaining: remaining}
		}
		// Duplicate TimerFired records are harmless: replay resolves the
		// first and ignores the rest.
		fired := &api.HistoryEvent{
			EventID:    -1,
			Timestamp:  time.Now().UTC(),
			TimerFired: &api.TimerFired{TimerID: *task.TimerID},
		}
		if err := w.history.AppendUnguarded(ctx, task.InstanceID, []*api.HistoryEvent{fired}); err != nil {
			return err
		}
	}

	redelivered := false
	if meta, metaErr := msg.Metadata(); metaErr == nil {
		redelivered = meta.NumDelivered > 1
	}

	var err error
	for attempt := 0; attempt < historyConflictRetries; attempt++ {
		err = w.runOrchestrationPass(ctx, task.InstanceID, redelivered)
		if !errors.Is(err, natz.ErrHistoryConflict) {
			return err
		}
		w.logger.Debug("lost history append race, re-running pass",
			"instance_id", task.InstanceID, "attempt", attempt)
	}
	return err
}

// runOrchestrationPass executes one replay pass: read history, execute,
// append the pass's decisions under the sequence guard, then dispatch the
// side effects those decisions call for.
func (w *Worker) runOrchestrationPass(ctx context.Context, id api.InstanceID, redelivered bool) error {
	events, lastSeq, err := w.history.Read(ctx, id)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		// Wake for a purged or never-created instance; nothing to run.
		w.logger.Warn("orchestration wake for unknown instance", "instance_id", id)
		return nil
	}

	started := firstExecutionStarted(events)
	if started == nil {
		return fmt.Errorf("history for %q has no execution start record", id)
	}
	if _, err := w.registry.orchestrator(started.Name); err != nil {
		// Another worker may carry this registration; let the queue retry.
		return err
	}
	if hasTerminalRecord(events) {
		w.logger.Debug("orchestration wake after completion, ignoring", "instance_id", id)
		return nil
	}

	now := time.Now().UTC()
	activation := &api.HistoryEvent{
		EventID:             -1,
		Timestamp:           now,
		OrchestratorStarted: &api.OrchestratorStarted{CurrentTime: now},
	}

	result, err := ExecuteOrchestration(w.registry, w.serder, w.logger, id, events, []*api.HistoryEvent{activation})
	if err != nil {
		return err
	}

	toAppend := make([]*api.HistoryEvent, 0, 1+len(result.RecordedEvents)+len(result.Commands))
	toAppend = append(toAppend, activation)
	toAppend = append(toAppend, result.RecordedEvents...)
	for _, cmd := range result.Commands {
		if e := api.EventForCommand(cmd, now); e != nil {
			toAppend = append(toAppend, e)
		}
	}
	if _, err := w.history.Append(ctx, id, toAppend, lastSeq); err != nil {
		return err
	}

	// Decisions are durable from here; dispatch is at-least-once.
	if redelivered {
		// The previous delivery may have died between append and dispatch.
		// Replay has already matched away the commands its records re-issued,
		// so the owed work cannot be read off result.Commands: re-derive it
		// from the log and publish every scheduled record that still has no
		// recorded outcome. Every target tolerates duplicates.
		full := make([]*api.HistoryEvent, 0, len(events)+len(toAppend))
		full = append(full, events...)
		full = append(full, toAppend...)
		for _, e := range unresolvedScheduledWork(full) {
			if err := w.redispatchScheduledEvent(ctx, id, e); err != nil {
				return err
			}
		}
		for _, cmd := range result.Commands {
			if cmd.CompleteOrchestration != nil {
				if err := w.finishOrchestration(ctx, id, started, cmd.CompleteOrchestration); err != nil {
					return err
				}
			}
		}
	} else {
		for _, cmd := range result.Commands {
			if err := w.dispatchCommand(ctx, id, started, cmd); err != nil {
				return err
			}
		}
	}
	return w.status.update(ctx, id, func(meta *api.OrchestrationMetadata) {
		meta.Name = started.Name
		meta.RuntimeStatus = result.RuntimeStatus
		meta.LastUpdatedAt = now
		if result.CustomStatus != nil {
			meta.CustomStatus = result.CustomStatus
		}
		if result.Completion != nil {
			meta.Output = result.Completion.Result
			meta.Failure = result.Completion.Failure
		}
	})
}

func (w *Worker) dispatchCommand(ctx context.Context, id api.InstanceID, started *api.ExecutionStarted, cmd *api.Command) error {
	switch {
	case cmd.ScheduleActivity != nil:
		return w.publishActivityTask(ctx, &api.ActivityTask{
			InstanceID:      id,
			TaskScheduledID: cmd.ID,
			Name:            cmd.ScheduleActivity.Name,
			Input:           cmd.ScheduleActivity.Input,
		})

	case cmd.CreateTimer != nil:
		timerID := cmd.ID
		return w.publishOrchestrationTask(ctx, &api.OrchestrationTask{
			InstanceID: id,
			TimerID:    &timerID,
			FireAt:     cmd.CreateTimer.FireAt,
		})

	case cmd.CreateSubOrchestration != nil:
		return w.startSubOrchestration(ctx, id, cmd)

	case cmd.CompleteOrchestration != nil:
		return w.finishOrchestration(ctx, id, started, cmd.CompleteOrchestration)
	}
	return fmt.Errorf("unrecognized command %d of kind %q", cmd.ID, cmd.Kind())
}

// unresolvedScheduledWork returns the scheduled-work records that have no
// recorded outcome yet. Scheduled records and their outcomes correlate by
// sequence number, which is unique across the three kinds.
func unresolvedScheduledWork(events []*api.HistoryEvent) []*api.HistoryEvent {
	resolved := make(map[int32]struct{})
	for _, e := range events {
		switch {
		case e.ActivityCompleted != nil:
			resolved[e.ActivityCompleted.TaskScheduledID] = struct{}{}
		case e.ActivityFailed != nil:
			resolved[e.ActivityFailed.TaskScheduledID] = struct{}{}
		case e.TimerFired != nil:
			resolved[e.TimerFired.TimerID] = struct{}{}
		case e.SubOrchestrationFinished != nil:
			resolved[e.SubOrchestrationFinished.TaskScheduledID] = struct{}{}
		}
	}
	var unresolved []*api.HistoryEvent
	for _, e := range events {
		if e.ActivityScheduled == nil && e.TimerCreated == nil && e.SubOrchestrationCreated == nil {
			continue
		}
		if _, ok := resolved[e.EventID]; !ok {
			unresolved = append(unresolved, e)
		}
	}
	return unresolved
}

// redispatchScheduledEvent publishes the task a recorded scheduling decision
// calls for, reconstructed from the record itself.
func (w *Worker) redispatchScheduledEvent(ctx context.Context, id api.InstanceID, e *api.HistoryEvent) error {
	switch {
	case e.ActivityScheduled != nil:
		return w.publishActivityTask(ctx, &api.ActivityTask{
			InstanceID:      id,
			TaskScheduledID: e.EventID,
			Name:            e.ActivityScheduled.Name,
			Input:           e.ActivityScheduled.Input,
		})

	case e.TimerCreated != nil:
		timerID := e.EventID
		return w.publishOrchestrationTask(ctx, &api.OrchestrationTask{
			InstanceID: id,
			TimerID:    &timerID,
			FireAt:     e.TimerCreated.FireAt,
		})

	case e.SubOrchestrationCreated != nil:
		return w.startSubOrchestration(ctx, id, &api.Command{
			ID: e.EventID,
			CreateSubOrchestration: &api.CreateSubOrchestrationCommand{
				Name:       e.SubOrchestrationCreated.Name,
				InstanceID: e.SubOrchestrationCreated.InstanceID,
				Input:      e.SubOrchestrationCreated.Input,
			},
		})
	}
	return nil
}

func (w *Worker) startSubOrchestration(ctx context.Context, parent api.InstanceID, cmd *api.Command) error {
	create := cmd.CreateSubOrchestration
	now := time.Now().UTC()
	seed := &api.HistoryEvent{
		EventID:   -1,
		Timestamp: now,
		ExecutionStarted: &api.ExecutionStarted{
			Name:             create.Name,
			Input:            create.Input,
			ParentInstanceID: parent,
			ParentTaskID:     cmd.ID,
		},
	}
	// At-least-once dispatch can replay this seed; only the first append
	// lands, the guard rejects the rest.
	if _, err := w.history.Append(ctx, create.InstanceID, []*api.HistoryEvent{seed}, 0); err != nil {
		if errors.Is(err, natz.ErrHistoryConflict) {
			return nil
		}
		return err
	}
	if err := w.status.put(ctx, &api.OrchestrationMetadata{
		InstanceID:    create.InstanceID,
		Name:          create.Name,
		RuntimeStatus: api.StatusPending,
		CreatedAt:     now,
		LastUpdatedAt: now,
		Input:         create.Input,
	}); err != nil {
		return err
	}
	return w.publishOrchestrationTask(ctx, &api.OrchestrationTask{InstanceID: create.InstanceID})
}

func (w *Worker) finishOrchestration(ctx context.Context, id api.InstanceID, started *api.ExecutionStarted, completion *api.CompleteOrchestrationCommand) error {
	if completion.Status == api.StatusContinuedAsNew {
		now := time.Now().UTC()
		seed := &api.HistoryEvent{
			EventID:   -1,
			Timestamp: now,
			ExecutionStarted: &api.ExecutionStarted{
				Name:             started.Name,
				Input:            completion.NewInput,
				ParentInstanceID: started.ParentInstanceID,
				ParentTaskID:     started.ParentTaskID,
			},
		}
		if err := w.history.Reset(ctx, id, []*api.HistoryEvent{seed}); err != nil {
			return err
		}
		if err := w.status.update(ctx, id, func(meta *api.OrchestrationMetadata) {
			meta.RuntimeStatus = api.StatusRunning
			meta.LastUpdatedAt = now
			meta.Input = completion.NewInput
		}); err != nil {
			return err
		}
		return w.publishOrchestrationTask(ctx, &api.OrchestrationTask{InstanceID: id})
	}

	if started.ParentInstanceID == "" {
		return nil
	}
	finished := &api.HistoryEvent{
		EventID:   -1,
		Timestamp: time.Now().UTC(),
		SubOrchestrationFinished: &api.SubOrchestrationFinished{
			TaskScheduledID: started.ParentTaskID,
			Result:          completion.Result,
			Failure:         subOrchestrationFailure(completion),
		},
	}
	if err := w.history.AppendUnguarded(ctx, started.ParentInstanceID, []*api.HistoryEvent{finished}); err != nil {
		return err
	}
	return w.publishOrchestrationTask(ctx, &api.OrchestrationTask{InstanceID: started.ParentInstanceID})
}

func subOrchestrationFailure(completion *api.CompleteOrchestrationCommand) *api.Failure {
	switch completion.Status {
	case api.StatusFailed:
		return completion.Failure
	case api.StatusTerminated:
		return &api.Failure{
			Kind:         api.FailureExecution,
			ErrorType:    "Terminated",
			ErrorMessage: "sub-orchestration was terminated",
		}
	}
	return nil
}

func (w *Worker) handleActivityMsg(ctx context.Context, msg jetstream.Msg) error {
	var task api.ActivityTask
	if err := w.serder.DeserializeBinary(msg.Data(), &task); err != nil {
		return fmt.Errorf("decode activity task: %v: %w", err, errPoisonTask)
	}

	result, failure := RunActivity(ctx, w.registry, w.serder, w.logger, &task)

	e := &api.HistoryEvent{EventID: -1, Timestamp: time.Now().UTC()}
	if failure != nil {
		e.ActivityFailed = &api.ActivityFailed{TaskScheduledID: task.TaskScheduledID, Failure: failure}
	} else {
		e.ActivityCompleted = &api.ActivityCompleted{TaskScheduledID: task.TaskScheduledID, Result: result}
	}
	if err := w.history.AppendUnguarded(ctx, task.InstanceID, []*api.HistoryEvent{e}); err != nil {
		return err
	}
	return w.publishOrchestrationTask(ctx, &api.OrchestrationTask{InstanceID: task.InstanceID})
}

func (w *Worker) publishOrchestrationTask(ctx context.Context, task *api.OrchestrationTask) error {
	data, err := w.serder.SerializeBinary(task)
	if err != nil {
		return fmt.Errorf("encode orchestration task: %w", err)
	}
	subject := fmt.Sprintf(api.OrchestrationTaskPublishSubjectPattern, task.InstanceID)
	_, err = w.conn.PublishJS(ctx, subject, data)
	return err
}

func (w *Worker) publishActivityTask(ctx context.Context, task *api.ActivityTask) error {
	data, err := w.serder.SerializeBinary(task)
	if err != nil {
		return fmt.Errorf("encode activity task: %w", err)
	}
	subject := fmt.Sprintf(api.ActivityTaskPublishSubjectPattern, task.InstanceID)
	_, err = w.conn.PublishJS(ctx, subject, data)
	return err
}

func firstExecutionStarted(events []*api.HistoryEvent) *api.ExecutionStarted {
	for _, e := range events {
		if e.ExecutionStarted != nil {
			return e.ExecutionStarted
		}
	}
	return nil
}

func hasTerminalRecord(events []*api.HistoryEvent) bool {
	for _, e := range events {
		if e.ExecutionCompleted != nil && e.ExecutionCompleted.Status != api.StatusContinuedAsNew {
			return true
		}
	}
	return false
}
