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

package api

import (
	"time"
)

// InstanceID identifies one logical orchestration execution.
type InstanceID string

func (id InstanceID) String() string { return string(id) }

// RuntimeStatus is the externally visible state of an orchestration instance.
type RuntimeStatus string

const (
	StatusPending        RuntimeStatus = "Pending"
	StatusRunning        RuntimeStatus = "Running"
	StatusCompleted      RuntimeStatus = "Completed"
	StatusFailed         RuntimeStatus = "Failed"
	StatusTerminated     RuntimeStatus = "Terminated"
	StatusContinuedAsNew RuntimeStatus = "ContinuedAsNew"
)

// IsTerminal reports whether no further executions will happen for this status.
// ContinuedAsNew is terminal for the old logical execution; the instance itself
// keeps running under a fresh history.
func (s RuntimeStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusTerminated:
		return true
	}
	return false
}

// FailureKind distinguishes business failures (an activity or orchestrator
// returned an error) from execution faults (the replay machinery itself
// failed, e.g. nondeterministic orchestrator code).
type FailureKind string

const (
	FailureBusiness  FailureKind = "business"
	FailureExecution FailureKind = "execution"
)

// Failure is the structured error payload recorded in history and surfaced to
// status queries.
type Failure struct {
	Kind         FailureKind `json:"kind"          msgpack:"kind"`
	ErrorType    string      `json:"error_type"    msgpack:"error_type"`
	ErrorMessage string      `json:"error_message" msgpack:"error_message"`
}

func (f *Failure) Error() string {
	if f == nil {
		return "<nil>"
	}
	return f.ErrorMessage
}

// HistoryEvent is one record of an instance's append-only History Log. Exactly
// one of the variant pointers is set; ordering within the log is the only
// source of truth for deterministic replay.
//
// Payload fields are opaque serialized bytes. Encoding and decoding happens at
// the registry edge (see api/serde); the replay executor never inspects them.
type HistoryEvent struct {
	// EventID correlates an event with the command that produced it. For
	// scheduled-work events it equals the scheduling command's sequence
	// number; for delivery events (completions, timer firings) it refers back
	// to that number. Events without a command origin carry -1.
	EventID   int32     `json:"event_id"  msgpack:"event_id"`
	Timestamp time.Time `json:"timestamp" msgpack:"timestamp"`

	OrchestratorStarted      *OrchestratorStarted      `json:"orchestrator_started,omitempty"       msgpack:"orchestrator_started,omitempty"`
	ExecutionStarted         *ExecutionStarted         `json:"execution_started,omitempty"          msgpack:"execution_started,omitempty"`
	ActivityScheduled        *ActivityScheduled        `json:"activity_scheduled,omitempty"         msgpack:"activity_scheduled,omitempty"`
	ActivityCompleted        *ActivityCompleted        `json:"activity_completed,omitempty"         msgpack:"activity_completed,omitempty"`
	ActivityFailed           *ActivityFailed           `json:"activity_failed,omitempty"            msgpack:"activity_failed,omitempty"`
	TimerCreated             *TimerCreated             `json:"timer_created,omitempty"              msgpack:"timer_created,omitempty"`
	TimerFired               *TimerFired               `json:"timer_fired,omitempty"                msgpack:"timer_fired,omitempty"`
	ExternalEventReceived    *ExternalEventReceived    `json:"external_event_received,omitempty"    msgpack:"external_event_received,omitempty"`
	SideEffectRecorded       *SideEffectRecorded       `json:"side_effect_recorded,omitempty"       msgpack:"side_effect_recorded,omitempty"`
	SubOrchestrationCreated  *SubOrchestrationCreated  `json:"sub_orchestration_created,omitempty"  msgpack:"sub_orchestration_created,omitempty"`
	SubOrchestrationFinished *SubOrchestrationFinished `json:"sub_orchestration_finished,omitempty" msgpack:"sub_orchestration_finished,omitempty"`
	ExecutionTerminated      *ExecutionTerminated      `json:"execution_terminated,omitempty"       msgpack:"execution_terminated,omitempty"`
	ExecutionCompleted       *ExecutionCompleted       `json:"execution_completed,omitempty"        msgpack:"execution_completed,omitempty"`
}

// Kind returns a short tag naming the populated variant, for logs and errors.
func (e *HistoryEvent) Kind() string {
	switch {
	case e.OrchestratorStarted != nil:
		return "orchestrator/started"
	case e.ExecutionStarted != nil:
		return "execution/started"
	case e.ActivityScheduled != nil:
		return "activity/scheduled"
	case e.ActivityCompleted != nil:
		return "activity/completed"
	case e.ActivityFailed != nil:
		return "activity/failed"
	case e.TimerCreated != nil:
		return "timer/created"
	case e.TimerFired != nil:
		return "timer/fired"
	case e.ExternalEventReceived != nil:
		return "event/received"
	case e.SideEffectRecorded != nil:
		return "sideeffect/recorded"
	case e.SubOrchestrationCreated != nil:
		return "suborchestration/created"
	case e.SubOrchestrationFinished != nil:
		return "suborchestration/finished"
	case e.ExecutionTerminated != nil:
		return "execution/terminated"
	case e.ExecutionCompleted != nil:
		return "execution/completed"
	}
	return "unknown"
}

// OrchestratorStarted marks the beginning of one execution pass. Its
// CurrentTime is the deterministic "now" visible to orchestrator code until
// the next pass begins.
type OrchestratorStarted struct {
	CurrentTime time.Time `json:"current_time" msgpack:"current_time"`
}

// ExecutionStarted is the first logical event of an instance. For
// sub-orchestrations it carries the parent linkage used to route the result.
type ExecutionStarted struct {
	Name             string     `json:"name"                         msgpack:"name"`
	Input            []byte     `json:"input,omitempty"              msgpack:"input,omitempty"`
	ParentInstanceID InstanceID `json:"parent_instance_id,omitempty" msgpack:"parent_instance_id,omitempty"`
	ParentTaskID     int32      `json:"parent_task_id,omitempty"     msgpack:"parent_task_id,omitempty"`
}

type ActivityScheduled struct {
	Name  string `json:"name"            msgpack:"name"`
	Input []byte `json:"input,omitempty" msgpack:"input,omitempty"`
}

type ActivityCompleted struct {
	TaskScheduledID int32  `json:"task_scheduled_id" msgpack:"task_scheduled_id"`
	Result          []byte `json:"result,omitempty"  msgpack:"result,omitempty"`
}

type ActivityFailed struct {
	TaskScheduledID int32    `json:"task_scheduled_id" msgpack:"task_scheduled_id"`
	Failure         *Failure `json:"failure"           msgpack:"failure"`
}

type TimerCreated struct {
	FireAt time.Time `json:"fire_at"        msgpack:"fire_at"`
	Name   string    `json:"name,omitempty" msgpack:"name,omitempty"`
}

// TimerFired records that the timer created by command TimerID elapsed. A
// fired timer never refires; an abandoned timer (the losing side of a race)
// is simply never awaited again.
type TimerFired struct {
	TimerID int32 `json:"timer_id" msgpack:"timer_id"`
}

// ExternalEventReceived is appended by an external caller via RaiseEvent.
// Events are correlated to waiters by name, strictly in arrival order.
type ExternalEventReceived struct {
	Name  string `json:"name"            msgpack:"name"`
	Input []byte `json:"input,omitempty" msgpack:"input,omitempty"`
}

// SideEffectRecorded captures the result of a nondeterministic primitive
// (random value, fresh id, wall-clock read) executed exactly once and
// replayed from the log afterwards.
type SideEffectRecorded struct {
	Result []byte `json:"result,omitempty" msgpack:"result,omitempty"`
}

type SubOrchestrationCreated struct {
	Name       string     `json:"name"            msgpack:"name"`
	InstanceID InstanceID `json:"instance_id"     msgpack:"instance_id"`
	Input      []byte     `json:"input,omitempty" msgpack:"input,omitempty"`
}

// SubOrchestrationFinished delivers a child instance's terminal outcome to
// the parent. Failure is nil on success.
type SubOrchestrationFinished struct {
	TaskScheduledID int32    `json:"task_scheduled_id" msgpack:"task_scheduled_id"`
	Result          []byte   `json:"result,omitempty"  msgpack:"result,omitempty"`
	Failure         *Failure `json:"failure,omitempty" msgpack:"failure,omitempty"`
}

type ExecutionTerminated struct {
	Reason string `json:"reason,omitempty" msgpack:"reason,omitempty"`
}

// ExecutionCompleted is the terminal record of one logical execution. For
// ContinuedAsNew it carries the input the fresh execution starts from.
type ExecutionCompleted struct {
	Status   RuntimeStatus `json:"status"              msgpack:"status"`
	Result   []byte        `json:"result,omitempty"    msgpack:"result,omitempty"`
	Failure  *Failure      `json:"failure,omitempty"   msgpack:"failure,omitempty"`
	NewInput []byte        `json:"new_input,omitempty" msgpack:"new_input,omitempty"`
}
