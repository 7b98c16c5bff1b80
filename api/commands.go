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

import "time"

// Command is a side effect the replay executor asks the host to perform.
// Exactly one variant pointer is set. The ID is the executor's sequence
// number; the host records the corresponding history event under the same ID
// so future replays can match events back to awaits by issuance order.
type Command struct {
	ID int32 `json:"id" msgpack:"id"`

	ScheduleActivity       *ScheduleActivityCommand       `json:"schedule_activity,omitempty"        msgpack:"schedule_activity,omitempty"`
	CreateTimer            *CreateTimerCommand            `json:"create_timer,omitempty"             msgpack:"create_timer,omitempty"`
	CreateSubOrchestration *CreateSubOrchestrationCommand `json:"create_sub_orchestration,omitempty" msgpack:"create_sub_orchestration,omitempty"`
	CompleteOrchestration  *CompleteOrchestrationCommand  `json:"complete_orchestration,omitempty"   msgpack:"complete_orchestration,omitempty"`
}

// Kind returns a short tag naming the populated variant.
func (c *Command) Kind() string {
	switch {
	case c.ScheduleActivity != nil:
		return "schedule-activity"
	case c.CreateTimer != nil:
		return "create-timer"
	case c.CreateSubOrchestration != nil:
		return "create-sub-orchestration"
	case c.CompleteOrchestration != nil:
		return "complete-orchestration"
	}
	return "unknown"
}

type ScheduleActivityCommand struct {
	Name  string `json:"name"            msgpack:"name"`
	Input []byte `json:"input,omitempty" msgpack:"input,omitempty"`
}

type CreateTimerCommand struct {
	FireAt time.Time `json:"fire_at"        msgpack:"fire_at"`
	Name   string    `json:"name,omitempty" msgpack:"name,omitempty"`
}

type CreateSubOrchestrationCommand struct {
	Name       string     `json:"name"            msgpack:"name"`
	InstanceID InstanceID `json:"instance_id"     msgpack:"instance_id"`
	Input      []byte     `json:"input,omitempty" msgpack:"input,omitempty"`
}

type CompleteOrchestrationCommand struct {
	Status   RuntimeStatus `json:"status"              msgpack:"status"`
	Result   []byte        `json:"result,omitempty"    msgpack:"result,omitempty"`
	Failure  *Failure      `json:"failure,omitempty"   msgpack:"failure,omitempty"`
	NewInput []byte        `json:"new_input,omitempty" msgpack:"new_input,omitempty"`
}

// EventForCommand maps a scheduled-work command to the history event the host
// must append under the same event ID. CompleteOrchestration maps to the
// terminal ExecutionCompleted record.
func EventForCommand(cmd *Command, ts time.Time) *HistoryEvent {
	e := &HistoryEvent{EventID: cmd.ID, Timestamp: ts}
	switch {
	case cmd.ScheduleActivity != nil:
		e.ActivityScheduled = &ActivityScheduled{
			Name:  cmd.ScheduleActivity.Name,
			Input: cmd.ScheduleActivity.Input,
		}
	case cmd.CreateTimer != nil:
		e.TimerCreated = &TimerCreated{
			FireAt: cmd.CreateTimer.FireAt,
			Name:   cmd.CreateTimer.Name,
		}
	case cmd.CreateSubOrchestration != nil:
		e.SubOrchestrationCreated = &SubOrchestrationCreated{
			Name:       cmd.CreateSubOrchestration.Name,
			InstanceID: cmd.CreateSubOrchestration.InstanceID,
			Input:      cmd.CreateSubOrchestration.Input,
		}
	case cmd.CompleteOrchestration != nil:
		e.ExecutionCompleted = &ExecutionCompleted{
			Status:   cmd.CompleteOrchestration.Status,
			Result:   cmd.CompleteOrchestration.Result,
			Failure:  cmd.CompleteOrchestration.Failure,
			NewInput: cmd.CompleteOrchestration.NewInput,
		}
	default:
		return nil
	}
	return e
}
