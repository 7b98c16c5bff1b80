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

type (
	// OrchestrationTask wakes a worker to run one replay pass over an
	// instance's history. Timer wakes carry the timer fields: the consumer
	// delays redelivery until FireAt, then appends the TimerFired record
	// before executing the pass.
	OrchestrationTask struct {
		InstanceID InstanceID `json:"instance_id"        msgpack:"instance_id"`
		TimerID    *int32     `json:"timer_id,omitempty" msgpack:"timer_id,omitempty"`
		FireAt     time.Time  `json:"fire_at,omitempty"  msgpack:"fire_at,omitempty"`
	}

	// ActivityTask dispatches one activity invocation to a worker. The
	// TaskScheduledID ties the eventual completion event back to the
	// scheduling command.
	ActivityTask struct {
		InstanceID      InstanceID `json:"instance_id"       msgpack:"instance_id"`
		TaskScheduledID int32      `json:"task_scheduled_id" msgpack:"task_scheduled_id"`
		Name            string     `json:"name"              msgpack:"name"`
		Input           []byte     `json:"input,omitempty"   msgpack:"input,omitempty"`
	}
)

// OrchestrationMetadata is the status record kept in the status store. It is
// advisory and read-only for callers; the History Log remains the only input
// to replay.
type OrchestrationMetadata struct {
	InstanceID    InstanceID    `json:"instance_id"             msgpack:"instance_id"`
	Name          string        `json:"name"                    msgpack:"name"`
	RuntimeStatus RuntimeStatus `json:"runtime_status"          msgpack:"runtime_status"`
	CreatedAt     time.Time     `json:"created_at"              msgpack:"created_at"`
	LastUpdatedAt time.Time     `json:"last_updated_at"         msgpack:"last_updated_at"`
	Input         []byte        `json:"input,omitempty"         msgpack:"input,omitempty"`
	Output        []byte        `json:"output,omitempty"        msgpack:"output,omitempty"`
	CustomStatus  []byte        `json:"custom_status,omitempty" msgpack:"custom_status,omitempty"`
	Failure       *Failure      `json:"failure,omitempty"       msgpack:"failure,omitempty"`
}
