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
	"testing"
	"time"

	"github.com/mnvu/durango/api"
)

func subOrchCreated(id int32, name string, instanceID api.InstanceID) *api.HistoryEvent {
	return &api.HistoryEvent{
		EventID: id,
		SubOrchestrationCreated: &api.SubOrchestrationCreated{
			Name:       name,
			InstanceID: instanceID,
		},
	}
}

// A wake redelivered after a crash between append and dispatch replays its
// re-issued commands away, so the worker re-derives what is still owed
// directly from the log. These cases pin that derivation down.
func TestUnresolvedScheduledWork(t *testing.T) {
	fireAt := passTime.Add(time.Hour)

	tests := []struct {
		name    string
		history []*api.HistoryEvent
		wantIDs []int32
	}{
		{
			name:    "empty history owes nothing",
			history: nil,
			wantIDs: nil,
		},
		{
			name: "recorded decisions without outcomes are owed",
			history: []*api.HistoryEvent{
				execStarted("flow", nil),
				activation(passTime),
				actScheduled(0, "charge"),
				timerCreated(1, "", fireAt),
			},
			wantIDs: []int32{0, 1},
		},
		{
			name: "resolved work is not owed again",
			history: []*api.HistoryEvent{
				execStarted("flow", nil),
				activation(passTime),
				actScheduled(0, "charge"),
				timerCreated(1, "", fireAt),
				actCompleted(0, nil),
			},
			wantIDs: []int32{1},
		},
		{
			name: "failed activities count as resolved",
			history: []*api.HistoryEvent{
				execStarted("flow", nil),
				activation(passTime),
				actScheduled(0, "charge"),
				actFailed(0, &api.Failure{Kind: api.FailureBusiness, ErrorType: "Declined"}),
			},
			wantIDs: nil,
		},
		{
			name: "fired timers and finished children count as resolved",
			history: []*api.HistoryEvent{
				execStarted("flow", nil),
				activation(passTime),
				timerCreated(0, "", fireAt),
				subOrchCreated(1, "child", "flow:sub:1"),
				timerFired(0),
				{EventID: -1, SubOrchestrationFinished: &api.SubOrchestrationFinished{TaskScheduledID: 1}},
			},
			wantIDs: nil,
		},
		{
			name: "unfinished child is owed",
			history: []*api.HistoryEvent{
				execStarted("flow", nil),
				activation(passTime),
				subOrchCreated(0, "child", "flow:sub:0"),
			},
			wantIDs: []int32{0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := unresolvedScheduledWork(tt.history)
			if len(got) != len(tt.wantIDs) {
				t.Fatalf("got %d owed records, want %d (%+v)", len(got), len(tt.wantIDs), got)
			}
			for i, e := range got {
				if e.EventID != tt.wantIDs[i] {
					t.Errorf("owed[%d] = event %d, want %d", i, e.EventID, tt.wantIDs[i])
				}
			}
		})
	}
}
