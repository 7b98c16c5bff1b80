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
	"strings"
	"testing"
	"time"

	"github.com/mnvu/durango/api"
)

// Three registered compensations, the middle one failing: the unwind must
// run the whole stack in reverse registration order anyway and surface the
// failure joined into the returned error.
func TestCompensateUnwindsFullStackBestEffort(t *testing.T) {
	reg := NewRegistry()
	err := reg.AddOrchestratorN("unwind", func(ctx *OrchestrationContext) (any, error) {
		comps := NewCompensations(ctx)
		comps.Add("UndoA")
		comps.Add("UndoB")
		comps.Add("UndoC")
		if err := comps.Compensate(); err != nil {
			return err.Error(), nil
		}
		return "clean", nil
	})
	if err != nil {
		t.Fatalf("register orchestrator: %v", err)
	}

	// Pass 1: last-registered compensation goes first.
	old := []*api.HistoryEvent{execStarted("unwind", nil)}
	res := execute(t, reg, old, []*api.HistoryEvent{activation(passTime)})
	if res.Completion != nil {
		t.Fatalf("expected suspension on first compensation, got %+v", res.Completion)
	}
	if len(res.Commands) != 1 || res.Commands[0].ScheduleActivity == nil {
		t.Fatalf("expected one schedule command, got %+v", res.Commands)
	}
	if got := res.Commands[0].ScheduleActivity.Name; got != "UndoC" {
		t.Fatalf("first compensation = %q, want UndoC", got)
	}

	// Pass 2: UndoC done, UndoB is next in the unwind.
	old = append(old,
		activation(passTime),
		actScheduled(0, "UndoC"),
		actCompleted(0, nil),
	)
	pass2 := activation(passTime.Add(time.Second))
	res = execute(t, reg, old, []*api.HistoryEvent{pass2})
	if len(res.Commands) != 1 || res.Commands[0].ScheduleActivity == nil {
		t.Fatalf("expected one schedule command, got %+v", res.Commands)
	}
	if got := res.Commands[0].ScheduleActivity.Name; got != "UndoB" {
		t.Fatalf("second compensation = %q, want UndoB", got)
	}

	// Pass 3: UndoB fails; the unwind keeps going to UndoA regardless.
	old = append(old,
		pass2,
		actScheduled(1, "UndoB"),
		actFailed(1, &api.Failure{
			Kind:         api.FailureBusiness,
			ErrorType:    "LedgerError",
			ErrorMessage: "exploded mid-unwind",
		}),
	)
	pass3 := activation(passTime.Add(2 * time.Second))
	res = execute(t, reg, old, []*api.HistoryEvent{pass3})
	if len(res.Commands) != 1 || res.Commands[0].ScheduleActivity == nil {
		t.Fatalf("expected one schedule command, got %+v", res.Commands)
	}
	if got := res.Commands[0].ScheduleActivity.Name; got != "UndoA" {
		t.Fatalf("third compensation = %q, want UndoA", got)
	}

	// Pass 4: UndoA done; Compensate returns the joined failure.
	old = append(old,
		pass3,
		actScheduled(2, "UndoA"),
		actCompleted(2, nil),
	)
	res = execute(t, reg, old, []*api.HistoryEvent{activation(passTime.Add(3 * time.Second))})
	if res.RuntimeStatus != api.StatusCompleted {
		t.Fatalf("status = %s (failure: %v)", res.RuntimeStatus, res.Completion.Failure)
	}
	var joined string
	if err := testSerde.DeserializeBinary(res.Completion.Result, &joined); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !strings.Contains(joined, `compensation "UndoB"`) {
		t.Fatalf("joined error %q does not name the failed compensation", joined)
	}
	if !strings.Contains(joined, "exploded mid-unwind") {
		t.Fatalf("joined error %q lost the underlying failure message", joined)
	}
	if strings.Contains(joined, "UndoA") || strings.Contains(joined, "UndoC") {
		t.Fatalf("joined error %q blames compensations that succeeded", joined)
	}
}
