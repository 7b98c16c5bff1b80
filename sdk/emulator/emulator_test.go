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

package emulator_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/mnvu/durango/api"
	"github.com/mnvu/durango/examples/scenarios/approval"
	"github.com/mnvu/durango/examples/scenarios/cleanup"
	"github.com/mnvu/durango/examples/scenarios/fanout"
	"github.com/mnvu/durango/examples/scenarios/order"
	"github.com/mnvu/durango/examples/scenarios/signals"
	"github.com/mnvu/durango/sdk/client"
	"github.com/mnvu/durango/sdk/emulator"
	"github.com/mnvu/durango/sdk/workflow"
)

func register(t *testing.T, examples ...interface {
	Register(*workflow.Registry) error
}) *workflow.Registry {
	t.Helper()
	reg := workflow.NewRegistry()
	for _, example := range examples {
		if err := example.Register(reg); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	return reg
}

func scheduledActivities(events []*api.HistoryEvent) []string {
	var names []string
	for _, e := range events {
		if e.ActivityScheduled != nil {
			names = append(names, e.ActivityScheduled.Name)
		}
	}
	return names
}

func TestSignalsArriveOutOfOrder(t *testing.T) {
	em := emulator.New(register(t, signals.Example{}))

	id, err := em.Schedule(signals.CollectSignals)
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	for _, s := range []struct{ name, payload string }{
		{"third", "c"},
		{"first", "a"},
		{"second", "b"},
	} {
		if err := em.RaiseEvent(id, s.name, s.payload); err != nil {
			t.Fatalf("raise %s: %v", s.name, err)
		}
	}

	var combined string
	if err := em.Output(id, &combined); err != nil {
		t.Fatalf("output: %v", err)
	}
	if combined != "abc" {
		t.Fatalf("combined = %q, want abc", combined)
	}
}

func TestOrderSagaCompletes(t *testing.T) {
	em := emulator.New(register(t, order.Example{}))

	id, err := em.Schedule(order.ProcessOrder, client.WithInput(order.Order{
		OrderID:  "ord-77",
		Product:  "widget",
		Quantity: 1,
		Amount:   50,
	}))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	var receipt order.Receipt
	if err := em.Output(id, &receipt); err != nil {
		t.Fatalf("output: %v", err)
	}
	if receipt.ChargeID != "chg-ord-77" || receipt.TrackingID != "trk-ord-77" {
		t.Fatalf("receipt = %+v", receipt)
	}

	// The happy path must not run any compensation.
	for _, name := range scheduledActivities(em.History(id)) {
		if name == "ReleaseInventory" || name == "RefundPayment" {
			t.Fatalf("compensation %s ran on the happy path", name)
		}
	}
}

func TestOrderSagaCompensatesOnDeclinedCharge(t *testing.T) {
	em := emulator.New(register(t, order.Example{}))

	id, err := em.Schedule(order.ProcessOrder, client.WithInput(order.Order{
		OrderID:  "ord-88",
		Product:  "widget",
		Quantity: 1,
		Amount:   order.ChargeLimit + 1,
	}))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	err = em.Output(id, nil)
	var failed *workflow.TaskFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected task failure, got %v", err)
	}
	if !strings.Contains(failed.Failure.ErrorMessage, "payment declined") {
		t.Fatalf("failure message = %q", failed.Failure.ErrorMessage)
	}

	// Compensations registered before the declined charge unwind in
	// reverse order: refund first (the charge may have partially happened;
	// activities run at-least-once), then the inventory release.
	names := scheduledActivities(em.History(id))
	refundAt, releaseAt := -1, -1
	for i, name := range names {
		switch name {
		case "RefundPayment":
			refundAt = i
		case "ReleaseInventory":
			releaseAt = i
		}
	}
	if refundAt == -1 || releaseAt == -1 || refundAt > releaseAt {
		t.Fatalf("expected refund then release, scheduled: %v", names)
	}
}

func TestApprovalEventBeatsTimeout(t *testing.T) {
	em := emulator.New(register(t, approval.Example{}))

	id, err := em.Schedule(approval.RequestApproval,
		client.WithInput(approval.Request{DocumentID: "doc-9", Requester: "casey"}))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if em.PendingTimers() != 1 {
		t.Fatalf("pending timers = %d, want 1", em.PendingTimers())
	}

	if err := em.RaiseEvent(id, approval.ApprovalEventName,
		approval.Decision{Approved: true, Approver: "sam"}); err != nil {
		t.Fatalf("raise event: %v", err)
	}

	var outcome approval.Outcome
	if err := em.Output(id, &outcome); err != nil {
		t.Fatalf("output: %v", err)
	}
	if !outcome.Approved || outcome.Approver != "sam" || outcome.TimedOut {
		t.Fatalf("outcome = %+v", outcome)
	}

	// The losing timer eventually fires against a finished instance; that
	// must be a no-op.
	if err := em.AdvanceTime(approval.ApprovalTimeout); err != nil {
		t.Fatalf("advance time: %v", err)
	}
	var after approval.Outcome
	if err := em.Output(id, &after); err != nil {
		t.Fatalf("output after timer: %v", err)
	}
	if after != outcome {
		t.Fatalf("outcome changed after late timer: %+v", after)
	}
}

func TestApprovalTimesOutToDefaultDecision(t *testing.T) {
	em := emulator.New(register(t, approval.Example{}))

	id, err := em.Schedule(approval.RequestApproval,
		client.WithInput(approval.Request{DocumentID: "doc-10", Requester: "casey"}))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	meta, err := em.Status(id)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if meta.RuntimeStatus.IsTerminal() {
		t.Fatalf("instance finished before the timeout: %s", meta.RuntimeStatus)
	}

	if err := em.AdvanceTime(approval.ApprovalTimeout); err != nil {
		t.Fatalf("advance time: %v", err)
	}

	var outcome approval.Outcome
	if err := em.Output(id, &outcome); err != nil {
		t.Fatalf("output: %v", err)
	}
	if !outcome.TimedOut || outcome.Approved {
		t.Fatalf("outcome = %+v, want timed-out rejection", outcome)
	}
}

func TestPeriodicCleanupContinuesAsNew(t *testing.T) {
	em := emulator.New(register(t, cleanup.Example{}))

	id, err := em.Schedule(cleanup.PeriodicCleanup,
		client.WithInput(cleanup.State{MaxIteration: 5}))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	for i := 0; i < 4; i++ {
		meta, err := em.Status(id)
		if err != nil {
			t.Fatalf("status: %v", err)
		}
		if meta.RuntimeStatus.IsTerminal() {
			t.Fatalf("finished after %d sweeps, want 5", i+1)
		}
		if err := em.AdvanceTime(cleanup.Interval); err != nil {
			t.Fatalf("advance time: %v", err)
		}
	}

	var state cleanup.State
	if err := em.Output(id, &state); err != nil {
		t.Fatalf("output: %v", err)
	}
	if state.Iteration != 5 || state.TotalPurged != 15 {
		t.Fatalf("state = %+v, want 5 iterations and 15 purged", state)
	}

	// ContinueAsNew resets the log each generation: the surviving history
	// holds exactly one execution start and one sweep.
	starts := 0
	for _, e := range em.History(id) {
		if e.ExecutionStarted != nil {
			starts++
		}
	}
	if starts != 1 {
		t.Fatalf("history has %d execution starts, want 1", starts)
	}
	if names := scheduledActivities(em.History(id)); len(names) != 1 {
		t.Fatalf("history has %d scheduled activities, want 1: %v", len(names), names)
	}
}

func TestFanOutFanIn(t *testing.T) {
	em := emulator.New(register(t, fanout.Example{}))

	id, err := em.Schedule(fanout.ProcessBatch,
		client.WithInput([]string{"alpha", "beta", "gamma", "delta"}))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	var merged string
	if err := em.Output(id, &merged); err != nil {
		t.Fatalf("output: %v", err)
	}
	if merged != "ALPHA+BETA+GAMMA+DELTA" {
		t.Fatalf("merged = %q", merged)
	}
}

func TestSubOrchestrationRoundTrip(t *testing.T) {
	reg := workflow.NewRegistry()
	child := func(ctx *workflow.Context) (any, error) {
		var name string
		if err := ctx.GetInput(&name); err != nil {
			return nil, err
		}
		return fmt.Sprintf("hello, %s", name), nil
	}
	if err := reg.AddOrchestratorN("Greet", child); err != nil {
		t.Fatalf("register child: %v", err)
	}
	parent := func(ctx *workflow.Context) (any, error) {
		var greeting string
		err := ctx.CallSubOrchestrator("Greet", workflow.WithSubOrchestratorInput("world")).Await(&greeting)
		if err != nil {
			return nil, err
		}
		return greeting, nil
	}
	if err := reg.AddOrchestratorN("GreetParent", parent); err != nil {
		t.Fatalf("register parent: %v", err)
	}

	em := emulator.New(reg)
	id, err := em.Schedule("GreetParent")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	var greeting string
	if err := em.Output(id, &greeting); err != nil {
		t.Fatalf("output: %v", err)
	}
	if greeting != "hello, world" {
		t.Fatalf("greeting = %q", greeting)
	}

	// The child ran under its own derived instance id.
	childID := api.InstanceID(fmt.Sprintf("%s:sub:0", id))
	meta, err := em.Status(childID)
	if err != nil {
		t.Fatalf("child status: %v", err)
	}
	if meta.RuntimeStatus != api.StatusCompleted {
		t.Fatalf("child status = %s", meta.RuntimeStatus)
	}
}

func TestSubOrchestrationFailurePropagates(t *testing.T) {
	reg := workflow.NewRegistry()
	if err := reg.AddOrchestratorN("Broken", func(ctx *workflow.Context) (any, error) {
		return nil, fmt.Errorf("nothing works")
	}); err != nil {
		t.Fatalf("register child: %v", err)
	}
	if err := reg.AddOrchestratorN("BrokenParent", func(ctx *workflow.Context) (any, error) {
		return nil, ctx.CallSubOrchestrator("Broken").Await(nil)
	}); err != nil {
		t.Fatalf("register parent: %v", err)
	}

	em := emulator.New(reg)
	id, err := em.Schedule("BrokenParent")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	err = em.Output(id, nil)
	var failed *workflow.TaskFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected task failure, got %v", err)
	}
	if !strings.Contains(failed.Failure.ErrorMessage, "nothing works") {
		t.Fatalf("failure = %+v", failed.Failure)
	}
}

func TestTerminateBlockedInstance(t *testing.T) {
	reg := workflow.NewRegistry()
	if err := reg.AddOrchestratorN("Park", func(ctx *workflow.Context) (any, error) {
		return nil, ctx.WaitForExternalEvent("never", -1).Await(nil)
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	em := emulator.New(reg)
	id, err := em.Schedule("Park")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}

	if err := em.Terminate(id, "operator request"); err != nil {
		t.Fatalf("terminate: %v", err)
	}
	meta, err := em.Status(id)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if meta.RuntimeStatus != api.StatusTerminated {
		t.Fatalf("status = %s, want Terminated", meta.RuntimeStatus)
	}
}

func TestAccountSignalsApplyInArrivalOrder(t *testing.T) {
	reg := workflow.NewRegistry()
	if err := reg.AddOrchestratorN("Account", func(ctx *workflow.Context) (any, error) {
		balance := 0
		for i := 0; i < 2; i++ {
			var amount int
			if err := ctx.WaitForExternalEvent("adjust", -1).Await(&amount); err != nil {
				return nil, err
			}
			balance += amount
		}
		return balance, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	em := emulator.New(reg)
	id, err := em.Schedule("Account")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := em.RaiseEvent(id, "adjust", 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if err := em.RaiseEvent(id, "adjust", -30); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	var balance int
	if err := em.Output(id, &balance); err != nil {
		t.Fatalf("output: %v", err)
	}
	if balance != 70 {
		t.Fatalf("balance = %d, want 70", balance)
	}
}

func TestVirtualClockDrivesOrchestrationTime(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	reg := workflow.NewRegistry()
	if err := reg.AddOrchestratorN("Clock", func(ctx *workflow.Context) (any, error) {
		before := ctx.Now()
		if err := ctx.CreateTimer(time.Hour).Await(nil); err != nil {
			return nil, err
		}
		return []time.Time{before, ctx.Now()}, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	em := emulator.New(reg, emulator.WithStartTime(start))
	id, err := em.Schedule("Clock")
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if err := em.AdvanceTime(time.Hour); err != nil {
		t.Fatalf("advance time: %v", err)
	}

	var stamps []time.Time
	if err := em.Output(id, &stamps); err != nil {
		t.Fatalf("output: %v", err)
	}
	if !stamps[0].Equal(start) {
		t.Fatalf("pre-timer time = %v, want %v", stamps[0], start)
	}
	if !stamps[1].Equal(start.Add(time.Hour)) {
		t.Fatalf("post-timer time = %v, want %v", stamps[1], start.Add(time.Hour))
	}
}
