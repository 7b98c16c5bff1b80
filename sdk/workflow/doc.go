// Package workflow provides the programming model for writing durable
// orchestrations.
//
// An orchestrator is a regular Go function that takes a *workflow.Context
// and routes every asynchronous step through it:
//
//	func ProcessOrder(ctx *workflow.Context) (any, error) {
//		var order Order
//		if err := ctx.GetInput(&order); err != nil {
//			return nil, err
//		}
//		var reservation string
//		err := ctx.CallActivity(ReserveInventory,
//			workflow.WithActivityInput(order)).Await(&reservation)
//		if err != nil {
//			return nil, err
//		}
//		return reservation, nil
//	}
//
// # Determinism
//
// Orchestrator code re-executes from the beginning every time its instance
// is activated, with prior results replayed from the History Log. It must
// therefore be deterministic:
//   - no direct I/O, no goroutines, no channels
//   - no time.Now or time.Sleep (use ctx.Now and ctx.CreateTimer)
//   - no random values (use ctx.NewUUID or ctx.SideEffect)
//   - no iteration over maps where the order reaches an await
//
// All real-world work belongs in activities: ordinary Go functions invoked
// at-least-once outside the replay sandbox.
//
// # Awaiting
//
// Scheduling methods return a Task. Await blocks the orchestrator's logical
// thread until the result is available in history; no OS thread is held
// while the instance waits, even for weeks. Tasks compose with WhenAll and
// WhenAny, and WaitForExternalEvent races cleanly against its timeout: on
// any replay exactly one side wins, decided by History Log order.
//
// # Failure handling
//
// Activity and sub-orchestration failures surface from Await as a
// *TaskFailedError value. They are ordinary recorded data: the orchestrator
// may catch them, branch on them, or run a Compensations stack to unwind
// completed steps in reverse order.
package workflow
