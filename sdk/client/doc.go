// Package client is the management surface for orchestration instances.
//
// A client never executes orchestrator code. Scheduling, raising events, and
// terminating all reduce to History Log appends plus a wake message; workers
// observe the appended records on their next replay pass.
//
//	c, err := client.New(conn, nil, nil)
//	if err != nil {
//		return err
//	}
//
//	id, err := c.ScheduleOrchestration(ctx, ProcessOrder,
//		client.WithInput(order))
//	if err != nil {
//		return err
//	}
//
//	meta, err := c.WaitForCompletion(ctx, id)
package client
