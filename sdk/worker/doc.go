// Package worker runs orchestrations and activities.
//
// A worker owns no state of its own: it pulls task messages from JetStream
// work queues, replays or executes, and appends outcomes to the History Log.
// Crash recovery is free. An unacknowledged task redelivers, the replacement
// worker replays the instance's history, and execution resumes exactly where
// it stopped.
//
//	registry := workflow.NewRegistry()
//	registry.AddOrchestrator(ProcessOrder)
//	registry.AddActivity(ReserveInventory)
//
//	conn, err := natz.Connect(natz.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer conn.Close()
//
//	w, err := worker.New(conn, registry, nil, nil)
//	if err != nil {
//		return err
//	}
//	return w.Run(ctx)
package worker
