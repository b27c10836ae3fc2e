// Package orchestrator drives a bounded plan, approve, execute and reflect
// loop for one run at a time per (session, task) key.
//
// # Overview
//
// Each call to ProcessMessage moves a RunState through the phases:
//
//	Idle → Planning → ToolSelection → [AwaitingApproval] → Executing → Reflecting → Planning ...
//
// until it reaches Completed, fails through Error into Completed, or stops
// in AwaitingApproval waiting for ApproveTools or RejectTools.
//
// # Approval gate
//
// Tools whose permission is RequireConfirmation are held in
// PendingApprovals and never execute until approved. Rejecting every
// pending tool sends the run back to Planning without counting an
// iteration.
//
// # Iteration bound
//
// IterationCount grows by one per Reflecting phase. Reaching MaxIterations
// forces Completed regardless of what the reflection says.
//
// # Listeners
//
// Phase listeners are called synchronously, in registration order, with a
// snapshot of the run. A listener error or panic is logged and the run
// continues. Persistence (WithStateStore) and event publishing hook in the
// same way.
//
// # Usage
//
//	orch, err := orchestrator.New(orchestrator.Deps{
//		Planner:   adapter,
//		Context:   aggregator,
//		Memory:    manager,
//		Registry:  registry,
//		Responder: adapter,
//	}, orchestrator.ConfigFromSettings(cfg.Agent), logger)
//
//	state, err := orch.ProcessMessage(ctx, "list the files here", "session-1", "task-1")
//	if state.Phase == orchestrator.PhaseAwaitingApproval {
//		state, err = orch.ApproveTools(ctx, "session-1", "task-1", state.PendingApprovals)
//	}
package orchestrator
