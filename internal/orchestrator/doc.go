// Package orchestrator turns one user request into one answer.
//
// The Facade routes the request, then either answers it directly or plans an
// execution graph and hands it to the engine scheduler:
//   - Routing: the router classifies the request as direct or agent
//   - Direct path: a single backend call with the primary agent model
//   - Agent path: the planner builds a graph over the available tools and
//     the scheduler walks it frontier by frontier
//
// Conversation memory feeds recent turns to the router and planner, and every
// request is recorded as a run. Nothing fails past the facade: errors and
// panics become an apology the user can read.
//
// Example usage:
//
//	facade := orchestrator.New(orchestrator.RequiredConfig{
//		Router:    decompose.NewRouter(client, cfg.Models.Router),
//		Planner:   decompose.NewPlanner(client, cfg.Models.Planner),
//		Scheduler: engine.NewScheduler(backend, engine.WithAgentModels(cfg.Models.Agent...)),
//		Backend:   backend,
//	}, orchestrator.WithMemory(session), orchestrator.WithRunStore(db))
//	answer := facade.Handle(ctx, "Compare the weather in Oslo and Rome")
package orchestrator
