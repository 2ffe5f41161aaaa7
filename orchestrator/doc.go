// Package orchestrator turns an incoming message into a pipeline of agent
// calls and a single synthesized response.
//
// For each message the orchestrator selects an ordered set of capabilities,
// reserves an agent slot per step, executes the steps sequentially with
// per-step timeouts and retry, and merges the step results into one response.
// A failed critical step aborts the pipeline unless fallback is enabled, in
// which case a degraded local result takes the step's place.
package orchestrator
