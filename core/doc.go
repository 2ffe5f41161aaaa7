// Package core provides the foundational domain types used across chatmesh.
// It defines the core abstractions for:
//
//   - Agents (callable capabilities with concurrency limits and health state)
//   - Sessions (stateful conversational containers with statistics)
//   - Messages (sequenced conversation records)
//   - Pipeline execution records and synthesized responses
//   - The error taxonomy surfaced at the caller boundary
//   - Lifecycle events and the typed event bus connecting collaborators
//
// The package intentionally keeps implementation concerns (persistence,
// orchestration, concrete clients) out of scope, exposing small interfaces to
// enable custom backends and extensions.
package core
