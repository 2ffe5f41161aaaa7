// Package registry maintains the catalog of callable agents: registration,
// capability lookup, atomic load accounting via Reserve/Release and health
// state. Load counters are the only mutable shared state per agent; all
// mutations happen under the agent's lock so no reader observes a transiently
// negative or over-capacity count.
package registry
