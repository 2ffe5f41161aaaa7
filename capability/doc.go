// Package capability provides resilient clients for external agent
// capabilities. The HTTPInvoker normalizes transport failures into a single
// failure signal, the Breaker protects an unreliable upstream with a
// three-state circuit, and the ResilientClient combines retry, timeout,
// breaker and a local keyword fallback so callers always receive a usable
// (possibly degraded) result.
package capability
