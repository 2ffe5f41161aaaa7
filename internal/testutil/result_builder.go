package testutil

import "github.com/hupe1980/chatmesh/core"

// ResultBuilder helps construct capability results with fluent chaining for
// tests. Example:
//
//	res := NewResultBuilder("Your balance is $100").Intent("banking.balance.check", 0.9).Build()
type ResultBuilder struct {
	result core.CapabilityResult
}

// NewResultBuilder creates a builder with the given response text.
// Use chainable methods (Intent, Sentiment, Entity) then call Build.
func NewResultBuilder(response string) *ResultBuilder {
	return &ResultBuilder{result: core.CapabilityResult{Response: response, Confidence: 0.9, Provenance: "live"}}
}

// Intent sets the detected intent and confidence (chainable).
func (b *ResultBuilder) Intent(intent string, confidence float64) *ResultBuilder {
	b.result.Intent = intent
	b.result.Confidence = confidence
	return b
}

// Sentiment sets the sentiment label (chainable).
func (b *ResultBuilder) Sentiment(s string) *ResultBuilder {
	b.result.Sentiment = s
	return b
}

// Entity adds an extracted entity key/value pair (chainable).
func (b *ResultBuilder) Entity(key, val string) *ResultBuilder {
	if b.result.Entities == nil {
		b.result.Entities = map[string]string{}
	}
	b.result.Entities[key] = val
	return b
}

// Provenance overrides the result provenance (chainable).
func (b *ResultBuilder) Provenance(p string) *ResultBuilder {
	b.result.Provenance = p
	return b
}

// Build returns a *core.CapabilityResult.
func (b *ResultBuilder) Build() *core.CapabilityResult {
	res := b.result
	return &res
}
