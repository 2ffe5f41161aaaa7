// Package provider holds the prompt and parsing contract shared by the LLM
// capability adapters. Each subpackage wraps one vendor SDK behind
// core.Invoker; this package keeps the prompt wording and result parsing
// consistent across vendors.
package provider

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hupe1980/chatmesh/core"
)

// DefaultSystemPrompt instructs the model to behave as the
// intent-understanding capability and answer in the normalized result shape.
const DefaultSystemPrompt = `You are the intent-understanding capability of a customer service assistant for a retail bank.
Analyze the user's message and reply with a single JSON object, no prose around it, with these fields:
  "response": a short helpful answer to the user,
  "intent": a dotted intent name such as "banking.balance.check" or "general.greeting",
  "confidence": a number between 0 and 1,
  "entities": an object of string key/value pairs extracted from the message,
  "sentiment": one of "positive", "neutral", "negative",
  "suggestedActions": an array of short action labels,
  "quickReplies": an array of short reply suggestions.`

// BuildUserPrompt folds the message and the relevant conversation context
// into one user turn.
func BuildUserPrompt(req core.CapabilityRequest) string {
	var b strings.Builder
	b.WriteString("Message: ")
	b.WriteString(req.Message)
	if req.Context.CurrentIntent != "" {
		fmt.Fprintf(&b, "\nCurrent intent: %s", req.Context.CurrentIntent)
	}
	if req.Context.Sentiment != "" {
		fmt.Fprintf(&b, "\nObserved sentiment: %s", req.Context.Sentiment)
	}
	if len(req.Context.Entities) > 0 {
		b.WriteString("\nKnown entities:")
		for k, v := range req.Context.Entities {
			fmt.Fprintf(&b, " %s=%s", k, v)
		}
	}
	return b.String()
}

// ParseResult decodes a model reply into a CapabilityResult. Replies wrapped
// in markdown fences are unwrapped first; non-JSON replies become the
// response text with a modest confidence.
func ParseResult(content string) *core.CapabilityResult {
	trimmed := strings.TrimSpace(content)
	if after, ok := strings.CutPrefix(trimmed, "```json"); ok {
		trimmed = after
	} else if after, ok := strings.CutPrefix(trimmed, "```"); ok {
		trimmed = after
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	trimmed = strings.TrimSpace(trimmed)

	var result core.CapabilityResult
	if err := json.Unmarshal([]byte(trimmed), &result); err != nil || result.Response == "" {
		result = core.CapabilityResult{
			Response:   content,
			Confidence: 0.5,
		}
	}
	result.Provenance = "live"
	return &result
}
