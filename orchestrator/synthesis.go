package orchestrator

import "github.com/hupe1980/chatmesh/core"

// apologyText answers messages no step could handle. The response flags
// escalation so a human agent can pick the conversation up.
const apologyText = "I'm sorry, I'm having trouble handling that request right now. " +
	"Let me connect you with a human agent who can help."

// synthesisOrder ranks capabilities for choosing the response text. Earlier
// entries win; metadata from the remaining steps is merged in regardless.
var synthesisOrder = []core.Capability{
	core.CapabilityAccountInquiry,
	core.CapabilityToolCalling,
	core.CapabilityIntentDetection,
	core.CapabilityLanguageAnalysis,
}

// synthesize merges step results into a single response. The highest-ranked
// succeeded step supplies the text; intent, sentiment and entities are
// aggregated across all succeeded steps.
func (o *Orchestrator) synthesize(result *core.PipelineResult) *core.Response {
	if result.Aborted {
		return &core.Response{
			Text:               apologyText,
			Confidence:         0.1,
			SourceAgentID:      o.opts.DefaultAgentID,
			Provenance:         "generic",
			EscalationRequired: true,
		}
	}

	var winner *core.StepResult
	for _, cap := range synthesisOrder {
		for i := range result.Steps {
			step := &result.Steps[i]
			if step.Capability == cap && step.Succeeded() && step.Output.Response != "" {
				winner = step
				break
			}
		}
		if winner != nil {
			break
		}
	}

	if winner == nil {
		return &core.Response{
			Text:               apologyText,
			Confidence:         0.1,
			SourceAgentID:      o.opts.DefaultAgentID,
			Provenance:         "generic",
			EscalationRequired: true,
		}
	}

	resp := &core.Response{
		Text:             winner.Output.Response,
		Confidence:       winner.Output.Confidence,
		SourceAgentID:    winner.AgentID,
		Provenance:       winner.Output.Provenance,
		Intent:           winner.Output.Intent,
		QuickReplies:     winner.Output.QuickReplies,
		SuggestedActions: winner.Output.SuggestedActions,
		Sentiment:        winner.Output.Sentiment,
	}
	if resp.Provenance == "" {
		resp.Provenance = "live"
	}

	// Non-winning steps still contribute metadata: the intent step names the
	// intent, language analysis names the sentiment, everyone merges entities.
	for i := range result.Steps {
		step := &result.Steps[i]
		if !step.Succeeded() {
			continue
		}
		out := step.Output
		if resp.Intent == "" && out.Intent != "" {
			resp.Intent = out.Intent
		}
		if resp.Sentiment == "" && out.Sentiment != "" {
			resp.Sentiment = out.Sentiment
		}
		if len(out.Entities) > 0 {
			if resp.Entities == nil {
				resp.Entities = make(map[string]string, len(out.Entities))
			}
			for k, v := range out.Entities {
				if _, exists := resp.Entities[k]; !exists {
					resp.Entities[k] = v
				}
			}
		}
	}
	return resp
}
