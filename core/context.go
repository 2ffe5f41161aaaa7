package core

// ConversationContext carries the evolving understanding of a conversation.
// It is updated by intent/analysis steps and consulted when selecting which
// agents must process the next message.
type ConversationContext struct {
	CurrentIntent   string            `json:"currentIntent,omitempty"`
	PreviousIntents []string          `json:"previousIntents,omitempty"`
	Entities        map[string]string `json:"entities,omitempty"`
	Preferences     map[string]string `json:"preferences,omitempty"`
	Sentiment       string            `json:"sentiment,omitempty"`
	ToolRequested   bool              `json:"toolRequested,omitempty"`
}

// SetIntent records a newly detected intent, pushing the prior one onto the
// history. Setting the same intent again is a no-op.
func (c *ConversationContext) SetIntent(intent string) {
	if intent == "" || intent == c.CurrentIntent {
		return
	}
	if c.CurrentIntent != "" {
		c.PreviousIntents = append(c.PreviousIntents, c.CurrentIntent)
	}
	c.CurrentIntent = intent
}

// MergeEntities adds the provided entities, overwriting duplicates.
func (c *ConversationContext) MergeEntities(entities map[string]string) {
	if len(entities) == 0 {
		return
	}
	if c.Entities == nil {
		c.Entities = make(map[string]string, len(entities))
	}
	for k, v := range entities {
		c.Entities[k] = v
	}
}

// Apply merges a capability result into the context: detected intent,
// extracted entities and sentiment.
func (c *ConversationContext) Apply(res *CapabilityResult) {
	if res == nil {
		return
	}
	c.SetIntent(res.Intent)
	c.MergeEntities(res.Entities)
	if res.Sentiment != "" {
		c.Sentiment = res.Sentiment
	}
}

// Clone returns a deep copy safe for independent mutation.
func (c ConversationContext) Clone() ConversationContext {
	out := c
	out.PreviousIntents = append([]string(nil), c.PreviousIntents...)
	if c.Entities != nil {
		out.Entities = make(map[string]string, len(c.Entities))
		for k, v := range c.Entities {
			out.Entities[k] = v
		}
	}
	if c.Preferences != nil {
		out.Preferences = make(map[string]string, len(c.Preferences))
		for k, v := range c.Preferences {
			out.Preferences[k] = v
		}
	}
	return out
}
