package orchestrator

import (
	"strings"

	"github.com/hupe1980/chatmesh/core"
)

// bankingKeywords trigger the account-inquiry capability. The list mirrors
// the training phrases of the banking intent taxonomy served by the fallback
// classifier.
var bankingKeywords = []string{
	"balance", "account", "transfer", "transaction", "card", "loan",
	"bill", "payment", "statement", "pin", "dispute", "charge",
	"interest", "rate", "atm", "branch", "deposit", "withdraw",
	"credit", "debit", "mortgage", "savings",
}

// toolKeywords trigger the tool-calling capability.
var toolKeywords = []string{
	"calculate", "convert", "look up", "lookup", "search", "weather",
	"exchange rate", "schedule", "remind",
}

// Selection is the ordered capability plan for one message.
type Selection struct {
	Capabilities []core.Capability
}

// Select builds the capability plan for a message given the current
// conversation context. Capabilities appear in execution order and at most
// once each.
func Select(message string, msgType string, cc core.ConversationContext) Selection {
	caps := core.NewStringSet()
	lower := strings.ToLower(message)

	// Language analysis runs first so downstream steps see sentiment,
	// but only for non-empty textual input.
	if strings.TrimSpace(message) != "" && (msgType == "" || msgType == "text") {
		caps.Add(string(core.CapabilityLanguageAnalysis))
	}

	// Intent detection runs for every message.
	caps.Add(string(core.CapabilityIntentDetection))

	if containsAny(lower, bankingKeywords) || strings.HasPrefix(cc.CurrentIntent, "banking.") {
		caps.Add(string(core.CapabilityAccountInquiry))
	}

	if containsAny(lower, toolKeywords) || cc.ToolRequested {
		caps.Add(string(core.CapabilityToolCalling))
	}

	out := make([]core.Capability, 0, caps.Len())
	for _, v := range caps.Values() {
		out = append(out, core.Capability(v))
	}
	return Selection{Capabilities: out}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
