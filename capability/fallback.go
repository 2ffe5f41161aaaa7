package capability

import (
	"context"
	"strings"

	"github.com/hupe1980/chatmesh/core"
)

// fallbackConfidence is the fixed low confidence attached to keyword guesses.
const fallbackConfidence = 0.35

// intentPattern maps keyword cues to a banking intent and a templated reply.
type intentPattern struct {
	intent   string
	keywords []string
	response string
}

// Patterns mirror the deployed banking agent's intent taxonomy. Order matters:
// the first pattern with a keyword hit wins.
var fallbackPatterns = []intentPattern{
	{
		intent:   "banking.balance.check",
		keywords: []string{"balance", "how much money", "in my account"},
		response: "I'll check your account balance for you right away.",
	},
	{
		intent:   "banking.transfer.money",
		keywords: []string{"transfer", "move money", "send money"},
		response: "I can help you transfer money between your accounts.",
	},
	{
		intent:   "banking.transactions.view",
		keywords: []string{"transaction", "recent activity", "purchases", "spend"},
		response: "I'll retrieve your recent transactions.",
	},
	{
		intent:   "banking.card.block",
		keywords: []string{"block my card", "freeze", "lost my card", "stolen", "lock my card"},
		response: "I'll help you block your card immediately for security.",
	},
	{
		intent:   "banking.card.activate",
		keywords: []string{"activate", "new card", "enable my card"},
		response: "I'll help you activate your new card.",
	},
	{
		intent:   "banking.loan.check",
		keywords: []string{"loan", "mortgage", "owe"},
		response: "I can provide information about your loan.",
	},
	{
		intent:   "banking.bill.pay",
		keywords: []string{"pay", "bill", "payment"},
		response: "I can help you pay your bills.",
	},
	{
		intent:   "banking.statement.request",
		keywords: []string{"statement"},
		response: "I'll help you request your account statement.",
	},
	{
		intent:   "banking.pin.change",
		keywords: []string{"pin"},
		response: "I can help you change your PIN.",
	},
	{
		intent:   "banking.dispute.transaction",
		keywords: []string{"dispute", "fraud", "didn't make", "wrong charge"},
		response: "I'll help you dispute this transaction.",
	},
	{
		intent:   "banking.interest.rates",
		keywords: []string{"interest rate", "rates"},
		response: "Let me get the current interest rates for you.",
	},
	{
		intent:   "banking.atm.find",
		keywords: []string{"atm", "branch", "nearest"},
		response: "I'll help you find the nearest ATM or branch.",
	},
	{
		intent:   "general.greeting",
		keywords: []string{"hello", "hi ", "hey", "good morning", "good afternoon"},
		response: "Hello! How can I help you with your banking today?",
	},
}

// FallbackClassifier is the degraded local substitute for the remote
// intent/understanding capability. It performs keyword matching against the
// banking intent taxonomy and returns a low-confidence guess plus a templated
// response, tagged with provenance "fallback".
type FallbackClassifier struct{}

// NewFallbackClassifier creates the keyword classifier.
func NewFallbackClassifier() *FallbackClassifier {
	return &FallbackClassifier{}
}

// Classify matches the message against the keyword table.
func (f *FallbackClassifier) Classify(message string) *core.CapabilityResult {
	lowered := strings.ToLower(message)
	for _, p := range fallbackPatterns {
		for _, kw := range p.keywords {
			if strings.Contains(lowered, kw) {
				return &core.CapabilityResult{
					Response:     p.response,
					Confidence:   fallbackConfidence,
					Intent:       p.intent,
					QuickReplies: []string{"Check balance", "Recent transactions", "Talk to an agent"},
					Provenance:   "fallback",
				}
			}
		}
	}
	return &core.CapabilityResult{
		Response:     "I'm not sure I understood that. Could you rephrase, or pick one of the options below?",
		Confidence:   0.1,
		Intent:       "unknown",
		QuickReplies: []string{"Check balance", "Transfer money", "Talk to an agent"},
		Provenance:   "fallback",
	}
}

// Invoke implements core.Invoker so the classifier can stand in for the
// remote capability directly.
func (f *FallbackClassifier) Invoke(_ context.Context, req core.CapabilityRequest) (*core.CapabilityResult, error) {
	return f.Classify(req.Message), nil
}
