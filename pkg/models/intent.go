package models

// Intent is the classified category of a user request. It selects the
// execution route and is produced once per request.
type Intent string

const (
	// IntentPlainChat is ordinary conversation answered directly.
	IntentPlainChat Intent = "plain-chat"
	// IntentDecompose is a multi-step request that gets a task graph.
	IntentDecompose Intent = "decompose"
	// IntentSimpleGeneration is a generation request with no research needed.
	IntentSimpleGeneration Intent = "simple-generation"
	// IntentComplexGeneration is a generation request that needs decomposition first.
	IntentComplexGeneration Intent = "complex-generation"
	// IntentDomainAction is a request that acts on an external system and needs approval.
	IntentDomainAction Intent = "domain-action"
)

// Intents lists the closed enumeration in a stable order.
var Intents = []Intent{
	IntentPlainChat,
	IntentDecompose,
	IntentSimpleGeneration,
	IntentComplexGeneration,
	IntentDomainAction,
}

// Valid returns true if the intent is a member of the enumeration.
func (i Intent) Valid() bool {
	switch i {
	case IntentPlainChat, IntentDecompose, IntentSimpleGeneration,
		IntentComplexGeneration, IntentDomainAction:
		return true
	default:
		return false
	}
}

// IsGeneration returns true for the two generation intents.
func (i Intent) IsGeneration() bool {
	return i == IntentSimpleGeneration || i == IntentComplexGeneration
}

// ParseIntent converts a raw label into an Intent. Values outside the
// enumeration default to IntentPlainChat and report ok=false.
func ParseIntent(s string) (intent Intent, ok bool) {
	i := Intent(s)
	if i.Valid() {
		return i, true
	}
	return IntentPlainChat, false
}
