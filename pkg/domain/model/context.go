package model

// PromptContext is the assembled memory context injected into the
// generation prompt. Empty sections carry the literal "None" so the
// prompt template never silently collapses a section.
type PromptContext struct {
	Facts  string
	Recent string
}

// EmptyPromptContext returns the context used when retrieval finds
// nothing or is skipped entirely.
func EmptyPromptContext() PromptContext {
	return PromptContext{Facts: "None", Recent: "None"}
}
