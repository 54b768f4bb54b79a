// Package classifier holds the lexical heuristics deciding which chat
// turns interact with long-term memory. The functions are pure and cheap
// enough to run on every message; false negatives are acceptable, the
// memory layer degrades gracefully when a turn is misjudged.
package classifier

import (
	"regexp"
	"strings"

	"github.com/secmon-lab/recall/pkg/domain/types"
)

// retrievalMinLength is the rune count above which any message triggers
// retrieval even without backward-reference vocabulary.
const retrievalMinLength = 10

var (
	memoryPattern = regexp.MustCompile(`i am|i'm|i like|i love|i hate|vegetarian|vegan|allergic|diet|avoid|preference`)
	factPattern   = regexp.MustCompile(`i am|i'm|i like|i love|i hate|vegetarian|vegan|allergic|diet|avoid|preference`)

	backRefPattern = regexp.MustCompile(`previous|before|earlier|last time|remember|history|what did|what was`)

	greetingOnly = regexp.MustCompile(`^(hi|hello|hey|ok|thanks|thank you|yes|no)$`)
	shortGreet   = regexp.MustCompile(`^(hi|hello|hey)$`)
)

// NeedsRetrieval reports whether a message should trigger memory
// retrieval. Bare greetings never do; anything longer than a few words or
// referring back to earlier exchanges does.
func NeedsRetrieval(message string) bool {
	text := normalize(message)
	if shortGreet.MatchString(text) {
		return false
	}
	return len([]rune(text)) > retrievalMinLength || backRefPattern.MatchString(text)
}

// WorthStoring reports whether a message should be distilled into a
// long-term memory entry. Greetings and bare acknowledgements are never
// stored; preference, identity and dietary statements are.
func WorthStoring(message string) bool {
	text := normalize(message)
	if greetingOnly.MatchString(text) {
		return false
	}
	return memoryPattern.MatchString(text)
}

// CategoryOf classifies a stored message as a standalone fact or a
// conversation turn.
func CategoryOf(message string) types.MemoryCategory {
	if factPattern.MatchString(normalize(message)) {
		return types.MemoryCategoryFact
	}
	return types.MemoryCategoryConversation
}

func normalize(message string) string {
	return strings.ToLower(strings.TrimSpace(message))
}
