package types

import "fmt"

// MemoryCategory classifies what kind of memory a record holds
type MemoryCategory string

const (
	// MemoryCategoryFact holds a standalone user statement (preference,
	// identity, dietary restriction) that stays relevant on its own.
	MemoryCategoryFact MemoryCategory = "fact"

	// MemoryCategoryConversation holds a user message paired with the
	// assistant reply, useful as recent-context material.
	MemoryCategoryConversation MemoryCategory = "conversation"
)

// AllMemoryCategories returns all valid memory categories
func AllMemoryCategories() []MemoryCategory {
	return []MemoryCategory{
		MemoryCategoryFact,
		MemoryCategoryConversation,
	}
}

// IsValid checks if the memory category is valid
func (c MemoryCategory) IsValid() bool {
	switch c {
	case MemoryCategoryFact, MemoryCategoryConversation:
		return true
	default:
		return false
	}
}

// String returns the string representation of the memory category
func (c MemoryCategory) String() string {
	return string(c)
}

// ParseMemoryCategory parses a string into a MemoryCategory
func ParseMemoryCategory(s string) (MemoryCategory, error) {
	c := MemoryCategory(s)
	if !c.IsValid() {
		return "", fmt.Errorf("invalid memory category: %s", s)
	}
	return c, nil
}
