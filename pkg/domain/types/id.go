package types

import (
	"github.com/m-mizutani/goerr/v2"
)

// AccountID represents a unique identifier for an account. Every stored
// record is partitioned by AccountID and queries never cross it.
type AccountID string

// Validate checks if the AccountID is valid
func (id AccountID) Validate() error {
	if id == "" {
		return goerr.New("account ID cannot be empty")
	}
	return nil
}

// String returns the string representation of AccountID
func (id AccountID) String() string {
	return string(id)
}

// ConversationID identifies a conversation thread within an account.
// IDs are allocated from a per-account counter and rendered as decimal
// strings ("1", "2", ...).
type ConversationID string

// Validate checks if the ConversationID is valid
func (id ConversationID) Validate() error {
	if id == "" {
		return goerr.New("conversation ID cannot be empty")
	}
	return nil
}

// String returns the string representation of ConversationID
func (id ConversationID) String() string {
	return string(id)
}
