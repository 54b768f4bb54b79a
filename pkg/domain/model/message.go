package model

import (
	"fmt"
	"time"

	"github.com/secmon-lab/recall/pkg/domain/types"
)

// MessageID is a deterministic identifier for Message
type MessageID string

// NewMessageID derives the message identifier from the logical content of
// the turn, using a different salt than NewMemoryID so that the message
// and memory records of the same turn never collide.
func NewMessageID(accountID types.AccountID, createdAt time.Time, userText string) MessageID {
	return MessageID(deterministicID(fmt.Sprintf("%s-%s-%s",
		accountID, createdAt.UTC().Format(time.RFC3339Nano), userText)))
}

// Message is the append-only record of a single chat turn: what the user
// said and what the assistant replied. It is diagnostic data; losing a
// message never affects retrieval correctness.
type Message struct {
	ID             MessageID
	AccountID      types.AccountID
	ConversationID types.ConversationID
	UserText       string
	ReplyText      string
	CreatedAt      time.Time
}
