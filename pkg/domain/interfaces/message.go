package interfaces

import (
	"context"

	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/domain/types"
)

// MessageRepository defines the interface for the append-only chat log
type MessageRepository interface {
	// Put stores a message record under its deterministic ID with
	// create-or-overwrite semantics.
	Put(ctx context.Context, msg *model.Message) error

	// Get retrieves a message record by ID
	Get(ctx context.Context, accountID types.AccountID, messageID model.MessageID) (*model.Message, error)

	// ListByConversation returns the messages of one conversation,
	// oldest first.
	ListByConversation(ctx context.Context, accountID types.AccountID, conversationID types.ConversationID) ([]*model.Message, error)

	// ListConversations returns the distinct conversation IDs of an
	// account, most recently active first.
	ListConversations(ctx context.Context, accountID types.AccountID) ([]types.ConversationID, error)

	// NextConversationID allocates the next conversation ID from the
	// per-account counter.
	NextConversationID(ctx context.Context, accountID types.AccountID) (types.ConversationID, error)
}
