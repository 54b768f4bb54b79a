package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/domain/types"
)

// GetHistory returns the messages of one conversation, oldest first.
func (uc *ChatUseCase) GetHistory(ctx context.Context, accountID types.AccountID, conversationID types.ConversationID) ([]*model.Message, error) {
	if err := conversationID.Validate(); err != nil {
		return nil, goerr.Wrap(ErrBadRequest, "conversation ID is required")
	}

	messages, err := uc.repo.Message().ListByConversation(ctx, accountID, conversationID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list messages",
			goerr.V("conversationID", conversationID))
	}

	return messages, nil
}

// ListConversations returns the account's conversation IDs, most recently
// active first.
func (uc *ChatUseCase) ListConversations(ctx context.Context, accountID types.AccountID) ([]types.ConversationID, error) {
	conversations, err := uc.repo.Message().ListConversations(ctx, accountID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list conversations")
	}

	return conversations, nil
}
