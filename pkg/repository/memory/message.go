package memory

import (
	"context"
	"sort"
	"strconv"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/domain/types"
)

type messageRepository struct {
	mu       sync.RWMutex
	entries  map[types.AccountID]map[model.MessageID]*model.Message
	counters map[types.AccountID]int64
}

func newMessageRepository() *messageRepository {
	return &messageRepository{
		entries:  make(map[types.AccountID]map[model.MessageID]*model.Message),
		counters: make(map[types.AccountID]int64),
	}
}

func copyMessage(m *model.Message) *model.Message {
	copied := *m
	return &copied
}

func (r *messageRepository) Put(ctx context.Context, msg *model.Message) error {
	if msg.ID == "" {
		return goerr.New("message ID is required")
	}
	if err := msg.AccountID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid message owner")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, exists := r.entries[msg.AccountID]
	if !exists {
		bucket = make(map[model.MessageID]*model.Message)
		r.entries[msg.AccountID] = bucket
	}

	bucket[msg.ID] = copyMessage(msg)
	return nil
}

func (r *messageRepository) Get(ctx context.Context, accountID types.AccountID, messageID model.MessageID) (*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket, exists := r.entries[accountID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "message not found", goerr.V("messageID", messageID))
	}

	msg, exists := bucket[messageID]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "message not found", goerr.V("messageID", messageID))
	}

	return copyMessage(msg), nil
}

func (r *messageRepository) ListByConversation(ctx context.Context, accountID types.AccountID, conversationID types.ConversationID) ([]*model.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket, exists := r.entries[accountID]
	if !exists {
		return []*model.Message{}, nil
	}

	messages := make([]*model.Message, 0)
	for _, m := range bucket {
		if m.ConversationID == conversationID {
			messages = append(messages, copyMessage(m))
		}
	}

	sort.Slice(messages, func(i, j int) bool {
		return messages[i].CreatedAt.Before(messages[j].CreatedAt)
	})

	return messages, nil
}

func (r *messageRepository) ListConversations(ctx context.Context, accountID types.AccountID) ([]types.ConversationID, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket, exists := r.entries[accountID]
	if !exists {
		return []types.ConversationID{}, nil
	}

	all := make([]*model.Message, 0, len(bucket))
	for _, m := range bucket {
		all = append(all, m)
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	seen := make(map[types.ConversationID]bool)
	conversations := make([]types.ConversationID, 0)
	for _, m := range all {
		if !seen[m.ConversationID] {
			seen[m.ConversationID] = true
			conversations = append(conversations, m.ConversationID)
		}
	}

	return conversations, nil
}

func (r *messageRepository) NextConversationID(ctx context.Context, accountID types.AccountID) (types.ConversationID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.counters[accountID]++
	return types.ConversationID(strconv.FormatInt(r.counters[accountID], 10)), nil
}
