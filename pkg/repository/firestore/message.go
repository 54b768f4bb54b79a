package firestore

import (
	"context"
	"strconv"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	messagesCollection = "messages"
	countersCollection = "counters"

	// conversationCounterDoc holds the per-account conversation counter
	conversationCounterDoc = "conversation"
)

type messageDoc struct {
	ID             model.MessageID      `firestore:"ID"`
	AccountID      types.AccountID      `firestore:"AccountID"`
	ConversationID types.ConversationID `firestore:"ConversationID"`
	UserText       string               `firestore:"UserText"`
	ReplyText      string               `firestore:"ReplyText"`
	CreatedAt      time.Time            `firestore:"CreatedAt"`
}

type counterDoc struct {
	Value int64 `firestore:"Value"`
}

func toMessageDoc(m *model.Message) *messageDoc {
	return &messageDoc{
		ID:             m.ID,
		AccountID:      m.AccountID,
		ConversationID: m.ConversationID,
		UserText:       m.UserText,
		ReplyText:      m.ReplyText,
		CreatedAt:      m.CreatedAt,
	}
}

func fromMessageDoc(d *messageDoc) *model.Message {
	return &model.Message{
		ID:             d.ID,
		AccountID:      d.AccountID,
		ConversationID: d.ConversationID,
		UserText:       d.UserText,
		ReplyText:      d.ReplyText,
		CreatedAt:      d.CreatedAt,
	}
}

type messageRepository struct {
	client *firestore.Client
	root   string
}

func newMessageRepository(client *firestore.Client, root string) *messageRepository {
	return &messageRepository{client: client, root: root}
}

func (r *messageRepository) messagesOf(accountID types.AccountID) *firestore.CollectionRef {
	return r.client.Collection(r.root).Doc(accountID.String()).
		Collection(messagesCollection)
}

func (r *messageRepository) Put(ctx context.Context, msg *model.Message) error {
	if msg.ID == "" {
		return goerr.New("message ID is required")
	}
	if err := msg.AccountID.Validate(); err != nil {
		return goerr.Wrap(err, "invalid message owner")
	}

	docRef := r.messagesOf(msg.AccountID).Doc(string(msg.ID))
	if _, err := docRef.Set(ctx, toMessageDoc(msg)); err != nil {
		return goerr.Wrap(err, "failed to put message", goerr.V("messageID", msg.ID))
	}

	return nil
}

func (r *messageRepository) Get(ctx context.Context, accountID types.AccountID, messageID model.MessageID) (*model.Message, error) {
	doc, err := r.messagesOf(accountID).Doc(string(messageID)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "message not found", goerr.V("messageID", messageID))
		}
		return nil, goerr.Wrap(err, "failed to get message", goerr.V("messageID", messageID))
	}

	var d messageDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal message", goerr.V("messageID", messageID))
	}

	return fromMessageDoc(&d), nil
}

func (r *messageRepository) ListByConversation(ctx context.Context, accountID types.AccountID, conversationID types.ConversationID) ([]*model.Message, error) {
	iter := r.messagesOf(accountID).
		Where("ConversationID", "==", conversationID.String()).
		OrderBy("CreatedAt", firestore.Asc).
		Documents(ctx)
	defer iter.Stop()

	messages := make([]*model.Message, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate messages")
		}

		var d messageDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal message")
		}

		messages = append(messages, fromMessageDoc(&d))
	}

	return messages, nil
}

func (r *messageRepository) ListConversations(ctx context.Context, accountID types.AccountID) ([]types.ConversationID, error) {
	iter := r.messagesOf(accountID).
		OrderBy("CreatedAt", firestore.Desc).
		Select("ConversationID", "CreatedAt").
		Documents(ctx)
	defer iter.Stop()

	seen := make(map[types.ConversationID]bool)
	conversations := make([]types.ConversationID, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate conversations")
		}

		var d messageDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal message projection")
		}

		if !seen[d.ConversationID] {
			seen[d.ConversationID] = true
			conversations = append(conversations, d.ConversationID)
		}
	}

	return conversations, nil
}

// NextConversationID allocates the next conversation ID from a counter
// document inside a transaction, so concurrent allocations for the same
// account never hand out the same ID.
func (r *messageRepository) NextConversationID(ctx context.Context, accountID types.AccountID) (types.ConversationID, error) {
	counterRef := r.client.Collection(r.root).Doc(accountID.String()).
		Collection(countersCollection).Doc(conversationCounterDoc)

	var next int64
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(counterRef)
		if err != nil && status.Code(err) != codes.NotFound {
			return goerr.Wrap(err, "failed to read conversation counter")
		}

		var counter counterDoc
		if err == nil {
			if err := doc.DataTo(&counter); err != nil {
				return goerr.Wrap(err, "failed to unmarshal conversation counter")
			}
		}

		next = counter.Value + 1
		return tx.Set(counterRef, &counterDoc{Value: next})
	})
	if err != nil {
		return "", goerr.Wrap(err, "failed to allocate conversation ID", goerr.V("accountID", accountID))
	}

	return types.ConversationID(strconv.FormatInt(next, 10)), nil
}
