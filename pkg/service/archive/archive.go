// Package archive writes raw chat exchanges to Cloud Storage as JSON
// objects. The archive is diagnostic data only; a failed archive write is
// logged and dropped without affecting the chat pipeline.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/utils/safe"
)

// Exchange is the archived form of a single chat turn.
type Exchange struct {
	MessageID      string    `json:"message_id"`
	AccountID      string    `json:"account_id"`
	ConversationID string    `json:"conversation_id"`
	UserText       string    `json:"user_text"`
	ReplyText      string    `json:"reply_text"`
	CreatedAt      time.Time `json:"created_at"`
}

type Service struct {
	bucketName string
	client     *storage.Client
}

// New creates an archive service writing to the given bucket.
func New(ctx context.Context, bucketName string) (*Service, error) {
	if bucketName == "" {
		return nil, goerr.New("bucket name is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &Service{
		bucketName: bucketName,
		client:     client,
	}, nil
}

// Put archives one exchange under exchanges/<account>/<message>.json.
func (s *Service) Put(ctx context.Context, msg *model.Message) error {
	key := fmt.Sprintf("exchanges/%s/%s.json", msg.AccountID, msg.ID)

	obj := s.client.Bucket(s.bucketName).Object(key)
	w := obj.NewWriter(ctx)

	exchange := &Exchange{
		MessageID:      string(msg.ID),
		AccountID:      msg.AccountID.String(),
		ConversationID: msg.ConversationID.String(),
		UserText:       msg.UserText,
		ReplyText:      msg.ReplyText,
		CreatedAt:      msg.CreatedAt,
	}
	if err := json.NewEncoder(w).Encode(exchange); err != nil {
		safe.Close(ctx, w)
		return goerr.Wrap(err, "failed to encode exchange", goerr.V("key", key))
	}

	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to write exchange to storage", goerr.V("key", key))
	}

	return nil
}

func (s *Service) Close() error {
	return s.client.Close()
}
