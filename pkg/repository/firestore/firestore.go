package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/interfaces"
)

// ErrNotFound is returned when a requested document does not exist
var ErrNotFound = goerr.New("not found")

// ErrEmailTaken is returned when registering an email that already has an account
var ErrEmailTaken = goerr.New("email already registered")

const accountsCollection = "accounts"

type Firestore struct {
	client  *firestore.Client
	memory  *memoryRepository
	message *messageRepository
	account *accountRepository
}

var _ interfaces.Repository = &Firestore{}

type Option func(*config)

type config struct {
	collectionPrefix string
}

// WithCollectionPrefix prefixes the root collection name. Used by tests
// to isolate runs within a shared database.
func WithCollectionPrefix(prefix string) Option {
	return func(c *config) {
		c.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, options ...Option) (*Firestore, error) {
	var cfg config
	for _, opt := range options {
		opt(&cfg)
	}

	var client *firestore.Client
	var err error
	if databaseID == "" {
		client, err = firestore.NewClient(ctx, projectID)
	} else {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client", goerr.V("projectID", projectID))
	}

	root := accountsCollection
	if cfg.collectionPrefix != "" {
		root = cfg.collectionPrefix + "_" + accountsCollection
	}

	return &Firestore{
		client:  client,
		memory:  newMemoryRepository(client, root),
		message: newMessageRepository(client, root),
		account: newAccountRepository(client, root),
	}, nil
}

func (f *Firestore) Memory() interfaces.MemoryRepository {
	return f.memory
}

func (f *Firestore) Message() interfaces.MessageRepository {
	return f.message
}

func (f *Firestore) Account() interfaces.AccountRepository {
	return f.account
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}
