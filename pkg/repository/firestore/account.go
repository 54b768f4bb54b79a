package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type accountDoc struct {
	ID           types.AccountID `firestore:"ID"`
	Email        string          `firestore:"Email"`
	Name         string          `firestore:"Name"`
	PasswordHash string          `firestore:"PasswordHash"`
	TokenVersion int64           `firestore:"TokenVersion"`
	CreatedAt    time.Time       `firestore:"CreatedAt"`
}

func toAccountDoc(a *model.Account) *accountDoc {
	return &accountDoc{
		ID:           a.ID,
		Email:        a.Email,
		Name:         a.Name,
		PasswordHash: a.PasswordHash,
		TokenVersion: a.TokenVersion,
		CreatedAt:    a.CreatedAt,
	}
}

func fromAccountDoc(d *accountDoc) *model.Account {
	return &model.Account{
		ID:           d.ID,
		Email:        d.Email,
		Name:         d.Name,
		PasswordHash: d.PasswordHash,
		TokenVersion: d.TokenVersion,
		CreatedAt:    d.CreatedAt,
	}
}

type accountRepository struct {
	client *firestore.Client
	root   string
}

func newAccountRepository(client *firestore.Client, root string) *accountRepository {
	return &accountRepository{client: client, root: root}
}

func (r *accountRepository) accounts() *firestore.CollectionRef {
	return r.client.Collection(r.root)
}

func (r *accountRepository) Create(ctx context.Context, account *model.Account) error {
	if err := account.Validate(); err != nil {
		return goerr.Wrap(err, "invalid account")
	}

	existing, err := r.GetByEmail(ctx, account.Email)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if existing != nil {
		return goerr.Wrap(ErrEmailTaken, "email already registered", goerr.V("email", account.Email))
	}

	docRef := r.accounts().Doc(account.ID.String())
	if _, err := docRef.Create(ctx, toAccountDoc(account)); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return goerr.Wrap(ErrEmailTaken, "account already exists", goerr.V("accountID", account.ID))
		}
		return goerr.Wrap(err, "failed to create account", goerr.V("accountID", account.ID))
	}

	return nil
}

func (r *accountRepository) Get(ctx context.Context, accountID types.AccountID) (*model.Account, error) {
	doc, err := r.accounts().Doc(accountID.String()).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "account not found", goerr.V("accountID", accountID))
		}
		return nil, goerr.Wrap(err, "failed to get account", goerr.V("accountID", accountID))
	}

	var d accountDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal account", goerr.V("accountID", accountID))
	}

	return fromAccountDoc(&d), nil
}

func (r *accountRepository) GetByEmail(ctx context.Context, email string) (*model.Account, error) {
	iter := r.accounts().Where("Email", "==", email).Limit(1).Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if err == iterator.Done {
		return nil, goerr.Wrap(ErrNotFound, "account not found", goerr.V("email", email))
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query account by email", goerr.V("email", email))
	}

	var d accountDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal account", goerr.V("email", email))
	}

	return fromAccountDoc(&d), nil
}

func (r *accountRepository) IncrementTokenVersion(ctx context.Context, accountID types.AccountID) (int64, error) {
	docRef := r.accounts().Doc(accountID.String())

	var version int64
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(docRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return goerr.Wrap(ErrNotFound, "account not found", goerr.V("accountID", accountID))
			}
			return goerr.Wrap(err, "failed to read account")
		}

		var d accountDoc
		if err := doc.DataTo(&d); err != nil {
			return goerr.Wrap(err, "failed to unmarshal account")
		}

		version = d.TokenVersion + 1
		return tx.Update(docRef, []firestore.Update{
			{Path: "TokenVersion", Value: version},
		})
	})
	if err != nil {
		return 0, goerr.Wrap(err, "failed to increment token version", goerr.V("accountID", accountID))
	}

	return version, nil
}
