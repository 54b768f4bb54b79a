package repository_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/recall/pkg/domain/interfaces"
	"github.com/secmon-lab/recall/pkg/domain/model"
	"github.com/secmon-lab/recall/pkg/repository/firestore"
	"github.com/secmon-lab/recall/pkg/repository/memory"
)

func newTestAccount(email string) *model.Account {
	return &model.Account{
		ID:           model.NewAccountID(),
		Email:        email,
		Name:         "Test User",
		PasswordHash: "$2a$10$abcdefghijklmnopqrstuv",
		CreatedAt:    time.Now().UTC(),
	}
}

func uniqueEmail() string {
	return fmt.Sprintf("user-%d@example.com", time.Now().UnixNano())
}

func runAccountRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	t.Run("Create then Get round-trips all fields", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		account := newTestAccount(uniqueEmail())
		gt.NoError(t, repo.Account().Create(ctx, account)).Required()

		retrieved, err := repo.Account().Get(ctx, account.ID)
		gt.NoError(t, err).Required()

		gt.Value(t, retrieved.ID).Equal(account.ID)
		gt.Value(t, retrieved.Email).Equal(account.Email)
		gt.Value(t, retrieved.Name).Equal("Test User")
		gt.Value(t, retrieved.PasswordHash).Equal(account.PasswordHash)
		gt.Value(t, retrieved.TokenVersion).Equal(int64(0))
	})

	t.Run("Create rejects duplicate email", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		email := uniqueEmail()
		gt.NoError(t, repo.Account().Create(ctx, newTestAccount(email))).Required()

		err := repo.Account().Create(ctx, newTestAccount(email))
		gt.Value(t, err).NotNil()
		gt.Bool(t, errors.Is(err, memory.ErrEmailTaken) || errors.Is(err, firestore.ErrEmailTaken)).True()
	})

	t.Run("Create rejects account without password hash", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		account := newTestAccount(uniqueEmail())
		account.PasswordHash = ""
		gt.Value(t, repo.Account().Create(ctx, account)).NotNil()
	})

	t.Run("Get returns error for non-existent account", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Account().Get(ctx, "non-existent-id")
		gt.Value(t, err).NotNil()
		gt.Bool(t, errors.Is(err, memory.ErrNotFound) || errors.Is(err, firestore.ErrNotFound)).True()
	})

	t.Run("GetByEmail finds the account", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		account := newTestAccount(uniqueEmail())
		gt.NoError(t, repo.Account().Create(ctx, account)).Required()

		retrieved, err := repo.Account().GetByEmail(ctx, account.Email)
		gt.NoError(t, err).Required()
		gt.Value(t, retrieved.ID).Equal(account.ID)
	})

	t.Run("GetByEmail returns error for unknown email", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Account().GetByEmail(ctx, uniqueEmail())
		gt.Value(t, err).NotNil()
		gt.Bool(t, errors.Is(err, memory.ErrNotFound) || errors.Is(err, firestore.ErrNotFound)).True()
	})

	t.Run("IncrementTokenVersion bumps and persists", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		account := newTestAccount(uniqueEmail())
		gt.NoError(t, repo.Account().Create(ctx, account)).Required()

		v1, err := repo.Account().IncrementTokenVersion(ctx, account.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, v1).Equal(int64(1))

		v2, err := repo.Account().IncrementTokenVersion(ctx, account.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, v2).Equal(int64(2))

		retrieved, err := repo.Account().Get(ctx, account.ID)
		gt.NoError(t, err).Required()
		gt.Value(t, retrieved.TokenVersion).Equal(int64(2))
	})

	t.Run("IncrementTokenVersion fails for non-existent account", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		_, err := repo.Account().IncrementTokenVersion(ctx, "non-existent-id")
		gt.Value(t, err).NotNil()
		gt.Bool(t, errors.Is(err, memory.ErrNotFound) || errors.Is(err, firestore.ErrNotFound)).True()
	})
}

func TestMemoryAccountRepository(t *testing.T) {
	runAccountRepositoryTest(t, func(t *testing.T) interfaces.Repository {
		return memory.New()
	})
}

func TestFirestoreAccountRepository(t *testing.T) {
	runAccountRepositoryTest(t, newFirestoreRepository)
}
